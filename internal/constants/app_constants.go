package constants

import "time"

const (
	// Application-level constants
	DefaultPipelineVer = "1.0"

	// 家庭组与交接数据的缓存时长
	FamilyGroupTTL   = 30 * 24 * time.Hour
	ReportHandoffTTL = 24 * time.Hour
	ChatHistoryTTL   = 7 * 24 * time.Hour
	MarketDatasetTTL = 6 * time.Hour
)

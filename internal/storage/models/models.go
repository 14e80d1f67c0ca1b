package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// AssessmentSession 测评会话主表
// 记录一次学生版或家长版测评的设置与阶段进度
type AssessmentSession struct {
	SessionID      string         `gorm:"type:char(36);primaryKey"`
	FamilyCode     string         `gorm:"type:varchar(32);index:idx_as_family_code"`
	AssessmentType string         `gorm:"type:varchar(20);not null;index:idx_as_assessment_type"`
	Stage          string         `gorm:"type:varchar(20);not null;default:'city'"`
	City           string         `gorm:"type:varchar(255)"`
	State          string         `gorm:"type:varchar(255)"`
	Language       string         `gorm:"type:varchar(50)"`
	StreamsJSON    datatypes.JSON `gorm:"type:json"`
	PrioritiesJSON datatypes.JSON `gorm:"type:json"`
	// 生成该会话响应所用的解析管线版本
	PipelineVersion string    `gorm:"type:varchar(50)"`
	CreatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_as_created_at"`
	UpdatedAt       time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);autoUpdateTime"`
}

func (AssessmentSession) TableName() string {
	return "assessment_sessions"
}

// CareerReportRecord 职业推荐报告表
// 每个会话最多持久化一份最终报告
type CareerReportRecord struct {
	ReportID         string         `gorm:"type:char(36);primaryKey"`
	SessionID        string         `gorm:"type:char(36);not null;uniqueIndex:idx_crr_session_unique"`
	AssessmentType   string         `gorm:"type:varchar(20);not null"`
	City             string         `gorm:"type:varchar(255)"`
	State            string         `gorm:"type:varchar(255)"`
	ReportJSON       datatypes.JSON `gorm:"type:json;not null"`
	RecommendedCount int            `gorm:"not null;default:0"`
	CreatedAt        time.Time      `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6)"`

	Session *AssessmentSession `gorm:"foreignKey:SessionID;references:SessionID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (CareerReportRecord) TableName() string {
	return "career_report_records"
}

// MarketSnapshot 市场数据快照表
// 每次成功抓取或回退生成的数据集都会留档一条
type MarketSnapshot struct {
	SnapshotID uint64         `gorm:"primaryKey;autoIncrement"`
	City       string         `gorm:"type:varchar(255);not null;index:idx_ms_city_state,priority:1"`
	State      string         `gorm:"type:varchar(255);index:idx_ms_city_state,priority:2"`
	DatasetJSON datatypes.JSON `gorm:"type:json;not null"`
	// FromLive 数据来自实时抓取解析 (false 表示静态回退数据)
	FromLive bool `gorm:"not null;default:false"`
	// NarrativeObjectKey 原始叙述文本在对象存储中的key，未归档时为空
	NarrativeObjectKey string    `gorm:"type:varchar(1024)"`
	FetchedAt          time.Time `gorm:"type:datetime(6);default:CURRENT_TIMESTAMP(6);index:idx_ms_fetched_at"`
}

func (MarketSnapshot) TableName() string {
	return "market_snapshots"
}

// ToJSON 将任意可序列化值转换为 datatypes.JSON
func ToJSON(v interface{}) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// StringSliceToJSON 将字符串切片转换为 datatypes.JSON
func StringSliceToJSON(values []string) (datatypes.JSON, error) {
	return ToJSON(values)
}

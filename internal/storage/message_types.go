package storage

import "time"

// 事件类型常量，写入outbox与消息属性
const (
	EventTypeReportReady   = "guidance.report.ready"
	EventTypeMarketRefresh = "guidance.market.refresh"
)

// ReportReadyMessage 报告就绪事件
// 报告落库后经outbox投递，下游可据此触发通知或数据预热
type ReportReadyMessage struct {
	SessionID      string    `json:"session_id"`
	ReportID       string    `json:"report_id"`
	AssessmentType string    `json:"assessment_type"`
	FamilyCode     string    `json:"family_code,omitempty"`
	City           string    `json:"city"`
	State          string    `json:"state,omitempty"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// MarketRefreshMessage 市场数据刷新事件
// 请求后台为某地区抓取并缓存最新市场数据集
type MarketRefreshMessage struct {
	City  string `json:"city"`
	State string `json:"state,omitempty"`
	// Reason 事件来源，例如 "report_completed" / "cache_expired" / "manual"
	Reason      string    `json:"reason,omitempty"`
	RequestedAt time.Time `json:"requested_at"`
}

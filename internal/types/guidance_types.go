package types

// Sender 表示对话消息的发送方
type Sender string

const (
	// SenderUser 用户发送
	SenderUser Sender = "user"
	// SenderAssistant 助手发送
	SenderAssistant Sender = "assistant"
)

// SessionMode 表示会话所处的阶段模式
type SessionMode string

const (
	// AssessmentMode 测评阶段：助手以"问题+选项"的形式推进测评
	AssessmentMode SessionMode = "ASSESSMENT"
	// PostReportMode 报告后阶段：报告已生成，助手以自由问答形式跟进
	PostReportMode SessionMode = "POST_REPORT"
)

// ChatMessage 对话记录中的一条消息
// 只追加不修改，仅在会话显式重置时整体清空
type ChatMessage struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	// IsStructuredPayload 该消息携带结构化报告数据（而非纯文本）
	IsStructuredPayload bool `json:"is_structured_payload,omitempty"`
}

// QuestionPrompt 助手单轮输出的"问题+选项"
// 每轮产生一个，被下一轮或最终报告取代
type QuestionPrompt struct {
	QuestionText string   `json:"question"`
	Options      []string `json:"options"`
}

// CareerRecommendation 单条职业推荐
// Field 和 Reason 校验通过时必定存在；可选字段缺失时保持缺失，不做默认填充
type CareerRecommendation struct {
	Field              string   `json:"field"`
	Reason             string   `json:"reason"`
	RecommendedDegrees []string `json:"recommended_degrees,omitempty"`
	RelevantCourses    []string `json:"relevant_courses,omitempty"`

	// 家长版报告的本地化增强字段
	LocalSalary     string   `json:"local_salary,omitempty"`
	JobAvailability string   `json:"job_availability,omitempty"`
	FamilyFitScore  string   `json:"family_fit_score,omitempty"`
	LocalCompanies  []string `json:"local_companies,omitempty"`
	GrowthTrend     string   `json:"growth_trend,omitempty"`
}

// CareerComparisonEntry 职业对比表中的一行
type CareerComparisonEntry struct {
	SalaryRange       string `json:"salary_range"`
	JobSecurity       string `json:"job_security"`
	FamilyFitScore    string `json:"family_fit_score"`
	LocalOpportunity  string `json:"local_opportunities"`
	EducationCost     string `json:"education_cost"`
	MigrationRequired string `json:"migration_required"`
}

// ProsConsAnalysis 某一职业的利弊分析
type ProsConsAnalysis struct {
	Pros []string `json:"pros"`
	Cons []string `json:"cons"`
}

// ComparativeCaseStudy 多职业对比案例
type ComparativeCaseStudy struct {
	CareerComparisonTable map[string]CareerComparisonEntry `json:"career_comparison_table"`
	ProsConsAnalysis      map[string]ProsConsAnalysis      `json:"pros_cons_analysis"`
}

// LocalSuccessStory 本地成功案例
type LocalSuccessStory struct {
	Name       string `json:"name"`
	Career     string `json:"career"`
	Company    string `json:"company"`
	Salary     string `json:"salary"`
	Background string `json:"background"`
}

// HighDemandSector 热力图中的高需求行业条目
type HighDemandSector struct {
	Sector      string `json:"sector"`
	GrowthRate  string `json:"growth_rate"`
	AvgSalary   string `json:"avg_salary"`
	JobOpenings string `json:"job_openings"`
}

// SalaryHotspot 热力图中的高薪地区条目
type SalaryHotspot struct {
	Location     string   `json:"location"`
	AvgSalary    string   `json:"avg_salary"`
	TopCompanies []string `json:"top_companies"`
}

// EducationHub 热力图中的教育资源条目
type EducationHub struct {
	InstituteName  string   `json:"institute_name"`
	CoursesOffered []string `json:"courses_offered"`
	Fees           string   `json:"fees"`
	PlacementRate  string   `json:"placement_rate"`
}

// HeatmapData 报告中的区域热力图数据
type HeatmapData struct {
	HighDemandSectors []HighDemandSector `json:"high_demand_sectors"`
	SalaryHotspots    []SalaryHotspot    `json:"salary_hotspots"`
	EducationHubs     []EducationHub     `json:"education_hubs"`
}

// YoutubeRecommendation 相关视频推荐
type YoutubeRecommendation struct {
	Title     string `json:"title"`
	Channel   string `json:"channel"`
	URL       string `json:"url"`
	Relevance string `json:"relevance"`
}

// AlternativeSuggestion 备选方向建议
type AlternativeSuggestion struct {
	Field           string `json:"field"`
	Reason          string `json:"reason"`
	MarketDemand    string `json:"market_demand"`
	SalaryPotential string `json:"salary_potential"`
	AlignmentScore  string `json:"alignment_score"`
}

// CareerReport 测评结束时生成的结构化推荐报告
// 仅当 RecommendedCareers 非空时有效；Reasons 规范化后保证为空切片而非 nil
type CareerReport struct {
	RecommendedCareers []CareerRecommendation `json:"recommended_careers"`
	Reasons            []string               `json:"reasons"`

	// 家长版报告的可选扩展部分
	ComparativeCaseStudy   *ComparativeCaseStudy   `json:"comparative_case_study,omitempty"`
	LocalSuccessStories    []LocalSuccessStory     `json:"local_success_stories,omitempty"`
	HeatmapData            *HeatmapData            `json:"heatmap_data,omitempty"`
	YoutubeRecommendations []YoutubeRecommendation `json:"youtube_recommendations,omitempty"`
	AlternativeSuggestions []AlternativeSuggestion `json:"alternative_suggestions,omitempty"`
}

// ReportHandoff 报告交接载荷
// 测评流程写入，看板流程原样读回，用于跨页面传递报告与地区信息
type ReportHandoff struct {
	SessionID string         `json:"session_id"`
	City      string         `json:"city"`
	State     string         `json:"state"`
	Report    *CareerReport  `json:"report"`
	Type      AssessmentType `json:"assessment_type"`
	CreatedAt string         `json:"created_at"`
}

// DemandLevel 行业需求等级，由增长率按固定阈值推导
type DemandLevel string

const (
	DemandHigh   DemandLevel = "high"
	DemandMedium DemandLevel = "medium"
	DemandLow    DemandLevel = "low"
)

// MarketTrend 行业趋势，由增长率按固定阈值推导
type MarketTrend string

const (
	TrendRising    MarketTrend = "rising"
	TrendStable    MarketTrend = "stable"
	TrendDeclining MarketTrend = "declining"
)

// MarketDataPoint 单个行业的劳动力市场数据
// DemandLevel 与 Trend 由 GrowthRate 确定性推导（>12 high，<6 low；>8 rising，<4 declining），
// 阈值是固定业务规则，不可配置
type MarketDataPoint struct {
	Sector      string      `json:"sector"`
	DemandLevel DemandLevel `json:"demand_level"`
	GrowthRate  float64     `json:"growth_rate"`
	// AvgSalary 为自由文本，携带货币与单位（如 "₹6-25 LPA"），不做数值化
	AvgSalary   string      `json:"avg_salary"`
	JobCount    int         `json:"job_count"`
	Trend       MarketTrend `json:"trend"`
	Location    string      `json:"location"`
	Source      string      `json:"source,omitempty"`
	LastUpdated string      `json:"last_updated,omitempty"`
}

// MarketDataset 某一地区的完整市场数据集及其来源标记
type MarketDataset struct {
	City      string            `json:"city"`
	State     string            `json:"state"`
	Points    []MarketDataPoint `json:"points"`
	FromLive  bool              `json:"from_live"`
	FetchedAt string            `json:"fetched_at"`
}

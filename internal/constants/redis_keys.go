package constants

// Redis Key 前缀和格式常量
// 使用统一的命名规范: career:{module}:{entity}:{unique_id}
const (
	// AppPrefix 是所有Redis Key的统一应用前缀
	AppPrefix = "career"

	// FamilyModulePrefix 家庭组模块
	FamilyModulePrefix = "family"
	// ReportModulePrefix 报告模块
	ReportModulePrefix = "report"
	// MarketModulePrefix 市场数据模块
	MarketModulePrefix = "market"
	// ChatModulePrefix 对话模块
	ChatModulePrefix = "chat"

	// EntityGroup 家庭组实体
	EntityGroup = "group"
	// EntityAssessmentType 测评类型标记实体
	EntityAssessmentType = "assessment_type"
	// EntityHandoff 跨页面交接载荷实体
	EntityHandoff = "handoff"
	// EntityHistory 对话历史实体
	EntityHistory = "history"
	// EntityDataset 市场数据集实体
	EntityDataset = "dataset"

	// KeyFamilyGroup 家庭组成员与测评记录 (STRING, JSON blob)
	// 格式: career:family:group:{familyCode}
	KeyFamilyGroup = AppPrefix + ":" + FamilyModulePrefix + ":" + EntityGroup + ":%s"

	// KeyFamilyAssessmentType 当前家庭的测评类型标记 (STRING)
	// 格式: career:family:assessment_type:{familyCode}
	KeyFamilyAssessmentType = AppPrefix + ":" + FamilyModulePrefix + ":" + EntityAssessmentType + ":%s"

	// KeyReportHandoff 报告交接载荷，测评流程写入，看板流程原样读回 (STRING, JSON blob)
	// 内容为序列化的 CareerReport 加 city/state
	// 格式: career:report:handoff:{sessionID}
	KeyReportHandoff = AppPrefix + ":" + ReportModulePrefix + ":" + EntityHandoff + ":%s"

	// KeyChatHistory 会话历史 (LIST, 每项为一条序列化消息)
	// 格式: career:chat:history:{sessionID}
	KeyChatHistory = AppPrefix + ":" + ChatModulePrefix + ":" + EntityHistory + ":%s"

	// KeyMarketDataset 按地区缓存的市场数据集 (STRING, JSON blob)
	// 格式: career:market:dataset:{city}:{state}
	KeyMarketDataset = AppPrefix + ":" + MarketModulePrefix + ":" + EntityDataset + ":%s:%s"

	// KeyMarketRefreshLock 市场数据刷新的分布式锁，防止同一地区并发刷新
	// 格式: career:market:lock:{city}:{state}
	KeyMarketRefreshLock = AppPrefix + ":" + MarketModulePrefix + ":lock:%s:%s"
)

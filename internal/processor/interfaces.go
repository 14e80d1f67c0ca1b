package processor

import (
	"context"

	"github.com/cloudwego/eino/components/model"

	"career-agent-go/internal/agent"
	"career-agent-go/internal/parser"
	"career-agent-go/internal/storage"
	"career-agent-go/internal/types"
)

// StartSessionRequest 发起一次新测评会话的请求
type StartSessionRequest struct {
	// AssessmentType 学生版或家长版
	AssessmentType types.AssessmentType

	// FamilyCode 所属家庭组编码，可为空
	FamilyCode string

	// MemberID 家庭组内的成员标识，与FamilyCode配套使用
	MemberID string
}

// AdvanceSetupRequest 推进设置流程一步的请求
// 各阶段只使用与之对应的字段，其余字段被忽略
type AdvanceSetupRequest struct {
	SessionID string

	// Stage 正在提交数据的设置阶段，必须等于会话当前阶段
	// 提交成功后会话前进到下一阶段
	Stage types.SetupStage

	// City/State 对应 city 阶段
	City  string
	State string

	// Language 对应 language 阶段
	Language string

	// Selections 对应 streams 与 priorities 阶段（多选）
	Selections []string
}

// SessionView 会话的对外快照
type SessionView struct {
	SessionID      string               `json:"session_id"`
	AssessmentType types.AssessmentType `json:"assessment_type"`
	FamilyCode     string               `json:"family_code,omitempty"`
	Stage          types.SetupStage     `json:"stage"`
	Setup          types.SetupState     `json:"setup"`

	// Opening 进入对话阶段时助手的第一轮输出，其余阶段为空
	Opening *parser.NormalizedResponse `json:"opening,omitempty"`
}

// TurnResult 一轮对话的结果
type TurnResult struct {
	Response *parser.NormalizedResponse `json:"response"`

	// Stage 本轮结束后的会话阶段（报告生成会推进阶段）
	Stage types.SetupStage `json:"stage"`

	// RetryNotices 本轮模型调用期间产生的重试提示，按发生顺序排列
	RetryNotices []string `json:"retry_notices,omitempty"`
}

// GuidanceService 定义测评流程的服务接口
// 提供统一的服务层接口，隐藏内部实现细节
type GuidanceService interface {
	// StartSession 创建一次新的测评会话，初始阶段为 city
	StartSession(ctx context.Context, req StartSessionRequest) (*SessionView, error)

	// AdvanceSetup 推进设置流程一步，只允许前进到下一阶段
	AdvanceSetup(ctx context.Context, req AdvanceSetupRequest) (*SessionView, error)

	// SendMessage 发送一条用户消息并返回归一化后的助手响应
	SendMessage(ctx context.Context, sessionID string, text string) (*TurnResult, error)

	// GetReport 获取会话的报告交接载荷，优先读Redis，回退MySQL
	GetReport(ctx context.Context, sessionID string) (*types.ReportHandoff, error)

	// CreateFamilyGroup 创建家庭组并登记第一位成员
	CreateFamilyGroup(ctx context.Context, displayName string, role types.AssessmentType) (*types.FamilyGroup, error)

	// JoinFamilyGroup 凭家庭码加入已有家庭组
	JoinFamilyGroup(ctx context.Context, familyCode string, displayName string, role types.AssessmentType) (*types.FamilyGroup, error)

	// GetFamilyGroup 获取家庭组及其成员的完成状态
	GetFamilyGroup(ctx context.Context, familyCode string) (*types.FamilyGroup, error)
}

// MarketService 定义劳动力市场数据的服务接口
type MarketService interface {
	// GetMarketData 获取某地区的市场数据集，优先命中缓存
	GetMarketData(ctx context.Context, city, state string) (*types.MarketDataset, error)

	// RefreshMarketData 强制刷新某地区的市场数据集并重建缓存
	RefreshMarketData(ctx context.Context, city, state, reason string) (*types.MarketDataset, error)

	// HandleRefreshMessage 处理来自消息队列的刷新事件
	// 返回true表示消息可确认，false表示重新入队
	HandleRefreshMessage(payload []byte) bool
}

// Components 服务层依赖的组件集合
type Components struct {
	// 存储聚合（MySQL/Redis/RabbitMQ/MinIO）
	Storage *storage.Storage

	// StudentModel 学生版测评模型
	StudentModel model.ToolCallingChatModel

	// ParentModel 家长版测评模型，启用联网搜索
	ParentModel model.ToolCallingChatModel

	// MarketModel 市场数据查询模型，启用联网搜索
	MarketModel model.ToolCallingChatModel

	// Memory 会话历史存储
	Memory agent.ChatMemory

	// MarketExtractor 市场叙述文本的数据提取器
	MarketExtractor *parser.MarketDataExtractor
}

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// WithcompStorage 设置存储组件
func WithcompStorage(s *storage.Storage) ComponentOpt {
	return func(c *Components) {
		c.Storage = s
	}
}

// WithcompStudentmodel 设置学生版测评模型
func WithcompStudentmodel(m model.ToolCallingChatModel) ComponentOpt {
	return func(c *Components) {
		c.StudentModel = m
	}
}

// WithcompParentmodel 设置家长版测评模型
func WithcompParentmodel(m model.ToolCallingChatModel) ComponentOpt {
	return func(c *Components) {
		c.ParentModel = m
	}
}

// WithcompMarketmodel 设置市场数据查询模型
func WithcompMarketmodel(m model.ToolCallingChatModel) ComponentOpt {
	return func(c *Components) {
		c.MarketModel = m
	}
}

// WithcompMemory 设置会话历史存储
func WithcompMemory(mem agent.ChatMemory) ComponentOpt {
	return func(c *Components) {
		c.Memory = mem
	}
}

// WithcompMarketextractor 设置市场数据提取器
func WithcompMarketextractor(e *parser.MarketDataExtractor) ComponentOpt {
	return func(c *Components) {
		c.MarketExtractor = e
	}
}

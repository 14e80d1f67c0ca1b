package processor

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"career-agent-go/internal/agent"
	"career-agent-go/internal/config"
	"career-agent-go/internal/constants"
	"career-agent-go/internal/parser"
	"career-agent-go/internal/ratelimit"
	"career-agent-go/internal/storage"
	"career-agent-go/internal/storage/models"
	"career-agent-go/internal/types"
)

// 定义公共错误类型，用于整个服务
var (
	ErrStorageNotInit  = errors.New("storage is not initialized")     // 存储未初始化错误
	ErrModelNotInit    = errors.New("chat model is not initialized")  // 模型未初始化错误
	ErrSessionNotFound = errors.New("assessment session not found")   // 会话不存在
	ErrReportNotFound  = errors.New("career report not found")        // 报告不存在
	ErrFamilyNotFound  = errors.New("family group not found")         // 家庭组不存在
	ErrSessionNotReady = errors.New("session is not in a chat stage") // 会话尚未进入对话阶段
)

// 定义tracer
var tracer = otel.Tracer("processor")

// guidanceServiceImpl 是GuidanceService的实现
// 采用Facade模式，内部持有所有需要的组件，但不暴露给外部
type guidanceServiceImpl struct {
	components Components      // 组件依赖
	config     *config.Config  // 配置信息
	logger     *zerolog.Logger // 服务日志

	// 活跃会话登记表；实例重启后按需从存储重建
	mu   sync.Mutex
	live map[string]*liveSession
}

// liveSession 一个活跃会话及其本轮累积的重试提示
type liveSession struct {
	session *agent.ConversationSession

	noticeMu sync.Mutex
	notices  []string
}

// appendNotice 记录一条重试提示，由会话的重试回调触发
func (ls *liveSession) appendNotice(message string) {
	ls.noticeMu.Lock()
	defer ls.noticeMu.Unlock()
	ls.notices = append(ls.notices, message)
}

// drainNotices 取出并清空累积的重试提示
func (ls *liveSession) drainNotices() []string {
	ls.noticeMu.Lock()
	defer ls.noticeMu.Unlock()
	drained := ls.notices
	ls.notices = nil
	return drained
}

// NewGuidanceService 创建新的测评服务实例
func NewGuidanceService(cfg *config.Config, store *storage.Storage, logger *zerolog.Logger, opts ...ComponentOpt) (GuidanceService, error) {
	if logger == nil {
		// 如果未提供logger，创建一个默认的
		defaultLogger := zerolog.Nop()
		logger = &defaultLogger
	}

	components := createComponents(cfg, store, logger)
	for _, opt := range opts {
		opt(&components)
	}

	if components.Storage == nil {
		return nil, ErrStorageNotInit
	}
	if components.Memory == nil {
		components.Memory = agent.NewInMemoryChatMemory()
	}

	return &guidanceServiceImpl{
		components: components,
		config:     cfg,
		logger:     logger,
		live:       make(map[string]*liveSession),
	}, nil
}

// createComponents 创建所有必要的组件
func createComponents(cfg *config.Config, store *storage.Storage, logger *zerolog.Logger) Components {
	components := Components{
		Storage: store,
	}

	// 创建Gemini模型（学生版/家长版/市场数据各一个，家长版与市场版启用联网搜索）
	if cfg != nil && cfg.Gemini.APIKey != "" {
		stdLogger := log.New(
			zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
				w.NoColor = false
				w.TimeFormat = "15:04:05"
			}),
			"[GeminiModel] ",
			log.LstdFlags,
		)

		// 每个模型按其名称的QPM限额包一层限流代理
		wrap := func(m model.ToolCallingChatModel, modelName string) model.ToolCallingChatModel {
			return ratelimit.WrapWithRateLimit(
				m,
				modelName,
				cfg.Gemini.ModelQPM,
				cfg.Gemini.DefaultQPM,
				cfg.Retry.MaxRetries,
				cfg.Retry.BackoffBase(),
			)
		}

		studentModelName := cfg.GetModelForTask("student_assessment")
		studentModel, err := agent.NewGeminiChatModel(
			cfg.Gemini.APIKey,
			studentModelName,
			cfg.Gemini.APIURL,
			agent.WithGeminiLogger(stdLogger),
		)
		if err == nil {
			components.StudentModel = wrap(studentModel, studentModelName)
		}

		parentModelName := cfg.GetModelForTask("parent_assessment")
		parentModel, err := agent.NewGeminiChatModel(
			cfg.Gemini.APIKey,
			parentModelName,
			cfg.Gemini.APIURL,
			agent.WithGoogleSearch(),
			agent.WithGeminiLogger(stdLogger),
		)
		if err == nil {
			components.ParentModel = wrap(parentModel, parentModelName)
		}

		marketModelName := cfg.GetModelForTask("market_data")
		marketModel, err := agent.NewGeminiChatModel(
			cfg.Gemini.APIKey,
			marketModelName,
			cfg.Gemini.APIURL,
			agent.WithGoogleSearch(),
			agent.WithGeminiLogger(stdLogger),
		)
		if err == nil {
			components.MarketModel = wrap(marketModel, marketModelName)
		}
	}

	// 会话历史优先落Redis，Redis不可用时退化为内存版
	if store != nil && store.Redis != nil {
		memory, err := agent.NewRedisChatMemory(store.Redis.Client, constants.ChatHistoryTTL)
		if err == nil {
			components.Memory = memory
		} else {
			logger.Warn().Err(err).Msg("Redis会话历史初始化失败，退化为内存存储")
		}
	}
	if components.Memory == nil {
		components.Memory = agent.NewInMemoryChatMemory()
	}

	// 市场数据提取器
	extractorLogger := log.New(
		zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.NoColor = false
			w.TimeFormat = "15:04:05"
		}),
		"[MarketExtractor] ",
		log.LstdFlags,
	)
	components.MarketExtractor = parser.NewMarketDataExtractor(parser.WithMarketLogger(extractorLogger))

	return components
}

// StartSession 实现GuidanceService接口
func (gs *guidanceServiceImpl) StartSession(ctx context.Context, req StartSessionRequest) (*SessionView, error) {
	ctx, span := tracer.Start(ctx, "StartSession")
	defer span.End()

	if req.AssessmentType != types.AssessmentStudent && req.AssessmentType != types.AssessmentParent {
		return nil, fmt.Errorf("未知的测评类型: %q", req.AssessmentType)
	}

	sessionID := uuid.Must(uuid.NewV7()).String()
	span.SetAttributes(
		attribute.String("session_id", sessionID),
		attribute.String("assessment_type", string(req.AssessmentType)),
	)

	record := &models.AssessmentSession{
		SessionID:       sessionID,
		FamilyCode:      req.FamilyCode,
		AssessmentType:  string(req.AssessmentType),
		Stage:           string(types.StageCity),
		PipelineVersion: gs.config.ActivePipelineVersion,
	}
	if err := gs.components.Storage.MySQL.CreateAssessmentSession(ctx, record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "创建会话记录失败")
		return nil, fmt.Errorf("创建测评会话失败: %w", err)
	}

	// 关联家庭组成员；家庭组是辅助数据，失败不阻断会话创建
	if req.FamilyCode != "" && req.MemberID != "" {
		if err := gs.attachSessionToMember(ctx, req.FamilyCode, req.MemberID, sessionID); err != nil {
			gs.logger.Warn().Err(err).
				Str("session_id", sessionID).
				Str("family_code", req.FamilyCode).
				Msg("关联家庭组成员失败")
		}
	}

	gs.logger.Info().
		Str("session_id", sessionID).
		Str("assessment_type", string(req.AssessmentType)).
		Msg("测评会话已创建")

	return viewFromRecord(record, nil), nil
}

// AdvanceSetup 实现GuidanceService接口
func (gs *guidanceServiceImpl) AdvanceSetup(ctx context.Context, req AdvanceSetupRequest) (*SessionView, error) {
	ctx, span := tracer.Start(ctx, "AdvanceSetup")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", req.SessionID),
		attribute.String("setup_stage", string(req.Stage)),
	)

	record, err := gs.loadSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	current := types.SetupStage(record.Stage)
	if current != req.Stage {
		return nil, fmt.Errorf("会话 '%s' 当前处于 %s 阶段, 不能提交 %s 阶段的数据", req.SessionID, current, req.Stage)
	}
	next := current.Next()
	if err := current.CanAdvanceTo(next); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"stage": string(next)}
	switch req.Stage {
	case types.StageCity:
		if strings.TrimSpace(req.City) == "" {
			return nil, fmt.Errorf("城市不能为空")
		}
		record.City = strings.TrimSpace(req.City)
		record.State = strings.TrimSpace(req.State)
		updates["city"] = record.City
		updates["state"] = record.State

	case types.StageLanguage:
		if !containsOption(types.SupportedLanguages, req.Language) {
			return nil, fmt.Errorf("不支持的语言: %q", req.Language)
		}
		record.Language = req.Language
		updates["language"] = req.Language

	case types.StageStreams:
		if err := validateSelections(req.Selections, types.StreamOptions); err != nil {
			return nil, fmt.Errorf("学科方向选择无效: %w", err)
		}
		streamsJSON, err := models.StringSliceToJSON(req.Selections)
		if err != nil {
			return nil, fmt.Errorf("序列化学科方向失败: %w", err)
		}
		record.StreamsJSON = streamsJSON
		updates["streams_json"] = streamsJSON

	case types.StagePriorities:
		if err := validateSelections(req.Selections, types.PriorityOptions); err != nil {
			return nil, fmt.Errorf("职业优先级选择无效: %w", err)
		}
		prioritiesJSON, err := models.StringSliceToJSON(req.Selections)
		if err != nil {
			return nil, fmt.Errorf("序列化职业优先级失败: %w", err)
		}
		record.PrioritiesJSON = prioritiesJSON
		updates["priorities_json"] = prioritiesJSON

	default:
		return nil, fmt.Errorf("阶段 %s 不接受设置数据提交", req.Stage)
	}

	if err := gs.components.Storage.MySQL.UpdateSessionFields(ctx, req.SessionID, updates); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "更新会话记录失败")
		return nil, fmt.Errorf("更新测评会话失败: %w", err)
	}
	record.Stage = string(next)

	// 设置采集完毕，进入对话阶段：构建会话并发送开场消息
	var opening *parser.NormalizedResponse
	if next == types.StageChat {
		opening, err = gs.openConversation(ctx, record)
		if err != nil {
			return nil, err
		}
	}

	return viewFromRecord(record, opening), nil
}

// openConversation 构建对话会话并发送开场消息，返回助手的第一轮输出
func (gs *guidanceServiceImpl) openConversation(ctx context.Context, record *models.AssessmentSession) (*parser.NormalizedResponse, error) {
	ctx, span := tracer.Start(ctx, "OpenConversation")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", record.SessionID))

	ls, err := gs.buildLiveSession(record, nil)
	if err != nil {
		return nil, err
	}

	gs.mu.Lock()
	gs.live[record.SessionID] = ls
	gs.mu.Unlock()

	setup := setupFromRecord(record)
	opening, err := ls.session.Send(ctx, agent.SetupSummaryMessage(&setup))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "开场消息发送失败")
		return nil, err
	}
	return opening, nil
}

// SendMessage 实现GuidanceService接口
func (gs *guidanceServiceImpl) SendMessage(ctx context.Context, sessionID string, text string) (*TurnResult, error) {
	ctx, span := tracer.Start(ctx, "SendMessage")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", sessionID))

	record, err := gs.loadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	stage := types.SetupStage(record.Stage)
	if stage != types.StageChat && stage != types.StageReport && stage != types.StagePostReport {
		return nil, fmt.Errorf("%w: 会话 '%s' 处于 %s 阶段", ErrSessionNotReady, sessionID, stage)
	}

	ls, err := gs.getOrRestoreSession(ctx, record)
	if err != nil {
		return nil, err
	}

	resp, err := ls.session.Send(ctx, text)
	notices := ls.drainNotices()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "模型调用失败")
		return nil, err
	}
	span.SetAttributes(attribute.String("response_kind", string(resp.Kind)))

	stageAfter := stage
	if resp.Kind == parser.KindCareerReport && ls.session.Mode() == types.AssessmentMode {
		if err := gs.finalizeReport(ctx, record, resp.Report); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "报告落库失败")
			return nil, err
		}
		stageAfter = types.StagePostReport
		record.Stage = string(types.StagePostReport)

		// 切换到报告后模式，后续轮次使用跟进问答指令
		postLS, err := gs.buildLiveSession(record, resp.Report)
		if err != nil {
			gs.logger.Warn().Err(err).Str("session_id", sessionID).Msg("切换报告后会话失败，下轮按需重建")
			gs.mu.Lock()
			delete(gs.live, sessionID)
			gs.mu.Unlock()
		} else {
			gs.mu.Lock()
			gs.live[sessionID] = postLS
			gs.mu.Unlock()
		}
	}

	return &TurnResult{
		Response:     resp,
		Stage:        stageAfter,
		RetryNotices: notices,
	}, nil
}

// finalizeReport 报告落库：同一事务内写报告记录与outbox事件，再写Redis交接载荷
func (gs *guidanceServiceImpl) finalizeReport(ctx context.Context, record *models.AssessmentSession, report *types.CareerReport) error {
	ctx, span := tracer.Start(ctx, "FinalizeReport")
	defer span.End()
	span.SetAttributes(
		attribute.String("session_id", record.SessionID),
		attribute.Int("recommended_count", len(report.RecommendedCareers)),
	)

	reportJSON, err := models.ToJSON(report)
	if err != nil {
		return fmt.Errorf("序列化报告失败: %w", err)
	}

	now := time.Now()
	reportID := uuid.Must(uuid.NewV7()).String()
	reportRecord := &models.CareerReportRecord{
		ReportID:         reportID,
		SessionID:        record.SessionID,
		AssessmentType:   record.AssessmentType,
		City:             record.City,
		State:            record.State,
		ReportJSON:       reportJSON,
		RecommendedCount: len(report.RecommendedCareers),
	}

	readyPayload, err := json.Marshal(storage.ReportReadyMessage{
		SessionID:      record.SessionID,
		ReportID:       reportID,
		AssessmentType: record.AssessmentType,
		FamilyCode:     record.FamilyCode,
		City:           record.City,
		State:          record.State,
		GeneratedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("序列化报告就绪事件失败: %w", err)
	}
	refreshPayload, err := json.Marshal(storage.MarketRefreshMessage{
		City:        record.City,
		State:       record.State,
		Reason:      "report_generated",
		RequestedAt: now,
	})
	if err != nil {
		return fmt.Errorf("序列化市场刷新事件失败: %w", err)
	}

	readyMsg := &models.OutboxMessage{
		AggregateID:      record.SessionID,
		EventType:        storage.EventTypeReportReady,
		Payload:          string(readyPayload),
		TargetExchange:   gs.config.RabbitMQ.GuidanceEventsExchange,
		TargetRoutingKey: gs.config.RabbitMQ.ReportReadyRoutingKey,
	}
	refreshMsg := &models.OutboxMessage{
		AggregateID:      record.SessionID,
		EventType:        storage.EventTypeMarketRefresh,
		Payload:          string(refreshPayload),
		TargetExchange:   gs.config.RabbitMQ.GuidanceEventsExchange,
		TargetRoutingKey: gs.config.RabbitMQ.MarketRefreshRoutingKey,
	}

	if err := gs.components.Storage.MySQL.SaveCareerReportWithOutbox(ctx, reportRecord, readyMsg, refreshMsg); err != nil {
		return fmt.Errorf("保存报告失败: %w", err)
	}

	if err := gs.components.Storage.MySQL.UpdateSessionFields(ctx, record.SessionID, map[string]interface{}{
		"stage": string(types.StagePostReport),
	}); err != nil {
		return fmt.Errorf("更新会话阶段失败: %w", err)
	}

	// Redis交接载荷是缓存层，写失败只降级为MySQL回源
	handoff := &types.ReportHandoff{
		SessionID: record.SessionID,
		City:      record.City,
		State:     record.State,
		Report:    report,
		Type:      types.AssessmentType(record.AssessmentType),
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	if err := gs.components.Storage.Redis.SaveReportHandoff(ctx, handoff); err != nil {
		gs.logger.Warn().Err(err).Str("session_id", record.SessionID).Msg("写报告交接载荷失败")
	}

	if record.FamilyCode != "" {
		if err := gs.markMemberCompleted(ctx, record.FamilyCode, record.SessionID); err != nil {
			gs.logger.Warn().Err(err).
				Str("family_code", record.FamilyCode).
				Str("session_id", record.SessionID).
				Msg("标记家庭成员完成状态失败")
		}
	}

	gs.logger.Info().
		Str("session_id", record.SessionID).
		Str("report_id", reportID).
		Int("recommended_count", len(report.RecommendedCareers)).
		Msg("职业推荐报告已生成并落库")
	return nil
}

// GetReport 实现GuidanceService接口
func (gs *guidanceServiceImpl) GetReport(ctx context.Context, sessionID string) (*types.ReportHandoff, error) {
	handoff, err := gs.components.Storage.Redis.GetReportHandoff(ctx, sessionID)
	if err == nil {
		return handoff, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		gs.logger.Warn().Err(err).Str("session_id", sessionID).Msg("读报告交接载荷失败，回源MySQL")
	}

	record, err := gs.components.Storage.MySQL.GetCareerReportBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("查询报告记录失败: %w", err)
	}

	var report types.CareerReport
	if err := json.Unmarshal(record.ReportJSON, &report); err != nil {
		return nil, fmt.Errorf("反序列化报告失败: %w", err)
	}

	return &types.ReportHandoff{
		SessionID: record.SessionID,
		City:      record.City,
		State:     record.State,
		Report:    &report,
		Type:      types.AssessmentType(record.AssessmentType),
		CreatedAt: record.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

// CreateFamilyGroup 实现GuidanceService接口
func (gs *guidanceServiceImpl) CreateFamilyGroup(ctx context.Context, displayName string, role types.AssessmentType) (*types.FamilyGroup, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	group := &types.FamilyGroup{
		FamilyCode: newFamilyCode(),
		Members: []types.FamilyMember{
			{
				MemberID:    uuid.Must(uuid.NewV7()).String(),
				DisplayName: displayName,
				Role:        role,
				JoinedAt:    now,
			},
		},
		CreatedAt: now,
	}

	if err := gs.components.Storage.Redis.SaveFamilyGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("保存家庭组失败: %w", err)
	}
	if err := gs.components.Storage.Redis.SetFamilyAssessmentType(ctx, group.FamilyCode, role); err != nil {
		gs.logger.Warn().Err(err).Str("family_code", group.FamilyCode).Msg("写家庭测评类型标记失败")
	}

	gs.logger.Info().Str("family_code", group.FamilyCode).Msg("家庭组已创建")
	return group, nil
}

// JoinFamilyGroup 实现GuidanceService接口
func (gs *guidanceServiceImpl) JoinFamilyGroup(ctx context.Context, familyCode string, displayName string, role types.AssessmentType) (*types.FamilyGroup, error) {
	group, err := gs.components.Storage.Redis.GetFamilyGroup(ctx, familyCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrFamilyNotFound
		}
		return nil, fmt.Errorf("读取家庭组失败: %w", err)
	}

	group.Members = append(group.Members, types.FamilyMember{
		MemberID:    uuid.Must(uuid.NewV7()).String(),
		DisplayName: displayName,
		Role:        role,
		JoinedAt:    time.Now().UTC().Format(time.RFC3339),
	})

	if err := gs.components.Storage.Redis.SaveFamilyGroup(ctx, group); err != nil {
		return nil, fmt.Errorf("保存家庭组失败: %w", err)
	}
	return group, nil
}

// GetFamilyGroup 实现GuidanceService接口
func (gs *guidanceServiceImpl) GetFamilyGroup(ctx context.Context, familyCode string) (*types.FamilyGroup, error) {
	group, err := gs.components.Storage.Redis.GetFamilyGroup(ctx, familyCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrFamilyNotFound
		}
		return nil, fmt.Errorf("读取家庭组失败: %w", err)
	}
	return group, nil
}

// loadSession 读取会话记录，不存在时返回ErrSessionNotFound
func (gs *guidanceServiceImpl) loadSession(ctx context.Context, sessionID string) (*models.AssessmentSession, error) {
	record, err := gs.components.Storage.MySQL.GetAssessmentSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("查询测评会话失败: %w", err)
	}
	return record, nil
}

// getOrRestoreSession 获取活跃会话；实例重启后根据会话记录与聊天历史重建
func (gs *guidanceServiceImpl) getOrRestoreSession(ctx context.Context, record *models.AssessmentSession) (*liveSession, error) {
	gs.mu.Lock()
	if ls, ok := gs.live[record.SessionID]; ok {
		gs.mu.Unlock()
		return ls, nil
	}
	gs.mu.Unlock()

	var priorReport *types.CareerReport
	stage := types.SetupStage(record.Stage)
	if stage == types.StageReport || stage == types.StagePostReport {
		handoff, err := gs.GetReport(ctx, record.SessionID)
		if err != nil {
			return nil, fmt.Errorf("重建报告后会话失败: %w", err)
		}
		priorReport = handoff.Report
	}

	ls, err := gs.buildLiveSession(record, priorReport)
	if err != nil {
		return nil, err
	}

	gs.mu.Lock()
	defer gs.mu.Unlock()
	// 并发重建时保留先到的会话
	if existing, ok := gs.live[record.SessionID]; ok {
		return existing, nil
	}
	gs.live[record.SessionID] = ls
	return ls, nil
}

// buildLiveSession 按测评类型与阶段构建对话会话
// priorReport 非空时进入报告后模式
func (gs *guidanceServiceImpl) buildLiveSession(record *models.AssessmentSession, priorReport *types.CareerReport) (*liveSession, error) {
	var chatModel = gs.components.StudentModel
	var instruction string
	switch types.AssessmentType(record.AssessmentType) {
	case types.AssessmentParent:
		chatModel = gs.components.ParentModel
		instruction = agent.ParentSystemInstruction(record.Language, record.City, record.State, priorReport)
	default:
		instruction = agent.StudentSystemInstruction(record.Language, record.City, priorReport)
	}
	if chatModel == nil {
		return nil, ErrModelNotInit
	}

	mode := types.AssessmentMode
	if priorReport != nil {
		mode = types.PostReportMode
	}

	ls := &liveSession{}
	sessionLogger := gs.logger.With().Str("component", "conversation_session").Logger()
	ls.session = agent.NewConversationSession(
		record.SessionID,
		mode,
		instruction,
		chatModel,
		gs.components.Memory,
		agent.WithMaxRetries(gs.config.Retry.MaxRetries),
		agent.WithBackoffBase(gs.config.Retry.BackoffBase()),
		agent.WithRetryStatus(ls.appendNotice),
		agent.WithSessionLogger(sessionLogger),
	)
	return ls, nil
}

// attachSessionToMember 把新建会话挂到家庭组成员上
func (gs *guidanceServiceImpl) attachSessionToMember(ctx context.Context, familyCode, memberID, sessionID string) error {
	group, err := gs.components.Storage.Redis.GetFamilyGroup(ctx, familyCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrFamilyNotFound
		}
		return err
	}

	for i := range group.Members {
		if group.Members[i].MemberID == memberID {
			group.Members[i].SessionID = sessionID
			return gs.components.Storage.Redis.SaveFamilyGroup(ctx, group)
		}
	}
	return fmt.Errorf("家庭组 '%s' 中不存在成员 '%s'", familyCode, memberID)
}

// markMemberCompleted 报告生成后标记对应家庭成员已完成测评
func (gs *guidanceServiceImpl) markMemberCompleted(ctx context.Context, familyCode, sessionID string) error {
	group, err := gs.components.Storage.Redis.GetFamilyGroup(ctx, familyCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrFamilyNotFound
		}
		return err
	}

	for i := range group.Members {
		if group.Members[i].SessionID == sessionID {
			group.Members[i].Completed = true
			return gs.components.Storage.Redis.SaveFamilyGroup(ctx, group)
		}
	}
	return fmt.Errorf("家庭组 '%s' 中没有会话 '%s' 对应的成员", familyCode, sessionID)
}

// viewFromRecord 由会话记录构建对外快照
func viewFromRecord(record *models.AssessmentSession, opening *parser.NormalizedResponse) *SessionView {
	return &SessionView{
		SessionID:      record.SessionID,
		AssessmentType: types.AssessmentType(record.AssessmentType),
		FamilyCode:     record.FamilyCode,
		Stage:          types.SetupStage(record.Stage),
		Setup:          setupFromRecord(record),
		Opening:        opening,
	}
}

// setupFromRecord 从会话记录还原设置状态
func setupFromRecord(record *models.AssessmentSession) types.SetupState {
	setup := types.SetupState{
		City:     record.City,
		State:    record.State,
		Language: record.Language,
	}
	if len(record.StreamsJSON) > 0 {
		_ = json.Unmarshal(record.StreamsJSON, &setup.Streams)
	}
	if len(record.PrioritiesJSON) > 0 {
		_ = json.Unmarshal(record.PrioritiesJSON, &setup.Priorities)
	}
	return setup
}

// containsOption 判断值是否在可选项内
func containsOption(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}

// validateSelections 校验多选项：非空、无重复、均在可选集合内
func validateSelections(selections []string, options []string) error {
	if len(selections) == 0 {
		return fmt.Errorf("至少选择一项")
	}
	seen := make(map[string]struct{}, len(selections))
	for _, sel := range selections {
		if _, dup := seen[sel]; dup {
			return fmt.Errorf("选项 %q 重复", sel)
		}
		seen[sel] = struct{}{}
		if !containsOption(options, sel) {
			return fmt.Errorf("选项 %q 不在可选集合内", sel)
		}
	}
	return nil
}

// newFamilyCode 生成6位十六进制家庭码
func newFamilyCode() string {
	id := uuid.Must(uuid.NewV4())
	return strings.ToUpper(hex.EncodeToString(id.Bytes()[:3]))
}

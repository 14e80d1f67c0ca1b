package handler

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"career-agent-go/internal/agent"
	"career-agent-go/internal/config"
	"career-agent-go/internal/processor"
	"career-agent-go/internal/types"
)

// GuidanceHandler 负责处理测评会话与家庭组相关的请求
type GuidanceHandler struct {
	cfg     *config.Config
	service processor.GuidanceService
	logger  *log.Logger
}

// NewGuidanceHandler 创建一个新的 GuidanceHandler 实例
func NewGuidanceHandler(cfg *config.Config, service processor.GuidanceService) *GuidanceHandler {
	return &GuidanceHandler{
		cfg:     cfg,
		service: service,
		logger:  log.New(os.Stdout, "[GuidanceHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// StartSessionBody 发起测评会话的请求体
type StartSessionBody struct {
	AssessmentType string `json:"assessment_type"`
	FamilyCode     string `json:"family_code"`
	MemberID       string `json:"member_id"`
}

// HandleStartSession 处理发起测评会话的请求
// POST /api/v1/assessments
func (h *GuidanceHandler) HandleStartSession(ctx context.Context, c *app.RequestContext) {
	var body StartSessionBody
	if err := c.Bind(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}

	view, err := h.service.StartSession(ctx, processor.StartSessionRequest{
		AssessmentType: types.AssessmentType(strings.ToLower(body.AssessmentType)),
		FamilyCode:     body.FamilyCode,
		MemberID:       body.MemberID,
	})
	if err != nil {
		h.logger.Printf("发起测评会话失败: %v", err)
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusOK, view)
}

// AdvanceSetupBody 推进设置流程的请求体
type AdvanceSetupBody struct {
	Stage      string   `json:"stage"`
	City       string   `json:"city"`
	State      string   `json:"state"`
	Language   string   `json:"language"`
	Selections []string `json:"selections"`
}

// HandleAdvanceSetup 处理推进设置流程的请求
// POST /api/v1/assessments/:session_id/setup
func (h *GuidanceHandler) HandleAdvanceSetup(ctx context.Context, c *app.RequestContext) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "session_id 不能为空"})
		return
	}

	var body AdvanceSetupBody
	if err := c.Bind(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}

	view, err := h.service.AdvanceSetup(ctx, processor.AdvanceSetupRequest{
		SessionID:  sessionID,
		Stage:      types.SetupStage(body.Stage),
		City:       body.City,
		State:      body.State,
		Language:   body.Language,
		Selections: body.Selections,
	})
	if err != nil {
		if errors.Is(err, processor.ErrSessionNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "测评会话不存在"})
			return
		}
		h.logger.Printf("推进设置流程失败 (session: %s): %v", sessionID, err)
		c.JSON(consts.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	c.JSON(consts.StatusOK, view)
}

// SendMessageBody 发送对话消息的请求体
type SendMessageBody struct {
	Text string `json:"text"`
}

// HandleSendMessage 处理一轮对话
// POST /api/v1/assessments/:session_id/messages
func (h *GuidanceHandler) HandleSendMessage(ctx context.Context, c *app.RequestContext) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "session_id 不能为空"})
		return
	}

	var body SendMessageBody
	if err := c.Bind(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "消息内容不能为空"})
		return
	}

	result, err := h.service.SendMessage(ctx, sessionID, body.Text)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrSessionNotFound):
			c.JSON(consts.StatusNotFound, map[string]string{"error": "测评会话不存在"})
		case errors.Is(err, processor.ErrSessionNotReady):
			c.JSON(consts.StatusConflict, map[string]string{"error": "会话尚未进入对话阶段"})
		default:
			h.logger.Printf("对话轮次失败 (session: %s): %v", sessionID, err)
			c.JSON(consts.StatusServiceUnavailable, map[string]string{
				"error":   err.Error(),
				"message": agent.UserFacingMessage(err),
			})
		}
		return
	}

	c.JSON(consts.StatusOK, result)
}

// HandleGetReport 获取会话的报告交接载荷
// GET /api/v1/assessments/:session_id/report
func (h *GuidanceHandler) HandleGetReport(ctx context.Context, c *app.RequestContext) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "session_id 不能为空"})
		return
	}

	handoff, err := h.service.GetReport(ctx, sessionID)
	if err != nil {
		if errors.Is(err, processor.ErrReportNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "报告不存在或尚未生成"})
			return
		}
		h.logger.Printf("获取报告失败 (session: %s): %v", sessionID, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "获取报告失败"})
		return
	}

	c.JSON(consts.StatusOK, handoff)
}

// FamilyMemberBody 创建或加入家庭组的请求体
type FamilyMemberBody struct {
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// HandleCreateFamilyGroup 创建家庭组
// POST /api/v1/families
func (h *GuidanceHandler) HandleCreateFamilyGroup(ctx context.Context, c *app.RequestContext) {
	var body FamilyMemberBody
	if err := c.Bind(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}
	role, ok := parseRole(body.Role)
	if !ok {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "role 必须是 student 或 parent"})
		return
	}

	group, err := h.service.CreateFamilyGroup(ctx, body.DisplayName, role)
	if err != nil {
		h.logger.Printf("创建家庭组失败: %v", err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "创建家庭组失败"})
		return
	}

	c.JSON(consts.StatusOK, group)
}

// HandleJoinFamilyGroup 凭家庭码加入家庭组
// POST /api/v1/families/:family_code/members
func (h *GuidanceHandler) HandleJoinFamilyGroup(ctx context.Context, c *app.RequestContext) {
	familyCode := c.Param("family_code")
	if familyCode == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "family_code 不能为空"})
		return
	}

	var body FamilyMemberBody
	if err := c.Bind(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}
	role, ok := parseRole(body.Role)
	if !ok {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "role 必须是 student 或 parent"})
		return
	}

	group, err := h.service.JoinFamilyGroup(ctx, familyCode, body.DisplayName, role)
	if err != nil {
		if errors.Is(err, processor.ErrFamilyNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "家庭组不存在"})
			return
		}
		h.logger.Printf("加入家庭组失败 (code: %s): %v", familyCode, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "加入家庭组失败"})
		return
	}

	c.JSON(consts.StatusOK, group)
}

// HandleGetFamilyGroup 获取家庭组及成员完成状态
// GET /api/v1/families/:family_code
func (h *GuidanceHandler) HandleGetFamilyGroup(ctx context.Context, c *app.RequestContext) {
	familyCode := c.Param("family_code")
	if familyCode == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "family_code 不能为空"})
		return
	}

	group, err := h.service.GetFamilyGroup(ctx, familyCode)
	if err != nil {
		if errors.Is(err, processor.ErrFamilyNotFound) {
			c.JSON(consts.StatusNotFound, map[string]string{"error": "家庭组不存在"})
			return
		}
		h.logger.Printf("获取家庭组失败 (code: %s): %v", familyCode, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "获取家庭组失败"})
		return
	}

	c.JSON(consts.StatusOK, group)
}

// parseRole 解析测评角色
func parseRole(raw string) (types.AssessmentType, bool) {
	switch types.AssessmentType(strings.ToLower(raw)) {
	case types.AssessmentStudent:
		return types.AssessmentStudent, true
	case types.AssessmentParent:
		return types.AssessmentParent, true
	default:
		return "", false
	}
}

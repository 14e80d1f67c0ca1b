package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent-go/internal/api/handler"
	"career-agent-go/internal/api/router"
	"career-agent-go/internal/config"
	"career-agent-go/internal/parser"
	"career-agent-go/internal/processor"
	"career-agent-go/internal/types"
)

// fakeGuidanceService 预设行为的测评服务：以特殊ID触发sentinel错误
type fakeGuidanceService struct{}

func (f *fakeGuidanceService) StartSession(ctx context.Context, req processor.StartSessionRequest) (*processor.SessionView, error) {
	if req.AssessmentType != types.AssessmentStudent && req.AssessmentType != types.AssessmentParent {
		return nil, processor.ErrSessionNotReady
	}
	return &processor.SessionView{
		SessionID:      "session-1",
		AssessmentType: req.AssessmentType,
		Stage:          types.StageCity,
	}, nil
}

func (f *fakeGuidanceService) AdvanceSetup(ctx context.Context, req processor.AdvanceSetupRequest) (*processor.SessionView, error) {
	if req.SessionID == "missing" {
		return nil, processor.ErrSessionNotFound
	}
	return &processor.SessionView{
		SessionID: req.SessionID,
		Stage:     req.Stage.Next(),
	}, nil
}

func (f *fakeGuidanceService) SendMessage(ctx context.Context, sessionID string, text string) (*processor.TurnResult, error) {
	if sessionID == "missing" {
		return nil, processor.ErrSessionNotFound
	}
	return &processor.TurnResult{
		Response: &parser.NormalizedResponse{
			Kind:     parser.KindQuestion,
			Question: &types.QuestionPrompt{QuestionText: "What do you enjoy?", Options: []string{"Reading", "Sports"}},
		},
		Stage: types.StageChat,
	}, nil
}

func (f *fakeGuidanceService) GetReport(ctx context.Context, sessionID string) (*types.ReportHandoff, error) {
	if sessionID == "missing" {
		return nil, processor.ErrReportNotFound
	}
	return &types.ReportHandoff{
		SessionID: sessionID,
		City:      "Pune",
		Report: &types.CareerReport{
			RecommendedCareers: []types.CareerRecommendation{{Field: "Software Development", Reason: "fit"}},
			Reasons:            []string{"interest in technology"},
		},
		Type: types.AssessmentStudent,
	}, nil
}

func (f *fakeGuidanceService) CreateFamilyGroup(ctx context.Context, displayName string, role types.AssessmentType) (*types.FamilyGroup, error) {
	return &types.FamilyGroup{
		FamilyCode: "A1B2C3",
		Members:    []types.FamilyMember{{MemberID: "m-1", DisplayName: displayName, Role: role}},
	}, nil
}

func (f *fakeGuidanceService) JoinFamilyGroup(ctx context.Context, familyCode string, displayName string, role types.AssessmentType) (*types.FamilyGroup, error) {
	if familyCode == "MISSING" {
		return nil, processor.ErrFamilyNotFound
	}
	return &types.FamilyGroup{FamilyCode: familyCode}, nil
}

func (f *fakeGuidanceService) GetFamilyGroup(ctx context.Context, familyCode string) (*types.FamilyGroup, error) {
	if familyCode == "MISSING" {
		return nil, processor.ErrFamilyNotFound
	}
	return &types.FamilyGroup{FamilyCode: familyCode}, nil
}

// fakeMarketService 返回固定数据集的市场服务
type fakeMarketService struct{}

func (f *fakeMarketService) GetMarketData(ctx context.Context, city, state string) (*types.MarketDataset, error) {
	return &types.MarketDataset{
		City:   city,
		State:  state,
		Points: parser.StaticFallbackDataset(city),
	}, nil
}

func (f *fakeMarketService) RefreshMarketData(ctx context.Context, city, state, reason string) (*types.MarketDataset, error) {
	return f.GetMarketData(ctx, city, state)
}

func (f *fakeMarketService) HandleRefreshMessage(payload []byte) bool { return true }

func newTestEngine(t *testing.T) *server.Hertz {
	t.Helper()
	cfg := &config.Config{}
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	guidanceHandler := handler.NewGuidanceHandler(cfg, &fakeGuidanceService{})
	marketHandler := handler.NewMarketHandler(cfg, nil, &fakeMarketService{})
	router.RegisterRoutes(h, guidanceHandler, marketHandler)
	return h
}

func performJSON(t *testing.T, h *server.Hertz, method, path, body string) *ut.ResponseRecorder {
	t.Helper()
	reader := strings.NewReader(body)
	return ut.PerformRequest(h.Engine, method, path,
		&ut.Body{Body: reader, Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
}

func TestHandleStartSession(t *testing.T) {
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/assessments", `{"assessment_type":"student"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var view processor.SessionView
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &view))
	assert.Equal(t, "session-1", view.SessionID)
	assert.Equal(t, types.StageCity, view.Stage)
}

func TestHandleStartSessionInvalidType(t *testing.T) {
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/assessments", `{"assessment_type":"counselor"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleAdvanceSetupNotFound(t *testing.T) {
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/assessments/missing/setup", `{"stage":"city","city":"Pune"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleSendMessage(t *testing.T) {
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/assessments/session-1/messages", `{"text":"I like computers"}`)
	require.Equal(t, http.StatusOK, resp.Code)

	var result processor.TurnResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &result))
	require.NotNil(t, result.Response)
	assert.Equal(t, parser.KindQuestion, result.Response.Kind)
	assert.Equal(t, "What do you enjoy?", result.Response.Question.QuestionText)
}

func TestHandleSendMessageEmptyText(t *testing.T) {
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/assessments/session-1/messages", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleGetReportNotFound(t *testing.T) {
	h := newTestEngine(t)

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/assessments/missing/report", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleGetReport(t *testing.T) {
	h := newTestEngine(t)

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/assessments/session-1/report", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var handoff types.ReportHandoff
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &handoff))
	assert.Equal(t, "Pune", handoff.City)
	require.NotNil(t, handoff.Report)
	assert.Len(t, handoff.Report.RecommendedCareers, 1)
}

func TestHandleCreateFamilyGroupInvalidRole(t *testing.T) {
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/families", `{"display_name":"Asha","role":"grandparent"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleJoinFamilyGroupNotFound(t *testing.T) {
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/families/MISSING/members", `{"display_name":"Asha","role":"parent"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestHandleGetMarketData(t *testing.T) {
	h := newTestEngine(t)

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/market?city=Pune&state=Maharashtra", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var dataset types.MarketDataset
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &dataset))
	assert.Equal(t, "Pune", dataset.City)
	assert.Len(t, dataset.Points, 5)
}

func TestHandleGetMarketDataMissingCity(t *testing.T) {
	h := newTestEngine(t)

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/market", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleRefreshMarketDataMissingCity(t *testing.T) {
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/market/refresh", `{"state":"Maharashtra"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestHandleRefreshMarketDataQueueUnavailable(t *testing.T) {
	// 测试引擎未接入消息队列，投递应以503失败
	h := newTestEngine(t)

	resp := performJSON(t, h, "POST", "/api/v1/market/refresh", `{"city":"Pune"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.Code)
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestEngine(t)

	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.Code)
}

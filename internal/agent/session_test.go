package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent-go/internal/parser"
	"career-agent-go/internal/types"
)

// mockResponse 单次预设响应
type mockResponse struct {
	Content string
	Err     error
}

// mockChatModel 按顺序返回预设响应的模拟模型，记录每次调用收到的消息
type mockChatModel struct {
	responses []mockResponse
	index     int
	calls     [][]*schema.Message
}

func newMockChatModel(responses ...mockResponse) *mockChatModel {
	return &mockChatModel{responses: responses}
}

func (m *mockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	received := make([]*schema.Message, len(input))
	copy(received, input)
	m.calls = append(m.calls, received)

	if m.index >= len(m.responses) {
		return nil, errors.New("mock model has run out of responses")
	}
	resp := m.responses[m.index]
	m.index++
	if resp.Err != nil {
		return nil, resp.Err
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

func (m *mockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not implemented in mockChatModel")
}

func (m *mockChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

func (m *mockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

func newTestSession(t *testing.T, mock *mockChatModel, opts ...SessionOption) *ConversationSession {
	t.Helper()
	base := []SessionOption{WithBackoffBase(time.Millisecond)}
	base = append(base, opts...)
	return NewConversationSession("test-session", types.AssessmentMode, "You are a test assistant.", mock, NewInMemoryChatMemory(), base...)
}

func TestSendQuestionResponse(t *testing.T) {
	mock := newMockChatModel(mockResponse{Content: "What do you enjoy?\n- Reading\n- Sports\n- Coding"})
	session := newTestSession(t, mock)

	resp, err := session.Send(context.Background(), "Hello")
	require.NoError(t, err)
	require.Equal(t, parser.KindQuestion, resp.Kind)
	assert.Equal(t, "What do you enjoy?", resp.Question.QuestionText)
	assert.Len(t, resp.Question.Options, 3)
}

func TestSendInjectsSystemPromptFirst(t *testing.T) {
	mock := newMockChatModel(mockResponse{Content: "Q?\n- A\n- B"})
	session := newTestSession(t, mock)

	_, err := session.Send(context.Background(), "Hi")
	require.NoError(t, err)
	require.Len(t, mock.calls, 1)
	first := mock.calls[0][0]
	assert.Equal(t, schema.System, first.Role)
	assert.Equal(t, "You are a test assistant.", first.Content)
}

func TestSendAccumulatesHistory(t *testing.T) {
	mock := newMockChatModel(
		mockResponse{Content: "Q1?\n- A\n- B"},
		mockResponse{Content: "Q2?\n- C\n- D"},
	)
	session := newTestSession(t, mock)
	ctx := context.Background()

	_, err := session.Send(ctx, "first")
	require.NoError(t, err)
	_, err = session.Send(ctx, "second")
	require.NoError(t, err)

	// 第二次调用应携带: system + user1 + assistant1 + user2
	require.Len(t, mock.calls, 2)
	assert.Len(t, mock.calls[1], 4)

	history, err := session.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestTransientErrorRetriedThenSucceeds(t *testing.T) {
	mock := newMockChatModel(
		mockResponse{Err: errors.New("status 503: model overloaded")},
		mockResponse{Content: "Q?\n- A\n- B"},
	)
	var statuses []string
	session := newTestSession(t, mock, WithRetryStatus(func(msg string) {
		statuses = append(statuses, msg)
	}))

	resp, err := session.Send(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, parser.KindQuestion, resp.Kind)
	assert.Len(t, mock.calls, 2)
	require.Len(t, statuses, 1)
	assert.Contains(t, statuses[0], "(Attempt 1/3)")
}

func TestTransientErrorExhaustsRetries(t *testing.T) {
	transient := errors.New("503 service unavailable")
	mock := newMockChatModel(
		mockResponse{Err: transient},
		mockResponse{Err: transient},
		mockResponse{Err: transient},
	)
	var statuses []string
	session := newTestSession(t, mock, WithRetryStatus(func(msg string) {
		statuses = append(statuses, msg)
	}))

	_, err := session.Send(context.Background(), "Hi")
	require.Error(t, err)

	var svcErr *TransientServiceError
	assert.ErrorAs(t, err, &svcErr)
	assert.Len(t, mock.calls, 3)
	// 三次尝试产生两条中间状态消息
	require.Len(t, statuses, 2)
	assert.Contains(t, statuses[0], "(Attempt 1/3)")
	assert.Contains(t, statuses[1], "(Attempt 2/3)")
}

func TestNonTransientErrorNotRetried(t *testing.T) {
	mock := newMockChatModel(
		mockResponse{Err: errors.New("429: quota exceeded for this project")},
	)
	session := newTestSession(t, mock)

	_, err := session.Send(context.Background(), "Hi")
	require.Error(t, err)

	var quotaErr *QuotaExceededError
	assert.ErrorAs(t, err, &quotaErr)
	assert.Len(t, mock.calls, 1)
}

func TestParseFailureKeepsSessionUsable(t *testing.T) {
	mock := newMockChatModel(
		mockResponse{Content: ""},
		mockResponse{Content: "Q?\n- A\n- B"},
	)
	session := newTestSession(t, mock)
	ctx := context.Background()

	resp, err := session.Send(ctx, "Hi")
	require.NoError(t, err)
	assert.Equal(t, parser.KindParseFailure, resp.Kind)
	assert.Equal(t, parser.ParseFailureMessage, resp.Message)

	resp, err = session.Send(ctx, "Again")
	require.NoError(t, err)
	assert.Equal(t, parser.KindQuestion, resp.Kind)
}

func TestCareerReportResponse(t *testing.T) {
	report := "Here you go:\n```json\n{\"recommended_careers\": [{\"field\": \"Software Development\", \"reason\": \"Strong interest in problem solving.\"}], \"reasons\": [\"Interest profile\"]}\n```"
	mock := newMockChatModel(mockResponse{Content: report})
	session := newTestSession(t, mock)

	resp, err := session.Send(context.Background(), "done")
	require.NoError(t, err)
	require.Equal(t, parser.KindCareerReport, resp.Kind)
	require.Len(t, resp.Report.RecommendedCareers, 1)
	assert.Equal(t, "Software Development", resp.Report.RecommendedCareers[0].Field)
	assert.False(t, resp.Supplementary)
}

func TestPostReportSupplementaryFlag(t *testing.T) {
	report := "{\"recommended_careers\": [{\"field\": \"Nursing\", \"reason\": \"Care orientation.\"}]}"
	mock := newMockChatModel(mockResponse{Content: report})
	session := NewConversationSession("post-session", types.PostReportMode, "context prompt", mock, NewInMemoryChatMemory(), WithBackoffBase(time.Millisecond))

	resp, err := session.Send(context.Background(), "what about nursing?")
	require.NoError(t, err)
	require.Equal(t, parser.KindCareerReport, resp.Kind)
	assert.True(t, resp.Supplementary)
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	transient := errors.New("model is overloaded, try again")
	mock := newMockChatModel(
		mockResponse{Err: transient},
		mockResponse{Err: transient},
	)
	session := NewConversationSession("cancel-session", types.AssessmentMode, "p", mock, NewInMemoryChatMemory(), WithBackoffBase(500*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := session.Send(ctx, "Hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, mock.calls, 1)
}

package processor

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"career-agent-go/internal/config"
	"career-agent-go/internal/parser"
)

// stubChatModel 返回固定回复或固定错误的模拟模型
type stubChatModel struct {
	content string
	err     error
	calls   int
}

func newStubChatModel() *stubChatModel {
	return &stubChatModel{content: "ok"}
}

func (s *stubChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.content, nil), nil
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not implemented in stubChatModel")
}

func (s *stubChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

func (s *stubChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return s, nil
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func newTestMarketImpl(marketModel model.ToolCallingChatModel) *marketServiceImpl {
	logger := testLogger()
	return &marketServiceImpl{
		components: Components{
			MarketModel:     marketModel,
			MarketExtractor: parser.NewMarketDataExtractor(),
		},
		config: &config.Config{},
		logger: &logger,
	}
}

const liveNarrative = `IT Sector:
- Growth Rate: 14.5%
- Salary Range: ₹7-22 LPA
- Job Openings: 2100
- Demand Level: High`

func TestFetchDatasetLiveNarrative(t *testing.T) {
	stub := newStubChatModel()
	stub.content = liveNarrative
	ms := newTestMarketImpl(stub)
	log := testLogger()

	dataset, narrative := ms.fetchDataset(context.Background(), "Pune", "Maharashtra", &log)
	require.NotNil(t, dataset)
	assert.True(t, dataset.FromLive)
	assert.Equal(t, liveNarrative, narrative)
	require.Len(t, dataset.Points, 1)
	assert.Equal(t, "Information Technology", dataset.Points[0].Sector)
	assert.InDelta(t, 14.5, dataset.Points[0].GrowthRate, 0.001)
	assert.Equal(t, "Pune", dataset.Points[0].Location)
}

func TestFetchDatasetModelError(t *testing.T) {
	stub := newStubChatModel()
	stub.err = errors.New("status 503: model overloaded")
	ms := newTestMarketImpl(stub)
	log := testLogger()

	dataset, narrative := ms.fetchDataset(context.Background(), "Pune", "Maharashtra", &log)
	require.NotNil(t, dataset)
	assert.False(t, dataset.FromLive)
	assert.Empty(t, narrative)
	assert.Len(t, dataset.Points, 5)
}

func TestFetchDatasetUnusableNarrative(t *testing.T) {
	stub := newStubChatModel()
	stub.content = "no market facts here at all"
	ms := newTestMarketImpl(stub)
	log := testLogger()

	dataset, _ := ms.fetchDataset(context.Background(), "Pune", "Maharashtra", &log)
	require.NotNil(t, dataset)
	// 叙述不可用时退回静态兜底，五个行业齐全
	assert.False(t, dataset.FromLive)
	assert.Len(t, dataset.Points, 5)
}

func TestFetchDatasetModelMissing(t *testing.T) {
	ms := newTestMarketImpl(nil)
	log := testLogger()

	dataset, narrative := ms.fetchDataset(context.Background(), "Pune", "Maharashtra", &log)
	require.NotNil(t, dataset)
	assert.False(t, dataset.FromLive)
	assert.Empty(t, narrative)
}

func TestHandleRefreshMessageBadPayload(t *testing.T) {
	ms := newTestMarketImpl(newStubChatModel())

	// 损坏的载荷与缺字段的载荷都应直接确认丢弃，不触发刷新
	assert.True(t, ms.HandleRefreshMessage([]byte("{not json")))
	assert.True(t, ms.HandleRefreshMessage([]byte(`{"state":"Maharashtra"}`)))
	assert.Equal(t, 0, ms.components.MarketModel.(*stubChatModel).calls)
}

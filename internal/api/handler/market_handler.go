package handler

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"career-agent-go/internal/config"
	"career-agent-go/internal/processor"
	"career-agent-go/internal/storage"
)

// MarketHandler 负责处理劳动力市场数据相关的请求
type MarketHandler struct {
	cfg     *config.Config
	storage *storage.Storage
	service processor.MarketService
	logger  *log.Logger
}

// NewMarketHandler 创建一个新的 MarketHandler 实例
func NewMarketHandler(cfg *config.Config, storage *storage.Storage, service processor.MarketService) *MarketHandler {
	return &MarketHandler{
		cfg:     cfg,
		storage: storage,
		service: service,
		logger:  log.New(os.Stdout, "[MarketHandler] ", log.LstdFlags|log.Lshortfile),
	}
}

// HandleGetMarketData 获取某地区的市场数据集
// GET /api/v1/market?city=Pune&state=Maharashtra
func (h *MarketHandler) HandleGetMarketData(ctx context.Context, c *app.RequestContext) {
	city := strings.TrimSpace(c.Query("city"))
	state := strings.TrimSpace(c.Query("state"))
	if city == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "city 不能为空"})
		return
	}

	dataset, err := h.service.GetMarketData(ctx, city, state)
	if err != nil {
		h.logger.Printf("获取市场数据失败 (%s, %s): %v", city, state, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "获取市场数据失败"})
		return
	}

	c.JSON(consts.StatusOK, dataset)
}

// RefreshMarketBody 手动触发市场刷新的请求体
type RefreshMarketBody struct {
	City   string `json:"city"`
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// HandleRefreshMarketData 手动触发某地区的市场数据刷新
// 只投递刷新事件，实际刷新由消费者异步执行
// POST /api/v1/market/refresh
func (h *MarketHandler) HandleRefreshMarketData(ctx context.Context, c *app.RequestContext) {
	var body RefreshMarketBody
	if err := c.Bind(&body); err != nil {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}
	if strings.TrimSpace(body.City) == "" {
		c.JSON(consts.StatusBadRequest, map[string]string{"error": "city 不能为空"})
		return
	}
	if body.Reason == "" {
		body.Reason = "manual_refresh"
	}
	if h.storage == nil || h.storage.RabbitMQ == nil {
		c.JSON(consts.StatusServiceUnavailable, map[string]string{"error": "消息队列不可用"})
		return
	}

	message := storage.MarketRefreshMessage{
		City:        strings.TrimSpace(body.City),
		State:       strings.TrimSpace(body.State),
		Reason:      body.Reason,
		RequestedAt: time.Now(),
	}
	if err := h.storage.RabbitMQ.PublishJSON(
		ctx,
		h.cfg.RabbitMQ.GuidanceEventsExchange,
		h.cfg.RabbitMQ.MarketRefreshRoutingKey,
		message,
		true, // 持久化
	); err != nil {
		h.logger.Printf("投递市场刷新事件失败 (%s, %s): %v", body.City, body.State, err)
		c.JSON(consts.StatusInternalServerError, map[string]string{"error": "投递刷新事件失败"})
		return
	}

	c.JSON(consts.StatusAccepted, map[string]interface{}{
		"status": "refresh_scheduled",
		"city":   message.City,
		"state":  message.State,
	})
}

package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"career-agent-go/internal/api/handler"
)

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, guidanceHandler *handler.GuidanceHandler, marketHandler *handler.MarketHandler) {
	api := h.Group("/api/v1")

	// 测评会话
	api.POST("/assessments", guidanceHandler.HandleStartSession)
	api.POST("/assessments/:session_id/setup", guidanceHandler.HandleAdvanceSetup)
	api.POST("/assessments/:session_id/messages", guidanceHandler.HandleSendMessage)
	api.GET("/assessments/:session_id/report", guidanceHandler.HandleGetReport)

	// 家庭组
	api.POST("/families", guidanceHandler.HandleCreateFamilyGroup)
	api.POST("/families/:family_code/members", guidanceHandler.HandleJoinFamilyGroup)
	api.GET("/families/:family_code", guidanceHandler.HandleGetFamilyGroup)

	// 市场数据
	api.GET("/market", marketHandler.HandleGetMarketData)
	api.POST("/market/refresh", marketHandler.HandleRefreshMarketData)

	// 健康检查
	api.GET("/health", func(c context.Context, ctx *app.RequestContext) {
		ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
	})
}

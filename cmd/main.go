package main

import (
	"career-agent-go/internal/api/handler"
	"career-agent-go/internal/api/router"
	"career-agent-go/internal/config"
	"career-agent-go/internal/outbox"
	"career-agent-go/internal/processor"
	"career-agent-go/internal/storage"
	"career-agent-go/internal/tracing"
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/google/uuid"
	"github.com/spf13/pflag"

	appCoreLogger "career-agent-go/internal/logger"

	glog "github.com/cloudwego/hertz/pkg/common/hlog"
	hertzadapter "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
)

// @title Career Guidance Agent API
// @version 1.0
// @description API for the career guidance assessment and market data service.
// @BasePath /api/v1
func main() {
	initLogger()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "internal/config/config.yaml", "Path to config file")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		glog.Fatalf("加载配置失败: %v", err)
	}
	glog.Info("配置加载成功")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitTracerProvider(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化追踪失败: %v", err)
	}
	defer func() {
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelFlush()
		if err := shutdownTracing(flushCtx); err != nil {
			glog.Warnf("关闭追踪Provider失败: %v", err)
		}
	}()
	glog.Info("追踪Provider初始化成功")

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		glog.Fatalf("初始化存储失败: %v", err)
	}
	defer storageManager.Close()
	glog.Info("存储服务初始化成功")

	// 启动发件箱消息中继，报告就绪与市场刷新事件经由它投递
	relayLogger := log.New(appCoreLogger.Logger, "[MessageRelay] ", log.LstdFlags|log.Lshortfile)
	messageRelay := outbox.NewMessageRelay(storageManager.MySQL.DB(), storageManager.RabbitMQ, relayLogger)
	messageRelay.Start()
	glog.Info("消息中继服务已启动")

	guidanceLogger := appCoreLogger.Component("guidance_service")
	guidanceService, err := processor.NewGuidanceService(cfg, storageManager, &guidanceLogger)
	if err != nil {
		glog.Fatalf("初始化指导服务失败: %v", err)
	}
	glog.Info("指导服务初始化成功")

	marketLogger := appCoreLogger.Component("market_service")
	marketService, err := processor.NewMarketService(cfg, storageManager, &marketLogger)
	if err != nil {
		glog.Fatalf("初始化市场数据服务失败: %v", err)
	}
	glog.Info("市场数据服务初始化成功")

	guidanceHandler := handler.NewGuidanceHandler(cfg, guidanceService)
	marketHandler := handler.NewMarketHandler(cfg, storageManager, marketService)
	glog.Info("HTTP处理器初始化成功")

	// 启动市场刷新消费者，报告生成与手动刷新请求都走这条队列
	go func() {
		if storageManager.RabbitMQ == nil {
			glog.Warn("RabbitMQ未初始化，跳过市场刷新消费者")
			return
		}

		workers := 2
		if w, ok := cfg.RabbitMQ.ConsumerWorkers["market_consumer_workers"]; ok && w > 0 {
			workers = w
		}
		prefetch := cfg.RabbitMQ.PrefetchCount
		if prefetch <= 0 {
			prefetch = 10
		}

		glog.Infof("启动市场刷新消费者，工作线程数: %d, 预取数量: %d", workers, prefetch)
		for i := 0; i < workers; i++ {
			if _, err := storageManager.RabbitMQ.StartConsumer(
				cfg.RabbitMQ.MarketRefreshQueue,
				prefetch,
				marketService.HandleRefreshMessage,
			); err != nil {
				glog.Fatalf("启动市场刷新消费者失败: %v", err)
			}
		}
		glog.Info("市场刷新消费者已启动")
	}()

	serverTracer, serverTracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
		serverTracer,
	)
	h.Use(hertztracing.ServerMiddleware(serverTracerCfg))
	h.Use(func(c context.Context, ctx *app.RequestContext) {
		requestID := string(ctx.GetHeader("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx.Header("X-Request-ID", requestID)
		glog.CtxInfof(c, "Request: %s %s [%s]", string(ctx.Method()), string(ctx.Path()), requestID)
		ctx.Next(c)
		glog.CtxInfof(c, "Response: status %d [%s]", ctx.Response.StatusCode(), requestID)
	})

	router.RegisterRoutes(h, guidanceHandler, marketHandler)
	glog.Info("HTTP路由注册成功")

	glog.Infof("HTTP 服务器启动中，监听地址: %s", cfg.Server.Address)

	go func() {
		if err := h.Run(); err != nil {
			glog.Fatalf("启动HTTP服务器失败: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	glog.Info("接收到终止信号，正在优雅退出...")

	// 先停止消息中继，避免关闭存储连接后继续轮询
	messageRelay.Stop()
	glog.Info("消息中继服务已停止")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Fatalf("服务器关闭失败: %v", err)
	}
	glog.Info("优雅退出完成")
}

func initLogger() {
	logFilePath := "logs/app.log"
	if err := os.MkdirAll("logs", 0755); err != nil {
		log.Fatalf("无法创建日志目录: %v", err)
	}
	fileWriter, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalf("无法打开日志文件 %s: %v", logFilePath, err)
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}

	multiWriter := zerolog.MultiLevelWriter(consoleWriter, fileWriter)

	level := zerolog.DebugLevel
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = "15:04:05"

	logger := zerolog.New(multiWriter).With().Timestamp().Caller().Logger()

	// 同步到应用全局logger与zerolog的stdlib包装
	appCoreLogger.Logger = logger
	zlog.Logger = logger

	// 将Hertz的框架日志接入同一个zerolog实例
	hertzCompatibleLogger := hertzadapter.From(appCoreLogger.Logger)
	glog.SetLogger(hertzCompatibleLogger)
	glog.SetLevel(glog.LevelDebug)

	log.Println("Logger initialized with Zerolog, writing to console and file:", logFilePath)
}

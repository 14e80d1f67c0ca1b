package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"career-agent-go/internal/agent"
	"career-agent-go/internal/config"
	"career-agent-go/internal/constants"
	"career-agent-go/internal/parser"
	"career-agent-go/internal/storage"
	"career-agent-go/internal/storage/models"
	"career-agent-go/internal/types"
)

// refreshLockExpiration 单次刷新持锁时长上限
const refreshLockExpiration = 2 * time.Minute

// marketServiceImpl 是MarketService的实现
// 数据层次：Redis缓存 -> 实时抓取解析 -> 静态兜底数据集
type marketServiceImpl struct {
	components Components
	config     *config.Config
	logger     *zerolog.Logger
}

// NewMarketService 创建新的市场数据服务实例
func NewMarketService(cfg *config.Config, store *storage.Storage, logger *zerolog.Logger, opts ...ComponentOpt) (MarketService, error) {
	if logger == nil {
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

	return &marketServiceImpl{
		components: components,
		config:     cfg,
		logger:     logger,
	}, nil
}

// GetMarketData 实现MarketService接口
func (ms *marketServiceImpl) GetMarketData(ctx context.Context, city, state string) (*types.MarketDataset, error) {
	ctx, span := tracer.Start(ctx, "GetMarketData")
	defer span.End()
	span.SetAttributes(
		attribute.String("market.city", city),
		attribute.String("market.state", state),
	)

	dataset, err := ms.components.Storage.Redis.GetMarketDataset(ctx, city, state)
	if err == nil {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return dataset, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		ms.logger.Warn().Err(err).Str("city", city).Msg("读市场数据缓存失败，转为实时刷新")
	}
	span.SetAttributes(attribute.Bool("cache_hit", false))

	return ms.RefreshMarketData(ctx, city, state, "cache_miss")
}

// RefreshMarketData 实现MarketService接口
func (ms *marketServiceImpl) RefreshMarketData(ctx context.Context, city, state, reason string) (*types.MarketDataset, error) {
	ctx, span := tracer.Start(ctx, "RefreshMarketData")
	defer span.End()
	span.SetAttributes(
		attribute.String("market.city", city),
		attribute.String("market.state", state),
		attribute.String("market.refresh_reason", reason),
	)

	log := ms.logger.With().Str("city", city).Str("state", state).Str("reason", reason).Logger()

	// 同一地区同时只允许一个刷新在跑
	lockValue, err := ms.components.Storage.Redis.AcquireMarketRefreshLock(ctx, city, state, refreshLockExpiration)
	if err != nil {
		log.Warn().Err(err).Msg("获取市场刷新锁失败，降级为无锁刷新")
	} else if lockValue == "" {
		// 别处正在刷新：再查一次缓存，仍未命中时返回静态兜底，不写缓存
		if dataset, cacheErr := ms.components.Storage.Redis.GetMarketDataset(ctx, city, state); cacheErr == nil {
			return dataset, nil
		}
		log.Info().Msg("地区刷新锁被占用且缓存未命中，返回静态兜底数据集")
		return ms.fallbackDataset(city, state), nil
	}
	if lockValue != "" {
		defer func() {
			if _, releaseErr := ms.components.Storage.Redis.ReleaseMarketRefreshLock(context.WithoutCancel(ctx), city, state, lockValue); releaseErr != nil {
				log.Warn().Err(releaseErr).Msg("释放市场刷新锁失败")
			}
		}()
	}

	dataset, narrative := ms.fetchDataset(ctx, city, state, &log)

	cacheTTL := constants.MarketDatasetTTL
	if ms.config != nil && ms.config.Market.CacheTTLHours > 0 {
		cacheTTL = time.Duration(ms.config.Market.CacheTTLHours) * time.Hour
	}
	if err := ms.components.Storage.Redis.SaveMarketDataset(ctx, dataset, cacheTTL); err != nil {
		log.Warn().Err(err).Msg("写市场数据缓存失败")
	}

	// 留档快照；叙述文本按配置归档到对象存储
	var narrativeKey string
	if dataset.FromLive && narrative != "" && ms.config != nil && ms.config.Market.ArchiveNarratives && ms.components.Storage.MinIO != nil {
		objectKey, _, archiveErr := ms.components.Storage.MinIO.ArchiveNarrative(ctx, city, state, narrative)
		if archiveErr != nil {
			log.Warn().Err(archiveErr).Msg("归档市场叙述文本失败")
		} else {
			narrativeKey = objectKey
		}
	}
	if err := ms.insertSnapshot(ctx, dataset, narrativeKey); err != nil {
		log.Warn().Err(err).Msg("写市场数据快照失败")
	}

	span.SetAttributes(attribute.Bool("market.from_live", dataset.FromLive))
	log.Info().Bool("from_live", dataset.FromLive).Int("points", len(dataset.Points)).Msg("市场数据集已刷新")
	return dataset, nil
}

// fetchDataset 抓取并解析某地区的市场数据
// 模型调用失败或提取整体不可信时退回静态兜底数据集，同时返回原始叙述文本
func (ms *marketServiceImpl) fetchDataset(ctx context.Context, city, state string, log *zerolog.Logger) (*types.MarketDataset, string) {
	fetchedAt := time.Now().UTC().Format(time.RFC3339)

	if ms.components.MarketModel == nil {
		log.Warn().Msg("市场数据模型未初始化，使用静态兜底数据集")
		return ms.fallbackDataset(city, state), ""
	}

	reply, err := ms.components.MarketModel.Generate(ctx, []*schema.Message{
		schema.UserMessage(agent.MarketDataPrompt(city, state)),
	})
	if err != nil {
		log.Warn().Err(err).Msg("市场数据抓取失败，使用静态兜底数据集")
		return ms.fallbackDataset(city, state), ""
	}

	narrative := reply.Content
	points := ms.components.MarketExtractor.Extract(narrative, city)
	return &types.MarketDataset{
		City:      city,
		State:     state,
		Points:    points,
		FromLive:  parser.FromLiveExtraction(points),
		FetchedAt: fetchedAt,
	}, narrative
}

// fallbackDataset 构建静态兜底数据集
func (ms *marketServiceImpl) fallbackDataset(city, state string) *types.MarketDataset {
	return &types.MarketDataset{
		City:      city,
		State:     state,
		Points:    parser.StaticFallbackDataset(city),
		FromLive:  false,
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// insertSnapshot 把数据集留档到快照表
func (ms *marketServiceImpl) insertSnapshot(ctx context.Context, dataset *types.MarketDataset, narrativeKey string) error {
	datasetJSON, err := models.ToJSON(dataset)
	if err != nil {
		return fmt.Errorf("序列化市场数据集失败: %w", err)
	}
	return ms.components.Storage.MySQL.InsertMarketSnapshot(ctx, &models.MarketSnapshot{
		City:               dataset.City,
		State:              dataset.State,
		DatasetJSON:        datasetJSON,
		FromLive:           dataset.FromLive,
		NarrativeObjectKey: narrativeKey,
		FetchedAt:          time.Now(),
	})
}

// HandleRefreshMessage 实现MarketService接口
// 作为RabbitMQ消费回调：载荷损坏直接确认丢弃，刷新失败重新入队
func (ms *marketServiceImpl) HandleRefreshMessage(payload []byte) bool {
	var msg storage.MarketRefreshMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		ms.logger.Error().Err(err).Msg("市场刷新事件载荷解析失败，丢弃消息")
		return true
	}
	if msg.City == "" {
		ms.logger.Error().Msg("市场刷新事件缺少城市字段，丢弃消息")
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := ms.RefreshMarketData(ctx, msg.City, msg.State, msg.Reason); err != nil {
		ms.logger.Error().Err(err).Str("city", msg.City).Msg("处理市场刷新事件失败")
		return false
	}
	return true
}

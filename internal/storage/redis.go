package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"career-agent-go/internal/config"
	"career-agent-go/internal/constants"
	"career-agent-go/internal/tracing"
	"career-agent-go/internal/types"

	"github.com/redis/go-redis/extra/redisotel/v9" // Redis OpenTelemetry钩子包
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound is returned when a key is not found in Redis.
// It wraps the underlying redis.Nil error for abstraction.
var ErrNotFound = redis.Nil

// 为Redis操作定义专用tracer
var redisTracer = otel.Tracer("career-agent-go/storage/redis")

// Redis操作前缀采样率配置
var redisKeySamplingRates = map[string]float64{
	"career:family:": 0.1,  // 家庭组相关操作采样10%
	"career:chat:":   0.05, // 会话历史操作采样5%
	"career:market:": 0.25, // 市场数据操作采样25%
	"career:report:": 0.25, // 报告交接操作采样25%
}

// 随机数生成器
var (
	rnd      *rand.Rand
	rndMutex sync.Mutex
)

func init() {
	source := rand.NewSource(time.Now().UnixNano())
	rnd = rand.New(source)
}

// shouldSampleRedisOp 根据key前缀决定是否需要创建span
func shouldSampleRedisOp(key string) bool {
	if key == "" {
		return false
	}
	for prefix, rate := range redisKeySamplingRates {
		if strings.HasPrefix(key, prefix) {
			return randFloat() < rate
		}
	}
	// 默认采样率5%
	return randFloat() < 0.05
}

// 生成0-1之间的随机数
func randFloat() float64 {
	rndMutex.Lock()
	defer rndMutex.Unlock()
	return rnd.Float64()
}

// Redis wraps the Redis client
type Redis struct {
	Client *redis.Client
	config *config.RedisConfig
}

// NewRedisAdapter creates a new Redis client connection
func NewRedisAdapter(cfg *config.RedisConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	opt := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,

		// 连接池设置
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		// 超时设置
		DialTimeout:  time.Duration(cfg.DialTimeoutSeconds) * time.Second,
		ReadTimeout:  time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeoutSeconds) * time.Second,

		// 重试设置
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: time.Duration(cfg.MinRetryBackoffMS) * time.Millisecond,
		MaxRetryBackoff: time.Duration(cfg.MaxRetryBackoffMS) * time.Millisecond,

		// 连接生命周期
		ConnMaxLifetime: time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime: time.Duration(cfg.ConnMaxIdleTimeMinutes) * time.Minute,
	}

	client := redis.NewClient(opt)

	// 添加OpenTelemetry钩子, 记录所有Redis操作
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("failed to instrument Redis with OpenTelemetry: %w", err)
	}

	// Ping to check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	return &Redis{
		Client: client,
		config: cfg,
	}, nil
}

// Close closes the Redis client connection
func (r *Redis) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

// Ping checks the Redis connection
func (r *Redis) Ping(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	return r.Client.Ping(ctx).Err()
}

// SaveFamilyGroup 保存家庭组记录 (JSON blob)
func (r *Redis) SaveFamilyGroup(ctx context.Context, group *types.FamilyGroup) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if group == nil || group.FamilyCode == "" {
		return fmt.Errorf("家庭组记录无效")
	}
	payload, err := json.Marshal(group)
	if err != nil {
		return fmt.Errorf("序列化家庭组失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyFamilyGroup, group.FamilyCode)
	return r.Set(ctx, key, string(payload), constants.FamilyGroupTTL)
}

// GetFamilyGroup 读取家庭组记录，不存在时返回 ErrNotFound
func (r *Redis) GetFamilyGroup(ctx context.Context, familyCode string) (*types.FamilyGroup, error) {
	key := fmt.Sprintf(constants.KeyFamilyGroup, familyCode)
	raw, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var group types.FamilyGroup
	if err := json.Unmarshal([]byte(raw), &group); err != nil {
		return nil, fmt.Errorf("反序列化家庭组失败: %w", err)
	}
	return &group, nil
}

// SetFamilyAssessmentType 记录当前家庭正在进行的测评类型
func (r *Redis) SetFamilyAssessmentType(ctx context.Context, familyCode string, assessmentType types.AssessmentType) error {
	key := fmt.Sprintf(constants.KeyFamilyAssessmentType, familyCode)
	return r.Set(ctx, key, string(assessmentType), constants.FamilyGroupTTL)
}

// GetFamilyAssessmentType 读取当前家庭的测评类型标记
func (r *Redis) GetFamilyAssessmentType(ctx context.Context, familyCode string) (types.AssessmentType, error) {
	key := fmt.Sprintf(constants.KeyFamilyAssessmentType, familyCode)
	val, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return types.AssessmentType(val), nil
}

// SaveReportHandoff 写入报告交接载荷，供看板流程原样读回
func (r *Redis) SaveReportHandoff(ctx context.Context, handoff *types.ReportHandoff) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if handoff == nil || handoff.SessionID == "" {
		return fmt.Errorf("报告交接载荷无效")
	}
	payload, err := json.Marshal(handoff)
	if err != nil {
		return fmt.Errorf("序列化报告交接载荷失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyReportHandoff, handoff.SessionID)
	return r.Set(ctx, key, string(payload), constants.ReportHandoffTTL)
}

// GetReportHandoff 读取报告交接载荷，不存在时返回 ErrNotFound
func (r *Redis) GetReportHandoff(ctx context.Context, sessionID string) (*types.ReportHandoff, error) {
	key := fmt.Sprintf(constants.KeyReportHandoff, sessionID)
	raw, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var handoff types.ReportHandoff
	if err := json.Unmarshal([]byte(raw), &handoff); err != nil {
		return nil, fmt.Errorf("反序列化报告交接载荷失败: %w", err)
	}
	return &handoff, nil
}

// SaveMarketDataset 缓存某一地区的市场数据集
func (r *Redis) SaveMarketDataset(ctx context.Context, dataset *types.MarketDataset, ttl time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis client is not initialized")
	}
	if dataset == nil || dataset.City == "" {
		return fmt.Errorf("市场数据集无效")
	}
	if ttl <= 0 {
		ttl = constants.MarketDatasetTTL
	}
	payload, err := json.Marshal(dataset)
	if err != nil {
		return fmt.Errorf("序列化市场数据集失败: %w", err)
	}
	key := fmt.Sprintf(constants.KeyMarketDataset, normalizeRegionPart(dataset.City), normalizeRegionPart(dataset.State))
	return r.Set(ctx, key, string(payload), ttl)
}

// GetMarketDataset 读取缓存的市场数据集，不存在时返回 ErrNotFound
func (r *Redis) GetMarketDataset(ctx context.Context, city, state string) (*types.MarketDataset, error) {
	key := fmt.Sprintf(constants.KeyMarketDataset, normalizeRegionPart(city), normalizeRegionPart(state))
	raw, err := r.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var dataset types.MarketDataset
	if err := json.Unmarshal([]byte(raw), &dataset); err != nil {
		return nil, fmt.Errorf("反序列化市场数据集失败: %w", err)
	}
	return &dataset, nil
}

// normalizeRegionPart 规范化key中的地区片段，避免大小写和空格造成缓存分裂
func normalizeRegionPart(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.ReplaceAll(s, " ", "_")
}

// AcquireMarketRefreshLock 获取某一地区市场刷新的分布式锁
// 返回锁持有者标识，未获取到锁时返回空串
func (r *Redis) AcquireMarketRefreshLock(ctx context.Context, city, state string, expiration time.Duration) (string, error) {
	key := fmt.Sprintf(constants.KeyMarketRefreshLock, normalizeRegionPart(city), normalizeRegionPart(state))
	return r.AcquireLock(ctx, key, expiration)
}

// ReleaseMarketRefreshLock 释放某一地区市场刷新的分布式锁
func (r *Redis) ReleaseMarketRefreshLock(ctx context.Context, city, state, lockValue string) (bool, error) {
	key := fmt.Sprintf(constants.KeyMarketRefreshLock, normalizeRegionPart(city), normalizeRegionPart(state))
	return r.ReleaseLock(ctx, key, lockValue)
}

// Get 获取键的值
func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	// 根据key前缀决定是否创建span
	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Get", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "GET"),
			attribute.String("db.redis.key", tracing.SafeRedisKey(key)),
			// 设置标志位，表示不要在子span中传播，避免与redisotel hook产生的span重复
			attribute.Bool("otel.propagate_to_child", false),
		)
	}

	val, err := r.Client.Get(ctx, key).Result()

	if span != nil {
		if err != nil {
			// 对于key不存在的情况，不应该算作错误
			if err == redis.Nil {
				span.SetStatus(codes.Ok, "key not found")
				span.SetAttributes(attribute.Bool("db.redis.key_exists", false))
			} else {
				tracing.RecordError(span, err, tracing.ErrorTypeRedis)
			}
			return "", err
		}

		span.SetAttributes(
			attribute.Bool("db.redis.key_exists", true),
			attribute.Int("db.redis.value_length", len(val)),
		)
		span.SetStatus(codes.Ok, "")
	}

	if err != nil {
		return "", err
	}
	return val, nil
}

// Set 设置键的值
func (r *Redis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	if r.Client == nil {
		return fmt.Errorf("redis客户端未初始化")
	}

	var span trace.Span

	if shouldSampleRedisOp(key) {
		ctx, span = redisTracer.Start(ctx, "Redis.Set", trace.WithSpanKind(trace.SpanKindClient))
		defer span.End()

		span.SetAttributes(
			semconv.DBSystemRedis,
			attribute.String("db.operation", "SET"),
			attribute.String("db.redis.key", key),
			attribute.Int("db.redis.value_length", len(value)),
			attribute.Bool("otel.propagate_to_child", false),
		)

		if expiration > 0 {
			span.SetAttributes(attribute.Int64("db.redis.expiration_ms", expiration.Milliseconds()))
		}
	}

	err := r.Client.Set(ctx, key, value, expiration).Err()

	if span != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
	}

	return err
}

// AcquireLock 尝试获取一个分布式锁
func (r *Redis) AcquireLock(ctx context.Context, lockKey string, expiration time.Duration) (string, error) {
	if r.Client == nil {
		return "", fmt.Errorf("redis client is not initialized")
	}
	// 生成一个随机值作为锁的持有者标识
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())
	// 尝试设置一个带过期时间的key，NX保证了原子性
	ok, err := r.Client.SetNX(ctx, lockKey, lockValue, expiration).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return lockValue, nil
	}
	// 未能获取锁
	return "", nil
}

// ReleaseLock 释放一个分布式锁，使用Lua脚本保证原子性
func (r *Redis) ReleaseLock(ctx context.Context, lockKey string, lockValue string) (bool, error) {
	if r.Client == nil {
		return false, fmt.Errorf("redis client is not initialized")
	}
	// Lua脚本: 如果key存在且值匹配，则删除key
	script := `
        if redis.call("get", KEYS[1]) == ARGV[1] then
            return redis.call("del", KEYS[1])
        else
            return 0
        end
    `
	res, err := r.Client.Eval(ctx, script, []string{lockKey}, lockValue).Result()
	if err != nil {
		return false, err
	}

	if released, ok := res.(int64); ok && released == 1 {
		return true, nil
	}

	return false, nil // 锁不存在或不属于当前持有者
}

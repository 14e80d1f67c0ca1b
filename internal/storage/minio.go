package storage

import (
	"career-agent-go/internal/config"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"
)

// ObjectStorage 对象存储接口
type ObjectStorage interface {
	// ArchiveNarrative 归档一份原始市场叙述文本，返回对象键与内容MD5
	ArchiveNarrative(ctx context.Context, city, state, narrative string) (string, string, error)

	// GetNarrative 按对象键读回归档的叙述文本
	GetNarrative(ctx context.Context, objectKey string) (string, error)

	// GetPresignedURL 获取预签名URL
	GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)

	// DeleteObject 删除归档对象
	DeleteObject(ctx context.Context, objectName string) error

	// Close placeholder for symmetry with other adapters
}

// 确保MinIO实现了ObjectStorage接口
var _ ObjectStorage = (*MinIO)(nil)

// MinIO 提供对象存储功能
type MinIO struct {
	client           *minio.Client
	cfg              *config.MinIOConfig
	narrativesBucket string
	logger           *log.Logger
}

// NewMinIO 创建MinIO客户端
func NewMinIO(cfg *config.MinIOConfig, logger *log.Logger) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logger.Printf("[MinIO] Initializing MinIO client with endpoint: %s, narrativesBucket: %s", cfg.Endpoint, cfg.NarrativesBucket)

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		logger.Printf("[MinIO] Initialization failed: %v", err)
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	narrativesBucket := cfg.NarrativesBucket
	if narrativesBucket == "" {
		narrativesBucket = "market-narratives"
	}

	m := &MinIO{
		client:           client,
		cfg:              cfg,
		narrativesBucket: narrativesBucket,
		logger:           logger,
	}

	// 确保存储桶存在
	if err := m.ensureBucketExists(narrativesBucket, cfg.Location); err != nil {
		logger.Printf("[MinIO] Failed to ensure narratives bucket %s exists: %v", narrativesBucket, err)
		return nil, fmt.Errorf("确保叙述归档存储桶 %s 存在失败: %w", narrativesBucket, err)
	}

	// 设置生命周期规则
	if cfg.NarrativeExpireDays > 0 {
		if err := m.setupBucketLifecycle(context.Background(), narrativesBucket, "expire-narratives", cfg.NarrativeExpireDays); err != nil {
			logger.Printf("[MinIO] Warning: Failed to set up lifecycle rules: %v", err)
		}
	}

	logger.Printf("[MinIO] Client initialized successfully for endpoint: %s", cfg.Endpoint)
	return m, nil
}

// ensureBucketExists 确保存储桶存在
func (m *MinIO) ensureBucketExists(bucketName, location string) error {
	m.logger.Printf("[MinIO] Ensuring bucket exists: %s (Location: %s)", bucketName, location)
	exists, err := m.client.BucketExists(context.Background(), bucketName)
	if err != nil {
		m.logger.Printf("[MinIO] Error checking if bucket %s exists: %v", bucketName, err)
		return fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", bucketName, err)
	}
	if !exists {
		m.logger.Printf("[MinIO] Bucket %s does not exist, attempting to create...", bucketName)
		err = m.client.MakeBucket(context.Background(), bucketName, minio.MakeBucketOptions{Region: location})
		if err != nil {
			m.logger.Printf("[MinIO] Error creating bucket %s: %v", bucketName, err)
			return fmt.Errorf("创建存储桶 %s 失败: %w", bucketName, err)
		}
		m.logger.Printf("[MinIO] Bucket %s created successfully.", bucketName)
	} else {
		m.logger.Printf("[MinIO] Bucket %s already exists.", bucketName)
	}
	return nil
}

// setupBucketLifecycle 为指定存储桶设置生命周期规则
func (m *MinIO) setupBucketLifecycle(ctx context.Context, bucketName, ruleID string, expiryDays int) error {
	m.logger.Printf("[MinIO] Setting lifecycle rule for bucket %s: ID=%s, ExpiryDays=%d", bucketName, ruleID, expiryDays)
	config := lifecycle.NewConfiguration()
	config.Rules = []lifecycle.Rule{
		{
			ID:     ruleID,
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(expiryDays),
			},
		},
	}

	err := m.client.SetBucketLifecycle(ctx, bucketName, config)
	if err != nil {
		m.logger.Printf("[MinIO] Error setting lifecycle for bucket %s: %v", bucketName, err)
		return err
	}
	m.logger.Printf("[MinIO] Successfully set lifecycle for bucket %s.", bucketName)
	return nil
}

// narrativeObjectKey 生成叙述文本的对象键
// 形如 market/{city}/{state}/{unix_nano}.txt，保留历史版本
func narrativeObjectKey(city, state string) string {
	clean := func(s string) string {
		s = strings.TrimSpace(strings.ToLower(s))
		return strings.ReplaceAll(s, " ", "_")
	}
	return fmt.Sprintf("market/%s/%s/%d.txt", clean(city), clean(state), time.Now().UnixNano())
}

// ArchiveNarrative 归档一份原始市场叙述文本，同时计算内容MD5
// 返回: objectKey, md5Hex, error
func (m *MinIO) ArchiveNarrative(ctx context.Context, city, state, narrative string) (string, string, error) {
	objectName := narrativeObjectKey(city, state)

	md5Hash := md5.New()
	teeReader := io.TeeReader(strings.NewReader(narrative), md5Hash)

	if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
		m.logger.Printf("[MinIO-ArchiveNarrative] Uploading: City='%s', State='%s', ObjectName='%s', Bucket='%s', Length=%d",
			city, state, objectName, m.narrativesBucket, len(narrative))
	}

	info, err := m.client.PutObject(ctx, m.narrativesBucket, objectName, teeReader,
		int64(len(narrative)), minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return "", "", fmt.Errorf("归档叙述文本到MinIO失败: %w", err)
	}

	md5Hex := hex.EncodeToString(md5Hash.Sum(nil))

	if m.cfg.EnableTestLogging && m.logger.Writer() != io.Discard {
		m.logger.Printf("[MinIO-ArchiveNarrative] Successfully uploaded %s, ETag: %s, Size: %d, MD5: %s",
			objectName, info.ETag, info.Size, md5Hex)
	}

	return objectName, md5Hex, nil
}

// GetNarrative 按对象键读回归档的叙述文本
func (m *MinIO) GetNarrative(ctx context.Context, objectKey string) (string, error) {
	m.logger.Printf("[MinIO] Getting narrative: Bucket=%s, ObjectKey=%s", m.narrativesBucket, objectKey)

	obj, err := m.client.GetObject(ctx, m.narrativesBucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("获取对象 %s/%s 失败: %w", m.narrativesBucket, objectKey, err)
	}
	defer obj.Close()

	// Stat 可以区分对象不存在与读取失败
	stat, err := obj.Stat()
	if err != nil {
		m.logger.Printf("[MinIO] Failed to stat object %s/%s after GetObject: %v", m.narrativesBucket, objectKey, err)
		return "", fmt.Errorf("获取对象 %s/%s 状态失败: %w", m.narrativesBucket, objectKey, err)
	}
	m.logger.Printf("[MinIO] Object %s/%s stats: Size=%d, ContentType=%s", m.narrativesBucket, objectKey, stat.Size, stat.ContentType)

	data, err := io.ReadAll(obj)
	if err != nil {
		return "", fmt.Errorf("读取对象 %s/%s 数据失败: %w", m.narrativesBucket, objectKey, err)
	}
	return string(data), nil
}

// GetPresignedURL 获取预签名URL
func (m *MinIO) GetPresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	m.logger.Printf("[MinIO] Generating presigned URL for: %s, Expiry: %s", objectName, expiry)

	presignedURL, err := m.client.PresignedGetObject(ctx, m.narrativesBucket, objectName, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("生成MinIO预签名URL失败: %w", err)
	}
	return presignedURL.String(), nil
}

// DeleteObject 删除归档对象
func (m *MinIO) DeleteObject(ctx context.Context, objectName string) error {
	m.logger.Printf("[MinIO] Deleting object: %s", objectName)

	err := m.client.RemoveObject(ctx, m.narrativesBucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectName, err)
	}
	return nil
}

// StatObject 暴露底层的StatObject方法，用于测试或特定场景
func (m *MinIO) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return m.client.StatObject(ctx, bucketName, objectName, opts)
}

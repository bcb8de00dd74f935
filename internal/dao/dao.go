package dao

import (
	"fmt"

	"github.com/djeada/Testio/internal/conf"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
)

var MinIOClient *minio.Client // 全局 MinIO 连接，未配置 minio.endpoint 时为 nil

// NewMinIOClient 根据配置创建 MinIO 客户端
func NewMinIOClient(cfg conf.MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is empty")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio failed, err:%w", err)
	}
	return client, nil
}

// MustInitMinIO 初始化 MinIO 连接，未配置时跳过并返回 false
func MustInitMinIO(v *viper.Viper) bool {
	cfg := conf.GetMinIOConfig(v)
	if cfg.Endpoint == "" {
		return false
	}
	client, err := NewMinIOClient(cfg)
	if err != nil {
		panic(err)
	}
	MinIOClient = client
	return true
}

package conf

import (
	"time"

	"github.com/djeada/Testio/internal/constants"
	"github.com/spf13/viper"
)

// JudgeConfig 评测配置
type JudgeConfig struct {
	MaxConcurrent     int           // 最大并发用例数
	QuiescenceWindow  time.Duration // 交互模式静默窗口
	KillGrace         time.Duration // 终止后等待管道关闭的时间
	CompileTimeout    time.Duration // 编译超时
	RegexMatchTimeout time.Duration // 单次正则匹配超时
	MaxOutputSize     int64         // 单个输出流最大大小
	StderrAsError     bool          // 输出不一致且 stderr 非空时判为 ERROR
	TempDir           string        // 工作目录的父目录，为空时使用系统临时目录
}

// CacheConfig 编译产物缓存配置
type CacheConfig struct {
	Enable         bool
	Dir            string
	TTL            time.Duration // 缓存时间
	MaxDiskUsage   int64         // 最大磁盘使用
	CleanFrequency time.Duration // 清理频率
}

// MinIOConfig 对象存储配置，endpoint 为空表示不启用
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// GetJudgeConfig 获取评测配置
func GetJudgeConfig(cfg *viper.Viper) JudgeConfig {
	return JudgeConfig{
		MaxConcurrent:     cfg.GetInt("judge.max_concurrent"),
		QuiescenceWindow:  cfg.GetDuration("judge.quiescence_window"),
		KillGrace:         cfg.GetDuration("judge.kill_grace"),
		CompileTimeout:    cfg.GetDuration("judge.compile_timeout"),
		RegexMatchTimeout: cfg.GetDuration("judge.regex_match_timeout"),
		MaxOutputSize:     cfg.GetInt64("judge.max_output_size"),
		StderrAsError:     cfg.GetBool("judge.stderr_as_error"),
		TempDir:           cfg.GetString("judge.temp_dir"),
	}
}

// GetCacheConfig 获取缓存配置
func GetCacheConfig(cfg *viper.Viper) CacheConfig {
	return CacheConfig{
		Enable:         cfg.GetBool("cache.enable"),
		Dir:            cfg.GetString("cache.dir"),
		TTL:            cfg.GetDuration("cache.ttl"),
		MaxDiskUsage:   cfg.GetInt64("cache.max_disk_usage"),
		CleanFrequency: cfg.GetDuration("cache.clean_frequency"),
	}
}

// GetMinIOConfig 获取对象存储配置
func GetMinIOConfig(cfg *viper.Viper) MinIOConfig {
	return MinIOConfig{
		Endpoint:  cfg.GetString("minio.endpoint"),
		AccessKey: cfg.GetString("minio.access_key"),
		SecretKey: cfg.GetString("minio.secret_key"),
		UseSSL:    cfg.GetBool("minio.use_ssl"),
	}
}

// GetDefaultJudgeConfig 获取默认评测配置
func GetDefaultJudgeConfig() JudgeConfig {
	return JudgeConfig{
		MaxConcurrent:     constants.DefaultMaxConcurrent,
		QuiescenceWindow:  constants.DefaultQuiescenceWindow,
		KillGrace:         constants.DefaultKillGrace,
		CompileTimeout:    constants.DefaultCompileTimeout,
		RegexMatchTimeout: constants.DefaultRegexMatchTimeout,
		MaxOutputSize:     constants.MaxOutputSize,
	}
}

// GetDefaultCacheConfig 获取默认缓存配置
func GetDefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:            constants.DefaultCacheTTL,
		MaxDiskUsage:   constants.DefaultMaxDiskUsage,
		CleanFrequency: constants.DefaultCleanFrequency,
	}
}

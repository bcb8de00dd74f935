package conf

import (
	"fmt"
	"time"

	"github.com/djeada/Testio/internal/constants"
	"github.com/spf13/viper"
)

// ValidateConfig 验证配置
func ValidateConfig(cfg *viper.Viper) error {
	// 验证服务器配置
	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("服务器配置错误: %w", err)
	}

	// 验证评测配置
	if err := validateJudgeConfig(cfg); err != nil {
		return fmt.Errorf("评测配置错误: %w", err)
	}

	// 验证缓存配置
	if err := validateCacheConfig(cfg); err != nil {
		return fmt.Errorf("缓存配置错误: %w", err)
	}

	return nil
}

// validateServerConfig 验证服务器配置
func validateServerConfig(cfg *viper.Viper) error {
	port := cfg.GetInt("server.port")
	if port <= 0 || port > 65535 {
		return fmt.Errorf("端口号无效: %d (应在1-65535之间)", port)
	}

	mode := cfg.GetString("server.mode")
	if mode != "dev" && mode != "prod" && mode != "test" {
		return fmt.Errorf("运行模式无效: %s (应为dev/prod/test)", mode)
	}

	if procs := cfg.GetInt("server.max_processes"); procs < 1 {
		return fmt.Errorf("子进程上限无效: %d (应大于0)", procs)
	}

	return nil
}

// validateJudgeConfig 验证评测配置
func validateJudgeConfig(cfg *viper.Viper) error {
	maxConcurrent := cfg.GetInt("judge.max_concurrent")
	if maxConcurrent < constants.MinConcurrent || maxConcurrent > constants.MaxConcurrent {
		return fmt.Errorf("最大并发数无效: %d (应在%d-%d之间)",
			maxConcurrent, constants.MinConcurrent, constants.MaxConcurrent)
	}

	window := cfg.GetDuration("judge.quiescence_window")
	if window < constants.MinQuiescenceWindow || window > constants.MaxQuiescenceWindow {
		return fmt.Errorf("静默窗口无效: %s (应在%s-%s之间)",
			window, constants.MinQuiescenceWindow, constants.MaxQuiescenceWindow)
	}

	if grace := cfg.GetDuration("judge.kill_grace"); grace <= 0 {
		return fmt.Errorf("终止等待时间无效: %s", grace)
	}

	if timeout := cfg.GetDuration("judge.compile_timeout"); timeout <= 0 {
		return fmt.Errorf("编译超时无效: %s", timeout)
	}

	if timeout := cfg.GetDuration("judge.regex_match_timeout"); timeout <= 0 {
		return fmt.Errorf("正则匹配超时无效: %s", timeout)
	}

	maxOutputSize := cfg.GetInt64("judge.max_output_size")
	if maxOutputSize <= 0 || maxOutputSize > 100*1024*1024 {
		return fmt.Errorf("最大输出大小无效: %d (应在1B-100MB之间)", maxOutputSize)
	}

	return nil
}

// validateCacheConfig 验证缓存配置
func validateCacheConfig(cfg *viper.Viper) error {
	if !cfg.GetBool("cache.enable") {
		return nil
	}

	ttl := cfg.GetDuration("cache.ttl")
	if ttl <= 0 || ttl > 24*time.Hour {
		return fmt.Errorf("缓存TTL无效: %s (应在0-24h之间)", ttl)
	}

	maxDiskUsage := cfg.GetInt64("cache.max_disk_usage")
	if maxDiskUsage <= 0 || maxDiskUsage > 100*1024*1024*1024 {
		return fmt.Errorf("最大磁盘使用无效: %d (应在1B-100GB之间)", maxDiskUsage)
	}

	cleanFreq := cfg.GetDuration("cache.clean_frequency")
	if cleanFreq <= 0 || cleanFreq > time.Hour {
		return fmt.Errorf("清理频率无效: %s (应在0-1h之间)", cleanFreq)
	}

	return nil
}

// SetDefaultValues 设置默认配置值
func SetDefaultValues(cfg *viper.Viper) {
	// 服务器默认值
	cfg.SetDefault("server.port", constants.DefaultServerPort)
	cfg.SetDefault("server.mode", "dev")
	cfg.SetDefault("server.name", "testio")
	cfg.SetDefault("server.max_processes", constants.DefaultMaxProcesses)

	// 评测默认值
	cfg.SetDefault("judge.max_concurrent", constants.DefaultMaxConcurrent)
	cfg.SetDefault("judge.quiescence_window", constants.DefaultQuiescenceWindow)
	cfg.SetDefault("judge.kill_grace", constants.DefaultKillGrace)
	cfg.SetDefault("judge.compile_timeout", constants.DefaultCompileTimeout)
	cfg.SetDefault("judge.regex_match_timeout", constants.DefaultRegexMatchTimeout)
	cfg.SetDefault("judge.max_output_size", constants.MaxOutputSize)
	cfg.SetDefault("judge.stderr_as_error", false)
	cfg.SetDefault("judge.temp_dir", "")

	// 缓存默认值
	cfg.SetDefault("cache.enable", false)
	cfg.SetDefault("cache.dir", "")
	cfg.SetDefault("cache.ttl", constants.DefaultCacheTTL)
	cfg.SetDefault("cache.max_disk_usage", constants.DefaultMaxDiskUsage)
	cfg.SetDefault("cache.clean_frequency", constants.DefaultCleanFrequency)

	// 日志默认值
	cfg.SetDefault("log.level", constants.LogLevelInfo)
	cfg.SetDefault("log.filename", constants.DefaultLogFile)
	cfg.SetDefault("log.max_size", constants.DefaultLogMaxSize)
	cfg.SetDefault("log.max_age", constants.DefaultLogMaxAge)
	cfg.SetDefault("log.max_backups", constants.DefaultLogBackups)

	// Snowflake默认值
	cfg.SetDefault("snowflake.machine_id", 1)
	cfg.SetDefault("snowflake.start_time", "2025-07-01")

	// MinIO默认值，endpoint 为空时不启用
	cfg.SetDefault("minio.endpoint", "")
	cfg.SetDefault("minio.access_key", "")
	cfg.SetDefault("minio.secret_key", "")
	cfg.SetDefault("minio.use_ssl", false)
}

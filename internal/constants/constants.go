package constants

import "time"

// 评测相关常量
const (
	// 用例超时范围
	MinTestTimeout = 1 * time.Millisecond
	MaxTestTimeout = 1 * time.Hour

	// 编译超时
	DefaultCompileTimeout = 30 * time.Second

	// 交互模式下判定程序等待输入的静默窗口
	DefaultQuiescenceWindow = 150 * time.Millisecond
	MinQuiescenceWindow     = 10 * time.Millisecond
	MaxQuiescenceWindow     = 10 * time.Second

	// 进程被终止后等待管道关闭的时间
	DefaultKillGrace = 500 * time.Millisecond

	// 单次正则匹配的最长时间
	DefaultRegexMatchTimeout = 1 * time.Second

	// 并发控制
	DefaultMaxConcurrent = 4  // 默认最大并发用例数
	MinConcurrent        = 1  // 最小并发数
	MaxConcurrent        = 64 // 最大并发数

	// 输出限制
	MaxOutputSize = 10 * 1024 * 1024 // 单个输出流最大字节数（10MB）
	MaxErrorSize  = 4 * 1024         // 报告中错误信息最大长度（4KB）

	// 临时文件
	TempDirPrefix = "testio-run-" // 每次运行的工作目录前缀
	TempDirPerm   = 0755
	CodeFilePerm  = 0755 // 写入的脚本需要可执行
)

// 占位符
const (
	PlaceholderSource = "{source}"
	PlaceholderOutput = "{output}"
)

// 缓存相关常量
const (
	DefaultCacheTTL       = 30 * time.Minute
	DefaultCleanFrequency = 10 * time.Minute
	DefaultMaxDiskUsage   = 1024 * 1024 * 1024 // 默认最大磁盘使用（1GB）

	CacheDirName = "testio-artifact-cache"
	CacheDirPerm = 0755
)

// 对象存储相关常量
const (
	MinIOScheme          = "minio://"
	MinIODownloadTimeout = 30 * time.Second
)

// 文件名常量
const (
	DefaultArtifactName = "program" // 编译产物文件名
	ConfigFileName      = "config.json"
)

// 日志相关常量
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	DefaultLogFile    = "" // 为空时输出到标准错误
	DefaultLogMaxSize = 200 // MB
	DefaultLogMaxAge  = 30  // days
	DefaultLogBackups = 7
)

// HTTP 相关常量
const (
	DefaultServerPort = 53333

	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 10 * time.Minute // 一次评测可能持续较久
	DefaultIdleTimeout  = 60 * time.Second

	MaxRequestBodySize = 8 * 1024 * 1024

	DefaultMaxProcesses = 16 // 所有并发请求共享的子进程上限
)

// 环境变量前缀，例如 TESTIO_JUDGE_MAX_CONCURRENT
const EnvPrefix = "TESTIO"

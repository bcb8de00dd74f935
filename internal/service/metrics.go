package service

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/djeada/Testio/internal/model"
)

// Metrics 评测统计指标，由调用方创建并注入 SuiteRunner
type Metrics struct {
	// 计数器
	TotalSuites    int64 // 总运行次数
	CanceledSuites int64 // 被取消的运行次数
	ConfigErrors   int64 // 因配置错误未执行的运行次数
	TotalTests     int64 // 总用例数

	// 各结论统计
	MatchCount    int64
	MismatchCount int64
	TimeoutCount  int64
	ErrorCount    int64

	// 编译与启动
	CompileFailures int64
	SpawnFailures   int64

	// 性能指标
	TotalTestTime int64 // 总执行时间（毫秒）
	MaxTestTime   int64 // 最大执行时间（毫秒）
	MinTestTime   int64 // 最小执行时间（毫秒）

	// 资源使用
	CurrentActive  int32 // 当前运行的子进程数
	MaxConcurrent  int32 // 历史最大并发数
	QueueWaitCount int64 // 等待空闲槽位的次数

	// 缓存统计
	CacheHits   int64 // 缓存命中次数
	CacheMisses int64 // 缓存未命中次数

	// 时间戳
	StartTime time.Time // 启动时间

	mu sync.RWMutex
}

// NewMetrics 创建统计实例
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:   time.Now(),
		MinTestTime: int64(^uint64(0) >> 1), // 初始化为最大值
	}
}

// RecordSuite 记录一次运行
func (m *Metrics) RecordSuite() {
	atomic.AddInt64(&m.TotalSuites, 1)
}

// RecordCanceled 记录被取消的运行
func (m *Metrics) RecordCanceled() {
	atomic.AddInt64(&m.CanceledSuites, 1)
}

// RecordConfigError 记录配置错误
func (m *Metrics) RecordConfigError() {
	atomic.AddInt64(&m.ConfigErrors, 1)
}

// RecordResult 记录一个用例结果
func (m *Metrics) RecordResult(testTime time.Duration, verdict model.Verdict) {
	atomic.AddInt64(&m.TotalTests, 1)

	// 更新结论统计
	switch verdict {
	case model.VerdictMatch:
		atomic.AddInt64(&m.MatchCount, 1)
	case model.VerdictMismatch:
		atomic.AddInt64(&m.MismatchCount, 1)
	case model.VerdictTimeout:
		atomic.AddInt64(&m.TimeoutCount, 1)
	case model.VerdictError:
		atomic.AddInt64(&m.ErrorCount, 1)
	}

	// 更新时间统计
	testTimeMs := testTime.Milliseconds()
	atomic.AddInt64(&m.TotalTestTime, testTimeMs)

	// 更新最大时间
	for {
		oldMax := atomic.LoadInt64(&m.MaxTestTime)
		if testTimeMs <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt64(&m.MaxTestTime, oldMax, testTimeMs) {
			break
		}
	}

	// 更新最小时间
	for {
		oldMin := atomic.LoadInt64(&m.MinTestTime)
		if testTimeMs >= oldMin {
			break
		}
		if atomic.CompareAndSwapInt64(&m.MinTestTime, oldMin, testTimeMs) {
			break
		}
	}
}

// RecordCompileFailure 记录编译失败
func (m *Metrics) RecordCompileFailure() {
	atomic.AddInt64(&m.CompileFailures, 1)
}

// RecordSpawnFailure 记录启动失败
func (m *Metrics) RecordSpawnFailure() {
	atomic.AddInt64(&m.SpawnFailures, 1)
}

// RecordActiveIncrease 记录运行中的子进程增加
func (m *Metrics) RecordActiveIncrease() int32 {
	current := atomic.AddInt32(&m.CurrentActive, 1)

	// 更新最大并发数
	for {
		oldMax := atomic.LoadInt32(&m.MaxConcurrent)
		if current <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt32(&m.MaxConcurrent, oldMax, current) {
			break
		}
	}

	return current
}

// RecordActiveDecrease 记录运行中的子进程减少
func (m *Metrics) RecordActiveDecrease() {
	atomic.AddInt32(&m.CurrentActive, -1)
}

// RecordQueueWait 记录等待空闲槽位
func (m *Metrics) RecordQueueWait() {
	atomic.AddInt64(&m.QueueWaitCount, 1)
}

// RecordCacheHit 记录缓存命中
func (m *Metrics) RecordCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// RecordCacheMiss 记录缓存未命中
func (m *Metrics) RecordCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// Active 当前运行的子进程数
func (m *Metrics) Active() int {
	return int(atomic.LoadInt32(&m.CurrentActive))
}

// GetSnapshot 获取统计快照
func (m *Metrics) GetSnapshot() map[string]interface{} {
	m.mu.RLock()
	startTime := m.StartTime
	m.mu.RUnlock()

	totalTests := atomic.LoadInt64(&m.TotalTests)
	totalTestTime := atomic.LoadInt64(&m.TotalTestTime)

	var avgTestTime int64
	if totalTests > 0 {
		avgTestTime = totalTestTime / totalTests
	}

	minTestTime := atomic.LoadInt64(&m.MinTestTime)
	if totalTests == 0 {
		minTestTime = 0
	}

	matchCount := atomic.LoadInt64(&m.MatchCount)
	var passRate float64
	if totalTests > 0 {
		passRate = float64(matchCount) / float64(totalTests) * 100
	}

	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)
	var cacheHitRate float64
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = float64(cacheHits) / float64(cacheHits+cacheMisses) * 100
	}

	return map[string]interface{}{
		// 基础统计
		"total_suites":    atomic.LoadInt64(&m.TotalSuites),
		"canceled_suites": atomic.LoadInt64(&m.CanceledSuites),
		"config_errors":   atomic.LoadInt64(&m.ConfigErrors),
		"total_tests":     totalTests,
		"pass_rate":       passRate,

		// 结论统计
		"match_count":    matchCount,
		"mismatch_count": atomic.LoadInt64(&m.MismatchCount),
		"timeout_count":  atomic.LoadInt64(&m.TimeoutCount),
		"error_count":    atomic.LoadInt64(&m.ErrorCount),

		// 编译与启动
		"compile_failures": atomic.LoadInt64(&m.CompileFailures),
		"spawn_failures":   atomic.LoadInt64(&m.SpawnFailures),

		// 性能指标
		"avg_test_time_ms": avgTestTime,
		"max_test_time_ms": atomic.LoadInt64(&m.MaxTestTime),
		"min_test_time_ms": minTestTime,

		// 并发统计
		"current_active":   atomic.LoadInt32(&m.CurrentActive),
		"max_concurrent":   atomic.LoadInt32(&m.MaxConcurrent),
		"queue_wait_count": atomic.LoadInt64(&m.QueueWaitCount),

		// 缓存统计
		"cache_hits":     cacheHits,
		"cache_misses":   cacheMisses,
		"cache_hit_rate": cacheHitRate,

		// 运行时间
		"uptime_seconds": time.Since(startTime).Seconds(),
		"start_time":     startTime.Format(time.RFC3339),
	}
}

// Reset 重置统计（谨慎使用）
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	atomic.StoreInt64(&m.TotalSuites, 0)
	atomic.StoreInt64(&m.CanceledSuites, 0)
	atomic.StoreInt64(&m.ConfigErrors, 0)
	atomic.StoreInt64(&m.TotalTests, 0)
	atomic.StoreInt64(&m.MatchCount, 0)
	atomic.StoreInt64(&m.MismatchCount, 0)
	atomic.StoreInt64(&m.TimeoutCount, 0)
	atomic.StoreInt64(&m.ErrorCount, 0)
	atomic.StoreInt64(&m.CompileFailures, 0)
	atomic.StoreInt64(&m.SpawnFailures, 0)
	atomic.StoreInt64(&m.TotalTestTime, 0)
	atomic.StoreInt64(&m.MaxTestTime, 0)
	atomic.StoreInt64(&m.MinTestTime, int64(^uint64(0)>>1))
	atomic.StoreInt32(&m.MaxConcurrent, 0)
	atomic.StoreInt64(&m.QueueWaitCount, 0)
	atomic.StoreInt64(&m.CacheHits, 0)
	atomic.StoreInt64(&m.CacheMisses, 0)
	m.StartTime = time.Now()
}

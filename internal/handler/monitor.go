package handler

import (
	"runtime"
	"time"

	"github.com/djeada/Testio/api"
	"github.com/djeada/Testio/internal/cache"
	"github.com/djeada/Testio/internal/service"
	"github.com/gin-gonic/gin"
)

// MonitorHandler 健康检查与统计接口
type MonitorHandler struct {
	name         string
	runner       *service.SuiteRunner
	artifacts    *cache.ArtifactCache // 可为 nil
	maxProcesses int
}

// NewMonitorHandler maxProcesses 为所有请求共享的子进程上限
func NewMonitorHandler(name string, runner *service.SuiteRunner, artifacts *cache.ArtifactCache, maxProcesses int) *MonitorHandler {
	return &MonitorHandler{
		name:         name,
		runner:       runner,
		artifacts:    artifacts,
		maxProcesses: maxProcesses,
	}
}

// HealthCheckHandler 健康检查接口
func (h *MonitorHandler) HealthCheckHandler(c *gin.Context) {
	api.ResponseSuccess(c, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   h.name,
	})
}

// MetricsHandler 获取评测统计信息
func (h *MonitorHandler) MetricsHandler(c *gin.Context) {
	api.ResponseSuccess(c, h.runner.Metrics().GetSnapshot())
}

// SystemInfoHandler 获取系统信息
func (h *MonitorHandler) SystemInfoHandler(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	cfg := h.runner.Config()
	info := gin.H{
		// Go运行时信息
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"cpu_cores":  runtime.NumCPU(),

		// 内存信息
		"memory": gin.H{
			"alloc_mb":       m.Alloc / 1024 / 1024,
			"total_alloc_mb": m.TotalAlloc / 1024 / 1024,
			"sys_mb":         m.Sys / 1024 / 1024,
			"gc_count":       m.NumGC,
		},

		// 评测信息
		"judge_stats": gin.H{
			"max_concurrent":    cfg.MaxConcurrent,
			"max_processes":     h.maxProcesses,
			"active_processes":  h.runner.Metrics().Active(),
			"available_slots":   h.availableSlots(),
			"quiescence_window": cfg.QuiescenceWindow.String(),
		},
	}
	// 缓存信息
	if h.artifacts != nil {
		info["cache_stats"] = h.artifacts.GetCacheStats()
	}

	api.ResponseSuccess(c, info)
}

// ReadinessHandler 就绪检查（用于K8s等）
func (h *MonitorHandler) ReadinessHandler(c *gin.Context) {
	// 子进程槽位已满时返回未就绪
	if h.availableSlots() == 0 {
		api.ResponseError(c, api.CodeServerBusy)
		return
	}

	api.ResponseSuccess(c, gin.H{
		"status":    "ready",
		"timestamp": time.Now().Unix(),
	})
}

// LivenessHandler 存活检查（用于K8s等）
func (h *MonitorHandler) LivenessHandler(c *gin.Context) {
	api.ResponseSuccess(c, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Unix(),
	})
}

func (h *MonitorHandler) availableSlots() int {
	return max(h.maxProcesses-h.runner.Metrics().Active(), 0)
}

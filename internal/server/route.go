package server

import (
	"net/http"

	"github.com/djeada/Testio/internal/cache"
	"github.com/djeada/Testio/internal/handler"
	"github.com/djeada/Testio/internal/service"
	"github.com/djeada/Testio/pkg/logging"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

// SetupRoutes artifacts 为 nil 时不展示缓存统计
func SetupRoutes(cfg *viper.Viper, runner *service.SuiteRunner, artifacts *cache.ArtifactCache) *gin.Engine {
	switch cfg.GetString("server.mode") {
	case "prod":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	r.Use(logging.GinLogger(), logging.GinRecovery(true)) // 日志中间件，记录请求日志
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	r.Use(cors.New(corsCfg)) // CORS 跨域中间件，直接放行所有跨域请求

	// 健康检查和监控端点
	monitor := handler.NewMonitorHandler(cfg.GetString("server.name"), runner, artifacts, cfg.GetInt("server.max_processes"))
	r.GET("/health", monitor.HealthCheckHandler)
	r.GET("/metrics", monitor.MetricsHandler)
	r.GET("/system", monitor.SystemInfoHandler)
	r.GET("/readiness", monitor.ReadinessHandler)
	r.GET("/liveness", monitor.LivenessHandler)

	suite := handler.NewSuiteHandler(runner)
	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/suite/run", suite.RunHandler)
		apiV1.POST("/suite/validate", suite.ValidateHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"msg": "404",
		})
	})
	return r
}

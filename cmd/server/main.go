package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/djeada/Testio/internal/cache"
	"github.com/djeada/Testio/internal/conf"
	"github.com/djeada/Testio/internal/constants"
	"github.com/djeada/Testio/internal/dao"
	"github.com/djeada/Testio/internal/dao/minio"
	"github.com/djeada/Testio/internal/server"
	"github.com/djeada/Testio/internal/service"
	"github.com/djeada/Testio/pkg/logging"
	"github.com/djeada/Testio/pkg/snowflake"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var confPath = flag.String("conf", "./config/config.yaml", "配置文件路径")

func main() {
	// 加载配置
	flag.Parse()
	cfg := conf.MustLoad(*confPath)

	// 初始化日志
	logger, err := logging.NewLogger(cfg)
	if err != nil {
		fmt.Printf("init logger failed, err:%v\n", err)
		return
	}
	defer logger.Sync()

	snowflake.MustInit(cfg) // 初始化 snowflake

	opts := []service.Option{
		service.WithCapacity(semaphore.NewWeighted(int64(cfg.GetInt("server.max_processes")))),
	}
	if dao.MustInitMinIO(cfg) { // 初始化 MinIO 连接
		opts = append(opts, service.WithFetcher(minio.NewFetcher(dao.MinIOClient)))
	}
	var artifacts *cache.ArtifactCache
	if cacheCfg := conf.GetCacheConfig(cfg); cacheCfg.Enable {
		artifacts, err = cache.NewArtifactCache(cacheCfg)
		if err != nil {
			panic(err)
		}
		defer artifacts.Close()
		opts = append(opts, service.WithArtifactCache(artifacts))
	}
	runner := service.NewSuiteRunner(conf.GetJudgeConfig(cfg), opts...)

	// 初始化路由
	r := server.SetupRoutes(cfg, runner, artifacts)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GetInt("server.port")),
		Handler:      r,
		ReadTimeout:  constants.DefaultReadTimeout,
		WriteTimeout: constants.DefaultWriteTimeout,
		IdleTimeout:  constants.DefaultIdleTimeout,
	}

	// 启动服务
	go func() {
		zap.L().Info("server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("listen failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("server shutdown failed", zap.Error(err))
	}
}

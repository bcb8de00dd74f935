// testio 在命令行中对一个或多个程序执行 JSON 配置中的测试用例
//
//	testio run [-conf engine.yaml] [-report out.json] [-q] [-j N] config.json
//	testio validate config.json
//	testio config.json
//
// 全部用例通过时退出码为 0，存在失败时为 1，参数或配置错误时为 2。
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/djeada/Testio/internal/cache"
	"github.com/djeada/Testio/internal/conf"
	"github.com/djeada/Testio/internal/dao"
	"github.com/djeada/Testio/internal/dao/minio"
	"github.com/djeada/Testio/internal/service"
	"github.com/djeada/Testio/internal/task/parser"
	"github.com/djeada/Testio/pkg/errors"
	"github.com/djeada/Testio/pkg/logging"
	"github.com/djeada/Testio/pkg/snowflake"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	cmdRun      = "run"
	cmdValidate = "validate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 执行一条命令并返回退出码
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd, rest := cmdRun, args
	if len(args) > 0 && (args[0] == cmdRun || args[0] == cmdValidate) {
		cmd, rest = args[0], args[1:]
	}

	fs := flag.NewFlagSet("testio "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	confPath := fs.String("conf", "", "引擎配置文件路径，为空时使用默认值与 TESTIO_ 环境变量")
	reportPath := fs.String("report", "", "把 JSON 报告写入该文件")
	quiet := fs.Bool("q", false, "只输出每个程序的汇总")
	jobs := fs.Int("j", 0, "最大并发用例数，0 表示使用配置")
	noColor := fs.Bool("no-color", false, "关闭彩色输出")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "用法: testio [run|validate] [flags] config.json\n")
		fmt.Fprintf(stderr, "run_command 含 &&、管道、重定向或 $VAR 时经 sh -c（Windows 为 cmd /C）执行，程序路径追加在末尾\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return exitUsage
	}

	// 1. 加载引擎配置
	v, err := conf.Load(*confPath)
	if err != nil {
		fmt.Fprintf(stderr, "加载配置失败: %v\n", err)
		return exitUsage
	}
	if *confPath == "" {
		v.Set("log.level", "warn")
	}
	logger, err := logging.NewLogger(v)
	if err != nil {
		fmt.Fprintf(stderr, "init logger failed, err:%v\n", err)
		return exitUsage
	}
	defer logger.Sync()
	if err := snowflake.Init(v); err != nil {
		zap.L().Warn("snowflake 初始化失败", zap.Error(err))
	}

	// 2. 解析评测配置
	sub, err := parser.ParseFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(stderr, "配置错误: %v\n", err)
		return exitUsage
	}
	if cmd == cmdValidate {
		fmt.Fprintf(stdout, "配置有效: %s, %d 个用例\n", sub.Path, len(sub.Tests))
		return exitOK
	}

	// 3. 执行
	judgeCfg := conf.GetJudgeConfig(v)
	if *jobs > 0 {
		judgeCfg.MaxConcurrent = *jobs
	}
	runner, closeRunner, err := newRunner(v, judgeCfg)
	if err != nil {
		fmt.Fprintf(stderr, "初始化失败: %v\n", err)
		return exitUsage
	}
	defer closeRunner()

	report, err := runner.Run(ctx, sub)
	if err != nil {
		fmt.Fprintf(stderr, "评测失败: %v\n", err)
		if errors.IsConfigError(err) {
			return exitUsage
		}
		return exitFailed
	}

	// 4. 输出
	p := &printer{w: stdout, quiet: *quiet, color: !*noColor}
	p.Print(report)
	if *reportPath != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err == nil {
			err = os.WriteFile(*reportPath, data, 0644)
		}
		if err != nil {
			fmt.Fprintf(stderr, "写入报告失败: %v\n", err)
			return exitFailed
		}
	}

	if !report.AllPassed() {
		return exitFailed
	}
	return exitOK
}

// newRunner 根据配置启用编译缓存与对象存储
func newRunner(v *viper.Viper, judgeCfg conf.JudgeConfig) (*service.SuiteRunner, func(), error) {
	var opts []service.Option
	closeFn := func() {}

	if cacheCfg := conf.GetCacheConfig(v); cacheCfg.Enable {
		artifacts, err := cache.NewArtifactCache(cacheCfg)
		if err != nil {
			return nil, nil, err
		}
		closeFn = artifacts.Close
		opts = append(opts, service.WithArtifactCache(artifacts))
	}

	if minioCfg := conf.GetMinIOConfig(v); minioCfg.Endpoint != "" {
		client, err := dao.NewMinIOClient(minioCfg)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		opts = append(opts, service.WithFetcher(minio.NewFetcher(client)))
	}

	return service.NewSuiteRunner(judgeCfg, opts...), closeFn, nil
}

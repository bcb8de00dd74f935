package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/djeada/Testio/internal/cache"
	"github.com/djeada/Testio/internal/conf"
	"github.com/djeada/Testio/internal/constants"
	"github.com/djeada/Testio/internal/model"
	"github.com/djeada/Testio/internal/task/compiler"
	"github.com/djeada/Testio/internal/task/director"
	"github.com/djeada/Testio/internal/task/language"
	"github.com/djeada/Testio/internal/task/launcher"
	"github.com/djeada/Testio/internal/task/result"
	file_util "github.com/djeada/Testio/internal/util/file"
	"github.com/djeada/Testio/pkg/errors"
	"github.com/djeada/Testio/pkg/snowflake"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ProgramFetcher 把远程路径（例如 minio://bucket/prefix）下载到 dir，返回本地文件路径
type ProgramFetcher interface {
	Fetch(ctx context.Context, uri, dir string) ([]string, error)
}

// Option SuiteRunner 的可选配置
type Option func(*SuiteRunner)

// WithArtifactCache 启用编译产物缓存
func WithArtifactCache(c *cache.ArtifactCache) Option {
	return func(s *SuiteRunner) {
		s.artifacts = c
	}
}

// WithFetcher 启用远程程序路径
func WithFetcher(f ProgramFetcher) Option {
	return func(s *SuiteRunner) {
		s.fetcher = f
	}
}

// WithMetrics 使用外部的统计实例，便于多个组件共享
func WithMetrics(m *Metrics) Option {
	return func(s *SuiteRunner) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithIDGenerator 替换运行编号生成方式
func WithIDGenerator(next func() (int64, error)) Option {
	return func(s *SuiteRunner) {
		s.nextID = next
	}
}

// WithCapacity 多个并发运行共享的子进程槽位
func WithCapacity(sem *semaphore.Weighted) Option {
	return func(s *SuiteRunner) {
		s.capacity = sem
	}
}

// SuiteRunner 对一组程序执行全部用例并汇总报告，可被多个运行并发使用
type SuiteRunner struct {
	cfg        conf.JudgeConfig
	launcher   *launcher.Launcher
	director   *director.Director
	comparator *result.Comparator

	artifacts *cache.ArtifactCache
	fetcher   ProgramFetcher
	metrics   *Metrics
	capacity  *semaphore.Weighted
	nextID    func() (int64, error)
}

// NewSuiteRunner 零值配置项使用默认值
func NewSuiteRunner(cfg conf.JudgeConfig, opts ...Option) *SuiteRunner {
	def := conf.GetDefaultJudgeConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.QuiescenceWindow <= 0 {
		cfg.QuiescenceWindow = def.QuiescenceWindow
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = def.KillGrace
	}
	if cfg.CompileTimeout <= 0 {
		cfg.CompileTimeout = def.CompileTimeout
	}
	if cfg.RegexMatchTimeout <= 0 {
		cfg.RegexMatchTimeout = def.RegexMatchTimeout
	}
	if cfg.MaxOutputSize <= 0 {
		cfg.MaxOutputSize = def.MaxOutputSize
	}

	s := &SuiteRunner{
		cfg:        cfg,
		launcher:   launcher.NewLauncher(cfg.MaxOutputSize, cfg.KillGrace),
		director:   director.NewDirector(cfg.QuiescenceWindow),
		comparator: result.NewComparator(cfg.RegexMatchTimeout),
		metrics:    NewMetrics(),
		nextID:     snowflake.NextID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Metrics 返回运行统计
func (s *SuiteRunner) Metrics() *Metrics {
	return s.metrics
}

// Config 返回生效的评测配置
func (s *SuiteRunner) Config() conf.JudgeConfig {
	return s.cfg
}

// Run 执行一次评测
// 配置错误在启动任何进程之前返回；单个用例的失败只体现在报告中；ctx 取消时返回 ErrCodeCanceled
func (s *SuiteRunner) Run(ctx context.Context, sub *model.SubmissionConfig) (*model.SuiteReport, error) {
	s.metrics.RecordSuite()
	if len(sub.Tests) == 0 {
		s.metrics.RecordConfigError()
		return nil, errors.NewConfigError("tests", "至少需要一个用例")
	}

	startedAt := time.Now()
	runID := s.runID()
	logger := zap.L().With(zap.Int64("run_id", runID))

	// 1. 创建本次运行的工作目录
	workDir, err := os.MkdirTemp(s.cfg.TempDir, constants.TempDirPrefix)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSystem, "创建工作目录失败", err)
	}
	defer os.RemoveAll(workDir)

	// 2. 展开程序列表
	programs, err := s.expand(ctx, sub.Path, workDir)
	if err != nil {
		if errors.IsConfigError(err) {
			s.metrics.RecordConfigError()
		}
		return nil, err
	}
	logger.Info("开始评测",
		zap.String("path", sub.Path),
		zap.Int("programs", len(programs)),
		zap.Int("tests", len(sub.Tests)))

	report := &model.SuiteReport{
		RunID:     runID,
		StartedAt: startedAt,
		Programs:  make([]model.ProgramReport, len(programs)),
	}
	for p, prog := range programs {
		report.Programs[p] = model.ProgramReport{
			Name:     prog.Name,
			Path:     prog.Path,
			Language: language.Detect(sub.RunCommand, prog.Name),
			Results:  make([]model.ExecutionResult, len(sub.Tests)),
		}
	}

	// 3. 编译
	runnables, compileErrs := s.compileAll(ctx, sub.CompileCommand, programs, workDir, report)
	if ctx.Err() != nil {
		return nil, s.canceled(ctx)
	}

	// 4. 执行全部 (程序, 用例)，结果写入预分配的位置
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)
	for p := range programs {
		for i, tc := range sub.Tests {
			if compileErrs[p] != nil {
				res := newResult(i, tc)
				res.Verdict = model.VerdictError
				res.Error = compileMessage(report.Programs[p].Compile, compileErrs[p])
				report.Programs[p].Results[i] = res
				s.metrics.RecordResult(0, res.Verdict)
				continue
			}
			g.Go(func() error {
				report.Programs[p].Results[i] = s.runOne(ctx, sub.RunCommand, runnables[p], i, tc)
				return nil
			})
		}
	}
	_ = g.Wait()
	if ctx.Err() != nil {
		return nil, s.canceled(ctx)
	}

	// 5. 汇总
	report.Tally()
	report.Duration = time.Since(startedAt)
	logger.Info("评测完成",
		zap.Int("total_tests", report.TotalTests),
		zap.Int("passed_tests", report.TotalPassedTests),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// compileAll 并发编译所有程序，返回每个程序的可运行文件与编译错误
func (s *SuiteRunner) compileAll(ctx context.Context, command string, programs []model.Program, workDir string, report *model.SuiteReport) ([]string, []error) {
	runnables := make([]string, len(programs))
	errs := make([]error, len(programs))
	builder := compiler.NewBuilder(command, s.cfg.CompileTimeout, s.artifacts)
	if !builder.NeedsCompile() {
		for p, prog := range programs {
			runnables[p] = prog.Path
		}
		return runnables, errs
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.MaxConcurrent)
	for p, prog := range programs {
		g.Go(func() error {
			outputDir := filepath.Join(workDir, fmt.Sprintf("%03d", p))
			if err := os.MkdirAll(outputDir, constants.TempDirPerm); err != nil {
				errs[p] = errors.Wrap(errors.ErrCodeSystem, "创建编译目录失败", err)
				return nil
			}
			runnable, info, err := builder.Build(ctx, prog.Path, outputDir)
			report.Programs[p].Compile = info
			runnables[p], errs[p] = runnable, err

			switch {
			case err != nil:
				s.metrics.RecordCompileFailure()
				zap.L().Warn("编译失败", zap.String("program", prog.Name), zap.Error(err))
			case info != nil && info.Cached:
				s.metrics.RecordCacheHit()
			case s.artifacts != nil:
				s.metrics.RecordCacheMiss()
			}
			return nil
		})
	}
	_ = g.Wait()
	return runnables, errs
}

// runOne 启动一个进程完成一个用例
func (s *SuiteRunner) runOne(ctx context.Context, runCommand, runnable string, index int, tc model.TestCase) model.ExecutionResult {
	res := newResult(index, tc)

	// 1. 获取全局子进程槽位
	if s.capacity != nil {
		if !s.capacity.TryAcquire(1) {
			s.metrics.RecordQueueWait()
			if err := s.capacity.Acquire(ctx, 1); err != nil {
				res.Verdict = model.VerdictError
				res.Error = errors.Wrap(errors.ErrCodeCanceled, "运行已取消", err).Error()
				return res
			}
		}
		defer s.capacity.Release(1)
	}

	// 2. 启动进程
	proc, err := s.launcher.Spawn(runCommand, runnable)
	if err != nil {
		s.metrics.RecordSpawnFailure()
		res.Verdict = model.VerdictError
		res.Error = err.Error()
		s.metrics.RecordResult(0, res.Verdict)
		return res
	}
	s.metrics.RecordActiveIncrease()
	defer s.metrics.RecordActiveDecrease()

	// 3. 驱动输入输出并判定
	out := s.director.Drive(ctx, proc, tc)
	res = s.judge(res, out, tc)
	s.metrics.RecordResult(res.ExecutionTime, res.Verdict)

	zap.L().Debug("用例完成",
		zap.String("program", filepath.Base(runnable)),
		zap.Int("test_index", index),
		zap.String("verdict", string(res.Verdict)),
		zap.Duration("duration", res.ExecutionTime))
	return res
}

// judge 把驱动结果映射为结论
func (s *SuiteRunner) judge(res model.ExecutionResult, out *director.Outcome, tc model.TestCase) model.ExecutionResult {
	res.ActualOutput = out.Lines
	res.Stderr = truncate(out.Stderr, constants.MaxErrorSize)
	res.ExitCode = out.ExitCode
	res.ExecutionTime = out.Duration

	switch out.State {
	case director.StateTimedOut:
		res.Verdict = model.VerdictTimeout
		res.Error = errorMessage(out.Err)
	case director.StateErrored, director.StateCanceled:
		res.Verdict = model.VerdictError
		res.Error = errorMessage(out.Err)
	default:
		j := s.comparator.Compare(out.Lines, tc.ExpectedOutput, tc.Mode())
		res.Verdict, res.Diff = j.Verdict, j.Diff
		res.Error = res.Stderr
		if s.cfg.StderrAsError && j.Verdict == model.VerdictMismatch && strings.TrimSpace(out.Stderr) != "" {
			res.Verdict = model.VerdictError
		}
	}

	if out.Truncated {
		res.Error = strings.TrimSpace(res.Error + "\n输出超过上限，已截断")
	}
	return res
}

// expand 把 path 展开为程序列表
func (s *SuiteRunner) expand(ctx context.Context, path, workDir string) ([]model.Program, error) {
	if strings.HasPrefix(path, constants.MinIOScheme) {
		if s.fetcher == nil {
			return nil, errors.NewConfigError("path", "未配置对象存储，无法使用 "+constants.MinIOScheme)
		}
		paths, err := s.fetcher.Fetch(ctx, path, filepath.Join(workDir, "remote"))
		if err != nil {
			return nil, err
		}
		if len(paths) == 0 {
			return nil, errors.NewConfigError("path", fmt.Sprintf("%s 下没有程序", path))
		}
		return toPrograms(paths), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.NewConfigError("path", fmt.Sprintf("%s 不存在", path))
	}
	if !info.IsDir() {
		return toPrograms([]string{path}), nil
	}

	paths, err := file_util.ListRegularFiles(path)
	if err != nil {
		return nil, errors.NewConfigError("path", err.Error())
	}
	if len(paths) == 0 {
		return nil, errors.NewConfigError("path", fmt.Sprintf("目录 %s 中没有程序", path))
	}
	return toPrograms(paths), nil
}

func (s *SuiteRunner) runID() int64 {
	if s.nextID == nil {
		return 0
	}
	id, err := s.nextID()
	if err != nil {
		zap.L().Warn("生成运行编号失败", zap.Error(err))
		return 0
	}
	return id
}

func (s *SuiteRunner) canceled(ctx context.Context) error {
	s.metrics.RecordCanceled()
	zap.L().Info("评测已取消", zap.Error(context.Cause(ctx)))
	return errors.Wrap(errors.ErrCodeCanceled, "运行已取消", context.Cause(ctx))
}

func toPrograms(paths []string) []model.Program {
	programs := make([]model.Program, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		programs = append(programs, model.Program{Name: filepath.Base(p), Path: abs})
	}
	return programs
}

func newResult(index int, tc model.TestCase) model.ExecutionResult {
	return model.ExecutionResult{
		TestIndex:      index,
		Input:          tc.Input,
		ExpectedOutput: tc.ExpectedOutput,
		ActualOutput:   []string{},
		ExitCode:       -1,
	}
}

func compileMessage(info *model.CompileInfo, err error) string {
	if info != nil && info.Message != "" {
		return truncate(info.Message, constants.MaxErrorSize)
	}
	return errorMessage(err)
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return truncate(err.Error(), constants.MaxErrorSize)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "..."
}

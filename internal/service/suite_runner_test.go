package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/djeada/Testio/internal/conf"
	"github.com/djeada/Testio/internal/model"
	"github.com/djeada/Testio/internal/testutil"
	"github.com/djeada/Testio/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/semaphore"
)

func TestHelperProcess(t *testing.T) { testutil.RunHelper() }

func newTestRunner(t *testing.T, opts ...Option) *SuiteRunner {
	t.Helper()
	undo := zap.ReplaceGlobals(zaptest.NewLogger(t))
	t.Cleanup(undo)

	cfg := conf.GetDefaultJudgeConfig()
	cfg.QuiescenceWindow = 100 * time.Millisecond
	cfg.TempDir = t.TempDir()
	opts = append([]Option{WithIDGenerator(func() (int64, error) { return 42, nil })}, opts...)
	return NewSuiteRunner(cfg, opts...)
}

func sumTest() model.TestCase {
	return model.TestCase{
		Input:          []string{"5", "3"},
		ExpectedOutput: []string{"Hello World", "8", "15"},
		Timeout:        5 * time.Second,
	}
}

func TestSuiteRunner_Run(t *testing.T) {
	tests := []struct {
		name        string
		mode        string
		tc          model.TestCase
		want        model.Verdict
		wantOutput  []string
		wantDiffIdx int
	}{
		{
			name:       "批量模式通过",
			mode:       testutil.ModeSum,
			tc:         sumTest(),
			want:       model.VerdictMatch,
			wantOutput: []string{"Hello World", "8", "15"},
		},
		{
			name:        "输出不一致",
			mode:        testutil.ModeBuggy,
			tc:          sumTest(),
			want:        model.VerdictMismatch,
			wantOutput:  []string{"Hello World", "8", "3"},
			wantDiffIdx: 2,
		},
		{
			name:       "超时",
			mode:       testutil.ModeHang,
			tc:         model.TestCase{ExpectedOutput: []string{"x"}, Timeout: 500 * time.Millisecond},
			want:       model.VerdictTimeout,
			wantOutput: []string{},
		},
		{
			name: "交互模式",
			mode: testutil.ModePrompt,
			tc: model.TestCase{
				Input:          []string{"Alice", "30"},
				ExpectedOutput: []string{"Name?", "Hello, Alice", "Age?", "Age: 30"},
				Timeout:        5 * time.Second,
				Interleaved:    true,
			},
			want:       model.VerdictMatch,
			wantOutput: []string{"Name?", "Hello, Alice", "Age?", "Age: 30"},
		},
		{
			name: "忽略顺序",
			mode: testutil.ModeUnordered,
			tc: model.TestCase{
				ExpectedOutput: []string{"A", "B", "C"},
				Timeout:        5 * time.Second,
				Unordered:      true,
			},
			want:       model.VerdictMatch,
			wantOutput: []string{"C", "A", "B"},
		},
		{
			name: "正则匹配",
			mode: testutil.ModeSum,
			tc: model.TestCase{
				Input:          []string{"5", "3"},
				ExpectedOutput: []string{`Hello \w+`, `\d+`, `1\d`},
				Timeout:        5 * time.Second,
				UseRegex:       true,
			},
			want:       model.VerdictMatch,
			wantOutput: []string{"Hello World", "8", "15"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner(t)
			paths := testutil.WritePrograms(t, t.TempDir(), tt.mode)
			sub := &model.SubmissionConfig{
				RunCommand: testutil.HelperRunCommand(t),
				Path:       paths[0],
				Tests:      []model.TestCase{tt.tc},
			}

			report, err := runner.Run(context.Background(), sub)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if report.RunID != 42 {
				t.Errorf("RunID = %d, want 42", report.RunID)
			}
			if len(report.Programs) != 1 || len(report.Programs[0].Results) != 1 {
				t.Fatalf("report shape = %+v", report.Programs)
			}

			res := report.Programs[0].Results[0]
			if res.Verdict != tt.want {
				t.Errorf("Verdict = %s, want %s (error: %s)", res.Verdict, tt.want, res.Error)
			}
			if !reflect.DeepEqual(res.ActualOutput, tt.wantOutput) {
				t.Errorf("ActualOutput = %q, want %q", res.ActualOutput, tt.wantOutput)
			}
			if tt.want == model.VerdictMismatch {
				if res.Diff == nil || res.Diff.Index != tt.wantDiffIdx {
					t.Errorf("Diff = %+v, want index %d", res.Diff, tt.wantDiffIdx)
				}
			}
			if tt.want == model.VerdictTimeout && res.ExecutionTime > 2*time.Second {
				t.Errorf("ExecutionTime = %v, 超时后应尽快结束", res.ExecutionTime)
			}
		})
	}
}

// 乘法有误的程序只有 0,0 用例碰巧通过
func TestSuiteRunner_Run_PartialPass(t *testing.T) {
	runner := newTestRunner(t)
	paths := testutil.WritePrograms(t, t.TempDir(), testutil.ModeBuggy)
	sumCase := func(a, b, sum, product string) model.TestCase {
		return model.TestCase{
			Input:          []string{a, b},
			ExpectedOutput: []string{"Hello World", sum, product},
			Timeout:        5 * time.Second,
		}
	}
	sub := &model.SubmissionConfig{
		RunCommand: testutil.HelperRunCommand(t),
		Path:       paths[0],
		Tests: []model.TestCase{
			sumCase("5", "3", "8", "15"),
			sumCase("0", "0", "0", "0"),
			sumCase("2", "3", "5", "6"),
		},
	}

	report, err := runner.Run(context.Background(), sub)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	prog := report.Programs[0]
	want := []model.Verdict{model.VerdictMismatch, model.VerdictMatch, model.VerdictMismatch}
	for i, res := range prog.Results {
		if res.Verdict != want[i] {
			t.Errorf("Results[%d].Verdict = %s, want %s", i, res.Verdict, want[i])
		}
	}
	if prog.PassedTests != 1 || prog.TotalTests != 3 {
		t.Errorf("passed = %d/%d, want 1/3", prog.PassedTests, prog.TotalTests)
	}
	if got := fmt.Sprintf("%.2f", prog.PassedTestsRatio); got != "33.33" {
		t.Errorf("PassedTestsRatio = %s, want 33.33", got)
	}
	if report.AllPassed() {
		t.Error("AllPassed() = true, want false")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		limit int
		want  string
	}{
		{name: "未超出", s: "abc", limit: 3, want: "abc"},
		{name: "按字节截断", s: "abcdef", limit: 4, want: "abcd..."},
		{name: "不拆分多字节字符", s: "超时错误", limit: 5, want: "超..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.s, tt.limit)
			if got != tt.want {
				t.Errorf("truncate() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate() 结果不是合法的 UTF-8: %q", got)
			}
		})
	}
}

func TestSuiteRunner_Directory(t *testing.T) {
	runner := newTestRunner(t)
	dir := t.TempDir()
	testutil.WritePrograms(t, dir, testutil.ModeSum, testutil.ModeBuggy, testutil.ModeHang)
	// 隐藏文件和子目录不参与评测
	if err := os.WriteFile(filepath.Join(dir, ".hidden"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	hang := sumTest()
	hang.Timeout = time.Second
	sub := &model.SubmissionConfig{
		RunCommand: testutil.HelperRunCommand(t),
		Path:       dir,
		Tests:      []model.TestCase{sumTest(), hang},
	}

	report, err := runner.Run(context.Background(), sub)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var names []string
	for _, p := range report.Programs {
		names = append(names, p.Name)
	}
	wantNames := []string{testutil.ModeBuggy, testutil.ModeHang, testutil.ModeSum}
	if !reflect.DeepEqual(names, wantNames) {
		t.Fatalf("programs = %v, want %v", names, wantNames)
	}

	want := [][]model.Verdict{
		{model.VerdictMismatch, model.VerdictMismatch},
		{model.VerdictTimeout, model.VerdictTimeout},
		{model.VerdictMatch, model.VerdictMatch},
	}
	for p, prog := range report.Programs {
		for i, res := range prog.Results {
			if res.TestIndex != i {
				t.Errorf("%s[%d].TestIndex = %d", prog.Name, i, res.TestIndex)
			}
			if res.Verdict != want[p][i] {
				t.Errorf("%s[%d].Verdict = %s, want %s", prog.Name, i, res.Verdict, want[p][i])
			}
		}
	}

	if report.TotalTests != 6 || report.TotalPassedTests != 2 {
		t.Errorf("total = %d/%d, want 2/6", report.TotalPassedTests, report.TotalTests)
	}
	if report.AllPassed() {
		t.Error("AllPassed() = true, want false")
	}
	if got := report.Programs[2].PassedTestsRatio; got != 100 {
		t.Errorf("sum ratio = %v, want 100", got)
	}

	snapshot := runner.Metrics().GetSnapshot()
	if snapshot["total_tests"].(int64) != 6 {
		t.Errorf("metrics total_tests = %v, want 6", snapshot["total_tests"])
	}
	if snapshot["timeout_count"].(int64) != 2 {
		t.Errorf("metrics timeout_count = %v, want 2", snapshot["timeout_count"])
	}
}

func TestSuiteRunner_ConfigErrors(t *testing.T) {
	empty := t.TempDir()

	tests := []struct {
		name string
		sub  *model.SubmissionConfig
	}{
		{
			name: "路径不存在",
			sub:  &model.SubmissionConfig{Path: filepath.Join(empty, "missing"), Tests: []model.TestCase{sumTest()}},
		},
		{
			name: "空目录",
			sub:  &model.SubmissionConfig{Path: empty, Tests: []model.TestCase{sumTest()}},
		},
		{
			name: "没有用例",
			sub:  &model.SubmissionConfig{Path: empty},
		},
		{
			name: "未配置对象存储",
			sub:  &model.SubmissionConfig{Path: "minio://bucket/prefix", Tests: []model.TestCase{sumTest()}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner(t)
			report, err := runner.Run(context.Background(), tt.sub)
			if !errors.IsConfigError(err) {
				t.Fatalf("Run() error = %v, want ConfigError", err)
			}
			if report != nil {
				t.Errorf("report = %+v, want nil", report)
			}
			if runner.Metrics().ConfigErrors != 1 {
				t.Errorf("ConfigErrors = %d, want 1", runner.Metrics().ConfigErrors)
			}
		})
	}
}

func TestSuiteRunner_SpawnError(t *testing.T) {
	runner := newTestRunner(t)
	paths := testutil.WritePrograms(t, t.TempDir(), testutil.ModeSum)
	sub := &model.SubmissionConfig{
		RunCommand: "testio-no-such-interpreter",
		Path:       paths[0],
		Tests:      []model.TestCase{sumTest(), sumTest()},
	}

	report, err := runner.Run(context.Background(), sub)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	for i, res := range report.Programs[0].Results {
		if res.Verdict != model.VerdictError {
			t.Errorf("[%d].Verdict = %s, want ERROR", i, res.Verdict)
		}
		if res.Error == "" {
			t.Errorf("[%d].Error 为空", i)
		}
	}
	if runner.Metrics().SpawnFailures != 2 {
		t.Errorf("SpawnFailures = %d, want 2", runner.Metrics().SpawnFailures)
	}
}

func TestSuiteRunner_StderrAsError(t *testing.T) {
	tc := model.TestCase{Input: []string{"a"}, ExpectedOutput: []string{"b"}, Timeout: 5 * time.Second}

	tests := []struct {
		name          string
		stderrAsError bool
		want          model.Verdict
	}{
		{"默认判为不一致", false, model.VerdictMismatch},
		{"开启后判为错误", true, model.VerdictError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner(t)
			runner.cfg.StderrAsError = tt.stderrAsError
			paths := testutil.WritePrograms(t, t.TempDir(), testutil.ModeEcho)
			sub := &model.SubmissionConfig{
				RunCommand: testutil.HelperRunCommand(t),
				Path:       paths[0],
				Tests:      []model.TestCase{tc},
			}

			report, err := runner.Run(context.Background(), sub)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			res := report.Programs[0].Results[0]
			if res.Verdict != tt.want {
				t.Errorf("Verdict = %s, want %s", res.Verdict, tt.want)
			}
			if !strings.Contains(res.Error, "warn") {
				t.Errorf("Error = %q, 应包含 stderr", res.Error)
			}
			if res.ExitCode != 3 {
				t.Errorf("ExitCode = %d, want 3", res.ExitCode)
			}
		})
	}
}

func TestSuiteRunner_Compile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("编译命令使用 sh")
	}

	tests := []struct {
		name    string
		command string
		want    model.Verdict
		success bool
	}{
		{"编译成功但没有产物", "true", model.VerdictMatch, true},
		{"编译失败", "echo boom >&2; exit 1", model.VerdictError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner(t)
			paths := testutil.WritePrograms(t, t.TempDir(), testutil.ModeSum)
			sub := &model.SubmissionConfig{
				RunCommand:     testutil.HelperRunCommand(t),
				CompileCommand: tt.command,
				Path:           paths[0],
				Tests:          []model.TestCase{sumTest(), sumTest()},
			}

			report, err := runner.Run(context.Background(), sub)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			prog := report.Programs[0]
			if prog.Compile == nil || prog.Compile.Success != tt.success {
				t.Fatalf("Compile = %+v, want success=%v", prog.Compile, tt.success)
			}
			for i, res := range prog.Results {
				if res.Verdict != tt.want {
					t.Errorf("[%d].Verdict = %s, want %s", i, res.Verdict, tt.want)
				}
				if !tt.success && !strings.Contains(res.Error, "boom") {
					t.Errorf("[%d].Error = %q, 应包含编译输出", i, res.Error)
				}
			}
		})
	}
}

func TestSuiteRunner_Cancel(t *testing.T) {
	runner := newTestRunner(t)
	paths := testutil.WritePrograms(t, t.TempDir(), testutil.ModeHang)
	tc := model.TestCase{Timeout: time.Minute}
	sub := &model.SubmissionConfig{
		RunCommand: testutil.HelperRunCommand(t),
		Path:       paths[0],
		Tests:      []model.TestCase{tc, tc, tc},
	}

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(300*time.Millisecond, cancel)

	start := time.Now()
	report, err := runner.Run(ctx, sub)
	if !errors.IsErrorCode(err, errors.ErrCodeCanceled) {
		t.Fatalf("Run() error = %v, want ErrCodeCanceled", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("取消后耗时 %v, 应尽快返回", elapsed)
	}
	if runner.Metrics().CanceledSuites != 1 {
		t.Errorf("CanceledSuites = %d, want 1", runner.Metrics().CanceledSuites)
	}
}

func TestSuiteRunner_Capacity(t *testing.T) {
	runner := newTestRunner(t, WithCapacity(semaphore.NewWeighted(1)))
	paths := testutil.WritePrograms(t, t.TempDir(), testutil.ModeSum)
	sub := &model.SubmissionConfig{
		RunCommand: testutil.HelperRunCommand(t),
		Path:       paths[0],
		Tests:      []model.TestCase{sumTest(), sumTest(), sumTest(), sumTest()},
	}

	report, err := runner.Run(context.Background(), sub)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.AllPassed() {
		t.Errorf("AllPassed() = false, results = %+v", report.Programs[0].Results)
	}
	if got := runner.Metrics().MaxConcurrent; got != 1 {
		t.Errorf("MaxConcurrent = %d, want 1", got)
	}
}

type stubFetcher struct {
	modes []string
}

func (f stubFetcher) Fetch(ctx context.Context, uri, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	var paths []string
	for _, mode := range f.modes {
		path := filepath.Join(dir, mode)
		if err := os.WriteFile(path, []byte(uri), 0755); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func TestSuiteRunner_Fetcher(t *testing.T) {
	tests := []struct {
		name    string
		modes   []string
		wantErr bool
	}{
		{"下载到工作目录", []string{testutil.ModeSum}, false},
		{"远程目录为空", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := newTestRunner(t, WithFetcher(stubFetcher{modes: tt.modes}))
			sub := &model.SubmissionConfig{
				RunCommand: testutil.HelperRunCommand(t),
				Path:       "minio://programs/lab1",
				Tests:      []model.TestCase{sumTest()},
			}

			report, err := runner.Run(context.Background(), sub)
			if tt.wantErr {
				if !errors.IsConfigError(err) {
					t.Fatalf("Run() error = %v, want ConfigError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if !report.AllPassed() {
				t.Errorf("AllPassed() = false, results = %+v", report.Programs[0].Results)
			}
		})
	}
}

package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Verdict 单个用例的评测结论
type Verdict string

const (
	VerdictMatch    Verdict = "MATCH"    // 输出一致
	VerdictMismatch Verdict = "MISMATCH" // 输出不一致
	VerdictTimeout  Verdict = "TIMEOUT"  // 超时被强制终止
	VerdictError    Verdict = "ERROR"    // 编译、启动或读写失败
)

// Diff 第一处不一致的位置
type Diff struct {
	Index    int    `json:"index"`    // 行号，从 0 开始
	Expected string `json:"expected"` // 期望行，缺失时为空
	Actual   string `json:"actual"`   // 实际行，缺失时为空
	Reason   string `json:"reason"`
}

// CompileInfo 编译结果
type CompileInfo struct {
	Success  bool          `json:"success"`
	Message  string        `json:"message"`  // 编译器输出
	Cached   bool          `json:"cached"`   // 是否命中编译缓存
	Duration time.Duration `json:"duration"` // 编译耗时
}

// ExecutionResult 单个 (程序, 用例) 的执行结果
type ExecutionResult struct {
	TestIndex      int           `json:"test_index"`
	Input          []string      `json:"input"`
	ExpectedOutput []string      `json:"expected_output"`
	ActualOutput   []string      `json:"output"`
	Error          string        `json:"error"`
	Stderr         string        `json:"stderr"`
	ExitCode       int           `json:"exit_code"`
	ExecutionTime  time.Duration `json:"execution_time"`
	Verdict        Verdict       `json:"result"`
	Diff           *Diff         `json:"diff,omitempty"`
}

// Passed 是否通过
func (r ExecutionResult) Passed() bool {
	return r.Verdict == VerdictMatch
}

// ProgramReport 单个程序的全部结果，按用例下标排序
type ProgramReport struct {
	Name             string            `json:"name"`
	Path             string            `json:"path"`
	Language         string            `json:"language,omitempty"`
	Compile          *CompileInfo      `json:"compile,omitempty"`
	Results          []ExecutionResult `json:"tests"`
	PassedTests      int               `json:"passed_tests"`
	TotalTests       int               `json:"total_tests"`
	PassedTestsRatio float64           `json:"passed_tests_ratio"` // 百分比，0-100
}

// Tally 根据 Results 计算通过数与通过率
func (p *ProgramReport) Tally() {
	p.TotalTests = len(p.Results)
	p.PassedTests = 0
	for _, r := range p.Results {
		if r.Passed() {
			p.PassedTests++
		}
	}
	p.PassedTestsRatio = Ratio(p.PassedTests, p.TotalTests)
}

// SuiteReport 一次运行的汇总报告，组装完成后只读
type SuiteReport struct {
	RunID            int64           `json:"run_id"`
	Programs         []ProgramReport `json:"results"`
	TotalTests       int             `json:"total_tests"`
	TotalPassedTests int             `json:"total_passed_tests"`
	StartedAt        time.Time       `json:"started_at"`
	Duration         time.Duration   `json:"duration"`
}

// Tally 汇总所有程序的计数
func (s *SuiteReport) Tally() {
	s.TotalTests, s.TotalPassedTests = 0, 0
	for i := range s.Programs {
		s.Programs[i].Tally()
		s.TotalTests += s.Programs[i].TotalTests
		s.TotalPassedTests += s.Programs[i].PassedTests
	}
}

// AllPassed 当且仅当存在用例且全部为 MATCH
func (s *SuiteReport) AllPassed() bool {
	return s.TotalTests > 0 && s.TotalTests == s.TotalPassedTests
}

// PassedRatio 全局通过率（百分比）
func (s *SuiteReport) PassedRatio() float64 {
	return Ratio(s.TotalPassedTests, s.TotalTests)
}

// Ratio 计算百分比，total 为 0 时返回 0
func Ratio(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

// 对外输出格式：input、expected_output、output 按换行拼接为字符串

type wireTest struct {
	Input           string  `json:"input"`
	ExpectedOutput  string  `json:"expected_output"`
	Output          string  `json:"output"`
	Error           string  `json:"error"`
	Result          Verdict `json:"result"`
	ExecutionTimeMs int64   `json:"execution_time_ms"`
	Diff            *Diff   `json:"diff,omitempty"`
}

type wireProgram struct {
	Name             string     `json:"name"`
	Tests            []wireTest `json:"tests"`
	PassedTestsRatio float64    `json:"passed_tests_ratio"`
}

type wireSuite struct {
	RunID            int64         `json:"run_id,omitempty"`
	TotalTests       int           `json:"total_tests"`
	TotalPassedTests int           `json:"total_passed_tests"`
	Results          []wireProgram `json:"results"`
}

// MarshalJSON 输出对外约定的报告格式
func (s SuiteReport) MarshalJSON() ([]byte, error) {
	out := wireSuite{
		RunID:            s.RunID,
		TotalTests:       s.TotalTests,
		TotalPassedTests: s.TotalPassedTests,
		Results:          make([]wireProgram, 0, len(s.Programs)),
	}
	for _, p := range s.Programs {
		wp := wireProgram{
			Name:             p.Name,
			Tests:            make([]wireTest, 0, len(p.Results)),
			PassedTestsRatio: p.PassedTestsRatio,
		}
		for _, r := range p.Results {
			wp.Tests = append(wp.Tests, wireTest{
				Input:           strings.Join(r.Input, "\n"),
				ExpectedOutput:  strings.Join(r.ExpectedOutput, "\n"),
				Output:          strings.Join(r.ActualOutput, "\n"),
				Error:           r.Error,
				Result:          r.Verdict,
				ExecutionTimeMs: r.ExecutionTime.Milliseconds(),
				Diff:            r.Diff,
			})
		}
		out.Results = append(out.Results, wp)
	}
	return json.Marshal(out)
}

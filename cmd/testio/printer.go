package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/djeada/Testio/internal/model"
)

const (
	colorHeader  = "\033[95m"
	colorOK      = "\033[96m"
	colorSuccess = "\033[92m"
	colorWarning = "\033[93m"
	colorFail    = "\033[91m"
	colorEnd     = "\033[0m"
)

// printer 以文本形式输出评测报告
type printer struct {
	w     io.Writer
	quiet bool
	color bool
}

func (p *printer) Print(report *model.SuiteReport) {
	for _, prog := range report.Programs {
		p.printProgram(prog)
	}

	p.paint(colorHeader, "总计: %d/%d 通过 (%.2f%%)\n", report.TotalPassedTests, report.TotalTests, report.PassedRatio())
	if report.AllPassed() {
		p.paint(colorSuccess, "全部测试通过 :)\n")
	}
}

func (p *printer) printProgram(prog model.ProgramReport) {
	header := prog.Name
	if prog.Language != "" {
		header += " (" + prog.Language + ")"
	}
	p.paint(colorHeader, "== %s ==\n", header)

	if !p.quiet {
		if prog.Compile != nil && !prog.Compile.Success {
			p.paint(colorFail, "编译失败:\n%s\n", indent(prog.Compile.Message))
		}
		for _, res := range prog.Results {
			p.printResult(res)
		}
	}

	p.paint(colorHeader, "%s: %d/%d 通过 (%.2f%%)\n\n", prog.Name, prog.PassedTests, prog.TotalTests, prog.PassedTestsRatio)
}

func (p *printer) printResult(res model.ExecutionResult) {
	n := res.TestIndex + 1
	ms := res.ExecutionTime.Milliseconds()

	switch res.Verdict {
	case model.VerdictMatch:
		p.paint(colorOK, "%d. 通过 (%dms)\n", n, ms)
		p.printLines("输入", res.Input, "没有输入")
		p.printLines("期望输出", res.ExpectedOutput, "不期望任何输出")
		p.printLines("实际输出", res.ActualOutput, "程序没有输出")
	case model.VerdictMismatch:
		p.paint(colorFail, "%d. 失败 (%dms)\n", n, ms)
		p.printLines("输入", res.Input, "没有输入")
		p.printLines("期望输出", res.ExpectedOutput, "不期望任何输出")
		p.printLines("实际输出", res.ActualOutput, "程序没有输出")
		if d := res.Diff; d != nil {
			p.paint(colorWarning, "差异: 第 %d 行, 期望 %q, 实际 %q (%s)\n", d.Index+1, d.Expected, d.Actual, d.Reason)
		}
	case model.VerdictTimeout:
		p.paint(colorFail, "%d. 超时 (%dms)\n", n, ms)
		p.printLines("输入", res.Input, "没有输入")
	default:
		p.paint(colorFail, "%d. 错误\n", n)
		p.printLines("输入", res.Input, "没有输入")
		fmt.Fprintf(p.w, "错误:\n%s\n", indent(res.Error))
	}
}

func (p *printer) printLines(title string, lines []string, empty string) {
	if len(lines) == 0 {
		fmt.Fprintf(p.w, "%s: %s\n", title, empty)
		return
	}
	fmt.Fprintf(p.w, "%s:\n%s\n", title, indent(strings.Join(lines, "\n")))
}

func (p *printer) paint(color, format string, args ...any) {
	if p.color {
		fmt.Fprint(p.w, color)
		fmt.Fprintf(p.w, format, args...)
		fmt.Fprint(p.w, colorEnd)
		return
	}
	fmt.Fprintf(p.w, format, args...)
}

func indent(s string) string {
	if s == "" {
		return "  "
	}
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}

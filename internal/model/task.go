package model

import "time"

// Mode 比较模式，三个标志互相独立
type Mode struct {
	Unordered bool `json:"unordered"` // 按多重集合比较，忽略顺序
	UseRegex  bool `json:"use_regex"` // 期望输出按正则表达式整行匹配
}

// TestCase 单个测试用例，解析完成后不再修改
type TestCase struct {
	Input          []string      `json:"input"`           // 按行给出的输入
	ExpectedOutput []string      `json:"expected_output"` // 按行给出的期望输出
	Timeout        time.Duration `json:"timeout"`         // 墙钟超时，从进程启动开始计时
	Interleaved    bool          `json:"interleaved"`     // 交互模式，输入与输出交替进行
	Unordered      bool          `json:"unordered"`
	UseRegex       bool          `json:"use_regex"`
}

// Mode 返回该用例的比较模式
func (tc TestCase) Mode() Mode {
	return Mode{Unordered: tc.Unordered, UseRegex: tc.UseRegex}
}

// SubmissionConfig 一次评测提交的配置
type SubmissionConfig struct {
	RunCommand     string     `json:"run_command"`     // run_command 优先，其次 command；为空时直接执行程序
	CompileCommand string     `json:"compile_command"` // 支持 {source} 与 {output} 占位符
	Path           string     `json:"path"`            // 单个程序文件或包含多个程序的目录
	Tests          []TestCase `json:"tests"`
}

// WithPath 返回替换了 Path 的副本，原配置保持不变
func (s SubmissionConfig) WithPath(path string) SubmissionConfig {
	s.Path = path
	return s
}

// Program 一个待评测的目标程序
type Program struct {
	Name string // 文件名，用于报告
	Path string // 源文件绝对路径
}

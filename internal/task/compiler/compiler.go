package compiler

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/djeada/Testio/internal/constants"
)

// Compiler 编译器接口，返回编译器输出
type Compiler interface {
	Compile(ctx context.Context, codePath, exePath string) (string, error)
}

// NewCompiler 根据编译命令创建编译器，命令为空时返回 nil
func NewCompiler(command string, timeout time.Duration) Compiler {
	if strings.TrimSpace(command) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = constants.DefaultCompileTimeout
	}
	return &ShellCompiler{
		Command: command,
		Timeout: timeout,
	}
}

// Expand 替换编译命令中的占位符，含空格等特殊字符的路径按平台 shell 的规则加引号
func Expand(command, codePath, exePath string) string {
	return strings.NewReplacer(
		constants.PlaceholderSource, quote(codePath),
		constants.PlaceholderOutput, quote(exePath),
	).Replace(command)
}

// quote 路径只含安全字符时原样返回
func quote(path string) string {
	if path != "" && strings.IndexFunc(path, unsafeShellRune) < 0 {
		return path
	}
	if runtime.GOOS == "windows" {
		return `"` + path + `"`
	}
	return "'" + strings.ReplaceAll(path, "'", `'\''`) + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	case strings.ContainsRune("/._-+,:@%=", r):
		return false
	case r == '\\' && runtime.GOOS == "windows":
		return false
	}
	return true
}

// ExecutableName 编译产物在当前平台上的文件名
func ExecutableName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

// shell 当前平台执行命令字符串的方式
func shell(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", command}
	}
	return "sh", []string{"-c", command}
}

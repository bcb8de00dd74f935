package compiler

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/djeada/Testio/internal/constants"
	"github.com/djeada/Testio/internal/task/proctree"
	"github.com/djeada/Testio/pkg/errors"
	"go.uber.org/zap"
)

// ShellCompiler 通过平台 shell 执行带占位符的编译命令，工作目录为源文件所在目录
type ShellCompiler struct {
	Command string
	Timeout time.Duration
}

// Compile 编译代码，失败时返回编译器输出和 CompileError
func (s *ShellCompiler) Compile(ctx context.Context, codePath, exePath string) (string, error) {
	command := Expand(s.Command, codePath, exePath)

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	name, args := shell(command)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = filepath.Dir(codePath)
	proctree.Prepare(cmd)
	// 超时或取消时结束整个进程树
	cmd.Cancel = func() error {
		return proctree.Terminate(cmd.Process)
	}
	cmd.WaitDelay = constants.DefaultKillGrace

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	err := cmd.Run()
	msg := truncate(output.String(), constants.MaxErrorSize)

	if err != nil {
		switch {
		case stderrors.Is(ctx.Err(), context.DeadlineExceeded):
			err = errors.Wrap(errors.ErrCodeCompileTimeout, "编译超时", ctx.Err())
		case ctx.Err() != nil:
			err = errors.Wrap(errors.ErrCodeCanceled, "编译已取消", ctx.Err())
		default:
			if msg == "" {
				msg = err.Error()
			}
			err = errors.NewCompileError("编译失败", err)
		}
		zap.L().Warn("编译失败",
			zap.String("code_path", codePath),
			zap.String("command", command),
			zap.String("error", msg),
		)
		return msg, err
	}

	zap.L().Info("编译成功",
		zap.String("code_path", codePath),
		zap.String("exe_path", exePath),
		zap.Duration("duration", time.Since(start)),
	)
	return msg, nil
}

func truncate(s string, limit int) string {
	s = strings.TrimRight(s, "\r\n")
	if len(s) <= limit {
		return s
	}
	// 不在多字节字符中间截断
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + "\n...(truncated)"
}

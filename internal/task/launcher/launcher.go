// Package launcher 启动目标程序并持有它的进程句柄与标准流
package launcher

import (
	"io"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/djeada/Testio/internal/task/proctree"
	"github.com/djeada/Testio/pkg/errors"
	"github.com/mattn/go-shellwords"
	"go.uber.org/zap"
)

// Launcher 按运行命令启动目标程序
type Launcher struct {
	maxOutputSize int64
	killGrace     time.Duration
}

// NewLauncher maxOutputSize 为单个输出流的上限，killGrace 为进程退出后等待管道关闭的时间
func NewLauncher(maxOutputSize int64, killGrace time.Duration) *Launcher {
	return &Launcher{
		maxOutputSize: maxOutputSize,
		killGrace:     killGrace,
	}
}

// Process 一个运行中的目标程序
type Process struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *StreamBuffer
	stderr    *StreamBuffer
	startedAt time.Time

	done     chan struct{}
	waitErr  error
	exitCode int

	terminateOnce sync.Once
	terminateErr  error
}

// Argv 组装命令行：运行命令按 shell 规则拆分后追加可执行文件路径，运行命令为空时直接执行该文件
// 运行命令含管道、&&、重定向、变量或通配符时交给平台 shell 执行，可执行文件路径作为最后一个参数传入
func Argv(runCommand, executable string) ([]string, error) {
	if runCommand == "" {
		return []string{executable}, nil
	}
	parser := shellwords.NewParser()
	args, err := parser.Parse(runCommand)
	if err != nil {
		return nil, err
	}
	if parser.Position >= 0 || strings.ContainsAny(runCommand, shellMeta) {
		return shellArgv(runCommand, executable), nil
	}
	if len(args) == 0 {
		return []string{executable}, nil
	}
	return append(args, executable), nil
}

// shellMeta 拆分运行命令时不会展开的字符
const shellMeta = "$`*?"

func shellArgv(runCommand, executable string) []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", runCommand + ` "` + executable + `"`}
	}
	// sh -c 的第一个额外参数成为 $0
	return []string{"sh", "-c", runCommand + ` "$0"`, executable}
}

// Spawn 启动程序，stdin、stdout、stderr 均为独立的管道
func (l *Launcher) Spawn(runCommand, executable string) (*Process, error) {
	if abs, err := filepath.Abs(executable); err == nil {
		executable = abs
	}

	argv, err := Argv(runCommand, executable)
	if err != nil {
		return nil, errors.NewSpawnError(runCommand, err)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	proctree.Prepare(cmd)
	// 进程退出后，若后代进程仍占用管道，最多再等待 killGrace
	cmd.WaitDelay = l.killGrace

	p := &Process{
		cmd:      cmd,
		stdout:   NewStreamBuffer(l.maxOutputSize),
		stderr:   NewStreamBuffer(l.maxOutputSize),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	p.stdin, err = cmd.StdinPipe()
	if err != nil {
		return nil, errors.NewSpawnError(argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.NewSpawnError(argv[0], err)
	}
	p.startedAt = time.Now()

	zap.L().Debug("程序已启动",
		zap.Strings("argv", argv),
		zap.Int("pid", cmd.Process.Pid),
	)

	go p.wait()
	return p, nil
}

func (p *Process) wait() {
	p.waitErr = p.cmd.Wait()
	if p.cmd.ProcessState != nil {
		p.exitCode = p.cmd.ProcessState.ExitCode()
	}
	close(p.done)
}

// Stdin 子进程的标准输入
func (p *Process) Stdin() io.WriteCloser {
	return p.stdin
}

// Stdout 子进程标准输出的缓冲区
func (p *Process) Stdout() *StreamBuffer {
	return p.stdout
}

// Stderr 子进程标准错误的缓冲区
func (p *Process) Stderr() *StreamBuffer {
	return p.stderr
}

// StartedAt 启动时间，超时从这里开始计算
func (p *Process) StartedAt() time.Time {
	return p.startedAt
}

// Done 进程退出且输出流读取结束后关闭
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// ExitCode 退出码，被信号终止时为 -1；只应在 Done 关闭后调用
func (p *Process) ExitCode() int {
	return p.exitCode
}

// WaitErr cmd.Wait 的返回值；只应在 Done 关闭后调用
// 非零退出码同样以 *exec.ExitError 体现，它不代表评测失败
func (p *Process) WaitErr() error {
	return p.waitErr
}

// Pid 进程号
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Terminate 结束仍在运行的进程树，可重复调用
func (p *Process) Terminate() error {
	p.terminateOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		p.terminateErr = proctree.Terminate(p.cmd.Process)
		if p.terminateErr != nil {
			zap.L().Warn("结束进程树失败", zap.Int("pid", p.Pid()), zap.Error(p.terminateErr))
		}
	})
	return p.terminateErr
}

// Release 结束进程组中残留的后代进程，进程本身已退出时同样生效
// 后台运行且不占用输出管道的后代只能在这里被清理
func (p *Process) Release() {
	if err := proctree.Terminate(p.cmd.Process); err != nil {
		zap.L().Warn("清理残留进程失败", zap.Int("pid", p.Pid()), zap.Error(err))
	}
}

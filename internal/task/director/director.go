// Package director 驱动单个运行中的进程完成一个测试用例的输入输出，并在截止时间到达时强制结束它
//
// 每次 Drive 调用对应一个状态机：RUNNING 只会转移一次，到 DONE、TIMED_OUT、ERRORED 或 CANCELED 之一。
// 截止计时器与上下文取消各自独立地尝试转移状态，先到者生效并负责结束进程树。
package director

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/djeada/Testio/internal/model"
	"github.com/djeada/Testio/internal/task/launcher"
	"github.com/djeada/Testio/pkg/errors"
	"go.uber.org/zap"
)

// State 用例执行状态
type State int32

const (
	StateRunning State = iota
	StateDone
	StateTimedOut
	StateErrored
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateDone:
		return "DONE"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateErrored:
		return "ERRORED"
	case StateCanceled:
		return "CANCELED"
	}
	return "UNKNOWN"
}

// Outcome 一次驱动的结果，超时或出错时 Lines 仍保留已捕获的输出
type Outcome struct {
	State     State
	Lines     []string
	Stderr    string
	ExitCode  int
	Err       error
	Duration  time.Duration
	Truncated bool
}

// Director 输入输出驱动器，无状态，可并发使用
type Director struct {
	quiescence time.Duration
}

// NewDirector quiescence 为交互模式下判定程序在等待输入的静默窗口
func NewDirector(quiescence time.Duration) *Director {
	return &Director{quiescence: quiescence}
}

// run 单次驱动的共享状态
type run struct {
	proc *launcher.Process

	mu    sync.Mutex
	state State
	err   error
}

// transition 从 RUNNING 转移到 to，只有第一次调用成功
func (r *run) transition(to State, err error) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return false
	}
	r.state, r.err = to, err
	return true
}

func (r *run) running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRunning
}

func (r *run) result() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.err
}

// Drive 按用例驱动进程直到进程退出、超时、出错或 ctx 被取消
// 截止时间从进程启动时开始计算
func (d *Director) Drive(ctx context.Context, proc *launcher.Process, tc model.TestCase) *Outcome {
	r := &run{proc: proc}

	deadline := time.AfterFunc(time.Until(proc.StartedAt().Add(tc.Timeout)), func() {
		if r.transition(StateTimedOut, errors.NewTimeoutError(tc.Timeout.String())) {
			proc.Terminate()
		}
	})
	defer deadline.Stop()

	stop := context.AfterFunc(ctx, func() {
		if r.transition(StateCanceled, errors.Wrap(errors.ErrCodeCanceled, "运行已取消", context.Cause(ctx))) {
			proc.Terminate()
		}
	})
	defer stop()

	if tc.Interleaved {
		d.interleave(r, tc.Input)
	} else {
		d.batch(r, tc.Input)
	}

	// 无论以何种方式结束都等待输出流关闭，保证已捕获的输出完整
	<-proc.Done()
	// 主进程正常退出后仍可能留有后台后代进程，任何终态下都要清理整个进程组
	proc.Release()
	r.transition(StateDone, nil)
	state, err := r.result()

	out := &Outcome{
		State:     state,
		Lines:     model.SplitLines(proc.Stdout().String()),
		Stderr:    proc.Stderr().String(),
		ExitCode:  proc.ExitCode(),
		Err:       err,
		Duration:  time.Since(proc.StartedAt()),
		Truncated: proc.Stdout().Truncated() || proc.Stderr().Truncated(),
	}

	zap.L().Debug("用例执行结束",
		zap.Int("pid", proc.Pid()),
		zap.Stringer("state", out.State),
		zap.Int("exit_code", out.ExitCode),
		zap.Duration("duration", out.Duration),
	)
	return out
}

// batch 一次性写入全部输入后关闭 stdin，然后等待进程退出
// 程序没有读完输入就退出不视为错误
func (d *Director) batch(r *run, input []string) {
	written := make(chan error, 1)
	go func() {
		stdin := r.proc.Stdin()
		_, err := io.WriteString(stdin, model.JoinInput(input))
		if closeErr := stdin.Close(); err == nil {
			err = closeErr
		}
		written <- err
	}()

	select {
	case err := <-written:
		if err != nil && !isBrokenPipe(err) && r.transition(StateErrored, errors.Wrap(errors.ErrCodeIO, "写入标准输入失败", err)) {
			r.proc.Terminate()
		}
	case <-r.proc.Done():
	}
}

// interleave 交互模式：stdout 与 stderr 静默超过窗口时认为程序在等待输入，写入下一行
// 输入全部写完后关闭 stdin，继续等待进程退出
func (d *Director) interleave(r *run, input []string) {
	stdin := r.proc.Stdin()
	queue := input
	if len(queue) == 0 {
		stdin.Close()
	}

	quiet := time.NewTimer(d.quiescence)
	defer quiet.Stop()
	restart := func() {
		if !quiet.Stop() {
			select {
			case <-quiet.C:
			default:
			}
		}
		quiet.Reset(d.quiescence)
	}

	for {
		select {
		case <-r.proc.Done():
			return

		case <-r.proc.Stdout().Notify():
			restart()

		case <-r.proc.Stderr().Notify():
			restart()

		case <-quiet.C:
			if len(queue) == 0 {
				// 输入已耗尽，只需等待进程退出或截止时间
				continue
			}
			line := queue[0]
			queue = queue[1:]

			if _, err := io.WriteString(stdin, line+"\n"); err != nil {
				// 超时或取消导致的写入失败由对应一方负责
				if r.running() && r.transition(StateErrored, errors.Wrap(errors.ErrCodeBrokenPipe, "写入交互输入时管道已关闭", err)) {
					r.proc.Terminate()
				}
				return
			}
			if len(queue) == 0 {
				stdin.Close()
			}
			quiet.Reset(d.quiescence)
		}
	}
}

// isBrokenPipe 对端已关闭读端或管道已被关闭
func isBrokenPipe(err error) bool {
	return stderrors.Is(err, os.ErrClosed) || stderrors.Is(err, io.ErrClosedPipe) || isPlatformBrokenPipe(err)
}

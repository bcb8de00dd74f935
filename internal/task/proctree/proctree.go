// Package proctree 提供统一的“终止进程树”能力，超时计时器和整体取消都通过它结束子进程
package proctree

import (
	"os"
	"os/exec"
)

// Prepare 在 cmd.Start 之前调用，使子进程成为新进程组的组长
func Prepare(cmd *exec.Cmd) {
	setProcessGroup(cmd)
}

// Terminate 强制结束进程及其所有后代，进程已退出时返回 nil
func Terminate(p *os.Process) error {
	if p == nil {
		return nil
	}
	return terminateTree(p)
}

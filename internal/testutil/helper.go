// Package testutil 为需要真实子进程的测试提供可控的目标程序
//
// 测试二进制以 `-test.run=TestHelperProcess -- <mode>` 重新执行自身时扮演目标程序，
// mode 取最后一个参数的文件名（去掉扩展名），因此程序文件名即决定行为。
// 使用方需在包内定义：
//
//	func TestHelperProcess(t *testing.T) { testutil.RunHelper() }
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

// 可用的 mode
const (
	ModeSum        = "sum"         // 读两个整数，输出 Hello World、和、积
	ModeBuggy      = "buggy"       // 同 sum，但积输出为第二个数
	ModeHang       = "hang"        // 不读输入，永不退出
	ModePrompt     = "prompt"      // 交互式：提问、读取、回答，共两轮
	ModeSpawnChild = "spawn-child" // 启动一个 hang 子进程后自己也挂起
	ModeEcho       = "echo"        // 逐行回显输入，stderr 输出 warn，退出码 3
	ModeUnordered  = "unordered"   // 输出 C、A、B
	ModeExitEarly  = "exit-early"  // 不读输入直接输出 bye 并退出
	ModeCloseStdin = "close-stdin" // 关闭 stdin 后输出 ready 并挂起
	ModeSilent     = "silent"      // 不输出任何内容
	ModeDetach     = "detach"      // 启动一个不占用输出管道的 hang 子进程，输出其 pid 后立即退出
	ModeAskTimed   = "ask-timed"   // 交互式：两轮提问，回答中注明输入是提问后才到达还是早已在缓冲区
)

// AnswerWaitThreshold 提问后超过该时间才读到输入时，ask-timed 回答 waited，否则回答 buffered
const AnswerWaitThreshold = 50 * time.Millisecond

// HelperRunCommand 返回以辅助模式启动当前测试二进制的运行命令，程序路径会被追加在末尾
func HelperRunCommand(t testing.TB) string {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("无法获取测试二进制路径: %v", err)
	}
	return fmt.Sprintf("%q -test.run=TestHelperProcess --", exe)
}

// WritePrograms 在 dir 下按 mode 创建空的程序文件并返回路径
func WritePrograms(t testing.TB, dir string, modes ...string) []string {
	t.Helper()
	paths := make([]string, 0, len(modes))
	for _, mode := range modes {
		path := filepath.Join(dir, mode)
		if err := os.WriteFile(path, []byte("# "+mode+"\n"), 0755); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, path)
	}
	return paths
}

// RunHelper 不处于辅助模式时直接返回，否则执行对应行为并退出进程
func RunHelper() {
	mode, ok := helperMode()
	if !ok {
		return
	}
	os.Exit(runMode(mode))
}

func helperMode() (string, bool) {
	for i, arg := range os.Args {
		if arg == "--" && i+1 < len(os.Args) {
			base := filepath.Base(os.Args[len(os.Args)-1])
			return strings.TrimSuffix(base, filepath.Ext(base)), true
		}
	}
	return "", false
}

func runMode(mode string) int {
	in := bufio.NewScanner(os.Stdin)
	switch mode {
	case ModeSum, ModeBuggy:
		a, b := readInt(in), readInt(in)
		fmt.Println("Hello World")
		fmt.Println(a + b)
		if mode == ModeBuggy {
			fmt.Println(b)
		} else {
			fmt.Println(a * b)
		}
	case ModeHang:
		time.Sleep(time.Hour)
	case ModePrompt:
		fmt.Println("Name?")
		name := readLine(in)
		fmt.Printf("Hello, %s\n", name)
		fmt.Println("Age?")
		age := readLine(in)
		fmt.Printf("Age: %s\n", age)
	case ModeSpawnChild:
		child := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", ModeHang)
		child.Stdout = os.Stdout
		if err := child.Start(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println("parent")
		time.Sleep(time.Hour)
	case ModeEcho:
		fmt.Fprintln(os.Stderr, "warn")
		for in.Scan() {
			fmt.Println(in.Text())
		}
		return 3
	case ModeUnordered:
		fmt.Println("C")
		fmt.Println("A")
		fmt.Println("B")
	case ModeExitEarly:
		fmt.Println("bye")
	case ModeCloseStdin:
		os.Stdin.Close()
		fmt.Println("ready")
		time.Sleep(time.Minute)
	case ModeDetach:
		child := exec.Command(os.Args[0], "-test.run=TestHelperProcess", "--", ModeHang)
		if err := child.Start(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(child.Process.Pid)
	case ModeAskTimed:
		for _, question := range []string{"Name?", "Age?"} {
			fmt.Println(question)
			asked := time.Now()
			answer := readLine(in)
			if time.Since(asked) >= AnswerWaitThreshold {
				fmt.Println(answer, "waited")
			} else {
				fmt.Println(answer, "buffered")
			}
		}
	case ModeSilent:
	default:
		fmt.Fprintf(os.Stderr, "unknown helper mode %q\n", mode)
		return 2
	}
	return 0
}

func readLine(in *bufio.Scanner) string {
	if in.Scan() {
		return strings.TrimSpace(in.Text())
	}
	return ""
}

func readInt(in *bufio.Scanner) int {
	n, _ := strconv.Atoi(readLine(in))
	return n
}

package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	// DefaultCommand 默认的 adb 可执行文件
	DefaultCommand = "adb"
)

// Options 初始化参数，对应 adb 自身的全局选项
type Options struct {
	Command  string // adb 命令，可以带参数，例如 "adb -L tcp:5038"
	Device   bool   // -d 仅连接 USB 设备
	Emulator bool   // -e 仅连接模拟器
	Serial   string // -s 设备序列号
	Host     string // -H adb server 主机
	Port     string // -P adb server 端口
}

// Result 一次命令执行的结果
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner 负责真正执行外部命令，测试时可以替换
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExitError 命令执行完成但退出码非 0
type ExitError struct {
	Args     []string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", strings.Join(e.Args, " "), e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// ExecRunner 基于 os/exec 的默认实现
type ExecRunner struct{}

// Run 执行命令并捕获 stdout/stderr
// 退出码非 0 时同时返回 Result 和 *ExitError，调用方仍然可以解析输出
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{
				Args:     append([]string{name}, args...),
				ExitCode: res.ExitCode,
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return nil, fmt.Errorf("run %s: %w", name, err)
	}
	return res, nil
}

// Client adb 命令行客户端
type Client struct {
	opts   *Options
	runner Runner
}

// NewClient 创建客户端，runner 为 nil 时使用 ExecRunner
func NewClient(opts *Options, runner Runner) *Client {
	if opts == nil {
		opts = &Options{}
	}
	if strings.TrimSpace(opts.Command) == "" {
		opts.Command = DefaultCommand
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	return &Client{opts: opts, runner: runner}
}

// baseArgs 组装 adb 程序名和全局选项
func (c *Client) baseArgs() (string, []string) {
	parts := strings.Fields(c.opts.Command)
	name, args := parts[0], append([]string(nil), parts[1:]...)
	if c.opts.Device {
		args = append(args, "-d")
	}
	if c.opts.Emulator {
		args = append(args, "-e")
	}
	if c.opts.Serial != "" {
		args = append(args, "-s", c.opts.Serial)
	}
	if c.opts.Host != "" {
		args = append(args, "-H", c.opts.Host)
	}
	if c.opts.Port != "" {
		args = append(args, "-P", c.opts.Port)
	}
	return name, args
}

// Run 执行 adb 子命令 (push/pull 等)
func (c *Client) Run(ctx context.Context, args ...string) (*Result, error) {
	name, base := c.baseArgs()
	return c.runner.Run(ctx, name, append(base, args...)...)
}

// Shell 在设备上执行一条 shell 命令
// 命令字符串原样交给设备端 shell，参数需要先用 QuoteArgument 处理
func (c *Client) Shell(ctx context.Context, command string) (*Result, error) {
	return c.Run(ctx, "shell", command)
}

// Lines 按行拆分输出，去掉行尾的 \r\n
func (r *Result) Lines() []string {
	if r == nil || len(r.Stdout) == 0 {
		return nil
	}
	raw := strings.Split(string(r.Stdout), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if l == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// QuoteArgument 为 adb shell 引用参数
// adb shell 会把参数放进双引号但不做任何转义，所以这里自己处理
func QuoteArgument(arg string) string {
	arg = strings.ReplaceAll(arg, `\`, `\\`)
	arg = strings.ReplaceAll(arg, `"`, `\"`)
	arg = strings.ReplaceAll(arg, `$`, `\$`)
	arg = strings.ReplaceAll(arg, "`", "\\`")
	return `"` + arg + `"`
}

package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// ParseLevel 解析日志等级，无法识别时使用 info
// levelStr: "debug", "info", "warn", "error"
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler 构造日志 Handler：控制台使用 tint 彩色输出，file 不为 nil 时同时写入文本日志
func NewHandler(console io.Writer, colored bool, file io.Writer, level slog.Level) slog.Handler {
	consoleHandler := tint.NewHandler(console, &tint.Options{
		Level:      level,
		AddSource:  level == slog.LevelDebug, // 仅在 Debug 模式下显示文件名和行号
		TimeFormat: "15:04:05.000",
		NoColor:    !colored,
	})
	if file == nil {
		return consoleHandler
	}
	fileHandler := slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})
	return NewMultiHandler(consoleHandler, fileHandler)
}

// Setup 初始化全局日志配置
// logPath: 日志文件路径 (如果为空则只输出到控制台)
func Setup(levelStr string, logPath string) error {
	level := ParseLevel(levelStr)

	var file io.Writer
	if logPath != "" {
		// 确保日志目录存在
		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
			return err
		}

		// 打开日志文件 (追加模式)
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		file = f
	}

	colored := isatty.IsTerminal(os.Stdout.Fd())
	slog.SetDefault(slog.New(NewHandler(os.Stdout, colored, file, level)))
	return nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

const version = "1.0.0"

func main() {
	// Ctrl+C 时取消 context，正在传输的文件由同步引擎负责清理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

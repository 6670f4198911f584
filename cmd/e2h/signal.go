package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// signalContext: SIGINT/SIGTERM 取消运行。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

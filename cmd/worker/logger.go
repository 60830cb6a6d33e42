package main

import (
	"fmt"
	"log/slog"
	"os"
)

// slogAdapter routes asynq's internal logging through slog.
type slogAdapter struct{}

func (slogAdapter) Debug(args ...any) { slog.Debug(fmt.Sprint(args...), "component", "asynq") }
func (slogAdapter) Info(args ...any)  { slog.Info(fmt.Sprint(args...), "component", "asynq") }
func (slogAdapter) Warn(args ...any)  { slog.Warn(fmt.Sprint(args...), "component", "asynq") }
func (slogAdapter) Error(args ...any) { slog.Error(fmt.Sprint(args...), "component", "asynq") }

func (slogAdapter) Fatal(args ...any) {
	slog.Error(fmt.Sprint(args...), "component", "asynq")
	os.Exit(1)
}

// Package logging builds the dedicated JSON logger every component writes to.
// The process-wide slog default is left untouched.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const DefaultName = "redis-metrics"

type Options struct {
	// Name identifies the channel in every record.
	Name    string
	Service string
	Level   slog.Leveler
	// Writer defaults to os.Stdout.
	Writer io.Writer
	// File, when set, receives a copy of every line with size-based rotation.
	File string
	// Resources adds resource_utilization to every record when non-nil.
	Resources ResourceSampler
}

// New returns a logger bound to its own handler and a function that releases
// the file sink, if any.
func New(opts Options) (*slog.Logger, func() error) {
	h, closeFn := NewHandler(opts)
	return slog.New(h), closeFn
}

func NewHandler(opts Options) (*Handler, func() error) {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Service == "" {
		opts.Service = DefaultName
	}
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}

	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	closeFn := func() error { return nil }
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
		w = io.MultiWriter(w, rotator)
		closeFn = rotator.Close
	}

	host, err := os.Hostname()
	if err != nil {
		host = unknown
	}

	return &Handler{
		name:      opts.Name,
		service:   opts.Service,
		host:      host,
		pid:       os.Getpid(),
		level:     opts.Level,
		out:       &output{w: w},
		resources: opts.Resources,
		newID:     newUUID,
	}, closeFn
}

// ParseLevel accepts level names and the numeric values 10..50 used by
// other tooling in the same log pipeline. Unknown input yields Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "10":
		return slog.LevelDebug
	case "info", "20":
		return slog.LevelInfo
	case "warn", "warning", "30":
		return slog.LevelWarn
	case "error", "40":
		return slog.LevelError
	case "fatal", "critical", "50":
		return LevelFatal
	default:
		return slog.LevelInfo
	}
}

// Fatal writes a FATAL record attributed to its caller. The caller decides
// how to exit.
func Fatal(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	if !logger.Enabled(ctx, LevelFatal) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(2, pcs[:])
	r := slog.NewRecord(time.Now(), LevelFatal, msg, pcs[0])
	r.Add(args...)
	_ = logger.Handler().Handle(ctx, r)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

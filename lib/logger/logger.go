package logger

import (
	"io"
	"log"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger builds the process logger: debug text on stdout for local,
// debug text to a file for dev, info JSON to a file for prod. An
// unwritable log file falls back to stdout instead of refusing to start,
// since losing log output is better than losing attribution events.
func SetupLogger(env, logPath string) *slog.Logger {
	var out io.Writer = os.Stdout

	if env != envLocal {
		logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			log.Printf("log file %s unavailable, logging to stdout: %v", logPath, err)
		} else {
			out = logFile
			log.Printf("env: %s; log file: %s", env, logPath)
		}
	}

	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log.Fatal("invalid environment: ", env)
	}
	return nil
}

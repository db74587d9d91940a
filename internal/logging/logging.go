// Package logging builds the supervisor's own logger and manages the
// log files of supervised children.
package logging

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFileName is the supervisor's own log file under the root directory.
const LogFileName = "process-compose.log"

// New builds the root logger: console plus a file sink under rootDir.
// The returned AtomicLevel lets the caller apply the configured
// log_level after the configuration has been parsed. The file sink is
// skipped if the file cannot be opened; the supervisor still runs with
// console logging only.
func New(rootDir string) (*zap.Logger, zap.AtomicLevel) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}
	path := filepath.Join(rootDir, LogFileName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err == nil {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(file), level))
	}
	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), level
}

// ApplyLevel applies a configured level name to lvl. Unknown names keep
// the current level.
func ApplyLevel(lvl zap.AtomicLevel, name string) {
	if name == "" {
		return
	}
	parsed, err := zapcore.ParseLevel(name)
	if err != nil {
		return
	}
	lvl.SetLevel(parsed)
}

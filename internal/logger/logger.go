package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu            sync.Mutex
	base          = zap.NewNop()
	sugar         = base.Sugar()
	logFile       *os.File
	isInitialized bool
)

// Init initializes the logger to write JSON lines to the provided file path
// at the given level. An empty path puts the log next to the executable.
// Stdout is never used: it carries the MCP stdio transport.
func Init(path, level string) error {
	mu.Lock()
	defer mu.Unlock()
	if isInitialized {
		return nil
	}
	if path == "" {
		path = defaultPath()
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), lvl)

	logFile = f
	base = zap.New(core)
	sugar = base.Sugar()
	isInitialized = true
	return nil
}

// L returns the structured logger. It is a no-op logger until Init succeeds.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base
}

// Close flushes and closes the underlying log file, if open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	_ = base.Sync()
	base = zap.NewNop()
	sugar = base.Sugar()
	isInitialized = false
	if logFile != nil {
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// Infof logs informational messages.
func Infof(format string, args ...any) { s().Infof(format, args...) }

// Warnf logs warnings.
func Warnf(format string, args ...any) { s().Warnf(format, args...) }

// Errorf logs errors.
func Errorf(format string, args ...any) { s().Errorf(format, args...) }

func s() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	return sugar
}

func defaultPath() string {
	// Default to the directory where the executable is located
	if exePath, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exePath), "livescore-mcp.log")
	}
	return "./livescore-mcp.log"
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

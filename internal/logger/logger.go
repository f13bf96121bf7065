package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log file names served by the /logs endpoints.
const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to per-level files
// and the console.
type Logger struct {
	zap    *zap.Logger
	sugar  *zap.SugaredLogger
	logDir string
	files  []*os.File
	mu     sync.Mutex
}

// New creates a Logger writing into dir. mode "release" switches the console
// to JSON output.
func New(dir, mode string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: dir}

	fileEncoder := zapcore.NewConsoleEncoder(zap.NewProductionEncoderConfig())
	var consoleEncoder zapcore.Encoder
	if mode == "release" {
		consoleEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(cfg)
	}

	levels := []struct {
		file    string
		enabled zap.LevelEnablerFunc
	}{
		{InfoFile, func(lvl zapcore.Level) bool { return lvl == zapcore.InfoLevel }},
		{WarningFile, func(lvl zapcore.Level) bool { return lvl == zapcore.WarnLevel }},
		{ErrorFile, func(lvl zapcore.Level) bool { return lvl >= zapcore.ErrorLevel }},
	}

	cores := make([]zapcore.Core, 0, len(levels)+2)
	for _, lv := range levels {
		f, err := l.openLogFile(filepath.Join(dir, lv.file))
		if err != nil {
			l.closeFiles()
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(f), lv.enabled))
	}

	cores = append(cores,
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl < zapcore.ErrorLevel && lvl >= zapcore.InfoLevel
		})),
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
			return lvl >= zapcore.ErrorLevel
		})),
	)

	l.zap = zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	l.sugar = l.zap.Sugar()
	return l, nil
}

// NewNop returns a Logger that discards everything. Used by tests.
func NewNop() *Logger {
	z := zap.NewNop()
	return &Logger{zap: z, sugar: z.Sugar()}
}

// openLogFile opens or creates a log file for appending.
func (l *Logger) openLogFile(filename string) (*os.File, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	l.files = append(l.files, file)
	return file, nil
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.sugar.Infof(format, v...)
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.sugar.Warnf(format, v...)
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.sugar.Errorf(format, v...)
}

// Zap exposes the structured logger for callers that log fields.
func (l *Logger) Zap() *zap.Logger {
	return l.zap.WithOptions(zap.AddCallerSkip(-1))
}

// Directory returns the directory holding the log files.
func (l *Logger) Directory() string {
	return l.logDir
}

// CleanLogs truncates the specified log file.
func (l *Logger) CleanLogs(fileName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch fileName {
	case InfoFile, WarningFile, ErrorFile:
	default:
		return fmt.Errorf("unknown log file %q", fileName)
	}

	if l.logDir == "" {
		return nil
	}

	// Files are opened with O_APPEND, so truncating by path is safe while
	// zap keeps writing.
	if err := os.Truncate(filepath.Join(l.logDir, fileName), 0); err != nil {
		l.Error("Error truncating log file %s: %v", fileName, err)
		return err
	}

	l.Info("Log file %s has been cleared.", fileName)
	return nil
}

// Sync flushes buffered entries and closes the log files.
func (l *Logger) Sync() {
	_ = l.zap.Sync()
	l.closeFiles()
}

func (l *Logger) closeFiles() {
	for _, f := range l.files {
		_ = f.Close()
	}
	l.files = nil
}

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// LogDirEnv overrides the log directory when set.
const LogDirEnv = "VOIDVAULT_LOG_DIR"

// Logger writes component-tagged lines to the run's log file in
// ~/.voidvault/logs/.
//
// Debugf lines are dropped unless verbose logging is enabled with SetVerbose.
// Callers must never pass generated text or keystrokes to a logger.
type Logger struct {
	runID     string
	component string
	file      *os.File
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	closeOnce sync.Once
}

var (
	runID     string
	runIDOnce sync.Once

	logDir  string
	initErr error
	initMu  sync.Mutex
	inited  bool

	verbose atomic.Bool
)

func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

func initLogDirectory() error {
	initMu.Lock()
	defer initMu.Unlock()
	if inited {
		return initErr
	}
	inited = true

	dir := os.Getenv(LogDirEnv)
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			initErr = fmt.Errorf("failed to get home directory: %w", err)
			return initErr
		}
		dir = filepath.Join(homeDir, ".voidvault", "logs")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		initErr = fmt.Errorf("failed to create log directory: %w", err)
		return initErr
	}
	logDir = dir
	return nil
}

// SetVerbose toggles Debugf output for every logger.
func SetVerbose(on bool) {
	verbose.Store(on)
}

// Verbose reports whether debug lines are written.
func Verbose() bool {
	return verbose.Load()
}

// NewLogger creates a logger for component writing to
// <log dir>/<run-id>-bridge.log.
//
// When the directory or file cannot be opened a stderr logger is returned
// together with the error, so callers can warn and keep going.
func NewLogger(component string) (*Logger, error) {
	if err := initLogDirectory(); err != nil {
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(logDir, fmt.Sprintf("%s-bridge.log", id))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return newFallbackLogger(component, fmt.Errorf("failed to open log file: %w", err)), err
	}

	return &Logger{
		runID:     id,
		component: component,
		file:      file,
		logger:    log.New(file, "", 0),
		logPath:   logPath,
	}, nil
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger(component string) *Logger {
	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    log.New(io.Discard, "", 0),
	}
}

func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, "", 0)
	l := &Logger{
		runID:     getRunID(),
		component: component,
		logger:    logger,
	}
	l.Warnf("file logging unavailable, writing to stderr: %v", err)
	return l
}

func (l *Logger) write(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	l.logger.Printf("[%s] [%s] [%s] %s", timestamp, l.component, level, fmt.Sprintf(format, v...))
}

// Printf logs at INFO level.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

// Debugf logs at DEBUG level when verbose logging is on.
func (l *Logger) Debugf(format string, v ...interface{}) {
	if !verbose.Load() {
		return
	}
	l.write("DEBUG", format, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

// Writer returns the destination of this logger, used to drain subprocess
// stderr into the log.
func (l *Logger) Writer() io.Writer {
	if l.file != nil {
		return l.file
	}
	return l.logger.Writer()
}

// RunID returns the id shared by every logger of this process.
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the log file path, or "" for stderr and nop loggers.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close closes the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.file != nil {
			err = l.file.Close()
		}
	})
	return err
}

// GetRunID returns the process-wide run id.
func GetRunID() string {
	return getRunID()
}

// GetLogDirectory returns the directory log files are written to.
func GetLogDirectory() (string, error) {
	if err := initLogDirectory(); err != nil {
		return "", err
	}
	return logDir, nil
}

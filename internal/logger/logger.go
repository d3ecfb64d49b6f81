// Package logger provides leveled logging with optional file output.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	debugTag = color.New(color.Faint).Sprint("[DEBUG]")
	warnTag  = color.New(color.FgYellow).Sprint("[WARN]")
	errorTag = color.New(color.FgRed, color.Bold).Sprint("[ERROR]")
)

// Logger handles leveled logging with optional file output.
type Logger struct {
	Verbose bool
	writer  io.Writer
	mu      sync.Mutex
	fileLog *os.File
	hasBar  bool
}

// New creates a new Logger instance.
func New(verbose bool) *Logger {
	return &Logger{
		Verbose: verbose,
		writer:  os.Stdout,
	}
}

// SetFileLog enables logging to a file.
func (l *Logger) SetFileLog(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.fileLog = f
	return nil
}

// SetProgressBar indicates that a progress bar is active, which
// suppresses non-verbose terminal output so the bar stays intact.
func (l *Logger) SetProgressBar(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasBar = active
}

// Close closes the log file if open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		return l.fileLog.Close()
	}
	return nil
}

// Info logs informational messages.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log("", "", format, args...)
}

// Debug logs detailed messages only in verbose mode.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.Verbose {
		l.log(debugTag, "[DEBUG]", format, args...)
	} else if l.fileLog != nil {
		// Always log debug to file even in non-verbose mode
		l.logToFile("[DEBUG]", format, args...)
	}
}

// Error logs error messages to stderr.
func (l *Logger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fmt.Fprintf(os.Stderr, errorTag+" "+format+"\n", args...)

	if l.fileLog != nil {
		fmt.Fprintf(l.fileLog, "[ERROR] "+format+"\n", args...)
	}
}

// Warn logs warning messages.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(warnTag, "[WARN]", format, args...)
}

// log writes to the terminal with a colored tag and to the file with a
// plain one.
func (l *Logger) log(tag, fileTag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := ""
	if tag != "" {
		prefix = tag + " "
	}

	if l.Verbose || !l.hasBar {
		fmt.Fprintf(l.writer, prefix+format+"\n", args...)
	}

	if l.fileLog != nil {
		filePrefix := ""
		if fileTag != "" {
			filePrefix = fileTag + " "
		}
		fmt.Fprintf(l.fileLog, filePrefix+format+"\n", args...)
	}
}

// logToFile writes only to file.
func (l *Logger) logToFile(tag, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.fileLog != nil {
		fmt.Fprintf(l.fileLog, tag+" "+format+"\n", args...)
	}
}

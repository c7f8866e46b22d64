// Package logger provides the prefixed, colored leveled logger shared by every component.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
)

const colorReset = "\033[0m"

// Level colors.
const (
	infoColor    = "\033[32m"
	warningColor = "\033[33m"
	errorColor   = "\033[31m"
)

var (
	ErrEmptyPrefix = errors.New("logger prefix is empty")
	ErrNilWriter   = errors.New("logger writer is nil")
)

// Logger writes lines of the form "<date> [PREFIX] [LEVEL] message".
type Logger struct {
	prefix string
	color  string
	out    *log.Logger
	sync.Mutex
}

// New creates a Logger. color is an ANSI escape sequence wrapped around the
// prefix; pass "" for plain output.
func New(prefix, color string, w io.Writer) (*Logger, error) {
	if prefix == "" {
		return nil, ErrEmptyPrefix
	}
	if w == nil {
		return nil, ErrNilWriter
	}

	return &Logger{
		prefix: prefix,
		color:  color,
		out:    log.New(w, "", log.LstdFlags),
	}, nil
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.write("INFO", infoColor, msg)
}

// Warning logs a recoverable problem.
func (l *Logger) Warning(msg string) {
	l.write("WARNING", warningColor, msg)
}

// Error logs a failure.
func (l *Logger) Error(msg string) {
	l.write("ERROR", errorColor, msg)
}

func (l *Logger) write(level, levelColor, msg string) {
	l.Lock()
	defer l.Unlock()

	if l.color == "" {
		l.out.Print(fmt.Sprintf("[%s] [%s] %s", l.prefix, level, msg))
		return
	}
	l.out.Print(fmt.Sprintf("%s[%s]%s %s[%s]%s %s", l.color, l.prefix, colorReset, levelColor, level, colorReset, msg))
}

// SPDX-License-Identifier: AGPL-3.0-or-later

/*
settingsd - a node-local settings management service for an immutable OS.

Copyright (C) 2025  Bartek Kus

This program is free software licensed under the terms of the GNU AGPL v3 or later.

See https://www.gnu.org/licenses/ for license details.

*/

// Package logging provides the structured logger used across settingsd: the
// filesystem datastore and the CLI log through this package rather than
// calling a third-party library directly.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Feature: CORE_LOGGING
// Spec: spec/core/logging.md

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) logrusLevel() logrus.Level {
	switch l {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Logger provides structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// Field represents a key-value pair in structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// NewField creates a new field.
func NewField(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// loggerImpl adapts the Logger interface onto a logrus entry.
type loggerImpl struct {
	entry *logrus.Entry
}

// NewLogger creates a new logger writing JSON lines to stdout, with
// error-level and higher entries also copied to stderr. If verbose is true,
// Debug level logs are shown.
func NewLogger(verbose bool) Logger {
	return NewLoggerOut(verbose, os.Stdout, os.Stderr)
}

// NewLoggerOut is like NewLogger but lets the caller choose the destinations,
// mainly so tests can capture output.
func NewLoggerOut(verbose bool, out, errOut io.Writer) Logger {
	lvl := LevelInfo
	if verbose {
		lvl = LevelDebug
	}

	base := logrus.New()
	base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	base.SetLevel(lvl.logrusLevel())
	base.SetOutput(out)
	base.SetReportCaller(false)

	// logrus has no separate error writer; route error-level output through
	// a hook so operational failures still land on stderr for shells that
	// split stdout/stderr.
	if errOut != out {
		base.AddHook(&stderrHook{out: errOut, formatter: base.Formatter})
	}

	return &loggerImpl{entry: logrus.NewEntry(base)}
}

func (l *loggerImpl) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields...) }
func (l *loggerImpl) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields...) }
func (l *loggerImpl) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields...) }
func (l *loggerImpl) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields...) }

// WithFields returns a new logger with additional fields merged in.
func (l *loggerImpl) WithFields(fields ...Field) Logger {
	return &loggerImpl{entry: l.entry.WithFields(toLogrusFields(fields))}
}

func (l *loggerImpl) log(level Level, msg string, fields ...Field) {
	entry := l.entry
	if len(fields) > 0 {
		entry = entry.WithFields(toLogrusFields(fields))
	}
	entry.Log(level.logrusLevel(), msg)
}

func toLogrusFields(fields []Field) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for _, f := range fields {
		out[f.Key] = f.Value
	}
	return out
}

// stderrHook duplicates error-and-above entries onto a second writer, since
// logrus only supports a single base output.
type stderrHook struct {
	out       io.Writer
	formatter logrus.Formatter
}

func (h *stderrHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}
}

func (h *stderrHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.out.Write(line)
	return err
}

/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger is the structured log facade every reactor subsystem logs
// through: level-gated, field-carrying, backed by logrus, with an optional
// bridge for callers that still log through spf13/jwalterweatherman. A nil
// *Logger is a valid discard sink, so components can hold one unconditionally.
package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	jww "github.com/spf13/jwalterweatherman"

	logent "github.com/loopwire/reactor/logger/entry"
	logfld "github.com/loopwire/reactor/logger/fields"
	loglvl "github.com/loopwire/reactor/logger/level"
)

// Logger is the facade every subsystem holds; it is nil-safe.
type Logger struct {
	mu     sync.RWMutex
	level  loglvl.Level
	fields logfld.Fields
	out    *logrus.Logger
}

// New returns a Logger writing to stderr at InfoLevel.
func New() *Logger {
	out := logrus.New()
	out.SetOutput(os.Stderr)
	l := &Logger{level: loglvl.InfoLevel, fields: logfld.New(), out: out}
	out.SetLevel(loglvl.InfoLevel.Logrus())
	return l
}

// SetLevel changes the minimum level that will be emitted.
func (l *Logger) SetLevel(lvl loglvl.Level) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
	l.out.SetLevel(lvl.Logrus())
}

// GetLevel returns the current minimum level.
func (l *Logger) GetLevel() loglvl.Level {
	if l == nil {
		return loglvl.NilLevel
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// SetFields replaces the default fields merged into every entry.
func (l *Logger) SetFields(f logfld.Fields) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields = f
}

// With returns a copy of the logger with extra default fields merged in,
// the way a per-connection logger is derived from the server's.
func (l *Logger) With(f logfld.Fields) *Logger {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	merged := l.fields.Merge(f)
	lvl := l.level
	out := l.out
	l.mu.RUnlock()
	return &Logger{level: lvl, fields: merged, out: out}
}

// SetSPF13Level bridges a jwalterweatherman notepad to this logger's level,
// for applications that still route some of their own logging through jww.
func (l *Logger) SetSPF13Level(lvl loglvl.Level, notepad *jww.Notepad) {
	if l == nil || notepad == nil {
		return
	}
	switch {
	case lvl <= loglvl.FatalLevel:
		notepad.SetLogThreshold(jww.LevelCritical)
	case lvl == loglvl.ErrorLevel:
		notepad.SetLogThreshold(jww.LevelError)
	case lvl == loglvl.WarnLevel:
		notepad.SetLogThreshold(jww.LevelWarn)
	case lvl == loglvl.InfoLevel:
		notepad.SetLogThreshold(jww.LevelInfo)
	default:
		notepad.SetLogThreshold(jww.LevelTrace)
	}
}

func (l *Logger) log(lvl loglvl.Level, message string, err error) {
	if l == nil || l.GetLevel() == loglvl.NilLevel || lvl > l.GetLevel() {
		return
	}
	l.mu.RLock()
	fields := l.fields
	out := l.out
	l.mu.RUnlock()

	e := logent.New(lvl, message, fields).WithError(err)
	entry := out.WithFields(logrus.Fields(e.Fields))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Log(lvl.Logrus(), message)
}

// Debug logs at DebugLevel.
func (l *Logger) Debug(message string, err error) { l.log(loglvl.DebugLevel, message, err) }

// Info logs at InfoLevel.
func (l *Logger) Info(message string, err error) { l.log(loglvl.InfoLevel, message, err) }

// Warning logs at WarnLevel.
func (l *Logger) Warning(message string, err error) { l.log(loglvl.WarnLevel, message, err) }

// Error logs at ErrorLevel.
func (l *Logger) Error(message string, err error) { l.log(loglvl.ErrorLevel, message, err) }

// Fatal logs at FatalLevel. Unlike the teacher it never calls os.Exit: a
// reactor library must not terminate its host process on its behalf.
func (l *Logger) Fatal(message string, err error) { l.log(loglvl.FatalLevel, message, err) }

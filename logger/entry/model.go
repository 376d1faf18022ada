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

// Package entry models one structured log record before it is handed to
// logrus for formatting and output.
package entry

import (
	"time"

	loglvl "github.com/loopwire/reactor/logger/level"
	logfld "github.com/loopwire/reactor/logger/fields"
)

// Entry is one log record: a level, a message, the error chain that
// produced it (if any), and the fields attached at emission time.
type Entry struct {
	Level   loglvl.Level
	Message string
	Time    time.Time
	Errors  []error
	Fields  logfld.Fields
}

// New builds an Entry stamped with the current time.
func New(lvl loglvl.Level, message string, fields logfld.Fields) Entry {
	return Entry{
		Level:   lvl,
		Message: message,
		Time:    time.Now(),
		Fields:  fields,
	}
}

// WithError appends err to the entry's error chain, ignoring nils.
func (e Entry) WithError(err error) Entry {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
	return e
}

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

// Package level defines the severity scale shared by every logger in this
// module, with a direct conversion to logrus's own level type.
package level

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Level orders severities from most (PanicLevel) to least (DebugLevel)
// severe; NilLevel disables logging entirely.
type Level uint8

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
	NilLevel
)

// String returns the human-readable name used in log output.
func (l Level) String() string {
	switch l {
	case PanicLevel:
		return "Critical"
	case FatalLevel:
		return "Fatal"
	case ErrorLevel:
		return "Error"
	case WarnLevel:
		return "Warning"
	case InfoLevel:
		return "Info"
	case DebugLevel:
		return "Debug"
	case NilLevel:
		return ""
	}
	return "unknown"
}

// Logrus converts to the equivalent logrus.Level, matching logrus's
// opposite severity order. NilLevel has no logrus equivalent and maps to
// logrus.PanicLevel with the caller expected to gate on NilLevel before
// ever emitting.
func (l Level) Logrus() logrus.Level {
	switch l {
	case PanicLevel:
		return logrus.PanicLevel
	case FatalLevel:
		return logrus.FatalLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	case WarnLevel:
		return logrus.WarnLevel
	case InfoLevel:
		return logrus.InfoLevel
	case DebugLevel:
		return logrus.DebugLevel
	default:
		return logrus.PanicLevel
	}
}

// Parse maps a case-insensitive level name back to a Level, defaulting to
// InfoLevel for anything unrecognized.
func Parse(s string) Level {
	switch {
	case strings.EqualFold(s, PanicLevel.String()):
		return PanicLevel
	case strings.EqualFold(s, FatalLevel.String()):
		return FatalLevel
	case strings.EqualFold(s, ErrorLevel.String()):
		return ErrorLevel
	case strings.EqualFold(s, WarnLevel.String()):
		return WarnLevel
	case strings.EqualFold(s, InfoLevel.String()):
		return InfoLevel
	case strings.EqualFold(s, DebugLevel.String()):
		return DebugLevel
	default:
		return InfoLevel
	}
}

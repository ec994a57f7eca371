// go-stpv3
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-stpv3.
//
// go-stpv3 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-stpv3 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-stpv3; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package bootload

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Programming phases reported in Progress
const (
	PhaseProgramming = "programming"
	PhaseFinishing   = "finishing"
	PhaseComplete    = "complete"
)

// Progress describes how far an upload has come
type Progress struct {
	Phase        string
	Record       int
	TotalRecords int
	BytesWritten int
	Percentage   float64
	ElapsedTime  time.Duration
}

// ProgressCallback is called after each record. It should return quickly.
type ProgressCallback func(Progress)

// Logger receives programmer log messages with key-value pairs
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// logrusLogger adapts a logrus logger to Logger
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger returns a Logger writing to l
func NewLogrusLogger(l *logrus.Logger) Logger {
	return &logrusLogger{entry: logrus.NewEntry(l).WithField("component", "bootload")}
}

func (l *logrusLogger) fields(keysAndValues []any) *logrus.Entry {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			f[k] = keysAndValues[i+1]
		}
	}
	return l.entry.WithFields(f)
}

func (l *logrusLogger) Debug(msg string, keysAndValues ...any) {
	l.fields(keysAndValues).Debug(msg)
}

func (l *logrusLogger) Info(msg string, keysAndValues ...any) {
	l.fields(keysAndValues).Info(msg)
}

func (l *logrusLogger) Error(msg string, keysAndValues ...any) {
	l.fields(keysAndValues).Error(msg)
}

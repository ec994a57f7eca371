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

package stpv3

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	debugEnabled atomic.Bool
	logger       atomic.Pointer[logrus.Logger]
	// ownLogger is the driver's default logger. Its level follows
	// SetDebugEnabled; loggers passed to SetLogger keep their own level.
	ownLogger = logrus.New()
)

func init() {
	logger.Store(ownLogger)
}

// SetDebugEnabled turns driver debug logging on or off. While the driver
// logs through its own default logger, the logger level follows. A logger
// installed with SetLogger is never modified, so its level must allow
// debug entries for them to appear.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
	if logger.Load() != ownLogger {
		return
	}
	if enabled {
		ownLogger.SetLevel(logrus.DebugLevel)
	} else {
		ownLogger.SetLevel(logrus.InfoLevel)
	}
}

// SetLogger routes driver logs to l. A nil logger restores the driver's
// default logger.
func SetLogger(l *logrus.Logger) {
	if l == nil {
		l = ownLogger
	}
	logger.Store(l)
}

// Logger returns the logger used by the driver
func Logger() *logrus.Logger {
	return logger.Load()
}

func debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	logger.Load().WithField("component", "stpv3").Debugf(format, args...)
}

func warnf(format string, args ...any) {
	logger.Load().WithField("component", "stpv3").Warnf(format, args...)
}

// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log holds the process-global zap logger. Connection handlers log
// through this package (usually via With to attach peer ids) instead of
// threading a logger through every layer.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _global *zap.SugaredLogger

// Console encoding with ISO8601 timestamps until the command line replaces
// it via ConfigureLogger.
func init() {
	c := zap.NewProductionConfig()
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	c.DisableStacktrace = true
	ConfigureLogger(c)
}

// ConfigureLogger builds c and installs the result as the global logger,
// returning it so the caller can defer a Sync.
func ConfigureLogger(c zap.Config) *zap.SugaredLogger {
	l, err := c.Build()
	if err != nil {
		panic(err)
	}
	// Callers report this package's caller, not this package.
	SetGlobalLogger(l.WithOptions(zap.AddCallerSkip(1)).Sugar())
	return _global
}

// SetGlobalLogger replaces the global logger.
func SetGlobalLogger(l *zap.SugaredLogger) {
	_global = l
}

// Default returns the global logger.
func Default() *zap.SugaredLogger {
	return _global
}

// With returns the global logger with key-value context attached.
func With(args ...interface{}) *zap.SugaredLogger {
	return _global.With(args...)
}

// Debug logs at debug level, building the message with fmt.Sprint.
func Debug(args ...interface{}) { _global.Debug(args...) }

// Info logs at info level, building the message with fmt.Sprint.
func Info(args ...interface{}) { _global.Info(args...) }

// Warn logs at warn level, building the message with fmt.Sprint.
func Warn(args ...interface{}) { _global.Warn(args...) }

// Error logs at error level, building the message with fmt.Sprint.
func Error(args ...interface{}) { _global.Error(args...) }

// Fatal logs at fatal level, then exits the process.
func Fatal(args ...interface{}) { _global.Fatal(args...) }

// Debugf logs a fmt.Sprintf-formatted message at debug level.
func Debugf(format string, args ...interface{}) { _global.Debugf(format, args...) }

// Infof logs a fmt.Sprintf-formatted message at info level.
func Infof(format string, args ...interface{}) { _global.Infof(format, args...) }

// Warnf logs a fmt.Sprintf-formatted message at warn level.
func Warnf(format string, args ...interface{}) { _global.Warnf(format, args...) }

// Errorf logs a fmt.Sprintf-formatted message at error level.
func Errorf(format string, args ...interface{}) { _global.Errorf(format, args...) }

// Fatalf logs a fmt.Sprintf-formatted message at fatal level, then exits the
// process.
func Fatalf(format string, args ...interface{}) { _global.Fatalf(format, args...) }

// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logutil centralizes structured logging for the engine behind a
// swappable zap logger, the way callers throughout the engine expect a
// package-level Infof/Warnf/Errorf/Fatalf rather than threading a logger
// through every constructor.
package logutil

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var globalLogger atomic.Pointer[zap.SugaredLogger]

func init() {
	l, _ := zap.NewProduction()
	SetLogger(l)
}

// SetLogger installs a new base zap logger. Passing nil restores a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		globalLogger.Store(zap.NewNop().Sugar())
		return
	}
	globalLogger.Store(l.Sugar())
}

func logger() *zap.SugaredLogger {
	return globalLogger.Load()
}

func Debug(args ...any)                 { logger().Debug(args...) }
func Debugf(template string, args ...any) { logger().Debugf(template, args...) }
func Info(args ...any)                    { logger().Info(args...) }
func Infof(template string, args ...any)  { logger().Infof(template, args...) }
func Warn(args ...any)                    { logger().Warn(args...) }
func Warnf(template string, args ...any)  { logger().Warnf(template, args...) }
func Error(args ...any)                   { logger().Error(args...) }
func Errorf(template string, args ...any) { logger().Errorf(template, args...) }
func Fatal(args ...any)                   { logger().Fatal(args...) }
func Fatalf(template string, args ...any) { logger().Fatalf(template, args...) }

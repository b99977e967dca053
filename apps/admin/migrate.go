package main

import (
	"go.uber.org/zap"
)

// gooseLogger reports migration progress through zap.
type gooseLogger struct {
	zl *zap.SugaredLogger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.zl.Infof(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.zl.Fatalf(format, v...)
}

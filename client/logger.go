package client

import "go.uber.org/zap"

// zapLogger Logger 的 zap 适配器
type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger 用 zap 实现 Logger 接口
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{sugar: l.Sugar()}
}

func (z *zapLogger) Debug(msg string, args ...interface{}) { z.sugar.Debugw(msg, args...) }
func (z *zapLogger) Info(msg string, args ...interface{})  { z.sugar.Infow(msg, args...) }
func (z *zapLogger) Warn(msg string, args ...interface{})  { z.sugar.Warnw(msg, args...) }
func (z *zapLogger) Error(msg string, args ...interface{}) { z.sugar.Errorw(msg, args...) }

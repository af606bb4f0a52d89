package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type options struct {
	file string
}

// Option ajusta a construção do logger
type Option func(*options)

// WithFile duplica a saída em um arquivo JSON com rotação (lumberjack).
// Path vazio não altera nada.
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

func New(serviceName string, env string, opts ...Option) (*zap.Logger, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfg := zap.NewProductionConfig()
	if env == "local" {
		cfg = zap.NewDevelopmentConfig()
	}

	// sempre garantir que serviço e env entrem como campos padrão
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	buildOpts := []zap.Option{
		zap.Fields(
			zap.String("service", serviceName),
			zap.String("env", env),
		),
	}
	if o.file != "" {
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(cfg.EncoderConfig),
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   o.file,
				MaxSize:    100, // MB
				MaxBackups: 5,
				MaxAge:     14, // dias
				Compress:   true,
			}),
			cfg.Level,
		)
		buildOpts = append(buildOpts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	l, err := cfg.Build(buildOpts...)
	if err != nil {
		return nil, err
	}
	return l, nil
}

package logger

import (
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/config"
)

var Module = fx.Options(
	fx.Provide(NewZap, NewSugared),
	fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: l}
	}),
)

func NewZap(lc fx.Lifecycle, cfg *config.Config) (*zap.Logger, error) {
	var (
		l   *zap.Logger
		err error
	)
	if cfg.LogMode == config.LogModeProduction {
		l, err = zap.NewProduction()
	} else {
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, errors.Wrap(err, "build zap logger")
	}

	if lc != nil {
		lc.Append(fx.StopHook(func() {
			_ = l.Sync()
		}))
	}
	return l, nil
}

func NewSugared(l *zap.Logger) *zap.SugaredLogger {
	return l.Sugar()
}

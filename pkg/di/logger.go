package di

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-recipe-cache/config"
)

// NewLogger builds a zap logger for cfg. Development mode logs in console
// format.
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zcfg.Level = level
	}
	return zcfg.Build()
}

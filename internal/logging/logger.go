package logging

import (
	"go.uber.org/zap"
)

// New builds the process logger. Anything other than "production" gets the
// development config (console encoder, debug level).
func New(env, service string) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", service)), nil
}

package logsvc

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NewZap builds the local logger: human-readable in debug, JSON otherwise.
func NewZap(debug bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	zl, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building zap logger")
	}
	return zl.Sugar(), nil
}

package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the application logger: human-readable in dev, JSON in production.
func New(dev bool) (*zap.Logger, error) {
	var (
		log *zap.Logger
		err error
	)
	if dev {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("build zap logger: %w", err)
	}
	return log, nil
}

// Shorthands so callers don't import zap directly for fields.
var (
	String   = zap.String
	Int64    = zap.Int64
	Float64  = zap.Float64
	Duration = zap.Duration
	Error    = zap.Error
	Any      = zap.Any
)

type Field = zap.Field

package container

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/record-pipeline/internal/application/dispatcher"
	"github.com/garyjia/record-pipeline/internal/config"
	"github.com/garyjia/record-pipeline/internal/plugins/leave"
)

// ProvideExtensions builds every enabled extension from its registration strings.
func ProvideExtensions(cfg *config.PluginsConfig, logger *zap.Logger) ([]dispatcher.Extension, error) {
	if cfg == nil {
		return nil, fmt.Errorf("plugins config is required")
	}

	var exts []dispatcher.Extension
	if cfg.Leave.Enabled {
		v, err := leave.NewPreValidation()
		if err != nil {
			return nil, err
		}
		logger.Info("Extension registered",
			zap.String("name", v.Name()),
			zap.Strings("descriptors", v.Registry().Describe()))
		exts = append(exts, v)

		p, err := leave.NewPostUpdate(cfg.Leave.UnsecureConfig, cfg.Leave.SecureConfig)
		if err != nil {
			return nil, err
		}
		logger.Info("Extension registered",
			zap.String("name", p.Name()),
			zap.Strings("descriptors", p.Registry().Describe()),
			zap.Bool("strict_balance_lookup", p.Settings().StrictBalanceLookup))
		exts = append(exts, p)
	}
	return exts, nil
}

// LoggerAdapter adapts zap.Logger to the key-value Logger interfaces used by
// services and the HTTP layer.
type LoggerAdapter struct {
	logger *zap.Logger
}

// NewLoggerAdapter wraps logger
func NewLoggerAdapter(logger *zap.Logger) *LoggerAdapter {
	return &LoggerAdapter{logger: logger}
}

func (a *LoggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.logger.Info(msg, convertToZapFields(keysAndValues...)...)
}

func (a *LoggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	a.logger.Error(msg, convertToZapFields(keysAndValues...)...)
}

// convertToZapFields converts key-value pairs to zap fields.
func convertToZapFields(keysAndValues ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		if err, isErr := keysAndValues[i+1].(error); isErr {
			fields = append(fields, zap.NamedError(key, err))
			continue
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}

package modbus

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// 内部调试实现
type clogs struct {
	logger LogProvider
	// is log output enabled,1: enable, 0: disable
	hasLog uint32
}

// newClogWithPrefix new clog with prefix
func newClogWithPrefix(prefix string) clogs {
	return clogs{logger: newDefaultLogger(prefix)}
}

// LogMode set enable or disable log output when you has set logger
func (sf *clogs) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&sf.hasLog, 1)
	} else {
		atomic.StoreUint32(&sf.hasLog, 0)
	}
}

// setLogProvider set logger provider
func (sf *clogs) setLogProvider(p LogProvider) {
	if p != nil {
		sf.logger = p
	}
}

// Errorf Log ERROR level message.
func (sf *clogs) Errorf(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.hasLog) == 1 {
		sf.logger.Errorf(format, v...)
	}
}

// Debugf Log DEBUG level message.
func (sf *clogs) Debugf(format string, v ...interface{}) {
	if atomic.LoadUint32(&sf.hasLog) == 1 {
		sf.logger.Debugf(format, v...)
	}
}

// default log
type logger struct {
	zl zerolog.Logger
}

var _ LogProvider = (*logger)(nil)

func newDefaultLogger(prefix string) *logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return &logger{zerolog.New(output).With().Timestamp().Str("module", prefix).Logger()}
}

// NewZerologProvider adapts a zerolog logger to LogProvider.
func NewZerologProvider(zl zerolog.Logger) LogProvider {
	return &logger{zl}
}

// Errorf Log ERROR level message.
func (sf *logger) Errorf(format string, v ...interface{}) {
	sf.zl.Error().Msgf(format, v...)
}

// Debugf Log DEBUG level message.
func (sf *logger) Debugf(format string, v ...interface{}) {
	sf.zl.Debug().Msgf(format, v...)
}

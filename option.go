package modbus

import (
	"time"
)

// transaction and slave defaults
const (
	DefaultRetries                     = 3
	DefaultWaitToRetry                 = 250 * time.Millisecond
	DefaultRetryOnOldResponseThreshold = 3
)

type options struct {
	retries                     int
	waitToRetry                 time.Duration
	retryOnOldResponseThreshold uint16
	slaveBusyUsesRetryCount     bool
	registry                    FunctionRegistry
	provider                    LogProvider
	enableLogger                bool
	readTimeout                 time.Duration
	writeTimeout                time.Duration
}

func newOptions(opts ...Option) options {
	o := options{
		retries:                     DefaultRetries,
		waitToRetry:                 DefaultWaitToRetry,
		retryOnOldResponseThreshold: DefaultRetryOnOldResponseThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (sf *options) setupLogger(l *clogs) {
	l.setLogProvider(sf.provider)
	l.LogMode(sf.enableLogger)
}

// Option configures a master or a slave.
type Option func(*options)

// WithRetries number of times a transient failure is retried, default 3.
func WithRetries(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.retries = n
		}
	}
}

// WithWaitToRetry pause before a retry, a re-read or a resend, default 250ms.
func WithWaitToRetry(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.waitToRetry = d
		}
	}
}

// WithRetryOnOldResponseThreshold TCP only, a response whose transaction id
// lags the request by less than n is dropped and read again, default 3.
func WithRetryOnOldResponseThreshold(n uint16) Option {
	return func(o *options) {
		o.retryOnOldResponseThreshold = n
	}
}

// WithSlaveBusyUsesRetryCount count slave device busy responses against the
// retry budget instead of resending without limit.
func WithSlaveBusyUsesRetryCount(b bool) Option {
	return func(o *options) {
		o.slaveBusyUsesRetryCount = b
	}
}

// WithFunctionRegistry framing rules for custom function codes.
func WithFunctionRegistry(r FunctionRegistry) Option {
	return func(o *options) {
		o.registry = r
	}
}

// WithLogProvider set logger provider.
func WithLogProvider(provider LogProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithEnableLogger enable log output when you has set logger.
func WithEnableLogger() Option {
	return func(o *options) {
		o.enableLogger = true
	}
}

// WithReadTimeout TCP read timeout, defaults to TCPDefaultTimeout on a master
// and TCPDefaultReadTimeout on a slave.
func WithReadTimeout(t time.Duration) Option {
	return func(o *options) {
		o.readTimeout = t
	}
}

// WithWriteTimeout TCP write timeout, default TCPDefaultWriteTimeout.
func WithWriteTimeout(t time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = t
	}
}

func (sf *options) timeouts(read, write time.Duration) (time.Duration, time.Duration) {
	if sf.readTimeout > 0 {
		read = sf.readTimeout
	}
	if sf.writeTimeout > 0 {
		write = sf.writeTimeout
	}
	return read, write
}

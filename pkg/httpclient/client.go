// Package httpclient builds the resty clients used for outbound calls to
// identity providers and remote policy decision points.
package httpclient

import (
	"fmt"
	"time"

	"github.com/OPENDAP/hyrax-auth/pkg/logging"
	"github.com/go-resty/resty/v2"
)

// UserAgent is sent on every outbound request.
const UserAgent = "hyrax-auth"

// New returns a resty client with a finite timeout. Every outbound call
// made through it fails after timeout instead of blocking a request thread.
func New(timeout time.Duration, logger logging.Logger) *resty.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", UserAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(3)).
		SetLogger(restyLogger{logger})
}

// restyLogger routes resty's printf-style logs into a logging.Logger.
type restyLogger struct {
	logger logging.Logger
}

func (l restyLogger) Errorf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...), logging.F("component", "http_client"))
}

func (l restyLogger) Warnf(format string, v ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, v...), logging.F("component", "http_client"))
}

func (l restyLogger) Debugf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...), logging.F("component", "http_client"))
}

package report

import "github.com/getsentry/sentry-go"

// Error reports err at error level. Nil errors are ignored.
func Error(err error) {
	ErrorWith(err, nil)
}

// ErrorWith reports err with extra tags, e.g. the zone key or provider.
func ErrorWith(err error, tags map[string]string) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

// Warning reports err at warning level, for failures that were recovered
// with a fallback.
func Warning(err error, tags map[string]string) {
	if err == nil {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelWarning)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		sentry.CaptureException(err)
	})
}

package observability

import (
	"time"

	"github.com/getsentry/sentry-go"
)

// InitSentry wires error capture for handler 500 paths and recovered panics.
// An empty DSN leaves the default no-op client, so local setups need no
// configuration.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
		Debug:            environment == "development",
	})
}

// FlushSentry drains buffered events. Runtime.Close calls it so short-lived
// serverless instances do not drop reports on teardown.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

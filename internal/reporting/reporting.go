package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter forwards run failures to an error tracker
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// Nop drops every report
type Nop struct{}

// Report does nothing
func (Nop) Report(context.Context, error, map[string]string) {}

// Sentry reports through the global sentry hub
type Sentry struct{}

// Report captures err with tags on a cloned hub
func (Sentry) Report(ctx context.Context, err error, tags map[string]string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub().Clone()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

// Init configures sentry when dsn is set. The returned flush func must be
// called before exit; it is a no-op when reporting is disabled.
func Init(dsn, environment, release string) (Reporter, func(), error) {
	if dsn == "" {
		return Nop{}, func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: environment,
		Release:     release,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("sentry.Init: %w", err)
	}

	// Flush buffered events before the program terminates.
	return Sentry{}, func() { sentry.Flush(2 * time.Second) }, nil
}

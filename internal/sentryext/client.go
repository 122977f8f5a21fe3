// Package sentryext wraps the sentry client used for error reporting.
package sentryext

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

type Params struct {
	// DSN is the Data Source Name for the sentry client. An empty DSN
	// leaves the client effectively disabled.
	DSN string
	// Disabled turns off all event reporting regardless of the DSN.
	Disabled bool
	// AttachStacktrace attaches stack traces to captured events.
	AttachStacktrace bool
	// Release is the version of the application.
	Release string
	// Environment is the environment the application is running in.
	Environment string
}

type Client struct {
	disabled bool
}

// New initializes the sentry client.
//
// If the DSN is not set, the client will not send any errors to sentry.
func New(params Params) *Client {
	if params.Disabled {
		return &Client{disabled: true}
	}

	if err := sentry.Init(
		sentry.ClientOptions{
			Dsn:              params.DSN,
			AttachStacktrace: params.AttachStacktrace,
			Release:          params.Release,
			Environment:      params.Environment,
		}); err != nil {
		slog.Error("sentryext: New: failed to initialize sentry", "err", err)
	}

	if params.DSN == "" {
		slog.Debug("sentryext: New: sentry is disabled, no DSN provided")
	} else {
		slog.Debug("sentryext: New: sentry is enabled", "dsn", params.DSN)
	}

	return &Client{}
}

// CaptureException sends an error to sentry as an error level event
// enriched with the given tags.
func (s *Client) CaptureException(err error, tags map[string]string) {
	if s.disabled {
		return
	}

	localHub := sentry.CurrentHub().Clone()
	localHub.ConfigureScope(
		func(scope *sentry.Scope) {
			scope.SetTags(tags)
		},
	)
	localHub.CaptureException(err)
}

// CaptureMessage sends a non-error message to sentry as an info level
// event enriched with the given tags.
func (s *Client) CaptureMessage(msg string, tags map[string]string) {
	if s.disabled {
		return
	}

	localHub := sentry.CurrentHub().Clone()
	localHub.ConfigureScope(
		func(scope *sentry.Scope) {
			scope.SetTags(tags)
		},
	)
	localHub.CaptureMessage(msg)
}

// Flush waits for buffered events to be sent.
func (s *Client) Flush(timeout time.Duration) bool {
	if s.disabled {
		return true
	}
	return sentry.CurrentHub().Flush(timeout)
}

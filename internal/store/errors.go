package store

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	cloudflare "github.com/cloudflare/cloudflare-go"
)

// ProviderError is a non-success response from the record store. Messages
// are the provider's own error messages, unmodified.
type ProviderError struct {
	Op         string
	StatusCode int
	Messages   []string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, msg)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a provider 404.
func IsNotFound(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && perr.StatusCode == http.StatusNotFound
}

// IsAuth reports whether err is a provider 401 or 403.
func IsAuth(err error) bool {
	var perr *ProviderError
	return errors.As(err, &perr) && (perr.StatusCode == http.StatusUnauthorized || perr.StatusCode == http.StatusForbidden)
}

// providerError converts a cloudflare-go error. The recorded response, when
// there is one, supplies the exact status and the untouched messages; the
// SDK error types are the fallback.
func providerError(op string, err error, last *response) error {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return err
	}
	out := &ProviderError{Op: op, Err: err}
	if last != nil && last.status >= http.StatusBadRequest {
		out.StatusCode = last.status
		out.Messages = append(out.Messages, last.messages...)
	}
	if out.StatusCode == 0 {
		out.StatusCode = statusFromSDK(err)
	}
	if len(out.Messages) == 0 {
		var withMessages interface{ ErrorMessages() []string }
		if errors.As(err, &withMessages) {
			out.Messages = append(out.Messages, withMessages.ErrorMessages()...)
		}
	}
	if len(out.Messages) == 0 {
		out.Messages = []string{err.Error()}
	}
	return out
}

// statusFromSDK maps SDK error types back to HTTP statuses. cloudflare-go
// v0.93 returns AuthorizationError for 401 and AuthenticationError for 403,
// whatever their doc comments say.
func statusFromSDK(err error) int {
	var (
		authz    *cloudflare.AuthorizationError
		authn    *cloudflare.AuthenticationError
		notFound *cloudflare.NotFoundError
		limited  *cloudflare.RatelimitError
		service  *cloudflare.ServiceError
		request  *cloudflare.RequestError
	)
	switch {
	case errors.As(err, &authz):
		return http.StatusUnauthorized
	case errors.As(err, &authn):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	case errors.As(err, &service):
		return http.StatusInternalServerError
	case errors.As(err, &request):
		return http.StatusBadRequest
	default:
		return 0
	}
}

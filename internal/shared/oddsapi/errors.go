package oddsapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnauthorized  = errors.New("odds api: invalid api key")
	ErrQuotaExceeded = errors.New("odds api: quota exceeded")
	ErrNotFound      = errors.New("odds api: not found")
)

// StatusError carrega o status HTTP devolvido pela API
type StatusError struct {
	Code int
	Body string
	err  error // sentinela correspondente, quando houver
}

func (e *StatusError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%v (status %d)", e.err, e.Code)
	}
	return fmt.Sprintf("odds api: status %d: %s", e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return e.err }

func statusError(code int, body string) *StatusError {
	if len(body) > 256 {
		body = body[:256]
	}
	se := &StatusError{Code: code, Body: body}
	switch code {
	case http.StatusUnauthorized:
		se.err = ErrUnauthorized
	case http.StatusTooManyRequests:
		se.err = ErrQuotaExceeded
	case http.StatusNotFound:
		se.err = ErrNotFound
	}
	return se
}

// Retryable decide se vale tentar de novo: falhas de rede e 5xx sim,
// erros do cliente, cota esgotada e cancelamento não.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

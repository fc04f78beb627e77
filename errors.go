package main

import (
	"errors"
	"net/http"

	"luacrypt/store"
)

// HTTPError carries the status and client-facing message for a failed
// request. Err, when set, is logged but never sent.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Err }

func ValidationError(message string, err error) *HTTPError {
	return &HTTPError{Status: http.StatusBadRequest, Message: message, Err: err}
}

func NotFoundError(message string) *HTTPError {
	return &HTTPError{Status: http.StatusNotFound, Message: message}
}

func AuthError(message string, err error) *HTTPError {
	return &HTTPError{Status: http.StatusUnauthorized, Message: message, Err: err}
}

// statusFor maps an error to its status and client message. Store
// validation failures are 400; anything unrecognised is 500.
func statusFor(err error, validationMessage string) (int, string) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status, httpErr.Message
	}

	var verr *store.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, validationMessage
	}

	return http.StatusInternalServerError, msgInternal
}

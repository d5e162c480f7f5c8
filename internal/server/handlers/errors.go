package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mamadbah2/wa-relay/internal/domain/apperr"
)

// InternalErrorMessage is the only detail callers ever see for unclassified failures.
const InternalErrorMessage = "Internal server error"

// toHTTP converts any error into the status code and caller-facing error value.
// Unclassified errors are reported as internal without leaking their text.
func toHTTP(err error) (int, any) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		return http.StatusInternalServerError, InternalErrorMessage
	}

	switch appErr.Kind {
	case apperr.KindValidation, apperr.KindBadRequest:
		return http.StatusBadRequest, appErr.Detail
	case apperr.KindTooLarge:
		return http.StatusRequestEntityTooLarge, appErr.Detail
	case apperr.KindForbidden:
		return http.StatusForbidden, appErr.Detail
	case apperr.KindUpstream:
		status := appErr.Status
		if status < http.StatusBadRequest || status > 599 {
			status = http.StatusInternalServerError
		}
		return status, appErr.Detail
	default:
		return http.StatusInternalServerError, InternalErrorMessage
	}
}

// readFailure classifies an error raised while reading a request body: bodies cut off
// by http.MaxBytesReader are too large, anything else goes to fallback.
func readFailure(err error, fallback func(error) *apperr.Error) *apperr.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.TooLarge(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), err)
	}
	return fallback(err)
}

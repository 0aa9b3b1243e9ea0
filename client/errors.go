package client

import (
	stderrors "errors"

	apperrors "github.com/kbukum/pbkit/errors"
	"github.com/kbukum/pbkit/httpclient"
)

// toAppError turns a transport or status error into an *errors.AppError.
// Errors that already are AppErrors pass through.
func toAppError(err error) error {
	if err == nil || apperrors.IsAppError(err) {
		return err
	}
	var he *httpclient.Error
	if !stderrors.As(err, &he) {
		return apperrors.Internal(err)
	}

	switch {
	case he.StatusCode > 0:
		return apperrors.FromAPI(he.StatusCode, he.Body).WithCause(err)
	case httpclient.IsTimeout(err):
		return apperrors.New(apperrors.ErrCodeTimeout, "request timed out", 0).WithCause(err)
	case httpclient.IsUnavailable(err):
		return apperrors.New(apperrors.ErrCodeServiceUnavailable, "backend unavailable", 0).WithCause(err)
	case httpclient.IsCancelled(err):
		return apperrors.Cancelled(err)
	case httpclient.IsConnection(err):
		return apperrors.ConnectionFailed(err)
	default:
		return apperrors.Validation(he.Message).WithCause(err)
	}
}

// Package errors provides the structured error type returned by pbkit.
//
// Every failure that reaches a caller is either a usage error raised
// locally (MissingField, InvalidInput) or an API error decoded from the
// backend's {code, message, data} body with FromAPI. Both are *AppError
// values carrying a machine-readable code, the HTTP status and a
// retryable flag.
package errors

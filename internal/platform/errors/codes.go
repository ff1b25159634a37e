// Package errors provides structured, coded errors for the auth domain.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Pubkey errors
	CodePubkeyInvalid  Code = "PUBKEY_INVALID"
	CodePubkeyMismatch Code = "PUBKEY_MISMATCH"

	// Challenge errors
	CodeChallengeNotFound Code = "CHALLENGE_NOT_FOUND"
	CodeChallengeExpired  Code = "CHALLENGE_EXPIRED"
	CodeChallengeMismatch Code = "CHALLENGE_MISMATCH"

	// Event errors
	CodeEventMalformed    Code = "EVENT_MALFORMED"
	CodeEventKindInvalid  Code = "EVENT_KIND_INVALID"
	CodeEventTimestampOut Code = "EVENT_TIMESTAMP_OUT_OF_RANGE"
	CodeEventIDMismatch   Code = "EVENT_ID_MISMATCH"
	CodeSignatureInvalid  Code = "SIGNATURE_INVALID"

	// Token/session errors
	CodeTokenInvalid   Code = "TOKEN_INVALID"
	CodeTokenExpired   Code = "TOKEN_EXPIRED"
	CodeSessionRevoked Code = "SESSION_REVOKED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodePubkeyInvalid,
		CodeEventMalformed,
		CodeEventKindInvalid,
		CodeEventTimestampOut,
		CodeChallengeMismatch:
		return http.StatusBadRequest

	// Unauthorized - credential failures
	case CodePubkeyMismatch,
		CodeEventIDMismatch,
		CodeSignatureInvalid,
		CodeTokenInvalid,
		CodeTokenExpired,
		CodeSessionRevoked:
		return http.StatusUnauthorized

	// Not found
	case CodeChallengeNotFound, CodeNotFound:
		return http.StatusNotFound

	// Gone - the challenge existed but its window has closed
	case CodeChallengeExpired:
		return http.StatusGone

	default:
		return http.StatusInternalServerError
	}
}

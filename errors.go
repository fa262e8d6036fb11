package softoken

import (
	"errors"

	"github.com/MrEthical07/softoken/jwt"
	"github.com/MrEthical07/softoken/session"
)

var (
	// ErrMalformedToken is returned when the credential is not in compact
	// token form (wrong segment structure).
	ErrMalformedToken = jwt.ErrMalformed
	// ErrInvalidToken is returned when the credential is well-formed but its
	// signature or content does not validate.
	ErrInvalidToken = jwt.ErrInvalidSignature
	// ErrUnknownToken is returned for a valid token with no live session.
	ErrUnknownToken = errors.New("unknown token")
	// ErrValidation is returned when a creation request is missing a
	// required field or carries an invalid TTL.
	ErrValidation = errors.New("invalid session request")
	// ErrStoreUnavailable wraps backing store failures. It is never retried
	// internally.
	ErrStoreUnavailable = session.ErrRedisUnavailable
	// ErrEngineNotReady is returned when an Engine method is called on a nil
	// or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// IsCredentialError reports whether err is one of the three token rejection
// kinds. Callers facing end users should collapse all of them into a single
// unauthenticated response.
func IsCredentialError(err error) bool {
	return errors.Is(err, ErrMalformedToken) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrUnknownToken)
}

package authclaims

import "errors"

var (
	ErrMissingSecret = errors.New("authclaims: missing signing secret")
	ErrMissingToken  = errors.New("authclaims: missing bearer token")
	ErrInvalidToken  = errors.New("authclaims: invalid or expired token")
)

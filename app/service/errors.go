package service

import (
	"errors"

	"github.com/vibast-solutions/ms-go-accounts/app/credential"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/app/twofactor"
)

var (
	ErrInvalidCredentials = credential.ErrInvalidCredentials
	ErrHashingFailed      = credential.ErrHashingFailed
	ErrInvalidToken       = token.ErrInvalidToken
	ErrInvalidCode        = twofactor.ErrInvalidCode

	ErrUnauthorized            = errors.New("unauthorized")
	ErrAccountNotConfirmed     = errors.New("account not confirmed")
	ErrAccountAlreadyConfirmed = errors.New("account is already confirmed")
	ErrEmailInUse              = errors.New("email already in use")
	ErrChallengeExpired        = errors.New("code has expired")
	ErrWeakPassword            = errors.New("password does not meet policy requirements")
	ErrPasswordsMismatch       = errors.New("passwords do not match")
	ErrVersionConflict         = errors.New("account was modified concurrently")

	// ErrAccountNotFound never leaves the package; callers see ErrUnauthorized
	// or ErrInvalidCredentials instead.
	ErrAccountNotFound = errors.New("account not found")
)

package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrAddressMismatch is the only password-correctness signal: the
	// recovered key does not derive the address on file.
	ErrAddressMismatch = errors.New("address mismatch")

	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
	ErrWeakPassword = errors.New("password too short")
)

// Stage names the step of the login protocol a failure happened in.
type Stage string

const (
	StageLookup   Stage = "lookup"
	StageDigest   Stage = "digest"
	StageRecover  Stage = "recover"
	StageVerify   Stage = "verify"
	StageActivate Stage = "activate"
)

// LoginError wraps a failure of the login protocol with the stage it occurred in.
type LoginError struct {
	Stage Stage
	Err   error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed at %s: %v", e.Stage, e.Err)
}

func (e *LoginError) Unwrap() error { return e.Err }

func fail(stage Stage, err error) error {
	return &LoginError{Stage: stage, Err: err}
}

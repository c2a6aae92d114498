// Package protocol implements the beanstalkd wire protocol as a TCP
// server fronting an internal/engine.Engine: per-connection command
// parsing, dispatch to the engine, and response framing. The line
// framing and response vocabulary mirror the client-side conventions
// the engine's command surface was modeled on, inverted to the server
// role.
package protocol

import (
	"errors"
	"strings"
)

// Characters allowed in a tube name.
const NameChars = `\-+/;.$_()0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz`

// NameError indicates a tube name failed CheckName, and how.
type NameError struct {
	Name string
	Err  error
}

func (e NameError) Error() string {
	return e.Err.Error() + ": " + e.Name
}

var (
	ErrEmpty   = errors.New("name is empty")
	ErrBadChar = errors.New("name has bad char")
	ErrTooLong = errors.New("name is too long")
)

// CheckName validates a tube name against the protocol's name grammar.
func CheckName(s string) error {
	switch {
	case len(s) == 0:
		return NameError{s, ErrEmpty}
	case len(s) >= 200:
		return NameError{s, ErrTooLong}
	case !containsOnly(s, NameChars):
		return NameError{s, ErrBadChar}
	}
	return nil
}

func containsOnly(s, chars string) bool {
	for _, c := range s {
		if !strings.ContainsRune(chars, c) {
			return false
		}
	}
	return true
}

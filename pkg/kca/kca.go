// Package kca exports single key items from a credential store as standard, PEM-armored keys.
//
// Private keys are requested from the store wrapped in passphrase-encrypted PKCS#8 structures.
// If the caller provides a passphrase, the wrapped key is emitted as-is. Otherwise, the key is
// wrapped with an internal placeholder passphrase, unwrapped locally, and emitted as an
// unencrypted PKCS#8 structure. The placeholder never leaves this package.
//
// Public keys are requested in the store's native armored format and have their markers
// rewritten to the standard PUBLIC KEY markers.
package kca

import (
	"errors"
	"fmt"

	"github.com/codahale/keychain-access/pkg/kca/store"
)

var (
	// ErrLookup is returned when a label matches no item or more than one item, or when the store
	// lookup itself fails.
	ErrLookup = errors.New("lookup failed")

	// ErrUnsupportedType is returned when the matched item is neither a private nor a public key.
	ErrUnsupportedType = errors.New("unsupported item type")

	// ErrExport is returned when the store refuses or fails to produce an export.
	ErrExport = errors.New("export failed")

	// ErrDecrypt is returned when an internally wrapped private key can't be unwrapped.
	ErrDecrypt = errors.New("decrypt failed")

	// ErrFormat is returned when an armored public key doesn't have the expected markers.
	ErrFormat = errors.New("malformed armored key")

	// ErrIO is returned when writing the exported key fails or is short.
	ErrIO = errors.New("write failed")
)

// Error is a failed export. It carries the context of the failure, and the store's status and
// description of it if the store was involved.
type Error struct {
	Kind    error        // One of the Err* sentinel errors.
	Context string       // What was being done.
	Status  store.Status // The store's status, if any.
	Text    string       // The store's description of Status, if any.
	Err     error        // The underlying error, if any.
}

func (e *Error) Error() string {
	switch {
	case e.Status != store.StatusSuccess && e.Text != "":
		return fmt.Sprintf("%s: (%d) %s", e.Context, e.Status, e.Text)
	case e.Status != store.StatusSuccess:
		return fmt.Sprintf("%s: %d", e.Context, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Context, e.Err)
	default:
		return e.Context
	}
}

// Is reports whether target is the kind of this error.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// statusError returns an error of the given kind for a failed store call, with the store's
// description of the status resolved.
func statusError(s store.Store, kind error, context string, err error) *Error {
	e := &Error{Kind: kind, Context: context, Err: err}

	if status, ok := store.StatusOf(err); ok {
		e.Status = status
		if text, ok := s.StatusText(status); ok {
			e.Text = text
		}
	}

	return e
}

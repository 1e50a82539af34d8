// Package store defines the credential store interface keys are exported from, along with the
// status codes and export semantics shared by its implementations.
//
// Status codes follow the macOS Security framework's OSStatus numbering so that diagnostics look
// the same regardless of which backend produced them.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the kind of item held by a store.
type Kind int

const (
	KindOther Kind = iota
	KindKey
	KindCertificate
	KindPassword
)

func (k Kind) String() string {
	switch k {
	case KindKey:
		return "key"
	case KindCertificate:
		return "certificate"
	case KindPassword:
		return "password"
	default:
		return "unknown item"
	}
}

// Class is the class of a key item.
type Class int

const (
	ClassUnknown Class = iota
	ClassPrivate
	ClassPublic
	ClassSymmetric
)

func (c Class) String() string {
	switch c {
	case ClassPrivate:
		return "private key"
	case ClassPublic:
		return "public key"
	case ClassSymmetric:
		return "symmetric key"
	default:
		return "unknown key class"
	}
}

// Format is the serialization requested from Store.Export.
type Format int

const (
	// FormatDefault lets the store pick its native format for the item. For public keys this is a
	// SubjectPublicKeyInfo structure.
	FormatDefault Format = iota

	// FormatWrappedPKCS8 is a passphrase-encrypted PKCS#8 structure.
	FormatWrappedPKCS8
)

// ExportParams are the parameters of a single export.
type ExportParams struct {
	Passphrase []byte // The passphrase used to wrap private keys.
	Armor      bool   // Whether the export is PEM armored.
}

// Item is an opaque reference to an item held by a store. Items must be passed to Store.Release
// once the caller is done with them.
type Item interface {
	Label() string
}

// Attributes are the attributes of a store item.
type Attributes struct {
	Label     string
	Kind      Kind
	Class     Class
	Algorithm string
}

// Store is a credential store holding labelled key items.
type Store interface {
	// Find returns the single item with the given label. It returns an error wrapping ErrNotFound
	// if no item matches and ErrAmbiguous if more than one does.
	Find(ctx context.Context, label string) (Item, error)

	// Attributes returns the attributes of the item.
	Attributes(ctx context.Context, item Item) (Attributes, error)

	// Export serializes the item in the given format. The returned buffer is owned by the caller,
	// which may wipe it.
	Export(ctx context.Context, item Item, format Format, params ExportParams) ([]byte, error)

	// Release releases any resources held by the item.
	Release(item Item)

	// StatusText returns a human-readable description of the status, if the store has one.
	StatusText(status Status) (string, bool)
}

var (
	// ErrNotFound is returned when no item matches a label.
	ErrNotFound = errors.New("item not found")

	// ErrAmbiguous is returned when more than one item matches a label.
	ErrAmbiguous = errors.New("more than one item matches")
)

// Error is a failed store operation.
type Error struct {
	Op     string
	Status Status
	Err    error
}

// Errorf returns a new *Error for the operation and status, wrapping a formatted cause.
func Errorf(op string, status Status, format string, args ...interface{}) *Error {
	return &Error{Op: op, Status: status, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}

	return fmt.Sprintf("%s: %v (status %d)", e.Op, e.Err, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusOf returns the status carried by err, if any.
func StatusOf(err error) (Status, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Status, true
	}

	return StatusSuccess, false
}

package kca

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/codahale/keychain-access/pkg/kca/store"
	"go.uber.org/zap"
)

var errEmptyExport = errors.New("store returned no data")

// Exporter exports key items from a store to a writer.
type Exporter struct {
	store  store.Store
	out    io.Writer
	logger *zap.Logger
}

// NewExporter returns an Exporter which reads keys from s and writes them to out. A nil logger
// disables logging.
func NewExporter(s store.Store, out io.Writer, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Exporter{store: s, out: out, logger: logger}
}

// Export finds the key with the given label and writes it out. Private keys are written wrapped
// with the passphrase if it is non-nil and unencrypted otherwise. The passphrase is ignored for
// public keys.
func (e *Exporter) Export(ctx context.Context, label string, passphrase []byte) error {
	// Find the item.
	item, err := e.store.Find(ctx, label)
	if err != nil {
		return statusError(e.store, ErrLookup, fmt.Sprintf("Search for item named %s failed", label), err)
	}

	defer e.store.Release(item)

	// Read its attributes.
	attrs, err := e.store.Attributes(ctx, item)
	if err != nil {
		return statusError(e.store, ErrLookup, fmt.Sprintf("Reading attributes of %s failed", label), err)
	}

	e.logger.Debug("found item",
		zap.String("label", label),
		zap.Stringer("kind", attrs.Kind),
		zap.Stringer("class", attrs.Class),
		zap.String("algorithm", attrs.Algorithm),
	)

	if attrs.Kind != store.KindKey {
		return &Error{
			Kind:    ErrUnsupportedType,
			Context: "invalid type",
			Err:     fmt.Errorf("%s is a %s", label, attrs.Kind),
		}
	}

	// Export it according to its class.
	switch attrs.Class {
	case store.ClassPrivate:
		return e.ExportPrivateKey(ctx, item, passphrase)
	case store.ClassPublic:
		return e.ExportPublicKey(ctx, item)
	default:
		return &Error{
			Kind:    ErrUnsupportedType,
			Context: "invalid type",
			Err:     fmt.Errorf("%s is a %s", label, attrs.Class),
		}
	}
}

// write writes the whole buffer to the output in a single call.
func (e *Exporter) write(b []byte) error {
	n, err := e.out.Write(b)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}

	if err != nil {
		return &Error{Kind: ErrIO, Context: "Writing key failed", Err: err}
	}

	e.logger.Debug("wrote key", zap.Int("bytes", n))

	return nil
}

package kca

import (
	"context"
	"errors"

	"github.com/awnumar/memguard"
	"github.com/codahale/keychain-access/pkg/kca/internal/pkcs8x"
	"github.com/codahale/keychain-access/pkg/kca/store"
	"go.uber.org/zap"
)

// placeholder returns the passphrase private keys are wrapped with when the caller wants them
// unprotected. It is only ever passed to the store and to pkcs8x, and is never logged or written.
func placeholder() []byte {
	return []byte{'k', 'c', 'a', '.', '0'}
}

// ExportPrivateKey writes the private key item out. If passphrase is non-nil, the key is written
// as an encrypted PKCS#8 structure wrapped with it. Otherwise, the key is written as an
// unencrypted PKCS#8 structure.
func (e *Exporter) ExportPrivateKey(ctx context.Context, item store.Item, passphrase []byte) error {
	explicit := passphrase != nil

	// Pick the export passphrase and lock it away.
	var pass *memguard.LockedBuffer
	if explicit {
		pass = memguard.NewBufferFromBytes(append([]byte(nil), passphrase...))
	} else {
		pass = memguard.NewBufferFromBytes(placeholder())
	}

	defer pass.Destroy()

	e.logger.Debug("exporting private key",
		zap.String("label", item.Label()),
		zap.Bool("protected", explicit),
	)

	// Export the key wrapped with the passphrase.
	wrapped, err := e.store.Export(ctx, item, store.FormatWrappedPKCS8, store.ExportParams{
		Passphrase: pass.Bytes(),
		Armor:      true,
	})
	if err != nil {
		return statusError(e.store, ErrExport, "Export error", err)
	}

	defer memguard.WipeBytes(wrapped)

	if len(wrapped) == 0 {
		return &Error{Kind: ErrExport, Context: "Export error", Err: errEmptyExport}
	}

	// If the caller provided a passphrase, the wrapped key is what they asked for.
	if explicit {
		return e.write(wrapped)
	}

	// Otherwise, remove the placeholder's protection.
	unwrapped, err := pkcs8x.Unwrap(wrapped, pass.Bytes())
	if err != nil {
		if errors.Is(err, pkcs8x.ErrConvert) {
			return &Error{Kind: ErrDecrypt, Context: "Error converting key", Err: err}
		}

		return &Error{Kind: ErrDecrypt, Context: "Error decrypting key", Err: err}
	}

	defer memguard.WipeBytes(unwrapped)

	return e.write(unwrapped)
}

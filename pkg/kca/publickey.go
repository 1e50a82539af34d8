package kca

import (
	"context"
	"crypto/sha256"
	"encoding/pem"

	"github.com/codahale/keychain-access/pkg/kca/armor"
	"github.com/codahale/keychain-access/pkg/kca/store"
	"github.com/mr-tron/base58"
	"go.uber.org/zap"
)

// ExportPublicKey writes the public key item out as a standard PUBLIC KEY structure.
func (e *Exporter) ExportPublicKey(ctx context.Context, item store.Item) error {
	// Export the key in the store's armored format.
	armored, err := e.store.Export(ctx, item, store.FormatDefault, store.ExportParams{Armor: true})
	if err != nil {
		return statusError(e.store, ErrExport, "Exporting public key failed", err)
	}

	if len(armored) == 0 {
		return &Error{Kind: ErrExport, Context: "Exporting public key failed", Err: errEmptyExport}
	}

	// Swap out the store's markers for the standard ones.
	out, err := armor.Normalize(armored)
	if err != nil {
		return &Error{Kind: ErrFormat, Context: "Reformatting public key failed", Err: err}
	}

	if ce := e.logger.Check(zap.DebugLevel, "exporting public key"); ce != nil {
		ce.Write(zap.String("label", item.Label()), zap.String("fingerprint", fingerprint(out)))
	}

	return e.write(out)
}

// fingerprint returns the base58-encoded SHA-256 hash of the armored key's DER contents, or an
// empty string if the body isn't valid base64.
func fingerprint(armored []byte) string {
	block, _ := pem.Decode(armored)
	if block == nil {
		return ""
	}

	h := sha256.Sum256(block.Bytes)

	return base58.Encode(h[:])
}

//go:build !darwin || !cgo

package keychain

import "github.com/codahale/keychain-access/pkg/kca/store"

// Open returns ErrUnavailable.
func Open() (store.Store, error) {
	return nil, &store.Error{Op: "open", Status: store.StatusNoSuchKeychain, Err: ErrUnavailable}
}

// Package keychain implements a credential store on top of the macOS keychain, via the Security
// framework. It is only available on darwin with cgo enabled.
package keychain

import "errors"

// ErrUnavailable is returned by Open on platforms without the macOS keychain.
var ErrUnavailable = errors.New("the macOS keychain is not available on this platform")

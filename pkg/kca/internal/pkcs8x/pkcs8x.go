// Package pkcs8x removes the passphrase protection from wrapped PKCS#8 private keys.
package pkcs8x

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/youmark/pkcs8"
)

const (
	encryptedBlock = "ENCRYPTED PRIVATE KEY"
	privateBlock   = "PRIVATE KEY"
)

var (
	// ErrNotWrapped is returned when the input has no armored, encrypted PKCS#8 structure.
	ErrNotWrapped = errors.New("no encrypted private key block")

	// ErrDecrypt is returned when the wrapped structure can't be decrypted.
	ErrDecrypt = errors.New("unable to decrypt private key")

	// ErrConvert is returned when the decrypted structure can't be converted to a standard key.
	ErrConvert = errors.New("unable to convert private key")
)

// Decrypt parses an armored, encrypted PKCS#8 structure and decrypts it with the passphrase,
// returning the private key it contains. Callers should Destroy the key once done with it.
func Decrypt(armored, passphrase []byte) (interface{}, error) {
	// Parse the wrapped structure.
	block, _ := pem.Decode(armored)
	if block == nil || block.Type != encryptedBlock {
		return nil, ErrNotWrapped
	}

	defer memguard.WipeBytes(block.Bytes)

	// Decrypt it.
	key, err := pkcs8.ParsePKCS8PrivateKey(block.Bytes, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecrypt, err)
	}

	return key, nil
}

// Encode serializes the private key as an armored, unencrypted PKCS#8 structure.
func Encode(key interface{}) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConvert, err)
	}

	defer memguard.WipeBytes(der)

	return pem.EncodeToMemory(&pem.Block{Type: privateBlock, Bytes: der}), nil
}

// Unwrap decrypts an armored, encrypted PKCS#8 structure and re-serializes it as an armored,
// unencrypted PKCS#8 structure. No intermediate key material outlives the call.
func Unwrap(armored, passphrase []byte) ([]byte, error) {
	key, err := Decrypt(armored, passphrase)
	if err != nil {
		return nil, err
	}

	defer Destroy(key)

	return Encode(key)
}

// Destroy zeroes the private parts of the key.
func Destroy(key interface{}) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		k.D.SetInt64(0)

		for _, p := range k.Primes {
			p.SetInt64(0)
		}

		if k.Precomputed.Dp != nil {
			k.Precomputed.Dp.SetInt64(0)
			k.Precomputed.Dq.SetInt64(0)
			k.Precomputed.Qinv.SetInt64(0)
		}
	case *ecdsa.PrivateKey:
		k.D.SetInt64(0)
	case ed25519.PrivateKey:
		memguard.WipeBytes(k)
	}
}

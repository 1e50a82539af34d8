// Package armor rewrites the text envelope of armored public key exports.
//
// Credential stores armor public keys with their own marker text (e.g. "RSA PUBLIC KEY" for what
// is actually a SubjectPublicKeyInfo structure). Tooling expects the exact PUBLIC KEY markers, so
// Normalize swaps the envelope while leaving the base64 body untouched.
package armor

import (
	"bytes"
	"errors"
)

const (
	// BeginPublicKey is the standard begin-marker line for a public key.
	BeginPublicKey = "-----BEGIN PUBLIC KEY-----"

	// EndPublicKey is the standard end-marker line for a public key.
	EndPublicKey = "-----END PUBLIC KEY-----"
)

var endIntroducer = []byte("\n-----END ")

var (
	// ErrNoBeginMarker is returned when the buffer has no newline ending a begin-marker line.
	ErrNoBeginMarker = errors.New("no begin marker")

	// ErrNoEndMarker is returned when the buffer has no end-marker line after the begin marker.
	ErrNoEndMarker = errors.New("no end marker")
)

// Body returns the bytes between the end of the begin-marker line and the start of the
// end-marker line. The body includes its own trailing newline.
func Body(armored []byte) ([]byte, error) {
	// The begin-marker line ends with the first newline.
	begin := bytes.IndexByte(armored, '\n')
	if begin < 0 {
		return nil, ErrNoBeginMarker
	}

	// Look for the end-marker introducer from that newline on, so the end can't precede it.
	end := bytes.Index(armored[begin:], endIntroducer)
	if end < 0 {
		return nil, ErrNoEndMarker
	}

	return armored[begin+1 : begin+end+1], nil
}

// Normalize returns the armored public key with its markers replaced by the standard PUBLIC KEY
// markers. The body is copied verbatim.
func Normalize(armored []byte) ([]byte, error) {
	body, err := Body(armored)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(BeginPublicKey)+len(body)+len(EndPublicKey)+2)
	out = append(out, BeginPublicKey...)
	out = append(out, '\n')
	out = append(out, body...)
	out = append(out, EndPublicKey...)
	out = append(out, '\n')

	return out, nil
}

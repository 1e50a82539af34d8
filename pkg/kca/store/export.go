package store

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/youmark/pkcs8"
	"golang.org/x/crypto/cryptobyte"
	cbasn1 "golang.org/x/crypto/cryptobyte/asn1"
)

const (
	// EncryptedPrivateKeyBlock is the PEM block type of a wrapped PKCS#8 export.
	EncryptedPrivateKeyBlock = "ENCRYPTED PRIVATE KEY"

	pbkdf2Iterations = 10000
	pbkdf2SaltSize   = 16
)

// ExportKey serializes an in-memory key the way the macOS keychain's SecItemExport does, for
// backends which hold raw key material. Private keys are only ever released wrapped in a
// passphrase-encrypted PKCS#8 structure. Public keys are released as SubjectPublicKeyInfo
// structures, armored with the keychain's algorithm-specific markers.
func ExportKey(key interface{}, class Class, format Format, params ExportParams) ([]byte, error) {
	switch class {
	case ClassPrivate:
		return exportPrivateKey(key, format, params)
	case ClassPublic:
		return exportPublicKey(key, format, params)
	default:
		return nil, Errorf("export", StatusUnimplemented, "can't export a %s", class)
	}
}

func exportPrivateKey(key interface{}, format Format, params ExportParams) ([]byte, error) {
	if format != FormatWrappedPKCS8 {
		return nil, Errorf("export", StatusInteractionNotAllowed,
			"private keys can only be exported wrapped")
	}

	if len(params.Passphrase) == 0 {
		return nil, Errorf("export", StatusPassphraseRequired, "no passphrase given")
	}

	// Wrap the key with PBES2 (PBKDF2-HMAC-SHA256, AES-256-CBC).
	der, err := pkcs8.MarshalPrivateKey(key, params.Passphrase, &pkcs8.Opts{
		Cipher: pkcs8.AES256CBC,
		KDFOpts: pkcs8.PBKDF2Opts{
			SaltSize:       pbkdf2SaltSize,
			IterationCount: pbkdf2Iterations,
			HMACHash:       crypto.SHA256,
		},
	})
	if err != nil {
		return nil, &Error{Op: "export", Status: StatusUnsupportedFormat, Err: err}
	}

	if !params.Armor {
		return der, nil
	}

	return pem.EncodeToMemory(&pem.Block{Type: EncryptedPrivateKeyBlock, Bytes: der}), nil
}

func exportPublicKey(key interface{}, format Format, params ExportParams) ([]byte, error) {
	if format != FormatDefault {
		return nil, Errorf("export", StatusParam, "public keys can't be wrapped")
	}

	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, &Error{Op: "export", Status: StatusUnsupportedFormat, Err: err}
	}

	if !params.Armor {
		return der, nil
	}

	return pem.EncodeToMemory(&pem.Block{Type: PublicKeyBlock(key), Bytes: der}), nil
}

// ArmorPublicKey armors a DER-encoded SubjectPublicKeyInfo structure with the keychain's
// algorithm-specific markers. Only the structure's algorithm identifier is read, so keys on curves
// Go doesn't implement are still armored.
func ArmorPublicKey(der []byte) ([]byte, error) {
	oid, err := spkiAlgorithm(der)
	if err != nil {
		return nil, &Error{Op: "export", Status: StatusDecode, Err: err}
	}

	return pem.EncodeToMemory(&pem.Block{Type: publicKeyBlockOID(oid), Bytes: der}), nil
}

var (
	oidRSA     = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidECDSA   = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidEd25519 = asn1.ObjectIdentifier{1, 3, 101, 112}

	errMalformedSPKI = errors.New("malformed SubjectPublicKeyInfo")
)

// spkiAlgorithm returns the algorithm OID of a DER-encoded SubjectPublicKeyInfo structure.
func spkiAlgorithm(der []byte) (asn1.ObjectIdentifier, error) {
	var (
		input     = cryptobyte.String(der)
		spki, alg cryptobyte.String
		oid       asn1.ObjectIdentifier
	)

	if !input.ReadASN1(&spki, cbasn1.SEQUENCE) || !input.Empty() ||
		!spki.ReadASN1(&alg, cbasn1.SEQUENCE) ||
		!alg.ReadASN1ObjectIdentifier(&oid) ||
		!spki.SkipASN1(cbasn1.BIT_STRING) || !spki.Empty() {
		return nil, errMalformedSPKI
	}

	return oid, nil
}

func publicKeyBlockOID(oid asn1.ObjectIdentifier) string {
	switch {
	case oid.Equal(oidRSA):
		return "RSA PUBLIC KEY"
	case oid.Equal(oidECDSA):
		return "EC PUBLIC KEY"
	case oid.Equal(oidEd25519):
		return "ED25519 PUBLIC KEY"
	default:
		return "PUBLIC KEY"
	}
}

// PublicKeyBlock returns the PEM block type the keychain uses for the public key.
func PublicKeyBlock(pub interface{}) string {
	switch pub.(type) {
	case *rsa.PublicKey:
		return "RSA PUBLIC KEY"
	case *ecdsa.PublicKey:
		return "EC PUBLIC KEY"
	case ed25519.PublicKey:
		return "ED25519 PUBLIC KEY"
	default:
		return "PUBLIC KEY"
	}
}

// Algorithm returns a short description of the key's algorithm and size.
func Algorithm(key interface{}) (string, error) {
	switch k := key.(type) {
	case *rsa.PrivateKey:
		return fmt.Sprintf("RSA-%d", k.N.BitLen()), nil
	case *rsa.PublicKey:
		return fmt.Sprintf("RSA-%d", k.N.BitLen()), nil
	case *ecdsa.PrivateKey:
		return "ECDSA-" + k.Curve.Params().Name, nil
	case *ecdsa.PublicKey:
		return "ECDSA-" + k.Curve.Params().Name, nil
	case ed25519.PrivateKey, ed25519.PublicKey:
		return "Ed25519", nil
	default:
		return "", fmt.Errorf("unsupported key type %T", key)
	}
}

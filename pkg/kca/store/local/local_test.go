package local

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codahale/gubbins/assert"
	"github.com/codahale/keychain-access/pkg/kca/store"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func writePEM(t *testing.T, path string, blocks ...*pem.Block) {
	t.Helper()

	var data []byte
	for _, block := range blocks {
		data = append(data, pem.EncodeToMemory(block)...)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func newCertificate(t *testing.T) *x509.Certificate {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "example"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}

	return cert
}

func TestOpen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	writePEM(t, filepath.Join(dir, "my-ec-key.pem"),
		&pem.Block{Type: "PRIVATE KEY", Bytes: der},
		&pem.Block{Type: "PUBLIC KEY", Headers: map[string]string{LabelHeader: "my-ec-key.pub"}, Bytes: pub},
	)
	writePEM(t, filepath.Join(dir, "example.pem"),
		&pem.Block{Type: "CERTIFICATE", Bytes: newCertificate(t).Raw},
	)
	writePEM(t, filepath.Join(dir, "ignored.txt"),
		&pem.Block{Type: "SOMETHING ELSE", Bytes: []byte("ignored")},
	)

	s, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "labels", []string{"example", "my-ec-key", "my-ec-key.pub"}, s.Labels())

	for _, test := range []struct {
		label string
		attrs store.Attributes
	}{
		{"my-ec-key", store.Attributes{
			Label: "my-ec-key", Kind: store.KindKey, Class: store.ClassPrivate, Algorithm: "ECDSA-P-256",
		}},
		{"my-ec-key.pub", store.Attributes{
			Label: "my-ec-key.pub", Kind: store.KindKey, Class: store.ClassPublic, Algorithm: "ECDSA-P-256",
		}},
		{"example", store.Attributes{
			Label: "example", Kind: store.KindCertificate, Algorithm: "ECDSA",
		}},
	} {
		item, err := s.Find(context.Background(), test.label)
		if err != nil {
			t.Fatal(err)
		}

		attrs, err := s.Attributes(context.Background(), item)
		if err != nil {
			t.Fatal(err)
		}

		assert.Equal(t, "attributes", test.attrs, attrs)
	}
}

func TestOpenUnsupportedBlock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writePEM(t, filepath.Join(dir, "bad.pem"), &pem.Block{Type: "SOMETHING ELSE", Bytes: []byte("boop")})

	if _, err := Open(dir); err == nil {
		t.Fatal("opened a directory with an unsupported block")
	}
}

func TestFindNotFound(t *testing.T) {
	t.Parallel()

	_, err := New().Find(context.Background(), "missing-item")

	status, _ := store.StatusOf(err)
	assert.Equal(t, "status", store.StatusItemNotFound, status)
	assert.Equal(t, "error", store.ErrNotFound, err, cmpopts.EquateErrors())
}

func TestFindAmbiguous(t *testing.T) {
	t.Parallel()

	s := New()

	for i := 0; i < 2; i++ {
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			t.Fatal(err)
		}

		if err := s.AddPrivateKey("twin", key); err != nil {
			t.Fatal(err)
		}
	}

	_, err := s.Find(context.Background(), "twin")

	status, _ := store.StatusOf(err)
	assert.Equal(t, "status", store.StatusDuplicateItem, status)
	assert.Equal(t, "error", store.ErrAmbiguous, err, cmpopts.EquateErrors())
}

func TestExportCertificate(t *testing.T) {
	t.Parallel()

	s := New()
	s.AddCertificate("example", newCertificate(t))

	item, err := s.Find(context.Background(), "example")
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Export(context.Background(), item, store.FormatDefault, store.ExportParams{Armor: true})

	status, _ := store.StatusOf(err)
	assert.Equal(t, "status", store.StatusUnimplemented, status)
}

func TestAddUnsupportedKey(t *testing.T) {
	t.Parallel()

	if err := New().AddPrivateKey("sym", []byte("yellow submarine")); err == nil {
		t.Fatal("added a symmetric key")
	}
}

type foreignItem struct{}

func (foreignItem) Label() string { return "foreign" }

func TestForeignItem(t *testing.T) {
	t.Parallel()

	_, err := New().Attributes(context.Background(), foreignItem{})

	status, _ := store.StatusOf(err)
	assert.Equal(t, "status", store.StatusInvalidKeychainOrItem, status)
}

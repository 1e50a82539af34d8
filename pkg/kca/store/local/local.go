// Package local implements an in-memory credential store, optionally loaded from a directory of
// PEM files.
package local

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/codahale/keychain-access/pkg/kca/store"
)

// LabelHeader is the PEM header which overrides the label of a block loaded from a file.
const LabelHeader = "Label"

type item struct {
	label     string
	kind      store.Kind
	class     store.Class
	algorithm string
	key       interface{}
}

func (it *item) Label() string {
	return it.label
}

// Store is an in-memory credential store.
type Store struct {
	items []*item
}

var _ store.Store = &Store{}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Open returns a store holding every block of every *.pem file in dir. Blocks are labelled with
// their Label header or, failing that, the name of their file without its extension.
func Open(dir string) (*Store, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.pem"))
	if err != nil {
		return nil, err
	}

	s := New()

	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		label := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := s.Load(label, b); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	return s, nil
}

// Load adds every PEM block in data to the store.
func (s *Store) Load(label string, data []byte) error {
	for {
		var block *pem.Block

		block, data = pem.Decode(data)
		if block == nil {
			return nil
		}

		blockLabel := label
		if l, ok := block.Headers[LabelHeader]; ok {
			blockLabel = l
		}

		if err := s.loadBlock(blockLabel, block); err != nil {
			return err
		}
	}
}

func (s *Store) loadBlock(label string, block *pem.Block) error {
	switch block.Type {
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return err
		}

		return s.AddPrivateKey(label, key)
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return err
		}

		return s.AddPrivateKey(label, key)
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return err
		}

		return s.AddPrivateKey(label, key)
	case "PUBLIC KEY":
		key, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return err
		}

		return s.AddPublicKey(label, key)
	case "RSA PUBLIC KEY":
		key, err := x509.ParsePKCS1PublicKey(block.Bytes)
		if err != nil {
			return err
		}

		return s.AddPublicKey(label, key)
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return err
		}

		s.AddCertificate(label, cert)

		return nil
	default:
		return fmt.Errorf("unsupported PEM block %q", block.Type)
	}
}

// AddPrivateKey adds a private key to the store.
func (s *Store) AddPrivateKey(label string, key crypto.PrivateKey) error {
	algorithm, err := store.Algorithm(key)
	if err != nil {
		return err
	}

	s.items = append(s.items, &item{
		label:     label,
		kind:      store.KindKey,
		class:     store.ClassPrivate,
		algorithm: algorithm,
		key:       key,
	})

	return nil
}

// AddPublicKey adds a public key to the store.
func (s *Store) AddPublicKey(label string, key crypto.PublicKey) error {
	algorithm, err := store.Algorithm(key)
	if err != nil {
		return err
	}

	s.items = append(s.items, &item{
		label:     label,
		kind:      store.KindKey,
		class:     store.ClassPublic,
		algorithm: algorithm,
		key:       key,
	})

	return nil
}

// AddCertificate adds a certificate to the store.
func (s *Store) AddCertificate(label string, cert *x509.Certificate) {
	s.items = append(s.items, &item{
		label:     label,
		kind:      store.KindCertificate,
		algorithm: cert.PublicKeyAlgorithm.String(),
		key:       cert,
	})
}

// Labels returns the labels of all items in the store, in the order they were added.
func (s *Store) Labels() []string {
	labels := make([]string, len(s.items))
	for i, it := range s.items {
		labels[i] = it.label
	}

	return labels
}

// Find returns the single item with the given label.
func (s *Store) Find(_ context.Context, label string) (store.Item, error) {
	var matches []*item

	for _, it := range s.items {
		if it.label == label {
			matches = append(matches, it)
		}
	}

	switch len(matches) {
	case 0:
		return nil, &store.Error{Op: "find", Status: store.StatusItemNotFound, Err: store.ErrNotFound}
	case 1:
		return matches[0], nil
	default:
		return nil, &store.Error{Op: "find", Status: store.StatusDuplicateItem, Err: store.ErrAmbiguous}
	}
}

// Attributes returns the attributes of the item.
func (s *Store) Attributes(_ context.Context, i store.Item) (store.Attributes, error) {
	it, err := s.lookup(i)
	if err != nil {
		return store.Attributes{}, err
	}

	return store.Attributes{
		Label:     it.label,
		Kind:      it.kind,
		Class:     it.class,
		Algorithm: it.algorithm,
	}, nil
}

// Export serializes the item as the macOS keychain would.
func (s *Store) Export(_ context.Context, i store.Item, format store.Format, params store.ExportParams) ([]byte, error) {
	it, err := s.lookup(i)
	if err != nil {
		return nil, err
	}

	if it.kind != store.KindKey {
		return nil, store.Errorf("export", store.StatusUnimplemented, "can't export a %s", it.kind)
	}

	return store.ExportKey(it.key, it.class, format, params)
}

// Release is a no-op.
func (s *Store) Release(store.Item) {}

// StatusText returns the shared description of the status.
func (s *Store) StatusText(status store.Status) (string, bool) {
	return store.StatusText(status)
}

func (s *Store) lookup(i store.Item) (*item, error) {
	it, ok := i.(*item)
	if !ok {
		return nil, store.Errorf("item", store.StatusInvalidKeychainOrItem, "not a local item: %T", i)
	}

	return it, nil
}

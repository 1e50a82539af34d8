package awskms

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/codahale/gubbins/assert"
	"github.com/codahale/keychain-access/pkg/kca/store"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const keyARN = "arn:aws:kms:us-east-1:111122223333:key/1234abcd-12ab-34cd-56ef-1234567890ab"

type fakeKMS struct {
	kmsiface.KMSAPI

	keySpec       string
	publicKey     []byte
	describeError error
	getError      error
	lastKeyID     string
}

func (f *fakeKMS) DescribeKeyWithContext(_ aws.Context, input *kms.DescribeKeyInput, _ ...request.Option) (*kms.DescribeKeyOutput, error) {
	f.lastKeyID = aws.StringValue(input.KeyId)
	if f.describeError != nil {
		return nil, f.describeError
	}

	return &kms.DescribeKeyOutput{KeyMetadata: &kms.KeyMetadata{
		Arn:     aws.String(keyARN),
		KeySpec: aws.String(f.keySpec),
	}}, nil
}

func (f *fakeKMS) GetPublicKeyWithContext(_ aws.Context, input *kms.GetPublicKeyInput, _ ...request.Option) (*kms.GetPublicKeyOutput, error) {
	f.lastKeyID = aws.StringValue(input.KeyId)
	if f.getError != nil {
		return nil, f.getError
	}

	return &kms.GetPublicKeyOutput{KeyId: input.KeyId, PublicKey: f.publicKey}, nil
}

func publicKeyDER(t *testing.T) []byte {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatal(err)
	}

	return der
}

func TestKeyID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "bare label", "alias/signing", KeyID("signing"))
	assert.Equal(t, "alias", "alias/signing", KeyID("alias/signing"))
	assert.Equal(t, "arn", keyARN, KeyID(keyARN))
}

func TestExportPublicKey(t *testing.T) {
	t.Parallel()

	der := publicKeyDER(t)
	client := &fakeKMS{keySpec: kms.KeySpecEccNistP256, publicKey: der}
	s := New(client)

	it, err := s.Find(context.Background(), "signing")
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "described key", "alias/signing", client.lastKeyID)

	attrs, err := s.Attributes(context.Background(), it)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "attributes", store.Attributes{
		Label:     "signing",
		Kind:      store.KindKey,
		Class:     store.ClassPublic,
		Algorithm: kms.KeySpecEccNistP256,
	}, attrs)

	out, err := s.Export(context.Background(), it, store.FormatDefault, store.ExportParams{Armor: true})
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "exported key", keyARN, client.lastKeyID)

	block, _ := pem.Decode(out)
	assert.Equal(t, "block type", "EC PUBLIC KEY", block.Type)
	assert.Equal(t, "block bytes", der, block.Bytes)
}

func secp256k1PublicKeyDER(t *testing.T) []byte {
	t.Helper()

	curve, err := asn1.Marshal(asn1.ObjectIdentifier{1, 3, 132, 0, 10})
	if err != nil {
		t.Fatal(err)
	}

	point := make([]byte, 65)
	point[0] = 4

	if _, err := rand.Read(point[1:]); err != nil {
		t.Fatal(err)
	}

	der, err := asn1.Marshal(struct {
		Algorithm pkix.AlgorithmIdentifier
		PublicKey asn1.BitString
	}{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1},
			Parameters: asn1.RawValue{FullBytes: curve},
		},
		PublicKey: asn1.BitString{Bytes: point, BitLength: len(point) * 8},
	})
	if err != nil {
		t.Fatal(err)
	}

	return der
}

func TestExportSecp256k1PublicKey(t *testing.T) {
	t.Parallel()

	der := secp256k1PublicKeyDER(t)
	s := New(&fakeKMS{keySpec: kms.KeySpecEccSecgP256k1, publicKey: der})

	it, err := s.Find(context.Background(), "ethereum")
	if err != nil {
		t.Fatal(err)
	}

	out, err := s.Export(context.Background(), it, store.FormatDefault, store.ExportParams{Armor: true})
	if err != nil {
		t.Fatal(err)
	}

	block, _ := pem.Decode(out)
	assert.Equal(t, "block type", "EC PUBLIC KEY", block.Type)
	assert.Equal(t, "block bytes", der, block.Bytes)
}

func TestExportSymmetricKey(t *testing.T) {
	t.Parallel()

	s := New(&fakeKMS{keySpec: kms.KeySpecSymmetricDefault})

	it, err := s.Find(context.Background(), "data-key")
	if err != nil {
		t.Fatal(err)
	}

	attrs, err := s.Attributes(context.Background(), it)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "class", store.ClassSymmetric, attrs.Class)

	_, err = s.Export(context.Background(), it, store.FormatDefault, store.ExportParams{Armor: true})

	status, _ := store.StatusOf(err)
	assert.Equal(t, "status", store.StatusUnimplemented, status)
}

func TestExportWrapped(t *testing.T) {
	t.Parallel()

	s := New(&fakeKMS{keySpec: kms.KeySpecRsa2048})

	it, err := s.Find(context.Background(), "signing")
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Export(context.Background(), it, store.FormatWrappedPKCS8, store.ExportParams{
		Passphrase: []byte("secret123"),
		Armor:      true,
	})

	status, _ := store.StatusOf(err)
	assert.Equal(t, "status", store.StatusParam, status)
}

func TestFindErrors(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		code   string
		status store.Status
	}{
		{kms.ErrCodeNotFoundException, store.StatusItemNotFound},
		{kms.ErrCodeDisabledException, store.StatusInvalidKeychainOrItem},
		{"AccessDeniedException", store.StatusAuthFailed},
		{kms.ErrCodeDependencyTimeoutException, store.StatusNotAvailable},
		{"SomethingElse", store.StatusInternalComponent},
	} {
		s := New(&fakeKMS{describeError: awserr.New(test.code, "nope", nil)})

		_, err := s.Find(context.Background(), "signing")

		status, _ := store.StatusOf(err)
		assert.Equal(t, test.code, test.status, status)
	}
}

func TestFindNotFound(t *testing.T) {
	t.Parallel()

	s := New(&fakeKMS{describeError: awserr.New(kms.ErrCodeNotFoundException, "Alias not found", nil)})

	_, err := s.Find(context.Background(), "missing-item")

	assert.Equal(t, "error", store.ErrNotFound, err, cmpopts.EquateErrors())
}

func TestExportGetError(t *testing.T) {
	t.Parallel()

	s := New(&fakeKMS{
		keySpec:  kms.KeySpecEccNistP256,
		getError: awserr.New(kms.ErrCodeInvalidStateException, "pending deletion", nil),
	})

	it, err := s.Find(context.Background(), "signing")
	if err != nil {
		t.Fatal(err)
	}

	_, err = s.Export(context.Background(), it, store.FormatDefault, store.ExportParams{Armor: true})

	status, _ := store.StatusOf(err)
	assert.Equal(t, "status", store.StatusInvalidKeychainOrItem, status)
}

func TestStatusText(t *testing.T) {
	t.Parallel()

	s := New(&fakeKMS{describeError: awserr.New(kms.ErrCodeNotFoundException, "Alias alias/signing is not found.", nil)})

	text, _ := s.StatusText(store.StatusItemNotFound)
	assert.Equal(t, "before", "The specified item could not be found in the keychain.", text)

	_, _ = s.Find(context.Background(), "signing")

	text, _ = s.StatusText(store.StatusItemNotFound)
	assert.Equal(t, "after", "Alias alias/signing is not found.", text)
}

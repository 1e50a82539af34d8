// Package awskms implements a credential store of AWS KMS keys.
//
// KMS never releases private key material, so asymmetric KMS keys are exposed as public keys.
// Labels are KMS aliases (with or without the alias/ prefix) or key ARNs.
package awskms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
	"github.com/aws/aws-sdk-go/service/kms/kmsiface"
	"github.com/codahale/keychain-access/pkg/kca/store"
)

// Options configures the KMS client a Store is opened with.
type Options struct {
	Region  string // The AWS region. Empty means the SDK's default.
	Profile string // The shared config profile. Empty means the SDK's default.
}

type item struct {
	label    string
	metadata *kms.KeyMetadata
}

func (it *item) Label() string {
	return it.label
}

// Store is a credential store of AWS KMS keys.
type Store struct {
	client   kmsiface.KMSAPI
	messages map[store.Status]string
}

var _ store.Store = &Store{}

// Open returns a Store using a KMS client configured from the options and the environment.
func Open(options Options) (*Store, error) {
	cfg := aws.Config{}
	if options.Region != "" {
		cfg.Region = aws.String(options.Region)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            cfg,
		Profile:           options.Profile,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, &store.Error{Op: "open", Status: store.StatusNotAvailable, Err: err}
	}

	return New(kms.New(sess)), nil
}

// New returns a Store using the given KMS client.
func New(client kmsiface.KMSAPI) *Store {
	return &Store{client: client, messages: make(map[store.Status]string)}
}

// KeyID returns the KMS key ID for a label.
func KeyID(label string) string {
	if strings.HasPrefix(label, "alias/") || strings.HasPrefix(label, "arn:") {
		return label
	}

	return "alias/" + label
}

// Find returns the KMS key with the given alias.
func (s *Store) Find(ctx context.Context, label string) (store.Item, error) {
	out, err := s.client.DescribeKeyWithContext(ctx, &kms.DescribeKeyInput{
		KeyId: aws.String(KeyID(label)),
	})
	if err != nil {
		return nil, s.awsError("find", err)
	}

	if out.KeyMetadata == nil {
		return nil, &store.Error{Op: "find", Status: store.StatusItemNotFound, Err: store.ErrNotFound}
	}

	return &item{label: label, metadata: out.KeyMetadata}, nil
}

// Attributes returns the attributes of the key.
func (s *Store) Attributes(_ context.Context, i store.Item) (store.Attributes, error) {
	it, err := lookup(i)
	if err != nil {
		return store.Attributes{}, err
	}

	return store.Attributes{
		Label:     it.label,
		Kind:      store.KindKey,
		Class:     class(it.metadata),
		Algorithm: aws.StringValue(it.metadata.KeySpec),
	}, nil
}

// Export returns the public half of an asymmetric KMS key.
func (s *Store) Export(ctx context.Context, i store.Item, format store.Format, params store.ExportParams) ([]byte, error) {
	it, err := lookup(i)
	if err != nil {
		return nil, err
	}

	if c := class(it.metadata); c != store.ClassPublic {
		return nil, store.Errorf("export", store.StatusUnimplemented, "can't export a %s", c)
	}

	if format != store.FormatDefault {
		return nil, store.Errorf("export", store.StatusParam, "public keys can't be wrapped")
	}

	out, err := s.client.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{
		KeyId: it.metadata.Arn,
	})
	if err != nil {
		return nil, s.awsError("export", err)
	}

	if !params.Armor {
		return out.PublicKey, nil
	}

	return store.ArmorPublicKey(out.PublicKey)
}

// Release is a no-op.
func (s *Store) Release(store.Item) {}

// StatusText returns the message of the last AWS error mapped to the status, falling back to the
// shared description of the status.
func (s *Store) StatusText(status store.Status) (string, bool) {
	if msg, ok := s.messages[status]; ok {
		return msg, true
	}

	return store.StatusText(status)
}

func lookup(i store.Item) (*item, error) {
	it, ok := i.(*item)
	if !ok {
		return nil, store.Errorf("item", store.StatusInvalidKeychainOrItem, "not a KMS key: %T", i)
	}

	return it, nil
}

func class(metadata *kms.KeyMetadata) store.Class {
	spec := aws.StringValue(metadata.KeySpec)

	switch {
	case spec == kms.KeySpecSymmetricDefault, strings.HasPrefix(spec, "HMAC_"):
		return store.ClassSymmetric
	case spec == "":
		return store.ClassUnknown
	default:
		return store.ClassPublic
	}
}

func (s *Store) awsError(op string, err error) *store.Error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return &store.Error{Op: op, Status: store.StatusInternalComponent, Err: err}
	}

	e := &store.Error{Op: op, Status: statusOf(aerr.Code()), Err: err}
	if e.Status == store.StatusItemNotFound {
		e.Err = fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	if msg := aerr.Message(); msg != "" {
		s.messages[e.Status] = msg
	}

	return e
}

func statusOf(code string) store.Status {
	switch code {
	case kms.ErrCodeNotFoundException:
		return store.StatusItemNotFound
	case kms.ErrCodeDisabledException, kms.ErrCodeInvalidStateException:
		return store.StatusInvalidKeychainOrItem
	case kms.ErrCodeUnsupportedOperationException, kms.ErrCodeInvalidKeyUsageException:
		return store.StatusUnimplemented
	case "AccessDeniedException", "UnrecognizedClientException":
		return store.StatusAuthFailed
	case kms.ErrCodeDependencyTimeoutException, kms.ErrCodeInternalException:
		return store.StatusNotAvailable
	default:
		return store.StatusInternalComponent
	}
}

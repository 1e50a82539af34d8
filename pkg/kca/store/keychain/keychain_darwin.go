//go:build darwin && cgo

package keychain

/*
#cgo LDFLAGS: -framework CoreFoundation -framework Security

#include <stdlib.h>
#include <string.h>
#include <CoreFoundation/CoreFoundation.h>
#include <Security/Security.h>

enum {
	KCA_CLASS_UNKNOWN = 0,
	KCA_CLASS_PRIVATE = 1,
	KCA_CLASS_PUBLIC = 2,
	KCA_CLASS_SYMMETRIC = 3,
};

enum {
	KCA_TYPE_OTHER = 0,
	KCA_TYPE_RSA = 1,
	KCA_TYPE_EC = 2,
};

// Finds every key with the label. If exactly one matches, it is retained and returned.
static OSStatus kca_find_key(const char *label, SecKeyRef *key, CFIndex *count) {
	*key = NULL;
	*count = 0;

	CFStringRef l = CFStringCreateWithCString(NULL, label, kCFStringEncodingUTF8);
	if (l == NULL) {
		return errSecAllocate;
	}

	const void *keys[] = {kSecClass, kSecAttrLabel, kSecMatchLimit, kSecReturnRef};
	const void *values[] = {kSecClassKey, l, kSecMatchLimitAll, kCFBooleanTrue};
	CFDictionaryRef query = CFDictionaryCreate(NULL, keys, values, 4,
			&kCFTypeDictionaryKeyCallBacks, &kCFTypeDictionaryValueCallBacks);
	CFRelease(l);
	if (query == NULL) {
		return errSecAllocate;
	}

	CFTypeRef result = NULL;
	OSStatus status = SecItemCopyMatching(query, &result);
	CFRelease(query);
	if (status != errSecSuccess) {
		return status;
	}

	if (CFGetTypeID(result) != CFArrayGetTypeID()) {
		CFRelease(result);
		return errSecInternalComponent;
	}

	*count = CFArrayGetCount((CFArrayRef)result);
	if (*count == 1) {
		*key = (SecKeyRef)CFRetain(CFArrayGetValueAtIndex((CFArrayRef)result, 0));
	}

	CFRelease(result);
	return errSecSuccess;
}

// Reads the key's class, type, and size. The dictionary's values are borrowed.
static void kca_key_attributes(SecKeyRef key, int *class, int *type, long *bits) {
	*class = KCA_CLASS_UNKNOWN;
	*type = KCA_TYPE_OTHER;
	*bits = 0;

	CFDictionaryRef attrs = SecKeyCopyAttributes(key);
	if (attrs == NULL) {
		return;
	}

	CFTypeRef c = CFDictionaryGetValue(attrs, kSecAttrKeyClass);
	if (c != NULL) {
		if (CFEqual(c, kSecAttrKeyClassPrivate)) {
			*class = KCA_CLASS_PRIVATE;
		} else if (CFEqual(c, kSecAttrKeyClassPublic)) {
			*class = KCA_CLASS_PUBLIC;
		} else if (CFEqual(c, kSecAttrKeyClassSymmetric)) {
			*class = KCA_CLASS_SYMMETRIC;
		}
	}

	CFTypeRef t = CFDictionaryGetValue(attrs, kSecAttrKeyType);
	if (t != NULL) {
		if (CFEqual(t, kSecAttrKeyTypeRSA)) {
			*type = KCA_TYPE_RSA;
		} else if (CFEqual(t, kSecAttrKeyTypeECSECPrimeRandom)) {
			*type = KCA_TYPE_EC;
		}
	}

	CFTypeRef b = CFDictionaryGetValue(attrs, kSecAttrKeySizeInBits);
	if (b != NULL && CFGetTypeID(b) == CFNumberGetTypeID()) {
		CFNumberGetValue((CFNumberRef)b, kCFNumberLongType, bits);
	}

	CFRelease(attrs);
}

// Exports the key. On success, the exported bytes are copied into a malloc'd buffer owned by the
// caller and the keychain's copy is zeroed.
static OSStatus kca_export(SecKeyRef key, int wrapped, const void *pass, size_t pass_len, int armor,
		void **out, size_t *out_len) {
	*out = NULL;
	*out_len = 0;

	SecItemImportExportKeyParameters params;
	memset(&params, 0, sizeof(params));
	params.version = SEC_KEY_IMPORT_EXPORT_PARAMS_VERSION;

	CFDataRef p = NULL;
	if (pass_len > 0) {
		p = CFDataCreate(NULL, pass, pass_len);
		if (p == NULL) {
			return errSecAllocate;
		}
		params.passphrase = p;
	}

	CFDataRef data = NULL;
	OSStatus status = SecItemExport(key, wrapped ? kSecFormatWrappedPKCS8 : kSecFormatUnknown,
			armor ? kSecItemPemArmour : 0, &params, &data);
	if (p != NULL) {
		CFRelease(p);
	}
	if (status != errSecSuccess) {
		return status;
	}

	CFIndex len = CFDataGetLength(data);
	if (len > 0) {
		*out = malloc(len);
		if (*out == NULL) {
			CFRelease(data);
			return errSecAllocate;
		}
		memcpy(*out, CFDataGetBytePtr(data), len);
		memset((void *)CFDataGetBytePtr(data), 0, len);
		*out_len = len;
	}

	CFRelease(data);
	return errSecSuccess;
}

static void kca_wipe_free(void *buf, size_t len) {
	if (buf != NULL) {
		memset(buf, 0, len);
		free(buf);
	}
}

static void kca_release(SecKeyRef key) {
	if (key != NULL) {
		CFRelease(key);
	}
}

// Returns the Security framework's description of the status in a malloc'd buffer, or NULL.
static char *kca_status_text(OSStatus status) {
	CFStringRef s = SecCopyErrorMessageString(status, NULL);
	if (s == NULL) {
		return NULL;
	}

	CFIndex len = CFStringGetMaximumSizeForEncoding(CFStringGetLength(s), kCFStringEncodingUTF8) + 1;
	char *buf = malloc(len);
	if (buf != NULL && !CFStringGetCString(s, buf, len, kCFStringEncodingUTF8)) {
		free(buf);
		buf = NULL;
	}

	CFRelease(s);
	return buf;
}
*/
import "C"

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/codahale/keychain-access/pkg/kca/store"
)

type item struct {
	label string
	key   C.SecKeyRef
}

func (it *item) Label() string {
	return it.label
}

// Store is a credential store backed by the user's default keychain search list.
type Store struct{}

var _ store.Store = &Store{}

// Open returns a Store for the user's keychains.
func Open() (store.Store, error) {
	return &Store{}, nil
}

// Find returns the single key with the given label.
func (s *Store) Find(_ context.Context, label string) (store.Item, error) {
	cLabel := C.CString(label)
	defer C.free(unsafe.Pointer(cLabel))

	var (
		key   C.SecKeyRef
		count C.CFIndex
	)

	if status := C.kca_find_key(cLabel, &key, &count); status != C.errSecSuccess {
		err := fmt.Errorf("search for %q", label)
		if store.Status(status) == store.StatusItemNotFound {
			err = store.ErrNotFound
		}

		return nil, &store.Error{Op: "find", Status: store.Status(status), Err: err}
	}

	switch {
	case count == 0:
		return nil, &store.Error{Op: "find", Status: store.StatusItemNotFound, Err: store.ErrNotFound}
	case count > 1:
		return nil, &store.Error{Op: "find", Status: store.StatusDuplicateItem, Err: store.ErrAmbiguous}
	}

	return &item{label: label, key: key}, nil
}

// Attributes returns the attributes of the key.
func (s *Store) Attributes(_ context.Context, i store.Item) (store.Attributes, error) {
	it, err := lookup(i)
	if err != nil {
		return store.Attributes{}, err
	}

	var (
		class, keyType C.int
		bits           C.long
	)

	C.kca_key_attributes(it.key, &class, &keyType, &bits)

	attrs := store.Attributes{Label: it.label, Kind: store.KindKey}

	switch class {
	case C.KCA_CLASS_PRIVATE:
		attrs.Class = store.ClassPrivate
	case C.KCA_CLASS_PUBLIC:
		attrs.Class = store.ClassPublic
	case C.KCA_CLASS_SYMMETRIC:
		attrs.Class = store.ClassSymmetric
	}

	switch keyType {
	case C.KCA_TYPE_RSA:
		attrs.Algorithm = fmt.Sprintf("RSA-%d", int(bits))
	case C.KCA_TYPE_EC:
		attrs.Algorithm = fmt.Sprintf("ECDSA-P-%d", int(bits))
	}

	return attrs, nil
}

// Export serializes the key with SecItemExport.
func (s *Store) Export(_ context.Context, i store.Item, format store.Format, params store.ExportParams) ([]byte, error) {
	it, err := lookup(i)
	if err != nil {
		return nil, err
	}

	var (
		wrapped, armor C.int
		pass           unsafe.Pointer
		out            unsafe.Pointer
		outLen         C.size_t
	)

	if format == store.FormatWrappedPKCS8 {
		wrapped = 1
	}

	if params.Armor {
		armor = 1
	}

	if len(params.Passphrase) > 0 {
		pass = C.CBytes(params.Passphrase)
		defer C.kca_wipe_free(pass, C.size_t(len(params.Passphrase)))
	}

	status := C.kca_export(it.key, wrapped, pass, C.size_t(len(params.Passphrase)), armor, &out, &outLen)
	if status != C.errSecSuccess {
		return nil, &store.Error{Op: "export", Status: store.Status(status), Err: fmt.Errorf("export %q", it.label)}
	}

	defer C.kca_wipe_free(out, outLen)

	return C.GoBytes(out, C.int(outLen)), nil
}

// Release releases the key's keychain reference.
func (s *Store) Release(i store.Item) {
	it, err := lookup(i)
	if err != nil {
		return
	}

	C.kca_release(it.key)
	it.key = 0
}

// StatusText returns the Security framework's description of the status.
func (s *Store) StatusText(status store.Status) (string, bool) {
	text := C.kca_status_text(C.OSStatus(status))
	if text == nil {
		return store.StatusText(status)
	}

	defer C.free(unsafe.Pointer(text))

	return C.GoString(text), true
}

func lookup(i store.Item) (*item, error) {
	it, ok := i.(*item)
	if !ok || it.key == 0 {
		return nil, store.Errorf("item", store.StatusInvalidKeychainOrItem, "not a keychain item: %T", i)
	}

	return it, nil
}

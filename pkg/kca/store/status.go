package store

// Status is a store status code.
type Status int32

// Status codes used across backends, numbered as their Security framework counterparts.
const (
	StatusSuccess               Status = 0
	StatusUnimplemented         Status = -4
	StatusParam                 Status = -50
	StatusAllocate              Status = -108
	StatusInternalComponent     Status = -2070
	StatusPassphraseRequired    Status = -25260
	StatusAuthFailed            Status = -25293
	StatusNoSuchKeychain        Status = -25294
	StatusDuplicateItem         Status = -25299
	StatusItemNotFound          Status = -25300
	StatusInteractionNotAllowed Status = -25308
	StatusDecode                Status = -26275
	StatusUnsupportedFormat     Status = -25256
	StatusUnknownFormat         Status = -25257
	StatusNotAvailable          Status = -25291
	StatusInvalidKeychainOrItem Status = -25304
	StatusMissingEntitlement    Status = -34018
	StatusInteractionRequired   Status = -25315
	StatusUserCanceled          Status = -128
)

var statusText = map[Status]string{
	StatusSuccess:               "No error.",
	StatusUnimplemented:         "Function or operation not implemented.",
	StatusParam:                 "One or more parameters passed to a function were not valid.",
	StatusAllocate:              "Failed to allocate memory.",
	StatusInternalComponent:     "An internal component failed.",
	StatusPassphraseRequired:    "Passphrase is required for import/export.",
	StatusAuthFailed:            "The user name or passphrase you entered is not correct.",
	StatusNoSuchKeychain:        "The specified keychain could not be found.",
	StatusDuplicateItem:         "The specified item already exists in the keychain.",
	StatusItemNotFound:          "The specified item could not be found in the keychain.",
	StatusInteractionNotAllowed: "User interaction is not allowed.",
	StatusDecode:                "Unable to decode the provided data.",
	StatusUnsupportedFormat:     "The item you are trying to import has an unsupported format.",
	StatusUnknownFormat:         "The item you are trying to import has an unknown format.",
	StatusNotAvailable:          "No keychain is available. You may need to restart your computer.",
	StatusInvalidKeychainOrItem: "The specified item is no longer valid. It may have been deleted from the keychain.",
	StatusMissingEntitlement:    "A required entitlement isn't present.",
	StatusInteractionRequired:   "User interaction is required, but is currently not allowed.",
	StatusUserCanceled:          "User canceled the operation.",
}

// StatusText returns the description of a status from the table shared by backends which don't
// have a native one.
func StatusText(status Status) (string, bool) {
	s, ok := statusText[status]

	return s, ok
}

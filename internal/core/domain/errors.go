package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrIO covers filesystem access failures.
	ErrIO = errors.New("i/o failure")
	// ErrCrypto covers key generation and cipher construction failures.
	ErrCrypto = errors.New("crypto failure")
	// ErrInvalidCredential is returned when the credential cannot be parsed or
	// does not authenticate the ciphertext.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrEmptyInput is returned for a zero-length source when empty input is not allowed.
	ErrEmptyInput = errors.New("empty input")
	// ErrMissingSegment is returned when the segment sequence has gaps.
	ErrMissingSegment = errors.New("missing segment")
	// ErrCorruptSegment is returned for malformed framing, duplicate indices or checksum mismatch.
	ErrCorruptSegment = errors.New("corrupt segment")
	// ErrNoFile is returned when no source or credential was supplied.
	ErrNoFile = errors.New("no file selected")
	// ErrInvalidFormat is returned when an uploaded credential has the wrong extension.
	ErrInvalidFormat = errors.New("invalid file format")
)

// CredentialExtension is the only accepted extension for uploaded credentials.
const CredentialExtension = ".pem"

// CredentialDownloadName is the name offered when the credential is handed out.
const CredentialDownloadName = "My_Key.pem"

// ValidCredentialName reports whether name looks like a credential upload.
func ValidCredentialName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), CredentialExtension)
}

// Describe maps a pipeline error to the message shown to the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoFile):
		return "No file selected"
	case errors.Is(err, ErrInvalidFormat):
		return "Invalid file format"
	case errors.Is(err, ErrInvalidCredential):
		return "Invalid key: the credential does not match the encrypted file"
	case errors.Is(err, ErrMissingSegment):
		return "Encrypted file is incomplete: a segment is missing"
	case errors.Is(err, ErrCorruptSegment):
		return "Encrypted file is damaged"
	case errors.Is(err, ErrEmptyInput):
		return "The selected file is empty"
	case errors.Is(err, ErrCrypto):
		return "Encryption failure"
	case errors.Is(err, ErrIO):
		return "I/O failure"
	default:
		return "Unexpected failure"
	}
}

package storage

import (
	"fmt"

	"github.com/growthtools/snapgate/security"
)

// EncryptRecord encrypts the sensitive fields of a token record (access and
// refresh token) for storage at rest. Returns a new record, leaving the
// original unchanged. If encryptor is nil or disabled, the original record
// is returned as-is.
func EncryptRecord(record *TokenRecord, encryptor *security.Encryptor) (*TokenRecord, error) {
	return transformRecord(record, encryptor, encryptor.Encrypt, "encrypt")
}

// DecryptRecord decrypts the sensitive fields of a token record previously
// written by EncryptRecord. Returns a new record, leaving the original
// unchanged. If encryptor is nil or disabled, the original record is
// returned as-is.
func DecryptRecord(record *TokenRecord, encryptor *security.Encryptor) (*TokenRecord, error) {
	return transformRecord(record, encryptor, encryptor.Decrypt, "decrypt")
}

func transformRecord(record *TokenRecord, encryptor *security.Encryptor, transform func(string) (string, error), verb string) (*TokenRecord, error) {
	if record == nil {
		return nil, nil
	}
	if !encryptor.IsEnabled() {
		return record, nil
	}

	result := record.Clone()

	if result.AccessToken != "" {
		val, err := transform(result.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to %s access token: %w", verb, err)
		}
		result.AccessToken = val
	}

	if result.RefreshToken != "" {
		val, err := transform(result.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to %s refresh token: %w", verb, err)
		}
		result.RefreshToken = val
	}

	return result, nil
}

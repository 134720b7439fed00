package validation

import (
	"fmt"
	"unicode"
)

var maxPayloadBytes int64 = 64 * 1024

// SetMaxPayloadBytes configures the payload size cap applied to sends.
func SetMaxPayloadBytes(n int64) {
	if n > 0 {
		maxPayloadBytes = n
	}
}

// ValidatePhone checks the identity format: digits only, 5 to 20 long.
// Identities never contain the conversation id separator.
func ValidatePhone(phone string) error {
	if len(phone) < 5 || len(phone) > 20 {
		return fmt.Errorf("phone must be 5-20 digits")
	}
	for _, r := range phone {
		if !unicode.IsDigit(r) {
			return fmt.Errorf("phone must contain only digits")
		}
	}
	return nil
}

// ValidateUsername checks display name constraints.
func ValidateUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username required")
	}
	if len(name) > 64 {
		return fmt.Errorf("username too long")
	}
	return nil
}

// ValidateSignup checks all signup fields at once.
func ValidateSignup(phone, username, password string) error {
	if phone == "" || username == "" || password == "" {
		return fmt.Errorf("all fields required")
	}
	if err := ValidatePhone(phone); err != nil {
		return err
	}
	if err := ValidateUsername(username); err != nil {
		return err
	}
	if len(password) < 4 {
		return fmt.Errorf("password too short")
	}
	return nil
}

// ValidatePayload checks the opaque message payload size. Content is
// never inspected.
func ValidatePayload(payload string) error {
	if int64(len(payload)) > maxPayloadBytes {
		return fmt.Errorf("payload exceeds %d bytes", maxPayloadBytes)
	}
	return nil
}

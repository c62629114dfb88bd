package auth

import (
	"testing"
)

func TestHashAndComparePassword(t *testing.T) {
	password := "SecureP@ss123"

	// Test hashing
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == "" {
		t.Error("hash should not be empty")
	}

	if hash == password {
		t.Error("hash should not equal plaintext password")
	}

	// Test comparison with correct password
	err = ComparePassword(hash, password)
	if err != nil {
		t.Errorf("ComparePassword with correct password failed: %v", err)
	}

	// Test comparison with wrong password
	err = ComparePassword(hash, "WrongPassword123!")
	if err == nil {
		t.Error("ComparePassword with wrong password should fail")
	}
}

func TestHashPassword_EmptyPassword(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Error("HashPassword with empty password should fail")
	}
}

func TestComparePassword_MalformedHash(t *testing.T) {
	if err := ComparePassword("not-a-bcrypt-hash", "whatever"); err == nil {
		t.Error("ComparePassword with malformed hash should fail")
	}
}

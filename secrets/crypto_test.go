package secrets

import "testing"

func TestCipher_EncryptDecryptRoundTrip(t *testing.T) {
	var key [32]byte
	for i := range key {
		key[i] = byte(i)
	}
	c := NewCipher(key)

	ciphertext, err := c.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if ciphertext == "hunter2" {
		t.Fatal("ciphertext should not equal the plaintext")
	}

	plaintext, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plaintext != "hunter2" {
		t.Errorf("got %q, want hunter2", plaintext)
	}
}

func TestCipher_DecryptWithWrongKeyFails(t *testing.T) {
	var key1, key2 [32]byte
	for i := range key1 {
		key1[i] = byte(i)
		key2[i] = byte(255 - i)
	}
	ciphertext, err := NewCipher(key1).Encrypt("secret-value")
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if _, err := NewCipher(key2).Decrypt(ciphertext); err == nil {
		t.Error("expected decryption to fail with the wrong key")
	}
}

func TestCipher_DecryptRejectsTruncatedCiphertext(t *testing.T) {
	c := NewCipher([32]byte{})
	if _, err := c.Decrypt("dG9vc2hvcnQ="); err == nil {
		t.Error("expected an error for ciphertext shorter than the nonce")
	}
}

func TestCipher_DecryptRejectsInvalidBase64(t *testing.T) {
	c := NewCipher([32]byte{})
	if _, err := c.Decrypt("not valid base64!!"); err == nil {
		t.Error("expected an error for invalid base64 input")
	}
}

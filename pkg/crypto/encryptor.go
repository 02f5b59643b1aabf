// Package crypto seals small secrets (notification webhook targets) at rest with age.
package crypto

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"filippo.io/age"
)

// ErrEmptyCiphertext is returned when Open is handed nothing to decrypt.
var ErrEmptyCiphertext = errors.New("empty ciphertext")

type Encryptor struct {
	identity  *age.X25519Identity
	recipient *age.X25519Recipient
}

// NewEncryptor parses an AGE-SECRET-KEY identity. An empty key generates a
// throwaway identity, so anything sealed with it is lost on restart.
func NewEncryptor(identityKey string) (*Encryptor, error) {
	var (
		identity *age.X25519Identity
		err      error
	)

	if identityKey == "" {
		identity, err = age.GenerateX25519Identity()
		if err != nil {
			return nil, fmt.Errorf("generating identity: %w", err)
		}
	} else {
		identity, err = age.ParseX25519Identity(identityKey)
		if err != nil {
			return nil, fmt.Errorf("parsing identity: %w", err)
		}
	}

	return &Encryptor{
		identity:  identity,
		recipient: identity.Recipient(),
	}, nil
}

// GenerateKey returns a fresh identity string suitable for ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", err
	}
	return identity.String(), nil
}

func (e *Encryptor) Seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, e.recipient)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing sealed data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing encryptor: %w", err)
	}

	return buf.Bytes(), nil
}

func (e *Encryptor) Open(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 {
		return nil, ErrEmptyCiphertext
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), e.identity)
	if err != nil {
		return nil, fmt.Errorf("creating decryptor: %w", err)
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading sealed data: %w", err)
	}

	return plaintext, nil
}

// SealString and OpenString are the string forms used by model fields.
func (e *Encryptor) SealString(s string) ([]byte, error) {
	return e.Seal([]byte(s))
}

func (e *Encryptor) OpenString(ciphertext []byte) (string, error) {
	b, err := e.Open(ciphertext)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// PublicKey returns the age1... recipient for this encryptor.
func (e *Encryptor) PublicKey() string {
	return e.recipient.String()
}

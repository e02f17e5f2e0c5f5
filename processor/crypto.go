package processor

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

// KeySize длина ключа AES-256 в байтах
const KeySize = 32

// ErrCiphertextTooShort payload короче nonce
var ErrCiphertextTooShort = errors.New("шифротекст слишком короткий")

// Sealer шифрует payload отчетов AES-GCM перед записью в хранилище
type Sealer struct {
	gcm cipher.AEAD
}

// ParseKey декодирует ключ в base64 и проверяет его длину
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("ключ шифрования отчетов должен быть в base64: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("ключ шифрования отчетов должен быть %d байта, получено %d", KeySize, len(key))
	}
	return key, nil
}

// NewSealer создает Sealer по ключу в base64
func NewSealer(encodedKey string) (*Sealer, error) {
	key, err := ParseKey(encodedKey)
	if err != nil {
		return nil, err
	}

	// Создаем AES-шифр с нашим ключом
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	// GCM (Galois/Counter Mode)
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{gcm: gcm}, nil
}

// Seal шифрует данные; nonce записывается в начало результата
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	// nonce должен быть уникальным для каждого payload
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return s.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open расшифровывает результат Seal
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	nonceSize := s.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, ErrCiphertextTooShort
	}

	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("ошибка расшифровки отчета: %w", err)
	}
	return plaintext, nil
}

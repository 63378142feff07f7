package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/crypto/scrypt"

	"mergegate/pkg/logx"
)

// Secrets file configuration.
const (
	secretsFileName = "secrets.json.enc"
	saltSize        = 16
	nonceSize       = 12
	scryptN         = 32768 // 2^15
	scryptR         = 8
	scryptP         = 1
	keySize         = 32 // AES-256
)

//nolint:gochecknoglobals // Package logger for secrets file operations
var secretsLogger = logx.NewLogger("config")

// SecretsFilePath returns the encrypted secrets file path under dir.
func SecretsFilePath(dir string) string {
	return filepath.Join(dir, ConfigDirName, secretsFileName)
}

// SecretsFileExists checks if the encrypted secrets file exists under dir.
func SecretsFileExists(dir string) bool {
	_, err := os.Stat(SecretsFilePath(dir))
	return err == nil
}

// EncryptSecretsFile encrypts and saves secrets to .mergegate/secrets.json.enc.
// Sets file permissions to 0600.
func EncryptSecretsFile(dir, passphrase string, secrets map[string]string) error {
	passphraseBytes := []byte(passphrase)
	defer func() {
		for i := range passphraseBytes {
			passphraseBytes[i] = 0
		}
	}()

	// Generate random salt
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	// Derive encryption key using scrypt
	key, err := scrypt.Key(passphraseBytes, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return fmt.Errorf("failed to derive encryption key: %w", err)
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return fmt.Errorf("failed to create GCM: %w", err)
	}

	// Generate random nonce
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	// Final file layout: [salt][nonce][ciphertext+tag]
	fileData := make([]byte, 0, saltSize+nonceSize+len(ciphertext))
	fileData = append(fileData, salt...)
	fileData = append(fileData, nonce...)
	fileData = append(fileData, ciphertext...)

	configDir := filepath.Join(dir, ConfigDirName)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", ConfigDirName, err)
	}

	path := filepath.Join(configDir, secretsFileName)
	if err := os.WriteFile(path, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}

	return nil
}

// DecryptSecretsFile decrypts and returns secrets from .mergegate/secrets.json.enc.
func DecryptSecretsFile(dir, passphrase string) (map[string]string, error) {
	path := SecretsFilePath(dir)

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat secrets file: %w", err)
	}

	// Tighten permissions if a previous tool left them open.
	if info.Mode().Perm() != 0600 {
		secretsLogger.Warn("secrets file has permissions %04o, fixing to 0600", info.Mode().Perm())
		if chmodErr := os.Chmod(path, 0600); chmodErr != nil {
			return nil, fmt.Errorf("failed to fix secrets file permissions: %w", chmodErr)
		}
	}

	fileData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secrets file: %w", err)
	}

	minSize := saltSize + nonceSize + 16 // 16 is GCM tag size
	if len(fileData) < minSize {
		return nil, fmt.Errorf("secrets file is corrupted or invalid format (too small)")
	}

	salt := fileData[:saltSize]
	nonce := fileData[saltSize : saltSize+nonceSize]
	ciphertext := fileData[saltSize+nonceSize:]

	passphraseBytes := []byte(passphrase)
	defer func() {
		for i := range passphraseBytes {
			passphraseBytes[i] = 0
		}
	}()

	key, err := scrypt.Key(passphraseBytes, salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive decryption key: %w", err)
	}
	defer func() {
		for i := range key {
			key[i] = 0
		}
	}()

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong passphrase or corrupted file)")
	}

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("failed to parse secrets: %w", err)
	}

	return secrets, nil
}

// SetSecretInFile sets one secret, creating the file when absent. Existing
// entries are preserved; the file is re-encrypted with a fresh salt and
// nonce on every write.
func SetSecretInFile(dir, passphrase, name, value string) error {
	secrets := map[string]string{}
	if SecretsFileExists(dir) {
		existing, err := DecryptSecretsFile(dir, passphrase)
		if err != nil {
			return err
		}
		secrets = existing
	}

	secrets[name] = value
	return EncryptSecretsFile(dir, passphrase, secrets)
}

// SecretNamesInFile returns the secret names (not values) stored in the
// file, in lexical order.
func SecretNamesInFile(dir, passphrase string) ([]string, error) {
	secrets, err := DecryptSecretsFile(dir, passphrase)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(secrets))
	for name := range secrets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Package credentials implements the encrypted key-value secret store
// described in spec §4.7: get/set/rotate/list over a master-passphrase
// derived key, with every access appended to the audit log and no
// plaintext secret ever written to disk or logged.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/scrypt"

	"github.com/vaultflow/vaultflow/pkg/audit"
	"github.com/vaultflow/vaultflow/pkg/faults"
	"github.com/vaultflow/vaultflow/pkg/vault"
)

const (
	scryptN      = 1 << 17 // satisfies spec's "memory/computation-hardened KDF, >=100k iterations"
	scryptR      = 8
	scryptP      = 1
	keyLen       = 32
	saltFileName = "salt"
	blobFileName = "vault.enc"
)

// record is the ciphertext form of one secret, the only form ever
// persisted to disk.
type record struct {
	Nonce      []byte     `json:"nonce"`
	Ciphertext []byte     `json:"ciphertext"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Store is a file-backed encrypted key-value secret store rooted at
// .credentials/ inside the vault.
type Store struct {
	mu       sync.Mutex
	dir      string
	auditLog *audit.Log
	key      []byte // derived master key, held only in memory
	salt     []byte
	records  map[string]record
}

// Open derives the master key from passphrase and loads any existing
// store, decrypting nothing until Get is called for a specific name.
func Open(root *vault.Root, passphrase string, auditLog *audit.Log) (*Store, error) {
	dir := root.Dir(vault.DotCredentials)
	s := &Store{dir: dir, auditLog: auditLog, records: map[string]record{}}

	salt, err := s.loadOrCreateSalt()
	if err != nil {
		return nil, err
	}
	s.salt = salt
	s.key, err = deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	if err := s.loadBlob(); err != nil {
		return nil, err
	}
	return s, nil
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, fmt.Errorf("credentials: derive key: %w", err)
	}
	return key, nil
}

func (s *Store) loadOrCreateSalt() ([]byte, error) {
	path := filepath.Join(s.dir, saltFileName)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("credentials: read salt: %w", err)
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("credentials: generate salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("credentials: write salt: %w", err)
	}
	return salt, nil
}

func (s *Store) blobPath() string {
	return filepath.Join(s.dir, blobFileName)
}

func (s *Store) loadBlob() error {
	data, err := os.ReadFile(s.blobPath())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("credentials: read store: %w", err)
	}
	var recs map[string]record
	if err := json.Unmarshal(data, &recs); err != nil {
		return fmt.Errorf("credentials: decode store: %w", err)
	}
	s.records = recs
	return nil
}

func (s *Store) persist() error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("credentials: encode store: %w", err)
	}
	tmp := s.blobPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("credentials: write store: %w", err)
	}
	if err := os.Rename(tmp, s.blobPath()); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("credentials: rename store: %w", err)
	}
	return nil
}

func (s *Store) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *Store) encrypt(plaintext []byte) (record, error) {
	aead, err := s.gcm()
	if err != nil {
		return record{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return record{}, err
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)
	return record{Nonce: nonce, Ciphertext: ciphertext}, nil
}

func (s *Store) decrypt(r record) ([]byte, error) {
	aead, err := s.gcm()
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, r.Nonce, r.Ciphertext, nil)
}

// Get returns the decrypted secret for name. Expired secrets are treated
// as missing.
func (s *Store) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[name]
	if !ok || (r.ExpiresAt != nil && r.ExpiresAt.Before(time.Now())) {
		s.appendAudit("credential.accessed", name, false)
		return "", faults.New(faults.CredentialMissing, name, "secret not found or expired")
	}
	plaintext, err := s.decrypt(r)
	if err != nil {
		s.appendAudit("credential.accessed", name, false)
		return "", faults.Wrap(faults.CredentialMissing, name, err)
	}
	s.appendAudit("credential.accessed", name, true)
	return string(plaintext), nil
}

// Set stores (or overwrites) a secret, optionally with an expiry.
func (s *Store) Set(name, value string, expiresAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("credentials: encrypt %s: %w", name, err)
	}
	r.ExpiresAt = expiresAt
	s.records[name] = r
	if err := s.persist(); err != nil {
		return err
	}
	s.appendAudit("credential.set", name, true)
	return nil
}

// List returns the names of every stored secret (never their values).
func (s *Store) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	s.appendAudit("credential.listed", "", true)
	return names
}

// Rotate re-encrypts every stored secret under a key derived from
// newMaster and a freshly generated salt, replacing the old salt file.
func (s *Store) Rotate(newMaster string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plaintexts := make(map[string][]byte, len(s.records))
	for name, r := range s.records {
		pt, err := s.decrypt(r)
		if err != nil {
			return fmt.Errorf("credentials: rotate: decrypt %s: %w", name, err)
		}
		plaintexts[name] = pt
	}

	newSalt := make([]byte, 16)
	if _, err := rand.Read(newSalt); err != nil {
		return fmt.Errorf("credentials: rotate: generate salt: %w", err)
	}
	newKey, err := deriveKey(newMaster, newSalt)
	if err != nil {
		return err
	}

	oldKey, oldSalt := s.key, s.salt
	s.key = newKey
	newRecords := make(map[string]record, len(plaintexts))
	for name, pt := range plaintexts {
		r, err := s.encrypt(pt)
		if err != nil {
			s.key, s.salt = oldKey, oldSalt
			return fmt.Errorf("credentials: rotate: re-encrypt %s: %w", name, err)
		}
		r.ExpiresAt = s.records[name].ExpiresAt
		newRecords[name] = r
	}

	saltPath := filepath.Join(s.dir, saltFileName)
	if err := os.WriteFile(saltPath+".tmp", newSalt, 0o600); err != nil {
		s.key, s.salt = oldKey, oldSalt
		return fmt.Errorf("credentials: rotate: write salt: %w", err)
	}
	if err := os.Rename(saltPath+".tmp", saltPath); err != nil {
		s.key, s.salt = oldKey, oldSalt
		return fmt.Errorf("credentials: rotate: rename salt: %w", err)
	}

	s.salt = newSalt
	s.records = newRecords
	if err := s.persist(); err != nil {
		return err
	}
	s.appendAudit("credential.rotated", "", true)
	return nil
}

func (s *Store) appendAudit(eventType, name string, success bool) {
	if s.auditLog == nil {
		return
	}
	s.auditLog.Append(audit.AppendInput{
		EventType:  eventType,
		Actor:      "credentials",
		Action:     eventType,
		Resource:   "credential",
		ResourceID: name,
		Details:    map[string]any{"success": success},
	})
}

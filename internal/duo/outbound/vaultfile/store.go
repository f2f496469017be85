package vaultfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
	"github.com/jessenaser/duobreak/internal/pkg/uid"
	"github.com/jessenaser/duobreak/internal/pkg/vaultcrypto"
)

// Vault file layout:
//
//	[0..3]   4-byte ASCII format version tag ("DBv1")
//	[4..19]  16-byte PBKDF2 salt, fixed at creation
//	[20..]   vaultcrypto blob: 16-byte IV immediately followed by the
//	         AES-256-CBC ciphertext of the JSON payload
//
// The IV therefore sits at bytes 20..35 of the file. Unknown version tags are
// rejected outright; there is no best-effort decode.
const (
	formatVersion = "DBv1"
	versionLen    = 4

	headerLen = versionLen + vaultcrypto.SaltLen
)

// payload is the decrypted vault body.
type payload struct {
	Keys map[string]*entity.KeyRecord `json:"keys"`
}

// Store holds one decrypted vault in memory and persists every mutation back
// to its file. A single mutex serializes all mutations, which makes counter
// advancement safe for concurrent callers within one process. Concurrent
// processes against the same path are the caller's problem by contract.
type Store struct {
	mu   sync.Mutex
	path string
	salt []byte
	key  []byte
	keys map[string]*entity.KeyRecord
	ids  uid.StringID
}

// Opener creates Store instances. It exists so the usecase layer can swap the
// filesystem-backed implementation for a fake in tests.
type Opener struct {
	ids uid.StringID
}

// NewOpener returns an Opener using ids for unique temp-file suffixes.
func NewOpener(ids uid.StringID) *Opener {
	return &Opener{ids: ids}
}

// Open loads and decrypts an existing vault file. One call performs exactly
// one attempt; retry policy belongs to the caller.
func (o *Opener) Open(path, password string) (*Store, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, goerror.Wrap(err, fmt.Sprintf("vault %q does not exist", path), goerror.CodeNotFound)
	}
	if err != nil {
		return nil, goerror.NewServer(fmt.Errorf("read vault %q: %w", path, err))
	}

	if len(raw) < headerLen {
		return nil, goerror.Wrap(nil, fmt.Sprintf("vault %q is truncated", path), goerror.CodeCorrupt)
	}
	if string(raw[:versionLen]) != formatVersion {
		return nil, goerror.Wrap(nil,
			fmt.Sprintf("vault %q has unsupported version tag %q", path, raw[:versionLen]),
			goerror.CodeUnsupportedVersion)
	}

	salt := make([]byte, vaultcrypto.SaltLen)
	copy(salt, raw[versionLen:headerLen])

	_, key, err := vaultcrypto.DeriveKey(password, salt)
	if err != nil {
		return nil, goerror.NewServer(err)
	}

	plain, err := vaultcrypto.Decrypt(raw[headerLen:], key)
	if err != nil {
		vaultcrypto.Zero(key)
		// Structural damage is distinguishable from a wrong key; bad padding
		// is not (CBC carries no authenticator), and a wrong password is by
		// far its dominant cause.
		if errors.Is(err, vaultcrypto.ErrCiphertextTooShort) || errors.Is(err, vaultcrypto.ErrCiphertextNotAligned) {
			return nil, goerror.Wrap(err, fmt.Sprintf("vault %q ciphertext is malformed", path), goerror.CodeCorrupt)
		}
		return nil, goerror.Wrap(err, "wrong password", goerror.CodeAuthentication)
	}

	var body payload
	decErr := json.Unmarshal(plain, &body)
	vaultcrypto.Zero(plain)
	if decErr != nil {
		vaultcrypto.Zero(key)
		return nil, goerror.Wrap(decErr, "wrong password", goerror.CodeAuthentication)
	}
	if body.Keys == nil {
		body.Keys = make(map[string]*entity.KeyRecord)
	}
	for name, rec := range body.Keys {
		rec.Name = name
	}

	return &Store{path: path, salt: salt, key: key, keys: body.Keys, ids: o.ids}, nil
}

// Create initializes a new empty vault file under a fresh salt.
func (o *Opener) Create(path, password string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, goerror.NewBusiness(fmt.Sprintf("vault %q already exists", path), goerror.CodeInvalidInput)
	}

	salt, key, err := vaultcrypto.DeriveKey(password, nil)
	if err != nil {
		return nil, goerror.NewServer(err)
	}

	st := &Store{
		path: path,
		salt: salt,
		key:  key,
		keys: make(map[string]*entity.KeyRecord),
		ids:  o.ids,
	}
	if err := st.save(); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// OpenOrCreate opens the vault at path, creating an empty one when absent.
// The original client creates the database on first use; key addition keeps
// that behavior.
func (o *Opener) OpenOrCreate(path, password string) (*Store, error) {
	st, err := o.Open(path, password)
	if errors.Is(err, goerror.ErrNotFound) {
		return o.Create(path, password)
	}
	return st, err
}

// Path returns the vault file path.
func (s *Store) Path() string {
	return s.path
}

// Close wipes the derived key. The Store must not be used afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	vaultcrypto.Zero(s.key)
	s.key = nil
}

// AddKey inserts a new record and persists the vault.
func (s *Store) AddKey(name string, rec *entity.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[name]; ok {
		return goerror.Wrap(nil, fmt.Sprintf("key %q already exists", name), goerror.CodeDuplicateKey)
	}

	cp := rec.Clone()
	cp.Name = name
	s.keys[name] = cp
	if err := s.save(); err != nil {
		delete(s.keys, name)
		return err
	}
	return nil
}

// DeleteKey removes a record and persists the vault.
func (s *Store) DeleteKey(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[name]
	if !ok {
		return goerror.Wrap(nil, fmt.Sprintf("key %q not found", name), goerror.CodeNotFound)
	}

	delete(s.keys, name)
	if err := s.save(); err != nil {
		s.keys[name] = rec
		return err
	}
	return nil
}

// GetKey returns a copy of the named record.
func (s *Store) GetKey(name string) (*entity.KeyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[name]
	if !ok {
		return nil, goerror.Wrap(nil, fmt.Sprintf("key %q not found", name), goerror.CodeNotFound)
	}
	return rec.Clone(), nil
}

// ListKeys returns every record summary sorted by name.
func (s *Store) ListKeys() []entity.KeySummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := lo.Keys(s.keys)
	sort.Strings(names)

	return lo.Map(names, func(name string, _ int) entity.KeySummary {
		return s.keys[name].Summary()
	})
}

// IncrementCounter advances the record's counter by exactly one and persists
// the vault, returning the new value. This and Generate are the only paths
// that produce a fresh counter value.
func (s *Store) IncrementCounter(name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[name]
	if !ok {
		return 0, goerror.Wrap(nil, fmt.Sprintf("key %q not found", name), goerror.CodeNotFound)
	}

	rec.Counter++
	if err := s.save(); err != nil {
		rec.Counter--
		return 0, err
	}
	return rec.Counter, nil
}

// PeekCounter returns the current counter without consuming it.
func (s *Store) PeekCounter(name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[name]
	if !ok {
		return 0, goerror.Wrap(nil, fmt.Sprintf("key %q not found", name), goerror.CodeNotFound)
	}
	return rec.Counter, nil
}

// LogCode appends one emitted code to the record's log and persists the
// vault. The log is append-only and chronological; it is never rewritten.
func (s *Store) LogCode(name, code string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[name]
	if !ok {
		return goerror.Wrap(nil, fmt.Sprintf("key %q not found", name), goerror.CodeNotFound)
	}

	rec.Log = append(rec.Log, entity.CodeLogEntry{At: at, Code: code})
	if err := s.save(); err != nil {
		rec.Log = rec.Log[:len(rec.Log)-1]
		return err
	}
	return nil
}

// RecentCodes returns up to n log entries in generation order, oldest first.
func (s *Store) RecentCodes(name string, n int) ([]entity.CodeLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[name]
	if !ok {
		return nil, goerror.Wrap(nil, fmt.Sprintf("key %q not found", name), goerror.CodeNotFound)
	}

	log := rec.Log
	if n > 0 && len(log) > n {
		log = log[len(log)-n:]
	}
	out := make([]entity.CodeLogEntry, len(log))
	copy(out, log)
	return out, nil
}

// Generate is the sanctioned code-generation path: it advances the counter,
// derives the code for the new value, appends the log entry, and persists all
// of it in one save. Counter and log cannot drift apart through it.
func (s *Store) Generate(name string, at time.Time, code func(counter uint64) (string, error)) (uint64, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.keys[name]
	if !ok {
		return 0, "", goerror.Wrap(nil, fmt.Sprintf("key %q not found", name), goerror.CodeNotFound)
	}

	next := rec.Counter + 1
	c, err := code(next)
	if err != nil {
		return 0, "", goerror.NewServer(fmt.Errorf("compute code for %q: %w", name, err))
	}

	rec.Counter = next
	rec.Log = append(rec.Log, entity.CodeLogEntry{At: at, Code: c})
	if err := s.save(); err != nil {
		rec.Counter--
		rec.Log = rec.Log[:len(rec.Log)-1]
		return 0, "", err
	}
	return next, c, nil
}

// ChangePassword re-encrypts the vault under a fresh salt and a key derived
// from the new password. Every record is byte-for-byte identical afterwards;
// only salt and ciphertext change.
func (s *Store) ChangePassword(newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	salt, key, err := vaultcrypto.DeriveKey(newPassword, nil)
	if err != nil {
		return goerror.NewServer(err)
	}

	oldSalt, oldKey := s.salt, s.key
	s.salt, s.key = salt, key
	if err := s.save(); err != nil {
		s.salt, s.key = oldSalt, oldKey
		vaultcrypto.Zero(key)
		return err
	}

	vaultcrypto.Zero(oldKey)
	return nil
}

// save serializes, encrypts, and atomically replaces the vault file. A crash
// mid-write leaves the previous file intact because the write happens to a
// uniquely named temp file that is renamed over the target.
func (s *Store) save() error {
	if s.key == nil {
		return goerror.NewServer(errors.New("vaultfile: store is closed"))
	}

	plain, err := json.Marshal(payload{Keys: s.keys})
	if err != nil {
		return goerror.NewServer(fmt.Errorf("encode vault payload: %w", err))
	}

	blob, err := vaultcrypto.Encrypt(plain, s.key)
	vaultcrypto.Zero(plain)
	if err != nil {
		return goerror.NewServer(err)
	}

	var buf bytes.Buffer
	buf.Grow(headerLen + len(blob))
	buf.WriteString(formatVersion)
	buf.Write(s.salt)
	buf.Write(blob)

	tmp := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+"."+s.ids.Generate()+".tmp")
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		os.Remove(tmp)
		return goerror.NewServer(fmt.Errorf("write vault temp file: %w", err))
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return goerror.NewServer(fmt.Errorf("replace vault file: %w", err))
	}
	return nil
}

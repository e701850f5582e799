// Package cache persists the broker's serialized token and HTTP caches
// between helper invocations. Token blobs prefer the OS secure store and
// fall back to a plaintext file only when the store is unavailable and the
// caller opted in; HTTP blobs are always file-backed.
package cache

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"go.uber.org/zap"
)

const (
	// keyringService is the fixed service namespace for secure-store entries.
	keyringService = "git-credential-msal"

	tokenEntryPrefix = "git-credential-msal_"
	tokenFilePrefix  = "msal_cache_"
	httpFilePrefix   = "http_cache_"
)

// Keyring is the secure key-value store the token cache prefers. The real
// implementation is the OS keyring; tests substitute a fake.
type Keyring interface {
	Get(service, name string) (string, error)
	Set(service, name, value string) error
}

// SystemKeyring is the zalando/go-keyring backed implementation.
type SystemKeyring struct{}

func (SystemKeyring) Get(service, name string) (string, error) {
	return keyring.Get(service, name)
}

func (SystemKeyring) Set(service, name, value string) error {
	return keyring.Set(service, name, value)
}

// lookup distinguishes the three outcomes of a fallible read. Callers
// branch on it explicitly instead of collapsing every failure into one.
type lookup int

const (
	lookupFound lookup = iota
	lookupAbsent
	lookupUnavailable
)

// Store is the layered persistence for one cache directory.
type Store struct {
	dir  string
	ring Keyring
	log  *zap.Logger
}

// New builds a store rooted at dir. A nil keyring uses the OS keyring.
func New(dir string, ring Keyring, log *zap.Logger) *Store {
	if ring == nil {
		ring = SystemKeyring{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{dir: dir, ring: ring, log: log}
}

// Dir returns the cache directory the store writes files under.
func (s *Store) Dir() string { return s.dir }

// LoadToken returns the serialized token cache for the derived name, or an
// empty blob when no tier has it. The insecure file tier is consulted only
// when the secure store itself is unavailable, never on a plain miss.
func (s *Store) LoadToken(name string) []byte {
	data, state := s.secureGet(tokenEntryPrefix + name)
	switch state {
	case lookupFound:
		return data
	case lookupAbsent:
		return nil
	}

	s.log.Debug("secure store unavailable, trying insecure token cache file")
	data, state = s.fileGet(tokenFilePrefix + name)
	if state == lookupFound {
		return data
	}
	return nil
}

// StoreToken persists the token cache blob. Nothing happens unless the
// broker reported a state change. When the secure store is unavailable the
// blob is written to a plaintext file only if allowInsecure is set;
// otherwise the change is dropped and the next run re-authenticates.
func (s *Store) StoreToken(name string, blob []byte, changed, allowInsecure bool) {
	if !changed {
		return
	}
	err := s.ring.Set(keyringService, tokenEntryPrefix+name, string(blob))
	if err == nil {
		return
	}
	s.log.Debug("secure store write failed", zap.Error(err))
	if !allowInsecure {
		s.log.Debug("insecure persistence not permitted, dropping token cache update")
		return
	}
	if err := s.filePut(tokenFilePrefix+name, blob, 0o600); err != nil {
		s.log.Debug("insecure token cache write failed", zap.Error(err))
	}
}

// LoadHTTP returns the serialized HTTP cache for the derived name. Any
// read failure yields an empty blob.
func (s *Store) LoadHTTP(name string) []byte {
	data, state := s.fileGet(httpFilePrefix + name)
	if state == lookupFound {
		return data
	}
	return nil
}

// StoreHTTP overwrites the HTTP cache file unconditionally, creating the
// cache directory as needed.
func (s *Store) StoreHTTP(name string, blob []byte) {
	if err := s.filePut(httpFilePrefix+name, blob, 0o600); err != nil {
		s.log.Debug("http cache write failed", zap.Error(err))
	}
}

func (s *Store) secureGet(entry string) ([]byte, lookup) {
	value, err := s.ring.Get(keyringService, entry)
	switch {
	case err == nil:
		return []byte(value), lookupFound
	case errors.Is(err, keyring.ErrNotFound):
		return nil, lookupAbsent
	default:
		return nil, lookupUnavailable
	}
}

func (s *Store) fileGet(filename string) ([]byte, lookup) {
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	switch {
	case err == nil:
		return data, lookupFound
	case errors.Is(err, os.ErrNotExist):
		return nil, lookupAbsent
	default:
		return nil, lookupUnavailable
	}
}

func (s *Store) filePut(filename string, blob []byte, mode os.FileMode) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.dir, filename), blob, mode)
}

// DefaultDir returns the platform cache directory for this helper, honoring
// the GIT_CREDENTIAL_MSAL_CACHE_DIR override.
func DefaultDir() string {
	if env := os.Getenv("GIT_CREDENTIAL_MSAL_CACHE_DIR"); env != "" {
		return env
	}
	base, err := os.UserCacheDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".cache", "git-credential-msal")
	}
	return filepath.Join(base, "git-credential-msal")
}

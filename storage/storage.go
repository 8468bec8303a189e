// Package storage is a small keyed JSON cache file under the user's
// home directory. It backs the artist-image cache so lookups survive a
// restart; session state is never stored here.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
)

const defaultCacheFile = ".config/soundstream-cache.json"

type Storage struct {
	mu       sync.Mutex
	filename string
	cache    map[string]json.RawMessage
	loaded   bool
}

// NewStorage returns a storage backed by the given file. An empty
// filename selects the default location under the home directory.
func NewStorage(filename string) *Storage {
	return &Storage{
		filename: filename,
		cache:    map[string]json.RawMessage{},
	}
}

func (s *Storage) lazyLoadLocked() error {
	if s.loaded {
		return nil
	}
	if s.filename == "" {
		homeDir, err := homedir.Dir()
		if err != nil {
			return errors.Wrap(err, "unable to find homedir")
		}
		s.filename = filepath.Join(homeDir, defaultCacheFile)
	}
	if contents, err := os.ReadFile(s.filename); err == nil {
		// A corrupt cache file is discarded, not fatal.
		if err := json.Unmarshal(contents, &s.cache); err != nil {
			s.cache = map[string]json.RawMessage{}
		}
	}
	s.loaded = true
	return nil
}

func (s *Storage) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lazyLoadLocked(); err != nil {
		return err
	}
	s.cache[key] = json.RawMessage(data)

	contents, err := json.Marshal(s.cache)
	if err != nil {
		return errors.Wrap(err, "unable to marshal cache")
	}
	if err := os.MkdirAll(filepath.Dir(s.filename), 0o755); err != nil {
		return errors.Wrap(err, "unable to create cache dir")
	}
	return errors.Wrap(os.WriteFile(s.filename, contents, 0o644), "unable to write cache file")
}

func (s *Storage) Load(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lazyLoadLocked(); err != nil {
		return nil, err
	}
	return s.cache[key], nil
}

package storage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zekimust-a11y/soundstream-sub000/storage"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	assertions := require.New(t)
	path := filepath.Join(t.TempDir(), "nested", "cache.json")

	s := storage.NewStorage(path)
	assertions.NoError(s.Save("artist_images", []byte(`{"portishead":["u1"]}`)))

	data, err := s.Load("artist_images")
	assertions.NoError(err)
	assertions.JSONEq(`{"portishead":["u1"]}`, string(data))

	// A fresh storage over the same file sees the saved data.
	s2 := storage.NewStorage(path)
	data, err = s2.Load("artist_images")
	assertions.NoError(err)
	assertions.JSONEq(`{"portishead":["u1"]}`, string(data))
}

func TestLoadMissingKey(t *testing.T) {
	assertions := require.New(t)
	s := storage.NewStorage(filepath.Join(t.TempDir(), "cache.json"))
	data, err := s.Load("nope")
	assertions.NoError(err)
	assertions.Nil(data)
}

func TestCorruptCacheFileIsDiscarded(t *testing.T) {
	assertions := require.New(t)
	path := filepath.Join(t.TempDir(), "cache.json")
	assertions.NoError(os.WriteFile(path, []byte("{not json"), 0o644))

	s := storage.NewStorage(path)
	data, err := s.Load("artist_images")
	assertions.NoError(err)
	assertions.Nil(data)

	// And the file is usable again after the next save.
	assertions.NoError(s.Save("k", []byte(`"v"`)))
	data, err = s.Load("k")
	assertions.NoError(err)
	assertions.Equal(`"v"`, string(data))
}

func TestSavePreservesOtherKeys(t *testing.T) {
	assertions := require.New(t)
	path := filepath.Join(t.TempDir(), "cache.json")

	s := storage.NewStorage(path)
	assertions.NoError(s.Save("a", []byte(`1`)))
	assertions.NoError(s.Save("b", []byte(`2`)))

	s2 := storage.NewStorage(path)
	data, err := s2.Load("a")
	assertions.NoError(err)
	assertions.Equal(`1`, string(data))
	data, err = s2.Load("b")
	assertions.NoError(err)
	assertions.Equal(`2`, string(data))
}

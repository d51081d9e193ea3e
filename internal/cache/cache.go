// Package cache stores encoded tile payloads on disk so unchanged tiles are
// not re-encoded on the next build.
package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Cache is a content-addressed store of zstd-compressed payloads.
// It is safe for concurrent use.
type Cache struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open creates the cache directory if needed.
func Open(dir string) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache: empty directory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Cache{dir: dir, enc: enc, dec: dec}, nil
}

func (c *Cache) path(key string) string {
	if len(key) < 2 {
		return filepath.Join(c.dir, key+".zst")
	}
	return filepath.Join(c.dir, key[:2], key+".zst")
}

// Get returns the payload stored under key. A missing or unreadable entry is
// a miss.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	raw, err := os.ReadFile(c.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	data, err := c.dec.DecodeAll(raw, nil)
	if err != nil {
		// Corrupt entries are dropped and rebuilt.
		_ = os.Remove(c.path(key))
		return nil, false, nil
	}
	return data, true, nil
}

// Put stores data under key.
func (c *Cache) Put(key string, data []byte) error {
	p := c.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".put-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(c.enc.EncodeAll(data, nil)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}

// Close releases the codec resources.
func (c *Cache) Close() {
	c.enc.Close()
	c.dec.Close()
}

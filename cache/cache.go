// Package cache serves source file reads through an in-process
// groupcache group, so that repeated window reads against the same
// stored plane decode from memory instead of disk.
package cache

import (
	"context"
	"os"
	"path/filepath"

	"github.com/golang/groupcache"
	d "github.com/tj/go-debug"
)

var debug = d.Debug("wsiview:cache")

// FileCache reads files below a root directory, keyed by their
// slash-separated relative path. A nil group means caching is off and
// every read goes to disk.
type FileCache struct {
	root  string
	group *groupcache.Group
}

// New builds a file cache rooted at root with the given capacity in
// bytes. A capacity of zero disables caching. Group names are global
// to the process; each cache needs its own.
func New(name string, capacity int64, root string) *FileCache {
	c := &FileCache{root: root}
	if capacity <= 0 {
		return c
	}
	c.group = groupcache.NewGroup(name, capacity, groupcache.GetterFunc(
		func(ctx groupcache.Context, key string, dest groupcache.Sink) error {
			data, err := readFile(root, key)
			if err != nil {
				return err
			}
			debug("caching %s (%d bytes)", key, len(data))
			return dest.SetBytes(data)
		},
	))
	return c
}

// Bytes returns the contents of the file at key, from cache when
// possible.
func (c *FileCache) Bytes(ctx context.Context, key string) ([]byte, error) {
	if c.group == nil {
		return readFile(c.root, key)
	}
	var data []byte
	if err := c.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, err
	}
	return data, nil
}

func readFile(root, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
}

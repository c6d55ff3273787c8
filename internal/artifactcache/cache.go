// Package artifactcache stores compiled grammar artifacts in a bbolt
// database, keyed by a hash of the grammar that produced them.
package artifactcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tliron/commonlog"
	bolt "go.etcd.io/bbolt"

	"github.com/odvcencio/arbor/generate"
	"github.com/odvcencio/arbor/grammar"
	"github.com/odvcencio/arbor/sitter"
)

const bucketArtifacts = "artifacts"

var log = commonlog.GetLogger("arbor.cache")

// Cache is a persistent artifact store. It is safe for concurrent use.
type Cache struct {
	db *bolt.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open artifact cache %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketArtifacts))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize artifact cache: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error { return c.db.Close() }

// Key identifies the artifact of g: the grammar name followed by a hash of
// its grammar.json form and the artifact format version.
func Key(g *grammar.Grammar) (string, error) {
	var buf bytes.Buffer
	if err := g.WriteJSON(&buf); err != nil {
		return "", fmt.Errorf("hash grammar %s: %w", g.Name, err)
	}
	buf.WriteString(strconv.Itoa(sitter.ArtifactVersion))
	sum := sha256.Sum256(buf.Bytes())
	return g.Name + "/" + hex.EncodeToString(sum[:]), nil
}

// Get returns the artifact stored under key.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	var out []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketArtifacts)).Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil, err
}

// Put stores an artifact under key.
func (c *Cache) Put(key string, data []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketArtifacts)).Put([]byte(key), data)
	})
}

// Delete removes the artifact stored under key.
func (c *Cache) Delete(key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketArtifacts)).Delete([]byte(key))
	})
}

// Keys lists the stored keys in order.
func (c *Cache) Keys() ([]string, error) {
	var keys []string
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketArtifacts)).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}

// Prune removes every artifact of the named grammar except the one under
// keep, and reports how many were removed.
func (c *Cache) Prune(name, keep string) (int, error) {
	prefix := []byte(name + "/")
	removed := 0
	err := c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketArtifacts))
		var stale [][]byte
		cur := b.Cursor()
		for k, _ := cur.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = cur.Next() {
			if string(k) != keep {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		removed = len(stale)
		return nil
	})
	return removed, err
}

// Language returns the compiled language for g, loading it from the cache
// when an artifact exists and compiling and storing it otherwise. Stale or
// unreadable artifacts are replaced.
func (c *Cache) Language(g *grammar.Grammar, opts ...generate.Option) (*sitter.Language, error) {
	key, err := Key(g)
	if err != nil {
		return nil, err
	}
	data, ok, err := c.Get(key)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", key, err)
	}
	if ok {
		lang, err := sitter.LoadLanguage(data)
		if err == nil {
			log.Debugf("cache hit for %s", key)
			return lang, nil
		}
		if !errors.Is(err, sitter.ErrBadArtifact) && !errors.Is(err, sitter.ErrIncompatibleVersion) {
			return nil, err
		}
		log.Warningf("discarding artifact %s: %s", key, err)
	}

	res, err := generate.Compile(g, opts...)
	if err != nil {
		return nil, err
	}
	data, err = res.Language.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode artifact %s: %w", key, err)
	}
	if err := c.Put(key, data); err != nil {
		return nil, fmt.Errorf("store artifact %s: %w", key, err)
	}
	if n, err := c.Prune(g.Name, key); err == nil && n > 0 {
		log.Infof("pruned %d stale artifacts of %s", n, g.Name)
	}
	return res.Language, nil
}

// Package cache keeps the last retrieved log of each device source on disk,
// so one command can retrieve and later ones list or export.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/jamesainslie/flightlog/pkg/flightlog/codec"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logbook"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
	"github.com/jamesainslie/flightlog/pkg/flightlog/uavo"
)

// ErrStale is returned by Load when the cached log cannot be used.
var ErrStale = errors.New("cached log is stale")

// Cache provides high-level caching operations for retrieved logs.
type Cache struct {
	store     *Store
	validator *Validator
	log       *logging.Logger
}

// Open opens or creates a cache at the given path. maxAge bounds how old a
// cached log may be; zero means no bound.
func Open(path string, maxAge time.Duration) (*Cache, error) {
	store, err := OpenStore(path)
	if err != nil {
		return nil, err
	}

	return &Cache{
		store:     store,
		validator: NewValidator(store, maxAge),
		log:       logging.Get("cache"),
	}, nil
}

// Close closes the cache.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Save replaces the cached log of source with entries.
func (c *Cache) Save(source string, sess Session, entries []*logbook.Entry) error {
	if err := c.store.DeletePrefix(MakeKeyPrefix(source)); err != nil {
		return err
	}

	keys := make([][]byte, 0, len(entries)+1)
	vals := make([][]byte, 0, len(entries)+1)
	sess.Bytes = 0
	for i, e := range entries {
		raw := e.Raw
		if raw == nil {
			raw = codec.Encode(e)
		}
		keys = append(keys, RecordKey(source, uint32(i)))
		vals = append(vals, raw)
		sess.Bytes += int64(len(raw))
	}
	if err := c.store.PutBatch(keys, vals); err != nil {
		return err
	}

	sess.Version = CacheVersion
	sess.Source = source
	sess.Entries = len(entries)
	if sess.RetrievedAt.IsZero() {
		sess.RetrievedAt = time.Now()
	}
	data, err := sess.Encode()
	if err != nil {
		return err
	}
	if err := c.store.Put(SessionKey(source), data); err != nil {
		return err
	}

	c.log.Debug("log cached", "source", source, "entries", sess.Entries, "bytes", sess.Bytes)
	return nil
}

// Info validates the cache of source without loading records.
func (c *Cache) Info(source string) (*ValidationResult, error) {
	return c.validator.Validate(source)
}

// Load returns the cached log of source, decoded with cat. Records that no
// longer decode are skipped.
func (c *Cache) Load(source string, cat *uavo.Catalogue) (*Session, []*logbook.Entry, error) {
	res, err := c.validator.Validate(source)
	if err != nil {
		return nil, nil, err
	}
	if !res.Valid {
		return res.Session, nil, fmt.Errorf("%w: %s", ErrStale, res.Reason)
	}

	entries := make([]*logbook.Entry, 0, res.Session.Entries)
	skipped := 0
	err = c.store.Scan(RecordPrefix(source), func(_, val []byte) error {
		e, err := codec.Decode(val, cat)
		if err != nil {
			skipped++
			return nil
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if skipped > 0 {
		c.log.Warn("cached records no longer decode", "source", source, "skipped", skipped)
	}
	return res.Session, entries, nil
}

// Clear removes the cached log of source.
func (c *Cache) Clear(source string) error {
	return c.store.DeletePrefix(MakeKeyPrefix(source))
}

// ClearAll removes every cached log.
func (c *Cache) ClearAll() error {
	return c.store.DropAll()
}

// Sources returns the sessions of every cached source.
func (c *Cache) Sources() ([]Session, error) {
	var out []Session
	err := c.store.Scan(nil, func(key, val []byte) error {
		src := ParseKey(key)
		if len(key) != len(src)+2 || key[len(src)+1] != kindSession {
			return nil
		}
		var s Session
		if err := s.Decode(val); err != nil {
			return nil //nolint:nilerr // skip unreadable sessions
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

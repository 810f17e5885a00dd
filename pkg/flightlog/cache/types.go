package cache

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// CacheVersion is incremented when the cache format changes.
const CacheVersion = 1

// KeySeparator separates the source from the rest of a cache key.
const KeySeparator = '\x00'

// Key kinds under a source.
const (
	kindSession = 's'
	kindRecord  = 'r'
)

// Session describes the retrieval a cached log came from.
type Session struct {
	Version     int       `msgpack:"v"`
	Source      string    `msgpack:"src"`
	Target      string    `msgpack:"target"`
	Outcome     string    `msgpack:"outcome"`
	Entries     int       `msgpack:"entries"`
	Flights     []uint16  `msgpack:"flights"`
	Bytes       int64     `msgpack:"bytes"`
	RetrievedAt time.Time `msgpack:"at"`
}

// Encode serializes the session with msgpack.
func (s *Session) Encode() ([]byte, error) {
	return msgpack.Marshal(s)
}

// Decode deserializes a msgpack session.
func (s *Session) Decode(data []byte) error {
	return msgpack.Unmarshal(data, s)
}

// MakeKeyPrefix returns the prefix for all keys under a source.
// Format: <source>\x00
func MakeKeyPrefix(source string) []byte {
	return []byte(source + string(KeySeparator))
}

// SessionKey returns the key of a source's session record.
func SessionKey(source string) []byte {
	return append(MakeKeyPrefix(source), kindSession)
}

// RecordPrefix returns the prefix of a source's raw records.
func RecordPrefix(source string) []byte {
	return append(MakeKeyPrefix(source), kindRecord)
}

// RecordKey returns the key of the i-th record of a source. Keys sort in
// retrieval order.
// Format: <source>\x00r<seq u32 big endian>
func RecordKey(source string, seq uint32) []byte {
	k := RecordPrefix(source)
	return binary.BigEndian.AppendUint32(k, seq)
}

// ParseKey extracts the source from a cache key.
func ParseKey(key []byte) string {
	idx := bytes.IndexByte(key, KeySeparator)
	if idx == -1 {
		return string(key)
	}
	return string(key[:idx])
}

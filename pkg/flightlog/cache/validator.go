package cache

import (
	"errors"
	"fmt"
	"time"
)

// ValidationResult contains the results of cache validation.
type ValidationResult struct {
	// Session is the cached session header, nil when nothing is cached.
	Session *Session

	// Valid is true when the cached records can be used as is.
	Valid bool

	// Reason explains why a cache is not valid.
	Reason string
}

// Validator checks a cached session for consistency and age.
type Validator struct {
	store  *Store
	maxAge time.Duration
	now    func() time.Time
}

// NewValidator creates a validator. A zero maxAge accepts any age.
func NewValidator(store *Store, maxAge time.Duration) *Validator {
	return &Validator{store: store, maxAge: maxAge, now: time.Now}
}

// Validate checks the cache of source. A missing cache is reported as not
// valid, not as an error.
func (v *Validator) Validate(source string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := v.store.Get(SessionKey(source))
	if errors.Is(err, ErrNotFound) {
		result.Reason = "nothing cached"
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	var sess Session
	if err := sess.Decode(data); err != nil {
		result.Reason = fmt.Sprintf("unreadable session: %v", err)
		return result, nil
	}
	result.Session = &sess

	switch {
	case sess.Version != CacheVersion:
		result.Reason = fmt.Sprintf("cache version %d, want %d", sess.Version, CacheVersion)
	case v.maxAge > 0 && v.now().Sub(sess.RetrievedAt) > v.maxAge:
		result.Reason = fmt.Sprintf("retrieved %s ago", v.now().Sub(sess.RetrievedAt).Round(time.Second))
	default:
		// Records are written before the session, so a short count means an
		// interrupted save.
		if n := v.store.Count(RecordPrefix(source)); n != sess.Entries {
			result.Reason = fmt.Sprintf("%d records cached, session says %d", n, sess.Entries)
			break
		}
		result.Valid = true
	}
	return result, nil
}

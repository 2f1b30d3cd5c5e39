package ledger

import "time"

// BanLedger tracks suspension expiries for a single key type (uploader name,
// or an (uploader, identity) pair flattened to a string key by the caller).
// A present entry means "suspended until Instant"; absent means usable.
type BanLedger struct {
	store *Store[string, time.Time]
}

// NewBanLedger opens (or creates) the ban ledger backed by path.
func NewBanLedger(path string) (*BanLedger, error) {
	store, err := Open[string, time.Time](path)
	if err != nil {
		return nil, err
	}
	return &BanLedger{store: store}, nil
}

// Ban sets key's suspension to expire at until.
func (b *BanLedger) Ban(key string, until time.Time) error {
	return b.store.Put(key, until)
}

// Unban clears key's suspension.
func (b *BanLedger) Unban(key string) error {
	return b.store.Remove(key)
}

// IsBanned reports whether key is currently suspended, given now. Expired
// bans are treated as not-banned but are not removed here; callers that want
// the expired entry swept should call ClearExpired.
func (b *BanLedger) IsBanned(key string, now time.Time) (bool, time.Time) {
	until, ok := b.store.Get(key)
	if !ok {
		return false, time.Time{}
	}
	return now.Before(until), until
}

// ClearExpired removes every ban whose expiry has passed, and reports the
// keys it cleared.
func (b *BanLedger) ClearExpired(now time.Time) []string {
	var cleared []string
	b.store.Mutate(func(data map[string]time.Time) {
		for key, until := range data {
			if !now.Before(until) {
				delete(data, key)
				cleared = append(cleared, key)
			}
		}
	})
	return cleared
}

// Snapshot returns the current ban map.
func (b *BanLedger) Snapshot() map[string]time.Time {
	return b.store.Snapshot()
}

// MinExpiry returns the earliest expiry among the given keys that are
// currently banned, and whether any were found.
func (b *BanLedger) MinExpiry(keys []string) (time.Time, bool) {
	var min time.Time
	found := false
	snap := b.store.Snapshot()
	for _, k := range keys {
		until, ok := snap[k]
		if !ok {
			continue
		}
		if !found || until.Before(min) {
			min = until
			found = true
		}
	}
	return min, found
}

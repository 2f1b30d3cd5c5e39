package ledger

import (
	"strings"
	"time"
)

// DailyQuota is the per-identity byte ceiling.
const DailyQuota uint64 = 750 * 1 << 30

const quotaResetAfter = 24 * time.Hour

// QuotaEntry is one (uploader, identity) quota record.
type QuotaEntry struct {
	Bytes    uint64    `json:"bytes"`
	FirstUse time.Time `json:"first_use"`
	ResetAt  time.Time `json:"reset_at"`
}

// QuotaLedger is the durable identity byte-usage ledger (component E).
type QuotaLedger struct {
	store *Store[string, QuotaEntry]
}

// NewQuotaLedger opens (or creates) the quota ledger backed by path.
func NewQuotaLedger(path string) (*QuotaLedger, error) {
	store, err := Open[string, QuotaEntry](path)
	if err != nil {
		return nil, err
	}
	return &QuotaLedger{store: store}, nil
}

// quotaKey flattens an (uploader, identity) pair into the ledger's string
// key. Identity is a filesystem path, which never contains the separator.
func quotaKey(uploader, identity string) string {
	return uploader + "\x1f" + identity
}

func splitQuotaKey(key string) (uploader, identity string) {
	parts := strings.SplitN(key, "\x1f", 2)
	if len(parts) != 2 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

// Remaining returns the bytes left in the current 24h window for
// (uploader, identity), purging and resetting to the full daily quota if the
// window has elapsed.
func (q *QuotaLedger) Remaining(uploader, identity string, now time.Time) (uint64, error) {
	key := quotaKey(uploader, identity)
	entry, ok := q.store.Get(key)
	if !ok {
		return DailyQuota, nil
	}
	if !now.Before(entry.ResetAt) {
		if err := q.store.Remove(key); err != nil {
			return DailyQuota, err
		}
		return DailyQuota, nil
	}
	if entry.Bytes >= DailyQuota {
		return 0, nil
	}
	return DailyQuota - entry.Bytes, nil
}

// Charge adds delta bytes to (uploader, identity)'s usage, saturating at
// DailyQuota, creating the entry with a fresh 24h window on first use.
func (q *QuotaLedger) Charge(uploader, identity string, delta uint64, now time.Time) error {
	key := quotaKey(uploader, identity)
	return q.store.Mutate(func(data map[string]QuotaEntry) {
		entry, ok := data[key]
		if !ok || !now.Before(entry.ResetAt) {
			entry = QuotaEntry{
				Bytes:    0,
				FirstUse: now,
				ResetAt:  now.Add(quotaResetAfter),
			}
		}
		entry.Bytes += delta
		if entry.Bytes > DailyQuota {
			entry.Bytes = DailyQuota
		}
		data[key] = entry
	})
}

// Sweep purges every entry whose reset time has passed, and for each purged
// entry whose matching identity ban expiry is exactly that reset time,
// clears the ban too. banLedger may be nil to skip
// the second step (used by tests that only exercise quota behavior).
func (q *QuotaLedger) Sweep(now time.Time, banLedger *BanLedger) error {
	var purged []string
	var resetAts []time.Time

	if err := q.store.Mutate(func(data map[string]QuotaEntry) {
		for key, entry := range data {
			if !now.Before(entry.ResetAt) {
				delete(data, key)
				purged = append(purged, key)
				resetAts = append(resetAts, entry.ResetAt)
			}
		}
	}); err != nil {
		return err
	}

	if banLedger == nil {
		return nil
	}

	snap := banLedger.Snapshot()
	for i, key := range purged {
		uploader, identity := splitQuotaKey(key)
		banKey := IdentityBanKey(uploader, identity)
		if until, ok := snap[banKey]; ok && until.Equal(resetAts[i]) {
			if err := banLedger.Unban(banKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// Entry returns the raw entry for (uploader, identity), if present.
func (q *QuotaLedger) Entry(uploader, identity string) (QuotaEntry, bool) {
	return q.store.Get(quotaKey(uploader, identity))
}

// Snapshot returns every (uploader, identity) quota entry, keyed by the
// ledger's flattened string key. Callers that need the split form use
// SplitKey, exported here for the CLI status command.
func (q *QuotaLedger) Snapshot() map[string]QuotaEntry {
	return q.store.Snapshot()
}

// SplitKey exposes splitQuotaKey to callers outside the package (the CLI
// status command needs to print uploader/identity separately).
func SplitKey(key string) (uploader, identity string) {
	return splitQuotaKey(key)
}

// Remove deletes the quota entry for (uploader, identity) outright, used by
// the `quota reset` maintenance command to force a fresh 24h window
// immediately instead of waiting for the sweep.
func (q *QuotaLedger) Remove(uploader, identity string) error {
	return q.store.Remove(quotaKey(uploader, identity))
}

// IdentityBanKey is shared with the identity package's rotator so ban keys
// constructed on either side of the (uploader, identity) boundary match.
func IdentityBanKey(uploader, identity string) string {
	return uploader + "\x1f" + identity
}

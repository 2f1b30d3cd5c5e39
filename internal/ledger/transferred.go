package ledger

import "time"

// TransferredEntry is one uploader's record of already-uploaded files.
// ConfigFingerprint lets the orchestrator detect that the upload folder or
// remote changed underneath a stale file set and discard it instead of
// trusting a merge against the new configuration.
type TransferredEntry struct {
	ConfigFingerprint string          `json:"config_fingerprint"`
	Files             map[string]bool `json:"files"`
	LastFullScan      time.Time       `json:"last_full_scan"`
}

// TransferredLedger is the durable per-uploader transferred-file set.
type TransferredLedger struct {
	store *Store[string, TransferredEntry]
}

// NewTransferredLedger opens (or creates) the transferred-set ledger backed
// by path.
func NewTransferredLedger(path string) (*TransferredLedger, error) {
	store, err := Open[string, TransferredEntry](path)
	if err != nil {
		return nil, err
	}
	return &TransferredLedger{store: store}, nil
}

// Files returns the known-transferred set for uploader, and whether its
// stored fingerprint matches wantFingerprint. A mismatch means the set was
// recorded under another configuration and is stale.
func (t *TransferredLedger) Files(uploader, wantFingerprint string) (map[string]bool, bool) {
	entry, ok := t.store.Get(uploader)
	if !ok {
		return map[string]bool{}, false
	}
	return entry.Files, entry.ConfigFingerprint == wantFingerprint
}

// ReplaceAll performs the weekend full-merge: files replaces the stored set
// wholesale, stamped with the new fingerprint and scan time.
func (t *TransferredLedger) ReplaceAll(uploader, fingerprint string, files map[string]bool, scannedAt time.Time) error {
	return t.store.Put(uploader, TransferredEntry{
		ConfigFingerprint: fingerprint,
		Files:             files,
		LastFullScan:      scannedAt,
	})
}

// MergeIncremental performs the weekday incremental merge: newlyTransferred
// is unioned into the existing stored set without discarding anything the
// last full scan already established. A set stored under a different
// fingerprint is stale and is discarded before the union.
func (t *TransferredLedger) MergeIncremental(uploader, fingerprint string, newlyTransferred []string) error {
	return t.store.Mutate(func(data map[string]TransferredEntry) {
		entry, ok := data[uploader]
		if !ok {
			entry = TransferredEntry{
				ConfigFingerprint: fingerprint,
				Files:             map[string]bool{},
			}
		}
		if entry.Files == nil || entry.ConfigFingerprint != fingerprint {
			entry.Files = map[string]bool{}
		}
		entry.ConfigFingerprint = fingerprint
		for _, f := range newlyTransferred {
			entry.Files[f] = true
		}
		data[uploader] = entry
	})
}

// LastFullScan returns the last full-scan timestamp recorded for uploader.
func (t *TransferredLedger) LastFullScan(uploader string) (time.Time, bool) {
	entry, ok := t.store.Get(uploader)
	if !ok {
		return time.Time{}, false
	}
	return entry.LastFullScan, true
}

// IsFullScanDay reports whether now falls on the weekend full-reconciliation
// schedule.
func IsFullScanDay(now time.Time) bool {
	switch now.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// FlushThreshold is how many newly transferred files accumulate before the
// orchestrator flushes an incremental merge mid-run rather than waiting for
// the stage to finish, bounding how much work a crash mid-stage can lose.
const FlushThreshold = 50

package identity

import (
	"time"

	"github.com/uploadop/uploadop/internal/ledger"
)

// MinQualifyingQuota is the remaining-bytes floor below which an identity is
// dropped from rotation candidacy.
const MinQualifyingQuota uint64 = 1 << 30

// StageFloor is the remaining-bytes floor at or below which the orchestrator ends
// the stage loop for the current identity and rotates.
const StageFloor uint64 = 10 << 30

// Accountant tracks per-identity byte usage against the daily quota. It is a
// thin domain-facing wrapper over the durable ledger.QuotaLedger.
type Accountant struct {
	quota *ledger.QuotaLedger
}

// NewAccountant wraps an already-opened quota ledger.
func NewAccountant(quota *ledger.QuotaLedger) *Accountant {
	return &Accountant{quota: quota}
}

// Remaining returns the bytes left in (uploader, id)'s current 24h window.
func (a *Accountant) Remaining(uploader, id string, now time.Time) (uint64, error) {
	return a.quota.Remaining(uploader, id, now)
}

// Charge records delta more bytes transferred by (uploader, id).
func (a *Accountant) Charge(uploader, id string, delta uint64, now time.Time) error {
	return a.quota.Charge(uploader, id, delta, now)
}

// Sweep purges expired quota windows and clears any identity ban whose
// expiry exactly matches a purged window's reset time.
func (a *Accountant) Sweep(now time.Time, bans *ledger.BanLedger) error {
	return a.quota.Sweep(now, bans)
}

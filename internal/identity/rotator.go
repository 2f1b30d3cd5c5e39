package identity

import (
	"time"

	"github.com/uploadop/uploadop/internal/ledger"
)

// Outcome describes the result of a NextUsable call.
type Outcome struct {
	Identity string
	Found    bool
}

// Rotator iterates the identities registered for an uploader, skipping
// banned or quota-exhausted ones, and records bans on trigger-abort or
// exhaustion.
type Rotator struct {
	uploader    string
	identities  []string
	identityBan *ledger.BanLedger
	uploaderBan *ledger.BanLedger
	accountant  *Accountant
}

// NewRotator builds a rotator for uploader over identities (already sorted
// by List), backed by the given ban ledgers and accountant.
func NewRotator(uploader string, identities []string, identityBan, uploaderBan *ledger.BanLedger, accountant *Accountant) *Rotator {
	return &Rotator{
		uploader:    uploader,
		identities:  identities,
		identityBan: identityBan,
		uploaderBan: uploaderBan,
		accountant:  accountant,
	}
}

// NextUsable runs sweep and clears expired bans, then returns the first
// identity, in ascending order, that is unbanned and has remaining quota at
// or above MinQualifyingQuota. If none qualify, it bans the uploader until
// the earliest identity unban time and reports not-found.
func (r *Rotator) NextUsable(now time.Time) (Outcome, error) {
	if err := r.accountant.Sweep(now, r.identityBan); err != nil {
		return Outcome{}, err
	}
	r.identityBan.ClearExpired(now)

	for _, id := range r.identities {
		banKey := ledger.IdentityBanKey(r.uploader, id)
		if banned, _ := r.identityBan.IsBanned(banKey, now); banned {
			continue
		}
		remaining, err := r.accountant.Remaining(r.uploader, id, now)
		if err != nil {
			return Outcome{}, err
		}
		if remaining < MinQualifyingQuota {
			continue
		}
		return Outcome{Identity: id, Found: true}, nil
	}

	if err := r.suspendUploader(now); err != nil {
		return Outcome{}, err
	}
	return Outcome{Found: false}, nil
}

// RecordTriggerAbort bans id for sleepHours, and if every identity is now
// banned, bans the uploader until the earliest identity unban time.
func (r *Rotator) RecordTriggerAbort(id string, sleepHours float64, now time.Time) error {
	until := now.Add(time.Duration(sleepHours * float64(time.Hour)))
	if err := r.identityBan.Ban(ledger.IdentityBanKey(r.uploader, id), until); err != nil {
		return err
	}

	for _, other := range r.identities {
		if other == id {
			continue
		}
		if banned, _ := r.identityBan.IsBanned(ledger.IdentityBanKey(r.uploader, other), now); !banned {
			return nil
		}
	}
	return r.suspendUploader(now)
}

// suspendUploader bans the uploader until the earliest currently-banned
// identity's unban time (the "lowest remaining time" rule).
func (r *Rotator) suspendUploader(now time.Time) error {
	keys := make([]string, len(r.identities))
	for i, id := range r.identities {
		keys[i] = ledger.IdentityBanKey(r.uploader, id)
	}
	until, found := r.identityBan.MinExpiry(keys)
	if !found {
		return nil
	}
	return r.uploaderBan.Ban(r.uploader, until)
}

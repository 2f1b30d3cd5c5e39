// Package stageplan computes per-stage transfer-tool parameters from an
// identity's remaining quota.
package stageplan

// DefaultDailyQuota is the fallback daily quota used when callers don't pass
// an override (750 GiB).
const DefaultDailyQuota uint64 = 750 << 30

// Tag names the strategy band a stage was planned under.
type Tag string

const (
	TagAggressiveFresh  Tag = "aggressive_fresh_sa"
	TagModerateMid      Tag = "moderate_mid_sa"
	TagCautiousLow      Tag = "cautious_low_quota"
	TagConservative     Tag = "conservative_cleanup"
)

// Params are the parameters consumed by the driver to build the transfer
// tool's argv.
type Params struct {
	MaxTransferBytes uint64
	MaxSizeBytes     uint64
	Transfers        int
	OrderBy          string // empty means "omit --order-by"
	MaxBacklog       int    // 0 means "omit --max-backlog"
	HasOrdering      bool   // false for cautious_low_quota / conservative_cleanup
	Tag              Tag
}

// Plan computes the stage parameters for remaining bytes of quota by
// picking the strategy band its fraction of dailyQuota falls into.
// dailyQuota is the identity's daily cap (pass DefaultDailyQuota unless
// overridden). chunked strips ordering flags incompatible with an explicit
// file list.
func Plan(remaining, dailyQuota uint64, chunked bool) Params {
	if dailyQuota == 0 {
		dailyQuota = DefaultDailyQuota
	}
	p := float64(remaining) / float64(dailyQuota)

	var params Params
	switch {
	case p >= 0.80:
		params = Params{
			MaxTransferBytes: fraction(remaining, 0.50),
			MaxSizeBytes:     fraction(remaining, 0.80),
			Transfers:        8,
			OrderBy:          "size,desc",
			MaxBacklog:       2000,
			HasOrdering:      true,
			Tag:              TagAggressiveFresh,
		}
	case p >= 0.50:
		params = Params{
			MaxTransferBytes: fraction(remaining, 0.60),
			MaxSizeBytes:     fraction(remaining, 0.50),
			Transfers:        4,
			OrderBy:          "size,desc",
			MaxBacklog:       1000,
			HasOrdering:      true,
			Tag:              TagModerateMid,
		}
	case p >= 0.25:
		params = Params{
			MaxTransferBytes: fraction(remaining, 0.70),
			MaxSizeBytes:     fraction(remaining, 0.30),
			Transfers:        6,
			HasOrdering:      false,
			Tag:              TagCautiousLow,
		}
	default:
		params = Params{
			MaxTransferBytes: fraction(remaining, 0.80),
			MaxSizeBytes:     fraction(remaining, 0.20),
			Transfers:        8,
			HasOrdering:      false,
			Tag:              TagConservative,
		}
	}

	if chunked {
		params.OrderBy = ""
		params.MaxBacklog = 0
		params.HasOrdering = false
	}

	return params
}

func fraction(total uint64, f float64) uint64 {
	return uint64(float64(total) * f)
}

package accounts

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Cache keys. Write operations invalidate InvalidationKeys only; the
// totals-by-year entries are left to expire.
const (
	KeyActive        = "accounts:active"
	KeyInactive      = "accounts:inactive"
	KeyStatusSummary = "status:summary"

	keyAccountPrefix = "account:"
	keyTotalsPrefix  = "totals:by_year:"
)

// Key families used as metric labels.
const (
	familyAccount  = "account"
	familyAccounts = "accounts"
	familyStatus   = "status"
	familyTotals   = "totals"
)

// KeyByTaxID is the key of the cached summary for a tax id.
func KeyByTaxID(taxID string) string {
	return keyAccountPrefix + taxID
}

// KeyTotalsByYear derives the key from the sorted, de-duplicated years so
// that any permutation of the same years shares one entry.
func KeyTotalsByYear(years []int) string {
	sorted := normalizeYears(years)
	parts := make([]string, len(sorted))
	for i, y := range sorted {
		parts[i] = strconv.Itoa(y)
	}
	return keyTotalsPrefix + strings.Join(parts, ",")
}

// InvalidationKeys lists the keys dropped after any write to the account with
// the given tax id.
func InvalidationKeys(taxID string) []string {
	return []string{KeyByTaxID(taxID), KeyStatusSummary, KeyActive, KeyInactive}
}

// TTLUntilEndOfDay returns the time left until 23:59:59 UTC of now's day.
// It never returns less than a second so an entry written in the last second
// of the day still expires.
func TTLUntilEndOfDay(now time.Time) time.Duration {
	now = now.UTC()
	endOfDay := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, time.UTC)
	ttl := endOfDay.Sub(now)
	if ttl < time.Second {
		return time.Second
	}
	return ttl
}

func normalizeYears(years []int) []int {
	sorted := slices.Clone(years)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

func keyFamily(key string) string {
	switch {
	case strings.HasPrefix(key, keyAccountPrefix):
		return familyAccount
	case strings.HasPrefix(key, keyTotalsPrefix):
		return familyTotals
	case key == KeyStatusSummary:
		return familyStatus
	default:
		return familyAccounts
	}
}

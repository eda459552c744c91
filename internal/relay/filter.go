package relay

import "github.com/pixelfall/tagrelay/internal/history"

// SkipReason classifies why the filter rejected a candidate.
type SkipReason string

// Rejection reasons, in evaluation order.
const (
	SkipNone           SkipReason = ""
	SkipMissingMainTag SkipReason = "missing_main_tag"
	SkipManga          SkipReason = "manga"
	SkipR18            SkipReason = "r18"
	SkipR18G           SkipReason = "r18g"
	SkipNoLargeVariant SkipReason = "no_large_variant"
	SkipNoFallback     SkipReason = "no_fallback_variant"
	SkipSeen           SkipReason = "seen"
)

// Accepts decides whether a candidate is eligible for posting. It is a pure
// predicate: deterministic for identical inputs and free of side effects.
// When the candidate is rejected the returned reason names the first rule
// that failed.
func Accepts(c Candidate, policy FilterPolicy, hist *history.Set) (bool, SkipReason) {
	if !c.HasTag(policy.MainTag) {
		return false, SkipMissingMainTag
	}
	if c.IsManga && !policy.AllowManga {
		return false, SkipManga
	}
	if c.Restriction == RestrictionR18 && !policy.AllowR18 {
		return false, SkipR18
	}
	if c.Restriction == RestrictionR18G && !policy.AllowR18G {
		return false, SkipR18G
	}
	large, ok := c.Variants[VariantLarge]
	if !ok {
		return false, SkipNoLargeVariant
	}
	if _, ok := c.Variants[policy.FallbackVariant]; !ok {
		return false, SkipNoFallback
	}
	if hist.Contains(large) {
		return false, SkipSeen
	}
	return true, SkipNone
}

package risk

import (
	"strconv"
	"strings"
)

// Tier is the discretized churn-risk category stored on a customer.
type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

func (t Tier) String() string { return string(t) }

func (t Tier) Valid() bool {
	return t == TierLow || t == TierMedium || t == TierHigh
}

// Canonical tier bounds. Every place that derives a tier from a probability
// must go through TierOf; these are not meant to be read directly.
const (
	mediumBound = 0.33
	highBound   = 0.66
)

// TierOf maps a probability to its tier using half-open bounds:
// [0, 0.33) -> Low, [0.33, 0.66) -> Medium, [0.66, 1] -> High.
// The input is clamped first, so TierOf is total over float64.
func TierOf(p float64) Tier {
	p = Clamp(p)
	switch {
	case p < mediumBound:
		return TierLow
	case p < highBound:
		return TierMedium
	default:
		return TierHigh
	}
}

// Clamp forces a parsed probability into [0, 1].
func Clamp(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ParseTier matches the literal tier words, case- and diacritic-insensitive.
// Both the Spanish words used by the import format (bajo/medio/alto) and the
// English ones are accepted.
func ParseTier(s string) (Tier, bool) {
	switch normalize(s) {
	case "bajo", "low":
		return TierLow, true
	case "medio", "medium":
		return TierMedium, true
	case "alto", "high":
		return TierHigh, true
	}
	return TierLow, false
}

var accents = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

func normalize(s string) string {
	return accents.Replace(strings.ToLower(strings.TrimSpace(s)))
}

// Encoded is the canonical (probability, tier) pair produced from one raw
// risk value. Trusted is false when the input carried no usable signal and
// the safe default was used; import validation reports those rows as
// low-confidence instead of rejecting them.
type Encoded struct {
	Probability float64
	Tier        Tier
	Trusted     bool
}

// Encode converts a raw risk representation into the canonical pair. It is
// total: any input yields a valid result, never an error.
//
// Accepted shapes:
//   - a tier word ("Bajo", "alto", "medium", ...): probability stays 0.0
//     because a textual tier carries no probability of its own;
//   - a number > 1: treated as a percentage and divided by 100;
//   - a number <= 1: treated as a fraction directly;
//   - anything else (empty included): probability 0.0, tier Low, untrusted.
func Encode(raw string) Encoded {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Encoded{Probability: 0, Tier: TierLow, Trusted: false}
	}

	if t, ok := ParseTier(s); ok {
		return Encoded{Probability: 0, Tier: t, Trusted: true}
	}

	// Spreadsheets localized to es frequently use a comma decimal separator.
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return Encoded{Probability: 0, Tier: TierLow, Trusted: false}
	}

	if v > 1 {
		v = v / 100.0
	}
	v = Clamp(v)

	return Encoded{Probability: v, Tier: TierOf(v), Trusted: true}
}

package rbac

import (
	"strings"
	"unicode"
)

// MatchTier records which heuristic found a template. Lower is stronger.
type MatchTier int

const (
	TierNone MatchTier = iota
	TierExact
	TierSubstring
	TierCleanedExact
	TierCleanedSubstring
	TierWordOverlap
)

func (t MatchTier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSubstring:
		return "substring"
	case TierCleanedExact:
		return "cleaned_exact"
	case TierCleanedSubstring:
		return "cleaned_substring"
	case TierWordOverlap:
		return "word_overlap"
	default:
		return "none"
	}
}

// minWordOverlap is the share of the smaller word set that must overlap
const minWordOverlap = 0.6

// MatchTemplate picks the template name that best resembles roleName.
// It is a display heuristic (badge colour/icon), never an authorization input.
// Tiers are tried in order across all names; inside a tier the first name wins.
func MatchTemplate(roleName string, names []string) (int, MatchTier, bool) {
	role := strings.ToLower(strings.TrimSpace(roleName))
	if role == "" || len(names) == 0 {
		return -1, TierNone, false
	}

	lowered := make([]string, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(strings.TrimSpace(n))
	}

	for i, n := range lowered {
		if n != "" && n == role {
			return i, TierExact, true
		}
	}
	for i, n := range lowered {
		if n != "" && (strings.Contains(role, n) || strings.Contains(n, role)) {
			return i, TierSubstring, true
		}
	}

	cleanRole := cleanName(role)
	cleaned := make([]string, len(names))
	for i, n := range lowered {
		cleaned[i] = cleanName(n)
	}
	if cleanRole != "" {
		for i, n := range cleaned {
			if n != "" && n == cleanRole {
				return i, TierCleanedExact, true
			}
		}
		for i, n := range cleaned {
			if n != "" && (strings.Contains(cleanRole, n) || strings.Contains(n, cleanRole)) {
				return i, TierCleanedSubstring, true
			}
		}
	}

	roleWords := significantWords(cleanRole)
	if len(roleWords) == 0 {
		return -1, TierNone, false
	}
	for i, n := range cleaned {
		if wordOverlap(roleWords, significantWords(n)) {
			return i, TierWordOverlap, true
		}
	}
	return -1, TierNone, false
}

// cleanName strips digits and punctuation, lowercases and collapses whitespace
func cleanName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func significantWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(s) {
		if len([]rune(w)) > 2 {
			out = append(out, w)
		}
	}
	return out
}

func wordOverlap(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	matched := 0
	for _, w := range small {
		for _, o := range large {
			if strings.Contains(w, o) || strings.Contains(o, w) {
				matched++
				break
			}
		}
	}
	return float64(matched) >= minWordOverlap*float64(len(small))
}

package consensus

import (
	"regexp"
	"strings"
)

// verbRe is the fixed verb lexicon spec §4.C.5.b names for key-fact
// sentence detection, adapted from the teacher's fact-check sentence
// heuristics (originally keyed on citation density, here on verb presence).
var verbRe = regexp.MustCompile(`(?i)\b(is|are|was|were|costs?|opens?|closes?|starts?|launched)\b`)

// splitSentences splits s into sentences of length 10..150 characters that
// contain at least one verb from the fixed lexicon — the candidate
// key-fact sentences for cross-snippet agreement.
func splitSentences(s string) []string {
	sep := func(r rune) bool {
		return r == '.' || r == '\n' || r == '?' || r == '!'
	}
	raw := strings.FieldsFunc(s, sep)
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		p := strings.TrimSpace(part)
		if len(p) < 10 || len(p) > 150 {
			continue
		}
		if !verbRe.MatchString(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// wordSet returns the set of >3-character words in s, lower-cased and
// stripped of surrounding punctuation.
func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if len(f) > 3 {
			set[f] = struct{}{}
		}
	}
	return set
}

// overlapRatio returns |a ∩ b| / |smaller of a,b|.
func overlapRatio(a, b map[string]struct{}) float64 {
	small, big := a, b
	if len(b) < len(a) {
		small, big = b, a
	}
	if len(small) == 0 {
		return 0
	}
	hits := 0
	for w := range small {
		if _, ok := big[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(small))
}

// jaccard returns |a ∩ b| / |a ∪ b|.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	union := make(map[string]struct{}, len(a)+len(b))
	for w := range a {
		union[w] = struct{}{}
	}
	for w := range b {
		union[w] = struct{}{}
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	if len(union) == 0 {
		return 0
	}
	return float64(inter) / float64(len(union))
}

// keyFactMatch finds the first primary key-fact sentence whose word set
// overlaps a secondary key-fact sentence by at least 60% of the smaller
// set's size, per spec §4.C.5.b.
func keyFactMatch(primarySnippets, secondarySnippets []string) (string, bool) {
	var secondarySets []map[string]struct{}
	for _, ss := range secondarySnippets {
		for _, sent := range splitSentences(ss) {
			secondarySets = append(secondarySets, wordSet(sent))
		}
	}
	for _, ps := range primarySnippets {
		for _, psent := range splitSentences(ps) {
			pset := wordSet(psent)
			for _, sset := range secondarySets {
				if overlapRatio(pset, sset) >= 0.6 {
					return psent, true
				}
			}
		}
	}
	return "", false
}

package consensus

import "regexp"

// tokenPatterns is the fixed regex set spec §4.C.5.a names: price, percent,
// time, and date tokens, plus a generic number pattern as the final,
// broadest catch-all.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\$\d+(?:\.\d+)?`),
	regexp.MustCompile(`\d+(?:\.\d+)?%`),
	regexp.MustCompile(`\d{1,2}:\d{2}\s*(?:am|pm|AM|PM)?`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`),
	regexp.MustCompile(`\b\d+(?:,\d{3})*(?:\.\d+)?\b`),
}

// extractTokens runs the fixed pattern set over s and returns the distinct
// matches in first-seen order.
func extractTokens(s string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, re := range tokenPatterns {
		for _, m := range re.FindAllString(s, -1) {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// tokenSet extracts tokens from every snippet in bag and unions them into a
// set.
func tokenSet(bag []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, s := range bag {
		for _, t := range extractTokens(s) {
			set[t] = struct{}{}
		}
	}
	return set
}

// intersect returns the set intersection of a and b.
func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

package aggregate

import (
	"net/url"
	"strings"

	"github.com/clawdia-sh/research-core/internal/search"
)

// MergeAndNormalize merges results across every search round run so far
// (spec §4.J treats each follow-up round's SERP as additive, not
// replacing), canonicalizes URLs, trims obvious tracking parameters, and
// de-duplicates exact URLs. When the same URL resurfaces in a later round
// with a non-empty snippet where the earlier occurrence had none, the
// richer snippet is kept: internal/select uses snippet length to order
// candidates, so a blank snippet from an earlier, thinner SERP row shouldn't
// shadow a later round's fuller one.
func MergeAndNormalize(groups [][]search.Result) []search.Result {
	seen := map[string]int{}
	out := make([]search.Result, 0, 64)
	for _, g := range groups {
		for _, r := range g {
			if r.URL == "" {
				continue
			}
			u, err := url.Parse(r.URL)
			if err != nil {
				continue
			}
			normalizeURL(u)
			key := u.String()
			r.URL = key
			if idx, ok := seen[key]; ok {
				if out[idx].Snippet == "" && r.Snippet != "" {
					out[idx].Snippet = r.Snippet
				}
				continue
			}
			seen[key] = len(out)
			out = append(out, r)
		}
	}
	return out
}

func normalizeURL(u *url.URL) {
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	q := u.Query()
	// Remove common tracking params
	for _, p := range []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "utm_id", "gclid", "fbclid"} {
		q.Del(p)
	}
	u.RawQuery = q.Encode()
}

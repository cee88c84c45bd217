// Package followup implements the domain-aware follow-up query builder and
// shared query sanitizer of spec §4.I. The sanitizer is also the one every
// planner-generated query passes through (spec §4.H).
package followup

import (
	"regexp"
	"strings"

	"github.com/clawdia-sh/research-core/internal/router"
)

var domainKeywords = map[router.Domain][]string{
	router.DomainSoftware:        {"security", "permissions", "threat model", "vulnerability", "sandbox"},
	router.DomainPhysicalProcess: {"safety", "haccp", "contamination", "sanitation", "worker safety", "throughput"},
	router.DomainGeneral:         {"overview", "guidance", "key facts"},
}

var domainSuffix = map[router.Domain]string{
	router.DomainSoftware:        "security considerations",
	router.DomainPhysicalProcess: "safety and compliance",
	router.DomainGeneral:         "overview",
}

var tokenizeRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// bannedModifiers are stripped from every query unless domain is SOFTWARE,
// per spec §4.I step 3.
var bannedModifiers = []string{"cve", "sandbox", "oauth", "token", "webhook", "prompt injection"}

// nonWordPunctRe matches punctuation to drop during sanitization, keeping
// the explicitly allowed set -:' and . .
var nonWordPunctRe = regexp.MustCompile(`[^a-z0-9\s\-:'.]+`)

// DeriveCriterionKeywords tokenizes criterion on non-alphanumerics, keeps
// tokens longer than 3 characters, and unions them with the fixed domain
// keyword list.
func DeriveCriterionKeywords(domain router.Domain, criterion string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, tok := range tokenizeRe.FindAllString(strings.ToLower(criterion), -1) {
		if len(tok) <= 3 {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	for _, kw := range domainKeywords[domain] {
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// BuildFollowUpQueries builds, sanitizes, deduplicates, and caps follow-up
// queries for the given missing criteria, per spec §4.I.
func BuildFollowUpQueries(domain router.Domain, missingCriteria []string, existingHosts []string, limit int) []string {
	var raw []string
	for _, criterion := range missingCriteria {
		keywords := DeriveCriterionKeywords(domain, criterion)
		suffix := domainSuffix[domain]
		q := strings.TrimSpace(criterion + " " + strings.Join(keywords, " ") + " " + suffix)
		raw = append(raw, q)
	}

	// Host-monoculture diversification: when exactly one existing host is
	// known, append -site:<host> for every known host to every query.
	if len(existingHosts) == 1 {
		host := existingHosts[0]
		for i, q := range raw {
			raw[i] = q + " -site:" + host
		}
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(raw))
	for _, q := range raw {
		s := Sanitize(q, domain)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Sanitize lower-cases, collapses whitespace, drops non-word punctuation
// (keeping -, :, ', and . verbatim), and removes banned modifier words
// unless domain is SOFTWARE.
func Sanitize(query string, domain router.Domain) string {
	s := strings.ToLower(query)
	s = nonWordPunctRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")

	if domain != router.DomainSoftware {
		s = stripBannedModifiers(s)
	}
	return strings.TrimSpace(s)
}

func stripBannedModifiers(s string) string {
	for _, banned := range bannedModifiers {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(banned) + `\b`)
		s = re.ReplaceAllString(s, "")
	}
	return strings.Join(strings.Fields(s), " ")
}

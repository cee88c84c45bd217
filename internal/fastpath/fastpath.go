// Package fastpath implements the safety-validated argv-only execution
// gate of spec §4.G: a static registry of known external tools, host-match
// lookup, and a six-check validator that either returns an executable argv
// or refuses, with no shell-string escape hatch.
package fastpath

import (
	"fmt"
	"net/url"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

// Entry describes one fast-path tool.
type Entry struct {
	ID            string
	HostPatterns  []*regexp.Regexp
	ArgvTemplate  []string
	CheckCommand  string
}

// Config carries the per-process settings validate_and_build checks
// against: the whitelisted output roots and whether the unrestricted
// override is in effect (spec §4.G step 3, step 5).
type Config struct {
	WhitelistedRoots []string
	Unrestricted     bool
}

// Params supplies the values substituted into an entry's argv template.
type Params struct {
	URL       string
	OutputDir string
}

// Plan is the validated, ready-to-run command.
type Plan struct {
	Argv      []string
	TimeoutMS int
}

// shellDangerousChars is the defense-in-depth denylist of spec §4.G step 2,
// checked even though execution is always argv-based.
const shellDangerousChars = `;&|` + "`" + `$(){}[]!#<>\'"`

var forbiddenPrivilegeCommands = map[string]struct{}{
	"sudo": {}, "su": {}, "pkexec": {}, "doas": {},
}

// defaultTimeoutMS is the timeout every validated Plan carries; neither
// Entry nor Config has a timeout setting of its own.
const defaultTimeoutMS = 60_000

// availabilityProbe is overridable in tests; it reports whether name is on
// PATH, mirroring `which`.
var availabilityProbe = func(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// Registry is the static set of known fast-path tools, seeded at startup.
type Registry struct {
	entries   []Entry
	available map[string]bool
}

// NewRegistry builds a registry from entries and probes each entry's
// check command for availability.
func NewRegistry(entries []Entry) *Registry {
	r := &Registry{entries: entries, available: map[string]bool{}}
	for _, e := range entries {
		r.available[e.ID] = availabilityProbe(e.CheckCommand)
	}
	return r
}

// DefaultEntries returns the two seeded fast-path tools: yt-dlp for video
// URLs, pandoc for document conversion.
func DefaultEntries() []Entry {
	return []Entry{
		{
			ID: "yt-dlp",
			HostPatterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)(^|\.)youtube\.com$`),
				regexp.MustCompile(`(?i)(^|\.)youtu\.be$`),
				regexp.MustCompile(`(?i)(^|\.)vimeo\.com$`),
			},
			ArgvTemplate: []string{"yt-dlp", "-o", "{outputDir}/%(title)s.%(ext)s", "{url}"},
			CheckCommand: "yt-dlp",
		},
		{
			ID: "pandoc",
			HostPatterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i).*`),
			},
			ArgvTemplate: []string{"pandoc", "{url}", "-o", "{outputDir}/converted.pdf"},
			CheckCommand: "pandoc",
		},
	}
}

// FindEntry returns the first entry whose host patterns match rawURL and
// whose tool is installed, preferring preferredID when it qualifies.
func (r *Registry) FindEntry(rawURL string, preferredID string) (Entry, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Entry{}, false
	}
	host := u.Hostname()

	if preferredID != "" {
		for _, e := range r.entries {
			if e.ID == preferredID && r.available[e.ID] && hostMatchesAny(host, e.HostPatterns) {
				return e, true
			}
		}
	}
	for _, e := range r.entries {
		if r.available[e.ID] && hostMatchesAny(host, e.HostPatterns) {
			return e, true
		}
	}
	return Entry{}, false
}

func hostMatchesAny(host string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(host) {
			return true
		}
	}
	return false
}

// ValidateAndBuild enforces the six ordered checks of spec §4.G and
// returns the ready-to-run argv plan, or ok=false if any check fails.
func ValidateAndBuild(entry Entry, params Params, cfg Config) (Plan, bool) {
	reject := func(reason string) (Plan, bool) {
		log.Debug().Str("entry", entry.ID).Str("reason", reason).Msg("fast-path validation rejected")
		return Plan{}, false
	}

	// 1. URL must be HTTP(S).
	u, err := url.Parse(params.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return reject("non-http(s) scheme")
	}

	// 2. URL contains no shell-dangerous characters.
	if strings.ContainsAny(params.URL, shellDangerousChars) {
		return reject("shell-dangerous character in URL")
	}

	// 3. Output directory resolves within a whitelisted root, unless
	// unrestricted.
	if !cfg.Unrestricted {
		if !withinWhitelistedRoot(params.OutputDir, cfg.WhitelistedRoots) {
			return reject("output dir outside whitelisted roots")
		}
	}

	// 4. Template expansion substitutes {url} and {outputDir} only.
	argv, ok := expandTemplate(entry.ArgvTemplate, params)
	if !ok {
		return reject("template references an unsupported placeholder")
	}

	// 5. No expanded argv token equals a forbidden privilege command,
	// unless unrestricted.
	if !cfg.Unrestricted {
		for _, tok := range argv {
			if _, forbidden := forbiddenPrivilegeCommands[tok]; forbidden {
				return reject("forbidden privilege command in argv")
			}
		}
	}

	// 6. Tool still reports available.
	if !availabilityProbe(entry.CheckCommand) {
		return reject("tool no longer available on PATH")
	}

	return Plan{Argv: argv, TimeoutMS: defaultTimeoutMS}, true
}

var placeholderRe = regexp.MustCompile(`\{[a-zA-Z]+\}`)

// expandTemplate substitutes {url} and {outputDir} into template tokens,
// rejecting any template token that references another placeholder.
func expandTemplate(template []string, params Params) ([]string, bool) {
	out := make([]string, 0, len(template))
	for _, tok := range template {
		matches := placeholderRe.FindAllString(tok, -1)
		expanded := tok
		for _, m := range matches {
			switch m {
			case "{url}":
				expanded = strings.ReplaceAll(expanded, "{url}", params.URL)
			case "{outputDir}":
				expanded = strings.ReplaceAll(expanded, "{outputDir}", params.OutputDir)
			default:
				return nil, false
			}
		}
		out = append(out, expanded)
	}
	return out, true
}

func withinWhitelistedRoot(dir string, roots []string) bool {
	if strings.TrimSpace(dir) == "" {
		return false
	}
	clean := filepath.Clean(dir)
	for _, root := range roots {
		root = filepath.Clean(root)
		rel, err := filepath.Rel(root, clean)
		if err != nil {
			continue
		}
		if rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel)) {
			return true
		}
	}
	return false
}

// String renders an Entry for diagnostics.
func (e Entry) String() string {
	return fmt.Sprintf("fastpath.Entry{id=%s}", e.ID)
}

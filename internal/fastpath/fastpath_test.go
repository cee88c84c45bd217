package fastpath

import "testing"

func withStubProbe(t *testing.T, available map[string]bool) {
	t.Helper()
	orig := availabilityProbe
	availabilityProbe = func(name string) bool { return available[name] }
	t.Cleanup(func() { availabilityProbe = orig })
}

func TestFindEntry_MatchesHostAndAvailability(t *testing.T) {
	withStubProbe(t, map[string]bool{"yt-dlp": true, "pandoc": true})
	r := NewRegistry(DefaultEntries())

	e, ok := r.FindEntry("https://www.youtube.com/watch?v=abc", "")
	if !ok || e.ID != "yt-dlp" {
		t.Fatalf("expected yt-dlp entry, got %v ok=%v", e, ok)
	}
}

func TestFindEntry_SkipsUnavailableTool(t *testing.T) {
	withStubProbe(t, map[string]bool{"yt-dlp": false, "pandoc": true})
	r := NewRegistry(DefaultEntries())

	_, ok := r.FindEntry("https://www.youtube.com/watch?v=abc", "")
	if ok {
		t.Fatalf("expected no match when yt-dlp is unavailable")
	}
}

func TestValidateAndBuild_RejectsNonHTTPScheme(t *testing.T) {
	withStubProbe(t, map[string]bool{"yt-dlp": true})
	entry := DefaultEntries()[0]
	cfg := Config{WhitelistedRoots: []string{"/home/user/Downloads"}}
	params := Params{URL: "ftp://youtube.com/video", OutputDir: "/home/user/Downloads"}

	if _, ok := ValidateAndBuild(entry, params, cfg); ok {
		t.Fatalf("expected ftp scheme to be rejected")
	}
}

func TestValidateAndBuild_RejectsShellDangerousCharacters(t *testing.T) {
	withStubProbe(t, map[string]bool{"yt-dlp": true})
	entry := DefaultEntries()[0]
	cfg := Config{WhitelistedRoots: []string{"/home/user/Downloads"}}
	params := Params{URL: "https://youtube.com/watch?v=abc;rm -rf /", OutputDir: "/home/user/Downloads"}

	if _, ok := ValidateAndBuild(entry, params, cfg); ok {
		t.Fatalf("expected shell-dangerous character to be rejected")
	}
}

func TestValidateAndBuild_RejectsOutputDirOutsideWhitelist(t *testing.T) {
	withStubProbe(t, map[string]bool{"yt-dlp": true})
	entry := DefaultEntries()[0]
	cfg := Config{WhitelistedRoots: []string{"/home/user/Downloads"}}
	params := Params{URL: "https://youtube.com/watch?v=abc", OutputDir: "/etc"}

	if _, ok := ValidateAndBuild(entry, params, cfg); ok {
		t.Fatalf("expected output dir outside whitelist to be rejected")
	}
}

func TestValidateAndBuild_AllowsOutputDirOutsideWhitelistWhenUnrestricted(t *testing.T) {
	withStubProbe(t, map[string]bool{"yt-dlp": true})
	entry := DefaultEntries()[0]
	cfg := Config{Unrestricted: true}
	params := Params{URL: "https://youtube.com/watch?v=abc", OutputDir: "/etc"}

	if _, ok := ValidateAndBuild(entry, params, cfg); !ok {
		t.Fatalf("expected unrestricted mode to bypass the whitelist check")
	}
}

func TestValidateAndBuild_RejectsForbiddenPrivilegeToken(t *testing.T) {
	withStubProbe(t, map[string]bool{"custom": true})
	entry := Entry{
		ID:           "custom",
		ArgvTemplate: []string{"sudo", "{url}"},
		CheckCommand: "custom",
	}
	cfg := Config{WhitelistedRoots: []string{"/tmp"}}
	params := Params{URL: "https://example.com/a", OutputDir: "/tmp"}

	if _, ok := ValidateAndBuild(entry, params, cfg); ok {
		t.Fatalf("expected forbidden privilege token to be rejected")
	}
}

func TestValidateAndBuild_RejectsUnknownPlaceholder(t *testing.T) {
	withStubProbe(t, map[string]bool{"custom": true})
	entry := Entry{
		ID:           "custom",
		ArgvTemplate: []string{"tool", "{evil}"},
		CheckCommand: "custom",
	}
	cfg := Config{WhitelistedRoots: []string{"/tmp"}}
	params := Params{URL: "https://example.com/a", OutputDir: "/tmp"}

	if _, ok := ValidateAndBuild(entry, params, cfg); ok {
		t.Fatalf("expected unknown placeholder to be rejected")
	}
}

func TestValidateAndBuild_RejectsWhenToolBecomesUnavailable(t *testing.T) {
	withStubProbe(t, map[string]bool{"yt-dlp": false})
	entry := DefaultEntries()[0]
	cfg := Config{WhitelistedRoots: []string{"/home/user/Downloads"}}
	params := Params{URL: "https://youtube.com/watch?v=abc", OutputDir: "/home/user/Downloads"}

	if _, ok := ValidateAndBuild(entry, params, cfg); ok {
		t.Fatalf("expected unavailable tool to be rejected at the final check")
	}
}

func TestValidateAndBuild_SucceedsAndExpandsPlaceholders(t *testing.T) {
	withStubProbe(t, map[string]bool{"yt-dlp": true})
	entry := DefaultEntries()[0]
	cfg := Config{WhitelistedRoots: []string{"/home/user/Downloads"}}
	params := Params{URL: "https://youtube.com/watch?v=abc", OutputDir: "/home/user/Downloads"}

	plan, ok := ValidateAndBuild(entry, params, cfg)
	if !ok {
		t.Fatalf("expected validation to succeed")
	}
	if plan.Argv[0] != "yt-dlp" {
		t.Fatalf("expected argv[0]=yt-dlp, got %v", plan.Argv)
	}
	found := false
	for _, tok := range plan.Argv {
		if tok == params.URL {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected url to be substituted into argv, got %v", plan.Argv)
	}
}

// Package settings provides the key-value settings capability the research
// core consumes but does not own; the Electron host supplies the concrete
// store in production, an environment-variable provider covers local/dev use.
package settings

import (
	"os"
	"strings"
)

// Provider resolves a named setting. Absence is signalled by ok=false, not an
// empty string, so a provider can distinguish "unset" from "set empty".
type Provider interface {
	Get(key string) (value string, ok bool)
}

// Known setting keys, per spec §6.
const (
	KeyAnthropicAPIKey = "anthropicApiKey"
	KeySelectedModel   = "selectedModel"
	KeySerperAPIKey    = "serper_api_key"
	KeySerpAPIKey      = "serpapi_api_key"
	KeyBingAPIKey      = "bing_api_key"
	KeySearchBackend   = "search_backend"
	KeyAutonomyMode    = "autonomyMode"
)

// Search backend values for KeySearchBackend.
const (
	BackendSerper    = "serper"
	BackendSerpAPI   = "serpapi"
	BackendBing      = "bing"
	BackendPlaywright = "playwright"
)

// Autonomy mode values for KeyAutonomyMode.
const (
	AutonomyRestricted   = "restricted"
	AutonomyUnrestricted = "unrestricted"
)

// EnvProvider maps settings keys onto environment variables using a fixed
// translation table, falling back to an upper-snake-case derivation of the
// key for anything not explicitly listed.
type EnvProvider struct {
	// Overrides, when set, takes precedence over the environment — tests use
	// this to avoid mutating process-global state.
	Overrides map[string]string
}

var envNames = map[string]string{
	KeyAnthropicAPIKey: "ANTHROPIC_API_KEY",
	KeySelectedModel:   "SELECTED_MODEL",
	KeySerperAPIKey:    "SERPER_API_KEY",
	KeySerpAPIKey:      "SERPAPI_API_KEY",
	KeyBingAPIKey:      "BING_API_KEY",
	KeySearchBackend:   "SEARCH_BACKEND",
	KeyAutonomyMode:    "AUTONOMY_MODE",
}

func (p *EnvProvider) Get(key string) (string, bool) {
	if p.Overrides != nil {
		if v, ok := p.Overrides[key]; ok {
			return v, true
		}
	}
	name, ok := envNames[key]
	if !ok {
		name = strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
	}
	v, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Package config builds the tuned HTTP transport shared by every outbound
// client in the research core (search backends, page fetches, the browser
// pool's HTTP fallback view) and resolves the run-level settings those
// clients need from a settings.Provider.
package config

import (
	"net"
	"net/http"
	"time"

	"github.com/clawdia-sh/research-core/internal/settings"
)

// Transport tuning for a process that holds many concurrent outbound
// connections open against a handful of hosts (search APIs, page fetches).
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 16
	defaultIdleConnTimeout     = 90 * time.Second
	defaultDialTimeout         = 10 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// NewHTTPClient returns an *http.Client with a transport tuned for
// high-concurrency, many-small-requests usage: a larger per-host idle pool
// than http.DefaultTransport, explicit dial/handshake timeouts, and an
// overall request timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// Runtime holds the settings the research core reads at startup, resolved
// once from a settings.Provider.
type Runtime struct {
	AnthropicAPIKey string
	SelectedModel   string
	SearchBackend   string
	AutonomyMode    string

	SerperAPIKey  string
	SerpAPIKey    string
	BingAPIKey    string
}

// LoadRuntime resolves every known setting key from p, leaving fields empty
// when a key is unset. Missing API keys are not an error here — each search
// backend reports errkind.ErrNoKey itself when asked to search without one.
func LoadRuntime(p settings.Provider) Runtime {
	get := func(key string) string {
		v, _ := p.Get(key)
		return v
	}
	r := Runtime{
		AnthropicAPIKey: get(settings.KeyAnthropicAPIKey),
		SelectedModel:   get(settings.KeySelectedModel),
		SearchBackend:   get(settings.KeySearchBackend),
		AutonomyMode:    get(settings.KeyAutonomyMode),
		SerperAPIKey:    get(settings.KeySerperAPIKey),
		SerpAPIKey:      get(settings.KeySerpAPIKey),
		BingAPIKey:      get(settings.KeyBingAPIKey),
	}
	if r.AutonomyMode == "" {
		r.AutonomyMode = settings.AutonomyRestricted
	}
	return r
}

// Unrestricted reports whether the run is permitted the relaxed fastpath
// checks of spec §4.G (no filesystem-root restriction on output dirs).
func (r Runtime) Unrestricted() bool {
	return r.AutonomyMode == settings.AutonomyUnrestricted
}

// Package config holds the validated, already-loaded server configuration.
//
// Parsing a config file or flags into this shape is out of scope for the
// dispatcher core; this package owns the struct, its invariants, and the
// environment-variable loader (FromEnvironment) cmd/server uses for the
// zero-file case.
package config

import (
	"time"

	"github.com/toolbridge/dispatcher/internal/idhash"
)

const minTokenLen = 32

// APISpace is one tenant's isolated API namespace: its own bearer token and
// the set of worker tokens admitted into it.
type APISpace struct {
	Name                string   `json:"name"`
	Description         string   `json:"description,omitempty"`
	BearerToken         string   `json:"bearerToken"`
	AllowedClientTokens []string `json:"allowedClientTokens"`
}

// HTTPConfig configures the listener and the public URL advertised in
// generated descriptions.
type HTTPConfig struct {
	Port      int    `json:"port"`
	Host      string `json:"host"`
	PublicURL string `json:"publicUrl,omitempty"`
}

// AdminConfig configures the admin cookie flow. AdminToken may be empty at
// load time; cmd/server generates and logs a random one when absent.
type AdminConfig struct {
	AdminToken string `json:"adminToken,omitempty"`
}

// LoggingConfig configures the zerolog root logger.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Mode selects which half of the wider toolbridge binary runs; only
// ModeServer options are modeled here (ModeClient/ModeCombo wire the
// out-of-scope worker subprocess manager).
type Mode string

const (
	ModeServer Mode = "server"
	ModeClient Mode = "client"
	ModeCombo  Mode = "combo"
)

// Config is the dispatcher's full, validated configuration surface.
type Config struct {
	Mode      Mode          `json:"mode"`
	HTTP      HTTPConfig    `json:"http"`
	APISpaces []APISpace    `json:"apiSpaces"`
	Admin     AdminConfig   `json:"admin"`
	Logging   LoggingConfig `json:"logging"`

	// HandshakeWindow bounds how long a session may sit in the Opened
	// state waiting for its first register frame.
	HandshakeWindow time.Duration `json:"-"`
	// InvocationTimeout is the default per-call deadline for tool invocations.
	InvocationTimeout time.Duration `json:"-"`
	// PingInterval/PongGrace drive the session keep-alive loop.
	PingInterval time.Duration `json:"-"`
	PongGrace    time.Duration `json:"-"`
	// ShutdownGrace bounds how long in-flight handlers get to finish
	// during a graceful stop.
	ShutdownGrace time.Duration `json:"-"`
}

// Validate checks every configuration invariant at startup: non-empty
// tenants, unique and sufficiently long tokens, valid port/log settings,
// and no tenant-hash collisions. A non-nil error here is always a
// ConfigError: the caller must exit non-zero rather than start serving.
func (c *Config) Validate() error {
	if len(c.APISpaces) == 0 {
		return ErrNoAPISpaces
	}

	seen := make(map[string]struct{}, len(c.APISpaces)+1)
	for i := range c.APISpaces {
		sp := &c.APISpaces[i]
		if sp.Name == "" {
			return ErrAPISpaceName
		}
		if len(sp.BearerToken) < minTokenLen {
			return ErrAPISpaceToken
		}
		if len(sp.AllowedClientTokens) == 0 {
			return ErrAPISpaceNoClients
		}
		for _, t := range sp.AllowedClientTokens {
			if len(t) < minTokenLen {
				return ErrAPISpaceClientToken
			}
		}
		if _, dup := seen[sp.BearerToken]; dup {
			return ErrDuplicateToken
		}
		seen[sp.BearerToken] = struct{}{}
	}

	if c.Admin.AdminToken != "" {
		if len(c.Admin.AdminToken) < minTokenLen {
			return ErrAdminTokenShort
		}
		if _, dup := seen[c.Admin.AdminToken]; dup {
			return ErrDuplicateToken
		}
		seen[c.Admin.AdminToken] = struct{}{}
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return ErrInvalidPort
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return ErrInvalidLogFormat
	}

	return c.validateTenantHashes()
}

// validateTenantHashes aborts startup on a token-hash collision between any
// two configured tenants.
func (c *Config) validateTenantHashes() error {
	hashes := make(map[string]struct{}, len(c.APISpaces))
	for i := range c.APISpaces {
		h := idhash.TenantHash(c.APISpaces[i].BearerToken)
		if _, dup := hashes[h]; dup {
			return ErrTenantHashCollision
		}
		hashes[h] = struct{}{}
	}
	return nil
}

// DefaultTimings fills in the durations the spec fixes (30s invocation
// timeout, 30s ping interval, 5s pong grace, 10s handshake window, ~2s
// shutdown grace) when the caller leaves them zero.
func (c *Config) DefaultTimings() {
	if c.HandshakeWindow == 0 {
		c.HandshakeWindow = 10 * time.Second
	}
	if c.InvocationTimeout == 0 {
		c.InvocationTimeout = 30 * time.Second
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PongGrace == 0 {
		c.PongGrace = 5 * time.Second
	}
	if c.ShutdownGrace == 0 {
		c.ShutdownGrace = 2 * time.Second
	}
}

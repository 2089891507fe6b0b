package config

import "errors"

var (
	// ErrNoAPISpaces indicates the server was configured without any tenants.
	ErrNoAPISpaces = errors.New("server.apiSpaces must contain at least one entry")

	// ErrAPISpaceName indicates an apiSpace entry is missing its name.
	ErrAPISpaceName = errors.New("apiSpace name is required")

	// ErrAPISpaceToken indicates an apiSpace's bearer token is missing or too short.
	ErrAPISpaceToken = errors.New("apiSpace bearerToken must be at least 32 characters")

	// ErrAPISpaceNoClients indicates an apiSpace admits zero worker tokens.
	ErrAPISpaceNoClients = errors.New("apiSpace allowedClientTokens must contain at least one entry")

	// ErrAPISpaceClientToken indicates a worker token is too short.
	ErrAPISpaceClientToken = errors.New("apiSpace allowedClientTokens entries must be at least 32 characters")

	// ErrDuplicateToken indicates a bearer token is reused across tenants or the admin token.
	ErrDuplicateToken = errors.New("bearer tokens must be unique across tenants and the admin token")

	// ErrTenantHashCollision indicates two tenants hash to the same public token_hash prefix.
	ErrTenantHashCollision = errors.New("tenant token_hash collision across configured tenants")

	// ErrAdminTokenShort indicates an explicitly configured admin token is too short.
	ErrAdminTokenShort = errors.New("server.admin.adminToken must be at least 32 characters")

	// ErrInvalidPort indicates the configured HTTP port is out of range.
	ErrInvalidPort = errors.New("server.http.port must be between 1 and 65535")

	// ErrInvalidLogLevel indicates an unrecognized logging level.
	ErrInvalidLogLevel = errors.New("server.logging.level must be one of debug, info, warn, error")

	// ErrInvalidLogFormat indicates an unrecognized logging format.
	ErrInvalidLogFormat = errors.New("server.logging.format must be one of text, json")
)

package config

import "errors"

var (
	// ErrMissingDatabaseURL indicates that no database connection string was
	// configured.
	ErrMissingDatabaseURL = errors.New("databaseUrl is required in configuration")

	// ErrHarmonizationWindowOutOfRange indicates the configured harmonization
	// window falls outside the 1-10s range the burst buffer supports.
	ErrHarmonizationWindowOutOfRange = errors.New("harmonizationWindow must be between 1s and 10s")

	// ErrInsecureJWTSecret indicates the HS256 dev-mode secret is being used
	// outside of dev mode.
	ErrInsecureJWTSecret = errors.New("jwtHs256Secret must be set to a non-default value outside dev mode")

	// ErrIncompleteOIDCConfig indicates only one of the JWKS URL / issuer pair
	// was set.
	ErrIncompleteOIDCConfig = errors.New("jwtJwksUrl and jwtIssuer must be set together")

	// ErrConfigFileNotFound indicates the config file was not found.
	ErrConfigFileNotFound = errors.New("configuration file not found")

	// ErrInvalidConfigFormat indicates the config file has invalid JSON.
	ErrInvalidConfigFormat = errors.New("invalid configuration file format")
)

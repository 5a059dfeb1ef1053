// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings.

It loads a [Config] in four layers — built-in default, optional TOML file,
environment variables (via `github.com/caarlos0/env/v11`), then CLI flags
(via `github.com/spf13/pflag`) — each layer only overwriting a field the
one before it actually set, so the effective precedence is
command-line > environment > file > default.

Usage:

	cfg, err := config.Load(os.Args[1:])
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: once loaded, configuration is read-only.
  - DI-Friendly: exposed as sub-configs ([Config.PoolConfig], [Config.TokenConfig])
    passed to core components via constructors.
  - Zero Hidden State: no global variables are used to store config.
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/spf13/pflag"

	"github.com/taibuivan/sqlrest/internal/mssqlpool"
	"github.com/taibuivan/sqlrest/internal/tokenauth"
)

// # Configuration Schema

// Config holds all runtime configuration for the generated REST API server.
type Config struct {
	// Server
	ListenAddr     string   `toml:"listen_addr" env:"LISTEN_ADDR"`
	DefaultSchema  string   `toml:"default_schema" env:"DEFAULT_SCHEMA"`
	AllowedSchemas []string `toml:"allowed_schemas" env:"ALLOWED_SCHEMAS" envSeparator:","`
	LogFormat      string   `toml:"log_format" env:"LOG_FORMAT"`

	// Database coordinates and credentials.
	DBServer                 string `toml:"db_server" env:"DB_SERVER"`
	DBPort                   int    `toml:"db_port" env:"DB_PORT"`
	DBName                   string `toml:"db_name" env:"DB_NAME"`
	DBTrustServerCertificate bool   `toml:"db_trust_server_certificate" env:"DB_TRUST_SERVER_CERTIFICATE"`
	// DBAuthMode is one of "password", "managed_identity", "service_principal".
	DBAuthMode       string `toml:"db_auth_mode" env:"DB_AUTH_MODE"`
	DBUser           string `toml:"db_user" env:"DB_USER"`
	DBPassword       string `toml:"db_password" env:"DB_PASSWORD"`
	DBSPTenantID     string `toml:"db_sp_tenant_id" env:"DB_SP_TENANT_ID"`
	DBSPClientID     string `toml:"db_sp_client_id" env:"DB_SP_CLIENT_ID"`
	DBSPClientSecret string `toml:"db_sp_client_secret" env:"DB_SP_CLIENT_SECRET"`
	PoolSize         int    `toml:"pool_size" env:"POOL_SIZE"`

	// Token verification and role resolution.
	// TokenMode is one of "none", "symmetric", "asymmetric".
	TokenMode          string            `toml:"token_mode" env:"TOKEN_MODE"`
	TokenSecret        string            `toml:"token_secret" env:"TOKEN_SECRET"`
	TokenIssuerURL     string            `toml:"token_issuer_url" env:"TOKEN_ISSUER_URL"`
	TokenAudience      string            `toml:"token_audience" env:"TOKEN_AUDIENCE"`
	TokenRolePath      string            `toml:"token_role_path" env:"TOKEN_ROLE_PATH"`
	TokenRoleTable     map[string]string `toml:"token_role_table"`
	TokenContextClaims []string          `toml:"token_context_claims" env:"TOKEN_CONTEXT_CLAIMS" envSeparator:","`
	TokenAnonRole      string            `toml:"token_anon_role" env:"TOKEN_ANON_ROLE"`

	// Change-feed engine.
	ChangeFeedEnabled    bool          `toml:"changefeed_enabled" env:"CHANGEFEED_ENABLED"`
	ChangeFeedPollPeriod time.Duration `toml:"changefeed_poll_period" env:"CHANGEFEED_POLL_PERIOD"`

	// Observability.
	SlowQueryThreshold time.Duration `toml:"slow_query_threshold" env:"SLOW_QUERY_THRESHOLD"`
	TelemetryEndpoint  string        `toml:"telemetry_endpoint" env:"TELEMETRY_ENDPOINT"`
}

// defaults returns the built-in baseline every other layer overlays onto.
func defaults() Config {
	return Config{
		ListenAddr:           ":8080",
		DefaultSchema:        "dbo",
		LogFormat:            "json",
		DBPort:               1433,
		DBAuthMode:           "password",
		PoolSize:             20,
		TokenMode:            "none",
		TokenAnonRole:        "",
		ChangeFeedEnabled:    false,
		ChangeFeedPollPeriod: 2 * time.Second,
		SlowQueryThreshold:   500 * time.Millisecond,
	}
}

// # Configuration Loading

// Load builds a Config by layering, in increasing precedence: the built-in
// default, an optional TOML file (`--config`/`CONFIG_FILE`), environment
// variables, then args (CLI flags). A missing config file is not an error;
// an unparsable one is.
func Load(args []string) (*Config, error) {
	cfg := defaults()

	flags := pflag.NewFlagSet("sqlrest", pflag.ContinueOnError)
	configFile := flags.String("config", os.Getenv("CONFIG_FILE"), "path to a TOML configuration file")

	// Register one flag per field so the command-line layer can override
	// anything the file or environment set. Flags default to the zero
	// value so [pflag.FlagSet.Changed] tells us whether the caller
	// actually passed it, rather than guessing from the value alone.
	listenAddr := flags.String("listen-addr", "", "HTTP listen address, e.g. :8080")
	defaultSchema := flags.String("default-schema", "", "schema assumed for single-segment table paths")
	allowedSchemas := flags.StringSlice("allowed-schemas", nil, "schemas reachable via the REST surface (empty: all)")
	logFormat := flags.String("log-format", "", "log encoding: json or text")
	dbServer := flags.String("db-server", "", "SQL Server host")
	dbPort := flags.Int("db-port", 0, "SQL Server port")
	dbName := flags.String("db-name", "", "database name")
	dbTrustCert := flags.Bool("db-trust-server-certificate", false, "skip TLS certificate verification")
	dbAuthMode := flags.String("db-auth-mode", "", "password, managed_identity, or service_principal")
	dbUser := flags.String("db-user", "", "SQL authentication username")
	dbPassword := flags.String("db-password", "", "SQL authentication password")
	poolSize := flags.Int("pool-size", 0, "maximum concurrent pooled connections")
	tokenMode := flags.String("token-mode", "", "none, symmetric, or asymmetric")
	tokenSecret := flags.String("token-secret", "", "HMAC secret for symmetric token verification")
	tokenIssuerURL := flags.String("token-issuer-url", "", "OIDC issuer for asymmetric token verification")
	tokenAudience := flags.String("token-audience", "", "expected token audience")
	tokenRolePath := flags.String("token-role-path", "", "dotted claim path resolving the database role")
	tokenAnonRole := flags.String("token-anon-role", "", "role granted to unauthenticated requests")
	changeFeedEnabled := flags.Bool("changefeed-enabled", false, "enable the change-feed polling engine")
	changeFeedPollPeriod := flags.Duration("changefeed-poll-period", 0, "change-feed polling interval")
	slowQueryThreshold := flags.Duration("slow-query-threshold", 0, "log statements slower than this")
	telemetryEndpoint := flags.String("telemetry-endpoint", "", "OTLP endpoint for exported telemetry")

	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("config: parsing flags: %w", err)
	}

	if *configFile != "" {
		if _, err := os.Stat(*configFile); err == nil {
			if _, err := toml.DecodeFile(*configFile, &cfg); err != nil {
				return nil, fmt.Errorf("config: decoding %s: %w", *configFile, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: stat %s: %w", *configFile, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}

	overlayFlags(&cfg, flags, overlayValues{
		listenAddr: listenAddr, defaultSchema: defaultSchema, allowedSchemas: allowedSchemas,
		logFormat: logFormat, dbServer: dbServer, dbPort: dbPort, dbName: dbName,
		dbTrustCert: dbTrustCert, dbAuthMode: dbAuthMode, dbUser: dbUser, dbPassword: dbPassword,
		poolSize: poolSize, tokenMode: tokenMode, tokenSecret: tokenSecret, tokenIssuerURL: tokenIssuerURL,
		tokenAudience: tokenAudience, tokenRolePath: tokenRolePath, tokenAnonRole: tokenAnonRole,
		changeFeedEnabled: changeFeedEnabled, changeFeedPollPeriod: changeFeedPollPeriod,
		slowQueryThreshold: slowQueryThreshold, telemetryEndpoint: telemetryEndpoint,
	})

	return &cfg, nil
}

// overlayValues bundles the flag pointers passed to [overlayFlags]; kept as
// a single struct so the constructor call above stays readable.
type overlayValues struct {
	listenAddr, defaultSchema, logFormat                                         *string
	allowedSchemas                                                               *[]string
	dbServer, dbName, dbAuthMode, dbUser, dbPassword                             *string
	dbPort, poolSize                                                             *int
	dbTrustCert, changeFeedEnabled                                               *bool
	tokenMode, tokenSecret, tokenIssuerURL, tokenAudience, tokenRolePath         *string
	tokenAnonRole, telemetryEndpoint                                             *string
	changeFeedPollPeriod, slowQueryThreshold                                     *time.Duration
}

// overlayFlags applies every flag the caller actually passed (per
// [pflag.FlagSet.Changed]) onto cfg, taking final precedence over the file
// and environment layers.
func overlayFlags(cfg *Config, flags *pflag.FlagSet, v overlayValues) {
	set := flags.Changed
	if set("listen-addr") {
		cfg.ListenAddr = *v.listenAddr
	}
	if set("default-schema") {
		cfg.DefaultSchema = *v.defaultSchema
	}
	if set("allowed-schemas") {
		cfg.AllowedSchemas = *v.allowedSchemas
	}
	if set("log-format") {
		cfg.LogFormat = *v.logFormat
	}
	if set("db-server") {
		cfg.DBServer = *v.dbServer
	}
	if set("db-port") {
		cfg.DBPort = *v.dbPort
	}
	if set("db-name") {
		cfg.DBName = *v.dbName
	}
	if set("db-trust-server-certificate") {
		cfg.DBTrustServerCertificate = *v.dbTrustCert
	}
	if set("db-auth-mode") {
		cfg.DBAuthMode = *v.dbAuthMode
	}
	if set("db-user") {
		cfg.DBUser = *v.dbUser
	}
	if set("db-password") {
		cfg.DBPassword = *v.dbPassword
	}
	if set("pool-size") {
		cfg.PoolSize = *v.poolSize
	}
	if set("token-mode") {
		cfg.TokenMode = *v.tokenMode
	}
	if set("token-secret") {
		cfg.TokenSecret = *v.tokenSecret
	}
	if set("token-issuer-url") {
		cfg.TokenIssuerURL = *v.tokenIssuerURL
	}
	if set("token-audience") {
		cfg.TokenAudience = *v.tokenAudience
	}
	if set("token-role-path") {
		cfg.TokenRolePath = *v.tokenRolePath
	}
	if set("token-anon-role") {
		cfg.TokenAnonRole = *v.tokenAnonRole
	}
	if set("changefeed-enabled") {
		cfg.ChangeFeedEnabled = *v.changeFeedEnabled
	}
	if set("changefeed-poll-period") {
		cfg.ChangeFeedPollPeriod = *v.changeFeedPollPeriod
	}
	if set("slow-query-threshold") {
		cfg.SlowQueryThreshold = *v.slowQueryThreshold
	}
	if set("telemetry-endpoint") {
		cfg.TelemetryEndpoint = *v.telemetryEndpoint
	}
}

// # Sub-config Projections

// PoolConfig projects the database-credential fields into an
// [mssqlpool.Config], ready for [mssqlpool.Open].
func (c *Config) PoolConfig() mssqlpool.Config {
	return mssqlpool.Config{
		Server:                 c.DBServer,
		Port:                   c.DBPort,
		Database:               c.DBName,
		TrustServerCertificate: c.DBTrustServerCertificate,
		Mode:                   poolMode(c.DBAuthMode),
		User:                   c.DBUser,
		Password:               c.DBPassword,
		SPTenantID:             c.DBSPTenantID,
		SPClientID:             c.DBSPClientID,
		SPClientSecret:         c.DBSPClientSecret,
		PoolSize:               c.PoolSize,
	}
}

func poolMode(mode string) mssqlpool.Mode {
	switch mode {
	case "managed_identity":
		return mssqlpool.ModeManagedIdentity
	case "service_principal":
		return mssqlpool.ModeServicePrincipal
	default:
		return mssqlpool.ModePassword
	}
}

// TokenConfig projects the token-verification fields into a
// [tokenauth.Config], ready for [tokenauth.NewVerifier].
func (c *Config) TokenConfig() tokenauth.Config {
	return tokenauth.Config{
		Mode:      tokenMode(c.TokenMode),
		Secret:    c.TokenSecret,
		IssuerURL: c.TokenIssuerURL,
		Audience:  c.TokenAudience,
		RolePath:  c.TokenRolePath,
		RoleTable: c.TokenRoleTable,
		AnonRole:  c.TokenAnonRole,
	}
}

func tokenMode(mode string) tokenauth.Mode {
	switch mode {
	case "symmetric":
		return tokenauth.ModeSymmetric
	case "asymmetric":
		return tokenauth.ModeAsymmetric
	default:
		return tokenauth.ModeNone
	}
}

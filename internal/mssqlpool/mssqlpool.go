// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package mssqlpool is a fixed-size, bounded connection pool for SQL Server.
A ticket semaphore caps the number of connections in flight at any time;
database/sql's own idle-connection list plays the role of the free list
underneath it. Three credential modes are supported: a static
username/password, a cloud instance's managed-identity token, and a
service-principal client-credentials token — the latter two obtained from
Azure AD and cached, refreshed five minutes before expiry.
*/
package mssqlpool

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	mssql "github.com/microsoft/go-mssqldb"
	"golang.org/x/oauth2/clientcredentials"
)

// Mode selects how the pool authenticates new physical connections.
type Mode int

const (
	ModePassword Mode = iota
	ModeManagedIdentity
	ModeServicePrincipal
)

// Config describes how to reach and authenticate against one SQL Server
// instance, and how large the bounded pool may grow.
type Config struct {
	Server                 string
	Port                   int
	Database               string
	TrustServerCertificate bool
	Mode                   Mode

	User     string
	Password string

	SPTenantID     string
	SPClientID     string
	SPClientSecret string

	PoolSize int
}

const managedIdentityEndpoint = "http://169.254.169.254/metadata/identity/oauth2/token"
const databaseScope = "https://database.windows.net/.default"
const databaseResource = "https://database.windows.net/"
const tokenRefreshWindow = 5 * time.Minute

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// tokenProvider fetches and caches an Azure AD access token scoped to SQL
// Database, refreshing it five minutes ahead of expiry.
type tokenProvider struct {
	cfg  Config
	http *http.Client

	mu     sync.RWMutex
	cached *cachedToken
}

func newTokenProvider(cfg Config) *tokenProvider {
	return &tokenProvider{cfg: cfg, http: &http.Client{Timeout: 10 * time.Second}}
}

func (p *tokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	if p.cached != nil && time.Until(p.cached.expiresAt) > tokenRefreshWindow {
		tok := p.cached.token
		p.mu.RUnlock()
		return tok, nil
	}
	p.mu.RUnlock()

	var (
		token    string
		expireIn time.Duration
		err      error
	)
	switch p.cfg.Mode {
	case ModeManagedIdentity:
		token, expireIn, err = p.fetchManagedIdentityToken(ctx)
	case ModeServicePrincipal:
		token, expireIn, err = p.fetchServicePrincipalToken(ctx)
	default:
		return "", fmt.Errorf("mssqlpool: token provider not applicable to password auth")
	}
	if err != nil {
		return "", err
	}

	p.mu.Lock()
	p.cached = &cachedToken{token: token, expiresAt: time.Now().Add(expireIn)}
	p.mu.Unlock()
	return token, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (p *tokenProvider) fetchManagedIdentityToken(ctx context.Context) (string, time.Duration, error) {
	q := url.Values{"api-version": {"2019-08-01"}, "resource": {databaseResource}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, managedIdentityEndpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Metadata", "true")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("mssqlpool: managed identity token fetch failed: %w", err)
	}
	defer resp.Body.Close()

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, fmt.Errorf("mssqlpool: managed identity token parse failed: %w", err)
	}
	return tr.AccessToken, expiresInOrDefault(tr.ExpiresIn), nil
}

func (p *tokenProvider) fetchServicePrincipalToken(ctx context.Context) (string, time.Duration, error) {
	if p.cfg.SPTenantID == "" || p.cfg.SPClientID == "" || p.cfg.SPClientSecret == "" {
		return "", 0, fmt.Errorf("mssqlpool: service principal auth requires tenant id, client id, and client secret")
	}
	cc := clientcredentials.Config{
		ClientID:     p.cfg.SPClientID,
		ClientSecret: p.cfg.SPClientSecret,
		TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", p.cfg.SPTenantID),
		Scopes:       []string{databaseScope},
	}
	tok, err := cc.Token(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("mssqlpool: service principal token fetch failed: %w", err)
	}
	ttl := time.Hour
	if !tok.Expiry.IsZero() {
		ttl = time.Until(tok.Expiry)
	}
	return tok.AccessToken, ttl, nil
}

func expiresInOrDefault(s string) time.Duration {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return time.Hour
}

// Pool is a bounded SQL Server connection pool: a ticket semaphore caps
// concurrent connections at cfg.PoolSize; database/sql's own idle list
// underneath serves as the free list the semaphore guards access to.
type Pool struct {
	cfg    Config
	db     *sql.DB
	tokens *tokenProvider
	tickets chan struct{}
}

// Open builds the connection string for cfg's credential mode, opens the
// underlying *sql.DB, and caps it at cfg.PoolSize connections. For the two
// Azure AD modes it obtains (and will keep refreshing) an access token via
// a dynamic connector, so individual physical connections are never
// authenticated with a stale token.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	p := &Pool{cfg: cfg, tickets: make(chan struct{}, cfg.PoolSize)}

	dsn := buildDSN(cfg)

	var db *sql.DB
	switch cfg.Mode {
	case ModePassword:
		sqlDB, err := sql.Open("sqlserver", dsn)
		if err != nil {
			return nil, fmt.Errorf("mssqlpool: open: %w", err)
		}
		db = sqlDB
	case ModeManagedIdentity, ModeServicePrincipal:
		p.tokens = newTokenProvider(cfg)
		connector, err := mssql.NewAccessTokenConnector(dsn, func() (string, error) {
			// Not ctx: the callback runs for every new physical connection
			// long after Open's (startup-scoped) context has ended.
			return p.tokens.Token(context.Background())
		})
		if err != nil {
			return nil, fmt.Errorf("mssqlpool: build access-token connector: %w", err)
		}
		db = sql.OpenDB(connector)
	default:
		return nil, fmt.Errorf("mssqlpool: unknown auth mode %d", cfg.Mode)
	}

	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mssqlpool: ping: %w", err)
	}

	p.db = db
	return p, nil
}

func buildDSN(cfg Config) string {
	q := url.Values{}
	if cfg.Database != "" {
		q.Set("database", cfg.Database)
	}
	if cfg.TrustServerCertificate {
		q.Set("trustservercertificate", "true")
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     fmt.Sprintf("%s:%d", cfg.Server, cfg.Port),
		RawQuery: q.Encode(),
	}
	if cfg.Mode == ModePassword {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	}
	return u.String()
}

// DB exposes the underlying *sql.DB for components — [internal/catalog]'s
// introspection queries — that read outside the bounded-acquire path.
func (p *Pool) DB() *sql.DB { return p.db }

// Close releases the underlying *sql.DB. It does not wait for in-flight
// [Guard]s to release; callers are expected to drain requests first.
func (p *Pool) Close() error { return p.db.Close() }

// Guard is a single checked-out connection. The permit it holds is not
// returned to the pool until [Guard.Release] runs — Go has no destructors,
// so every acquirer must release at every return path, typically via a
// deferred call immediately after [Pool.Acquire] succeeds.
type Guard struct {
	conn     *sql.Conn
	pool     *Pool
	released bool
}

// Conn returns the checked-out connection.
func (g *Guard) Conn() *sql.Conn { return g.conn }

// Release returns the connection to database/sql's idle list and frees
// the ticket. Safe to call more than once.
func (g *Guard) Release() {
	if g.released {
		return
	}
	g.released = true
	_ = g.conn.Close()
	<-g.pool.tickets
}

// Acquire blocks for a free ticket (or ctx cancellation), then checks out
// a connection — an idle one if database/sql has one, otherwise a freshly
// dialed one.
func (p *Pool) Acquire(ctx context.Context) (*Guard, error) {
	select {
	case p.tickets <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		<-p.tickets
		return nil, fmt.Errorf("mssqlpool: acquire connection: %w", err)
	}
	return &Guard{conn: conn, pool: p}, nil
}

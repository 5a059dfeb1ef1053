// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package tokenauth verifies bearer tokens in either of two modes — a shared
HMAC-SHA256 secret, or RSA signatures backed by a JWKS endpoint discovered
from the issuer's well-known document — and resolves the authenticated
principal's database role from a configurable claim path.
*/
package tokenauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

// Mode selects how bearer tokens are verified.
type Mode int

const (
	// ModeNone performs no verification; a request without a bearer header
	// resolves to the anonymous role (or is rejected if none is configured),
	// and a request carrying a bearer token is rejected.
	ModeNone Mode = iota
	// ModeSymmetric verifies HS256 tokens against a shared secret.
	ModeSymmetric
	// ModeAsymmetric verifies RS256/384/512 tokens against a JWKS key set
	// discovered from the issuer.
	ModeAsymmetric
)

// Claims is the decoded payload of a verified bearer token, plus whatever
// extra claims it carried — used both for role resolution and for the
// session-context claims forwarded to SQL Server.
type Claims struct {
	jwt.RegisteredClaims
	Raw map[string]any
}

// Config controls how Verifier validates tokens and resolves roles.
type Config struct {
	Mode Mode

	// Symmetric mode.
	Secret string

	// Asymmetric mode.
	IssuerURL string
	Audience  string

	// RolePath is the dot-separated path into the claim map, e.g.
	// "realm_access.roles".
	RolePath string
	// RoleTable maps a claim-derived role token to a database principal.
	// A role absent from the table is used verbatim.
	RoleTable map[string]string
	// AnonRole is granted when no bearer header is present, or when a
	// resolved role cannot be mapped; empty means authentication is
	// mandatory.
	AnonRole string
}

// ErrUnauthorized is returned (wrapped with detail) for every verification
// failure: missing header with no anonymous role, malformed scheme,
// invalid signature, expired token, or unresolvable role.
type ErrUnauthorized struct {
	Reason string
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("tokenauth: unauthorized: %s", e.Reason)
}

// Verifier validates bearer tokens and resolves the effective database
// role for a request.
type Verifier struct {
	cfg Config

	kfMu sync.RWMutex
	kf   keyfunc.Keyfunc
}

// NewVerifier constructs a Verifier. For [ModeAsymmetric], it discovers and
// caches the issuer's JWKS immediately; discovery failure is returned to
// the caller rather than deferred to the first request.
func NewVerifier(ctx context.Context, cfg Config) (*Verifier, error) {
	v := &Verifier{cfg: cfg}
	if cfg.Mode == ModeAsymmetric {
		jwksURL, err := discoverJWKSURL(ctx, cfg.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("tokenauth: discover jwks: %w", err)
		}
		kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("tokenauth: fetch jwks: %w", err)
		}
		v.kf = kf
	}
	return v, nil
}

// discoverJWKSURL fetches the issuer's OpenID well-known configuration and
// returns its jwks_uri. issuerURL is always treated as an OIDC issuer base
// URL; a JWKS endpoint cannot be supplied directly.
func discoverJWKSURL(ctx context.Context, issuerURL string) (string, error) {
	wellKnown := strings.TrimRight(issuerURL, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("well-known document returned %d", resp.StatusCode)
	}
	var doc struct {
		JWKSURI string `json:"jwks_uri"`
	}
	if err := decodeJSON(resp.Body, &doc); err != nil {
		return "", err
	}
	if doc.JWKSURI == "" {
		return "", fmt.Errorf("well-known document has no jwks_uri")
	}
	return doc.JWKSURI, nil
}

// keyfunc returns the current JWKS-backed jwt.Keyfunc, safe for concurrent
// use while refreshKeySet may be swapping it out under another request.
func (v *Verifier) keyfunc() jwt.Keyfunc {
	v.kfMu.RLock()
	defer v.kfMu.RUnlock()
	return v.kf.Keyfunc
}

// refreshKeySet re-discovers the issuer's JWKS endpoint and replaces the
// key set wholesale. keyfunc/v3's Keyfunc interface exposes no method to
// refresh an existing instance in place, so this is the only way to pick
// up a rotated signing key.
func (v *Verifier) refreshKeySet(ctx context.Context) error {
	jwksURL, err := discoverJWKSURL(ctx, v.cfg.IssuerURL)
	if err != nil {
		return err
	}
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return err
	}
	v.kfMu.Lock()
	v.kf = kf
	v.kfMu.Unlock()
	return nil
}

// Authenticate verifies the Authorization header, if present, and returns
// the resolved claims (nil for anonymous access) and database role.
func (v *Verifier) Authenticate(ctx context.Context, authHeader string) (*Claims, string, error) {
	if authHeader == "" {
		if v.cfg.AnonRole != "" {
			return nil, v.cfg.AnonRole, nil
		}
		return nil, "", &ErrUnauthorized{Reason: "authentication required"}
	}

	token, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return nil, "", &ErrUnauthorized{Reason: "authorization header must use Bearer scheme"}
	}
	token = strings.TrimSpace(token)

	claims, err := v.verify(token)
	if err != nil {
		return nil, "", &ErrUnauthorized{Reason: err.Error()}
	}

	role, ok := v.resolveRole(claims)
	if !ok {
		if v.cfg.AnonRole != "" {
			return claims, v.cfg.AnonRole, nil
		}
		return nil, "", &ErrUnauthorized{Reason: "token carries no resolvable role"}
	}
	return claims, role, nil
}

func (v *Verifier) verify(tokenString string) (*Claims, error) {
	raw := jwt.MapClaims{}

	var keyFn jwt.Keyfunc
	var parserOpts []jwt.ParserOption

	switch v.cfg.Mode {
	case ModeSymmetric:
		keyFn = func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(v.cfg.Secret), nil
		}
	case ModeAsymmetric:
		keyFn = v.keyfunc()
	default:
		return nil, fmt.Errorf("token verification disabled")
	}

	if v.cfg.IssuerURL != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.cfg.IssuerURL))
	}
	if v.cfg.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.cfg.Audience))
	}
	parserOpts = append(parserOpts, jwt.WithExpirationRequired())

	parsed, err := jwt.NewParser(parserOpts...).Parse(tokenString, keyFn)
	if v.cfg.Mode == ModeAsymmetric && err != nil {
		// The signing key may have rotated since our last fetch. keyfunc/v3
		// has no in-place refresh, so rebuild the key set from scratch and
		// retry once before giving up.
		if refreshErr := v.refreshKeySet(context.Background()); refreshErr == nil {
			parsed, err = jwt.NewParser(parserOpts...).Parse(tokenString, v.keyfunc())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	raw = mapClaims

	reg := jwt.RegisteredClaims{}
	if sub, ok := raw["sub"].(string); ok {
		reg.Subject = sub
	}
	if iss, ok := raw["iss"].(string); ok {
		reg.Issuer = iss
	}

	return &Claims{RegisteredClaims: reg, Raw: raw}, nil
}

// resolveRole descends cfg.RolePath through claims.Raw and maps the
// terminal value through cfg.RoleTable, per the dotted-path resolution
// rule: a string value is mapped (or used verbatim if absent from the
// table); an array value yields the first element with a table entry, or
// the first element outright when the table is empty.
func (v *Verifier) resolveRole(claims *Claims) (string, bool) {
	if v.cfg.RolePath == "" {
		return "", false
	}
	val, ok := descend(claims.Raw, strings.Split(v.cfg.RolePath, "."))
	if !ok {
		return "", false
	}

	switch t := val.(type) {
	case string:
		return v.mapRole(t), true
	case []any:
		if len(v.cfg.RoleTable) == 0 {
			if len(t) == 0 {
				return "", false
			}
			if s, ok := t[0].(string); ok {
				return s, true
			}
			return "", false
		}
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if mapped, ok := v.cfg.RoleTable[s]; ok {
				return mapped, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

func (v *Verifier) mapRole(token string) string {
	if mapped, ok := v.cfg.RoleTable[token]; ok {
		return mapped
	}
	return token
}

// descend walks a nested claim map following path, returning the terminal
// value. Every intermediate segment must resolve to a map[string]any.
func descend(claims map[string]any, path []string) (any, bool) {
	var cur any = claims
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

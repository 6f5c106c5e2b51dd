// Package auth verifies bearer credentials and turns them into an Identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/abgdnv/shopper/pkg/config"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

// Identity is the authenticated caller.
type Identity struct {
	ID   string
	Name string
}

type Verifier interface {
	// Verify returns the identity carried by credential or an error when the
	// credential cannot be trusted.
	Verify(ctx context.Context, credential string) (Identity, error)
}

var ErrMissingSubject = errors.New("token has no subject")

// NewVerifier returns an HMACVerifier when a shared secret is configured and a JWTVerifier otherwise.
func NewVerifier(ctx context.Context, cfg config.IdP) (Verifier, error) {
	if cfg.Secret != "" {
		return NewHMACVerifier(cfg.Secret, cfg.Issuer), nil
	}
	return NewJWTVerifier(ctx, cfg)
}

// StripBearer removes an optional "Bearer " prefix.
func StripBearer(credential string) string {
	credential = strings.TrimSpace(credential)
	if len(credential) > 7 && strings.EqualFold(credential[:7], "bearer ") {
		return strings.TrimSpace(credential[7:])
	}
	return credential
}

// JWTVerifier manages JWT verification using a JWKS endpoint.
// It caches the JWKS set to minimize network calls and supports automatic refresh.
type JWTVerifier struct {
	mu sync.RWMutex

	jwksURL  string
	issuer   string
	clientID string

	cachedSet     jwk.Set
	lastRefreshed time.Time
	minInterval   time.Duration
}

// NewJWTVerifier creates a new JWTVerifier instance.
func NewJWTVerifier(ctx context.Context, cfg config.IdP) (*JWTVerifier, error) {
	v := &JWTVerifier{
		jwksURL:     cfg.JwksURL,
		issuer:      cfg.Issuer,
		clientID:    cfg.ClientID,
		minInterval: cfg.MinInterval,
	}
	// fail fast on a wrong JWKS url
	if _, err := v.getKeySet(ctx); err != nil {
		return nil, fmt.Errorf("initial JWKS fetch failed: %w", err)
	}

	return v, nil
}

// getKeySet returns the cached set, refreshing it at most once per minInterval.
func (v *JWTVerifier) getKeySet(ctx context.Context) (jwk.Set, error) {
	v.mu.RLock()
	if v.cachedSet != nil && time.Since(v.lastRefreshed) < v.minInterval {
		set := v.cachedSet
		v.mu.RUnlock()
		return set, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cachedSet != nil && time.Since(v.lastRefreshed) < v.minInterval {
		return v.cachedSet, nil
	}
	set, err := jwk.Fetch(ctx, v.jwksURL)
	if err != nil {
		// keep serving the last known keys while the IdP is unreachable
		if v.cachedSet != nil {
			return v.cachedSet, nil
		}
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", v.jwksURL, err)
	}
	v.cachedSet = set
	v.lastRefreshed = time.Now()
	return v.cachedSet, nil
}

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (Identity, error) {
	set, err := v.getKeySet(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to get keyset for verification: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	}
	if v.clientID != "" {
		opts = append(opts, jwt.WithClaimValue("azp", v.clientID))
	}
	token, err := jwt.Parse([]byte(StripBearer(credential)), opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to verify token: %w", err)
	}
	return identityOf(token)
}

// HMACVerifier verifies HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	secret []byte
	issuer string
}

// NewHMACVerifier creates a verifier for tokens signed with secret.
// An empty issuer disables the issuer check.
func NewHMACVerifier(secret, issuer string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret), issuer: issuer}
}

func (v *HMACVerifier) Verify(_ context.Context, credential string) (Identity, error) {
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256(), v.secret),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.Parse([]byte(StripBearer(credential)), opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to verify token: %w", err)
	}
	return identityOf(token)
}

// identityOf reads the subject and the display name of a verified token.
// The name falls back from "name" to "preferred_username" to the subject.
func identityOf(token jwt.Token) (Identity, error) {
	sub, ok := token.Subject()
	if !ok || sub == "" {
		return Identity{}, ErrMissingSubject
	}
	id := Identity{ID: sub, Name: sub}
	for _, claim := range []string{"name", "preferred_username"} {
		var name string
		if err := token.Get(claim, &name); err == nil && name != "" {
			id.Name = name
			break
		}
	}
	return id, nil
}

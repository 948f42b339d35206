package authsvc

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/theoremz/black/core"
)

const (
	issuerPrefix      = "https://securetoken.google.com/"
	defaultKeysTTL    = time.Hour
	certsFetchTimeout = 10 * time.Second
)

var (
	ErrInvalidToken = errors.New("invalid token")
	maxAgeRegex     = regexp.MustCompile(`max-age=(\d+)`)
)

type (
	// Identity is the authenticated caller.
	Identity struct {
		UID           string
		Email         string
		EmailVerified bool
	}

	Verifier interface {
		Verify(ctx context.Context, token string) (Identity, error)
	}

	firebaseClaims struct {
		jwt.RegisteredClaims
		AuthTime      int64  `json:"auth_time"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
)

// FirebaseVerifier checks Firebase Auth ID tokens against Google's rotating signing certs.
type FirebaseVerifier struct {
	projectID string
	certsURL  string
	client    *http.Client

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	expiresAt time.Time
}

var _ Verifier = (*FirebaseVerifier)(nil)

func NewFirebaseVerifier(conf core.FirebaseConfig, client *http.Client) *FirebaseVerifier {
	if client == nil {
		client = &http.Client{Timeout: certsFetchTimeout}
	}
	return &FirebaseVerifier{
		projectID: conf.ProjectID,
		certsURL:  conf.CertsURL,
		client:    client,
	}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" || v.projectID == "" {
		return Identity{}, ErrInvalidToken
	}

	claims := new(firebaseClaims)
	_, err := jwt.ParseWithClaims(token, claims, v.keyFunc(ctx),
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer(issuerPrefix+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(core.NowFunc),
	)
	if err != nil {
		return Identity{}, errors.Wrap(ErrInvalidToken, err.Error())
	}
	if claims.Subject == "" || len(claims.Subject) > 128 {
		return Identity{}, errors.Wrap(ErrInvalidToken, "bad subject")
	}
	if claims.AuthTime > core.NowFunc().Unix() {
		return Identity{}, errors.Wrap(ErrInvalidToken, "auth_time in the future")
	}

	return Identity{
		UID:           claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
	}, nil
}

func (v *FirebaseVerifier) keyFunc(ctx context.Context) jwt.Keyfunc {
	return func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		keys, err := v.publicKeys(ctx)
		if err != nil {
			return nil, err
		}
		key, ok := keys[kid]
		if !ok {
			return nil, fmt.Errorf("unknown kid %q", kid)
		}
		return key, nil
	}
}

// publicKeys returns the cached keys, refreshing them once they expire.
func (v *FirebaseVerifier) publicKeys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	v.mu.RLock()
	keys, expiresAt := v.keys, v.expiresAt
	v.mu.RUnlock()
	if keys != nil && core.NowFunc().Before(expiresAt) {
		return keys, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.keys != nil && core.NowFunc().Before(v.expiresAt) {
		return v.keys, nil
	}

	keys, ttl, err := v.fetchKeys(ctx)
	if err != nil {
		return nil, err
	}
	v.keys = keys
	v.expiresAt = core.NowFunc().Add(ttl)
	return keys, nil
}

func (v *FirebaseVerifier) fetchKeys(ctx context.Context) (map[string]*rsa.PublicKey, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return nil, 0, errors.Wrap(err, "building certs request")
	}
	res, err := v.client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(err, "fetching certs")
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return nil, 0, errors.Errorf("fetching certs: status %d", res.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(res.Body).Decode(&certs); err != nil {
		return nil, 0, errors.Wrap(err, "decoding certs")
	}
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "parsing cert %s", kid)
		}
		keys[kid] = key
	}
	return keys, cacheTTL(res.Header.Get("Cache-Control")), nil
}

func cacheTTL(cacheControl string) time.Duration {
	if m := maxAgeRegex.FindStringSubmatch(cacheControl); len(m) == 2 {
		if secs, err := strconv.Atoi(m[1]); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultKeysTTL
}

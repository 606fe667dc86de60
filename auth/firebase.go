package auth

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"portal-backend/portal"
)

// GoogleCertsURL serves the x509 certificates that sign Firebase ID tokens.
const GoogleCertsURL = "https://www.googleapis.com/robot/v1/metadata/x509/securetoken@system.gserviceaccount.com"

const defaultCertsTTL = time.Hour

// FirebaseVerifier checks Firebase Authentication ID tokens, which is how
// the web client signs users in with Google.
type FirebaseVerifier struct {
	projectID string
	certsURL  string
	client    *http.Client
	now       func() time.Time

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	expires time.Time
}

type FirebaseOption func(*FirebaseVerifier)

// WithCertsURL points the verifier at a different certificate endpoint.
func WithCertsURL(url string) FirebaseOption {
	return func(v *FirebaseVerifier) { v.certsURL = url }
}

func WithHTTPClient(c *http.Client) FirebaseOption {
	return func(v *FirebaseVerifier) { v.client = c }
}

func WithFirebaseClock(now func() time.Time) FirebaseOption {
	return func(v *FirebaseVerifier) { v.now = now }
}

func NewFirebaseVerifier(projectID string, opts ...FirebaseOption) *FirebaseVerifier {
	v := &FirebaseVerifier{
		projectID: projectID,
		certsURL:  GoogleCertsURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		now:       time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// Verify implements portal.IdentityVerifier.
func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*portal.Identity, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(idToken, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.projectID),
		jwt.WithIssuer("https://securetoken.google.com/"+v.projectID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if sub, _ := claims.GetSubject(); sub == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("%w: token carries no email", ErrInvalidToken)
	}
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	return &portal.Identity{Email: email, Name: name, Picture: picture}, nil
}

func (v *FirebaseVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.keys == nil || !v.now().Before(v.expires) {
		if err := v.refresh(ctx); err != nil {
			return nil, err
		}
	}
	k, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown signing key %q", kid)
	}
	return k, nil
}

// refresh reloads the certificates. Callers hold v.mu.
func (v *FirebaseVerifier) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.certsURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch signing certs: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch signing certs: status %d", resp.StatusCode)
	}

	var certs map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&certs); err != nil {
		return fmt.Errorf("decode signing certs: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pem := range certs {
		k, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
		if err != nil {
			return fmt.Errorf("parse cert %s: %w", kid, err)
		}
		keys[kid] = k
	}
	v.keys = keys
	v.expires = v.now().Add(maxAge(resp.Header.Get("Cache-Control")))
	return nil
}

func maxAge(cacheControl string) time.Duration {
	for _, part := range strings.Split(cacheControl, ",") {
		part = strings.TrimSpace(part)
		if s, ok := strings.CutPrefix(part, "max-age="); ok {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				return time.Duration(n) * time.Second
			}
		}
	}
	return defaultCertsTTL
}

package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const RoleAdmin = "admin"

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrAuthNotConfigured = errors.New("admin authentication is not configured")
)

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthOptions struct {
	Secret       string
	TTL          time.Duration
	Password     string
	PasswordHash string
	Now          func() time.Time
}

// Authenticator checks the shared admin password and issues and verifies
// HS256 admin tokens.
type Authenticator struct {
	secret       []byte
	ttl          time.Duration
	password     []byte
	passwordHash []byte
	now          func() time.Time
}

func NewAuthenticator(options AuthOptions) (*Authenticator, error) {
	if options.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if options.Password == "" && options.PasswordHash == "" {
		return nil, ErrAuthNotConfigured
	}
	ttl := options.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := options.Now
	if now == nil {
		now = time.Now
	}
	return &Authenticator{
		secret:       []byte(options.Secret),
		ttl:          ttl,
		password:     []byte(options.Password),
		passwordHash: []byte(options.PasswordHash),
		now:          now,
	}, nil
}

func (a *Authenticator) TTL() time.Duration {
	return a.ttl
}

// CheckPassword prefers the bcrypt hash when one is configured.
func (a *Authenticator) CheckPassword(password string) bool {
	if password == "" {
		return false
	}
	if len(a.passwordHash) > 0 {
		return bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare(a.password, []byte(password)) == 1
}

func (a *Authenticator) Issue() (string, time.Time, error) {
	issuedAt := a.now()
	expiresAt := issuedAt.Add(a.ttl)
	claims := Claims{
		Role: RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   RoleAdmin,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// AuthMiddleware requires an admin bearer token on every non-public route.
// Rejected requests never reach the handler.
func AuthMiddleware(auth *Authenticator, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		claims, err := auth.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		if claims.Role != RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	if strings.HasPrefix(r.URL.Path, "/realtime/") {
		return true
	}
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/reservations", "/admin/login":
		return r.Method == http.MethodPost
	case "/reservations/status", "/reservations/counter":
		return r.Method == http.MethodGet
	default:
		return false
	}
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/offset-orders/internal/common"
)

const (
	defaultSessionTTL = 12 * time.Hour
	// Subject is the only principal; the service has a single operator.
	Subject = "operator"
)

// Service checks the shared password and issues signed session tokens.
type Service struct {
	passwordHash string
	secret       []byte
	sessionTTL   time.Duration
	now          func() time.Time
	signer       jwa.SignatureAlgorithm
	validator    TokenValidator
	issuer       string
	audience     string
	clockSkew    time.Duration
}

// Config configures the auth service. Exactly one of Password or PasswordHash
// is needed; PasswordHash wins when both are set.
type Config struct {
	Password     string
	PasswordHash string
	Secret       string
	SessionTTL   time.Duration
	Issuer       string
	Audience     string
	ClockSkew    time.Duration
}

// LoginResult bundles the session token returned after a successful login.
type LoginResult struct {
	Session   common.Session `json:"session"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// NewService constructs a Service instance with sane defaults.
func NewService(cfg Config) (*Service, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errors.New("auth: secret is required")
	}
	hash := strings.TrimSpace(cfg.PasswordHash)
	if hash == "" {
		password := strings.TrimSpace(cfg.Password)
		if password == "" {
			return nil, errors.New("auth: password is required")
		}
		var err error
		hash, err = argon2id.CreateHash(password, argon2id.DefaultParams)
		if err != nil {
			return nil, fmt.Errorf("auth: hash password: %w", err)
		}
	} else if _, _, _, err := argon2id.DecodeHash(hash); err != nil {
		return nil, fmt.Errorf("auth: invalid password hash: %w", err)
	}

	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "offset-orders"
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = "offset-orders-ui"
	}
	clockSkew := cfg.ClockSkew
	if clockSkew < 0 {
		clockSkew = 0
	}

	return &Service{
		passwordHash: hash,
		secret:       []byte(secret),
		sessionTTL:   ttl,
		now:          time.Now,
		signer:       jwa.HS256,
		validator: TokenValidator{
			Issuer:    issuer,
			Audience:  audience,
			Subject:   Subject,
			ClockSkew: clockSkew,
			Algorithm: jwa.HS256,
		},
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}, nil
}

// WithNow allows tests to override the time provider.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SessionTTL reports how long issued sessions stay valid.
func (s *Service) SessionTTL() time.Duration { return s.sessionTTL }

// Login compares the typed password (surrounding whitespace ignored) with the
// shared secret and opens a session.
func (s *Service) Login(_ context.Context, password string) (LoginResult, error) {
	typed := strings.TrimSpace(password)
	if typed == "" {
		return LoginResult{}, invalidCredentials()
	}
	ok, err := argon2id.ComparePasswordAndHash(typed, s.passwordHash)
	if err != nil || !ok {
		return LoginResult{}, invalidCredentials()
	}
	token, session, err := s.signSessionToken()
	if err != nil {
		return LoginResult{}, fmt.Errorf("sign session token: %w", err)
	}
	return LoginResult{Session: session, Token: token, ExpiresAt: session.ExpiresAt}, nil
}

// ParseSessionToken validates a session token and returns its session.
func (s *Service) ParseSessionToken(token string) (common.Session, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return common.Session{}, unauthorized("missing token", nil)
	}
	algorithm, err := extractTokenAlgorithm(trimmed)
	if err != nil {
		return common.Session{}, unauthorized("invalid token", err)
	}
	if s.validator.Algorithm != "" && algorithm != s.validator.Algorithm {
		return common.Session{}, unauthorized("invalid token", fmt.Errorf("unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, s.secret), jwt.WithValidate(false))
	if err != nil {
		return common.Session{}, unauthorized("invalid token", err)
	}
	if err := s.validator.Validate(parsed, algorithm, s.now()); err != nil {
		return common.Session{}, unauthorized("invalid token", err)
	}
	return common.Session{
		ID:        parsed.JwtID(),
		Subject:   parsed.Subject(),
		IssuedAt:  parsed.IssuedAt(),
		ExpiresAt: parsed.Expiration(),
	}, nil
}

func extractTokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) == 0 {
		return "", errors.New("auth: token contains no signatures")
	}
	var algorithm jwa.SignatureAlgorithm
	for _, sig := range signatures {
		headers := sig.ProtectedHeaders()
		if headers == nil {
			return "", errors.New("auth: token missing protected headers")
		}
		alg := headers.Algorithm()
		if alg == "" {
			return "", errors.New("auth: token missing algorithm")
		}
		if alg == jwa.NoSignature {
			return "", errors.New("auth: token uses none algorithm")
		}
		if algorithm == "" {
			algorithm = alg
		} else if algorithm != alg {
			return "", fmt.Errorf("auth: mixed token algorithms detected")
		}
	}
	return algorithm, nil
}

func (s *Service) signSessionToken() (string, common.Session, error) {
	now := s.now().UTC().Truncate(time.Second)
	session := common.Session{
		ID:        uuid.NewString(),
		Subject:   Subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	token, err := jwt.NewBuilder().
		JwtID(session.ID).
		Subject(session.Subject).
		Issuer(s.issuer).
		Audience([]string{s.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-s.clockSkew)).
		Expiration(session.ExpiresAt).
		Build()
	if err != nil {
		return "", common.Session{}, err
	}
	signed, err := jwt.Sign(token, jwt.WithKey(s.signer, s.secret))
	if err != nil {
		return "", common.Session{}, err
	}
	return string(signed), session, nil
}

func invalidCredentials() *common.AppError {
	return common.NewAppError("INVALID_CREDENTIALS", "invalid password", http.StatusUnauthorized, nil)
}

func unauthorized(message string, err error) *common.AppError {
	return common.NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, err)
}

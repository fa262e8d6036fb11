package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the algorithm used to sign session tokens.
type SigningMethod string

const (
	// MethodHS256 signs tokens with a shared secret. It is the default.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs tokens with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
)

var (
	// ErrMalformed is returned when the input does not have the
	// three-segment compact token shape.
	ErrMalformed = errors.New("jwt malformed")
	// ErrInvalidSignature is returned when the token has the right shape
	// but its signature or content does not validate.
	ErrInvalidSignature = errors.New("invalid token")
)

// DefaultLeeway is the clock skew tolerated on iat when Config.Leeway is
// zero.
const DefaultLeeway = 30 * time.Second

// MaxLeeway bounds Config.Leeway.
const MaxLeeway = 2 * time.Minute

// Config holds the key material and claims policy of a [Manager].
type Config struct {
	SigningMethod SigningMethod
	// Secret is the HS256 shared secret.
	Secret     []byte
	PrivateKey []byte
	PublicKey  []byte
	Issuer     string
	KeyID      string
	// Leeway is the tolerated clock skew on iat. Zero selects DefaultLeeway.
	Leeway time.Duration
}

// Manager signs and verifies session tokens. It holds no mutable state and
// is safe for concurrent use.
type Manager struct {
	config Config
}

// Claims is the token payload. Session lifetime is tracked server-side, so
// no expiration claim is issued.
type Claims struct {
	UID string `json:"uid"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a ready [Manager].
func NewManager(cfg Config) (*Manager, error) {
	if cfg.SigningMethod == "" {
		cfg.SigningMethod = MethodHS256
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	if cfg.Leeway == 0 {
		cfg.Leeway = DefaultLeeway
	}
	if cfg.Leeway < 0 || cfg.Leeway > MaxLeeway {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("hs256 requires secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a new token for uid. Every call yields a distinct token, even
// for the same uid within the same second, because a random jti is embedded.
func (j *Manager) Issue(uid string) (string, error) {
	if uid == "" {
		return "", errors.New("uid is required")
	}

	claims := Claims{
		UID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
			Issuer:   j.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return "", err
	}

	return token.SignedString(signKey)
}

// Verify checks the token shape, signature, and claims and returns the
// payload. It returns [ErrMalformed] when tokenStr is not three
// dot-separated segments and [ErrInvalidSignature] for every other failure,
// including an empty token.
func (j *Manager) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrInvalidSignature
	}
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(j.config.Leeway),
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return j.getVerifyKey()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UID == "" {
		return nil, ErrInvalidSignature
	}

	return claims, nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		if len(j.config.PrivateKey) == 0 {
			return nil, errors.New("ed25519 private key not configured")
		}
		return parseEdPrivateKey(j.config.PrivateKey)
	default:
		return j.config.Secret, nil
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(j.config.PublicKey)
	default:
		return j.config.Secret, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/PaulBabatuyi/quotechat/internal/normalize"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrTokenExpired is returned by VerifyToken for a well-formed but expired token.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("invalid token")
)

// JWTManager signs and validates JWT tokens used by the API.
//
// It holds one or more HMAC keys indexed by key id ("kid"). New tokens are
// signed with the active key; verification picks the key named in the token
// header so tokens issued before a rotation keep working until they expire.
type JWTManager struct {
	keys      map[string][]byte // kid -> secret
	activeKid string            // empty when running with a single un-named secret
	duration  time.Duration     // How long tokens are valid (e.g., 30 days)
}

// Claims is the custom JWT payload (user id + email).
type Claims struct {
	UserID               string `json:"user_id"` // MongoDB ObjectID converted to hex string
	Email                string `json:"email"`   // normalized user email
	jwt.RegisteredClaims        // Includes ExpiresAt, IssuedAt, etc.
}

// ObjectID parses the user id claim.
func (c *Claims) ObjectID() (bson.ObjectID, error) {
	return bson.ObjectIDFromHex(c.UserID)
}

// NewJWTManager returns a manager with a single signing secret.
func NewJWTManager(secretKey string, duration time.Duration) *JWTManager {
	return &JWTManager{
		keys:     map[string][]byte{"": []byte(secretKey)},
		duration: duration,
	}
}

// NewJWTManagerFromKeys returns a manager that signs with keys[activeKid] and
// accepts tokens signed by any key in keys.
func NewJWTManagerFromKeys(keys map[string]string, activeKid string, duration time.Duration) *JWTManager {
	m := &JWTManager{keys: make(map[string][]byte, len(keys)), activeKid: activeKid, duration: duration}
	for kid, secret := range keys {
		m.keys[kid] = []byte(secret)
	}
	return m
}

// Duration is the validity period of issued tokens.
func (m *JWTManager) Duration() time.Duration { return m.duration }

// GenerateToken issues a signed JWT token for a user.
func (m *JWTManager) GenerateToken(userID bson.ObjectID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(m.duration)

	claims := &Claims{
		UserID: userID.Hex(),
		Email:  normalize.Email(email),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	// HS256 (HMAC with SHA-256)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if m.activeKid != "" {
		token.Header["kid"] = m.activeKid
	}

	key, ok := m.keys[m.activeKid]
	if !ok {
		return "", time.Time{}, fmt.Errorf("no signing key for kid %q", m.activeKid)
	}

	tokenString, err := token.SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (m *JWTManager) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Security check: ensure token was signed with HMAC (not asymmetric key)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.keyFor(token)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	if _, err := claims.ObjectID(); err != nil {
		return nil, fmt.Errorf("%w: bad user_id claim", ErrTokenInvalid)
	}
	return claims, nil
}

// keyFor selects the verification key from the token's kid header, falling
// back to the active key for tokens without one.
func (m *JWTManager) keyFor(token *jwt.Token) ([]byte, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		kid = m.activeKid
	}
	key, ok := m.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return key, nil
}

// HashPassword returns a bcrypt hash for the provided plaintext.
func HashPassword(password string) (string, error) {
	// GenerateFromPassword creates a bcrypt hash with default cost (10 rounds)
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func CheckPassword(hash, password string) error {
	// timing-safe comparison
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

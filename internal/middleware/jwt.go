package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleWorker = "worker"
	RoleAdmin  = "admin"

	ctxWorkerID = "worker_id"
	ctxRole     = "role"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims identifies the authenticated worker.
type Claims struct {
	WorkerID uint   `json:"worker_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Auth signs and checks worker tokens.
type Auth struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret), ttl: 72 * time.Hour, now: time.Now}
}

func (a *Auth) GenerateToken(workerID uint, role string) (string, error) {
	now := a.now()
	claims := Claims{
		WorkerID: workerID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *Auth) ValidateToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RequireAuth ensures a valid bearer token is present. Websocket upgrades may
// pass it as the token query parameter instead.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.authenticate(c) {
			c.Next()
		}
	}
}

// RequireAuthWithRole ensures the token is valid and carries requiredRole.
func (a *Auth) RequireAuthWithRole(requiredRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.authenticate(c) {
			return
		}
		if Role(c) != requiredRole {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			return
		}
		c.Next()
	}
}

func (a *Auth) authenticate(c *gin.Context) bool {
	tokenString := c.Query("token")
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return false
		}
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
	}
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
		return false
	}

	claims, err := a.ValidateToken(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return false
	}
	c.Set(ctxWorkerID, claims.WorkerID)
	c.Set(ctxRole, claims.Role)
	return true
}

// WorkerID returns the authenticated worker's ID.
func WorkerID(c *gin.Context) uint {
	return c.GetUint(ctxWorkerID)
}

// Role returns the authenticated worker's role.
func Role(c *gin.Context) string {
	return c.GetString(ctxRole)
}

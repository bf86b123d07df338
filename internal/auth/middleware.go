package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Middleware builds the inbound bearer check. When token is set the bearer
// value is compared against it; when jwtSecret is set instead the bearer
// value is validated as an HS256 JWT. With neither configured every request
// passes. A missing or malformed Authorization header is 401; a present but
// wrong credential is 403.
func Middleware(token, jwtSecret string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	jwtSecret = strings.TrimSpace(jwtSecret)

	return func(c *gin.Context) {
		if token == "" && jwtSecret == "" {
			c.Next()
			return
		}

		bearer, err := extractBearerToken(c.Request.Header.Get("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if token != "" {
			if subtle.ConstantTimeCompare([]byte(bearer), []byte(token)) != 1 {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
				return
			}
			c.Next()
			return
		}

		if err := validateJWT(bearer, jwtSecret); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid token"})
			return
		}
		c.Next()
	}
}

func validateJWT(tokenString, secret string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header required")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("token missing")
	}
	return token, nil
}

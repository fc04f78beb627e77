package main

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const sessionSubject = "admin"

// hashPassword returns the bcrypt hash the server compares against. A
// configured hash is used as is.
func hashPassword(auth AuthConfig) ([]byte, error) {
	if auth.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(auth.PasswordHash)); err != nil {
			return nil, fmt.Errorf("invalid ADMIN_PASSWORD_HASH: %w", err)
		}
		return []byte(auth.PasswordHash), nil
	}

	return bcrypt.GenerateFromPassword([]byte(auth.Password), bcrypt.DefaultCost)
}

func (s *Server) checkPassword(password string) bool {
	return bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
}

// issueToken signs a session token for the dashboard.
func (s *Server) issueToken(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sessionSubject,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Auth.TokenTTL)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Auth.JWTSecret))
}

// validateToken validates the token signature, expiry and subject.
func (s *Server) validateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Auth.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return err
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject != sessionSubject {
		return errors.New("invalid token claims")
	}

	return nil
}

// validateJWTFromHeader validates the JWT from the Authorization header
func (s *Server) validateJWTFromHeader(r *http.Request) error {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return errors.New("missing or invalid Authorization header")
	}

	return s.validateToken(strings.TrimPrefix(authHeader, "Bearer "))
}

// requireSession rejects requests without a valid session token. It is
// only installed when AUTH_ENFORCE is on.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.validateJWTFromHeader(r); err != nil {
			writeError(w, r, AuthError(msgUnauthorized, err), "")
			return
		}

		next.ServeHTTP(w, r)
	})
}

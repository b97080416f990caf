package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ObserverCookie — имя cookie с токеном наблюдателя.
const ObserverCookie = "observer_token"

type ctxKey struct{}

// ObserverClaims — JWT наблюдателя живой ленты.
type ObserverClaims struct {
	jwt.RegisteredClaims
}

// IssueObserverToken выпускает HS256-токен для наблюдателя name.
func IssueObserverToken(secret, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("empty observer secret")
	}
	now := time.Now()
	claims := ObserverClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   name,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// SetObserverCookie выпускает токен и кладёт его в cookie.
func SetObserverCookie(w http.ResponseWriter, name, secret string, ttl time.Duration) error {
	token, err := IssueObserverToken(secret, name, ttl)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ObserverCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(ttl),
	})
	return nil
}

// WithObserverAuth требует валидный токен наблюдателя, если secret задан.
// Токен берётся из cookie или заголовка Authorization: Bearer.
func WithObserverAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}
			name, err := parseObserverToken(tokenFromRequest(r), secret)
			if err != nil {
				sugar.Warnw("observer auth failed", "remote", r.RemoteAddr, "error", err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, name)))
		})
	}
}

// GetObserverFromContext возвращает имя наблюдателя из контекста.
func GetObserverFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(ctxKey{}).(string)
	return name, ok
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(ObserverCookie); err == nil {
		return c.Value
	}
	return ""
}

func parseObserverToken(token, secret string) (string, error) {
	if token == "" {
		return "", errors.New("no token")
	}
	claims := &ObserverClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

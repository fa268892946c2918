package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

type contextKey string

const operatorKey contextKey = "operator"

const (
	CookieName           = "session_token"
	DefaultTTL           = 12 * time.Hour
	DefaultOperatorLogin = "operator"
)

var ErrInvalidToken = errors.New("invalid session token")

// Authenv guards the operator-only routes. An empty JWTkey disables the
// guard entirely.
type Authenv struct {
	JWTkey []byte
	// OperatorLogin is the only accepted login name, DefaultOperatorLogin
	// when empty.
	OperatorLogin string
	OperatorHash  []byte
	TTL           time.Duration
	Log           zerolog.Logger
}

type IPRateLimiter struct {
	ips map[string]*rate.Limiter
	mu  sync.Mutex
	r   rate.Limit
	b   int
}

type Loginrequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips: make(map[string]*rate.Limiter),
		r:   r,
		b:   b,
	}
}

func (i *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.ips[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.ips[ip] = limiter
	}
	return limiter
}

// LimitMiddleware rejects clients that exceed their per-address budget.
func (i *IPRateLimiter) LimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !i.getLimiter(clientIP(r)).Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests, try again later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Enabled reports whether requests need a token.
func (env *Authenv) Enabled() bool { return len(env.JWTkey) > 0 }

// IssueToken signs a session token for login.
func (env *Authenv) IssueToken(login string, now time.Time) (string, time.Time, error) {
	ttl := env.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	exp := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": login,
		"iat": now.Unix(),
		"exp": exp.Unix(),
	})
	s, err := token.SignedString(env.JWTkey)
	return s, exp, err
}

// ParseToken returns the login a valid token was issued for.
func (env *Authenv) ParseToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return env.JWTkey, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	login, ok := claims["sub"].(string)
	if !ok || login == "" {
		return "", ErrInvalidToken
	}
	return login, nil
}

func tokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// AuthMiddleware accepts a bearer header or the session cookie and puts the
// operator login into the request context.
func (env *Authenv) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !env.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		raw := tokenFrom(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing session token")
			return
		}
		login, err := env.ParseToken(raw)
		if err != nil {
			env.Log.Debug().Err(err).Str("path", r.URL.Path).Msg("rejected token")
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), operatorKey, login)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Operator returns the authenticated login, if any.
func Operator(ctx context.Context) (string, bool) {
	login, ok := ctx.Value(operatorKey).(string)
	return login, ok
}

func (env *Authenv) addCookie(w http.ResponseWriter, token string, expiration time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  expiration,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// HashPassword produces a value suitable for KERF_OPERATOR_HASH.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func (env *Authenv) operatorLogin() string {
	if env.OperatorLogin == "" {
		return DefaultOperatorLogin
	}
	return env.OperatorLogin
}

// AuthHandler exchanges the operator password for a session token.
func (env *Authenv) AuthHandler(w http.ResponseWriter, r *http.Request) {
	if !env.Enabled() || len(env.OperatorHash) == 0 {
		writeError(w, http.StatusNotFound, "login is not configured")
		return
	}
	var req Loginrequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "login and password required")
		return
	}
	pwErr := bcrypt.CompareHashAndPassword(env.OperatorHash, []byte(req.Password))
	if pwErr != nil || req.Login != env.operatorLogin() {
		env.Log.Info().Str("login", req.Login).Str("ip", clientIP(r)).Msg("failed login")
		writeError(w, http.StatusUnauthorized, "invalid login or password")
		return
	}

	token, exp, err := env.IssueToken(req.Login, time.Now())
	if err != nil {
		env.Log.Error().Err(err).Msg("sign token")
		writeError(w, http.StatusInternalServerError, "could not issue token")
		return
	}
	env.addCookie(w, token, exp)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(loginResponse{Token: token, ExpiresAt: exp.UTC()})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

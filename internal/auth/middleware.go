package auth

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ahc-eng/payflow-api/internal/domain"
)

// Middleware handles authentication for HTTP requests
type Middleware struct {
	tokens *TokenManager
	logger *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(tokens *TokenManager, logger *zap.Logger) *Middleware {
	return &Middleware{tokens: tokens, logger: logger}
}

// Authenticate validates the Bearer token and stores the principal in the
// request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Unauthorized: missing authorization header", http.StatusUnauthorized)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			http.Error(w, "Unauthorized: invalid authorization header format", http.StatusUnauthorized)
			return
		}

		userCtx, err := m.tokens.ValidateToken(parts[1])
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			http.Error(w, "Unauthorized: "+err.Error(), http.StatusUnauthorized)
			return
		}

		m.logger.Debug("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("user_id", userCtx.UserID.String()),
			zap.String("role", string(userCtx.Role)),
			zap.Duration("auth_duration", time.Since(start)),
		)

		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// isReadMethod reports whether the request cannot mutate state.
func isReadMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// RequireRoles gates a route on an explicit role allow-list. Admin is always
// permitted. Chairman is permitted only when chairman is explicitly listed
// and the request is a read; chairman mutations are rejected even on routes
// that list the role.
func (m *Middleware) RequireRoles(roles ...domain.RoleName) func(http.Handler) http.Handler {
	allowed := make(map[domain.RoleName]bool, len(roles))
	chairmanListed := false
	for _, role := range roles {
		allowed[role.Normalized()] = true
		if role == domain.RoleChairman {
			chairmanListed = true
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCtx, ok := FromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			effective := userCtx.EffectiveRole()
			switch {
			case effective == domain.RoleAdmin:
				// Always allowed.
			case effective == domain.RoleChairman:
				if !chairmanListed || !isReadMethod(r.Method) {
					m.denyForbidden(w, r, userCtx)
					return
				}
			case allowed[effective]:
				// Listed role.
			default:
				m.denyForbidden(w, r, userCtx)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) denyForbidden(w http.ResponseWriter, r *http.Request, userCtx *UserContext) {
	m.logger.Warn("role not permitted",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("user_id", userCtx.UserID.String()),
		zap.String("role", string(userCtx.Role)),
	)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

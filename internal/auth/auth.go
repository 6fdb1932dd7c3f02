package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"order-system/internal/config"
	"order-system/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Имена claim'ов, которые выпускает identity-сервис
const (
	claimSubject        = "sub"
	claimNameIdentifier = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	claimEmail          = "email"
	claimRole           = "role"
	claimRoleURI        = "http://schemas.microsoft.com/ws/2008/06/identity/claims/role"
)

var errNoToken = errors.New("no bearer token")

// Identity описывает вызывающего пользователя
type Identity struct {
	UserID uuid.UUID
	Email  string
	Roles  []string
}

// HasRole проверяет наличие роли
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithIdentity кладёт identity в контекст
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext достаёт identity; nil для анонимного запроса
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(contextKey{}).(*Identity)
	return id
}

// Resolver проверяет bearer-токены, подписанные общим HS256 ключом
type Resolver struct {
	key    []byte
	parser *jwt.Parser
	log    *logger.Logger
}

// NewResolver создает resolver по конфигурации
func NewResolver(cfg *config.AuthConfig, log *logger.Logger) *Resolver {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Resolver{
		key:    []byte(cfg.SigningKey),
		parser: jwt.NewParser(opts...),
		log:    log,
	}
}

// Resolve разбирает значение заголовка Authorization
func (r *Resolver) Resolve(header string) (*Identity, error) {
	raw, ok := bearerToken(header)
	if !ok {
		return nil, errNoToken
	}
	if len(r.key) == 0 {
		return nil, errors.New("signing key is not configured")
	}

	claims := jwt.MapClaims{}
	if _, err := r.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return r.key, nil
	}); err != nil {
		return nil, err
	}

	subject := stringClaim(claims, claimNameIdentifier)
	if subject == "" {
		subject = stringClaim(claims, claimSubject)
	}
	userID, err := uuid.Parse(subject)
	if err != nil {
		return nil, errors.New("token subject is not a valid user id")
	}

	roles := listClaim(claims, claimRole)
	roles = append(roles, listClaim(claims, claimRoleURI)...)

	return &Identity{
		UserID: userID,
		Email:  stringClaim(claims, claimEmail),
		Roles:  roles,
	}, nil
}

// Middleware кладёт identity в контекст. Отсутствующий или невалидный токен даёт анонимный запрос.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		id, err := r.Resolve(req.Header.Get("Authorization"))
		if err != nil {
			if !errors.Is(err, errNoToken) && r.log != nil {
				r.log.WithError(err).WithField("path", req.URL.Path).Debug("Ignoring invalid bearer token")
			}
			next.ServeHTTP(w, req)
			return
		}
		next.ServeHTTP(w, req.WithContext(WithIdentity(req.Context(), id)))
	})
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

// listClaim принимает как одиночную строку, так и массив строк
func listClaim(claims jwt.MapClaims, name string) []string {
	switch v := claims[name].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

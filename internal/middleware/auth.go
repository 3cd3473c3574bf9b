package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/zhouzirui/dadmind/backend/internal/model/user"
	"github.com/zhouzirui/dadmind/backend/pkg/utils"
)

type contextKey string

const userKey contextKey = "user"

// TokenParser 解析登录令牌
type TokenParser interface {
	Parse(token string) (user.User, error)
}

// Identify 从 Authorization 头或 token 查询参数解析用户。
// 没有令牌时以 guest 身份继续；令牌无效返回 401。
// EventSource 和 WebSocket 无法设置请求头，因此接受查询参数。
func Identify(parser TokenParser) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			u, err := parser.Parse(token)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// WithUser 把用户放入 context
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom 返回已登录用户
func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey).(user.User)
	return u, ok
}

// OwnerFrom 返回会话归属，未登录时为 guest
func OwnerFrom(ctx context.Context) string {
	if u, ok := UserFrom(ctx); ok && u.ID != "" {
		return u.ID
	}
	return user.GuestID
}

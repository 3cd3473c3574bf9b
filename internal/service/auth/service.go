package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/zhouzirui/dadmind/backend/internal/config"
	"github.com/zhouzirui/dadmind/backend/internal/model/user"
)

var (
	ErrMissingCredentials = errors.New("Vui lòng nhập email và mật khẩu.")
	ErrMissingFields      = errors.New("Vui lòng điền đầy đủ thông tin.")
	ErrInvalidToken       = errors.New("invalid token")
)

const issuer = "dadmind"

// Claims 令牌中携带的用户信息
type Claims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session 登录结果
type Session struct {
	User      user.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Option 自定义 Service
type Option func(*Service)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service 模拟登录：不校验密码，只签发 HS256 令牌
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService 创建认证服务
func NewService(cfg config.AuthConfig, opts ...Option) *Service {
	secret := cfg.Secret
	if secret == "" {
		secret = config.DefaultAuthSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	s := &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UserID 同一邮箱总是得到同一个 ID，会话因此可以跨登录保留
func UserID(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("dadmind:user:"+normalized)).String()
}

// Login 邮箱和密码必填，用户名取邮箱 @ 之前的部分
func (s *Service) Login(email, password string) (Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Session{}, ErrMissingCredentials
	}

	name, _, _ := strings.Cut(email, "@")
	if name == "" {
		name = "User"
	}
	return s.issue(user.User{ID: UserID(email), Name: name, Email: email})
}

// Register 所有字段必填，注册后直接登录
func (s *Service) Register(name, email, password string) (Session, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return Session{}, ErrMissingFields
	}
	return s.issue(user.User{ID: UserID(email), Name: name, Email: email})
}

// Parse 校验令牌并还原用户
func (s *Service) Parse(token string) (user.User, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return user.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return user.User{}, ErrInvalidToken
	}
	return user.User{ID: claims.Subject, Name: claims.Name, Email: claims.Email}, nil
}

func (s *Service) issue(u user.User) (Session, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := Claims{
		Name:  u.Name,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{User: u, Token: token, ExpiresAt: expiresAt.UTC()}, nil
}

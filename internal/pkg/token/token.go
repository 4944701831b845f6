package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 校验失败的两类结果。客户端看到的状态一致，但日志里要能区分
// “签名没问题只是过期了”和“结构非法/被篡改”。
var (
	ErrExpired = errors.New("token expired")
	ErrInvalid = errors.New("token invalid")
)

// Claims 是会话令牌携带的声明：仅 subject（用户 ID）与签发/过期时间。
type Claims struct {
	jwt.RegisteredClaims
}

// Manager 负责无状态会话令牌的签发与校验。
type Manager struct {
	secret []byte
	ttl    time.Duration
}

// NewManager 创建令牌管理器。
func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
	}
}

// Issue 为指定用户签发 HS256 会话令牌。
func (m *Manager) Issue(userID uint) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify 校验令牌并返回 subject 用户 ID 与签发时间。
//
// 过期返回 ErrExpired，其余所有失败（签名、结构、subject 非法）
// 返回 ErrInvalid。
func (m *Manager) Verify(tokenStr string) (uint, time.Time, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, time.Time{}, ErrExpired
		}
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !tok.Valid {
		return 0, time.Time{}, ErrInvalid
	}

	if claims.Subject == "" {
		return 0, time.Time{}, ErrInvalid
	}
	uid, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, time.Time{}, ErrInvalid
	}

	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	return uint(uid), issuedAt, nil
}

// TTL 返回配置的令牌有效期。
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"tourhive/internal/model"
	"tourhive/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

// UserLoader 按 ID 加载存活用户（已停用的用户视为不存在）。
type UserLoader interface {
	FindByID(ctx context.Context, id uint) (*model.User, error)
}

// Auth 校验 Bearer 令牌并把身份 {userID, role} 写入请求上下文。
//
// 所有校验失败对客户端统一表现为 401；过期与非法令牌只在日志里区分。
// 令牌签发时间早于最近一次密码修改的也拒绝，避免旧会话在改密后存活。
func Auth(tokens *token.Manager, users UserLoader, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "you are not logged in, please log in to get access"})
			c.Abort()
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			c.Abort()
			return
		}

		userID, issuedAt, err := tokens.Verify(parts[1])
		if err != nil {
			if errors.Is(err, token.ErrExpired) {
				logger.Debug("auth rejected: token expired", slog.String("path", c.Request.URL.Path))
			} else {
				logger.Debug("auth rejected: token invalid",
					slog.String("path", c.Request.URL.Path),
					slog.String("error", err.Error()))
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), userID)
		if err != nil || user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "the user belonging to this token no longer exists"})
			c.Abort()
			return
		}

		if !user.PasswordChangedAt.IsZero() && issuedAt.Before(user.PasswordChangedAt) {
			logger.Debug("auth rejected: token predates password change", slog.Uint64("user_id", uint64(user.ID)))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "password was changed recently, please log in again"})
			c.Abort()
			return
		}

		c.Set("userID", user.ID)
		c.Set("role", user.Role)
		c.Next()
	}
}

// RequireRoles 构造一个只放行指定角色的授权中间件。
//
// 必须挂在 Auth 之后；allow-list 在构造时固定。
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		roleVal, ok := c.Get("role")
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "you are not logged in, please log in to get access"})
			c.Abort()
			return
		}
		role, ok := roleVal.(model.Role)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "you are not logged in, please log in to get access"})
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "you do not have permission to perform this action"})
			c.Abort()
			return
		}
		c.Next()
	}
}

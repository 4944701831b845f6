package auth

import (
	"time"

	"tourhive/internal/model"

	"github.com/gin-gonic/gin"
)

// userResponse 是去掉密码等敏感字段后的用户视图。
type userResponse struct {
	ID    uint       `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

// sessionResponse 登录/注册/重置成功后的响应体。
type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
}

// sendSession 签发会话令牌并返回给客户端。
//
// 同时把令牌写进名为 jwt 的 httpOnly cookie，
// secure 位只在生产环境开启；响应体里绝不带密码哈希。
func (h *Handler) sendSession(c *gin.Context, user *model.User, status int) {
	tok, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.failInternal(c, "sign token failed", err)
		return
	}

	maxAge := int((time.Duration(h.cookieTTLDays) * 24 * time.Hour).Seconds())
	c.SetCookie("jwt", tok, maxAge, "/", "", h.production, true)

	c.JSON(status, sessionResponse{
		Token: tok,
		User:  toUserResponse(user),
	})
}

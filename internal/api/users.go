package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tourhive/internal/api/auth"
	"tourhive/internal/model"

	"github.com/gin-gonic/gin"
)

type userProfile struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserProfile(u *model.User) userProfile {
	return userProfile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: u.CreatedAt,
	}
}

// handleMe 返回当前登录用户。
//
// GET /users/me
func (s *Server) handleMe(c *gin.Context) {
	user, err := s.userStore.FindByID(c.Request.Context(), getUserID(c))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "the user belonging to this token no longer exists"})
			return
		}
		s.logger.Error("load user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserProfile(user)})
}

// handleUpdateMe 更新当前用户的姓名/邮箱。
//
// 密码永远不走这条路：请求体里一旦出现密码字段直接 400，
// 避免绕过哈希与 passwordChangedAt 轮换逻辑。
//
// PATCH /users/updateMe
func (s *Server) handleUpdateMe(c *gin.Context) {
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, ok := raw["password"]; ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "this route is not for password updates, please use /updateMyPassword"})
		return
	}
	if _, ok := raw["passwordConfirm"]; ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "this route is not for password updates, please use /updateMyPassword"})
		return
	}

	updates := map[string]interface{}{}
	if rawName, ok := raw["name"]; ok {
		var name string
		if err := json.Unmarshal(rawName, &name); err != nil || strings.TrimSpace(name) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
			return
		}
		updates["name"] = strings.TrimSpace(name)
	}
	if rawEmail, ok := raw["email"]; ok {
		var email string
		if err := json.Unmarshal(rawEmail, &email); err != nil || !strings.Contains(email, "@") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		updates["email"] = strings.TrimSpace(strings.ToLower(email))
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	userID := getUserID(c)
	if err := s.db.WithContext(c.Request.Context()).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(updates).Error; err != nil {
		s.logger.Error("update user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}

	user, err := s.userStore.FindByID(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("load user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserProfile(user)})
}

// handleDeleteMe 软删除当前用户（active 置 false）。
//
// 记录保留在库里，后续登录和查询都把它当不存在处理。
//
// DELETE /users/deleteMe
func (s *Server) handleDeleteMe(c *gin.Context) {
	if err := s.db.WithContext(c.Request.Context()).Model(&model.User{}).
		Where("id = ?", getUserID(c)).
		Update("active", false).Error; err != nil {
		s.logger.Error("deactivate user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate user failed"})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

// handleListUsers 管理员查看用户列表（只含存活用户）。
//
// GET /users
func (s *Server) handleListUsers(c *gin.Context) {
	users := []model.User{}
	if err := s.db.WithContext(c.Request.Context()).
		Where("active = ?", true).
		Order("id ASC").
		Find(&users).Error; err != nil {
		s.logger.Error("list users failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list users failed"})
		return
	}

	out := make([]userProfile, 0, len(users))
	for i := range users {
		out = append(out, toUserProfile(&users[i]))
	}
	c.JSON(http.StatusOK, gin.H{"results": len(out), "users": out})
}

// handleGetUser 管理员查看单个用户。
//
// GET /users/:id
func (s *Server) handleGetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := s.userStore.FindByID(c.Request.Context(), uint(id))
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no user found with that id"})
			return
		}
		s.logger.Error("get user failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get user failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserProfile(user)})
}

type adminUpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Role  *string `json:"role"`
}

// handleUpdateUser 管理员更新用户资料/角色（不含密码）。
//
// PATCH /users/:id
func (s *Server) handleUpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid name"})
			return
		}
		updates["name"] = name
	}
	if req.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*req.Email))
		if !strings.Contains(email, "@") {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
			return
		}
		updates["email"] = email
	}
	if req.Role != nil {
		role := model.Role(*req.Role)
		if !role.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		updates["role"] = role
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no updates"})
		return
	}

	res := s.db.WithContext(c.Request.Context()).Model(&model.User{}).
		Where("id = ? AND active = ?", uint(id), true).
		Updates(updates)
	if res.Error != nil {
		s.logger.Error("update user failed", slog.String("error", res.Error.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update user failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no user found with that id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

// handleDeleteUser 管理员停用用户。
//
// DELETE /users/:id
func (s *Server) handleDeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if uint(id) == getUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "use /users/deleteMe to deactivate your own account"})
		return
	}

	res := s.db.WithContext(c.Request.Context()).Model(&model.User{}).
		Where("id = ? AND active = ?", uint(id), true).
		Update("active", false)
	if res.Error != nil {
		s.logger.Error("deactivate user failed", slog.String("error", res.Error.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "deactivate user failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no user found with that id"})
		return
	}
	c.JSON(http.StatusNoContent, nil)
}

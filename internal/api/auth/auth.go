package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tourhive/internal/config"
	"tourhive/internal/model"
	"tourhive/internal/pkg/apperror"
	"tourhive/internal/pkg/metrics"
	"tourhive/internal/pkg/notify"
	"tourhive/internal/pkg/password"
	"tourhive/internal/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/go-sql-driver/mysql"
)

// Handler 提供注册、登录与密码生命周期接口。
type Handler struct {
	store         Store
	hasher        *password.Hasher
	tokens        *token.Manager
	mailer        notify.Mailer
	logger        *slog.Logger
	production    bool
	cookieTTLDays int
	resetTokenTTL time.Duration
	emailTimeout  time.Duration
}

// NewHandler 创建 Auth Handler。
func NewHandler(store Store, hasher *password.Hasher, tokens *token.Manager, mailer notify.Mailer, cfg *config.Config, logger *slog.Logger) *Handler {
	return &Handler{
		store:         store,
		hasher:        hasher,
		tokens:        tokens,
		mailer:        mailer,
		logger:        logger,
		production:    cfg.IsProduction(),
		cookieTTLDays: cfg.Security.CookieTTLDays,
		resetTokenTTL: cfg.Security.ResetTokenTTL,
		emailTimeout:  cfg.Email.SendTimeout,
	}
}

type signupRequest struct {
	Name            string `json:"name" binding:"required"`
	Email           string `json:"email" binding:"required,email"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

type updatePasswordRequest struct {
	PasswordCurrent string `json:"passwordCurrent" binding:"required"`
	Password        string `json:"password" binding:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" binding:"required"`
}

// Signup 创建新用户并直接登录。
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Password != req.PasswordConfirm {
		metrics.SignupTotal.WithLabelValues("validation").Inc()
		h.fail(c, apperror.BadRequest("passwords are not the same"))
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	hash, err := h.hasher.Hash(c.Request.Context(), req.Password)
	if err != nil {
		h.failInternal(c, "hash password failed", err)
		return
	}

	user := model.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    email,
		Password: hash,
		Role:     model.RoleUser,
		// 减一秒，抵消令牌 iat 的秒级截断，避免刚注册就被判定为旧令牌
		PasswordChangedAt: time.Now().Add(-time.Second),
		Active:            true,
	}
	if err := h.store.Create(c.Request.Context(), &user); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			metrics.SignupTotal.WithLabelValues("duplicate").Inc()
			h.fail(c, apperror.BadRequest("email already in use"))
			return
		}
		h.failInternal(c, "create user failed", err)
		return
	}

	metrics.SignupTotal.WithLabelValues("ok").Inc()
	h.logger.Info("user signed up", slog.String("email", email))
	h.sendSession(c, &user, http.StatusCreated)
}

// Login 校验凭证并签发会话令牌。
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.store.FindByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.LoginTotal.WithLabelValues("unknown_email").Inc()
			h.fail(c, apperror.ErrInvalidCredentials)
			return
		}
		h.failInternal(c, "query user failed", err)
		return
	}

	ok, err := h.hasher.Verify(c.Request.Context(), req.Password, user.Password)
	if err != nil {
		h.failInternal(c, "verify password failed", err)
		return
	}
	if !ok {
		metrics.LoginTotal.WithLabelValues("wrong_password").Inc()
		h.fail(c, apperror.ErrInvalidCredentials)
		return
	}

	metrics.LoginTotal.WithLabelValues("ok").Inc()
	h.logger.Info("user logged in", slog.String("email", email), slog.String("role", string(user.Role)))
	h.sendSession(c, user, http.StatusOK)
}

// ForgotPassword 生成一次性重置令牌并邮寄给用户。
//
// 令牌明文只出现在邮件里；库里只有哈希和过期时间。
// 邮件发送失败时必须清掉刚写入的重置状态再报错，
// 不允许用户没收到令牌、库里却留着一个有效的重置入口。
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))

	user, err := h.store.FindByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.PasswordResetRequestTotal.WithLabelValues("unknown_email").Inc()
			h.fail(c, apperror.ErrEmailNotFound)
			return
		}
		h.failInternal(c, "query user failed", err)
		return
	}

	plain, tokenHash, err := newResetToken()
	if err != nil {
		h.failInternal(c, "generate reset token failed", err)
		return
	}

	expiresAt := time.Now().Add(h.resetTokenTTL)
	if err := h.store.ArmReset(c.Request.Context(), user.ID, tokenHash, expiresAt); err != nil {
		h.failInternal(c, "save reset token failed", err)
		return
	}

	resetURL := h.resetURL(c, plain)
	body := fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and "+
		"password confirmation to: %s\nIf you didn't forget your password, please ignore this email!", resetURL)

	ctx, cancel := contextWithTimeout(c, h.emailTimeout)
	defer cancel()
	if err := h.mailer.Send(ctx, user.Email, "Your password reset token (valid for 10 min)", body); err != nil {
		// 回滚：用户没拿到令牌，重置状态不能保持武装
		if clearErr := h.store.ClearReset(c.Request.Context(), user.ID); clearErr != nil {
			h.logger.Error("clear reset token failed",
				slog.Uint64("user_id", uint64(user.ID)),
				slog.String("error", clearErr.Error()))
		}
		metrics.PasswordResetRequestTotal.WithLabelValues("delivery_error").Inc()
		h.logger.Warn("send reset email failed", slog.String("email", email), slog.String("error", err.Error()))
		h.fail(c, apperror.ErrEmailDelivery)
		return
	}

	metrics.PasswordResetRequestTotal.WithLabelValues("ok").Inc()
	h.logger.Info("reset token sent", slog.String("email", email))
	c.JSON(http.StatusOK, gin.H{"message": "token sent to email"})
}

// ResetPassword 消费重置令牌并轮换密码。
//
// 轮换密码 + 清除重置字段是一条原子更新；令牌已被更新的请求
// 覆盖、已消费或已过期时统一返回 400。
func (h *Handler) ResetPassword(c *gin.Context) {
	plainToken := c.Param("token")
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tokenHash := hashResetToken(plainToken)
	now := time.Now()

	user, err := h.store.FindByValidReset(c.Request.Context(), tokenHash, now)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			metrics.PasswordResetConsumedTotal.WithLabelValues("invalid").Inc()
			h.fail(c, apperror.ErrResetTokenInvalid)
			return
		}
		h.failInternal(c, "query reset token failed", err)
		return
	}

	if req.Password != req.PasswordConfirm {
		h.fail(c, apperror.BadRequest("passwords are not the same"))
		return
	}

	hash, err := h.hasher.Hash(c.Request.Context(), req.Password)
	if err != nil {
		h.failInternal(c, "hash password failed", err)
		return
	}

	changedAt := time.Now().Add(-time.Second)
	ok, err := h.store.ConsumeReset(c.Request.Context(), user.ID, tokenHash, hash, changedAt, now)
	if err != nil {
		h.failInternal(c, "consume reset token failed", err)
		return
	}
	if !ok {
		// 查到之后、消费之前令牌被新的重置请求覆盖了
		metrics.PasswordResetConsumedTotal.WithLabelValues("superseded").Inc()
		h.fail(c, apperror.ErrResetTokenInvalid)
		return
	}

	metrics.PasswordResetConsumedTotal.WithLabelValues("ok").Inc()
	h.logger.Info("password reset", slog.String("email", user.Email))
	h.sendSession(c, user, http.StatusOK)
}

// UpdatePassword 已登录用户修改自己的密码。
func (h *Handler) UpdatePassword(c *gin.Context) {
	userID := currentUserID(c)
	if userID == 0 {
		h.fail(c, apperror.ErrUnauthenticated)
		return
	}

	var req updatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Password != req.PasswordConfirm {
		h.fail(c, apperror.BadRequest("passwords are not the same"))
		return
	}

	user, err := h.store.FindByID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.fail(c, apperror.ErrUnauthenticated)
			return
		}
		h.failInternal(c, "query user failed", err)
		return
	}

	ok, err := h.hasher.Verify(c.Request.Context(), req.PasswordCurrent, user.Password)
	if err != nil {
		h.failInternal(c, "verify password failed", err)
		return
	}
	if !ok {
		h.fail(c, apperror.ErrWrongPassword)
		return
	}

	hash, err := h.hasher.Hash(c.Request.Context(), req.Password)
	if err != nil {
		h.failInternal(c, "hash password failed", err)
		return
	}

	changedAt := time.Now().Add(-time.Second)
	if err := h.store.UpdatePassword(c.Request.Context(), user.ID, hash, changedAt); err != nil {
		h.failInternal(c, "update password failed", err)
		return
	}
	user.Password = hash
	user.PasswordChangedAt = changedAt

	h.logger.Info("password updated", slog.String("email", user.Email))
	h.sendSession(c, user, http.StatusOK)
}

// fail 把 operational 错误按状态码返回，其余一律 500。
func (h *Handler) fail(c *gin.Context, err error) {
	if appErr, ok := apperror.AsError(err); ok && appErr.Operational {
		c.JSON(appErr.Status, gin.H{"error": appErr.Message})
		return
	}
	h.failInternal(c, "unexpected error", err)
}

// failInternal 记录完整错误，对外只回不透明的 500。
func (h *Handler) failInternal(c *gin.Context, msg string, err error) {
	h.logger.Error(msg,
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "something went very wrong"})
}

// resetURL 用当前请求的 host 拼接重置链接。
func (h *Handler) resetURL(c *gin.Context, plainToken string) string {
	scheme := "http"
	if h.production || c.Request.TLS != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/api/v1/users/resetPassword/%s", scheme, c.Request.Host, plainToken)
}

func contextWithTimeout(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), d)
}

func currentUserID(c *gin.Context) uint {
	v, ok := c.Get("userID")
	if !ok {
		return 0
	}
	id, ok := v.(uint)
	if !ok {
		return 0
	}
	return id
}

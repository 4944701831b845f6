package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"tourhive/internal/model"
	"tourhive/internal/pkg/token"

	"github.com/gin-gonic/gin"
)

type fakeUserLoader struct {
	users map[uint]*model.User
}

func (f *fakeUserLoader) FindByID(ctx context.Context, id uint) (*model.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, context.Canceled // 任意错误，中间件只关心非 nil
}

func newAuthRouter(t *testing.T, tokens *token.Manager, users *fakeUserLoader) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := gin.New()
	r.GET("/protected", Auth(tokens, users, logger), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userID": c.GetUint("userID")})
	})
	return r
}

func doGet(r *gin.Engine, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth_MissingHeader(t *testing.T) {
	tokens := token.NewManager("secret", time.Hour)
	r := newAuthRouter(t, tokens, &fakeUserLoader{})

	if w := doGet(r, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuth_BadScheme(t *testing.T) {
	tokens := token.NewManager("secret", time.Hour)
	r := newAuthRouter(t, tokens, &fakeUserLoader{})

	if w := doGet(r, "Basic abc123"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuth_TamperedToken(t *testing.T) {
	tokens := token.NewManager("secret", time.Hour)
	r := newAuthRouter(t, tokens, &fakeUserLoader{})

	tok, err := tokens.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := doGet(r, "Bearer "+tok+"x"); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuth_DeletedUser(t *testing.T) {
	tokens := token.NewManager("secret", time.Hour)
	// 令牌有效，但用户已不存在（或被停用）
	r := newAuthRouter(t, tokens, &fakeUserLoader{users: map[uint]*model.User{}})

	tok, err := tokens.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := doGet(r, "Bearer "+tok); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestAuth_TokenPredatesPasswordChange(t *testing.T) {
	tokens := token.NewManager("secret", time.Hour)
	users := &fakeUserLoader{users: map[uint]*model.User{
		1: {
			ID:   1,
			Role: model.RoleUser,
			// 密码在未来改过：任何现在签发的令牌都算旧令牌
			PasswordChangedAt: time.Now().Add(time.Hour),
		},
	}}
	r := newAuthRouter(t, tokens, users)

	tok, err := tokens.Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if w := doGet(r, "Bearer "+tok); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for token issued before password change, got %d", w.Code)
	}
}

func TestAuth_ValidTokenSetsIdentity(t *testing.T) {
	tokens := token.NewManager("secret", time.Hour)
	users := &fakeUserLoader{users: map[uint]*model.User{
		7: {
			ID:                7,
			Role:              model.RoleGuide,
			PasswordChangedAt: time.Now().Add(-time.Hour),
		},
	}}

	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := gin.New()

	var gotID uint
	var gotRole model.Role
	r.GET("/protected", Auth(tokens, users, logger), func(c *gin.Context) {
		gotID = c.GetUint("userID")
		if v, ok := c.Get("role"); ok {
			gotRole, _ = v.(model.Role)
		}
		c.Status(http.StatusOK)
	})

	tok, err := tokens.Issue(7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w := doGet(r, "Bearer "+tok)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if gotID != 7 {
		t.Errorf("expected userID 7, got %d", gotID)
	}
	if gotRole != model.RoleGuide {
		t.Errorf("expected role guide, got %q", gotRole)
	}
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(role interface{}, allowed ...model.Role) *gin.Engine {
		r := gin.New()
		r.GET("/admin", func(c *gin.Context) {
			if role != nil {
				c.Set("role", role)
			}
			c.Next()
		}, RequireRoles(allowed...), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		return r
	}

	get := func(r *gin.Engine) int {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	// 未认证（上下文没有身份）→ 401
	if code := get(newRouter(nil, model.RoleAdmin)); code != http.StatusUnauthorized {
		t.Errorf("missing identity: expected 401, got %d", code)
	}
	// 角色不在 allow-list → 403
	if code := get(newRouter(model.RoleUser, model.RoleAdmin)); code != http.StatusForbidden {
		t.Errorf("wrong role: expected 403, got %d", code)
	}
	// 角色匹配 → 放行
	if code := get(newRouter(model.RoleAdmin, model.RoleAdmin, model.RoleLeadGuide)); code != http.StatusOK {
		t.Errorf("allowed role: expected 200, got %d", code)
	}
}

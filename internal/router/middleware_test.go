package router

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/constants"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/repository"
	"github.com/wldmarket/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": getRequestID(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if resp := strings.TrimSpace(generated); resp == "" {
		t.Fatalf("generated request id should not be blank")
	}
}

func decodeStatusCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode
}

func setupMiddlewareDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_middleware_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Admin{}, &models.User{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

func TestAdminJWTAuthMiddlewareMissingSecret(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(AdminJWTAuthMiddleware("", nil))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if code := decodeStatusCode(t, w); code != 401 {
		t.Fatalf("status_code want 401 got %d", code)
	}
}

func TestAdminJWTAuthMiddlewareRejectsRevokedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupMiddlewareDB(t)
	adminRepo := repository.NewAdminRepository(db)
	auth := service.NewAuthService(config.JWTConfig{SecretKey: "admin-secret", ExpireHours: 1}, adminRepo)
	admin, err := auth.CreateAdmin("ops", "password123", false)
	if err != nil {
		t.Fatalf("create admin failed: %v", err)
	}
	token, _, err := auth.GenerateJWT(admin)
	if err != nil {
		t.Fatalf("generate jwt failed: %v", err)
	}

	r := gin.New()
	r.Use(AdminJWTAuthMiddleware("admin-secret", adminRepo))
	r.GET("/admin/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin_id": c.GetUint("admin_id")})
	})

	call := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w
	}

	w := call()
	if !strings.Contains(w.Body.String(), fmt.Sprintf(`"admin_id":%d`, admin.ID)) {
		t.Fatalf("expected admin id in context, got %s", w.Body.String())
	}

	if err := auth.ChangePassword(admin.ID, "password123", "password456"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if code := decodeStatusCode(t, call()); code != 401 {
		t.Fatalf("revoked token should be rejected, got %d", code)
	}
}

func TestUserAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := setupMiddlewareDB(t)
	userRepo := repository.NewUserRepository(db)
	identity := service.NewIdentityService(config.JWTConfig{SecretKey: "user-secret"})

	externalID := "ext-alice"
	if err := db.Create(&models.User{ExternalID: &externalID, InviteCode: "ALICE234", Status: constants.UserStatusActive}).Error; err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	r := gin.New()
	r.Use(IdentityMiddleware(identity), UserAuthMiddleware(userRepo))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetUint("user_id")})
	})

	call := func(header string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		return w
	}

	if code := decodeStatusCode(t, call("")); code != 401 {
		t.Fatalf("missing header want 401 got %d", code)
	}
	if code := decodeStatusCode(t, call("Token abc")); code != 401 {
		t.Fatalf("invalid header want 401 got %d", code)
	}

	token, _, err := identity.Issue(externalID, "Alice")
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	w := call("Bearer " + token)
	if !strings.Contains(w.Body.String(), `"user_id":1`) {
		t.Fatalf("expected registered user, got %s", w.Body.String())
	}

	stranger, _, err := identity.Issue("ext-stranger", "")
	if err != nil {
		t.Fatalf("issue token failed: %v", err)
	}
	if code := decodeStatusCode(t, call("Bearer "+stranger)); code != 403 {
		t.Fatalf("unregistered user want 403 got %d", code)
	}

	if err := db.Model(&models.User{}).Where("external_id = ?", externalID).Update("status", constants.UserStatusDisabled).Error; err != nil {
		t.Fatalf("disable user failed: %v", err)
	}
	if code := decodeStatusCode(t, call("Bearer "+token)); code != 403 {
		t.Fatalf("disabled user want 403 got %d", code)
	}
}

package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testSecret はテスト用のJWTシークレット。
const testSecret = "test-secret-key-for-unit-tests"

// decodeEnvelope はレスポンスの {success, message} を取り出す。
func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) (bool, string) {
	t.Helper()

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("レスポンスボディのパースに失敗: %v", err)
	}
	return body.Success, body.Message
}

// newAuthRouter はTokenAuthを適用したルーターを生成する。
// ハンドラーはコンテキストのユーザー情報とボディをそのまま返す。
func newAuthRouter() *gin.Engine {
	router := gin.New()
	router.Use(TokenAuth(testSecret))
	handler := func(c *gin.Context) {
		body, _ := io.ReadAll(c.Request.Body)
		c.JSON(http.StatusOK, gin.H{
			"user_id":   GetUserID(c),
			"user_name": GetUserName(c),
			"admin":     IsAdmin(c),
			"body":      string(body),
		})
	}
	router.GET("/test", handler)
	router.POST("/test", handler)
	return router
}

// mustGenerate はテスト用のトークンを生成する。
func mustGenerate(t *testing.T, secret, userID, name string, admin bool) string {
	t.Helper()

	tokenStr, err := GenerateJWT(secret, userID, name, admin)
	if err != nil {
		t.Fatalf("GenerateJWT()でエラーが発生: %v", err)
	}
	return tokenStr
}

// TestGenerateJWT はGenerateJWT関数を検証する。
func TestGenerateJWT(t *testing.T) {
	t.Parallel()

	t.Run("正常にJWTトークンを生成できること", func(t *testing.T) {
		t.Parallel()

		tokenStr := mustGenerate(t, testSecret, "user-123", "Admin User", true)

		claims, err := ParseJWT(testSecret, tokenStr)
		if err != nil {
			t.Fatalf("ParseJWT()でエラーが発生: %v", err)
		}
		if claims.Subject != "user-123" {
			t.Errorf("Subject = %q, want %q", claims.Subject, "user-123")
		}
		if claims.Name != "Admin User" {
			t.Errorf("Name = %q, want %q", claims.Name, "Admin User")
		}
		if !claims.Admin {
			t.Error("Adminがtrueであるべき")
		}
		if claims.Issuer != "gallery-gateway" {
			t.Errorf("Issuer = %q, want %q", claims.Issuer, "gallery-gateway")
		}
	})

	t.Run("トークンの有効期限が24時間後であること", func(t *testing.T) {
		t.Parallel()

		before := time.Now()
		claims, err := ParseJWT(testSecret, mustGenerate(t, testSecret, "user-exp", "exp", false))
		if err != nil {
			t.Fatalf("ParseJWT()でエラーが発生: %v", err)
		}

		expectedExpiry := before.Add(24 * time.Hour)
		// 有効期限が24時間後の前後1分以内であること
		if claims.ExpiresAt.Time.Before(expectedExpiry.Add(-1 * time.Minute)) {
			t.Errorf("ExpiresAt = %v, 期待する最小値: %v", claims.ExpiresAt.Time, expectedExpiry.Add(-1*time.Minute))
		}
		if claims.ExpiresAt.Time.After(expectedExpiry.Add(1 * time.Minute)) {
			t.Errorf("ExpiresAt = %v, 期待する最大値: %v", claims.ExpiresAt.Time, expectedExpiry.Add(1*time.Minute))
		}
		if claims.IssuedAt == nil {
			t.Error("IssuedAtが設定されていない")
		}
	})

	t.Run("署名アルゴリズムがHS256であること", func(t *testing.T) {
		t.Parallel()

		tokenStr := mustGenerate(t, testSecret, "user-alg", "alg", false)
		token, _, err := new(jwt.Parser).ParseUnverified(tokenStr, &JWTClaims{})
		if err != nil {
			t.Fatalf("トークンのパースに失敗: %v", err)
		}
		if token.Method.Alg() != "HS256" {
			t.Errorf("署名アルゴリズム = %q, want %q", token.Method.Alg(), "HS256")
		}
	})
}

// TestParseJWT はParseJWT関数を検証する。
func TestParseJWT(t *testing.T) {
	t.Parallel()

	t.Run("異なるシークレットでは検証に失敗すること", func(t *testing.T) {
		t.Parallel()

		tokenStr := mustGenerate(t, "different-secret", "user-diff", "diff", false)
		if _, err := ParseJWT(testSecret, tokenStr); err == nil {
			t.Fatal("異なるシークレットでの検証がエラーを返すべき")
		}
	})

	t.Run("期限切れトークンは検証に失敗すること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-25 * time.Hour)),
				Issuer:    "gallery-gateway",
			},
			Name: "expired",
		}
		tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		if _, err := ParseJWT(testSecret, tokenStr); err == nil {
			t.Fatal("期限切れトークンでエラーが返されるべき")
		}
	})

	t.Run("発行者が異なるトークンは検証に失敗すること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    "someone-else",
			},
		}
		tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		if _, err := ParseJWT(testSecret, tokenStr); err == nil {
			t.Fatal("発行者が異なるトークンでエラーが返されるべき")
		}
	})

	t.Run("HS256以外のアルゴリズムは拒否されること", func(t *testing.T) {
		t.Parallel()

		claims := JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				Issuer:    "gallery-gateway",
			},
		}
		tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("トークンの署名に失敗: %v", err)
		}

		if _, err := ParseJWT(testSecret, tokenStr); err == nil {
			t.Fatal("HS512のトークンでエラーが返されるべき")
		}
	})
}

// TestTokenAuth はTokenAuthミドルウェアを検証する。
func TestTokenAuth(t *testing.T) {
	t.Parallel()

	t.Run("x-access-tokenヘッダーのトークンで認証できること", func(t *testing.T) {
		t.Parallel()

		tokenStr := mustGenerate(t, testSecret, "user-ok", "alice", true)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("x-access-token", tokenStr)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["user_id"] != "user-ok" {
			t.Errorf("user_id = %v, want %q", body["user_id"], "user-ok")
		}
		if body["user_name"] != "alice" {
			t.Errorf("user_name = %v, want %q", body["user_name"], "alice")
		}
		if body["admin"] != true {
			t.Errorf("admin = %v, want true", body["admin"])
		}
	})

	t.Run("JSONボディのtokenで認証でき後続がボディを読めること", func(t *testing.T) {
		t.Parallel()

		tokenStr := mustGenerate(t, testSecret, "user-body", "bob", false)
		payload := `{"token":"` + tokenStr + `","title":"x"}`

		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["body"] != payload {
			t.Errorf("後続のハンドラーが受け取ったボディ = %v, want %q", body["body"], payload)
		}
	})

	t.Run("フォームボディのtokenで認証できること", func(t *testing.T) {
		t.Parallel()

		tokenStr := mustGenerate(t, testSecret, "user-form", "carol", false)
		form := url.Values{"token": {tokenStr}}

		req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("クエリのtokenで認証できること", func(t *testing.T) {
		t.Parallel()

		tokenStr := mustGenerate(t, testSecret, "user-query", "dave", false)

		req := httptest.NewRequest(http.MethodGet, "/test?token="+url.QueryEscape(tokenStr), nil)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("Bearerトークンで認証できること", func(t *testing.T) {
		t.Parallel()

		tokenStr := mustGenerate(t, testSecret, "user-bearer", "erin", false)

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("Authorization", "Bearer "+tokenStr)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("ヘッダーのトークンがクエリより優先されること", func(t *testing.T) {
		t.Parallel()

		valid := mustGenerate(t, testSecret, "user-header", "frank", false)

		req := httptest.NewRequest(http.MethodGet, "/test?token=invalid", nil)
		req.Header.Set("x-access-token", valid)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("トークンが無い場合403とNo token providedが返ること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
		success, message := decodeEnvelope(t, w)
		if success {
			t.Error("successがfalseであるべき")
		}
		if message != "No token provided." {
			t.Errorf("message = %q, want %q", message, "No token provided.")
		}
	})

	t.Run("無効なトークンで403とFailed to authenticate tokenが返ること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("x-access-token", "invalid-token-string")
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
		success, message := decodeEnvelope(t, w)
		if success {
			t.Error("successがfalseであるべき")
		}
		if message != "Failed to authenticate token." {
			t.Errorf("message = %q, want %q", message, "Failed to authenticate token.")
		}
	})

	t.Run("異なるシークレットで署名されたトークンで403が返ること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set("x-access-token", mustGenerate(t, "different-secret", "user-diff", "diff", true))
		w := httptest.NewRecorder()
		newAuthRouter().ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
	})
}

// TestRequireAdmin はRequireAdminミドルウェアを検証する。
func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	newRouter := func() *gin.Engine {
		router := gin.New()
		router.Use(TokenAuth(testSecret), RequireAdmin())
		router.GET("/admin", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true})
		})
		return router
	}

	t.Run("管理者トークンは通過できること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("x-access-token", mustGenerate(t, testSecret, "u1", "root", true))
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("一般ユーザーのトークンは403になること", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("x-access-token", mustGenerate(t, testSecret, "u2", "guest", false))
		w := httptest.NewRecorder()
		newRouter().ServeHTTP(w, req)

		if w.Code != http.StatusForbidden {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusForbidden)
		}
		if _, message := decodeEnvelope(t, w); message != "Admin privileges required." {
			t.Errorf("message = %q", message)
		}
	})
}

// TestContextGetters はコンテキストからの取得関数を検証する。
func TestContextGetters(t *testing.T) {
	t.Parallel()

	t.Run("コンテキストに設定された値を取得できること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", "user-get-id")
		c.Set("user_name", "alice")
		c.Set("admin", true)

		if got := GetUserID(c); got != "user-get-id" {
			t.Errorf("GetUserID() = %q, want %q", got, "user-get-id")
		}
		if got := GetUserName(c); got != "alice" {
			t.Errorf("GetUserName() = %q, want %q", got, "alice")
		}
		if !IsAdmin(c) {
			t.Error("IsAdmin()がtrueを返すべき")
		}
	})

	t.Run("未設定の場合はゼロ値が返ること", func(t *testing.T) {
		t.Parallel()

		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", 12345)

		if got := GetUserID(c); got != "" {
			t.Errorf("GetUserID() = %q, want empty string", got)
		}
		if got := GetUserName(c); got != "" {
			t.Errorf("GetUserName() = %q, want empty string", got)
		}
		if IsAdmin(c) {
			t.Error("IsAdmin()がfalseを返すべき")
		}
	})
}

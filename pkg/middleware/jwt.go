package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims はJWTトークンのクレーム（ペイロード）を表す。
// subにユーザーIDを持ち、ユーザー名と管理者フラグを伝播する。
type JWTClaims struct {
	jwt.RegisteredClaims
	// Name はユーザー名。
	Name string `json:"name"`
	// Admin は管理者フラグ。
	Admin bool `json:"admin"`
}

const (
	// tokenIssuer はトークンの発行者。
	tokenIssuer = "gallery-gateway"
	// tokenTTL はトークンの有効期間。
	tokenTTL = 24 * time.Hour
	// headerKeyAccessToken はトークンを受け取るHTTPヘッダーキー。
	headerKeyAccessToken = "x-access-token"
	// tokenField はボディとクエリでトークンを受け取るフィールド名。
	tokenField = "token"
	// maxTokenBody はトークン探索のために読むJSONボディの最大バイト数。
	maxTokenBody = 1 << 20
)

// コンテキストキー。
const (
	contextKeyUserID   = "user_id"
	contextKeyUserName = "user_name"
	contextKeyAdmin    = "admin"
)

// 認証失敗時のメッセージ。
const (
	msgNoToken      = "No token provided."
	msgInvalidToken = "Failed to authenticate token."
	msgAdminOnly    = "Admin privileges required."
)

// GenerateJWT はユーザー情報からJWTトークンを生成する。
// 認証APIがパスワード照合に成功した後に呼び出す。
func GenerateJWT(secret, userID, name string, admin bool) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
		Name:  name,
		Admin: admin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ParseJWT はトークンを検証し、クレームを返す。
// HS256以外の署名、異なる発行者、期限切れのトークンはエラーになる。
func ParseJWT(secret, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("JWTトークンの検証に失敗: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("JWTトークンが無効")
	}
	return claims, nil
}

// TokenAuth はJWTトークンを検証するGinミドルウェアを返す。
// トークンは x-access-token ヘッダー、ボディの token フィールド、クエリの token、
// Authorization: Bearer の順に探す。見つからない場合と検証に失敗した場合は403を返す。
// 検証に成功した場合、コンテキストに "user_id"、"user_name"、"admin" を設定する。
func TokenAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			abortWithMessage(c, http.StatusForbidden, msgNoToken)
			return
		}

		claims, err := ParseJWT(secret, tokenString)
		if err != nil {
			abortWithMessage(c, http.StatusForbidden, msgInvalidToken)
			return
		}

		c.Set(contextKeyUserID, claims.Subject)
		c.Set(contextKeyUserName, claims.Name)
		c.Set(contextKeyAdmin, claims.Admin)
		c.Next()
	}
}

// RequireAdmin は管理者トークン以外を403で拒否するGinミドルウェアを返す。
// TokenAuthの後に適用する。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			abortWithMessage(c, http.StatusForbidden, msgAdminOnly)
			return
		}
		c.Next()
	}
}

// extractToken はリクエストからトークン文字列を取り出す。
func extractToken(c *gin.Context) string {
	if t := c.GetHeader(headerKeyAccessToken); t != "" {
		return t
	}
	if t := tokenFromBody(c); t != "" {
		return t
	}
	if t := c.Query(tokenField); t != "" {
		return t
	}
	if t, found := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); found {
		return strings.TrimSpace(t)
	}
	return ""
}

// tokenFromBody はボディの token フィールドを返す。
// JSONボディは読み取った後に元に戻し、後続のハンドラーが再度読めるようにする。
func tokenFromBody(c *gin.Context) string {
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return ""
	}

	switch c.ContentType() {
	case gin.MIMEJSON:
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxTokenBody))
		if err != nil {
			return ""
		}
		c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), c.Request.Body))

		var body struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			return ""
		}
		return body.Token
	case gin.MIMEPOSTForm, gin.MIMEMultipartPOSTForm:
		return c.PostForm(tokenField)
	default:
		return ""
	}
}

// abortWithMessage は {success:false, message} の形式でレスポンスを返して処理を中断する。
func abortWithMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"message": message,
	})
}

// GetUserID はGinコンテキストからユーザーIDを取得する。
// TokenAuthミドルウェアが事前に適用されている必要がある。
func GetUserID(c *gin.Context) string {
	return c.GetString(contextKeyUserID)
}

// GetUserName はGinコンテキストからユーザー名を取得する。
func GetUserName(c *gin.Context) string {
	return c.GetString(contextKeyUserName)
}

// IsAdmin はトークンの持ち主が管理者かどうかを返す。
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(contextKeyAdmin)
}

package gateway

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/gallery/internal/store"
	"github.com/nao1215/gallery/pkg/event"
	"github.com/nao1215/gallery/pkg/middleware"
	"github.com/nao1215/gallery/pkg/secret"
)

// サンプル管理者ユーザー。
const (
	sampleUserName     = "Admin User"
	sampleUserPassword = "password"
)

// 認証失敗の理由。
const (
	reasonUserNotFound  = "user_not_found"
	reasonWrongPassword = "wrong_password"
)

// authenticateRequest は /api/authenticate のリクエスト。
type authenticateRequest struct {
	Name     string `json:"name" form:"name"`
	Password string `json:"password" form:"password"`
}

// authSetupRequest は /authsetup のリクエスト。
type authSetupRequest struct {
	AdminToken string `json:"admintoken" form:"admintoken"`
	Name       string `json:"name" form:"name"`
	Password   string `json:"password" form:"password"`
}

// userResponse はユーザー一覧の要素。パスワードは含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Admin     bool      `json:"admin"`
	CreatedAt time.Time `json:"created_at"`
}

// handleSetup はサンプル管理者ユーザーを作成するハンドラを返す。
func (s *Server) handleSetup() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.cfg.Auth.EnableSetup {
			respondError(c, http.StatusNotFound, "Not found.")
			return
		}

		status, err := s.createAdmin(c, sampleUserName, sampleUserPassword, "setup")
		if err != nil {
			if status == http.StatusConflict {
				respondError(c, status, "User already exists.")
				return
			}
			respondError(c, status, "Unable to create user")
			return
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// handleAuthSetup は管理者トークンを持つクライアントに管理者ユーザーの作成を許可するハンドラを返す。
func (s *Server) handleAuthSetup() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req authSetupRequest
		if err := c.ShouldBind(&req); err != nil {
			respondError(c, http.StatusBadRequest, "Unable to create user")
			return
		}

		if subtle.ConstantTimeCompare([]byte(req.AdminToken), []byte(s.cfg.Auth.AdminToken)) != 1 {
			respondError(c, http.StatusForbidden, "Unable to create user")
			return
		}
		if strings.TrimSpace(req.Name) == "" || req.Password == "" {
			respondError(c, http.StatusBadRequest, "Unable to create user")
			return
		}

		status, err := s.createAdmin(c, req.Name, req.Password, "authsetup")
		if err != nil {
			if status == http.StatusConflict {
				respondError(c, status, "User already exists.")
				return
			}
			respondError(c, status, "Unable to create user")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "User saved successfully",
		})
	}
}

// createAdmin はパスワードを暗号化して管理者ユーザーを保存する。
// 失敗した場合はレスポンスに使うステータスコードを併せて返す。
func (s *Server) createAdmin(c *gin.Context, name, password, via string) (int, error) {
	ctx := c.Request.Context()

	encrypted, err := secret.Encrypt(password, s.cfg.Auth.SecretKey)
	if err != nil {
		s.logger.Error("パスワードの暗号化に失敗", "error", err)
		return http.StatusInternalServerError, err
	}

	user := &store.User{Name: name, Password: encrypted, Admin: true}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return http.StatusConflict, err
		}
		s.logger.Error("ユーザーの作成に失敗", "name", name, "error", err)
		return http.StatusInternalServerError, err
	}

	s.logger.Info("ユーザーを作成", "user_id", user.ID, "name", name, "via", via)
	s.recordEvent(ctx, user.ID, event.AggregateTypeUser, event.TypeUserCreated, event.UserCreatedData{
		Name:  name,
		Admin: true,
		Via:   via,
	})
	return http.StatusOK, nil
}

// handleListUsers は全ユーザーを返すハンドラを返す。
func (s *Server) handleListUsers() gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := s.users.List(c.Request.Context())
		if err != nil {
			s.logger.Error("ユーザー一覧の取得に失敗", "error", err)
			respondError(c, http.StatusInternalServerError, "Unable to list users.")
			return
		}

		resp := make([]userResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, userResponse{
				ID:        u.ID,
				Name:      u.Name,
				Admin:     u.Admin,
				CreatedAt: u.CreatedAt,
			})
		}
		c.JSON(http.StatusOK, resp)
	}
}

// handleAuthenticate はユーザー名とパスワードを照合してJWTトークンを発行するハンドラを返す。
func (s *Server) handleAuthenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var req authenticateRequest
		if err := c.ShouldBind(&req); err != nil || req.Name == "" || req.Password == "" {
			respondError(c, http.StatusBadRequest, "Name and password are required.")
			return
		}

		user, err := s.users.GetByName(ctx, req.Name)
		if errors.Is(err, store.ErrUserNotFound) {
			s.recordAuthFailure(c, req.Name, req.Name, reasonUserNotFound)
			respondError(c, http.StatusNotFound, "Authentication failed. User not found.")
			return
		}
		if err != nil {
			s.logger.Error("ユーザーの取得に失敗", "name", req.Name, "error", err)
			respondError(c, http.StatusInternalServerError, "Authentication failed.")
			return
		}

		if !secret.Matches(user.Password, s.cfg.Auth.SecretKey, req.Password) {
			s.recordAuthFailure(c, user.ID, user.Name, reasonWrongPassword)
			respondError(c, http.StatusUnauthorized, "Authentication failed. Wrong password.")
			return
		}

		token, err := middleware.GenerateJWT(s.cfg.Auth.JWTSecret, user.ID, user.Name, user.Admin)
		if err != nil {
			s.logger.Error("JWTの生成に失敗", "user_id", user.ID, "error", err)
			respondError(c, http.StatusInternalServerError, "Authentication failed.")
			return
		}

		s.recordEvent(ctx, user.ID, event.AggregateTypeUser, event.TypeUserAuthenticated, event.UserAuthenticatedData{
			Name:     user.Name,
			ClientIP: c.ClientIP(),
		})

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Enjoy your token!",
			"token":   token,
		})
	}
}

// recordAuthFailure は認証失敗をアクティビティログに記録する。
func (s *Server) recordAuthFailure(c *gin.Context, aggregateID, name, reason string) {
	s.logger.Warn("認証に失敗", "name", name, "reason", reason, "client_ip", c.ClientIP())
	s.recordEvent(c.Request.Context(), aggregateID, event.AggregateTypeUser, event.TypeAuthenticationFailed,
		event.AuthenticationFailedData{
			Name:     name,
			Reason:   reason,
			ClientIP: c.ClientIP(),
		})
}

// handleWelcome はトークンの確認用のメッセージを返すハンドラを返す。
func (s *Server) handleWelcome() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "Welcome to the gallery API, " + middleware.GetUserName(c) + "!",
		})
	}
}

package gateway

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/nao1215/gallery/internal/store"
	"github.com/nao1215/gallery/pkg/event"
)

const (
	// stateCookie はOAuth2のstateを保持するクッキー名。
	stateCookie = "gallery_oauth_state"
	// stateTTL はstateクッキーの有効期間（秒）。
	stateTTL = 600
	// tokenSaveTimeout は更新されたトークンの保存にかける時間の上限。
	tokenSaveTimeout = 5 * time.Second
)

// handlePicasaLogin はアルバムアカウントの連携を開始するハンドラを返す。
func (s *Server) handlePicasaLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.Picasa.ClientID == "" {
			respondError(c, http.StatusServiceUnavailable, "Album OAuth is not configured.")
			return
		}

		state := uuid.New().String()
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(stateCookie, state, stateTTL, "/auth/picasa", "", c.Request.TLS != nil, true)
		c.Redirect(http.StatusTemporaryRedirect, s.album.AuthURL(state))
	}
}

// handlePicasaCallback は認可コードをトークンに交換して保存するハンドラを返す。
func (s *Server) handlePicasaCallback() gin.HandlerFunc {
	return func(c *gin.Context) {
		if errParam := c.Query("error"); errParam != "" {
			s.logger.Warn("アルバムアカウントの連携が拒否された", "error", errParam)
			respondError(c, http.StatusBadRequest, "Authorization was denied.")
			return
		}

		expected, err := c.Cookie(stateCookie)
		state := c.Query("state")
		if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
			respondError(c, http.StatusBadRequest, "Invalid OAuth state.")
			return
		}
		c.SetCookie(stateCookie, "", -1, "/auth/picasa", "", c.Request.TLS != nil, true)

		code := c.Query("code")
		if code == "" {
			respondError(c, http.StatusBadRequest, "code is required.")
			return
		}

		ctx := c.Request.Context()
		tok, err := s.album.Exchange(ctx, code)
		if err != nil {
			s.logger.Error("認可コードの交換に失敗", "error", err)
			respondError(c, http.StatusBadGateway, "Album service request failed.")
			return
		}

		if err := s.tokens.Save(ctx, store.DefaultAccount, tok); err != nil {
			s.logger.Error("トークンの保存に失敗", "error", err)
			respondError(c, http.StatusInternalServerError, "Unable to save token.")
			return
		}
		s.linkAccount(tok)

		s.logger.Info("アルバムアカウントを連携", "has_refresh_token", tok.RefreshToken != "")
		s.recordEvent(ctx, store.DefaultAccount, event.AggregateTypeAccount, event.TypeAccountLinked, event.AccountLinkedData{
			HasRefreshToken: tok.RefreshToken != "",
			Expiry:          tok.Expiry,
		})

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Album account linked."})
	}
}

// restoreAccount は保存済みのトークンがあればアルバムクライアントに設定する。
func (s *Server) restoreAccount(ctx context.Context) error {
	tok, err := s.tokens.Load(ctx, store.DefaultAccount)
	if errors.Is(err, store.ErrTokenNotFound) {
		s.logger.Info("アルバムアカウントは未連携")
		return nil
	}
	if err != nil {
		return fmt.Errorf("保存済みトークンの読み込みに失敗: %w", err)
	}

	s.linkAccount(tok)
	s.logger.Info("保存済みのアルバムアカウントを読み込み", "expiry", tok.Expiry)
	return nil
}

// linkAccount はtokを起点とするTokenSourceをアルバムクライアントに設定する。
// リフレッシュで更新されたトークンはデータベースに書き戻す。
func (s *Server) linkAccount(tok *oauth2.Token) {
	s.album.SetTokenSource(&persistingTokenSource{
		base:   s.album.TokenSource(context.Background(), tok),
		tokens: s.tokens,
		logger: s.logger,
		last:   tok.AccessToken,
	})
}

// persistingTokenSource はアクセストークンが変わったときに保存するTokenSource。
type persistingTokenSource struct {
	base   oauth2.TokenSource
	tokens *store.TokenRepository
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

// Token はアクセストークンを返す。
func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken == p.last {
		return tok, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), tokenSaveTimeout)
	defer cancel()
	if err := p.tokens.Save(ctx, store.DefaultAccount, tok); err != nil {
		// 保存に失敗しても取得したトークンは使える
		p.logger.Error("更新されたトークンの保存に失敗", "error", err)
		return tok, nil
	}
	p.last = tok.AccessToken
	p.logger.Info("アルバムアカウントのトークンを更新", "expiry", tok.Expiry)
	return tok, nil
}

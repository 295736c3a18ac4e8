package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// DefaultAccount は連携アカウントが1つの場合に使用するキー。
const DefaultAccount = "default"

// TokenRepository は連携アカウントのOAuth2トークンを永続化する。
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository はSQLiteをバックエンドとするTokenRepositoryを生成する。
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save はトークンを保存する。既存のトークンは上書きする。
// 新しいトークンにリフレッシュトークンが含まれない場合は既存の値を保持する。
func (r *TokenRepository) Save(ctx context.Context, account string, tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return errors.New("アクセストークンが空です")
	}

	expiry := ""
	if !tok.Expiry.IsZero() {
		expiry = tok.Expiry.UTC().Format(time.RFC3339)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (account, access_token, token_type, refresh_token, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(account) DO UPDATE SET
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN oauth_tokens.refresh_token ELSE excluded.refresh_token END,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at`,
		account, tok.AccessToken, tok.TokenType, tok.RefreshToken, expiry,
	)
	if err != nil {
		return fmt.Errorf("トークンの保存に失敗: %w", err)
	}
	return nil
}

// Load は保存済みのトークンを取得する。存在しない場合はErrTokenNotFoundを返す。
func (r *TokenRepository) Load(ctx context.Context, account string) (*oauth2.Token, error) {
	var (
		tok    oauth2.Token
		expiry string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT access_token, token_type, refresh_token, expiry FROM oauth_tokens WHERE account = ?`, account,
	).Scan(&tok.AccessToken, &tok.TokenType, &tok.RefreshToken, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("トークンの取得に失敗: %w", err)
	}
	if expiry != "" {
		tok.Expiry = parseTime(expiry)
	}
	return &tok, nil
}

package picasa

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
)

// AuthURL はユーザーを誘導する認可URLを返す。
// リフレッシュトークンを得るためにオフラインアクセスを要求する。
func (c *Client) AuthURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange は認可コードをアクセストークンに交換する。
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("認可コードが空")
	}

	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("認可コードの交換に失敗: %w", err)
	}
	return tok, nil
}

// TokenSource はtokを起点に、期限切れ時にリフレッシュトークンで更新するTokenSourceを返す。
// ctxはリフレッシュ時のHTTP通信に使われるため、サーバーの寿命と同じものを渡す。
// リフレッシュトークンが無い場合、期限切れ後はErrNotLinkedを返す。
func (c *Client) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	if tok.RefreshToken == "" {
		return staticTokenSource{tok: tok}
	}
	return c.oauth.TokenSource(c.oauthContext(ctx), tok)
}

// staticTokenSource は更新できないトークンを返すTokenSource。
type staticTokenSource struct {
	tok *oauth2.Token
}

// Token はトークンが有効な間はそれを返す。
func (s staticTokenSource) Token() (*oauth2.Token, error) {
	if !s.tok.Valid() {
		return nil, fmt.Errorf("アクセストークンが期限切れでリフレッシュトークンも無い: %w", ErrNotLinked)
	}
	return s.tok, nil
}

// oauthContext はトークンエンドポイントとの通信に設定済みのHTTPクライアントを使わせる。
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

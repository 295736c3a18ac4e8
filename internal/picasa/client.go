package picasa

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/nao1215/gallery/pkg/httpclient"
)

const (
	// DefaultAPIURL はGData APIのベースURL。
	DefaultAPIURL = "https://picasaweb.google.com/data"
	// Scope はPicasa Web AlbumsのOAuth2スコープ。
	Scope = "https://picasaweb.google.com/data"

	// gdataVersion はリクエストするGDataプロトコルのバージョン。
	gdataVersion = "2"
	// kindScheme と photoKindTerm はAtomエントリを写真として扱わせるカテゴリ。
	kindScheme    = "http://schemas.google.com/g/2005#kind"
	photoKindTerm = "http://schemas.google.com/photos/2007#photo"
	// atomNamespace はAtomの名前空間。
	atomNamespace = "http://www.w3.org/2005/Atom"

	// userAgent はアルバムサービスに送るUser-Agent。
	userAgent = "gallery-gateway"
	// defaultTimeout はAPI呼び出しとトークン交換のタイムアウト。
	defaultTimeout = 30 * time.Second
)

// ErrNotLinked はアルバムアカウントが未連携の場合のエラー。
var ErrNotLinked = errors.New("アルバムアカウントが連携されていない")

// Config はクライアントの設定。
type Config struct {
	// ClientID はOAuth2クライアントID。
	ClientID string
	// ClientSecret はOAuth2クライアントシークレット。
	ClientSecret string
	// RedirectURI は認可後のコールバックURL。
	RedirectURI string
	// APIURL はGData APIのベースURL。空の場合はDefaultAPIURL。
	APIURL string
	// AuthURL はOAuth2の認可エンドポイント。
	AuthURL string
	// TokenURL はOAuth2のトークンエンドポイント。
	TokenURL string
	// HTTPClient はAPI呼び出しとトークン交換に使うHTTPクライアント。
	// nilの場合はdefaultTimeoutを設定したクライアントを使う。
	HTTPClient *http.Client
}

// Client はPicasa Web Albumsのクライアント。
type Client struct {
	api        *httpclient.Client
	oauth      *oauth2.Config
	httpClient *http.Client

	mu     sync.RWMutex
	tokens oauth2.TokenSource
}

// New は新しいクライアントを生成する。
// アルバムアカウントと連携するまではデータAPIの呼び出しはErrNotLinkedを返す。
func New(cfg Config) *Client {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}

	return &Client{
		api: httpclient.New(apiURL,
			httpclient.WithHTTPClient(hc),
			httpclient.WithUserAgent(userAgent),
		),
		httpClient: hc,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{Scope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
}

// APIURL は接続先のGData APIのベースURLを返す。
func (c *Client) APIURL() string {
	return c.api.BaseURL()
}

// SetTokenSource はデータAPIで使うアクセストークンの取得元を設定する。
func (c *Client) SetTokenSource(ts oauth2.TokenSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens = ts
}

// Linked はアルバムアカウントと連携済みかどうかを返す。
func (c *Client) Linked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tokens != nil
}

// GetPhotos は写真の一覧を取得する。
func (c *Client) GetPhotos(ctx context.Context, opts PhotoOptions) ([]Photo, error) {
	query, err := c.query()
	if err != nil {
		return nil, err
	}
	query.Set("kind", "photo")
	if opts.MaxResults > 0 {
		query.Set("max-results", strconv.Itoa(opts.MaxResults))
	}
	if opts.StartIndex > 0 {
		query.Set("start-index", strconv.Itoa(opts.StartIndex))
	}

	path := "/feed/api/user/default"
	if opts.AlbumID != "" {
		path = albumPath(opts.AlbumID)
	}

	var feed photoFeed
	if err := c.api.GetJSON(ctx, path, query, gdataHeader(), &feed); err != nil {
		return nil, fmt.Errorf("写真一覧の取得に失敗: %w", err)
	}

	photos := make([]Photo, 0, len(feed.Feed.Entry))
	for _, e := range feed.Feed.Entry {
		photos = append(photos, e.toPhoto())
	}
	return photos, nil
}

// GetAlbums はアルバムの一覧を取得する。
func (c *Client) GetAlbums(ctx context.Context) ([]Album, error) {
	query, err := c.query()
	if err != nil {
		return nil, err
	}
	query.Set("kind", "album")

	var feed albumFeed
	if err := c.api.GetJSON(ctx, "/feed/api/user/default", query, gdataHeader(), &feed); err != nil {
		return nil, fmt.Errorf("アルバム一覧の取得に失敗: %w", err)
	}

	albums := make([]Album, 0, len(feed.Feed.Entry))
	for _, e := range feed.Feed.Entry {
		albums = append(albums, e.toAlbum())
	}
	return albums, nil
}

// PostPhoto は写真をアルバムに投稿し、作成された写真を返す。
func (c *Client) PostPhoto(ctx context.Context, albumID string, data PhotoData) (*Photo, error) {
	if albumID == "" {
		return nil, errors.New("アルバムIDが指定されていない")
	}
	if len(data.Binary) == 0 {
		return nil, errors.New("写真のバイナリが空")
	}

	query, err := c.query()
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodePhoto(data)
	if err != nil {
		return nil, err
	}

	header := gdataHeader()
	header.Set("Content-Type", contentType)

	var resp photoEntryResponse
	if err := c.api.Post(ctx, albumPath(albumID), query, header, body, &resp); err != nil {
		return nil, fmt.Errorf("写真の投稿に失敗: %w", err)
	}

	photo := resp.Entry.toPhoto()
	return &photo, nil
}

// DeletePhoto はアルバムから写真を削除する。
func (c *Client) DeletePhoto(ctx context.Context, albumID, photoID string) error {
	if albumID == "" || photoID == "" {
		return errors.New("アルバムIDと写真IDが必要")
	}

	query, err := c.query()
	if err != nil {
		return err
	}

	header := gdataHeader()
	header.Set("If-Match", "*")

	path := "/entry/api/user/default/albumid/" + url.PathEscape(albumID) + "/photoid/" + url.PathEscape(photoID)
	if err := c.api.Delete(ctx, path, query, header); err != nil {
		return fmt.Errorf("写真の削除に失敗: %w", err)
	}
	return nil
}

// query はalt=jsonとaccess_tokenを含むクエリを返す。
func (c *Client) query() (url.Values, error) {
	c.mu.RLock()
	ts := c.tokens
	c.mu.RUnlock()
	if ts == nil {
		return nil, ErrNotLinked
	}

	tok, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("アクセストークンの取得に失敗: %w", err)
	}

	return url.Values{
		"alt":          {"json"},
		"access_token": {tok.AccessToken},
	}, nil
}

// albumPath はアルバムのフィードパスを返す。
func albumPath(albumID string) string {
	return "/feed/api/user/default/albumid/" + url.PathEscape(albumID)
}

// gdataHeader はGData APIの共通ヘッダーを返す。
func gdataHeader() http.Header {
	return http.Header{"GData-Version": {gdataVersion}}
}

// atomEntry は写真投稿時のメタデータ。
type atomEntry struct {
	XMLName  xml.Name     `xml:"entry"`
	Xmlns    string       `xml:"xmlns,attr"`
	Title    string       `xml:"title"`
	Summary  string       `xml:"summary"`
	Category atomCategory `xml:"category"`
}

// atomCategory はAtomエントリのカテゴリ。
type atomCategory struct {
	Scheme string `xml:"scheme,attr"`
	Term   string `xml:"term,attr"`
}

// encodePhoto はAtomエントリと写真バイナリをmultipart/relatedのボディにまとめる。
func encodePhoto(data PhotoData) (*bytes.Buffer, string, error) {
	entry, err := xml.Marshal(atomEntry{
		Xmlns:    atomNamespace,
		Title:    data.Title,
		Summary:  data.Summary,
		Category: atomCategory{Scheme: kindScheme, Term: photoKindTerm},
	})
	if err != nil {
		return nil, "", fmt.Errorf("Atomエントリの生成に失敗: %w", err)
	}

	contentType := data.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data.Binary)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreatePart(textproto.MIMEHeader{"Content-Type": {"application/atom+xml"}})
	if err != nil {
		return nil, "", fmt.Errorf("マルチパートの生成に失敗: %w", err)
	}
	if _, err := part.Write(entry); err != nil {
		return nil, "", fmt.Errorf("マルチパートの生成に失敗: %w", err)
	}

	part, err = w.CreatePart(textproto.MIMEHeader{"Content-Type": {contentType}})
	if err != nil {
		return nil, "", fmt.Errorf("マルチパートの生成に失敗: %w", err)
	}
	if _, err := part.Write(data.Binary); err != nil {
		return nil, "", fmt.Errorf("マルチパートの生成に失敗: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("マルチパートの生成に失敗: %w", err)
	}
	return &buf, "multipart/related; boundary=" + w.Boundary(), nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config はギャラリーゲートウェイ全体の設定。
type Config struct {
	// Server はHTTPサーバーの設定。
	Server ServerConfig `yaml:"server"`
	// Database はSQLiteデータベースの設定。
	Database DatabaseConfig `yaml:"database"`
	// Auth はユーザー認証の設定。
	Auth AuthConfig `yaml:"auth"`
	// Picasa はフォトアルバムサービスの設定。
	Picasa PicasaConfig `yaml:"picasa"`
	// Logging はログ出力の設定。
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig はHTTPサーバーの設定。
type ServerConfig struct {
	// Port はリッスンポート。
	Port string `yaml:"port"`
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig はSQLiteデータベースの設定。
type DatabaseConfig struct {
	// Path はデータベースファイルのパス。
	Path string `yaml:"path"`
}

// AuthConfig はユーザー認証の設定。
type AuthConfig struct {
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string `yaml:"jwt_secret"`
	// AdminToken は /authsetup で管理者ユーザーを作成するための共有トークン。
	AdminToken string `yaml:"admin_token"`
	// SecretKey はパスワード暗号化のパスフレーズ。
	SecretKey string `yaml:"secret_key"`
	// EnableSetup が false の場合、/setup を無効化する。
	EnableSetup bool `yaml:"enable_setup"`
}

// PicasaConfig はフォトアルバムサービスの設定。
type PicasaConfig struct {
	// ClientID はOAuth2クライアントID。
	ClientID string `yaml:"client_id"`
	// ClientSecret はOAuth2クライアントシークレット。
	ClientSecret string `yaml:"client_secret"`
	// RedirectURI はOAuth2のリダイレクト先。
	RedirectURI string `yaml:"redirect_uri"`
	// FeaturedAlbumID は /api/listfeaturedimages が参照するアルバムID。
	FeaturedAlbumID string `yaml:"featured_album_id"`
	// APIURL はデータAPIのベースURL。
	APIURL string `yaml:"api_url"`
	// AuthURL はOAuth2認可エンドポイント。
	AuthURL string `yaml:"auth_url"`
	// TokenURL はOAuth2トークンエンドポイント。
	TokenURL string `yaml:"token_url"`
}

// LoggingConfig はログ出力の設定。
type LoggingConfig struct {
	// Level は debug, info, warn, error のいずれか。
	Level string `yaml:"level"`
	// Format は json または text。
	Format string `yaml:"format"`
}

// Default はデフォルト設定を返す。
// 秘密鍵類は開発用の値であり、本番環境では必ず上書きすること。
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Path: "/data/gallery.db",
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-secret-key",
			AdminToken:  "dev-admin-token",
			SecretKey:   "dev-encryption-key",
			EnableSetup: true,
		},
		Picasa: PicasaConfig{
			APIURL:   "https://picasaweb.google.com/data",
			AuthURL:  "https://accounts.google.com/o/oauth2/auth",
			TokenURL: "https://www.googleapis.com/oauth2/v3/token",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load は設定を読み込む。
// pathが空の場合はYAMLファイルを読まず、デフォルト値と環境変数のみを使用する。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("設定ファイルのパースに失敗: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv は環境変数で設定を上書きする。
func (c *Config) applyEnv() {
	c.Server.Port = getEnvOr("PORT", c.Server.Port)
	if origins := os.Getenv("FRONTEND_URL"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	c.Database.Path = getEnvOr("DB_PATH", c.Database.Path)
	c.Auth.JWTSecret = getEnvOr("JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.AdminToken = getEnvOr("ADMIN_TOKEN", c.Auth.AdminToken)
	c.Auth.SecretKey = getEnvOr("SECRET_KEY", c.Auth.SecretKey)
	if v := os.Getenv("ENABLE_SETUP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Auth.EnableSetup = b
		}
	}
	c.Picasa.ClientID = getEnvOr("PICASA_CLIENT_ID", c.Picasa.ClientID)
	c.Picasa.ClientSecret = getEnvOr("PICASA_CLIENT_SECRET", c.Picasa.ClientSecret)
	c.Picasa.RedirectURI = getEnvOr("PICASA_REDIRECT_URI", c.Picasa.RedirectURI)
	c.Picasa.FeaturedAlbumID = getEnvOr("PICASA_FEATURED_ALBUM_ID", c.Picasa.FeaturedAlbumID)
	c.Picasa.APIURL = getEnvOr("PICASA_API_URL", c.Picasa.APIURL)
	c.Picasa.AuthURL = getEnvOr("PICASA_AUTH_URL", c.Picasa.AuthURL)
	c.Picasa.TokenURL = getEnvOr("PICASA_TOKEN_URL", c.Picasa.TokenURL)
	c.Logging.Level = getEnvOr("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOr("LOG_FORMAT", c.Logging.Format)
}

// Validate は必須項目が設定されているかを検証する。
func (c *Config) Validate() error {
	var errs []error
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server.portが数値ではありません: %q", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.pathが設定されていません"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secretが設定されていません"))
	}
	if c.Auth.AdminToken == "" {
		errs = append(errs, errors.New("auth.admin_tokenが設定されていません"))
	}
	if c.Auth.SecretKey == "" {
		errs = append(errs, errors.New("auth.secret_keyが設定されていません"))
	}
	if c.Picasa.APIURL == "" {
		errs = append(errs, errors.New("picasa.api_urlが設定されていません"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("設定が不正です: %w", errors.Join(errs...))
	}
	return nil
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// splitList はカンマ区切りの文字列を分割し、空要素を取り除く。
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

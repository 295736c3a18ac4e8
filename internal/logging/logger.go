// Package logging はslogベースの構造化ロガーを生成する。
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nao1215/gallery/internal/config"
)

// serviceName はすべてのログに付与するサービス名。
const serviceName = "gallery"

// New は設定に従ってロガーを生成する。出力先は標準出力。
func New(cfg config.LoggingConfig) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter は出力先を指定してロガーを生成する。
// formatが "text" 以外の場合はJSON形式で出力する。
func NewWithWriter(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With(slog.String("service", serviceName))
}

// Discard はすべてのログを破棄するロガーを返す。テストで使用する。
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// parseLevel は文字列のログレベルをslog.Levelに変換する。
// 不明な値はinfoとして扱う。
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ギャラリーゲートウェイのエントリポイント。
// ユーザー認証とJWT発行を行い、フォトアルバムサービスへのリクエストを中継する。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/gallery/internal/config"
	"github.com/nao1215/gallery/internal/gateway"
	"github.com/nao1215/gallery/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "YAML設定ファイルのパス（省略時はデフォルト値と環境変数のみ）")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	logger := logging.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := gateway.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("ゲートウェイサーバーの初期化に失敗: %w", err)
	}
	defer server.Close()

	logger.Info("ゲートウェイを起動します", "port", cfg.Server.Port)
	return server.Run(ctx)
}

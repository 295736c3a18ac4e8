// Package gateway はギャラリーゲートウェイのHTTPサーバーを提供する。
//
// ユーザーの作成とパスワード認証、JWT発行を担当し、認証済みリクエストを
// リモートのフォトアルバムサービス（Picasa Web Albums）への呼び出しに変換する。
// アルバムアカウントとのOAuth2連携、アクティビティログ、ヘルスチェックと
// Prometheusメトリクスも提供する。
package gateway

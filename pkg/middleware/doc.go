// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWTトークンの発行と検証、管理者権限のチェック、リクエストログ、
// Prometheusメトリクス、パニックリカバリ、CORS設定を含む。
// エラーレスポンスは全て {success:false, message} の形式で返す。
package middleware

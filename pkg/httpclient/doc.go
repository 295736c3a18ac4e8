// Package httpclient は外部サービスのREST APIを呼び出すHTTPクライアントを提供する。
//
// フォトアルバムサービスのようなJSON APIに対して、クエリパラメータと
// ヘッダーを付与したリクエストを送り、2xx以外のレスポンスを
// StatusErrorとして呼び出し元に返す。
package httpclient

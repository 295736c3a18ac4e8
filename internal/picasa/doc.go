// Package picasa はPicasa Web Albums（GData API）のクライアントを提供する。
//
// 写真一覧の取得、写真の投稿・削除、アルバム一覧の取得と、
// OAuth2の認可URL生成・認可コードのトークン交換を扱う。
// データAPIへのリクエストには常に alt=json と access_token クエリを付与し、
// GDataの {"$t": 値} 形式のレスポンスを平坦な構造体に整形して返す。
//
// リモートのエラーは再試行せず、ラップしてそのまま呼び出し元に返す。
package picasa

// Package config はギャラリーゲートウェイの設定を読み込む。
//
// 設定はデフォルト値、YAMLファイル、環境変数の順に適用される。
// 後から適用したものが優先されるため、コンテナ環境では環境変数だけで
// 全ての値を上書きできる。
package config

// Package event はギャラリーゲートウェイのアクティビティログに記録するイベントを定義する。
//
// ユーザー作成、認証、写真の投稿・削除、アルバムアカウントの連携といった
// 状態変更を追記専用のイベントとして表現する。
package event

package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypeUser はゲートウェイのユーザーを表す。
	AggregateTypeUser AggregateType = "User"
	// AggregateTypePhoto はリモートアルバム上の写真を表す。
	AggregateTypePhoto AggregateType = "Photo"
	// AggregateTypeAccount は連携済みのアルバムアカウントを表す。
	AggregateTypeAccount AggregateType = "Account"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypeUserCreated はユーザーが作成されたことを表す。
	TypeUserCreated Type = "UserCreated"
	// TypeUserAuthenticated はユーザーがトークンを取得したことを表す。
	TypeUserAuthenticated Type = "UserAuthenticated"
	// TypeAuthenticationFailed は認証に失敗したことを表す。
	TypeAuthenticationFailed Type = "AuthenticationFailed"
	// TypePhotoPosted は写真がリモートアルバムに投稿されたことを表す。
	TypePhotoPosted Type = "PhotoPosted"
	// TypePhotoDeleted は写真がリモートアルバムから削除されたことを表す。
	TypePhotoDeleted Type = "PhotoDeleted"
	// TypeAccountLinked はOAuth2でアルバムアカウントが連携されたことを表す。
	TypeAccountLinked Type = "AccountLinked"
)

// Event はアクティビティログの不変なレコード。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// Version はAggregate内でのイベントの順序番号。保存時に採番される。
	Version int64 `json:"version"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// UserCreatedData はUserCreatedイベントのデータ。
type UserCreatedData struct {
	// Name はユーザー名。
	Name string `json:"name"`
	// Admin は管理者フラグ。
	Admin bool `json:"admin"`
	// Via は作成経路（"setup" または "authsetup"）。
	Via string `json:"via"`
}

// UserAuthenticatedData はUserAuthenticatedイベントのデータ。
type UserAuthenticatedData struct {
	// Name はユーザー名。
	Name string `json:"name"`
	// ClientIP は要求元のIPアドレス。
	ClientIP string `json:"client_ip"`
}

// AuthenticationFailedData はAuthenticationFailedイベントのデータ。
type AuthenticationFailedData struct {
	// Name は要求されたユーザー名。
	Name string `json:"name"`
	// Reason は失敗理由（"user_not_found" または "wrong_password"）。
	Reason string `json:"reason"`
	// ClientIP は要求元のIPアドレス。
	ClientIP string `json:"client_ip"`
}

// PhotoPostedData はPhotoPostedイベントのデータ。
type PhotoPostedData struct {
	// UserID は投稿したユーザーのID。
	UserID string `json:"user_id"`
	// UserName は投稿したユーザー名。
	UserName string `json:"user_name"`
	// AlbumID は投稿先のアルバムID。
	AlbumID string `json:"album_id"`
	// Title は写真のタイトル。
	Title string `json:"title"`
	// ContentType は写真のMIMEタイプ。
	ContentType string `json:"content_type"`
	// Size はファイルサイズ（バイト）。
	Size int64 `json:"size"`
}

// PhotoDeletedData はPhotoDeletedイベントのデータ。
type PhotoDeletedData struct {
	// UserID は削除したユーザーのID。
	UserID string `json:"user_id"`
	// UserName は削除したユーザー名。
	UserName string `json:"user_name"`
	// AlbumID は写真が属していたアルバムID。
	AlbumID string `json:"album_id"`
}

// AccountLinkedData はAccountLinkedイベントのデータ。
type AccountLinkedData struct {
	// HasRefreshToken はリフレッシュトークンを取得できたかどうか。
	HasRefreshToken bool `json:"has_refresh_token"`
	// Expiry はアクセストークンの有効期限。
	Expiry time.Time `json:"expiry"`
}

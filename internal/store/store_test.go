package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/nao1215/gallery/internal/logging"
	"github.com/nao1215/gallery/pkg/event"
)

// openTestDB はマイグレーション済みのインメモリDBを開く。
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(context.Background(), ":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("インメモリDBのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestOpen はデータベースの初期化を検証する。
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("ファイルDBを作成して再オープンできること", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nested", "gallery.db")
		ctx := context.Background()

		db, err := Open(ctx, path, logging.Discard())
		if err != nil {
			t.Fatalf("Open()でエラーが発生: %v", err)
		}
		if err := NewUserRepository(db).Create(ctx, &User{Name: "alice", Password: "x"}); err != nil {
			t.Fatalf("ユーザー作成に失敗: %v", err)
		}
		db.Close()

		// 再オープン時にマイグレーションが重複適用されないこと
		db, err = Open(ctx, path, logging.Discard())
		if err != nil {
			t.Fatalf("再オープンでエラーが発生: %v", err)
		}
		defer db.Close()

		n, err := NewUserRepository(db).Count(ctx)
		if err != nil {
			t.Fatalf("Count()でエラーが発生: %v", err)
		}
		if n != 1 {
			t.Errorf("ユーザー数 = %d, want 1", n)
		}
	})
}

// TestUserRepository はユーザーの永続化を検証する。
func TestUserRepository(t *testing.T) {
	t.Parallel()

	t.Run("作成したユーザーを名前で取得できること", func(t *testing.T) {
		t.Parallel()

		repo := NewUserRepository(openTestDB(t))
		ctx := context.Background()

		u := &User{Name: "Admin User", Password: "encrypted", Admin: true}
		if err := repo.Create(ctx, u); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		if u.ID == "" {
			t.Error("IDが採番されていない")
		}

		got, err := repo.GetByName(ctx, "Admin User")
		if err != nil {
			t.Fatalf("GetByName()でエラーが発生: %v", err)
		}
		if got.ID != u.ID {
			t.Errorf("ID = %q, want %q", got.ID, u.ID)
		}
		if got.Password != "encrypted" {
			t.Errorf("Password = %q, want %q", got.Password, "encrypted")
		}
		if !got.Admin {
			t.Error("Adminフラグが保存されていない")
		}
		if !got.CreatedAt.Equal(u.CreatedAt) {
			t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, u.CreatedAt)
		}
	})

	t.Run("存在しないユーザーはErrUserNotFoundになること", func(t *testing.T) {
		t.Parallel()

		repo := NewUserRepository(openTestDB(t))
		_, err := repo.GetByName(context.Background(), "nobody")
		if !errors.Is(err, ErrUserNotFound) {
			t.Errorf("err = %v, want %v", err, ErrUserNotFound)
		}
	})

	t.Run("同名のユーザーはErrUserExistsになること", func(t *testing.T) {
		t.Parallel()

		repo := NewUserRepository(openTestDB(t))
		ctx := context.Background()
		if err := repo.Create(ctx, &User{Name: "dup", Password: "a"}); err != nil {
			t.Fatalf("Create()でエラーが発生: %v", err)
		}
		err := repo.Create(ctx, &User{Name: "dup", Password: "b"})
		if !errors.Is(err, ErrUserExists) {
			t.Errorf("err = %v, want %v", err, ErrUserExists)
		}
	})

	t.Run("一覧と件数を取得できること", func(t *testing.T) {
		t.Parallel()

		repo := NewUserRepository(openTestDB(t))
		ctx := context.Background()

		users, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if users == nil || len(users) != 0 {
			t.Errorf("空の一覧は非nilの空スライスであるべき: %#v", users)
		}

		for _, name := range []string{"bob", "alice"} {
			if err := repo.Create(ctx, &User{Name: name, Password: "p"}); err != nil {
				t.Fatalf("Create(%q)でエラーが発生: %v", name, err)
			}
		}

		users, err = repo.List(ctx)
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if len(users) != 2 {
			t.Fatalf("ユーザー数 = %d, want 2", len(users))
		}

		n, err := repo.Count(ctx)
		if err != nil {
			t.Fatalf("Count()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("Count() = %d, want 2", n)
		}
	})
}

// TestTokenRepository はOAuth2トークンの永続化を検証する。
func TestTokenRepository(t *testing.T) {
	t.Parallel()

	t.Run("保存したトークンを読み込めること", func(t *testing.T) {
		t.Parallel()

		repo := NewTokenRepository(openTestDB(t))
		ctx := context.Background()
		expiry := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

		if err := repo.Save(ctx, DefaultAccount, &oauth2.Token{
			AccessToken:  "ya29.access",
			TokenType:    "Bearer",
			RefreshToken: "1/refresh",
			Expiry:       expiry,
		}); err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}

		tok, err := repo.Load(ctx, DefaultAccount)
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if tok.AccessToken != "ya29.access" {
			t.Errorf("AccessToken = %q", tok.AccessToken)
		}
		if tok.RefreshToken != "1/refresh" {
			t.Errorf("RefreshToken = %q", tok.RefreshToken)
		}
		if !tok.Expiry.Equal(expiry) {
			t.Errorf("Expiry = %v, want %v", tok.Expiry, expiry)
		}
	})

	t.Run("リフレッシュトークンなしの更新では既存のリフレッシュトークンを保持すること", func(t *testing.T) {
		t.Parallel()

		repo := NewTokenRepository(openTestDB(t))
		ctx := context.Background()

		if err := repo.Save(ctx, DefaultAccount, &oauth2.Token{AccessToken: "old", RefreshToken: "1/keep"}); err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}
		if err := repo.Save(ctx, DefaultAccount, &oauth2.Token{AccessToken: "new"}); err != nil {
			t.Fatalf("Save()でエラーが発生: %v", err)
		}

		tok, err := repo.Load(ctx, DefaultAccount)
		if err != nil {
			t.Fatalf("Load()でエラーが発生: %v", err)
		}
		if tok.AccessToken != "new" {
			t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "new")
		}
		if tok.RefreshToken != "1/keep" {
			t.Errorf("RefreshToken = %q, want %q", tok.RefreshToken, "1/keep")
		}
		if !tok.Expiry.IsZero() {
			t.Errorf("Expiry = %v, want zero", tok.Expiry)
		}
	})

	t.Run("未保存の場合はErrTokenNotFoundになること", func(t *testing.T) {
		t.Parallel()

		repo := NewTokenRepository(openTestDB(t))
		_, err := repo.Load(context.Background(), DefaultAccount)
		if !errors.Is(err, ErrTokenNotFound) {
			t.Errorf("err = %v, want %v", err, ErrTokenNotFound)
		}
	})

	t.Run("空のトークンは保存できないこと", func(t *testing.T) {
		t.Parallel()

		repo := NewTokenRepository(openTestDB(t))
		if err := repo.Save(context.Background(), DefaultAccount, &oauth2.Token{}); err == nil {
			t.Fatal("空のトークンでエラーが返されるべき")
		}
	})
}

// TestEventRepository はアクティビティログの永続化を検証する。
func TestEventRepository(t *testing.T) {
	t.Parallel()

	t.Run("Aggregateごとにバージョンが採番されること", func(t *testing.T) {
		t.Parallel()

		repo := NewEventRepository(openTestDB(t))
		ctx := context.Background()

		appendEvent := func(aggregateID string) *event.Event {
			t.Helper()
			ev, err := event.New(aggregateID, event.AggregateTypeUser, event.TypeUserAuthenticated,
				event.UserAuthenticatedData{Name: aggregateID})
			if err != nil {
				t.Fatalf("event.New()でエラーが発生: %v", err)
			}
			if err := repo.Append(ctx, ev); err != nil {
				t.Fatalf("Append()でエラーが発生: %v", err)
			}
			return ev
		}

		if v := appendEvent("user-a").Version; v != 1 {
			t.Errorf("1件目のVersion = %d, want 1", v)
		}
		if v := appendEvent("user-a").Version; v != 2 {
			t.Errorf("2件目のVersion = %d, want 2", v)
		}
		if v := appendEvent("user-b").Version; v != 1 {
			t.Errorf("別Aggregateの1件目のVersion = %d, want 1", v)
		}
	})

	t.Run("新しい順にlimit件まで返すこと", func(t *testing.T) {
		t.Parallel()

		repo := NewEventRepository(openTestDB(t))
		ctx := context.Background()

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		for i, name := range []string{"first", "second", "third"} {
			ev, err := event.New("photo-"+name, event.AggregateTypePhoto, event.TypePhotoDeleted,
				event.PhotoDeletedData{UserName: name, AlbumID: "album"})
			if err != nil {
				t.Fatalf("event.New()でエラーが発生: %v", err)
			}
			ev.CreatedAt = base.Add(time.Duration(i) * time.Second)
			if err := repo.Append(ctx, ev); err != nil {
				t.Fatalf("Append()でエラーが発生: %v", err)
			}
		}

		events, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("List()でエラーが発生: %v", err)
		}
		if len(events) != 2 {
			t.Fatalf("件数 = %d, want 2", len(events))
		}
		if events[0].AggregateID != "photo-third" || events[1].AggregateID != "photo-second" {
			t.Errorf("並び順が不正: %q, %q", events[0].AggregateID, events[1].AggregateID)
		}
		if events[0].EventType != event.TypePhotoDeleted {
			t.Errorf("EventType = %q", events[0].EventType)
		}

		var data event.PhotoDeletedData
		if err := json.Unmarshal(events[0].Data, &data); err != nil {
			t.Fatalf("イベントデータのデコードに失敗: %v", err)
		}
		if data.UserName != "third" {
			t.Errorf("UserName = %q, want %q", data.UserName, "third")
		}
		if !events[0].CreatedAt.Equal(base.Add(2 * time.Second)) {
			t.Errorf("CreatedAt = %v", events[0].CreatedAt)
		}
	})
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User はゲートウェイのユーザー。
type User struct {
	// ID はユーザーの一意識別子（UUID）。
	ID string
	// Name はログイン名。
	Name string
	// Password は暗号化済みのパスワード。平文を格納してはならない。
	Password string
	// Admin は管理者フラグ。
	Admin bool
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// UserRepository はユーザーの永続化を行う。
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository はSQLiteをバックエンドとするUserRepositoryを生成する。
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create はユーザーを登録する。IDと作成日時はここで設定する。
// 同名のユーザーが存在する場合はErrUserExistsを返す。
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	user.ID = uuid.New().String()
	user.CreatedAt = time.Now().UTC().Truncate(time.Second)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, password, admin, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Name, user.Password, boolToInt(user.Admin), user.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUserExists
		}
		return fmt.Errorf("ユーザーの登録に失敗: %w", err)
	}
	return nil
}

// GetByName はログイン名でユーザーを取得する。
func (r *UserRepository) GetByName(ctx context.Context, name string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, password, admin, created_at FROM users WHERE name = ?`, name)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// List は全ユーザーを作成順に返す。
func (r *UserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, password, admin, created_at FROM users ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー行の読み取りに失敗: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗: %w", err)
	}
	return users, nil
}

// Count は登録済みユーザー数を返す。
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("ユーザー数の取得に失敗: %w", err)
	}
	return n, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*User, error) {
	var (
		u         User
		admin     int
		createdAt string
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Password, &admin, &createdAt); err != nil {
		return nil, err
	}
	u.Admin = admin != 0
	u.CreatedAt = parseTime(createdAt)
	return &u, nil
}

// parseTime はSQLiteに保存した日時文字列を解釈する。解釈できない場合はゼロ値を返す。
func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

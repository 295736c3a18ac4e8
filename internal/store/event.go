package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/nao1215/gallery/pkg/event"
)

// eventTimeLayout は文字列比較で時系列順に並ぶ固定長の日時形式。
const eventTimeLayout = "2006-01-02T15:04:05.000000000Z"

// EventRepository はアクティビティログを永続化する。
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository はSQLiteをバックエンドとするEventRepositoryを生成する。
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append はイベントを追記する。
// Aggregate内の次のバージョンをトランザクション内で採番し、ev.Versionに設定する。
func (r *EventRepository) Append(ctx context.Context, ev *event.Event) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var latest int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM events WHERE aggregate_id = ?`, ev.AggregateID,
	).Scan(&latest); err != nil {
		return fmt.Errorf("最新バージョンの取得に失敗: %w", err)
	}

	version := latest + 1
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, aggregate_id, aggregate_type, event_type, data, version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.AggregateID, string(ev.AggregateType), string(ev.EventType), string(ev.Data),
		version, ev.CreatedAt.UTC().Format(eventTimeLayout),
	); err != nil {
		return fmt.Errorf("イベントの追記に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("イベントのコミットに失敗: %w", err)
	}
	ev.Version = version
	return nil
}

// List はイベントを新しい順に最大limit件返す。
func (r *EventRepository) List(ctx context.Context, limit int) ([]event.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, data, version, created_at
		FROM events
		ORDER BY created_at DESC, version DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := []event.Event{}
	for rows.Next() {
		var (
			ev            event.Event
			aggregateType string
			eventType     string
			data          string
			createdAt     string
		)
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &aggregateType, &eventType, &data, &ev.Version, &createdAt); err != nil {
			return nil, fmt.Errorf("イベント行の読み取りに失敗: %w", err)
		}
		ev.AggregateType = event.AggregateType(aggregateType)
		ev.EventType = event.Type(eventType)
		ev.Data = json.RawMessage(data)
		ev.CreatedAt = parseTime(createdAt)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベント一覧の走査に失敗: %w", err)
	}
	return events, nil
}

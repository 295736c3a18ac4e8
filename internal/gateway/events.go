package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/gallery/pkg/event"
)

const (
	// defaultEventLimit はイベント一覧のデフォルト件数。
	defaultEventLimit = 50
	// maxEventLimit はイベント一覧の最大件数。
	maxEventLimit = 500
)

// handleListEvents はアクティビティログを新しい順に返すハンドラを返す。
func (s *Server) handleListEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := defaultEventLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				respondError(c, http.StatusBadRequest, "limit must be a positive integer.")
				return
			}
			limit = min(n, maxEventLimit)
		}

		events, err := s.events.List(c.Request.Context(), limit)
		if err != nil {
			s.logger.Error("イベント一覧の取得に失敗", "error", err)
			respondError(c, http.StatusInternalServerError, "Unable to list events.")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "events": events})
	}
}

// recordEvent はアクティビティログにイベントを追記する。
// 記録の失敗はリクエストを失敗させず、ログに残すのみとする。
func (s *Server) recordEvent(ctx context.Context, aggregateID string, aggregateType event.AggregateType, eventType event.Type, data any) {
	ev, err := event.New(aggregateID, aggregateType, eventType, data)
	if err != nil {
		s.logger.Error("イベントの生成に失敗", "event_type", eventType, "error", err)
		return
	}
	if err := s.events.Append(ctx, ev); err != nil {
		s.logger.Error("イベントの記録に失敗", "event_type", eventType, "aggregate_id", aggregateID, "error", err)
	}
}

package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MessageBodyTooLarge はリクエストボディが上限を超えた場合のメッセージ。
const MessageBodyTooLarge = "File too large."

// BodyLimit はリクエストボディをlimitバイトまでに制限するGinミドルウェアを返す。
// Content-Lengthが上限を超える場合はボディを読まずに413を返す。
// Content-Lengthが不明な場合は読み込み時に上限で打ち切り、IsBodyTooLargeで判定できるエラーにする。
func BodyLimit(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > limit {
			abortWithMessage(c, http.StatusRequestEntityTooLarge, MessageBodyTooLarge)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// IsBodyTooLarge はerrがBodyLimitの上限超過によるものかどうかを返す。
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

package gateway

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/gallery/internal/picasa"
	"github.com/nao1215/gallery/pkg/event"
	"github.com/nao1215/gallery/pkg/httpclient"
	"github.com/nao1215/gallery/pkg/middleware"
)

const (
	// maxUploadSize はアップロードできる写真の最大バイト数。
	maxUploadSize = 20 << 20
	// maxUploadBody はアップロードリクエスト全体の最大バイト数。
	// マルチパートの区切りやフォーム項目の分を写真の上限に上乗せする。
	maxUploadBody = maxUploadSize + 1<<20
)

// handleListAllImages は連携アカウントの全ての写真を返すハンドラを返す。
func (s *Server) handleListAllImages() gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, ok := photoOptionsFromQuery(c)
		if !ok {
			return
		}

		photos, err := s.album.GetPhotos(c.Request.Context(), opts)
		if err != nil {
			s.respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "images": photos})
	}
}

// handleListFeaturedImages は設定された注目アルバムの写真を返すハンドラを返す。
func (s *Server) handleListFeaturedImages() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.Picasa.FeaturedAlbumID == "" {
			respondError(c, http.StatusServiceUnavailable, "Featured album is not configured.")
			return
		}

		opts, ok := photoOptionsFromQuery(c)
		if !ok {
			return
		}
		opts.AlbumID = s.cfg.Picasa.FeaturedAlbumID

		photos, err := s.album.GetPhotos(c.Request.Context(), opts)
		if err != nil {
			s.respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "images": photos})
	}
}

// handleListAlbums は連携アカウントのアルバム一覧を返すハンドラを返す。
func (s *Server) handleListAlbums() gin.HandlerFunc {
	return func(c *gin.Context) {
		albums, err := s.album.GetAlbums(c.Request.Context())
		if err != nil {
			s.respondRemoteError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "albums": albums})
	}
}

// handlePostImage はアップロードされた写真をリモートのアルバムに投稿するハンドラを返す。
func (s *Server) handlePostImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := c.MultipartForm(); err != nil {
			if middleware.IsBodyTooLarge(err) {
				respondError(c, http.StatusRequestEntityTooLarge, middleware.MessageBodyTooLarge)
				return
			}
			respondError(c, http.StatusBadRequest, "file is required.")
			return
		}

		albumID := c.PostForm("album_id")
		if albumID == "" {
			respondError(c, http.StatusBadRequest, "album_id is required.")
			return
		}

		fh, err := c.FormFile("file")
		if err != nil {
			respondError(c, http.StatusBadRequest, "file is required.")
			return
		}
		if fh.Size > maxUploadSize {
			respondError(c, http.StatusRequestEntityTooLarge, middleware.MessageBodyTooLarge)
			return
		}

		f, err := fh.Open()
		if err != nil {
			s.logger.Error("アップロードファイルのオープンに失敗", "error", err)
			respondError(c, http.StatusInternalServerError, "Unable to read file.")
			return
		}
		defer f.Close()

		binary, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
		if err != nil {
			s.logger.Error("アップロードファイルの読み込みに失敗", "error", err)
			respondError(c, http.StatusInternalServerError, "Unable to read file.")
			return
		}
		if len(binary) > maxUploadSize {
			respondError(c, http.StatusRequestEntityTooLarge, middleware.MessageBodyTooLarge)
			return
		}
		if len(binary) == 0 {
			respondError(c, http.StatusBadRequest, "file is empty.")
			return
		}

		contentType := http.DetectContentType(binary)
		if !strings.HasPrefix(contentType, "image/") {
			respondError(c, http.StatusBadRequest, "Only image uploads are supported.")
			return
		}

		title := c.PostForm("title")
		if title == "" {
			title = fh.Filename
		}

		photo, err := s.album.PostPhoto(c.Request.Context(), albumID, picasa.PhotoData{
			Title:       title,
			Summary:     c.PostForm("summary"),
			ContentType: contentType,
			Binary:      binary,
		})
		if err != nil {
			s.respondRemoteError(c, err)
			return
		}

		s.recordEvent(c.Request.Context(), photo.ID, event.AggregateTypePhoto, event.TypePhotoPosted, event.PhotoPostedData{
			UserID:      middleware.GetUserID(c),
			UserName:    middleware.GetUserName(c),
			AlbumID:     albumID,
			Title:       title,
			ContentType: contentType,
			Size:        int64(len(binary)),
		})

		c.JSON(http.StatusCreated, gin.H{"success": true, "image": photo})
	}
}

// handleDeleteImage はリモートのアルバムから写真を削除するハンドラを返す。
func (s *Server) handleDeleteImage() gin.HandlerFunc {
	return func(c *gin.Context) {
		albumID := c.Param("album_id")
		photoID := c.Param("photo_id")

		if err := s.album.DeletePhoto(c.Request.Context(), albumID, photoID); err != nil {
			s.respondRemoteError(c, err)
			return
		}

		s.recordEvent(c.Request.Context(), photoID, event.AggregateTypePhoto, event.TypePhotoDeleted, event.PhotoDeletedData{
			UserID:   middleware.GetUserID(c),
			UserName: middleware.GetUserName(c),
			AlbumID:  albumID,
		})

		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Image deleted."})
	}
}

// photoOptionsFromQuery はクエリの max_results と start_index を読み取る。
// 不正な値の場合は400を返してfalseを返す。
func photoOptionsFromQuery(c *gin.Context) (picasa.PhotoOptions, bool) {
	var opts picasa.PhotoOptions

	for _, q := range []struct {
		name string
		dst  *int
	}{
		{"max_results", &opts.MaxResults},
		{"start_index", &opts.StartIndex},
	} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(c, http.StatusBadRequest, q.name+" must be a positive integer.")
			return opts, false
		}
		*q.dst = n
	}
	return opts, true
}

// respondRemoteError はアルバムサービスのエラーをレスポンスに変換する。
func (s *Server) respondRemoteError(c *gin.Context, err error) {
	if errors.Is(err, picasa.ErrNotLinked) {
		respondError(c, http.StatusServiceUnavailable, "Album account is not linked.")
		return
	}

	attrs := []any{"path", c.Request.URL.Path, "error", err}
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		attrs = append(attrs, "remote_status", se.StatusCode, "remote_body", se.Body)
	}
	s.logger.Error("アルバムサービスの呼び出しに失敗", attrs...)
	respondError(c, http.StatusBadGateway, "Album service request failed.")
}

package picasa

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Content は写真本体への参照。
type Content struct {
	// Type は写真のMIMEタイプ。
	Type string `json:"type"`
	// Src は写真の取得URL。
	Src string `json:"src"`
}

// Photo はアルバム内の写真。
type Photo struct {
	ID                string  `json:"id"`
	AlbumID           string  `json:"album_id"`
	Access            string  `json:"access"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Size              int64   `json:"size"`
	Checksum          string  `json:"checksum"`
	Timestamp         int64   `json:"timestamp"`
	ImageVersion      string  `json:"image_version"`
	CommentingEnabled bool    `json:"commenting_enabled"`
	CommentCount      int     `json:"comment_count"`
	Title             string  `json:"title"`
	Summary           string  `json:"summary"`
	Content           Content `json:"content"`
}

// Album はユーザーのアルバム。
type Album struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Summary   string `json:"summary"`
	NumPhotos int    `json:"num_photos"`
	Access    string `json:"access"`
	Timestamp int64  `json:"timestamp"`
}

// PhotoOptions はGetPhotosの絞り込み条件。
type PhotoOptions struct {
	// AlbumID を指定するとそのアルバムの写真のみを返す。
	AlbumID string
	// MaxResults は取得件数の上限。0の場合は指定しない。
	MaxResults int
	// StartIndex は1始まりの取得開始位置。0の場合は指定しない。
	StartIndex int
}

// PhotoData はPostPhotoで投稿する写真。
type PhotoData struct {
	// Title は写真のタイトル。
	Title string
	// Summary は写真の説明。
	Summary string
	// ContentType は写真のMIMEタイプ（例: "image/jpeg"）。
	ContentType string
	// Binary は写真のバイナリ。
	Binary []byte
}

// gdataValue はGDataの {"$t": 値} 形式の値。
// $t は文字列のほか数値や真偽値で返ることがあるため、文字列として保持する。
type gdataValue struct {
	T string
}

// UnmarshalJSON は {"$t": ...} を展開する。
func (v *gdataValue) UnmarshalJSON(b []byte) error {
	var raw struct {
		T json.RawMessage `json:"$t"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	t := bytes.TrimSpace(raw.T)
	switch {
	case len(t) == 0, bytes.Equal(t, []byte("null")):
		v.T = ""
	case t[0] == '"':
		return json.Unmarshal(t, &v.T)
	default:
		v.T = string(t)
	}
	return nil
}

// Int は値を整数として解釈する。解釈できない場合は0を返す。
func (v gdataValue) Int() int {
	n, _ := strconv.Atoi(v.T)
	return n
}

// Int64 は値を64ビット整数として解釈する。解釈できない場合は0を返す。
func (v gdataValue) Int64() int64 {
	n, _ := strconv.ParseInt(v.T, 10, 64)
	return n
}

// Bool は値を真偽値として解釈する。解釈できない場合はfalseを返す。
func (v gdataValue) Bool() bool {
	b, _ := strconv.ParseBool(v.T)
	return b
}

// photoEntry はGDataの写真エントリ。
type photoEntry struct {
	ID                gdataValue `json:"gphoto$id"`
	AlbumID           gdataValue `json:"gphoto$albumid"`
	Access            gdataValue `json:"gphoto$access"`
	Width             gdataValue `json:"gphoto$width"`
	Height            gdataValue `json:"gphoto$height"`
	Size              gdataValue `json:"gphoto$size"`
	Checksum          gdataValue `json:"gphoto$checksum"`
	Timestamp         gdataValue `json:"gphoto$timestamp"`
	ImageVersion      gdataValue `json:"gphoto$imageVersion"`
	CommentingEnabled gdataValue `json:"gphoto$commentingEnabled"`
	CommentCount      gdataValue `json:"gphoto$commentCount"`
	Title             gdataValue `json:"title"`
	Summary           gdataValue `json:"summary"`
	Content           Content    `json:"content"`
}

// toPhoto はGDataエントリをPhotoに整形する。
func (e photoEntry) toPhoto() Photo {
	return Photo{
		ID:                e.ID.T,
		AlbumID:           e.AlbumID.T,
		Access:            e.Access.T,
		Width:             e.Width.Int(),
		Height:            e.Height.Int(),
		Size:              e.Size.Int64(),
		Checksum:          e.Checksum.T,
		Timestamp:         e.Timestamp.Int64(),
		ImageVersion:      e.ImageVersion.T,
		CommentingEnabled: e.CommentingEnabled.Bool(),
		CommentCount:      e.CommentCount.Int(),
		Title:             e.Title.T,
		Summary:           e.Summary.T,
		Content:           e.Content,
	}
}

// albumEntry はGDataのアルバムエントリ。
type albumEntry struct {
	ID        gdataValue `json:"gphoto$id"`
	Title     gdataValue `json:"title"`
	Summary   gdataValue `json:"summary"`
	NumPhotos gdataValue `json:"gphoto$numphotos"`
	Access    gdataValue `json:"gphoto$access"`
	Timestamp gdataValue `json:"gphoto$timestamp"`
}

// toAlbum はGDataエントリをAlbumに整形する。
func (e albumEntry) toAlbum() Album {
	return Album{
		ID:        e.ID.T,
		Title:     e.Title.T,
		Summary:   e.Summary.T,
		NumPhotos: e.NumPhotos.Int(),
		Access:    e.Access.T,
		Timestamp: e.Timestamp.Int64(),
	}
}

// photoFeed は写真一覧のレスポンス。
type photoFeed struct {
	Feed struct {
		Entry []photoEntry `json:"entry"`
	} `json:"feed"`
}

// albumFeed はアルバム一覧のレスポンス。
type albumFeed struct {
	Feed struct {
		Entry []albumEntry `json:"entry"`
	} `json:"feed"`
}

// photoEntryResponse は写真投稿のレスポンス。
type photoEntryResponse struct {
	Entry photoEntry `json:"entry"`
}

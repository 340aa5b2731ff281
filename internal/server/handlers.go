package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	// プレビューキャッシュのポーリング間隔
	streamPollInterval = 30 * time.Millisecond

	// ロゴアップロードの上限サイズ
	maxLogoBytes = 5 * 1024 * 1024

	// ロゴの保存ファイル名（拡張子に関わらず固定）
	logoFilename = "team-logo.png"
)

// startRequest は録画開始リクエストのボディ
type startRequest struct {
	Label string `json:"label"`
}

// handleIndex は操作画面を返す
func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", getIndexHTML())
}

// handleHealth はヘルスチェックエンドポイントの実装
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleStatus は稼働状態取得エンドポイントの実装
func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.recorder.Status())
}

// handleClips はクリップ一覧取得エンドポイントの実装
func (s *Server) handleClips(c *gin.Context) {
	clips := s.recorder.ListClips()

	type clipInfo struct {
		Name        string `json:"name"`
		SizeBytes   int64  `json:"size_bytes"`
		ModifiedTS  int64  `json:"modified_ts"`
		DownloadURL string `json:"download_url"`
	}

	infos := make([]clipInfo, 0, len(clips))
	for _, clip := range clips {
		infos = append(infos, clipInfo{
			Name:        clip.Name,
			SizeBytes:   clip.SizeBytes,
			ModifiedTS:  clip.ModifiedTS,
			DownloadURL: "/download/" + clip.Name,
		})
	}

	c.JSON(http.StatusOK, gin.H{"clips": infos})
}

// handleStart は録画開始エンドポイントの実装
func (s *Server) handleStart(c *gin.Context) {
	// ボディなし・不正なJSONは空ラベルとして扱う
	var req startRequest
	_ = c.ShouldBindJSON(&req)

	path, err := s.recorder.StartRecording(req.Label)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "file": path})
}

// handleStop は録画停止エンドポイントの実装
// 録画していない場合もエラーにはせず、fileをnullで返す
func (s *Server) handleStop(c *gin.Context) {
	path, ok := s.recorder.StopRecording(c.Request.Context())

	var file any
	if ok {
		file = path
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "file": file})
}

// handleDownload はクリップダウンロードエンドポイントの実装
//
// ファイル名は出力ディレクトリ直下の完成済みクリップのみを受け付ける。
// パス区切りを含む名前や一時生ストリームは404
func (s *Server) handleDownload(c *gin.Context) {
	name := c.Param("filename")
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	if !strings.HasSuffix(name, ".mp4") {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	path := filepath.Join(s.config.Recording.OutputDir, name)
	if _, err := os.Stat(path); err != nil {
		c.AbortWithStatus(http.StatusNotFound)
		return
	}

	c.FileAttachment(path, name)
}

// handleLogo はチームロゴのアップロードエンドポイントの実装
func (s *Server) handleLogo(c *gin.Context) {
	file, err := c.FormFile("logo")
	if err != nil || file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": "No file uploaded",
		})
		return
	}

	if file.Size > maxLogoBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"ok":    false,
			"error": "File too large",
		})
		return
	}

	switch strings.ToLower(filepath.Ext(file.Filename)) {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"ok":    false,
			"error": "Use png/jpg/jpeg/webp",
		})
		return
	}

	if err := os.MkdirAll(s.config.Server.AssetsDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	if err := c.SaveUploadedFile(file, filepath.Join(s.config.Server.AssetsDir, logoFilename)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"logo_url": "/assets/" + logoFilename,
	})
}

// handleStream はMJPEGプレビューストリームを配信する
//
// プレビューキャッシュをポーリングし、新しいフレームが生成されるたびに
// multipartパートとして書き込む。切断されるまで配信を続ける
func (s *Server) handleStream(c *gin.Context) {
	// レスポンスヘッダーを設定
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	// クライアント切断を検知するためのコンテキスト
	clientGone := c.Request.Context().Done()

	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	// ストリーミングループ
	var lastSent time.Time
	for {
		select {
		case <-clientGone:
			// クライアントが切断された
			return

		case <-ticker.C:
			frame, generatedAt := s.recorder.PreviewFrame()
			if frame == nil || !generatedAt.After(lastSent) {
				// まだ新しいフレームがない
				continue
			}
			lastSent = generatedAt

			if _, err := writer.Write([]byte("--frame\r\n")); err != nil {
				return
			}
			if _, err := writer.Write([]byte("Content-Type: image/jpeg\r\n\r\n")); err != nil {
				return
			}
			if _, err := writer.Write(frame); err != nil {
				return
			}
			if _, err := writer.Write([]byte("\r\n")); err != nil {
				return
			}

			// バッファをフラッシュ
			flusher.Flush()
		}
	}
}

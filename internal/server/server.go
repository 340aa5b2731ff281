package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"rokuga/internal/config"
	"rokuga/internal/recorder"
)

// RecorderService はサーバーが必要とするレコーダー操作
//
// テストではモック実装に差し替える
type RecorderService interface {
	Status() recorder.StatusSnapshot
	ListClips() []recorder.Clip
	PreviewFrame() ([]byte, time.Time)
	StartRecording(label string) (string, error)
	StopRecording(ctx context.Context) (string, bool)
	Stop(ctx context.Context)
}

// Server はHTTPサーバーを管理する構造体
type Server struct {
	config     *config.Config
	recorder   RecorderService
	engine     *gin.Engine
	httpServer *http.Server
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config, rec RecorderService) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config:   cfg,
		recorder: rec,
		engine:   engine,
		httpServer: &http.Server{
			Addr:        cfg.ServerAddress(),
			Handler:     engine,
			ReadTimeout: cfg.Server.ReadTimeout,
			// ストリーミング配信があるためWriteTimeoutは設定しない
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes はHTTPルートを設定する
func (s *Server) setupRoutes() {
	// 画面とヘルスチェック
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/health", s.handleHealth)

	// プレビューストリーム
	s.engine.GET("/stream.mjpg", s.handleStream)

	// 録画API
	s.engine.GET("/api/status", s.handleStatus)
	s.engine.GET("/api/clips", s.handleClips)
	s.engine.POST("/api/start", s.handleStart)
	s.engine.POST("/api/stop", s.handleStop)
	s.engine.POST("/api/logo", s.handleLogo)

	// クリップダウンロードと静的ファイル
	s.engine.GET("/download/:filename", s.handleDownload)
	s.engine.Static("/assets", s.config.Server.AssetsDir)
}

// Start はサーバーを起動する
//
// シグナルまたはコンテキストのキャンセルでグレースフルシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("HTTPサーバーを起動しています: %s", s.config.ServerAddress())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			shutdownCh <- fmt.Errorf("サーバーの起動に失敗: %w", err)
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Shutdown はサーバーをグレースフルにシャットダウンする
//
// HTTPの受付を先に止めてから、レコーダー（録画中であれば録画も）を停止する
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("サーバーのシャットダウンに失敗: %v", err)
	}

	// 最後のremuxにはHTTP側の期限ではなく、設定された打ち切り時間を使わせる
	s.recorder.Stop(context.Background())

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

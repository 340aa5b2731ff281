package main

import (
	"context"
	"log"

	"rokuga/internal/camera"
	"rokuga/internal/config"
	"rokuga/internal/recorder"
	"rokuga/internal/server"
)

func main() {
	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// ffmpegが利用可能か確認する
	if err := recorder.ValidateFFmpeg(); err != nil {
		log.Fatalf("%v", err)
	}

	// レコーダーを作成してキャプチャループを開始する
	rec := recorder.New(
		camera.NewV4L2Factory(),
		recorder.NewFFmpegRemuxer(cfg.Camera.FPS),
		recorder.Options{
			OutputDir: cfg.Recording.OutputDir,
			Settings: camera.Settings{
				Device:  cfg.Camera.Device,
				Width:   cfg.Camera.Width,
				Height:  cfg.Camera.Height,
				FPS:     cfg.Camera.FPS,
				Bitrate: cfg.Recording.Bitrate,
			},
			Preview: recorder.PreviewOptions{
				Width:       cfg.Preview.Width,
				Height:      cfg.Preview.Height,
				FPS:         cfg.Preview.FPS,
				JPEGQuality: cfg.Preview.JPEGQuality,
			},
			MaxClips:             cfg.Recording.MaxClips,
			OpenRetryInterval:    cfg.Camera.OpenRetryInterval,
			CaptureRetryInterval: cfg.Camera.CaptureRetryInterval,
			RemuxTimeout:         cfg.Recording.RemuxTimeout,
			JoinTimeout:          cfg.Recording.JoinTimeout,
		},
	)
	if err := rec.Start(); err != nil {
		log.Fatalf("レコーダーの起動に失敗しました: %v", err)
	}

	// サーバーを作成して起動する。シャットダウン時にレコーダーも停止される
	srv := server.New(cfg, rec)
	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}

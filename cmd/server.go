// Package main はRokugaサーバーコマンドの実装です
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"rokuga/internal/camera"
	"rokuga/internal/config"
	"rokuga/internal/recorder"
	"rokuga/internal/server"
)

func main() {
	// コマンドラインオプション
	var (
		host      = flag.String("host", "", "サーバーのホスト (デフォルト: 0.0.0.0)")
		port      = flag.Int("port", 0, "サーバーのポート (デフォルト: 5000)")
		device    = flag.String("device", "", "カメラデバイス (デフォルト: /dev/video0)")
		outputDir = flag.String("output-dir", "", "クリップ出力先 (デフォルト: recordings)")
		help      = flag.Bool("help", false, "ヘルプを表示")
	)

	flag.Parse()

	// ヘルプ表示
	if *help {
		fmt.Println("Rokuga")
		fmt.Println()
		fmt.Println("使用方法:")
		fmt.Println("  server [オプション]")
		fmt.Println()
		fmt.Println("オプション:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	// 設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}

	// コマンドラインオプションで設定を上書き
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *device != "" {
		cfg.Camera.Device = *device
	}
	if *outputDir != "" {
		cfg.Recording.OutputDir = *outputDir
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

	// サーバーを起動する
	srv := server.New(cfg, rec)

	log.Printf("Rokuga サーバーを起動します: %s", cfg.ServerAddress())
	if err := srv.Start(context.Background()); err != nil {
		log.Fatalf("サーバーの起動に失敗しました: %v", err)
	}
}

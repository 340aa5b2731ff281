package config

import (
	"fmt"
	"os"
	"time"
)

// Config はアプリケーション全体の設定を保持する構造体
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Camera    CameraConfig    `yaml:"camera"`
	Preview   PreviewConfig   `yaml:"preview"`
	Recording RecordingConfig `yaml:"recording"`
}

// ServerConfig はHTTPサーバーの設定
type ServerConfig struct {
	Host string `yaml:"host"` // リッスンするホスト
	Port int    `yaml:"port"` // リッスンするポート番号

	// タイムアウト設定
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // 読み込みタイムアウト
	WriteTimeout time.Duration `yaml:"write_timeout"` // 書き込みタイムアウト

	// アップロードされたロゴ画像などの置き場所
	AssetsDir string `yaml:"assets_dir"`
}

// CameraConfig はカメラキャプチャの設定
type CameraConfig struct {
	Device string `yaml:"device"` // デバイスパス (例: /dev/video0)
	FPS    int    `yaml:"fps"`    // ネイティブフレームレート
	Width  int    `yaml:"width"`  // キャプチャ幅
	Height int    `yaml:"height"` // キャプチャ高さ

	// 再接続の待ち時間。オープン失敗時はハードウェア初期化を
	// 連打しないよう、キャプチャ失敗時より長くとる
	OpenRetryInterval    time.Duration `yaml:"open_retry_interval"`
	CaptureRetryInterval time.Duration `yaml:"capture_retry_interval"`
}

// PreviewConfig はプレビュー画像生成の設定
type PreviewConfig struct {
	FPS         int `yaml:"fps"`          // プレビュー更新レート（キャプチャレート以下）
	Width       int `yaml:"width"`        // プレビュー幅
	Height      int `yaml:"height"`       // プレビュー高さ
	JPEGQuality int `yaml:"jpeg_quality"` // JPEG品質 (1-100)
}

// RecordingConfig は録画とクリップ保持の設定
type RecordingConfig struct {
	OutputDir    string        `yaml:"output_dir"`    // クリップ出力先ディレクトリ
	MaxClips     int           `yaml:"max_clips"`     // 保持する最大クリップ数
	Bitrate      int           `yaml:"bitrate"`       // H.264ビットレート (bps)
	RemuxTimeout time.Duration `yaml:"remux_timeout"` // remux処理の打ち切り時間
	JoinTimeout  time.Duration `yaml:"join_timeout"`  // シャットダウン時のループ待機時間
}

// Load は設定を読み込む
// 環境変数で上書き可能なデフォルト値を返す
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			Port:         getEnvAsIntOrDefault("PORT", 5000),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 0, // ストリーミング用にタイムアウト無効化
			AssetsDir:    getEnvOrDefault("ASSETS_DIR", "assets"),
		},
		Camera: CameraConfig{
			Device:               getEnvOrDefault("CAMERA_DEVICE", "/dev/video0"),
			FPS:                  getEnvAsIntOrDefault("CAMERA_FPS", 50),
			Width:                1280,
			Height:               720,
			OpenRetryInterval:    2 * time.Second,
			CaptureRetryInterval: 1 * time.Second,
		},
		Preview: PreviewConfig{
			FPS:         25,
			Width:       640,
			Height:      360,
			JPEGQuality: 65,
		},
		Recording: RecordingConfig{
			OutputDir:    getEnvOrDefault("OUTPUT_DIR", "recordings"),
			MaxClips:     getEnvAsIntOrDefault("MAX_CLIPS", 5),
			Bitrate:      8_000_000,
			RemuxTimeout: 30 * time.Second,
			JoinTimeout:  5 * time.Second,
		},
	}

	// 設定の検証
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("設定の検証に失敗: %w", err)
	}

	return cfg, nil
}

// Validate は設定の妥当性を検証する
func (c *Config) Validate() error {
	// サーバー設定の検証
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("無効なポート番号: %d", c.Server.Port)
	}

	// カメラ設定の検証
	if c.Camera.Device == "" {
		return fmt.Errorf("カメラデバイスが指定されていません")
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("無効なカメラFPS: %d", c.Camera.FPS)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("無効なキャプチャ解像度: %dx%d", c.Camera.Width, c.Camera.Height)
	}

	// プレビュー設定の検証
	if c.Preview.FPS <= 0 || c.Preview.FPS > c.Camera.FPS {
		return fmt.Errorf("プレビューFPSはカメラFPS以下でなければなりません: %d", c.Preview.FPS)
	}
	if c.Preview.Width <= 0 || c.Preview.Height <= 0 {
		return fmt.Errorf("無効なプレビュー解像度: %dx%d", c.Preview.Width, c.Preview.Height)
	}
	if c.Preview.JPEGQuality < 1 || c.Preview.JPEGQuality > 100 {
		return fmt.Errorf("無効なJPEG品質: %d", c.Preview.JPEGQuality)
	}

	// 録画設定の検証
	if c.Recording.OutputDir == "" {
		return fmt.Errorf("出力ディレクトリが指定されていません")
	}
	if c.Recording.MaxClips < 1 {
		return fmt.Errorf("無効な最大クリップ数: %d", c.Recording.MaxClips)
	}

	return nil
}

// ServerAddress はサーバーのリッスンアドレスを返す
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// getEnvOrDefault は環境変数を取得し、設定されていない場合はデフォルト値を返す
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault は環境変数を整数として取得し、設定されていない場合はデフォルト値を返す
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intVal int
		if _, err := fmt.Sscanf(value, "%d", &intVal); err == nil {
			return intVal
		}
	}
	return defaultValue
}

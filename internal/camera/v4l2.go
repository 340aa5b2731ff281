package camera

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// エンコーダー停止時にffmpegの終了を待つ時間
const encoderStopTimeout = 5 * time.Second

// V4L2Factory はffmpeg経由でV4L2デバイスのセッションを生成する
type V4L2Factory struct{}

// NewV4L2Factory は新しいV4L2Factoryを作成する
func NewV4L2Factory() Factory {
	return &V4L2Factory{}
}

// Open はカメラデバイスを開き、MJPEGストリームの取得を開始する
func (f *V4L2Factory) Open(ctx context.Context, settings Settings) (Session, error) {
	// ffmpegで連続的にMJPEGフレームをキャプチャする
	streamCtx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(streamCtx,
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", settings.Width, settings.Height),
		"-framerate", strconv.Itoa(settings.FPS),
		"-i", settings.Device,
		"-f", "image2pipe",
		"-c:v", "mjpeg",
		"-q:v", "3",
		"-",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdoutパイプの作成に失敗: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("ffmpegの起動に失敗: %w (stderr: %s)", err, stderr.String())
	}

	s := &V4L2Session{
		settings:  settings,
		streamCmd: cmd,
		stream:    stdout,
		cancel:    cancel,
	}

	// 最初のフレームが取れることを確認してから返す
	// デバイスが存在しない場合などはここで失敗する
	probeCtx, probeCancel := context.WithTimeout(ctx, 10*time.Second)
	defer probeCancel()
	if _, err := s.probeFrame(probeCtx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("カメラの初回キャプチャに失敗: %w (stderr: %s)", err, stderr.String())
	}

	log.Printf("[camera] セッションを開始しました %s %dx%d @ %dfps",
		settings.Device, settings.Width, settings.Height, settings.FPS)
	return s, nil
}

// V4L2Session はffmpegサブプロセスを使ったSessionの実装
type V4L2Session struct {
	settings Settings

	// MJPEGストリーム用
	streamCmd *exec.Cmd
	stream    io.ReadCloser
	cancel    context.CancelFunc
	buf       []byte // 読みかけのストリームデータ

	// ハードウェアエンコーダー用
	mu         sync.Mutex
	encoderCmd *exec.Cmd
}

// probeFrame は期限付きで最初のフレーム取得を試みる
//
// ストリームのReadはコンテキストを知らないため、期限切れ時はストリームを
// 閉じて読み取りをブロックから解放する。データを出さないままのffmpegで
// オープンが止まり続けないようにする
func (s *V4L2Session) probeFrame(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = s.stream.Close()
	})
	defer stop()

	frame, err := s.CaptureFrame(ctx)
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return frame, err
}

// CaptureFrame は次の1フレームをJPEGバイト列として取得する
func (s *V4L2Session) CaptureFrame(ctx context.Context) ([]byte, error) {
	chunk := make([]byte, 64*1024)

	for {
		// 既に完全なフレームがバッファにあれば返す
		frame, rest := extractJPEGFrame(s.buf)
		s.buf = rest
		if frame != nil {
			return frame, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.stream.Read(chunk)
		if err != nil {
			return nil, fmt.Errorf("ストリームの読み取りに失敗: %w", err)
		}
		s.buf = append(s.buf, chunk[:n]...)

		// ストリームが壊れた場合の安全弁
		if len(s.buf) > 10*1024*1024 {
			s.buf = nil
			return nil, fmt.Errorf("フレームバッファが上限を超えました")
		}
	}
}

// StartEncoder はハードウェアエンコーダーを開始する
//
// ffmpegのh264_v4l2m2m（ハードウェアエンコード）で生H.264ストリームを
// 指定パスへ書き出す
func (s *V4L2Session) StartEncoder(outputPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encoderCmd != nil {
		return fmt.Errorf("エンコーダーは既に動作しています")
	}

	cmd := exec.Command(
		"ffmpeg",
		"-f", "v4l2",
		"-video_size", fmt.Sprintf("%dx%d", s.settings.Width, s.settings.Height),
		"-framerate", strconv.Itoa(s.settings.FPS),
		"-i", s.settings.Device,
		"-c:v", "h264_v4l2m2m",
		"-b:v", strconv.Itoa(s.settings.Bitrate),
		"-f", "h264",
		"-y",
		outputPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("エンコーダーの起動に失敗: %w (stderr: %s)", err, stderr.String())
	}

	s.encoderCmd = cmd
	return nil
}

// StopEncoder は実行中のエンコーダーを停止する
func (s *V4L2Session) StopEncoder() error {
	s.mu.Lock()
	cmd := s.encoderCmd
	s.encoderCmd = nil
	s.mu.Unlock()

	if cmd == nil {
		return nil
	}

	// SIGINTでffmpegにファイルを閉じさせる
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("エンコーダーへのシグナル送信に失敗: %w", err)
	}

	// 終了を待つ。時間内に終わらなければ強制終了する
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case <-done:
		return nil
	case <-time.After(encoderStopTimeout):
		_ = cmd.Process.Kill()
		<-done
		return fmt.Errorf("エンコーダーの停止がタイムアウトしました")
	}
}

// Close はセッションを閉じ、サブプロセスを終了させる
func (s *V4L2Session) Close() error {
	// 動作中のエンコーダーがあれば停止する
	if err := s.StopEncoder(); err != nil {
		log.Printf("[camera] クローズ中のエンコーダー停止エラー: %v", err)
	}

	// ストリームプロセスを終了させる
	s.cancel()
	_ = s.stream.Close()
	_ = s.streamCmd.Wait() // コンテキストキャンセルによる終了エラーは無視

	return nil
}

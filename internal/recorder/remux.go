package recorder

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
)

// Remuxer は生H.264ストリームをコンテナへ詰め直す外部コラボレーター
//
// テストではフェイク実装に差し替える
type Remuxer interface {
	Remux(ctx context.Context, rawPath, finalPath string) error
}

// FFmpegRemuxer はffmpegによるRemuxerの実装
//
// 再エンコードなしの「copy」でコンテナへ詰め直す
type FFmpegRemuxer struct {
	FrameRate int // 入力ストリームのフレームレート
}

// NewFFmpegRemuxer は新しいFFmpegRemuxerを作成する
func NewFFmpegRemuxer(frameRate int) *FFmpegRemuxer {
	return &FFmpegRemuxer{FrameRate: frameRate}
}

// Remux は生H.264ストリームをMP4コンテナへ詰め直す
// コンテキストのタイムアウトで打ち切られる
func (f *FFmpegRemuxer) Remux(ctx context.Context, rawPath, finalPath string) error {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-y",
		"-framerate", strconv.Itoa(f.FrameRate),
		"-i", rawPath,
		"-c", "copy",
		finalPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("remuxに失敗: %w (output: %s)", err, string(output))
	}

	return nil
}

// ValidateFFmpeg はffmpegが利用可能かチェックする
func ValidateFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpegが見つかりません。インストールしてください: %w", err)
	}
	return nil
}

package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrCameraNotConnected はカメラ未接続時の録画開始で返されるエラー
var ErrCameraNotConnected = errors.New("カメラが接続されていません")

const (
	defaultLabel    = "clip"            // 空ラベルの代替トークン
	containerExt    = ".mp4"            // 最終コンテナの拡張子
	rawStreamExt    = ".h264"           // 一時生ストリームの拡張子
	timestampLayout = "20060102_150405" // ファイル名のタイムスタンプ形式
)

// sanitizeLabel はラベルをファイルシステムで安全なトークンへ変換する
//
// 英数字と「-」「_」のみを残し、それ以外は「_」に置き換える。前後の
// 「_」は取り除き、空になった場合は既定のトークンを返す
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, c := range label {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '-' || c == '_' {
			b.WriteRune(c)
		} else {
			b.WriteByte('_')
		}
	}

	safe := strings.Trim(b.String(), "_")
	if safe == "" {
		return defaultLabel
	}
	return safe
}

// StartRecording はハードウェアエンコードによる録画を開始する
//
// 既に録画中の場合は新しいセッションを作らず、既存のターゲットパスを
// そのまま返す（冪等）。カメラが接続されていない場合は
// ErrCameraNotConnectedを返す
func (r *Recorder) StartRecording(label string) (string, error) {
	safe := sanitizeLabel(label)
	ts := r.now().Format(timestampLayout)
	finalPath := filepath.Join(r.outputDir, ts+"_"+safe+containerExt)
	rawPath := strings.TrimSuffix(finalPath, containerExt) + rawStreamExt

	r.mu.Lock()
	if r.recording != nil {
		path := r.recording.finalPath
		r.mu.Unlock()
		return path, nil
	}
	sess := r.session
	r.mu.Unlock()

	if sess == nil {
		return "", ErrCameraNotConnected
	}

	// エンコーダーの開始はロックの外で行う
	if err := sess.StartEncoder(rawPath); err != nil {
		return "", fmt.Errorf("エンコーダーの開始に失敗: %w", err)
	}

	rec := &recordingSession{
		id:        uuid.New().String(),
		label:     safe,
		startedAt: r.now(),
		rawPath:   rawPath,
		finalPath: finalPath,
	}

	r.mu.Lock()
	if r.recording != nil {
		// 同時開始の競合に負けた場合。録画セッションは高々1つなので、
		// 自分のエンコーダーを破棄して既存のターゲットを返す
		existing := r.recording.finalPath
		r.mu.Unlock()

		if err := sess.StopEncoder(); err != nil {
			log.Printf("[rec] 競合したエンコーダーの停止に失敗: %v", err)
		}
		if err := os.Remove(rawPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[rec] 競合した一時ファイルの削除に失敗: %v", err)
		}
		return existing, nil
	}
	r.recording = rec
	r.mu.Unlock()

	log.Printf("[rec] 録画を開始しました id=%s → %s", rec.id, rawPath)
	return finalPath, nil
}

// StopRecording は録画を停止し、最終的なクリップパスを返す
//
// 録画中でない場合は("", false)を返し、副作用はない。エンコーダー停止・
// remux・一時ファイル削除の失敗はログのみで、パスは常に返す
func (r *Recorder) StopRecording(ctx context.Context) (string, bool) {
	// 先に録画状態をクリアし、並行呼び出しには即座に
	// 「録画していない」と見せる
	r.mu.Lock()
	rec := r.recording
	sess := r.session
	r.recording = nil
	r.mu.Unlock()

	if rec == nil {
		return "", false
	}

	// ハードウェアエンコーダーを停止する
	if sess != nil {
		if err := sess.StopEncoder(); err != nil {
			log.Printf("[rec] エンコーダーの停止に失敗: %v", err)
		}
	}

	// 一時ファイルがあればMP4へremuxする
	if _, err := os.Stat(rec.rawPath); err == nil {
		log.Printf("[rec] remux中 → %s", filepath.Base(rec.finalPath))

		remuxCtx, cancel := context.WithTimeout(ctx, r.remuxTimeout)
		if err := r.remuxer.Remux(remuxCtx, rec.rawPath, rec.finalPath); err != nil {
			// remuxの失敗は致命的ではない。部分ファイルはそのまま残す
			log.Printf("[rec] remuxに失敗: %v", err)
		} else if info, serr := os.Stat(rec.finalPath); serr == nil {
			log.Printf("[rec] 完了 id=%s (%d bytes)", rec.id, info.Size())
		}
		cancel()

		if err := os.Remove(rec.rawPath); err != nil && !os.IsNotExist(err) {
			log.Printf("[rec] 一時ファイルの削除に失敗: %v", err)
		}
	}

	// 保持上限を超えた古いクリップを削除する
	r.cleanupOldClips()

	return rec.finalPath, true
}

package recorder

import (
	"time"
)

// StatusSnapshot は一時点の稼働状態を表す
//
// 全フィールドは単一のロック取得の中で組み立てられ、相互に整合する
type StatusSnapshot struct {
	Recording       bool    `json:"recording"`        // 録画中かどうか
	MeasuredFPS     float64 `json:"measured_fps"`     // 平滑化済みfps（小数第1位まで）
	CameraConnected bool    `json:"camera_connected"` // カメラ接続状態
	LastError       string  `json:"last_error"`       // 最後に発生したエラー
}

// Clip は完成済みのオンディスククリップを表す
//
// ファイルシステムのスキャンから都度導出され、キャッシュされない
type Clip struct {
	Name       string `json:"name"`        // ファイル名
	SizeBytes  int64  `json:"size_bytes"`  // ファイルサイズ
	ModifiedTS int64  `json:"modified_ts"` // 更新時刻（Unix秒）
}

// recordingSession はアクティブな録画を表す
//
// StartRecordingで生成され、StopRecordingで消費・破棄される
type recordingSession struct {
	id        string    // セッションの一意識別子
	label     string    // サニタイズ済みラベル
	startedAt time.Time // 録画開始時刻
	rawPath   string    // 一時H.264ストリームのパス
	finalPath string    // 最終的なMP4のパス
}

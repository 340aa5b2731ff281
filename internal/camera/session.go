package camera

import (
	"context"
)

// Settings はカメラセッションの設定を表す
type Settings struct {
	Device  string // デバイスパス（例: /dev/video0）
	Width   int    // キャプチャ幅
	Height  int    // キャプチャ高さ
	FPS     int    // ネイティブフレームレート
	Bitrate int    // H.264エンコードのビットレート (bps)
}

// Session はオープン済みのカメラセッションを表すインターフェース
//
// セッションはキャプチャループが排他的に所有する。ハードウェアへの
// 呼び出しは全て失敗しうるため、呼び出し側はエラーを受けてセッションを
// 破棄・再生成する
type Session interface {
	// CaptureFrame は次の1フレームをJPEGバイト列として取得する
	// ストリームから次のフレームが届くまでブロックする
	CaptureFrame(ctx context.Context) ([]byte, error)

	// StartEncoder はハードウェアエンコーダーを開始し、
	// 生H.264ストリームを指定パスへ書き出す
	StartEncoder(outputPath string) error

	// StopEncoder は実行中のエンコーダーを停止する
	// エンコーダーが動作していない場合は何もしない
	StopEncoder() error

	// Close はセッションを閉じ、関連リソースを解放する
	Close() error
}

// Factory はカメラセッションを生成する
//
// キャプチャループは接続が切れるたびにFactoryへオープンを依頼する。
// テストではMockFactoryに差し替える
type Factory interface {
	Open(ctx context.Context, settings Settings) (Session, error)
}

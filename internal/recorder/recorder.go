package recorder

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"rokuga/internal/camera"
)

// 指数移動平均の重み。瞬間レートに0.1をかけて平滑化する
const (
	emaPrevWeight  = 0.9
	emaFrameWeight = 0.1
)

// Options はRecorderの設定
type Options struct {
	OutputDir string          // クリップ出力先ディレクトリ
	Settings  camera.Settings // カメラ設定
	Preview   PreviewOptions  // プレビュー生成設定
	MaxClips  int             // 保持する最大クリップ数

	// 再接続の待ち時間。オープン失敗時の方を長くとる
	OpenRetryInterval    time.Duration
	CaptureRetryInterval time.Duration

	RemuxTimeout time.Duration // remux処理の打ち切り時間
	JoinTimeout  time.Duration // シャットダウン時のループ終了待ち時間
}

// Recorder はキャプチャループと録画ライフサイクルを管理する
//
// 共有状態は全てmuで保護する。ロックを保持したままハードウェア呼び出しや
// サブプロセス実行を行ってはならない
type Recorder struct {
	factory  camera.Factory
	remuxer  Remuxer
	settings camera.Settings
	preview  PreviewOptions

	outputDir            string
	maxClips             int
	openRetryInterval    time.Duration
	captureRetryInterval time.Duration
	previewPeriod        time.Duration
	remuxTimeout         time.Duration
	joinTimeout          time.Duration

	now func() time.Time // テストで差し替える

	mu            sync.Mutex
	running       bool
	done          chan struct{}
	session       camera.Session
	recording     *recordingSession
	previewJPEG   []byte
	previewAt     time.Time
	nextPreviewAt time.Time
	measuredFPS   float64
	lastFrameAt   time.Time // ゼロ値 = 未計測
	frameCount    uint64
	lastError     string
}

// New は新しいRecorderを作成する
func New(factory camera.Factory, remuxer Remuxer, opts Options) *Recorder {
	if opts.MaxClips < 1 {
		opts.MaxClips = 5
	}
	if opts.OpenRetryInterval <= 0 {
		opts.OpenRetryInterval = 2 * time.Second
	}
	if opts.CaptureRetryInterval <= 0 {
		opts.CaptureRetryInterval = 1 * time.Second
	}
	if opts.RemuxTimeout <= 0 {
		opts.RemuxTimeout = 30 * time.Second
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = 5 * time.Second
	}
	if opts.Preview.FPS <= 0 {
		opts.Preview.FPS = 25
	}

	return &Recorder{
		factory:              factory,
		remuxer:              remuxer,
		settings:             opts.Settings,
		preview:              opts.Preview,
		outputDir:            opts.OutputDir,
		maxClips:             opts.MaxClips,
		openRetryInterval:    opts.OpenRetryInterval,
		captureRetryInterval: opts.CaptureRetryInterval,
		previewPeriod:        time.Second / time.Duration(opts.Preview.FPS),
		remuxTimeout:         opts.RemuxTimeout,
		joinTimeout:          opts.JoinTimeout,
		now:                  time.Now,
	}
}

// Start はキャプチャループを開始する
// 既に開始済みの場合は何もしない
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}

	r.running = true
	r.done = make(chan struct{})
	go r.captureLoop()

	return nil
}

// Stop はRecorderをシャットダウンする
//
// アクティブな録画を先に停止し、キャプチャループの終了を（上限付きで）
// 待ってからカメラセッションを閉じる
func (r *Recorder) Stop(ctx context.Context) {
	// 録画中であれば先に停止する
	if path, ok := r.StopRecording(ctx); ok {
		log.Printf("[recorder] シャットダウンに伴い録画を停止しました: %s", path)
	}

	r.mu.Lock()
	r.running = false
	done := r.done
	r.mu.Unlock()

	// ループが停止フラグを観測して終了するのを待つ
	if done != nil {
		select {
		case <-done:
		case <-time.After(r.joinTimeout):
			log.Printf("[recorder] キャプチャループの終了待ちがタイムアウトしました")
		}
	}

	// ループの終了如何に関わらずセッションを閉じる
	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.mu.Unlock()

	if sess != nil {
		if err := sess.Close(); err != nil {
			log.Printf("[camera] セッションのクローズに失敗: %v", err)
		}
	}
}

// captureLoop はカメラセッションを所有する常駐ループ
//
// Disconnected → Connecting → Streaming → (Error → Connecting) の状態遷移を
// 繰り返し、明示的なシャットダウンまで動き続ける
func (r *Recorder) captureLoop() {
	defer close(r.done)

	for {
		r.mu.Lock()
		if !r.running {
			r.mu.Unlock()
			return
		}
		sess := r.session
		r.mu.Unlock()

		// Connecting: セッションがなければオープンを試みる
		if sess == nil {
			opened, err := r.factory.Open(context.Background(), r.settings)
			if err != nil {
				r.mu.Lock()
				r.lastError = err.Error()
				r.mu.Unlock()
				time.Sleep(r.openRetryInterval)
				continue
			}

			r.mu.Lock()
			r.session = opened
			r.lastError = ""
			r.mu.Unlock()
			sess = opened
		}

		// Streaming: 次のフレームを取得
		frame, err := sess.CaptureFrame(context.Background())
		if err != nil {
			// 失敗したセッションは破棄して再接続する。古いfps値を
			// 報告しないよう、推定値もここでリセットする
			r.mu.Lock()
			r.lastError = fmt.Sprintf("フレーム取得に失敗: %v", err)
			r.lastFrameAt = time.Time{}
			r.measuredFPS = 0
			r.session = nil
			r.mu.Unlock()

			// クローズはロックの外で行う
			if cerr := sess.Close(); cerr != nil {
				log.Printf("[camera] セッションのクローズに失敗: %v", cerr)
			}
			time.Sleep(r.captureRetryInterval)
			continue
		}

		now := r.now()
		encodePreview, recording, fps := r.frameArrived(now)

		// プレビュー生成はロックの外で行い、結果だけをロック下で保存する
		if encodePreview {
			if jpg := buildPreview(frame, recording, fps, r.preview); jpg != nil {
				r.mu.Lock()
				r.previewJPEG = jpg
				r.previewAt = now
				r.mu.Unlock()
			}
		}
	}
}

// frameArrived は1フレーム到着時の統計更新とプレビュー判定を行う
func (r *Recorder) frameArrived(now time.Time) (encodePreview, recording bool, fps float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// 到着間隔から瞬間レートを計算し、指数移動平均で平滑化する
	if !r.lastFrameAt.IsZero() {
		delta := now.Sub(r.lastFrameAt).Seconds()
		if delta > 0 {
			inst := 1.0 / delta
			if r.measuredFPS > 0 {
				r.measuredFPS = emaPrevWeight*r.measuredFPS + emaFrameWeight*inst
			} else {
				r.measuredFPS = inst
			}
		}
	}
	r.lastFrameAt = now
	r.frameCount++

	// プレビュー予定時刻に達していたら次回をリスケジュールする
	// プレビューの周期はキャプチャレートから独立している
	if !now.Before(r.nextPreviewAt) {
		r.nextPreviewAt = now.Add(r.previewPeriod)
		encodePreview = true
	}

	return encodePreview, r.recording != nil, r.measuredFPS
}

// Status は現在の稼働状態のスナップショットを返す
func (r *Recorder) Status() StatusSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return StatusSnapshot{
		Recording:       r.recording != nil,
		MeasuredFPS:     math.Round(r.measuredFPS*10) / 10,
		CameraConnected: r.session != nil,
		LastError:       r.lastError,
	}
}

// PreviewFrame は最新のプレビュー画像とその生成時刻を返す
// まだ1枚も生成されていない場合はnilを返す
func (r *Recorder) PreviewFrame() ([]byte, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.previewJPEG == nil {
		return nil, time.Time{}
	}

	// 競合を避けるためコピーを返す
	frame := make([]byte, len(r.previewJPEG))
	copy(frame, r.previewJPEG)
	return frame, r.previewAt
}

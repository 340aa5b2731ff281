package recorder

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"rokuga/internal/camera"
)

// waitFor は条件が成立するまでポーリングする
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("条件が成立しませんでした: %s", msg)
}

func TestFrameArrivedEMAConvergence(t *testing.T) {
	r := newTestRecorder(t, &fakeRemuxer{}, 5)

	// 20ms間隔の合成フレーム（瞬間レート50fps）
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		r.frameArrived(base.Add(time.Duration(i) * 20 * time.Millisecond))
	}

	// 一定間隔なら推定値は 1/delta に一致する
	if got := r.Status().MeasuredFPS; got != 50.0 {
		t.Errorf("Expected 50.0 fps, got %v", got)
	}

	// 間隔が40ms（25fps）に変わると、重み0.1で新しいレートへ収束していく
	last := base.Add(9 * 20 * time.Millisecond)
	next := last.Add(40 * time.Millisecond)
	r.frameArrived(next)

	r.mu.Lock()
	got := r.measuredFPS
	r.mu.Unlock()
	want := 0.9*50.0 + 0.1*25.0
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("Expected %v after one slow frame, got %v", want, got)
	}

	// さらに続けると25へ単調に近づく
	prev := got
	for i := 2; i <= 100; i++ {
		r.frameArrived(next.Add(time.Duration(i-1) * 40 * time.Millisecond))
		r.mu.Lock()
		cur := r.measuredFPS
		r.mu.Unlock()
		if cur > prev {
			t.Fatalf("推定値が増加しました: %v -> %v", prev, cur)
		}
		prev = cur
	}
	if math.Abs(prev-25.0) > 0.5 {
		t.Errorf("Expected convergence toward 25, got %v", prev)
	}
}

func TestFrameArrivedPreviewCadence(t *testing.T) {
	r := newTestRecorder(t, &fakeRemuxer{}, 5)
	r.previewPeriod = 50 * time.Millisecond

	// プレビュー周期より速い10ms間隔でフレームを流す
	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	var previews []time.Time
	for i := 0; i < 100; i++ {
		now := base.Add(time.Duration(i) * 10 * time.Millisecond)
		if encode, _, _ := r.frameArrived(now); encode {
			previews = append(previews, now)
		}
	}

	if len(previews) < 2 {
		t.Fatalf("プレビューがほとんど生成されていません: %d", len(previews))
	}

	// 生成時刻は単調非減少で、間隔は周期以上
	for i := 1; i < len(previews); i++ {
		gap := previews[i].Sub(previews[i-1])
		if gap < 0 {
			t.Fatalf("生成時刻が逆行しています: %v", gap)
		}
		if gap < r.previewPeriod {
			t.Errorf("プレビュー間隔が周期未満です: %v < %v", gap, r.previewPeriod)
		}
	}

	// キャプチャ100フレームに対してプレビューは周期分しか生成されない
	if len(previews) > 21 {
		t.Errorf("プレビューが多すぎます: %d", len(previews))
	}
}

func TestCaptureLoopReconnect(t *testing.T) {
	// 最初の5回はオープンに失敗するファクトリー
	factory := &camera.MockFactory{
		FailOpens: 5,
		Session: &camera.MockSession{
			CaptureFunc: func(ctx context.Context) ([]byte, error) {
				time.Sleep(200 * time.Microsecond)
				return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
			},
		},
	}

	r := New(factory, &fakeRemuxer{}, Options{
		OutputDir:            t.TempDir(),
		Preview:              PreviewOptions{Width: 64, Height: 36, FPS: 25, JPEGQuality: 65},
		MaxClips:             5,
		OpenRetryInterval:    10 * time.Millisecond,
		CaptureRetryInterval: time.Millisecond,
		JoinTimeout:          time.Second,
	})

	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(context.Background())

	// オープン失敗中: 未接続でエラーが記録されている
	waitFor(t, 2*time.Second, func() bool {
		st := r.Status()
		return !st.CameraConnected && st.LastError != ""
	}, "オープン失敗状態が観測できること")

	// オープン成功後: 接続済みでエラーはクリアされる
	waitFor(t, 2*time.Second, func() bool {
		st := r.Status()
		return st.CameraConnected && st.LastError == ""
	}, "再接続後に回復すること")

	if factory.OpenCalls() < 6 {
		t.Errorf("Expected at least 6 open attempts, got %d", factory.OpenCalls())
	}
}

func TestCaptureLoopFailureResetsFPS(t *testing.T) {
	// 50フレーム流した後、キャプチャが恒久的に失敗するセッション
	var calls int32
	sess := &camera.MockSession{
		CaptureFunc: func(ctx context.Context) ([]byte, error) {
			if atomic.AddInt32(&calls, 1) > 50 {
				return nil, fmt.Errorf("モック: キャプチャ失敗")
			}
			time.Sleep(200 * time.Microsecond)
			return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
		},
	}
	factory := &camera.MockFactory{Session: sess}

	r := New(factory, &fakeRemuxer{}, Options{
		OutputDir:            t.TempDir(),
		Preview:              PreviewOptions{Width: 64, Height: 36, FPS: 25, JPEGQuality: 65},
		MaxClips:             5,
		OpenRetryInterval:    2 * time.Millisecond,
		CaptureRetryInterval: time.Millisecond,
		JoinTimeout:          time.Second,
	})

	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(context.Background())

	// フレームが流れている間はfpsが計測される
	waitFor(t, 2*time.Second, func() bool {
		return r.Status().MeasuredFPS > 0
	}, "fpsが計測されること")

	// キャプチャ失敗後は推定値がリセットされ、エラーが記録される
	waitFor(t, 2*time.Second, func() bool {
		st := r.Status()
		return st.MeasuredFPS == 0 && st.LastError != ""
	}, "失敗後にfpsがリセットされること")
}

func TestStopShutsDownActiveRecording(t *testing.T) {
	remux := &fakeRemuxer{}
	r := newTestRecorder(t, remux, 5)
	sess := &camera.MockSession{StartEncoderFunc: writeRawStream}
	r.session = sess

	if _, err := r.StartRecording("shutdown"); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	// シャットダウンは録画停止 → ループ終了 → セッションクローズの順
	r.Stop(context.Background())

	if sess.StopEncoderCalls() != 1 {
		t.Errorf("Expected encoder stopped once, got %d", sess.StopEncoderCalls())
	}
	if !sess.Closed() {
		t.Error("セッションがクローズされていません")
	}
	if st := r.Status(); st.Recording || st.CameraConnected {
		t.Errorf("シャットダウン後の状態が不正です: %+v", st)
	}
	if remux.callCount() != 1 {
		t.Errorf("Expected 1 remux call during shutdown, got %d", remux.callCount())
	}
}

func TestPreviewFrameBeforeFirstUpdate(t *testing.T) {
	r := newTestRecorder(t, &fakeRemuxer{}, 5)

	// まだ生成されていない状態はエラーではなくnil
	frame, ts := r.PreviewFrame()
	if frame != nil {
		t.Errorf("Expected nil frame, got %d bytes", len(frame))
	}
	if !ts.IsZero() {
		t.Errorf("Expected zero timestamp, got %v", ts)
	}
}

func TestCaptureLoopUpdatesPreviewCache(t *testing.T) {
	// 有効なJPEGフレームを流すセッション
	frame := encodeTestJPEG(t, 64, 36)
	sess := &camera.MockSession{
		CaptureFunc: func(ctx context.Context) ([]byte, error) {
			time.Sleep(time.Millisecond)
			return frame, nil
		},
	}
	factory := &camera.MockFactory{Session: sess}

	r := New(factory, &fakeRemuxer{}, Options{
		OutputDir:            t.TempDir(),
		Preview:              PreviewOptions{Width: 64, Height: 36, FPS: 25, JPEGQuality: 65},
		MaxClips:             5,
		OpenRetryInterval:    2 * time.Millisecond,
		CaptureRetryInterval: time.Millisecond,
		JoinTimeout:          time.Second,
	})

	if err := r.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer r.Stop(context.Background())

	waitFor(t, 2*time.Second, func() bool {
		jpg, _ := r.PreviewFrame()
		return jpg != nil
	}, "プレビューキャッシュが更新されること")

	// キャッシュの生成時刻は単調非減少
	_, ts1 := r.PreviewFrame()
	time.Sleep(100 * time.Millisecond)
	_, ts2 := r.PreviewFrame()
	if ts2.Before(ts1) {
		t.Errorf("生成時刻が逆行しています: %v -> %v", ts1, ts2)
	}
}

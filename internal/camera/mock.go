package camera

import (
	"context"
	"fmt"
	"sync"
)

// MockSession はテスト用のモックセッション実装
//
// 各操作は関数フィールドで差し替えられる。未設定の場合は成功を返す
type MockSession struct {
	mu sync.Mutex

	// テスト制御用
	CaptureFunc      func(ctx context.Context) ([]byte, error)
	StartEncoderFunc func(outputPath string) error
	StopEncoderFunc  func() error
	CloseFunc        func() error

	// 呼び出し記録
	startEncoderCalls []string
	stopEncoderCalls  int
	closed            bool
}

// CaptureFrame はモックフレームを返す
func (m *MockSession) CaptureFrame(ctx context.Context) ([]byte, error) {
	m.mu.Lock()
	fn := m.CaptureFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	// デフォルト: 最小のJPEG風データを返す
	return append(append([]byte{0xFF, 0xD8}, []byte("mock")...), 0xFF, 0xD9), nil
}

// StartEncoder はエンコーダー開始の呼び出しを記録する
func (m *MockSession) StartEncoder(outputPath string) error {
	m.mu.Lock()
	fn := m.StartEncoderFunc
	m.mu.Unlock()

	if fn != nil {
		if err := fn(outputPath); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.startEncoderCalls = append(m.startEncoderCalls, outputPath)
	m.mu.Unlock()
	return nil
}

// StopEncoder はエンコーダー停止の呼び出しを記録する
func (m *MockSession) StopEncoder() error {
	m.mu.Lock()
	m.stopEncoderCalls++
	fn := m.StopEncoderFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// Close はセッションのクローズを記録する
func (m *MockSession) Close() error {
	m.mu.Lock()
	m.closed = true
	fn := m.CloseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// StartEncoderCalls は記録されたエンコーダー開始パスを返す
func (m *MockSession) StartEncoderCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.startEncoderCalls))
	copy(calls, m.startEncoderCalls)
	return calls
}

// StopEncoderCalls は記録されたエンコーダー停止回数を返す
func (m *MockSession) StopEncoderCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopEncoderCalls
}

// Closed はClose済みかどうかを返す
func (m *MockSession) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockFactory はテスト用のモックファクトリー実装
type MockFactory struct {
	mu sync.Mutex

	// OpenFunc が設定されていればそれを使う
	OpenFunc func(ctx context.Context, settings Settings) (Session, error)

	// FailOpens 回だけオープンを失敗させる（再接続テスト用）
	FailOpens int

	// デフォルトで返すセッション
	Session Session

	openCalls int
}

// Open はモックセッションを返す
func (f *MockFactory) Open(ctx context.Context, settings Settings) (Session, error) {
	f.mu.Lock()
	f.openCalls++
	calls := f.openCalls
	fn := f.OpenFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, settings)
	}

	if calls <= f.FailOpens {
		return nil, fmt.Errorf("モック: カメラのオープンに失敗 (%d回目)", calls)
	}

	if f.Session != nil {
		return f.Session, nil
	}
	return &MockSession{}, nil
}

// OpenCalls はオープンの呼び出し回数を返す
func (f *MockFactory) OpenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.openCalls
}

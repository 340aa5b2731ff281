// Package recorder キャプチャと録画の状態管理を担う
//
// # 責務
// - カメラセッションを所有するキャプチャループの実行
// - ハードウェア障害時の自動再接続
// - キャプチャレートから独立したプレビュー画像の生成
// - 録画ライフサイクル（開始 → ハードウェアエンコード → remux → 保持制御）
// - ステータス・クリップ一覧のスナップショット提供
//
// # 仕様
// - 共有状態（セッション、プレビューキャッシュ、fps推定値、録画セッション、
//   エラー文字列）は単一のミューテックスで保護する。フレーム取得・画像
//   エンコード・サブプロセス実行をロック中に行ってはならない
// - 録画セッションは常に高々1つ。録画中のStartRecordingは既存のターゲット
//   パスを返す
// - キャプチャループは明示的なシャットダウン以外では終了しない。カメラの
//   オープン・キャプチャ失敗はバックオフ付きで無限に再試行する
// - remux・エンコーダー停止・クリップ削除の失敗はログのみで、呼び出し側へ
//   は伝播しない
package recorder

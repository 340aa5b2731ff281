// Package camera カメラハードウェアセッションの管理を担う
//
// # 責務
// - カメラデバイスのオープン・クローズのライフサイクル管理
// - MJPEGストリームからのフレーム取得
// - ハードウェアH.264エンコーダーの開始・停止
// - テスト用モックセッションの提供
//
// # 使い分け
// このパッケージは以下の場合に使用する：
// - V4L2デバイスから連続的にフレームを取得したい
// - ハードウェアエンコードで生H.264ストリームをファイルに書き出したい
// - ハードウェアへの呼び出しを差し替えてコアロジックをテストしたい
//
// # 仕様
// - Session: オープン済みセッションの操作インターフェース。
//   全ての呼び出しは失敗しうるものとして扱う
// - Factory: セッションの生成。recorder パッケージの再接続ループから
//   呼び出される
// - V4L2Session: ffmpeg経由でのキャプチャとエンコードの実装
// - MockSession / MockFactory: テスト用の差し替え実装
//
// # 前提要件
//   - ffmpeg: フレームキャプチャとH.264エンコードに使用
//     Ubuntu/Debian: sudo apt install ffmpeg
//   - videoグループへの参加: デバイスアクセス権限
//     sudo usermod -a -G video $USER
package camera

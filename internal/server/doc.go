// Package server は、HTTPサーバーとAPIエンドポイントを管理します。
//
// このパッケージは、HTTPサーバーの起動、ルーティング、
// MJPEGプレビュー配信、録画操作APIの提供を担当します。
//
// 責務:
//   - HTTPサーバーの起動と管理
//   - 録画の開始・停止APIの提供
//   - MJPEGプレビューストリームの配信
//   - クリップ一覧とダウンロードの提供
//   - 静的ファイル（HTML/ロゴ画像）の配信
//
// 仕様:
//   - ルーティングにはgin-gonic/ginを使用
//   - グレースフルシャットダウンに対応（HTTP停止後にレコーダーを停止）
//   - 複数クライアントの同時接続をサポート
package server

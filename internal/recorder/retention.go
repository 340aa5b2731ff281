package recorder

import (
	"log"
	"os"
	"path/filepath"
	"sort"
)

// clipEntry はスキャンで見つかったクリップファイル
type clipEntry struct {
	path string
	info os.FileInfo
}

// scanClipFiles は出力ディレクトリの完成済みクリップを列挙する
//
// 最終コンテナ拡張子のみが対象で、一時生ストリームは含まれない。
// 更新時刻の新しい順にソートして返す
func scanClipFiles(outputDir string) []clipEntry {
	matches, err := filepath.Glob(filepath.Join(outputDir, "*"+containerExt))
	if err != nil {
		return nil
	}

	entries := make([]clipEntry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue // スキャン中に消えたファイルはスキップ
		}
		entries = append(entries, clipEntry{path: m, info: info})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].info.ModTime().After(entries[j].info.ModTime())
	})

	return entries
}

// cleanupOldClips は保持上限を超えた古いクリップを削除する
//
// 録画停止サイクルの最後に同期的に呼ばれる。個々の削除失敗は
// ログのみで、他のファイルの削除は続行する
func (r *Recorder) cleanupOldClips() {
	entries := scanClipFiles(r.outputDir)
	if len(entries) <= r.maxClips {
		return
	}

	for _, old := range entries[r.maxClips:] {
		if err := os.Remove(old.path); err != nil {
			log.Printf("[cleanup] %s の削除に失敗: %v", filepath.Base(old.path), err)
			continue
		}
		log.Printf("[cleanup] %s を削除しました", filepath.Base(old.path))
	}
}

// ListClips は新しい順に最大MaxClips件のクリップ一覧を返す
//
// ファイルシステムが信頼できる情報源であり、ロックは不要
func (r *Recorder) ListClips() []Clip {
	entries := scanClipFiles(r.outputDir)
	if len(entries) > r.maxClips {
		entries = entries[:r.maxClips]
	}

	clips := make([]Clip, 0, len(entries))
	for _, e := range entries {
		clips = append(clips, Clip{
			Name:       e.info.Name(),
			SizeBytes:  e.info.Size(),
			ModifiedTS: e.info.ModTime().Unix(),
		})
	}

	return clips
}

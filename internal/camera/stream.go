package camera

import (
	"bytes"
)

// JPEGマーカー
var (
	jpegSOI = []byte{0xFF, 0xD8} // Start of Image
	jpegEOI = []byte{0xFF, 0xD9} // End of Image
)

// extractJPEGFrame はバッファから完全なJPEGフレームを1枚切り出す
//
// 開始マーカー（FF D8）から終了マーカー（FF D9）までを1フレームとして
// 返し、残りのデータを第2戻り値として返す。完全なフレームがまだない
// 場合はnilと（先頭のゴミを捨てた）バッファを返す
func extractJPEGFrame(buf []byte) (frame []byte, rest []byte) {
	// JPEGの開始マーカーを探す
	startIdx := bytes.Index(buf, jpegSOI)
	if startIdx == -1 {
		// 開始マーカーがない場合、データは全て不要
		return nil, nil
	}

	// 開始マーカーより前の不要なデータを捨てる
	buf = buf[startIdx:]

	// JPEGの終了マーカーを探す
	endIdx := bytes.Index(buf[len(jpegSOI):], jpegEOI)
	if endIdx == -1 {
		// 完全なフレームがまだない
		return nil, buf
	}

	// マーカーのサイズを含めてフレームを切り出す
	end := len(jpegSOI) + endIdx + len(jpegEOI)
	frame = make([]byte, end)
	copy(frame, buf[:end])

	return frame, buf[end:]
}

package recorder

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// PreviewOptions はプレビュー画像生成の設定
type PreviewOptions struct {
	Width       int // プレビュー幅
	Height      int // プレビュー高さ
	FPS         int // プレビュー更新レート
	JPEGQuality int // JPEG品質 (1-100)
}

// オーバーレイの描画位置
const (
	overlayMarginX  = 14
	overlayBaseline = 28
)

// buildPreview は生フレームから注釈付きプレビュー画像を生成する
//
// (フレーム, 録画フラグ, fps) から JPEGバイト列を返す純粋関数。
// 解像度が異なる場合はリサイズし、録画中はRECインジケーターを、
// fps値（未計測時はプレースホルダー）を右寄せで重ねる。
// デコード・エンコードに失敗した場合はnilを返し、呼び出し側は
// 直前のキャッシュを保持する
func buildPreview(frameJPEG []byte, recording bool, fps float64, opts PreviewOptions) []byte {
	src, err := jpeg.Decode(bytes.NewReader(frameJPEG))
	if err != nil {
		return nil
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	if bounds.Dx() != opts.Width || bounds.Dy() != opts.Height {
		// プレビュー解像度へ縮小する
		draw.ApproxBiLinear.Scale(canvas, canvas.Bounds(), src, bounds, draw.Src, nil)
	} else {
		draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Src)
	}

	// 録画中インジケーター（左上固定位置）
	if recording {
		drawText(canvas, "REC", overlayMarginX, overlayBaseline,
			color.RGBA{R: 255, A: 255})
	}

	// fps表示（右寄せ）
	fpsText := "-- FPS"
	if fps > 0 {
		fpsText = fmt.Sprintf("%.0f FPS", fps)
	}
	textWidth := font.MeasureString(basicfont.Face7x13, fpsText).Ceil()
	drawText(canvas, fpsText, opts.Width-textWidth-overlayMarginX, overlayBaseline,
		color.RGBA{R: 255, G: 255, B: 255, A: 255})

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: opts.JPEGQuality}); err != nil {
		return nil
	}
	return out.Bytes()
}

// drawText は固定フォントでテキストを描画する
func drawText(dst *image.RGBA, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

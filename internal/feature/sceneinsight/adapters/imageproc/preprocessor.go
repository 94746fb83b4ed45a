// Package imageproc は画像バイト列を分類モデルの入力テンソルに変換します。
package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	// 標準のデコーダー
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	// 追加のデコーダー
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"photo_backend/internal/feature/sceneinsight/domain"
	"photo_backend/internal/feature/sceneinsight/domain/entity"
	"photo_backend/internal/feature/sceneinsight/usecase"
)

// DefaultMaxPixels はデコードを許可する最大画素数（約40メガピクセル）です。
const DefaultMaxPixels = 40_000_000

// Preprocessor は画像をデコードし、RGB化・リサイズ・正規化を行います。
// 状態を持たないため、複数のgoroutineから同時に使用できます。
type Preprocessor struct {
	size          int
	layout        entity.Layout
	normalization entity.Normalization
	maxPixels     int
}

// PreprocessorがPreprocessorインターフェースを実装していることをコンパイル時に検証します。
var _ usecase.Preprocessor = (*Preprocessor)(nil)

// NewPreprocessor はPreprocessorの新しいインスタンスを生成します。
// maxPixelsが0以下の場合はDefaultMaxPixelsを使用します。
func NewPreprocessor(layout entity.Layout, normalization entity.Normalization, maxPixels int) *Preprocessor {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if layout == "" {
		layout = entity.LayoutNHWC
	}
	if normalization == "" {
		normalization = entity.NormalizationTF
	}
	return &Preprocessor{
		size:          entity.InputSize,
		layout:        layout,
		normalization: normalization,
		maxPixels:     maxPixels,
	}
}

// Preprocess は画像バイト列を 224x224x3 の正規化済みテンソルに変換します。
// デコードできない場合はDecodeErrorを返します。
func (p *Preprocessor) Preprocess(imageData []byte) (entity.Tensor, error) {
	// 本体をデコードする前にヘッダーだけで形式とサイズを確認する
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return entity.Tensor{}, domain.DecodeError("preprocess", fmt.Errorf("unrecognized image format: %w", err))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return entity.Tensor{}, domain.DecodeError("preprocess", fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height))
	}
	// 32bitの寸法を申告するTIFFでは積がintを溢れるため、乗算せずに比較する
	if cfg.Width > p.maxPixels/cfg.Height {
		return entity.Tensor{}, domain.DecodeError("preprocess",
			fmt.Errorf("image has %dx%d pixels, exceeds limit of %d", cfg.Width, cfg.Height, p.maxPixels))
	}

	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return entity.Tensor{}, domain.DecodeError("preprocess", fmt.Errorf("failed to decode image: %w", err))
	}

	resized := resize.Resize(uint(p.size), uint(p.size), toRGB(img), resize.Bicubic)
	return p.tensorize(resized), nil
}

// toRGB は任意のカラーモデルの画像を不透明なRGB画像に変換します。
// アルファは合成せずに捨て、ストレート（非乗算済み）の色値を残します。
// よく使われる形式は画素ごとのインターフェース呼び出しを避けて直接変換します。
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch src := img.(type) {
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				out.Pix[di], out.Pix[di+1], out.Pix[di+2], out.Pix[di+3] = src.Pix[si], src.Pix[si+1], src.Pix[si+2], 0xff
				si += 4
				di += 4
			}
		}
	case *image.RGBA:
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				a := src.Pix[si+3]
				out.Pix[di] = unpremultiply(src.Pix[si], a)
				out.Pix[di+1] = unpremultiply(src.Pix[si+1], a)
				out.Pix[di+2] = unpremultiply(src.Pix[si+2], a)
				out.Pix[di+3] = 0xff
				si += 4
				di += 4
			}
		}
	case *image.YCbCr:
		for y := 0; y < b.Dy(); y++ {
			di := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				yi := src.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := src.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl, _ := color.YCbCr{Y: src.Y[yi], Cb: src.Cb[ci], Cr: src.Cr[ci]}.RGBA()
				out.Pix[di], out.Pix[di+1], out.Pix[di+2], out.Pix[di+3] = uint8(r>>8), uint8(g>>8), uint8(bl>>8), 0xff
				di += 4
			}
		}
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			si := src.PixOffset(b.Min.X, b.Min.Y+y)
			di := out.PixOffset(0, y)
			for x := 0; x < b.Dx(); x++ {
				v := src.Pix[si]
				out.Pix[di], out.Pix[di+1], out.Pix[di+2], out.Pix[di+3] = v, v, v, 0xff
				si++
				di += 4
			}
		}
	default:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				out.SetRGBA(x-b.Min.X, y-b.Min.Y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
			}
		}
	}
	return out
}

// unpremultiply は乗算済みの8bit値をストレート値に戻します。
// color.NRGBAModel と同じ16bit精度の計算で丸めを揃えます。
func unpremultiply(v, a uint8) uint8 {
	switch a {
	case 0xff:
		return v
	case 0:
		return 0
	}
	return uint8((uint32(v) * 0xffff / uint32(a)) >> 8)
}

// tensorize はリサイズ済み画像を設定されたレイアウトと正規化方式でテンソル化します。
func (p *Preprocessor) tensorize(img image.Image) entity.Tensor {
	b := img.Bounds()
	t := entity.Tensor{
		Height:        b.Dy(),
		Width:         b.Dx(),
		Channels:      entity.Channels,
		Layout:        p.layout,
		Normalization: p.normalization,
	}
	t.Data = make([]float32, t.Height*t.Width*t.Channels)

	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			rgb := [entity.Channels]uint8{uint8(r >> 8), uint8(g >> 8), uint8(bl >> 8)}
			for c, v := range rgb {
				t.Data[t.Index(y, x, c)] = p.normalization.Normalize(v, c)
			}
		}
	}
	return t
}

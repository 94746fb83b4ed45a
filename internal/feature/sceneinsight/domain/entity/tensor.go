// Package entity はsceneinsightフィーチャーのドメインモデルを定義します。
package entity

import (
	"fmt"
	"image"
	"image/color"
	"math"
)

const (
	// InputSize は分類モデルの入力画像サイズ（縦横ピクセル数）です。
	InputSize = 224
	// Channels はRGBのチャンネル数です。
	Channels = 3
)

// Layout はテンソルのメモリレイアウトです。
type Layout string

const (
	// LayoutNHWC は [batch, height, width, channel] 順です（Kerasのエクスポート既定）。
	LayoutNHWC Layout = "nhwc"
	// LayoutNCHW は [batch, channel, height, width] 順です（PyTorchのエクスポート既定）。
	LayoutNCHW Layout = "nchw"
)

// ParseLayout は文字列をLayoutに変換します。空文字はNHWCとして扱います。
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutNHWC:
		return LayoutNHWC, nil
	case LayoutNCHW:
		return LayoutNCHW, nil
	}
	return "", fmt.Errorf("unsupported tensor layout %q", s)
}

// Normalization は画素値の正規化方式です。
type Normalization string

const (
	// NormalizationTF は x/127.5 - 1 で [-1, 1] に変換します（MobileNetV2のpreprocess_input）。
	NormalizationTF Normalization = "tf"
	// NormalizationTorch は ImageNet の平均・標準偏差で標準化します。
	NormalizationTorch Normalization = "torch"
	// NormalizationUnit は x/255 で [0, 1] に変換します。
	NormalizationUnit Normalization = "unit"
)

// ImageNetの平均・標準偏差（RGB順）
var (
	imageNetMean = [Channels]float32{0.485, 0.456, 0.406}
	imageNetStd  = [Channels]float32{0.229, 0.224, 0.225}
)

// ParseNormalization は文字列をNormalizationに変換します。空文字はTFとして扱います。
func ParseNormalization(s string) (Normalization, error) {
	switch Normalization(s) {
	case "", NormalizationTF:
		return NormalizationTF, nil
	case NormalizationTorch:
		return NormalizationTorch, nil
	case NormalizationUnit:
		return NormalizationUnit, nil
	}
	return "", fmt.Errorf("unsupported normalization %q", s)
}

// Normalize は8bitの画素値を正規化後の値に変換します。
func (n Normalization) Normalize(v uint8, channel int) float32 {
	switch n {
	case NormalizationTorch:
		return (float32(v)/255 - imageNetMean[channel]) / imageNetStd[channel]
	case NormalizationUnit:
		return float32(v) / 255
	default:
		return float32(v)/127.5 - 1
	}
}

// Denormalize は正規化後の値を8bitの画素値に戻します。範囲外の値は丸められます。
func (n Normalization) Denormalize(f float32, channel int) uint8 {
	var v float64
	switch n {
	case NormalizationTorch:
		v = float64(f*imageNetStd[channel]+imageNetMean[channel]) * 255
	case NormalizationUnit:
		v = float64(f) * 255
	default:
		v = (float64(f) + 1) * 127.5
	}
	return uint8(math.Max(0, math.Min(255, math.Round(v))))
}

// Bounds はチャンネルごとの正規化後の値域を返します。
func (n Normalization) Bounds(channel int) (lo, hi float32) {
	return n.Normalize(0, channel), n.Normalize(255, channel)
}

// Tensor は正規化済みの画像テンソルです。バッチ次元は含みません。
type Tensor struct {
	Height        int
	Width         int
	Channels      int
	Layout        Layout
	Normalization Normalization
	Data          []float32
}

// Shape はバッチ次元1を付与したモデル入力形状を返します。
func (t Tensor) Shape() []int64 {
	if t.Layout == LayoutNCHW {
		return []int64{1, int64(t.Channels), int64(t.Height), int64(t.Width)}
	}
	return []int64{1, int64(t.Height), int64(t.Width), int64(t.Channels)}
}

// Index は (y, x, c) のData上の位置を返します。
func (t Tensor) Index(y, x, c int) int {
	if t.Layout == LayoutNCHW {
		return c*t.Height*t.Width + y*t.Width + x
	}
	return (y*t.Width+x)*t.Channels + c
}

// At は (y, x, c) の値を返します。
func (t Tensor) At(y, x, c int) float32 {
	return t.Data[t.Index(y, x, c)]
}

// Validate はDataの長さが形状と一致するかを検証します。
func (t Tensor) Validate() error {
	if t.Height <= 0 || t.Width <= 0 || t.Channels != Channels {
		return fmt.Errorf("invalid tensor dimensions %dx%dx%d", t.Height, t.Width, t.Channels)
	}
	if want := t.Height * t.Width * t.Channels; len(t.Data) != want {
		return fmt.Errorf("tensor data length %d does not match shape (want %d)", len(t.Data), want)
	}
	return nil
}

// Image は正規化を戻してRGB画像を再構成します。
func (t Tensor) Image() (*image.RGBA, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: t.Normalization.Denormalize(t.At(y, x, 0), 0),
				G: t.Normalization.Denormalize(t.At(y, x, 1), 1),
				B: t.Normalization.Denormalize(t.At(y, x, 2), 2),
				A: 0xff,
			})
		}
	}
	return img, nil
}

package entity_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo_backend/internal/feature/sceneinsight/domain/entity"
)

func TestNormalization_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, n := range []entity.Normalization{entity.NormalizationTF, entity.NormalizationTorch, entity.NormalizationUnit} {
		t.Run(string(n), func(t *testing.T) {
			t.Parallel()

			for c := 0; c < entity.Channels; c++ {
				for v := 0; v <= 255; v++ {
					got := n.Denormalize(n.Normalize(uint8(v), c), c)
					if got != uint8(v) {
						t.Fatalf("channel %d: round trip of %d returned %d", c, v, got)
					}
				}
			}
		})
	}
}

func TestNormalization_Bounds(t *testing.T) {
	t.Parallel()

	lo, hi := entity.NormalizationTF.Bounds(0)
	assert.InDelta(t, -1.0, lo, 1e-6)
	assert.InDelta(t, 1.0, hi, 1e-6)

	lo, hi = entity.NormalizationUnit.Bounds(2)
	assert.InDelta(t, 0.0, lo, 1e-6)
	assert.InDelta(t, 1.0, hi, 1e-6)

	lo, hi = entity.NormalizationTorch.Bounds(0)
	assert.InDelta(t, -2.1179, lo, 1e-3)
	assert.InDelta(t, 2.2489, hi, 1e-3)
}

func TestNormalization_DenormalizeClamps(t *testing.T) {
	t.Parallel()

	assert.Equal(t, uint8(0), entity.NormalizationTF.Denormalize(-5, 0))
	assert.Equal(t, uint8(255), entity.NormalizationTF.Denormalize(5, 0))
}

func TestParseLayoutAndNormalization(t *testing.T) {
	t.Parallel()

	l, err := entity.ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, entity.LayoutNHWC, l)

	l, err = entity.ParseLayout("nchw")
	require.NoError(t, err)
	assert.Equal(t, entity.LayoutNCHW, l)

	_, err = entity.ParseLayout("hwc")
	assert.Error(t, err)

	n, err := entity.ParseNormalization("")
	require.NoError(t, err)
	assert.Equal(t, entity.NormalizationTF, n)

	n, err = entity.ParseNormalization("torch")
	require.NoError(t, err)
	assert.Equal(t, entity.NormalizationTorch, n)

	_, err = entity.ParseNormalization("caffe")
	assert.Error(t, err)
}

func TestTensor_ShapeAndIndex(t *testing.T) {
	t.Parallel()

	nhwc := entity.Tensor{Height: 2, Width: 3, Channels: 3, Layout: entity.LayoutNHWC}
	assert.Equal(t, []int64{1, 2, 3, 3}, nhwc.Shape())
	assert.Equal(t, 0, nhwc.Index(0, 0, 0))
	assert.Equal(t, 1, nhwc.Index(0, 0, 1))
	assert.Equal(t, 3, nhwc.Index(0, 1, 0))
	assert.Equal(t, 9, nhwc.Index(1, 0, 0))

	nchw := entity.Tensor{Height: 2, Width: 3, Channels: 3, Layout: entity.LayoutNCHW}
	assert.Equal(t, []int64{1, 3, 2, 3}, nchw.Shape())
	assert.Equal(t, 1, nchw.Index(0, 1, 0))
	assert.Equal(t, 6, nchw.Index(0, 0, 1))
	assert.Equal(t, 3, nchw.Index(1, 0, 0))
}

func TestTensor_Validate(t *testing.T) {
	t.Parallel()

	ok := entity.Tensor{Height: 2, Width: 2, Channels: 3, Data: make([]float32, 12)}
	assert.NoError(t, ok.Validate())

	short := entity.Tensor{Height: 2, Width: 2, Channels: 3, Data: make([]float32, 11)}
	assert.Error(t, short.Validate())

	gray := entity.Tensor{Height: 2, Width: 2, Channels: 1, Data: make([]float32, 4)}
	assert.Error(t, gray.Validate())
}

func TestTensor_Image(t *testing.T) {
	t.Parallel()

	n := entity.NormalizationTF
	tensor := entity.Tensor{Height: 1, Width: 2, Channels: 3, Layout: entity.LayoutNCHW, Normalization: n}
	tensor.Data = make([]float32, 6)
	// 左: 赤, 右: 青
	tensor.Data[tensor.Index(0, 0, 0)] = n.Normalize(255, 0)
	tensor.Data[tensor.Index(0, 0, 1)] = n.Normalize(0, 1)
	tensor.Data[tensor.Index(0, 0, 2)] = n.Normalize(0, 2)
	tensor.Data[tensor.Index(0, 1, 0)] = n.Normalize(0, 0)
	tensor.Data[tensor.Index(0, 1, 1)] = n.Normalize(0, 1)
	tensor.Data[tensor.Index(0, 1, 2)] = n.Normalize(255, 2)

	img, err := tensor.Image()
	require.NoError(t, err)

	assert.Equal(t, 2, img.Bounds().Dx())
	assert.Equal(t, 1, img.Bounds().Dy())
	left := img.RGBAAt(0, 0)
	right := img.RGBAAt(1, 0)
	assert.Equal(t, [4]uint8{255, 0, 0, 255}, [4]uint8{left.R, left.G, left.B, left.A})
	assert.Equal(t, [4]uint8{0, 0, 255, 255}, [4]uint8{right.R, right.G, right.B, right.A})
}

func TestInsight_Description(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "This image appears to contain: seashore.", entity.Insight{Label: "seashore"}.Description())
}

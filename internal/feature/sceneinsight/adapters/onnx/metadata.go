package onnx

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"photo_backend/internal/feature/sceneinsight/domain/entity"
)

// OutputKind はモデル出力の種類です。
type OutputKind string

const (
	// OutputProbabilities は出力がsoftmax済みの確率であることを表します。
	OutputProbabilities OutputKind = "probabilities"
	// OutputLogits は出力がsoftmax前のロジットであることを表します。
	OutputLogits OutputKind = "logits"
)

// Metadata はONNXモデルに付随するメタデータJSONの内容です。
type Metadata struct {
	InputName     string   `json:"input_name"`
	OutputName    string   `json:"output_name"`
	InputShape    []int64  `json:"input_shape"`
	OutputShape   []int64  `json:"output_shape"`
	Classes       []string `json:"classes"`
	ImageSize     int      `json:"image_size"`
	Layout        string   `json:"layout"`
	Normalization string   `json:"normalization"`
	OutputKind    string   `json:"output_kind"`
}

// LoadMetadata はメタデータJSONを読み込み、既定値を補って検証します。
func LoadMetadata(path string) (Metadata, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return ParseMetadata(raw)
}

// ParseMetadata はメタデータJSONのバイト列を解析します。
func ParseMetadata(raw []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("failed to parse metadata: %w", err)
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

func (m *Metadata) applyDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.ImageSize == 0 {
		m.ImageSize = entity.InputSize
	}
	if m.Layout == "" {
		m.Layout = string(entity.LayoutNHWC)
	}
	if m.Normalization == "" {
		m.Normalization = string(entity.NormalizationTF)
	}
	if m.OutputKind == "" {
		m.OutputKind = string(OutputProbabilities)
	}
	if len(m.InputShape) == 0 {
		layout, _ := entity.ParseLayout(m.Layout)
		m.InputShape = entity.Tensor{
			Height: m.ImageSize, Width: m.ImageSize, Channels: entity.Channels, Layout: layout,
		}.Shape()
	}
	if len(m.OutputShape) == 0 {
		m.OutputShape = []int64{1, int64(len(m.Classes))}
	}
}

// Validate はメタデータの整合性を検証します。
func (m Metadata) Validate() error {
	if len(m.Classes) == 0 {
		return errors.New("metadata has no classes")
	}
	if m.ImageSize != entity.InputSize {
		return fmt.Errorf("unsupported image_size %d (want %d)", m.ImageSize, entity.InputSize)
	}
	layout, err := entity.ParseLayout(m.Layout)
	if err != nil {
		return err
	}
	if _, err := entity.ParseNormalization(m.Normalization); err != nil {
		return err
	}
	switch OutputKind(m.OutputKind) {
	case OutputProbabilities, OutputLogits:
	default:
		return fmt.Errorf("unsupported output_kind %q", m.OutputKind)
	}

	want := entity.Tensor{Height: m.ImageSize, Width: m.ImageSize, Channels: entity.Channels, Layout: layout}.Shape()
	if !shapeMatches(m.InputShape, want) {
		return fmt.Errorf("input_shape %v does not match %s layout %v", m.InputShape, layout, want)
	}
	if n := elementCount(m.OutputShape); n != int64(len(m.Classes)) {
		return fmt.Errorf("output_shape %v has %d elements, but %d classes are defined", m.OutputShape, n, len(m.Classes))
	}
	return nil
}

// TensorLayout はメタデータのレイアウトを返します。
func (m Metadata) TensorLayout() entity.Layout {
	l, _ := entity.ParseLayout(m.Layout)
	return l
}

// TensorNormalization はメタデータの正規化方式を返します。
func (m Metadata) TensorNormalization() entity.Normalization {
	n, _ := entity.ParseNormalization(m.Normalization)
	return n
}

// shapeMatches は形状が一致するかを判定します。モデル側の0以下の次元（動的バッチ）は任意の値に一致します。
func shapeMatches(model, actual []int64) bool {
	if len(model) != len(actual) {
		return false
	}
	for i := range model {
		if model[i] > 0 && model[i] != actual[i] {
			return false
		}
	}
	return true
}

// concreteShape は動的次元を1に置き換えた形状を返します。
func concreteShape(shape []int64) []int64 {
	out := make([]int64, len(shape))
	for i, d := range shape {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}

func elementCount(shape []int64) int64 {
	n := int64(1)
	for _, d := range concreteShape(shape) {
		n *= d
	}
	return n
}

// Package onnx はONNX Runtimeを使用したシーン分類クライアントを提供します。
package onnx

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"photo_backend/internal/feature/sceneinsight/domain"
	"photo_backend/internal/feature/sceneinsight/domain/entity"
	"photo_backend/internal/feature/sceneinsight/usecase"
)

// DefaultTopK は返却する候補数の既定値です。
const DefaultTopK = 5

// runner はモデルの推論を1回実行します。
type runner interface {
	Run(input []float32, inputShape, outputShape []int64) ([]float32, error)
	Close() error
}

// Config はONNX分類器の設定です。
type Config struct {
	ModelPath         string // .onnxモデルファイルのパス
	MetadataPath      string // メタデータJSONのパス
	SharedLibraryPath string // onnxruntime共有ライブラリのパス（空の場合は既定の探索）
	TopK              int    // 返却する候補数
}

// Classifier はONNXモデルでテンソルを分類します。
// 初期化後は読み取り専用で、複数のgoroutineから同時に使用できます。
type Classifier struct {
	meta   Metadata
	runner runner
	topK   int
}

// ClassifierがClassifierインターフェースを実装していることをコンパイル時に検証します。
var _ usecase.Classifier = (*Classifier)(nil)

// NewClassifier はモデルとメタデータを読み込み、Classifierの新しいインスタンスを生成します。
func NewClassifier(cfg Config) (*Classifier, error) {
	meta, err := LoadMetadata(cfg.MetadataPath)
	if err != nil {
		return nil, err
	}
	r, err := newORTRunner(cfg.ModelPath, cfg.SharedLibraryPath, meta)
	if err != nil {
		return nil, err
	}
	return newClassifier(meta, r, cfg.TopK), nil
}

func newClassifier(meta Metadata, r runner, k int) *Classifier {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Classifier{meta: meta, runner: r, topK: k}
}

// Metadata はモデルのメタデータを返します。
func (c *Classifier) Metadata() Metadata {
	return c.meta
}

// Close はONNX Runtimeのセッションと環境を解放します。
func (c *Classifier) Close() error {
	return c.runner.Close()
}

// Classify はテンソルを推論し、最も確率の高いラベルと上位候補を返します。
func (c *Classifier) Classify(ctx context.Context, tensor entity.Tensor) (*entity.Classification, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.InferenceError("classify", err)
	}
	if err := tensor.Validate(); err != nil {
		return nil, domain.InferenceError("classify", err)
	}
	if tensor.Layout != c.meta.TensorLayout() {
		return nil, domain.InferenceError("classify",
			fmt.Errorf("tensor layout %s does not match model layout %s", tensor.Layout, c.meta.TensorLayout()))
	}
	if !shapeMatches(c.meta.InputShape, tensor.Shape()) {
		return nil, domain.InferenceError("classify",
			fmt.Errorf("tensor shape %v does not match model input %v", tensor.Shape(), c.meta.InputShape))
	}

	out, err := c.runner.Run(tensor.Data, tensor.Shape(), concreteShape(c.meta.OutputShape))
	if err != nil {
		return nil, domain.InferenceError("classify", err)
	}
	if len(out) != len(c.meta.Classes) {
		return nil, domain.InferenceError("classify",
			fmt.Errorf("model returned %d scores for %d classes", len(out), len(c.meta.Classes)))
	}

	probs := out
	if OutputKind(c.meta.OutputKind) == OutputLogits {
		probs = softmax(out)
	}
	candidates := topK(probs, c.meta.Classes, c.topK)

	return &entity.Classification{
		Label:      candidates[0].Label,
		Confidence: candidates[0].Confidence,
		Candidates: candidates,
	}, nil
}

// ortRunner はONNX RuntimeのDynamicAdvancedSessionで推論を実行します。
// 入出力テンソルは呼び出しごとに生成・破棄されるため、セッションは共有されても状態を持ちません。
type ortRunner struct {
	session *ort.DynamicAdvancedSession
}

func newORTRunner(modelPath, libPath string, meta Metadata) (*ortRunner, error) {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(modelPath,
		[]string{meta.InputName}, []string{meta.OutputName}, nil)
	if err != nil {
		_ = ort.DestroyEnvironment()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &ortRunner{session: session}, nil
}

func (r *ortRunner) Run(input []float32, inputShape, outputShape []int64) ([]float32, error) {
	inputTensor, err := ort.NewTensor(ort.NewShape(inputShape...), input)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(outputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := r.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	// 出力テンソルの破棄後も使えるようにコピーする
	data := outputTensor.GetData()
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

func (r *ortRunner) Close() error {
	if r.session != nil {
		if err := r.session.Destroy(); err != nil {
			return fmt.Errorf("failed to destroy ONNX session: %w", err)
		}
	}
	return ort.DestroyEnvironment()
}

// Package domain はsceneinsightフィーチャーのドメインエラーを定義します。
package domain

import (
	"errors"
	"fmt"
)

// Kind はパイプラインエラーの種別です。
type Kind int

const (
	// KindDecode は画像のデコード失敗（クライアント入力の問題）を表します。
	KindDecode Kind = iota + 1
	// KindInference はシーン分類モデルの推論失敗を表します。
	KindInference
	// KindGeneration は外部テキスト生成サービスの失敗を表します。
	KindGeneration
)

// String はエラー種別の識別子を返します。
func (k Kind) String() string {
	switch k {
	case KindDecode:
		return "decode"
	case KindInference:
		return "inference"
	case KindGeneration:
		return "generation"
	default:
		return "unknown"
	}
}

// パイプラインの各段階に対応するセンチネルエラーです。
// errors.Is で PipelineError の種別判定に使用します。
var (
	ErrDecode     = errors.New("image decode failed")
	ErrInference  = errors.New("scene inference failed")
	ErrGeneration = errors.New("suggestion generation failed")
)

// 入力バリデーションのエラーです。
var (
	// ErrImageRequired は画像データが空の場合に返されます。
	ErrImageRequired = errors.New("image data is empty")
	// ErrImageTooLarge は画像データが上限サイズを超える場合に返されます。
	ErrImageTooLarge = errors.New("image size exceeds maximum")
	// ErrInvalidLabel はシーンラベルが空・長すぎる・不正な文字を含む場合に返されます。
	ErrInvalidLabel = errors.New("invalid scene label")
)

// PipelineError は種別付きのパイプラインエラーです。
type PipelineError struct {
	Kind Kind   // エラー種別
	Op   string // 失敗した処理名
	Err  error  // 元のエラー
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is は種別に対応するセンチネルエラーと一致するかを判定します。
func (e *PipelineError) Is(target error) bool {
	switch target {
	case ErrDecode:
		return e.Kind == KindDecode
	case ErrInference:
		return e.Kind == KindInference
	case ErrGeneration:
		return e.Kind == KindGeneration
	}
	return false
}

// DecodeError は画像デコード失敗のPipelineErrorを生成します。
func DecodeError(op string, err error) error {
	return &PipelineError{Kind: KindDecode, Op: op, Err: err}
}

// InferenceError は推論失敗のPipelineErrorを生成します。
func InferenceError(op string, err error) error {
	return &PipelineError{Kind: KindInference, Op: op, Err: err}
}

// GenerationError はテキスト生成失敗のPipelineErrorを生成します。
func GenerationError(op string, err error) error {
	return &PipelineError{Kind: KindGeneration, Op: op, Err: err}
}

// KindOf はエラーチェーン中の最初のPipelineErrorの種別を返します。
func KindOf(err error) (Kind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

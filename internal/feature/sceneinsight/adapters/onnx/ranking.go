package onnx

import (
	"math"
	"sort"
	"strings"

	"photo_backend/internal/feature/sceneinsight/domain/entity"
)

// softmax はロジットを確率に変換します。オーバーフローを避けるため最大値を引いてから指数を取ります。
func softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}
	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	out := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxVal))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}

// topK は確率の高い順に上位k件の候補を返します。同値の場合はインデックスの小さい方が先になります。
func topK(probs []float32, classes []string, k int) []entity.Prediction {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return probs[idx[a]] > probs[idx[b]]
	})

	if k <= 0 || k > len(idx) {
		k = len(idx)
	}
	preds := make([]entity.Prediction, 0, k)
	for _, i := range idx[:k] {
		preds = append(preds, entity.Prediction{
			Label:      humanize(classes[i]),
			Confidence: probs[i],
		})
	}
	return preds
}

// humanize はクラス名の区切り文字を空白に置き換えます（例: "golden_retriever" → "golden retriever"）。
func humanize(class string) string {
	return strings.TrimSpace(strings.ReplaceAll(class, "_", " "))
}

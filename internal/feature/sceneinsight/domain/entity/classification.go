package entity

// Prediction はラベルと信頼度の組です。
type Prediction struct {
	Label      string  // ラベル名（例: "seashore"）
	Confidence float32 // 信頼度スコア（0.0 ~ 1.0）
}

// Classification はシーン分類の結果を表します。
type Classification struct {
	Label      string       // 最も信頼度の高いラベル
	Confidence float32      // Labelの信頼度
	Candidates []Prediction // 信頼度の降順に並んだ上位候補（先頭はLabel）
}

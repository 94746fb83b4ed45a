package entity

import "fmt"

// Prompt はテキスト生成サービスに送る2部構成のプロンプトです。
type Prompt struct {
	Label  string // プロンプトに埋め込んだシーンラベル
	System string // アシスタントのペルソナを固定するシステム指示
	User   string // ラベルを含むユーザー指示
}

// Insight は画像解析パイプラインの最終結果です。
type Insight struct {
	Label       string   // シーンラベル
	Suggestions []string // 生成された撮影アドバイス（生成順）
	Degraded    bool     // アドバイス生成に失敗しラベルのみを返した場合はtrue
	Warning     string   // Degraded時の利用者向け注記
}

// Description はラベルを説明する一文を返します。
func (i Insight) Description() string {
	return fmt.Sprintf("This image appears to contain: %s.", i.Label)
}

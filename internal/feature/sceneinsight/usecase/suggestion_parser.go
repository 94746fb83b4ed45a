package usecase

import "strings"

// enumerationMarkers は行頭から取り除く列挙記号の集合です。
const enumerationMarkers = "0123456789.-)•– \t"

// ParseSuggestions は生成テキストを1行1件の撮影アドバイスに分割します。
//
//   - 改行（\n, \r\n, \r）で分割し、空白のみの行は捨てる
//   - 行頭の番号・箇条書き記号（"1." "2)" "- " "•" "* " など）を取り除く
//   - 記号しかない行（"1." "---" など）は捨てる。行頭を削るだけの変換とは異なり、
//     空文字列の項目は結果に残さない
//   - 元の順序を保つ
//
// 空文字列を含むどんな入力でも失敗せず、空でないスライスまたは空スライスを返します。
func ParseSuggestions(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")

	out := make([]string, 0)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s := stripMarker(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripMarker は行頭の列挙記号を取り除きます。
// "*" はMarkdownの強調（"**Tripod**"）と区別するため、直後が空白の場合のみ記号として扱います。
func stripMarker(line string) string {
	for {
		s := strings.TrimLeft(line, enumerationMarkers)
		if strings.HasPrefix(s, "* ") || strings.HasPrefix(s, "*\t") {
			s = s[2:]
		}
		if s == line {
			return strings.TrimSpace(s)
		}
		line = s
	}
}

package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer は車両説明文の HTML を無害化する。
// 管理画面のリッチテキスト入力を想定し、基本的な書式タグのみを残す。
type ContentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は説明文向けのサニタイズポリシーを構築する。
func NewContentSanitizer() *ContentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements("p", "br", "ul", "ol", "li", "strong", "em", "b", "i")

	return &ContentSanitizer{policy: p}
}

// Sanitize は HTML 文字列から許可タグ以外を除去して返す。
// script や iframe、イベントハンドラ属性はすべて削除される。
func (s *ContentSanitizer) Sanitize(html string) string {
	return strings.TrimSpace(s.policy.Sanitize(html))
}

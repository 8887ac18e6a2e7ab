// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はインポートしたフィード記事に含まれるHTMLを除去し、
// プレーンテキストとして保存できる形に整える。ユーザーが入力した投稿本文には使わない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はHTML除去機能のインターフェースを定義する。
type TextSanitizer interface {
	// PlainText は全てのタグを除去し、文字参照を復元したテキストを返す。
	// 改行などの空白はそのまま残す。
	PlainText(raw string) string

	// Summary はタグ境界を空白に置き換えてから除去し、連続する空白を1つにまとめる。
	// フィード記事の本文を1段落の要約にする用途で使う。
	Summary(raw string) string
}

// textSanitizer はTextSanitizerの実装。
// bluemondayのポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	strict  *bluemonday.Policy
	spacing *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// script, styleなどの要素は中身ごと除去される。
func NewTextSanitizer() *textSanitizer {
	spacing := bluemonday.StrictPolicy()
	spacing.AddSpaceWhenStrippingTag(true)

	return &textSanitizer{
		strict:  bluemonday.StrictPolicy(),
		spacing: spacing,
	}
}

// PlainText は全てのタグを除去したテキストを返す。
// 戻り値はHTMLとして安全ではないため、表示側でエスケープすること。
func (s *textSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	return html.UnescapeString(s.strict.Sanitize(raw))
}

// Summary はタグを除去し空白を正規化したテキストを返す。
func (s *textSanitizer) Summary(raw string) string {
	if raw == "" {
		return ""
	}
	text := html.UnescapeString(s.spacing.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

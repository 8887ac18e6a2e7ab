package generation

import (
	_ "embed"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/notho/socialgen/internal/model"
)

//go:embed templates.yaml
var templatesYAML []byte

// Templates は生成テキストの静的テーブル。
type Templates struct {
	DefaultObjective string                               `yaml:"default_objective"`
	DefaultTone      string                               `yaml:"default_tone"`
	Objectives       map[string]map[model.Platform]string `yaml:"objectives"`
	Tones            map[string]string                    `yaml:"tones"`
	ImageStyles      []string                             `yaml:"image_styles"`
}

// LoadTemplates は埋め込みのテンプレート定義を読み込む。
func LoadTemplates() (*Templates, error) {
	return ParseTemplates(templatesYAML)
}

// ParseTemplates はYAMLからテンプレートを読み込み、全プラットフォーム分の
// 既定目的テンプレートと既定トーンが揃っていることを検証する。
func ParseTemplates(data []byte) (*Templates, error) {
	var t Templates
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("テンプレートの解析に失敗しました: %w", err)
	}

	defaults, ok := t.Objectives[t.DefaultObjective]
	if !ok {
		return nil, fmt.Errorf("default objective %q is not defined", t.DefaultObjective)
	}
	for _, spec := range model.Platforms() {
		if defaults[spec.Platform] == "" {
			return nil, fmt.Errorf("default objective %q has no template for %s", t.DefaultObjective, spec.Platform)
		}
	}
	if _, ok := t.Tones[t.DefaultTone]; !ok {
		return nil, fmt.Errorf("default tone %q is not defined", t.DefaultTone)
	}
	if len(t.ImageStyles) == 0 {
		return nil, fmt.Errorf("no image styles defined")
	}

	return &t, nil
}

// template は目的とプラットフォームに対応するテンプレートを返す。
// 未知の目的、またはその目的にプラットフォームのテンプレートがない場合は既定の目的を使う。
func (t *Templates) template(objective string, platform model.Platform) string {
	if byPlatform, ok := t.Objectives[objective]; ok {
		if tmpl := byPlatform[platform]; tmpl != "" {
			return tmpl
		}
	}
	return t.Objectives[t.DefaultObjective][platform]
}

// closing はトーンに対応する締めの一文を返す。未知のトーンは既定のトーンを使う。
func (t *Templates) closing(tone string) string {
	if c, ok := t.Tones[tone]; ok {
		return c
	}
	return t.Tones[t.DefaultTone]
}

// HasStyle は画像スタイルが定義済みかを返す。
func (t *Templates) HasStyle(style string) bool {
	return slices.Contains(t.ImageStyles, style)
}

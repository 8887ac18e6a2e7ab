package model

// Platform は投稿先のソーシャルネットワークを表す。
type Platform string

const (
	// PlatformLinkedIn はLinkedIn。
	PlatformLinkedIn Platform = "linkedin"
	// PlatformTwitter はTwitter（X）。
	PlatformTwitter Platform = "twitter"
	// PlatformInstagram はInstagram。
	PlatformInstagram Platform = "instagram"
	// PlatformFacebook はFacebook。
	PlatformFacebook Platform = "facebook"
	// PlatformTikTok はTikTok。
	PlatformTikTok Platform = "tiktok"
)

// Dimensions は画像の縦横サイズ（px）を表す。
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// PlatformSpec はプラットフォームごとの固定仕様。
type PlatformSpec struct {
	Platform      Platform   `json:"platform"`
	Label         string     `json:"label"`
	MaxCharacters int        `json:"maxCharacters"`
	Image         Dimensions `json:"image"`
}

// platformSpecs は全プラットフォームの仕様。表示順を兼ねる。
var platformSpecs = []PlatformSpec{
	{Platform: PlatformLinkedIn, Label: "LinkedIn", MaxCharacters: 3000, Image: Dimensions{Width: 1200, Height: 627}},
	{Platform: PlatformTwitter, Label: "Twitter", MaxCharacters: 280, Image: Dimensions{Width: 1200, Height: 675}},
	{Platform: PlatformInstagram, Label: "Instagram", MaxCharacters: 2200, Image: Dimensions{Width: 1080, Height: 1080}},
	{Platform: PlatformFacebook, Label: "Facebook", MaxCharacters: 63206, Image: Dimensions{Width: 1200, Height: 630}},
	{Platform: PlatformTikTok, Label: "TikTok", MaxCharacters: 2200, Image: Dimensions{Width: 1080, Height: 1920}},
}

// Platforms は全プラットフォームの仕様をコピーして返す。
func Platforms() []PlatformSpec {
	out := make([]PlatformSpec, len(platformSpecs))
	copy(out, platformSpecs)
	return out
}

// LookupPlatform はプラットフォームの仕様を返す。未知の場合はfalseを返す。
func LookupPlatform(p Platform) (PlatformSpec, bool) {
	for _, spec := range platformSpecs {
		if spec.Platform == p {
			return spec, true
		}
	}
	return PlatformSpec{}, false
}

// IsValid はサポート対象のプラットフォームかを判定する。
func (p Platform) IsValid() bool {
	_, ok := LookupPlatform(p)
	return ok
}

// CharacterLimits はプラットフォームごとの文字数上限マップを返す。
func CharacterLimits() map[Platform]int {
	limits := make(map[Platform]int, len(platformSpecs))
	for _, spec := range platformSpecs {
		limits[spec.Platform] = spec.MaxCharacters
	}
	return limits
}

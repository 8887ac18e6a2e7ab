// Package validation は投稿本文の品質スコアを算出する。
package validation

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/notho/socialgen/internal/model"
)

// Status はルール判定の結果。
type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
	StatusInfo    Status = "info"
)

// ルール名
const (
	RuleContentRequired = "content_required"
	RuleCharacterLimit  = "character_limit"
	RuleHashtags        = "hashtags"
	RuleMentions        = "mentions"
	RuleEmoji           = "emoji"
	RuleEngagement      = "engagement_length"
	RuleImage           = "image"
	RulePlatformNote    = "platform_note"
)

// スコアの配点
const (
	weightContent        = 20
	weightWithinLimit    = 20
	weightHashtags       = 15
	weightTooManyHashtag = 5
	weightMentions       = 10
	weightEmoji          = 10
	weightEngagement     = 10
	weightImage          = 15

	maxHashtags         = 10
	engagementMinLength = 100
	maxScore            = 100
)

// RuleResult は1つのルールの判定結果。
type RuleResult struct {
	Rule    string `json:"rule"`
	Status  Status `json:"status"`
	Message string `json:"message"`
	weight  int
}

// Report は検証結果。
type Report struct {
	Score          int          `json:"score"`
	Rules          []RuleResult `json:"rules"`
	CharacterCount int          `json:"characterCount"`
	MaxCharacters  int          `json:"maxCharacters"`
}

var (
	hashtagPattern = regexp.MustCompile(`(?:^|\s)#[\p{L}\p{N}_]+`)
	mentionPattern = regexp.MustCompile(`(?:^|\s)@\w+`)
	linkPattern    = regexp.MustCompile(`https?://\S+`)
	emojiPattern   = regexp.MustCompile(`[\x{1F300}-\x{1FAFF}\x{2600}-\x{27BF}\x{1F000}-\x{1F2FF}\x{2B50}\x{2B55}]`)
)

// Validate は本文をルール順に判定し、スコアを算出する。
// limitsにプラットフォームがない場合は文字数上限を0として扱う。
// スコアは配点の合計を[0,100]に収めた値。
func Validate(content string, platform model.Platform, hasImage bool, limits map[model.Platform]int) Report {
	limit := limits[platform]
	length := utf8.RuneCountInString(content)
	rules := make([]RuleResult, 0, 8)

	// 1. 本文の有無
	if content == "" {
		rules = append(rules, RuleResult{Rule: RuleContentRequired, Status: StatusError, Message: "Content is required."})
	} else {
		rules = append(rules, RuleResult{Rule: RuleContentRequired, Status: StatusSuccess, Message: "Content provided.", weight: weightContent})
	}

	// 2. 文字数上限
	switch {
	case content == "":
		rules = append(rules, RuleResult{Rule: RuleCharacterLimit, Status: StatusInfo,
			Message: fmt.Sprintf("0 of %d characters used.", limit)})
	case length > limit:
		rules = append(rules, RuleResult{Rule: RuleCharacterLimit, Status: StatusError,
			Message: fmt.Sprintf("Content exceeds the %d character limit by %d.", limit, length-limit)})
	default:
		rules = append(rules, RuleResult{Rule: RuleCharacterLimit, Status: StatusSuccess,
			Message: fmt.Sprintf("%d of %d characters used.", length, limit), weight: weightWithinLimit})
	}

	// 3. ハッシュタグ
	hashtags := len(hashtagPattern.FindAllString(content, -1))
	switch {
	case hashtags == 0:
		rules = append(rules, RuleResult{Rule: RuleHashtags, Status: StatusWarning,
			Message: "Add a few hashtags to improve discoverability."})
	case hashtags <= maxHashtags:
		rules = append(rules, RuleResult{Rule: RuleHashtags, Status: StatusSuccess,
			Message: fmt.Sprintf("%d hashtag(s) used.", hashtags), weight: weightHashtags})
	default:
		rules = append(rules, RuleResult{Rule: RuleHashtags, Status: StatusWarning,
			Message: fmt.Sprintf("%d hashtags may look like spam; keep it to %d or fewer.", hashtags, maxHashtags), weight: weightTooManyHashtag})
	}

	// 4. メンション
	if mentions := len(mentionPattern.FindAllString(content, -1)); mentions > 0 {
		rules = append(rules, RuleResult{Rule: RuleMentions, Status: StatusSuccess,
			Message: fmt.Sprintf("%d mention(s) included.", mentions), weight: weightMentions})
	}

	// 5. 絵文字
	if emoji := len(emojiPattern.FindAllString(content, -1)); emoji > 0 {
		rules = append(rules, RuleResult{Rule: RuleEmoji, Status: StatusSuccess,
			Message: fmt.Sprintf("%d emoji used.", emoji), weight: weightEmoji})
	} else {
		rules = append(rules, RuleResult{Rule: RuleEmoji, Status: StatusInfo,
			Message: "Emoji can make posts more engaging."})
	}

	// 6. 長さによるエンゲージメント
	if length >= engagementMinLength {
		rules = append(rules, RuleResult{Rule: RuleEngagement, Status: StatusSuccess,
			Message: "Post length is good for engagement.", weight: weightEngagement})
	}

	// 7. 画像
	if hasImage {
		rules = append(rules, RuleResult{Rule: RuleImage, Status: StatusSuccess,
			Message: "Image attached.", weight: weightImage})
	} else {
		rules = append(rules, RuleResult{Rule: RuleImage, Status: StatusInfo,
			Message: "Posts with images get more engagement."})
	}

	// 8. プラットフォーム固有の注意
	if note := platformNote(content, length, platform, hasImage); note != "" {
		rules = append(rules, RuleResult{Rule: RulePlatformNote, Status: StatusInfo, Message: note})
	}

	score := 0
	for _, r := range rules {
		score += r.weight
	}
	score = min(max(score, 0), maxScore)

	return Report{
		Score:          score,
		Rules:          rules,
		CharacterCount: length,
		MaxCharacters:  limit,
	}
}

func platformNote(content string, length int, platform model.Platform, hasImage bool) string {
	switch platform {
	case model.PlatformTwitter:
		if linkPattern.MatchString(content) {
			return "Twitter shortens links to 23 characters."
		}
	case model.PlatformInstagram:
		if !hasImage {
			return "Instagram posts perform best with an image."
		}
	case model.PlatformLinkedIn:
		if length < 300 {
			return "LinkedIn favours longer, insight-driven posts."
		}
	case model.PlatformFacebook:
		if length > 500 {
			return "Facebook truncates long posts behind \"See more\"."
		}
	case model.PlatformTikTok:
		return "TikTok captions accompany a video."
	}
	return ""
}

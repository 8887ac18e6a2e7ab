package importer

import (
	"bytes"
	"mime"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/html"
)

// FeedType はフィードの種類（RSS/Atom）を表す。
type FeedType string

const (
	FeedTypeRSS  FeedType = "rss"
	FeedTypeAtom FeedType = "atom"
)

// FeedLink はHTMLのheadで告知されているフィードへのリンク。
type FeedLink struct {
	URL   string
	Type  FeedType
	Title string
}

// feedMediaTypes はContent-Typeだけでフィードと判定できるメディアタイプ。
var feedMediaTypes = []string{"application/rss+xml", "application/atom+xml"}

// xmlMediaTypes はボディを見て判定する汎用XMLのメディアタイプ。
var xmlMediaTypes = []string{"text/xml", "application/xml"}

// sniffSize はXMLのルート要素を探す先頭バイト数。
const sniffSize = 4096

// mediaType はContent-Typeからパラメータを除いた小文字のメディアタイプを返す。
func mediaType(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return strings.ToLower(mt)
}

// IsDirectFeed はレスポンスがRSS/Atomフィードそのものかを判定する。
// Content-Typeが汎用XMLの場合、またはContent-Typeがない場合はボディ先頭のルート要素で判定する。
func IsDirectFeed(contentType string, body []byte) bool {
	mt := mediaType(contentType)
	if slices.Contains(feedMediaTypes, mt) {
		return true
	}
	if mt != "" && !slices.Contains(xmlMediaTypes, mt) {
		return false
	}
	return looksLikeFeed(body)
}

func looksLikeFeed(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	head := strings.ToLower(string(body[:min(len(body), sniffSize)]))

	switch {
	case strings.Contains(head, "<rss"), strings.Contains(head, "<rdf:rdf"):
		return true
	case strings.Contains(head, "<feed") && strings.Contains(head, "http://www.w3.org/2005/atom"):
		return true
	}
	return false
}

// IsHTML はContent-TypeがHTMLかを判定する。
func IsHTML(contentType string) bool {
	return strings.Contains(mediaType(contentType), "html")
}

// ParseFeedLinks はHTMLのheadから rel="alternate" のRSS/Atomリンクを抽出する。
// 相対URLはbaseURLを基準に解決する。bodyに到達した時点で解析を終える。
func ParseFeedLinks(htmlBody []byte, baseURL string) []FeedLink {
	var links []FeedLink

	base, err := url.Parse(baseURL)
	if err != nil {
		return links
	}

	z := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		switch z.Next() {
		case html.ErrorToken:
			return links

		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "head" {
				return links
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "head":
				inHead = true
				continue
			case "body":
				return links
			case "link":
			default:
				continue
			}
			if !inHead || !hasAttr {
				continue
			}

			attrs := readAttrs(z)
			if !hasToken(attrs["rel"], "alternate") || attrs["href"] == "" {
				continue
			}

			var ft FeedType
			switch strings.ToLower(attrs["type"]) {
			case "application/rss+xml":
				ft = FeedTypeRSS
			case "application/atom+xml":
				ft = FeedTypeAtom
			default:
				continue
			}

			ref, err := url.Parse(attrs["href"])
			if err != nil {
				continue
			}
			links = append(links, FeedLink{
				URL:   base.ResolveReference(ref).String(),
				Type:  ft,
				Title: attrs["title"],
			})
		}
	}
}

// readAttrs は現在のタグの属性を小文字キーのマップで返す。
func readAttrs(z *html.Tokenizer) map[string]string {
	attrs := make(map[string]string)
	for {
		key, val, more := z.TagAttr()
		attrs[strings.ToLower(string(key))] = string(val)
		if !more {
			return attrs
		}
	}
}

// hasToken は空白区切りの属性値にtokenが含まれるかを判定する。
func hasToken(value, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(value)) {
		if f == token {
			return true
		}
	}
	return false
}

// SelectBestFeed は候補から1つを選ぶ。
// 優先順位: 入力URLと同一ホスト > Atom > 文書内で先に現れたもの
func SelectBestFeed(links []FeedLink, pageURL string) (FeedLink, bool) {
	if len(links) == 0 {
		return FeedLink{}, false
	}

	pageHost := hostOf(pageURL)
	best, bestScore := 0, -1
	for i, l := range links {
		score := 0
		if pageHost != "" && hostOf(l.URL) == pageHost {
			score += 100
		}
		if l.Type == FeedTypeAtom {
			score += 10
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	return links[best], true
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

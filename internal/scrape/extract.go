package scrape

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/slice/havoc/internal/discord"
)

var (
	assetScriptRe = regexp.MustCompile(`^/assets/([.0-9a-z]+)\.js$`)
	assetStyleRe  = regexp.MustCompile(`^/assets/([.0-9a-z]+)\.css$`)
)

// ExtractAssetsFromTags extracts assets from the <script> and <link> tags of
// a branch page. Scripts come first in document order, stylesheets after,
// also in document order. Names are constrained to [.0-9a-z]+; anything else
// on the page is ignored.
func ExtractAssetsFromTags(page string) []discord.Asset {
	var scripts, styles []discord.Asset

	tokenizer := html.NewTokenizer(strings.NewReader(page))
	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		switch token.Data {
		case "script":
			if m := assetScriptRe.FindStringSubmatch(attr(token, "src")); m != nil {
				scripts = append(scripts, discord.Asset{Name: m[1], Type: discord.AssetJs})
			}
		case "link":
			if m := assetStyleRe.FindStringSubmatch(attr(token, "href")); m != nil {
				styles = append(styles, discord.Asset{Name: m[1], Type: discord.AssetCss})
			}
		}
	}

	return append(scripts, styles...)
}

func attr(token html.Token, name string) string {
	for _, a := range token.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

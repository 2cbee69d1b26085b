package discord

// AssetBaseURL is where the CDN serves frontend assets. Stable's host serves
// assets for every branch.
const AssetBaseURL = "https://discord.com/assets"

// AssetType is the kind of a frontend asset, keyed by file extension.
type AssetType string

const (
	AssetCss  AssetType = "css"
	AssetJs   AssetType = "js"
	AssetIco  AssetType = "ico"
	AssetSvg  AssetType = "svg"
	AssetWebm AssetType = "webm"
	AssetWebp AssetType = "webp"
	AssetGif  AssetType = "gif"
)

// Ext returns the canonical lowercase file extension of the asset type.
func (t AssetType) Ext() string {
	return string(t)
}

// Asset is a file deployed onto Discord's CDN. Names are expected to match
// [.0-9a-z]+; the extractor that produces assets is responsible for that.
type Asset struct {
	Name string    `json:"name"`
	Type AssetType `json:"type"`
}

// Filename returns the name and extension joined by a period.
func (a Asset) Filename() string {
	return a.Name + "." + a.Type.Ext()
}

// URL returns the CDN URL of the asset.
func (a Asset) URL() string {
	return AssetBaseURL + "/" + a.Filename()
}

// FilterByType returns the assets of a single type, preserving order.
func FilterByType(assets []Asset, t AssetType) []Asset {
	var out []Asset
	for _, a := range assets {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

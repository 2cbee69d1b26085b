package discord

import "fmt"

// Manifest is a surface snapshot of a client build: the branch it was seen
// on, the server-reported build hash, and the assets referenced by the HTML
// entry page in discovery order (scripts first, then stylesheets).
type Manifest struct {
	Branch Branch  `json:"branch"`
	Hash   string  `json:"hash"`
	Assets []Asset `json:"assets"`
}

func (m Manifest) String() string {
	return fmt.Sprintf("Discord %s (%d asset(s))", m.Branch.Display(), len(m.Assets))
}

// Build is a manifest extended with its numeric build identifier. Two
// observations with the same number describe the same build even if their
// asset lists differ.
type Build struct {
	Manifest Manifest `json:"manifest"`
	Number   uint32   `json:"number"`
}

func (b Build) String() string {
	return fmt.Sprintf("Discord %s %d (%s)", b.Manifest.Branch.Display(), b.Number, b.Manifest.Hash)
}

// Equal compares builds by number only.
func (b Build) Equal(other Build) bool {
	return b.Number == other.Number
}

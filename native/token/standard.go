package token

import (
	"fmt"
	"strings"
)

// Standard is the custody model a listing was created under. It is resolved
// once when the listing is created and stored with it.
type Standard uint8

const (
	StandardUnknown Standard = iota
	// StandardERC721 covers unique-ownership collections (ERC721, ERC721A).
	StandardERC721
	// StandardERC1155 covers quantity-bearing collections.
	StandardERC1155
)

func (s Standard) String() string {
	switch s {
	case StandardERC721:
		return "ERC721"
	case StandardERC1155:
		return "ERC1155"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether the value names a supported custody model.
func (s Standard) Valid() bool {
	return s == StandardERC721 || s == StandardERC1155
}

// ParseStandard converts the canonical name back into a Standard.
func ParseStandard(raw string) (Standard, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "ERC721", "ERC721A":
		return StandardERC721, nil
	case "ERC1155":
		return StandardERC1155, nil
	default:
		return StandardUnknown, fmt.Errorf("token: unknown standard %q", raw)
	}
}

package game

import (
	"fmt"
	"strings"

	"github.com/narasim-teja/Sorobon-Battles/internal/models"
)

// TokenURI renders the metadata location of a token kind, "{base}/{kind}.json".
func TokenURI(baseURI string, kind models.TokenKind) string {
	return fmt.Sprintf("%s/%d.json", strings.TrimRight(baseURI, "/"), uint8(kind))
}

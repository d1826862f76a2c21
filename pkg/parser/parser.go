package parser

import (
	"regexp"

	"gearshop/pkg/models"
)

// tokenPattern matches "[id]" where id is word characters joined by hyphens.
var tokenPattern = regexp.MustCompile(`\[(\w+(?:-\w+)*)\]`)

// Lookup resolves a product identifier. *catalog.Catalog satisfies it.
type Lookup interface {
	Lookup(id string) (models.Product, bool)
}

// Token is one bracketed reference found in a reply. Product is nil when
// the identifier is not in the catalog.
type Token struct {
	ID      string
	Product *models.Product
}

// Resolved reports whether the token matched a catalog product.
func (t Token) Resolved() bool {
	return t.Product != nil
}

// Parse extracts bracketed identifiers from reply in order of first
// appearance and resolves each against the catalog. Repeated identifiers
// are reported once.
func Parse(reply string, catalog Lookup) []Token {
	matches := tokenPattern.FindAllStringSubmatch(reply, -1)
	if len(matches) == 0 {
		return nil
	}

	tokens := make([]Token, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		id := m[1]
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		tok := Token{ID: id}
		if p, ok := catalog.Lookup(id); ok {
			tok.Product = &p
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// ParseRecommendations returns the catalog products referenced in reply,
// in the order they were first mentioned. Unknown identifiers are dropped.
func ParseRecommendations(reply string, catalog Lookup) []models.Product {
	products, _ := Split(Parse(reply, catalog))
	return products
}

// Split separates resolved products from unresolved identifiers.
func Split(tokens []Token) ([]models.Product, []string) {
	products := make([]models.Product, 0, len(tokens))
	var unresolved []string
	for _, t := range tokens {
		if t.Resolved() {
			products = append(products, *t.Product)
		} else {
			unresolved = append(unresolved, t.ID)
		}
	}
	return products, unresolved
}

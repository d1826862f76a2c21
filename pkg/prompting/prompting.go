package prompting

import (
	"fmt"
	"strings"

	"gearshop/pkg/models"
)

// Mode selects how eagerly the assistant recommends products.
type Mode string

const (
	// ModeStrict recommends only clearly relevant items.
	ModeStrict Mode = "strict"
	// ModePermissive recommends broadly, including complementary items.
	ModePermissive Mode = "permissive"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeStrict, ModePermissive:
		return m, nil
	default:
		return "", fmt.Errorf("unknown assistant mode %q (want %q or %q)", s, ModeStrict, ModePermissive)
	}
}

// Temperature is the sampling temperature used with the mode.
func (m Mode) Temperature() float64 {
	if m == ModeStrict {
		return 0.2
	}
	return 0.6
}

// SystemPrompt returns the instruction for the outdoor-gear assistant.
// The catalog is listed one product per line with its identifier verbatim,
// and the model must reference products only as [identifier].
func SystemPrompt(products []models.Product, mode Mode) string {
	var b strings.Builder

	b.WriteString("You are a helpful outdoor gear shopping assistant. ")
	b.WriteString("You have access to a specific product catalog and must ONLY recommend products from this catalog.\n\n")

	switch mode {
	case ModeStrict:
		b.WriteString("Recommend only the few items that clearly match the customer's needs. ")
		b.WriteString("If nothing in the catalog fits, say so instead of stretching.\n\n")
	default:
		b.WriteString("Recommend as many relevant items as you can, including loosely related complementary gear. ")
		b.WriteString("Give a short reason for every item you include.\n\n")
	}

	b.WriteString("Available products with their IDs:\n")
	for _, p := range products {
		writeProduct(&b, p)
	}

	example := "[product-id]"
	if len(products) > 0 {
		example = "[" + products[0].ID + "]"
	}
	fmt.Fprintf(&b, `
Rules:
1. Refer to products EXCLUSIVELY by their exact ID wrapped in square brackets, for example %s.
2. Use only IDs from the list above. Never invent, shorten or alter an ID.
3. Do not use square brackets for anything other than product IDs.

Always answer in a friendly, conversational way. Start with a brief greeting and explanation, then list the recommended products.
`, example)

	if len(products) >= 2 {
		fmt.Fprintf(&b, `
Example response:
"Hi! Based on your needs, I recommend the following items:
The [%s] would suit your trip well, and the [%s] goes nicely with it..."
`, products[0].ID, products[1].ID)
	}
	return b.String()
}

func writeProduct(b *strings.Builder, p models.Product) {
	fmt.Fprintf(b, "- [%s]: %s - %s (Categories: %s; Good for: %s; Weather: %s)\n",
		p.ID,
		p.Name,
		p.Description,
		joinTags(p.Categories, "none"),
		joinTags(p.Activities, "none"),
		joinTags(p.Weather, "any"),
	)
}

// joinTags lists tags, or empty when there are none.
func joinTags(tags []string, empty string) string {
	if len(tags) == 0 {
		return empty
	}
	return strings.Join(tags, ", ")
}

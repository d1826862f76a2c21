package models

// Product is a single catalog entry. Products are loaded once at startup
// and never mutated afterwards.
type Product struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Price       float64  `json:"price" yaml:"price"`
	Image       string   `json:"image,omitempty" yaml:"image"`
	Categories  []string `json:"categories" yaml:"categories"`
	Activities  []string `json:"activities" yaml:"activities"`
	Weather     []string `json:"weather" yaml:"weather"`
}

// Recommendation pairs a product with its relevance score.
type Recommendation struct {
	Product Product
	Score   int
}

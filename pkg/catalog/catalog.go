package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"gearshop/pkg/models"
)

// DefaultPageSize mirrors the product grid of the storefront.
const DefaultPageSize = 12

//go:embed catalog.yaml
var defaultCatalog []byte

var idPattern = regexp.MustCompile(`^\w+(?:-\w+)*$`)

// Catalog is the immutable product list with an ID lookup table.
// It is safe for concurrent use because nothing mutates it after New.
type Catalog struct {
	products []models.Product
	byID     map[string]int
}

type catalogFile struct {
	Products []models.Product `yaml:"products"`
}

// Load reads a YAML catalog from path. An empty path loads the embedded
// default catalog.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(f.Products)
}

// New validates products and builds the lookup table.
func New(products []models.Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, errors.New("empty catalog")
	}

	c := &Catalog{
		products: make([]models.Product, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for i, p := range products {
		if !idPattern.MatchString(p.ID) {
			return nil, fmt.Errorf("product %d: invalid id %q", i, p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("product %d: duplicate id %q", i, p.ID)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("product %q: negative price", p.ID)
		}
		p.Categories = uniqueTags(p.Categories)
		p.Activities = uniqueTags(p.Activities)
		p.Weather = uniqueTags(p.Weather)
		c.products[i] = p
		c.byID[p.ID] = i
	}
	return c, nil
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// All returns a copy of every product in catalog order.
func (c *Catalog) All() []models.Product {
	out := make([]models.Product, len(c.products))
	for i := range c.products {
		out[i] = cloneProduct(c.products[i])
	}
	return out
}

// Lookup finds a product by its exact identifier.
func (c *Catalog) Lookup(id string) (models.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Product{}, false
	}
	return cloneProduct(c.products[i]), true
}

// Resolve maps identifiers to products, keeping the order of first
// appearance. Unknown and repeated identifiers are dropped.
func (c *Catalog) Resolve(ids []string) []models.Product {
	out := make([]models.Product, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := c.Lookup(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Categories lists every category in order of first appearance.
func (c *Catalog) Categories() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range c.products {
		for _, cat := range p.Categories {
			if _, ok := seen[cat]; ok {
				continue
			}
			seen[cat] = struct{}{}
			out = append(out, cat)
		}
	}
	return out
}

// Filter returns products that carry at least one of the given categories.
// An empty filter returns the whole catalog.
func (c *Catalog) Filter(categories []string) []models.Product {
	if len(categories) == 0 {
		return c.All()
	}
	want := make(map[string]struct{}, len(categories))
	for _, cat := range categories {
		want[cat] = struct{}{}
	}

	var out []models.Product
	for _, p := range c.products {
		for _, cat := range p.Categories {
			if _, ok := want[cat]; ok {
				out = append(out, cloneProduct(p))
				break
			}
		}
	}
	return out
}

// Page slices products for incremental loading. A non-positive limit uses
// DefaultPageSize; an offset past the end yields an empty page.
func Page(products []models.Product, offset, limit int) []models.Product {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(products) {
		return []models.Product{}
	}
	end := min(offset+limit, len(products))
	return products[offset:end]
}

// cloneProduct copies tag slices so callers cannot alter catalog state.
func cloneProduct(p models.Product) models.Product {
	p.Categories = append([]string(nil), p.Categories...)
	p.Activities = append([]string(nil), p.Activities...)
	p.Weather = append([]string(nil), p.Weather...)
	return p
}

// uniqueTags returns a fresh copy of tags with repeats removed, keeping
// first-appearance order.
func uniqueTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

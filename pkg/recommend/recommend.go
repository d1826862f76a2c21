package recommend

import (
	"sort"

	"gearshop/pkg/models"
)

// DefaultLimit is the number of recommendations shown next to a cart.
const DefaultLimit = 3

// Tag weights. An activity match says the most about whether gear belongs
// on the same trip.
const (
	categoryWeight = 2
	activityWeight = 3
	weatherWeight  = 2
)

type tagSet map[string]struct{}

func (s tagSet) add(tags []string) {
	for _, t := range tags {
		s[t] = struct{}{}
	}
}

// matches counts the distinct tags shared with s.
func (s tagSet) matches(tags []string) int {
	shared := tagSet{}
	for _, t := range tags {
		if _, ok := s[t]; ok {
			shared[t] = struct{}{}
		}
	}
	return len(shared)
}

// Profile is the union of the seed products' tags.
type Profile struct {
	categories tagSet
	activities tagSet
	weather    tagSet
}

// NewProfile collects the tags of every seed product.
func NewProfile(seeds []models.Product) Profile {
	p := Profile{
		categories: tagSet{},
		activities: tagSet{},
		weather:    tagSet{},
	}
	for _, s := range seeds {
		p.categories.add(s.Categories)
		p.activities.add(s.Activities)
		p.weather.add(s.Weather)
	}
	return p
}

// Score rates how well product fits the profile.
func (p Profile) Score(product models.Product) int {
	return p.categories.matches(product.Categories)*categoryWeight +
		p.activities.matches(product.Activities)*activityWeight +
		p.weather.matches(product.Weather)*weatherWeight
}

// Rank scores every catalog product that is not a seed, drops zero scores
// and orders the rest by descending score. Ties keep catalog order.
func Rank(seeds, catalog []models.Product) []models.Recommendation {
	if len(seeds) == 0 {
		return nil
	}

	inSeeds := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		inSeeds[s.ID] = struct{}{}
	}
	profile := NewProfile(seeds)

	var ranked []models.Recommendation
	for _, product := range catalog {
		if _, ok := inSeeds[product.ID]; ok {
			continue
		}
		if score := profile.Score(product); score > 0 {
			ranked = append(ranked, models.Recommendation{Product: product, Score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Recommend returns at most limit products that pair well with seeds.
// A non-positive limit means DefaultLimit. Without seeds there is nothing
// to recommend.
func Recommend(seeds, catalog []models.Product, limit int) []models.Product {
	if limit <= 0 {
		limit = DefaultLimit
	}
	ranked := Rank(seeds, catalog)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]models.Product, len(ranked))
	for i := range ranked {
		out[i] = ranked[i].Product
	}
	return out
}

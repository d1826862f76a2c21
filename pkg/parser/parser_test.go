package parser_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gearshop/pkg/catalog"
	"gearshop/pkg/models"
	"gearshop/pkg/parser"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]models.Product{
		{ID: "tent-tall", Name: "Tall Tent"},
		{ID: "sleeping-bag-winter", Name: "Winter Bag"},
		{ID: "camp_stove2", Name: "Stove"},
	})
	require.NoError(t, err)
	return c
}

func TestParseRecommendationsOrder(t *testing.T) {
	c := testCatalog(t)

	got := parser.ParseRecommendations("Try the [tent-tall] and [sleeping-bag-winter].", c)
	require.Len(t, got, 2)
	require.Equal(t, "tent-tall", got[0].ID)
	require.Equal(t, "sleeping-bag-winter", got[1].ID)

	got = parser.ParseRecommendations("First [sleeping-bag-winter], then [tent-tall], again [sleeping-bag-winter].", c)
	require.Len(t, got, 2)
	require.Equal(t, "sleeping-bag-winter", got[0].ID)
	require.Equal(t, "tent-tall", got[1].ID)
}

func TestParseRecommendationsDropsUnknown(t *testing.T) {
	c := testCatalog(t)

	require.Empty(t, parser.ParseRecommendations("Look at [not-a-real-id]!", c))

	got := parser.ParseRecommendations("[not-a-real-id] or [camp_stove2]", c)
	require.Len(t, got, 1)
	require.Equal(t, "camp_stove2", got[0].ID)
}

func TestParseRecommendationsEmpty(t *testing.T) {
	c := testCatalog(t)
	require.Empty(t, parser.ParseRecommendations("", c))
	require.Empty(t, parser.ParseRecommendations("no brackets here", c))
}

func TestParseIgnoresMalformedTokens(t *testing.T) {
	c := testCatalog(t)

	cases := []string{
		"[tent tall]",
		"[-tent-tall]",
		"[tent-tall-]",
		"[tent--tall]",
		"[]",
		"[ tent-tall ]",
	}
	for _, reply := range cases {
		require.Empty(t, parser.Parse(reply, c), reply)
	}
}

func TestParseTokens(t *testing.T) {
	c := testCatalog(t)

	tokens := parser.Parse("[tent-tall], [ghost-item], [tent-tall] and [camp_stove2]", c)
	require.Len(t, tokens, 3)

	require.Equal(t, "tent-tall", tokens[0].ID)
	require.True(t, tokens[0].Resolved())
	require.Equal(t, "Tall Tent", tokens[0].Product.Name)

	require.Equal(t, "ghost-item", tokens[1].ID)
	require.False(t, tokens[1].Resolved())

	require.Equal(t, "camp_stove2", tokens[2].ID)

	products, unresolved := parser.Split(tokens)
	require.Len(t, products, 2)
	require.Equal(t, []string{"ghost-item"}, unresolved)
}

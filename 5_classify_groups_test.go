package geonews

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func titles(g Group) []string {
	var out []string
	for _, m := range g.Members {
		out = append(out, m.Title)
	}
	return out
}

func TestClassifyGroups_Ordering(t *testing.T) {
	articles := []Article{
		article("a", "en"), article("b", "en"), article("c", "fr"),
		article("d", "de"), article("e", "es"), article("f", "pt"),
		article("g", "en"),
	}
	// Sizes: label 0 -> 2, label 1 -> 1, label 2 -> 3, label 3 -> 1.
	labels := []int{0, 1, 2, 0, 2, 3, 2}

	groups, err := ClassifyGroups(articles, labels)
	require.NoError(t, err)
	require.Len(t, groups, 4)

	assert.Equal(t, KindEvent, groups[0].Kind)
	assert.Equal(t, []string{"c", "e", "g"}, titles(groups[0]))
	assert.Equal(t, KindEvent, groups[1].Kind)
	assert.Equal(t, []string{"a", "d"}, titles(groups[1]))
	assert.Equal(t, KindSingleton, groups[2].Kind)
	assert.Equal(t, []string{"b"}, titles(groups[2]))
	assert.Equal(t, KindSingleton, groups[3].Kind)
	assert.Equal(t, []string{"f"}, titles(groups[3]))
}

func TestClassifyGroups_StableTies(t *testing.T) {
	articles := []Article{article("a", "en"), article("b", "en"), article("c", "en"), article("d", "en")}
	groups, err := ClassifyGroups(articles, []int{1, 0, 1, 0})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	// Equal sizes keep the order in which labels first appeared.
	assert.Equal(t, []string{"a", "c"}, titles(groups[0]))
	assert.Equal(t, []string{"b", "d"}, titles(groups[1]))
}

func TestClassifyGroups_DropsNoise(t *testing.T) {
	articles := []Article{article("a", "en"), article("b", "en"), article("c", "en")}
	groups, err := ClassifyGroups(articles, []int{0, NoiseLabel, 0})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "c"}, titles(groups[0]))
}

func TestClassifyGroups_Empty(t *testing.T) {
	groups, err := ClassifyGroups(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestClassifyGroups_LengthMismatch(t *testing.T) {
	_, err := ClassifyGroups([]Article{article("a", "en")}, []int{0, 0})
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestClassifyGroups_EventsAndSingletonsAreValid(t *testing.T) {
	articles := []Article{article("a", "en"), article("b", "en"), article("c", "en")}
	groups, err := ClassifyGroups(articles, []int{0, 1, 0})
	require.NoError(t, err)
	for _, g := range groups {
		if g.IsEvent() {
			assert.GreaterOrEqual(t, len(g.Members), 2)
		} else {
			assert.Len(t, g.Members, 1)
		}
	}
}

func TestRegroup_Idempotent(t *testing.T) {
	articles := []Article{
		article("a", "en"), article("b", "fr"), article("c", "de"),
		article("d", "es"), article("e", "pt"),
	}
	groups, err := ClassifyGroups(articles, []int{0, 1, 1, 2, 1})
	require.NoError(t, err)

	again := Regroup(groups)
	assert.Equal(t, groups, again)
	assert.Equal(t, again, Regroup(again))
}

func TestSummitScenario(t *testing.T) {
	articles := []Article{
		{
			Title:    "Leaders meet for summit in Geneva",
			Summary:  "Heads of state gathered to discuss the ceasefire plan.",
			Language: "en",
			Sources:  []Source{{Label: "Wire", URL: "https://example.com/en"}},
		},
		{
			Title:    "Les dirigeants se réunissent à Genève",
			Summary:  "Les chefs d'État ont discuté du plan de cessez-le-feu.",
			Language: "fr",
			Sources:  []Source{{Label: "Dépêche", URL: "https://example.com/fr"}},
		},
		{
			Title:    "Lokale Wahlergebnisse veröffentlicht",
			Summary:  "Die Ergebnisse der Gemeindewahlen liegen vor.",
			Language: "de",
			Sources:  []Source{{Label: "Zeitung", URL: "https://example.com/de"}},
		},
	}
	vectors := summitVectors()
	enc := &fakeEncoder{vectors: map[string][]float64{
		EmbeddingText(articles[0]): vectors[0],
		EmbeddingText(articles[1]): vectors[1],
		EmbeddingText(articles[2]): vectors[2],
	}}

	p := &Pipeline{Encoder: enc, Threshold: 0.4, Workers: 2}
	groups, err := p.Run(context.Background(), articles)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	event := groups[0]
	assert.True(t, event.IsEvent())
	assert.Len(t, event.Members, 2)
	assert.Equal(t, []string{"EN", "FR"}, event.Languages())
	assert.Equal(t, "Leaders meet for summit in Geneva", event.Representative().Title)

	single := groups[1]
	assert.Equal(t, KindSingleton, single.Kind)
	assert.Equal(t, []string{"DE"}, single.Languages())
}

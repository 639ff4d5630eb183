package geonews

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
)

// ClassifyGroups turns cluster labels into ordered groups. Articles sharing a
// label form one group, members keep their input order and groups are
// sorted by size, largest first, with ties kept in order of first appearance.
// Events (two or more members) come before Singletons. Articles labelled
// NoiseLabel are dropped.
func ClassifyGroups(articles []Article, labels []int) ([]Group, error) {
	if len(articles) != len(labels) {
		return nil, fmt.Errorf("%w: %d articles but %d labels", ErrMalformedInput, len(articles), len(labels))
	}

	index := make(map[int]int)
	var buckets [][]Article
	for i, label := range labels {
		if label == NoiseLabel {
			continue
		}
		pos, ok := index[label]
		if !ok {
			pos = len(buckets)
			index[label] = pos
			buckets = append(buckets, nil)
		}
		buckets[pos] = append(buckets[pos], articles[i])
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return len(buckets[i]) > len(buckets[j])
	})

	groups := make([]Group, 0, len(buckets))
	var singletons []Group
	for _, members := range buckets {
		if len(members) >= 2 {
			groups = append(groups, Group{Kind: KindEvent, Members: members})
		} else {
			singletons = append(singletons, Group{Kind: KindSingleton, Members: members})
		}
	}
	groups = append(groups, singletons...)

	events := len(groups) - len(singletons)
	log.Debug().Int("events", events).Int("singletons", len(singletons)).Msg("Classified groups")
	return groups, nil
}

// Regroup runs classification again over an existing grouping, treating each
// group as one cluster. Classified output is returned unchanged.
func Regroup(groups []Group) []Group {
	var articles []Article
	var labels []int
	for label, g := range groups {
		for _, m := range g.Members {
			articles = append(articles, m)
			labels = append(labels, label)
		}
	}
	// Lengths always agree here.
	out, _ := ClassifyGroups(articles, labels)
	return out
}

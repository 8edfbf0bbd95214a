// Package hierarchy rebuilds the epic, feature and story tree from flat work
// item lists and their relation edges.
package hierarchy

import (
	"sort"

	"github.com/AlieInmar1/pbtoado-sub002/internal/mapping"
	"github.com/AlieInmar1/pbtoado-sub002/pkg/types"
)

// Hierarchy is the three-level structure with parent and child indexes.
// Child id lists are sorted ascending and Stories is ordered by id, so equal
// inputs in any order produce equal values.
type Hierarchy struct {
	Epics          map[int]types.WorkItem
	Features       map[int]types.WorkItem
	Stories        []types.WorkItem
	FeatureToEpic  map[int]int
	StoryToFeature map[int]int
	EpicFeatures   map[int][]int
	FeatureStories map[int][]int
}

// Build indexes epics and features by id and links each feature and story to
// its parent through the first reverse-hierarchy relation it carries. Items
// whose parent is not part of the input are left out of the indexes.
func Build(epics, features, stories []types.WorkItem) Hierarchy {
	h := Hierarchy{
		Epics:          make(map[int]types.WorkItem, len(epics)),
		Features:       make(map[int]types.WorkItem, len(features)),
		Stories:        make([]types.WorkItem, len(stories)),
		FeatureToEpic:  make(map[int]int),
		StoryToFeature: make(map[int]int),
		EpicFeatures:   make(map[int][]int),
		FeatureStories: make(map[int][]int),
	}
	for _, e := range epics {
		h.Epics[e.ID] = e
	}
	for _, f := range features {
		h.Features[f.ID] = f
	}
	copy(h.Stories, stories)
	sort.SliceStable(h.Stories, func(i, j int) bool { return h.Stories[i].ID < h.Stories[j].ID })

	for _, f := range features {
		parent, ok := ParentID(f)
		if !ok {
			continue
		}
		if _, indexed := h.Epics[parent]; !indexed {
			continue
		}
		h.FeatureToEpic[f.ID] = parent
		h.EpicFeatures[parent] = append(h.EpicFeatures[parent], f.ID)
	}
	for _, s := range h.Stories {
		parent, ok := ParentID(s)
		if !ok {
			continue
		}
		if _, indexed := h.Features[parent]; !indexed {
			continue
		}
		h.StoryToFeature[s.ID] = parent
		h.FeatureStories[parent] = append(h.FeatureStories[parent], s.ID)
	}
	for _, children := range h.EpicFeatures {
		sort.Ints(children)
	}
	for _, children := range h.FeatureStories {
		sort.Ints(children)
	}
	return h
}

// ParentID returns the parent parsed from the item's first reverse-hierarchy
// relation. Later reverse-hierarchy edges are ignored.
func ParentID(wi types.WorkItem) (int, bool) {
	for _, r := range wi.Relations {
		if r.RelType != mapping.RelParent {
			continue
		}
		return mapping.WorkItemIDFromURL(r.TargetURL)
	}
	return 0, false
}

// Node is one level of the rendered tree.
type Node struct {
	Item     types.WorkItem `json:"item"`
	Children []Node         `json:"children,omitempty"`
}

// Tree renders the epics with their linked features and stories, ordered by id.
func (h Hierarchy) Tree() []Node {
	epicIDs := make([]int, 0, len(h.Epics))
	for id := range h.Epics {
		epicIDs = append(epicIDs, id)
	}
	sort.Ints(epicIDs)

	stories := make(map[int]types.WorkItem, len(h.Stories))
	for _, s := range h.Stories {
		stories[s.ID] = s
	}

	tree := make([]Node, 0, len(epicIDs))
	for _, eid := range epicIDs {
		epic := Node{Item: h.Epics[eid]}
		for _, fid := range h.EpicFeatures[eid] {
			feature := Node{Item: h.Features[fid]}
			for _, sid := range h.FeatureStories[fid] {
				feature.Children = append(feature.Children, Node{Item: stories[sid]})
			}
			epic.Children = append(epic.Children, feature)
		}
		tree = append(tree, epic)
	}
	return tree
}

package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, doc string) *Tree {
	t.Helper()
	tree, dropped, err := ParseTree([]byte(doc))
	require.NoError(t, err)
	require.Empty(t, dropped)
	return tree
}

func TestParseTreeClassification(t *testing.T) {
	doc := `{
		"id": "math-7",
		"title": "Math grade 7",
		"children": [
			{
				"id": "t1", "title": "Numbers", "sequential": true, "sortOrder": 1,
				"children": [
					{"id": "l1", "type": "lesson", "bitPosition": 0, "sortOrder": 1},
					{"id": "l2", "bitPosition": 1, "sortOrder": 2}
				]
			},
			{"id": "t2", "title": "Shapes", "sortOrder": 2, "children": []}
		]
	}`
	tree := mustParse(t, doc)

	assert.Equal(t, KindSubject, tree.Root.Kind)
	assert.False(t, tree.Root.Sequential, "sequential defaults to parallel")

	t1 := tree.Root.Children[0]
	require.Equal(t, "t1", t1.ID)
	assert.Equal(t, KindContainer, t1.Kind)
	assert.True(t, t1.Sequential)

	l1, ok := tree.Lesson("l1")
	require.True(t, ok)
	assert.Equal(t, KindLesson, l1.Kind)
	assert.Equal(t, 0, l1.BitPosition)

	l2, ok := tree.Lesson("l2")
	require.True(t, ok, "an untyped leaf with a bit position is a lesson")
	assert.Equal(t, 1, l2.BitPosition)

	assert.Equal(t, 2, tree.LessonCount())
	assert.Equal(t, 1, tree.MaxBitPosition())
	assert.Equal(t, KindContainer, tree.Root.Children[1].Kind)
}

func TestParseTreeSortsChildren(t *testing.T) {
	doc := `{
		"id": "s",
		"children": [
			{"id": "b", "bitPosition": 1, "sortOrder": 2},
			{"id": "c", "bitPosition": 2, "sortOrder": 1},
			{"id": "a", "bitPosition": 0, "sortOrder": 2}
		]
	}`
	tree := mustParse(t, doc)

	var order []string
	for _, c := range tree.Root.Children {
		order = append(order, c.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, order, "sortOrder first, id breaks ties")
}

func TestParseTreeDropsMalformedSubtrees(t *testing.T) {
	doc := `{
		"id": "s",
		"children": [
			{"id": "ok", "bitPosition": 0},
			{"id": "draft-lesson", "type": "lesson"},
			{"id": "broken", "children": [
				{"id": "", "bitPosition": 3}
			]}
		]
	}`
	tree, dropped, err := ParseTree([]byte(doc))
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"draft-lesson", "<missing id>"}, dropped)
	assert.Equal(t, 1, tree.LessonCount())
	_, ok := tree.Lesson("draft-lesson")
	assert.False(t, ok, "a lesson without a bit position must not appear in the tree")
	broken := tree.Root.Children[0]
	require.Equal(t, "broken", broken.ID)
	assert.Empty(t, broken.Children)
}

func TestParseTreeRejectsDuplicates(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "duplicate node id",
			doc:  `{"id":"s","children":[{"id":"l1","bitPosition":0},{"id":"l1","bitPosition":1}]}`,
		},
		{
			name: "duplicate bit position",
			doc:  `{"id":"s","children":[{"id":"l1","bitPosition":0},{"id":"l2","bitPosition":0}]}`,
		},
		{
			name: "root is a lesson",
			doc:  `{"id":"s","bitPosition":0}`,
		},
		{
			name: "no root id",
			doc:  `{"children":[]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseTree([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestNormalizeDocumentAssignsNewLessons(t *testing.T) {
	assigned := map[string]int{"l1": 0}
	doc := `{
		"id": "s",
		"children": [
			{"id": "new-b", "type": "lesson", "sortOrder": 3},
			{"id": "l1", "type": "lesson", "sortOrder": 1},
			{"id": "new-a", "type": "lesson", "sortOrder": 2}
		]
	}`
	alloc := func(n int) (int, error) {
		require.Equal(t, 2, n)
		return 7, nil
	}

	ns, err := NormalizeDocument([]byte(doc), assigned, alloc)
	require.NoError(t, err)

	assert.Equal(t, []Assignment{
		{LessonID: "new-a", BitPosition: 7},
		{LessonID: "new-b", BitPosition: 8},
	}, ns.Assignments, "fresh positions follow canonical order, not document order")

	l1, ok := ns.Tree.Lesson("l1")
	require.True(t, ok)
	assert.Equal(t, 0, l1.BitPosition, "known lessons keep their recorded position")
	assert.Equal(t, 3, ns.Tree.LessonCount())

	reparsed, dropped, err := ParseTree(ns.Canonical)
	require.NoError(t, err)
	assert.Empty(t, dropped, "canonical documents parse without drops")
	assert.Equal(t, 3, reparsed.LessonCount())
}

func TestNormalizeDocumentNoNewLessons(t *testing.T) {
	assigned := map[string]int{"l1": 4}
	doc := `{"id":"s","children":[{"id":"l1","type":"lesson","bitPosition":4}]}`

	ns, err := NormalizeDocument([]byte(doc), assigned, func(n int) (int, error) {
		t.Fatal("alloc must not be called when every lesson is known")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, ns.Assignments)
}

func TestNormalizeDocumentPositionOwnership(t *testing.T) {
	assigned := map[string]int{"l1": 0}
	alloc := func(n int) (int, error) { return 100, nil }

	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "known lesson with changed position",
			doc:  `{"id":"s","children":[{"id":"l1","type":"lesson","bitPosition":5}]}`,
		},
		{
			name: "unknown lesson carrying a position",
			doc:  `{"id":"s","children":[{"id":"l9","type":"lesson","bitPosition":9}]}`,
		},
		{
			name: "lesson with children",
			doc:  `{"id":"s","children":[{"id":"l9","type":"lesson","children":[{"id":"x","bitPosition":1}]}]}`,
		},
		{
			name: "unknown node type",
			doc:  `{"id":"s","children":[{"id":"x","type":"quiz","children":[]}]}`,
		},
		{
			name: "missing id",
			doc:  `{"id":"s","children":[{"type":"lesson"}]}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeDocument([]byte(tt.doc), assigned, alloc)
			assert.Error(t, err)
		})
	}
}

package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTopicDoc: parallel subject, sequential topic t1 (l1, l2), parallel
// topic t2 (l3).
const twoTopicDoc = `{
	"id": "s1",
	"children": [
		{
			"id": "t1", "sequential": true, "sortOrder": 1,
			"children": [
				{"id": "l1", "bitPosition": 0, "sortOrder": 1},
				{"id": "l2", "bitPosition": 1, "sortOrder": 2}
			]
		},
		{
			"id": "t2", "sequential": false, "sortOrder": 2,
			"children": [
				{"id": "l3", "bitPosition": 2, "sortOrder": 1}
			]
		}
	]
}`

func TestEvaluateFreshLearner(t *testing.T) {
	tree := mustParse(t, twoTopicDoc)

	ev := Evaluate(tree, nil)

	assert.Equal(t, StatusUnlocked, ev.Status("s1"))
	assert.Equal(t, StatusUnlocked, ev.Status("t1"))
	assert.Equal(t, StatusUnlocked, ev.Status("l1"))
	assert.Equal(t, StatusLocked, ev.Status("l2"), "second lesson of a sequential topic waits for the first")
	assert.Equal(t, StatusUnlocked, ev.Status("t2"))
	assert.Equal(t, StatusUnlocked, ev.Status("l3"), "parallel topics do not gate each other")

	assert.Equal(t, 0, ev.PassedLessons())
	assert.Equal(t, 3, ev.TotalLessons())
	assert.Equal(t, float64(0), ev.CompletionPercent())

	next, ok := ev.NextLessonID()
	require.True(t, ok)
	assert.Equal(t, "l1", next)
}

func TestEvaluateAfterFirstLesson(t *testing.T) {
	tree := mustParse(t, twoTopicDoc)
	var bm Bitmap
	bm.Set(0)

	ev := Evaluate(tree, bm)

	assert.Equal(t, StatusPassed, ev.Status("l1"))
	assert.Equal(t, StatusUnlocked, ev.Status("l2"))
	assert.Equal(t, StatusUnlocked, ev.Status("t1"), "a topic with work left is unlocked, not passed")
	assert.Equal(t, StatusUnlocked, ev.Status("l3"))

	assert.Equal(t, 1, ev.PassedLessons())
	assert.InDelta(t, 33.33, ev.CompletionPercent(), 0.34)

	next, ok := ev.NextLessonID()
	require.True(t, ok)
	assert.Equal(t, "l2", next, "the suggestion skips passed lessons")
}

func TestEvaluateCompletedSubject(t *testing.T) {
	tree := mustParse(t, twoTopicDoc)
	var bm Bitmap
	bm.Set(0)
	bm.Set(1)
	bm.Set(2)

	ev := Evaluate(tree, bm)

	assert.Equal(t, StatusPassed, ev.Status("s1"))
	assert.Equal(t, StatusPassed, ev.Status("t1"))
	assert.Equal(t, StatusPassed, ev.Status("t2"))
	assert.Equal(t, float64(100), ev.CompletionPercent())

	_, ok := ev.NextLessonID()
	assert.False(t, ok, "nothing to suggest once the subject is complete")
}

func TestEvaluateLockedAncestorOverridesPassed(t *testing.T) {
	// Sequential subject: t2 stays locked until every lesson of t1 is
	// passed, even when a bit under t2 is already set.
	doc := `{
		"id": "s",
		"sequential": true,
		"children": [
			{"id": "t1", "sortOrder": 1, "children": [{"id": "l1", "bitPosition": 0}]},
			{"id": "t2", "sortOrder": 2, "children": [{"id": "l2", "bitPosition": 1}]}
		]
	}`
	tree := mustParse(t, doc)
	var bm Bitmap
	bm.Set(1)

	ev := Evaluate(tree, bm)

	assert.Equal(t, StatusLocked, ev.Status("t2"))
	assert.Equal(t, StatusLocked, ev.Status("l2"), "a locked ancestor overrides a set bit")
	assert.True(t, ev.Passed("l2"), "the completion itself is still recorded")
	assert.Equal(t, 1, ev.PassedLessons(), "the percentage counts recorded completions")

	next, ok := ev.NextLessonID()
	require.True(t, ok)
	assert.Equal(t, "l1", next)
}

func TestEvaluateVacuousContainers(t *testing.T) {
	// An empty container is vacuously passed, so in a sequential parent it
	// does not hold its later siblings back.
	doc := `{
		"id": "s",
		"sequential": true,
		"children": [
			{"id": "intro", "sortOrder": 1, "children": []},
			{"id": "t1", "sortOrder": 2, "children": [{"id": "l1", "bitPosition": 0}]}
		]
	}`
	tree := mustParse(t, doc)

	ev := Evaluate(tree, nil)

	assert.Equal(t, StatusPassed, ev.Status("intro"))
	assert.Equal(t, StatusUnlocked, ev.Status("t1"))
	assert.Equal(t, StatusUnlocked, ev.Status("l1"))
}

func TestEvaluateEmptySubject(t *testing.T) {
	tree := mustParse(t, `{"id":"s","children":[]}`)

	ev := Evaluate(tree, nil)

	assert.Equal(t, StatusPassed, ev.Status("s"))
	assert.Equal(t, float64(100), ev.CompletionPercent())
	assert.Equal(t, 0, ev.TotalLessons())

	_, ok := ev.NextLessonID()
	assert.False(t, ok)
}

func TestEvaluateDeepLockPropagation(t *testing.T) {
	// The lock travels through every level: once u2 is locked, all of its
	// descendants are locked no matter what their own rules say.
	doc := `{
		"id": "s",
		"children": [
			{
				"id": "track", "sequential": true,
				"children": [
					{"id": "u1", "sortOrder": 1, "children": [{"id": "l1", "bitPosition": 0}]},
					{
						"id": "u2", "sortOrder": 2,
						"children": [
							{"id": "topic", "children": [
								{"id": "l2", "bitPosition": 1},
								{"id": "l3", "bitPosition": 2}
							]}
						]
					}
				]
			}
		]
	}`
	tree := mustParse(t, doc)

	ev := Evaluate(tree, nil)

	assert.Equal(t, StatusUnlocked, ev.Status("u1"))
	assert.Equal(t, StatusLocked, ev.Status("u2"))
	assert.Equal(t, StatusLocked, ev.Status("topic"))
	assert.Equal(t, StatusLocked, ev.Status("l2"))
	assert.Equal(t, StatusLocked, ev.Status("l3"))

	var bm Bitmap
	bm.Set(0)
	ev = Evaluate(tree, bm)
	assert.Equal(t, StatusUnlocked, ev.Status("topic"))
	assert.Equal(t, StatusUnlocked, ev.Status("l2"))
}

func TestEvaluateReorderKeepsCompletions(t *testing.T) {
	// Reordering lessons inside a topic changes the walk, never the bit a
	// lesson answers to.
	before := `{
		"id": "s",
		"children": [{"id": "t", "sequential": true, "children": [
			{"id": "a", "bitPosition": 3, "sortOrder": 1},
			{"id": "b", "bitPosition": 4, "sortOrder": 2}
		]}]
	}`
	after := `{
		"id": "s",
		"children": [{"id": "t", "sequential": true, "children": [
			{"id": "a", "bitPosition": 3, "sortOrder": 2},
			{"id": "b", "bitPosition": 4, "sortOrder": 1}
		]}]
	}`
	var bm Bitmap
	bm.Set(3)

	evBefore := Evaluate(mustParse(t, before), bm)
	evAfter := Evaluate(mustParse(t, after), bm)

	assert.True(t, evBefore.Passed("a"))
	assert.True(t, evAfter.Passed("a"), "lesson a stays passed after the reorder")
	assert.False(t, evAfter.Passed("b"))
	assert.Equal(t, 1, evAfter.PassedLessons())
}

func TestEvaluateUnknownNodeReadsLocked(t *testing.T) {
	tree := mustParse(t, twoTopicDoc)
	ev := Evaluate(tree, nil)
	assert.Equal(t, StatusLocked, ev.Status("no-such-node"))
}

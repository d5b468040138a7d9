package progression

// Status of a node from one learner's point of view.
type Status string

const (
	StatusLocked   Status = "locked"
	StatusUnlocked Status = "unlocked"
	StatusPassed   Status = "passed"
)

// Evaluation is the result of running the unlock rules for one learner
// over one subject tree. It is a pure value: compute it once per request
// and read it as often as needed.
type Evaluation struct {
	tree     *Tree
	statuses map[string]Status
	passed   map[string]bool

	passedCount int
	totalCount  int
}

// Evaluate derives the status of every node in the tree from the learner's
// completion bitmap. Two passes: a post-order pass decides which nodes
// count as passed (a lesson when its bit is set, a container when every
// lesson beneath it is passed — vacuously for empty containers), then a
// pre-order pass applies the access rules. The root is always accessible.
// A locked parent locks every descendant outright. A sequential parent
// unlocks a child only once all earlier siblings are passed; a parallel
// parent unlocks all children. A passed node stays passed unless an
// ancestor locks it.
func Evaluate(t *Tree, bm Bitmap) *Evaluation {
	ev := &Evaluation{
		tree:     t,
		statuses: make(map[string]Status, len(t.lessons)*2),
		passed:   make(map[string]bool, len(t.lessons)*2),
	}
	ev.completionPass(t.Root, bm)
	ev.unlockPass(t.Root, false)
	return ev
}

func (ev *Evaluation) completionPass(n *Node, bm Bitmap) bool {
	if n.Kind == KindLesson {
		done := bm.Check(n.BitPosition)
		ev.passed[n.ID] = done
		ev.totalCount++
		if done {
			ev.passedCount++
		}
		return done
	}
	done := true
	for _, c := range n.Children {
		// Recurse into every child; done must not short-circuit the walk.
		childDone := ev.completionPass(c, bm)
		done = done && childDone
	}
	ev.passed[n.ID] = done
	return done
}

func (ev *Evaluation) unlockPass(n *Node, locked bool) {
	switch {
	case locked:
		ev.statuses[n.ID] = StatusLocked
	case ev.passed[n.ID]:
		ev.statuses[n.ID] = StatusPassed
	default:
		ev.statuses[n.ID] = StatusUnlocked
	}

	childLockedBase := locked
	earlierAllPassed := true
	for _, c := range n.Children {
		childLocked := childLockedBase
		if !childLocked && n.Sequential && !earlierAllPassed {
			childLocked = true
		}
		ev.unlockPass(c, childLocked)
		earlierAllPassed = earlierAllPassed && ev.passed[c.ID]
	}
}

// Status returns the computed status for a node id; untracked ids read as
// locked.
func (ev *Evaluation) Status(id string) Status {
	if st, ok := ev.statuses[id]; ok {
		return st
	}
	return StatusLocked
}

// Passed reports whether the node cleared the completion pass, independent
// of any ancestor lock.
func (ev *Evaluation) Passed(id string) bool {
	return ev.passed[id]
}

// PassedLessons returns how many of the tree's lessons are complete.
func (ev *Evaluation) PassedLessons() int {
	return ev.passedCount
}

// TotalLessons returns the number of lessons the evaluation covered.
func (ev *Evaluation) TotalLessons() int {
	return ev.totalCount
}

// CompletionPercent is passed lessons over total lessons, as a
// percentage. A subject with no lessons has nothing left to do, so it
// reads as fully complete.
func (ev *Evaluation) CompletionPercent() float64 {
	if ev.totalCount == 0 {
		return 100
	}
	return float64(ev.passedCount) / float64(ev.totalCount) * 100
}

// NextLessonID suggests the first lesson, in stable pre-order, the learner
// can act on right now: unlocked but not yet passed. The second return is
// false when every reachable lesson is already passed or locked.
func (ev *Evaluation) NextLessonID() (string, bool) {
	var id string
	ev.tree.WalkPreOrder(func(n *Node) bool {
		if n.Kind == KindLesson && ev.statuses[n.ID] == StatusUnlocked {
			id = n.ID
			return false
		}
		return true
	})
	return id, id != ""
}

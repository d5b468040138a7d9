package progression

import (
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
)

// Node kinds as they appear in structure documents and progress views.
const (
	KindSubject   = "subject"
	KindContainer = "container"
	KindLesson    = "lesson"
)

// Node is one element of a subject's content hierarchy. Lessons are the
// leaves, addressed by their permanently assigned BitPosition; every other
// node is a container whose Sequential flag gates how its children unlock.
type Node struct {
	ID          string
	Title       string
	Kind        string
	Sequential  bool
	SortOrder   int
	BitPosition int
	Children    []*Node
}

// Tree is the parsed, immutable structure of one subject. Children are
// sorted by (SortOrder, ID) at parse time, so walking a tree is always the
// stable pre-order the unlock rules are defined over.
type Tree struct {
	Root    *Node
	lessons map[string]*Node
	maxBit  int
}

type rawNode struct {
	ID          string    `json:"id"`
	Title       string    `json:"title,omitempty"`
	Type        string    `json:"type,omitempty"`
	Sequential  *bool     `json:"sequential,omitempty"`
	SortOrder   int       `json:"sortOrder"`
	BitPosition *int      `json:"bitPosition,omitempty"`
	Children    []rawNode `json:"children,omitempty"`
}

// ParseTree decodes a published structure document. Subtrees that are
// malformed — blank ids, lessons without an assigned bit position — are
// excluded from the tree entirely rather than surfaced as locked nodes;
// their ids come back in the second return so callers can log them.
// Duplicate ids or duplicate bit positions reject the whole document.
func ParseTree(doc []byte) (*Tree, []string, error) {
	var root rawNode
	if err := sonic.Unmarshal(doc, &root); err != nil {
		return nil, nil, fmt.Errorf("parse structure document: %w", err)
	}
	if root.ID == "" {
		return nil, nil, fmt.Errorf("structure document has no root id")
	}
	if isLessonNode(root) {
		return nil, nil, fmt.Errorf("structure root %q is a lesson", root.ID)
	}

	var dropped []string
	rootNode := buildLenient(root, true, &dropped)
	tree, err := newTree(rootNode)
	if err != nil {
		return nil, nil, err
	}
	return tree, dropped, nil
}

// buildLenient converts a raw node, pruning malformed descendants into the
// dropped list. Returns nil when the node itself is unusable.
func buildLenient(rn rawNode, isRoot bool, dropped *[]string) *Node {
	if rn.ID == "" {
		*dropped = append(*dropped, "<missing id>")
		return nil
	}
	if isLessonNode(rn) {
		if rn.BitPosition == nil || len(rn.Children) > 0 {
			*dropped = append(*dropped, rn.ID)
			return nil
		}
		return &Node{
			ID:          rn.ID,
			Title:       rn.Title,
			Kind:        KindLesson,
			SortOrder:   rn.SortOrder,
			BitPosition: *rn.BitPosition,
		}
	}

	n := &Node{
		ID:          rn.ID,
		Title:       rn.Title,
		Kind:        containerKind(isRoot),
		SortOrder:   rn.SortOrder,
		BitPosition: -1,
	}
	if rn.Sequential != nil {
		n.Sequential = *rn.Sequential
	}
	for _, child := range rn.Children {
		if c := buildLenient(child, false, dropped); c != nil {
			n.Children = append(n.Children, c)
		}
	}
	sortChildren(n.Children)
	return n
}

func isLessonNode(rn rawNode) bool {
	if rn.Type == KindLesson {
		return true
	}
	return rn.Type == "" && len(rn.Children) == 0 && rn.BitPosition != nil
}

func containerKind(isRoot bool) string {
	if isRoot {
		return KindSubject
	}
	return KindContainer
}

func sortChildren(children []*Node) {
	sort.SliceStable(children, func(i, j int) bool {
		if children[i].SortOrder != children[j].SortOrder {
			return children[i].SortOrder < children[j].SortOrder
		}
		return children[i].ID < children[j].ID
	})
}

// newTree indexes a built node tree and enforces global uniqueness of node
// ids and lesson bit positions.
func newTree(root *Node) (*Tree, error) {
	t := &Tree{
		Root:    root,
		lessons: map[string]*Node{},
		maxBit:  -1,
	}
	if root == nil {
		return nil, fmt.Errorf("structure has no usable root")
	}

	seenIDs := map[string]bool{}
	seenBits := map[int]string{}
	var index func(n *Node) error
	index = func(n *Node) error {
		if seenIDs[n.ID] {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		seenIDs[n.ID] = true
		if n.Kind == KindLesson {
			if other, ok := seenBits[n.BitPosition]; ok {
				return fmt.Errorf("lessons %q and %q share bit position %d", other, n.ID, n.BitPosition)
			}
			seenBits[n.BitPosition] = n.ID
			t.lessons[n.ID] = n
			if n.BitPosition > t.maxBit {
				t.maxBit = n.BitPosition
			}
		}
		for _, c := range n.Children {
			if err := index(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := index(root); err != nil {
		return nil, err
	}
	return t, nil
}

// Lesson looks a lesson node up by id.
func (t *Tree) Lesson(id string) (*Node, bool) {
	n, ok := t.lessons[id]
	return n, ok
}

// LessonCount returns the number of lessons in the tree.
func (t *Tree) LessonCount() int {
	return len(t.lessons)
}

// MaxBitPosition returns the highest assigned bit position, -1 when the
// subject has no lessons.
func (t *Tree) MaxBitPosition() int {
	return t.maxBit
}

// WalkPreOrder visits every node in stable pre-order. The walk stops early
// when fn returns false; fn's return also decides whether the node's
// children are descended into.
func (t *Tree) WalkPreOrder(fn func(n *Node) bool) {
	var walk func(n *Node) bool
	walk = func(n *Node) bool {
		if !fn(n) {
			return false
		}
		for _, c := range n.Children {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	if t.Root != nil {
		walk(t.Root)
	}
}

// Assignment records a bit position handed out to a new lesson during
// structure publication.
type Assignment struct {
	LessonID    string
	BitPosition int
}

// NormalizedStructure is the outcome of validating an authoring document
// for publication.
type NormalizedStructure struct {
	Canonical   []byte
	Assignments []Assignment
	Tree        *Tree
}

// NormalizeDocument validates an authoring document and produces the
// canonical form that gets published. Bit positions are engine-owned:
// lessons already in the assigned index must arrive without a position or
// with exactly the recorded one; unknown lessons must arrive without one
// and are given fresh slots from alloc — a single contiguous block per
// publication, in canonical pre-order, so positions only ever grow and are
// never reused. Unlike ParseTree, any malformed node rejects the document.
func NormalizeDocument(doc []byte, assigned map[string]int, alloc func(n int) (int, error)) (*NormalizedStructure, error) {
	var root rawNode
	if err := sonic.Unmarshal(doc, &root); err != nil {
		return nil, fmt.Errorf("parse structure document: %w", err)
	}
	if root.ID == "" {
		return nil, fmt.Errorf("structure document has no root id")
	}
	if isLessonNode(root) {
		return nil, fmt.Errorf("structure root %q is a lesson", root.ID)
	}

	rootNode, err := buildStrict(root, true, assigned)
	if err != nil {
		return nil, err
	}

	// Fresh slots are handed out in canonical pre-order so the outcome
	// does not depend on how the author happened to order the document.
	var pending []*Node
	var collect func(n *Node)
	collect = func(n *Node) {
		if n.Kind == KindLesson {
			if n.BitPosition < 0 {
				pending = append(pending, n)
			}
			return
		}
		for _, c := range n.Children {
			collect(c)
		}
	}
	collect(rootNode)

	var assignments []Assignment
	if len(pending) > 0 {
		first, err := alloc(len(pending))
		if err != nil {
			return nil, fmt.Errorf("allocate bit positions: %w", err)
		}
		assignments = make([]Assignment, 0, len(pending))
		for i, n := range pending {
			n.BitPosition = first + i
			assignments = append(assignments, Assignment{LessonID: n.ID, BitPosition: n.BitPosition})
		}
	}

	tree, err := newTree(rootNode)
	if err != nil {
		return nil, err
	}
	canonical, err := sonic.Marshal(toRaw(rootNode))
	if err != nil {
		return nil, fmt.Errorf("encode canonical document: %w", err)
	}
	return &NormalizedStructure{
		Canonical:   canonical,
		Assignments: assignments,
		Tree:        tree,
	}, nil
}

func buildStrict(rn rawNode, isRoot bool, assigned map[string]int) (*Node, error) {
	if rn.ID == "" {
		return nil, fmt.Errorf("node with missing id")
	}
	if isLessonNode(rn) {
		if len(rn.Children) > 0 {
			return nil, fmt.Errorf("lesson %q has children", rn.ID)
		}
		n := &Node{
			ID:          rn.ID,
			Title:       rn.Title,
			Kind:        KindLesson,
			SortOrder:   rn.SortOrder,
			BitPosition: -1,
		}
		known, ok := assigned[rn.ID]
		switch {
		case ok && rn.BitPosition != nil && *rn.BitPosition != known:
			return nil, fmt.Errorf("lesson %q bit position is %d and cannot change to %d", rn.ID, known, *rn.BitPosition)
		case ok:
			n.BitPosition = known
		case rn.BitPosition != nil:
			return nil, fmt.Errorf("lesson %q carries unassigned bit position %d", rn.ID, *rn.BitPosition)
		}
		return n, nil
	}
	if rn.Type != "" && rn.Type != KindContainer && rn.Type != KindSubject {
		return nil, fmt.Errorf("node %q has unknown type %q", rn.ID, rn.Type)
	}

	n := &Node{
		ID:          rn.ID,
		Title:       rn.Title,
		Kind:        containerKind(isRoot),
		SortOrder:   rn.SortOrder,
		BitPosition: -1,
	}
	if rn.Sequential != nil {
		n.Sequential = *rn.Sequential
	}
	for _, child := range rn.Children {
		c, err := buildStrict(child, false, assigned)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, c)
	}
	sortChildren(n.Children)
	return n, nil
}

// toRaw renders a node back into document form. Canonical documents always
// carry explicit types, sequential flags and bit positions.
func toRaw(n *Node) rawNode {
	rn := rawNode{
		ID:        n.ID,
		Title:     n.Title,
		Type:      n.Kind,
		SortOrder: n.SortOrder,
	}
	if n.Kind == KindLesson {
		pos := n.BitPosition
		rn.BitPosition = &pos
		return rn
	}
	seq := n.Sequential
	rn.Sequential = &seq
	rn.Children = make([]rawNode, 0, len(n.Children))
	for _, c := range n.Children {
		rn.Children = append(rn.Children, toRaw(c))
	}
	return rn
}

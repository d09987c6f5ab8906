package classes

import (
	"errors"
	"fmt"
	"math"
)

// Hierarchy limits. Keys 1-5 pick a child; key 0 goes back up a level.
const (
	MaxBranching = 5
	MaxDepth     = 3
	BackKey      = 0
)

// Node is one entry in the class hierarchy. A node with an ID is a leaf that
// selects that class; any other node groups its Children.
type Node struct {
	Key      int    `yaml:"key" json:"key"`
	Label    string `yaml:"label" json:"label"`
	ID       *int   `yaml:"id,omitempty" json:"id,omitempty"`
	Children []Node `yaml:"children,omitempty" json:"children,omitempty"`
}

// IsLeaf reports whether selecting the node picks a class.
func (n Node) IsLeaf() bool { return n.ID != nil }

// Depth returns the number of levels in the tree, 0 for an empty tree.
func Depth(nodes []Node) int {
	if len(nodes) == 0 {
		return 0
	}
	depth := 1
	for _, n := range nodes {
		if len(n.Children) > 0 {
			depth = max(depth, Depth(n.Children)+1)
		}
	}
	return depth
}

// Validate checks every level has at most MaxBranching nodes keyed 1-5 and
// the tree is no deeper than MaxDepth.
func Validate(nodes []Node) error {
	if err := validateLevel(nodes, 1); err != nil {
		return err
	}
	if d := Depth(nodes); d > MaxDepth {
		return fmt.Errorf("hierarchy depth is %d, max %d allowed", d, MaxDepth)
	}
	return nil
}

func validateLevel(nodes []Node, level int) error {
	if len(nodes) > MaxBranching {
		return fmt.Errorf("level %d has %d nodes, max %d allowed", level, len(nodes), MaxBranching)
	}
	for _, n := range nodes {
		if n.Key < 1 || n.Key > MaxBranching {
			return fmt.Errorf("invalid key %d at level %d, must be 1-%d", n.Key, level, MaxBranching)
		}
		if len(n.Children) > 0 {
			if err := validateLevel(n.Children, level+1); err != nil {
				return err
			}
		}
	}
	return nil
}

// CountLeaves returns the number of selectable classes in the tree.
func CountLeaves(nodes []Node) int {
	count := 0
	for _, n := range nodes {
		if n.IsLeaf() {
			count++
		}
		count += CountLeaves(n.Children)
	}
	return count
}

// RequiredDepth returns the hierarchy depth needed to reach classCount
// classes with five keys per level.
func RequiredDepth(classCount int) (int, error) {
	switch {
	case classCount <= 0:
		return 0, errors.New("no classes defined")
	case classCount <= 5:
		return 1, nil
	case classCount <= 25:
		return 2, nil
	case classCount <= 125:
		return 3, nil
	default:
		return 0, fmt.Errorf("too many classes (%d), max 125 supported", classCount)
	}
}

// BuildHierarchy groups classes, in order, into the shallowest tree that
// reaches all of them. Group labels name the first and last class inside.
func BuildHierarchy(classes []Class) ([]Node, error) {
	depth, err := RequiredDepth(len(classes))
	if err != nil {
		return nil, err
	}
	return buildLevel(classes, depth), nil
}

func buildLevel(classes []Class, depth int) []Node {
	if depth == 1 {
		nodes := make([]Node, len(classes))
		for i, cl := range classes {
			id := cl.ID
			nodes[i] = Node{Key: i + 1, Label: cl.Name, ID: &id}
		}
		return nodes
	}
	chunk := int(math.Pow(MaxBranching, float64(depth-1)))
	var nodes []Node
	for start := 0; start < len(classes); start += chunk {
		end := min(start+chunk, len(classes))
		group := classes[start:end]
		label := group[0].Name
		if len(group) > 1 {
			label = fmt.Sprintf("%s - %s", group[0].Name, group[len(group)-1].Name)
		}
		nodes = append(nodes, Node{
			Key:      len(nodes) + 1,
			Label:    label,
			Children: buildLevel(group, depth-1),
		})
	}
	return nodes
}

// Navigator walks a class hierarchy one key at a time.
//
// The tree is immutable; the only state is the path of keys pressed since the
// last reset.
type Navigator struct {
	tree     []Node
	path     []int
	maxDepth int
}

// NewNavigator returns a navigator positioned at the root of tree.
func NewNavigator(tree []Node) *Navigator {
	return &Navigator{tree: tree, maxDepth: Depth(tree)}
}

// IsHierarchical reports whether there is a tree to navigate.
func (n *Navigator) IsHierarchical() bool { return len(n.tree) > 0 }

// MaxDepth returns the depth of the tree.
func (n *Navigator) MaxDepth() int { return n.maxDepth }

// CurrentDepth returns how many levels below the root the cursor is.
func (n *Navigator) CurrentDepth() int { return len(n.path) }

// AtRoot reports whether no keys have been pressed since the last reset.
func (n *Navigator) AtRoot() bool { return len(n.path) == 0 }

// Press handles a number key: BackKey moves up a level, 1-5 moves down.
func (n *Navigator) Press(key int) (classID int, selected bool) {
	if key == BackKey {
		n.NavigateUp()
		return 0, false
	}
	return n.NavigateDown(key)
}

// NavigateDown descends into the child bound to key. Reaching a leaf returns
// its class id and resets the cursor to the root. An unbound key is ignored.
func (n *Navigator) NavigateDown(key int) (classID int, selected bool) {
	if key < 1 || key > MaxBranching {
		return 0, false
	}
	for _, node := range n.Options() {
		if node.Key != key {
			continue
		}
		if node.IsLeaf() {
			n.Reset()
			return *node.ID, true
		}
		n.path = append(n.path, key)
		return 0, false
	}
	return 0, false
}

// NavigateUp moves one level toward the root. It does nothing at the root.
func (n *Navigator) NavigateUp() {
	if len(n.path) > 0 {
		n.path = n.path[:len(n.path)-1]
	}
}

// Reset returns the cursor to the root.
func (n *Navigator) Reset() { n.path = n.path[:0] }

// Options returns the nodes selectable at the current level.
func (n *Navigator) Options() []Node {
	level := n.tree
	for _, key := range n.path {
		next, ok := childByKey(level, key)
		if !ok {
			return nil
		}
		level = next.Children
	}
	return level
}

// Breadcrumb returns the labels of the groups entered so far.
func (n *Navigator) Breadcrumb() []string {
	crumbs := make([]string, 0, len(n.path))
	level := n.tree
	for _, key := range n.path {
		next, ok := childByKey(level, key)
		if !ok {
			break
		}
		crumbs = append(crumbs, next.Label)
		level = next.Children
	}
	return crumbs
}

// Prompt describes what the next key press selects.
func (n *Navigator) Prompt() string {
	switch {
	case n.AtRoot():
		return "Select category (1-5)"
	case n.CurrentDepth() < n.maxDepth-1:
		return "Select subcategory (1-5)"
	default:
		return "Select class (1-5)"
	}
}

func childByKey(nodes []Node, key int) (Node, bool) {
	for _, node := range nodes {
		if node.Key == key {
			return node, true
		}
	}
	return Node{}, false
}

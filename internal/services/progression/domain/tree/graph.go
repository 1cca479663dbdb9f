package tree

import (
	"fmt"
	"sort"

	apperrors "github.com/evergrind/evergrind/internal/platform/errors"
)

// Graph is the static allocation graph: nodes indexed by code plus an
// adjacency index built once from the edge list. Cycles and cross-branch
// hybrid edges are allowed, so adjacency is a flat neighbor set, never a
// parent/child hierarchy.
type Graph struct {
	nodes     map[string]Node
	order     []string
	edges     []Edge
	adjacency map[string]map[string]struct{}
	origin    string
}

// NewGraph validates the content and builds the adjacency index.
//
// Rules: node codes unique, exactly one origin node with zero cost, edges
// reference known distinct nodes, prerequisites reference known nodes, all
// effects well-formed, node costs non-negative.
func NewGraph(nodes []Node, edges []Edge) (*Graph, error) {
	g := &Graph{
		nodes:     make(map[string]Node, len(nodes)),
		order:     make([]string, 0, len(nodes)),
		adjacency: make(map[string]map[string]struct{}, len(nodes)),
	}

	for _, node := range nodes {
		if node.Code == "" {
			return nil, fmt.Errorf("node code is required")
		}
		if _, dup := g.nodes[node.Code]; dup {
			return nil, fmt.Errorf("duplicate node code %q", node.Code)
		}
		if !ValidNodeType(node.Type) {
			return nil, fmt.Errorf("node %s: unknown type %q", node.Code, node.Type)
		}
		if node.RequiredPoints < 0 {
			return nil, fmt.Errorf("node %s: required points must be non-negative", node.Code)
		}
		if node.Type == NodeOrigin {
			if g.origin != "" {
				return nil, fmt.Errorf("multiple origin nodes: %s and %s", g.origin, node.Code)
			}
			if node.RequiredPoints != 0 {
				return nil, fmt.Errorf("origin node %s must cost zero points", node.Code)
			}
			g.origin = node.Code
		}
		for _, effect := range node.Effects {
			if err := effect.Validate(); err != nil {
				return nil, fmt.Errorf("node %s: %w", node.Code, err)
			}
		}
		g.nodes[node.Code] = node
		g.order = append(g.order, node.Code)
		g.adjacency[node.Code] = make(map[string]struct{})
	}

	if g.origin == "" {
		return nil, fmt.Errorf("graph requires an origin node")
	}

	for _, node := range nodes {
		for _, prereq := range node.Prerequisites {
			if _, ok := g.nodes[prereq]; !ok {
				return nil, fmt.Errorf("node %s: unknown prerequisite %q", node.Code, prereq)
			}
			if prereq == node.Code {
				return nil, fmt.Errorf("node %s: cannot require itself", node.Code)
			}
		}
	}

	for _, edge := range edges {
		if edge.A == edge.B {
			return nil, fmt.Errorf("edge %s-%s: self edges are not allowed", edge.A, edge.B)
		}
		if _, ok := g.nodes[edge.A]; !ok {
			return nil, fmt.Errorf("edge %s-%s: unknown node %q", edge.A, edge.B, edge.A)
		}
		if _, ok := g.nodes[edge.B]; !ok {
			return nil, fmt.Errorf("edge %s-%s: unknown node %q", edge.A, edge.B, edge.B)
		}
		g.adjacency[edge.A][edge.B] = struct{}{}
		g.adjacency[edge.B][edge.A] = struct{}{}
		g.edges = append(g.edges, edge)
	}

	return g, nil
}

// Node returns a node by code.
func (g *Graph) Node(code string) (Node, bool) {
	node, ok := g.nodes[code]
	return node, ok
}

// Origin returns the origin node.
func (g *Graph) Origin() Node {
	return g.nodes[g.origin]
}

// Nodes returns all nodes in content order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, 0, len(g.order))
	for _, code := range g.order {
		nodes = append(nodes, g.nodes[code])
	}
	return nodes
}

// Edges returns all edges in content order.
func (g *Graph) Edges() []Edge {
	return append([]Edge(nil), g.edges...)
}

// Neighbors returns the codes directly adjacent to code, sorted.
func (g *Graph) Neighbors(code string) []string {
	set := g.adjacency[code]
	neighbors := make([]string, 0, len(set))
	for neighbor := range set {
		neighbors = append(neighbors, neighbor)
	}
	sort.Strings(neighbors)
	return neighbors
}

// ValidateAllocation checks every allocation rule for nodeCode against the
// character's allocated set and remaining point budget. It returns the first
// failing rule as a coded domain error and mutates nothing.
//
// The reachability rule is deliberately single-hop adjacency to an already
// allocated node (the origin is always allocated), not a path search.
func (g *Graph) ValidateAllocation(nodeCode string, allocated map[string]bool, pointsRemaining int) error {
	node, ok := g.nodes[nodeCode]
	if !ok {
		return apperrors.WithMetadata(apperrors.CodeNotFound, fmt.Sprintf("node %s is not in the tree", nodeCode),
			map[string]string{"node": nodeCode})
	}
	if allocated[nodeCode] {
		return apperrors.WithMetadata(apperrors.CodeAlreadyAllocated, fmt.Sprintf("node %s is already allocated", nodeCode),
			map[string]string{"node": nodeCode})
	}
	if node.RequiredPoints > pointsRemaining {
		return apperrors.WithMetadata(apperrors.CodeInsufficientPoints,
			fmt.Sprintf("node %s costs %d points, %d remaining", nodeCode, node.RequiredPoints, pointsRemaining),
			map[string]string{
				"node":      nodeCode,
				"required":  fmt.Sprintf("%d", node.RequiredPoints),
				"remaining": fmt.Sprintf("%d", pointsRemaining),
			})
	}
	if node.Type != NodeOrigin && !g.adjacentToAllocated(nodeCode, allocated) {
		return apperrors.WithMetadata(apperrors.CodeNodeUnreachable,
			fmt.Sprintf("node %s is not adjacent to any allocated node", nodeCode),
			map[string]string{"node": nodeCode})
	}
	for _, prereq := range node.Prerequisites {
		if !allocated[prereq] {
			return apperrors.WithMetadata(apperrors.CodePrerequisiteNotMet,
				fmt.Sprintf("node %s requires %s to be allocated", nodeCode, prereq),
				map[string]string{"node": nodeCode, "prerequisite": prereq})
		}
	}
	return nil
}

func (g *Graph) adjacentToAllocated(code string, allocated map[string]bool) bool {
	for neighbor := range g.adjacency[code] {
		if allocated[neighbor] {
			return true
		}
	}
	return false
}

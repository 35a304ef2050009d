// Package graph derives the topology views the executor needs from a
// workflow's source-indexed connections: the destination-indexed inverse,
// parent/child (ancestor/descendant) traversal, and start-node selection
// for both full-graph and destination-pruned runs.
package graph

import (
	"strings"

	"github.com/relayforge/flowengine/pkg/models"
)

// AllConnectionTypes is the traversal wildcard meaning "union over every
// connection type", not just "main".
const AllConnectionTypes = "ALL"

// SourceRef is a destination-index entry: the reversed view of a
// Connection, naming where an incoming connection came from.
type SourceRef struct {
	SourceNode      string
	ConnectionType  string
	SourcePortIndex int
}

// ConnectionsByDestination maps a destination node to, per connection type,
// an ordered-by-destination-port list of incoming SourceRefs.
type ConnectionsByDestination map[string]map[string][][]*SourceRef

// TriggerClassifier reports whether a node's NodeType capability record
// marks it as a trigger. It exists so this package can classify trigger
// nodes without importing the node-type dispatcher (which itself depends
// on models, not graph) — avoiding an import cycle.
type TriggerClassifier interface {
	IsTrigger(node *models.Node) bool
}

// BuildDestinationIndex derives the destination-indexed view of a
// workflow's connections from its source-indexed one. It always computes
// the full index from ConnectionsBySource in a single pass; callers should
// not attempt to patch it incrementally.
func BuildDestinationIndex(wf *models.Workflow) ConnectionsByDestination {
	index := make(ConnectionsByDestination)

	for sourceNode, byType := range wf.ConnectionsBySource {
		for connType, ports := range byType {
			for sourcePort, conns := range ports {
				for _, conn := range conns {
					if index[conn.DestNode] == nil {
						index[conn.DestNode] = make(map[string][][]*SourceRef)
					}
					destPorts := index[conn.DestNode][connType]
					for len(destPorts) <= conn.DestPortIndex {
						destPorts = append(destPorts, nil)
					}
					destPorts[conn.DestPortIndex] = append(destPorts[conn.DestPortIndex], &SourceRef{
						SourceNode:      sourceNode,
						ConnectionType:  connType,
						SourcePortIndex: sourcePort,
					})
					index[conn.DestNode][connType] = destPorts
				}
			}
		}
	}

	return index
}

// IsTrigger reports whether a node is a trigger: its type name contains
// "trigger" (case-insensitive), or the dispatcher's capability record says
// so. classifier may be nil, in which case only the substring rule applies.
func IsTrigger(node *models.Node, classifier TriggerClassifier) bool {
	if strings.Contains(strings.ToLower(node.Type), "trigger") {
		return true
	}
	return classifier != nil && classifier.IsTrigger(node)
}

// immediateParents returns the distinct source nodes with an incoming
// connection of connType (or every type, for AllConnectionTypes) into name.
func immediateParents(destIndex ConnectionsByDestination, name, connType string) []string {
	byType, ok := destIndex[name]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(refs []*SourceRef) {
		for _, ref := range refs {
			if !seen[ref.SourceNode] {
				seen[ref.SourceNode] = true
				out = append(out, ref.SourceNode)
			}
		}
	}

	if connType == AllConnectionTypes {
		for _, ports := range byType {
			for _, refs := range ports {
				add(refs)
			}
		}
	} else {
		for _, refs := range byType[connType] {
			add(refs)
		}
	}

	return out
}

// immediateChildren returns the distinct destination nodes reachable from
// name via a connection of connType (or every type).
func immediateChildren(wf *models.Workflow, name, connType string) []string {
	byType, ok := wf.ConnectionsBySource[name]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	add := func(ports [][]*models.Connection) {
		for _, conns := range ports {
			for _, conn := range conns {
				if !seen[conn.DestNode] {
					seen[conn.DestNode] = true
					out = append(out, conn.DestNode)
				}
			}
		}
	}

	if connType == AllConnectionTypes {
		for _, ports := range byType {
			add(ports)
		}
	} else {
		add(byType[connType])
	}

	return out
}

// ParentsDFS returns every ancestor of name reachable via connType,
// traversed depth-first. The origin node is never included, the traversal
// is cycle-safe via a visited set, and AllConnectionTypes unions every
// connection type.
func ParentsDFS(destIndex ConnectionsByDestination, name, connType string) []string {
	visited := map[string]bool{name: true}
	var order []string

	var walk func(string)
	walk = func(node string) {
		for _, parent := range immediateParents(destIndex, node, connType) {
			if visited[parent] {
				continue
			}
			visited[parent] = true
			order = append(order, parent)
			walk(parent)
		}
	}
	walk(name)

	return order
}

// ParentsBFS is ParentsDFS's breadth-first sibling: same result set,
// different discovery order.
func ParentsBFS(destIndex ConnectionsByDestination, name, connType string) []string {
	visited := map[string]bool{name: true}
	queue := []string{name}
	var order []string

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, parent := range immediateParents(destIndex, node, connType) {
			if visited[parent] {
				continue
			}
			visited[parent] = true
			order = append(order, parent)
			queue = append(queue, parent)
		}
	}

	return order
}

// ChildrenDFS returns every descendant of name reachable via connType,
// traversed depth-first, under the same rules as ParentsDFS.
func ChildrenDFS(wf *models.Workflow, name, connType string) []string {
	visited := map[string]bool{name: true}
	var order []string

	var walk func(string)
	walk = func(node string) {
		for _, child := range immediateChildren(wf, node, connType) {
			if visited[child] {
				continue
			}
			visited[child] = true
			order = append(order, child)
			walk(child)
		}
	}
	walk(name)

	return order
}

// ChildrenBFS is ChildrenDFS's breadth-first sibling.
func ChildrenBFS(wf *models.Workflow, name, connType string) []string {
	visited := map[string]bool{name: true}
	queue := []string{name}
	var order []string

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, child := range immediateChildren(wf, node, connType) {
			if visited[child] {
				continue
			}
			visited[child] = true
			order = append(order, child)
			queue = append(queue, child)
		}
	}

	return order
}

// SelectStartNodes computes the full-graph start set: every enabled
// trigger node, unioned with every enabled node that has no incoming
// "main" connection.
func SelectStartNodes(wf *models.Workflow, destIndex ConnectionsByDestination, classifier TriggerClassifier) []string {
	seen := make(map[string]bool)
	var starts []string

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			starts = append(starts, name)
		}
	}

	for name, node := range wf.Nodes {
		if node.Disabled {
			continue
		}
		if IsTrigger(node, classifier) {
			add(name)
			continue
		}
		if len(immediateParents(destIndex, name, models.MainConnectionType)) == 0 {
			add(name)
		}
	}

	return starts
}

// Subgraph computes the destination-pruned node set for sub-graph mode:
// every ancestor of destinationNode plus destinationNode itself.
func Subgraph(destIndex ConnectionsByDestination, destinationNode string) map[string]bool {
	sub := map[string]bool{destinationNode: true}
	for _, ancestor := range ParentsDFS(destIndex, destinationNode, AllConnectionTypes) {
		sub[ancestor] = true
	}
	return sub
}

// SelectStartNodesIn computes the start set within a pruned sub-graph:
// enabled triggers in the sub-graph, unioned with enabled sub-graph nodes
// that have no incoming "main" connection *from another node within the
// sub-graph*.
func SelectStartNodesIn(wf *models.Workflow, destIndex ConnectionsByDestination, subgraph map[string]bool, classifier TriggerClassifier) []string {
	seen := make(map[string]bool)
	var starts []string

	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			starts = append(starts, name)
		}
	}

	for name := range subgraph {
		node, ok := wf.Nodes[name]
		if !ok || node.Disabled {
			continue
		}
		if IsTrigger(node, classifier) {
			add(name)
			continue
		}

		hasParentInSubgraph := false
		for _, parent := range immediateParents(destIndex, name, models.MainConnectionType) {
			if subgraph[parent] {
				hasParentInSubgraph = true
				break
			}
		}
		if !hasParentInSubgraph {
			add(name)
		}
	}

	return starts
}

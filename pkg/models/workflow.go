package models

import (
	"encoding/json"
	"fmt"
)

// Node is a single step in a workflow graph. TypeVersion lets a host
// evolve a node type's parameter shape without breaking workflows that
// still reference the older version.
type Node struct {
	Name        string                 `json:"name"`
	Type        string                 `json:"type"`
	TypeVersion int                    `json:"type_version"`
	Parameters  map[string]interface{} `json:"parameters"`
	Disabled    bool                   `json:"disabled,omitempty"`
}

// Validate validates the node structure.
func (n *Node) Validate() error {
	if n.Name == "" {
		return &ValidationError{Field: "name", Message: "node name is required"}
	}
	if n.Type == "" {
		return &ValidationError{Field: "type", Message: "node type is required"}
	}
	return nil
}

// Connection is the source-side record of a directed edge: it lives under
// the source node's per-connection-type, per-source-port bucket and names
// the destination node, the destination's input port, and the connection
// type ("main" for ordinary data flow, anything else for side channels such
// as an error output).
type Connection struct {
	DestNode        string `json:"dest_node"`
	DestPortIndex   int    `json:"dest_port_index"`
	ConnectionType  string `json:"connection_type"`
	SourcePortIndex int    `json:"source_port_index"`
}

// Validate validates the connection structure.
func (c *Connection) Validate() error {
	if c.DestNode == "" {
		return &ValidationError{Field: "dest_node", Message: "destination node is required"}
	}
	if c.ConnectionType == "" {
		return &ValidationError{Field: "connection_type", Message: "connection type is required"}
	}
	if c.DestPortIndex < 0 {
		return &ValidationError{Field: "dest_port_index", Message: "must be >= 0"}
	}
	return nil
}

// MainConnectionType is the default connection type used for ordinary data
// flow between nodes, as opposed to side channels like an error output.
const MainConnectionType = "main"

// Workflow is a complete workflow definition: its nodes and the directed
// connections between their ports, indexed both by source and by
// destination. ConnectionsByDestination is not filled in by this package or
// by pkg/graph: graph.BuildDestinationIndex derives the destination-indexed
// view from ConnectionsBySource in one pass and returns it as a separate
// value.
type Workflow struct {
	ID                       string                                `json:"id"`
	Name                     string                                `json:"name"`
	Nodes                    map[string]*Node                      `json:"nodes"`
	ConnectionsBySource      map[string]map[string][][]*Connection `json:"connections"`
	ConnectionsByDestination map[string]map[string][][]*Connection `json:"-"`
	Active                   bool                                  `json:"active"`
	StaticData               map[string]interface{}                `json:"static_data,omitempty"`
	Settings                 map[string]interface{}                `json:"settings,omitempty"`
}

// NewWorkflow builds an empty workflow ready for AddNode/AddConnection calls.
func NewWorkflow(id, name string) *Workflow {
	return &Workflow{
		ID:                  id,
		Name:                name,
		Nodes:               make(map[string]*Node),
		ConnectionsBySource: make(map[string]map[string][][]*Connection),
		StaticData:          make(map[string]interface{}),
		Settings:            make(map[string]interface{}),
	}
}

// Validate validates the workflow structure: required fields, at least one
// node, and that every connection references nodes that actually exist.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if len(w.Nodes) == 0 {
		return &ValidationError{Field: "nodes", Message: "at least one node is required"}
	}

	for name, node := range w.Nodes {
		if err := node.Validate(); err != nil {
			return err
		}
		if node.Name != name {
			return &ValidationError{Field: "nodes", Message: fmt.Sprintf("node keyed as %q has Name %q", name, node.Name)}
		}
	}

	for sourceName, byType := range w.ConnectionsBySource {
		if _, ok := w.Nodes[sourceName]; !ok {
			return &ValidationError{Field: "connections", Message: fmt.Sprintf("connection source node does not exist: %s", sourceName)}
		}
		for _, ports := range byType {
			for _, conns := range ports {
				for _, conn := range conns {
					if err := conn.Validate(); err != nil {
						return err
					}
					if _, ok := w.Nodes[conn.DestNode]; !ok {
						return &ValidationError{Field: "connections", Message: fmt.Sprintf("connection destination node does not exist: %s", conn.DestNode)}
					}
				}
			}
		}
	}

	return nil
}

// GetNode returns a node by name.
func (w *Workflow) GetNode(name string) (*Node, error) {
	node, ok := w.Nodes[name]
	if !ok {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

// AddNode adds a node to the workflow, keyed by its Name.
func (w *Workflow) AddNode(node *Node) error {
	if err := node.Validate(); err != nil {
		return err
	}
	if w.Nodes == nil {
		w.Nodes = make(map[string]*Node)
	}
	if _, exists := w.Nodes[node.Name]; exists {
		return &ValidationError{Field: "name", Message: "node name already exists"}
	}
	w.Nodes[node.Name] = node
	return nil
}

// RemoveNode removes a node and every connection that names it as either
// source or destination.
func (w *Workflow) RemoveNode(name string) error {
	if _, ok := w.Nodes[name]; !ok {
		return ErrNodeNotFound
	}
	delete(w.Nodes, name)
	delete(w.ConnectionsBySource, name)

	for sourceName, byType := range w.ConnectionsBySource {
		for connType, ports := range byType {
			for portIdx, conns := range ports {
				filtered := conns[:0]
				for _, conn := range conns {
					if conn.DestNode != name {
						filtered = append(filtered, conn)
					}
				}
				ports[portIdx] = filtered
			}
			w.ConnectionsBySource[sourceName][connType] = ports
		}
	}

	return nil
}

// AddConnection appends a new Connection under sourceNode's bucket for
// connType at sourcePortIndex, growing the per-source-port slice as needed.
// SourcePortIndex on the stored Connection is always set to sourcePortIndex;
// callers never supply it directly.
func (w *Workflow) AddConnection(sourceNode string, sourcePortIndex int, connType, destNode string, destPortIndex int) error {
	if _, ok := w.Nodes[sourceNode]; !ok {
		return &ValidationError{Field: "source_node", Message: "source node does not exist"}
	}
	if _, ok := w.Nodes[destNode]; !ok {
		return &ValidationError{Field: "dest_node", Message: "destination node does not exist"}
	}
	if sourcePortIndex < 0 {
		return &ValidationError{Field: "source_port_index", Message: "must be >= 0"}
	}

	conn := &Connection{
		DestNode:        destNode,
		DestPortIndex:   destPortIndex,
		ConnectionType:  connType,
		SourcePortIndex: sourcePortIndex,
	}
	if err := conn.Validate(); err != nil {
		return err
	}

	if w.ConnectionsBySource == nil {
		w.ConnectionsBySource = make(map[string]map[string][][]*Connection)
	}
	if w.ConnectionsBySource[sourceNode] == nil {
		w.ConnectionsBySource[sourceNode] = make(map[string][][]*Connection)
	}
	ports := w.ConnectionsBySource[sourceNode][connType]
	for len(ports) <= sourcePortIndex {
		ports = append(ports, nil)
	}
	ports[sourcePortIndex] = append(ports[sourcePortIndex], conn)
	w.ConnectionsBySource[sourceNode][connType] = ports

	return nil
}

// Clone creates a deep copy of the workflow via a JSON round-trip.
// ConnectionsByDestination is not serialized and comes back empty;
// graph.BuildDestinationIndex derives the destination view from the clone's
// ConnectionsBySource.
func (w *Workflow) Clone() (*Workflow, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}

	clone := NewWorkflow("", "")
	if err := json.Unmarshal(data, clone); err != nil {
		return nil, err
	}

	return clone, nil
}

package engine

import "github.com/relayforge/flowengine/pkg/models"

// stackEntry is one LIFO work-stack item: a node queued for execution, with
// the combined input it became ready with (or no input, for an
// auto-discovered start node).
type stackEntry struct {
	nodeName string
	input    []models.Item
}

// runState is the executor's mutable, single-run bookkeeping: run_data,
// waiting_data and input_requirements from spec §3/§4.5. It is scoped to one
// Execute call and never shared across runs.
type runState struct {
	runData           map[string][]*models.NodeResult
	waitingData       map[string]map[int][]models.Item
	inputRequirements map[string]int
	stack             []stackEntry
}

func newRunState(wf *models.Workflow) *runState {
	return &runState{
		runData:           make(map[string][]*models.NodeResult),
		waitingData:       make(map[string]map[int][]models.Item),
		inputRequirements: computeInputRequirements(wf),
	}
}

// computeInputRequirements counts, per destination node, the number of
// distinct destination port indices appearing across its incoming "main"
// connections — not the number of incoming edges (fan-in to the same port
// counts once).
func computeInputRequirements(wf *models.Workflow) map[string]int {
	ports := make(map[string]map[int]bool)

	for _, byType := range wf.ConnectionsBySource {
		conns, ok := byType[models.MainConnectionType]
		if !ok {
			continue
		}
		for _, portConns := range conns {
			for _, conn := range portConns {
				if ports[conn.DestNode] == nil {
					ports[conn.DestNode] = make(map[int]bool)
				}
				ports[conn.DestNode][conn.DestPortIndex] = true
			}
		}
	}

	requirements := make(map[string]int, len(ports))
	for node, set := range ports {
		requirements[node] = len(set)
	}
	return requirements
}

func (s *runState) push(nodeName string, input []models.Item) {
	s.stack = append(s.stack, stackEntry{nodeName: nodeName, input: input})
}

func (s *runState) pop() (stackEntry, bool) {
	if len(s.stack) == 0 {
		return stackEntry{}, false
	}
	last := len(s.stack) - 1
	entry := s.stack[last]
	s.stack = s.stack[:last]
	return entry, true
}

// extend appends items to waitingData[node][port], marking the port as
// received even when items is empty — an explicit empty port still
// participates in readiness (spec §9, empty-produced-port open question).
func (s *runState) extend(node string, port int, items []models.Item) {
	if s.waitingData[node] == nil {
		s.waitingData[node] = make(map[int][]models.Item)
	}
	buf, received := s.waitingData[node][port]
	if !received {
		buf = []models.Item{}
	}
	s.waitingData[node][port] = append(buf, items...)
}

// ready reports whether node has received at least one (possibly empty)
// delivery on every port in [0, requirement).
func (s *runState) ready(node string, requirement int) bool {
	ports := s.waitingData[node]
	if ports == nil {
		return requirement == 0
	}
	for p := 0; p < requirement; p++ {
		if _, ok := ports[p]; !ok {
			return false
		}
	}
	return true
}

// consume removes and flattens node's waiting buffer in ascending port
// order, atomically, so the same delivery can never ready the node twice.
func (s *runState) consume(node string, requirement int) []models.Item {
	ports := s.waitingData[node]
	delete(s.waitingData, node)

	combined := []models.Item{}
	for p := 0; p < requirement; p++ {
		combined = append(combined, ports[p]...)
	}
	return combined
}

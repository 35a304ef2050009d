// Package nodetype maps a workflow Node to its NodeType capability record:
// whether it is executable, whether it is a trigger, and the function that
// produces its NodeResult. Built-in logics cover the handful of generic
// shapes the engine itself understands (passthrough, producer, switch,
// condition, sub-workflow invocation); a host registers its own NodeType
// for any concrete type string it wants to execute differently.
package nodetype

import (
	"context"
	"strings"
	"sync"

	"github.com/relayforge/flowengine/pkg/models"
)

// NodeType is the capability record the executor dispatches through.
type NodeType struct {
	Name          string
	CanExecute    bool
	IsTriggerFlag bool
	Execute       func(ctx context.Context, nctx models.NodeExecutionContext) (*models.NodeResult, error)
}

// SubWorkflowRunner runs a child workflow to completion and returns its
// RunReport. engine.Executor supplies the concrete implementation; this
// package only depends on the function shape, not on pkg/engine, so there
// is no import cycle between the dispatcher and the scheduler that uses it.
type SubWorkflowRunner func(ctx context.Context, wf *models.Workflow, mode string, globalConfig map[string]interface{}) (*models.RunReport, error)

// Dispatcher maps Nodes to NodeTypes. Custom exact-match registrations are
// checked first; anything unregistered falls through to the five ordered
// substring rules and finally the generic passthrough default.
type Dispatcher struct {
	mu       sync.RWMutex
	custom   map[string]NodeType
	subWF    SubWorkflowRunner
}

// NewDispatcher builds a Dispatcher. runner may be nil if the host never
// uses "executeSubWorkflow" nodes; invoking one without a runner configured
// yields a NodeResult with no data, per the "if absent, emit empty" rule.
func NewDispatcher(runner SubWorkflowRunner) *Dispatcher {
	return &Dispatcher{
		custom: make(map[string]NodeType),
		subWF:  runner,
	}
}

// Register adds or replaces a custom NodeType for an exact type string,
// checked before the built-in substring rules.
func (d *Dispatcher) Register(typeName string, nt NodeType) error {
	if typeName == "" {
		return models.ErrInvalidNodeType
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.custom[typeName] = nt
	return nil
}

// Unregister removes a custom NodeType registration.
func (d *Dispatcher) Unregister(typeName string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.custom, typeName)
}

// Has reports whether a custom NodeType is registered for typeName.
func (d *Dispatcher) Has(typeName string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.custom[typeName]
	return ok
}

// Dispatch maps a Node to its NodeType using the ordered dispatch rule:
// custom exact-match registration first, then producer/switch/trigger/
// condition/sub-workflow substring rules in that order, then the generic
// passthrough fallback.
func (d *Dispatcher) Dispatch(node *models.Node) NodeType {
	d.mu.RLock()
	if nt, ok := d.custom[node.Type]; ok {
		d.mu.RUnlock()
		return nt
	}
	d.mu.RUnlock()

	lowered := strings.ToLower(node.Type)
	switch {
	case strings.Contains(lowered, "producer"):
		return producerNodeType(node.Name)
	case strings.Contains(lowered, "switch"):
		return switchNodeType(node.Name)
	case strings.Contains(lowered, "trigger"):
		return triggerNodeType(node.Name)
	case strings.Contains(lowered, "condition"):
		return conditionNodeType(node.Name)
	case strings.Contains(lowered, "executesubworkflow"):
		return subWorkflowNodeType(node.Name, d.subWF)
	default:
		return passthroughNodeType(node.Name)
	}
}

// IsTrigger satisfies graph.TriggerClassifier: a node is a trigger if its
// dispatched NodeType says so.
func (d *Dispatcher) IsTrigger(node *models.Node) bool {
	return d.Dispatch(node).IsTriggerFlag
}

func copyItem(item models.Item) models.Item {
	out := make(models.Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func taggedCopy(item models.Item, nodeName string) models.Item {
	out := copyItem(item)
	out["processedBy"] = nodeName
	return out
}

// passthroughNodeType copies each input item, tags processedBy, and emits
// everything on port 0. It is both the generic dispatch fallback and the
// behavior "merge"/"noOp" style node types fall back onto — the scheduler,
// not the node logic, performs any fan-in concatenation before a node runs.
func passthroughNodeType(name string) NodeType {
	return NodeType{
		Name:       name,
		CanExecute: true,
		Execute: func(_ context.Context, nctx models.NodeExecutionContext) (*models.NodeResult, error) {
			out := make([]models.Item, 0, len(nctx.InputData))
			for _, item := range nctx.InputData {
				out = append(out, taggedCopy(item, nctx.NodeName))
			}
			return &models.NodeResult{Data: [][]models.Item{out}}, nil
		},
	}
}

// producerNodeType emits a single synthetic item when it has no input,
// otherwise behaves exactly like passthrough.
func producerNodeType(name string) NodeType {
	return NodeType{
		Name:       name,
		CanExecute: true,
		Execute: func(_ context.Context, nctx models.NodeExecutionContext) (*models.NodeResult, error) {
			if len(nctx.InputData) == 0 {
				item := models.Item{
					"source":      "producer",
					"msg":         "Data from " + nctx.NodeName,
					"processedBy": nctx.NodeName,
				}
				return &models.NodeResult{Data: [][]models.Item{{item}}}, nil
			}
			out := make([]models.Item, 0, len(nctx.InputData))
			for _, item := range nctx.InputData {
				out = append(out, taggedCopy(item, nctx.NodeName))
			}
			return &models.NodeResult{Data: [][]models.Item{out}}, nil
		},
	}
}

// switchNodeType routes items by item["category"] == "A" to port 0,
// everything else to port 1, tagging both branch and processedBy.
func switchNodeType(name string) NodeType {
	return NodeType{
		Name:       name,
		CanExecute: true,
		Execute: func(_ context.Context, nctx models.NodeExecutionContext) (*models.NodeResult, error) {
			return branchByPredicate(nctx, name, func(item models.Item) bool {
				category, _ := item["category"].(string)
				return category == "A"
			}), nil
		},
	}
}

// conditionNodeType is switchNodeType keyed on the boolean item["pass"]
// instead of item["category"].
func conditionNodeType(name string) NodeType {
	return NodeType{
		Name:       name,
		CanExecute: true,
		Execute: func(_ context.Context, nctx models.NodeExecutionContext) (*models.NodeResult, error) {
			return branchByPredicate(nctx, name, func(item models.Item) bool {
				pass, _ := item["pass"].(bool)
				return pass
			}), nil
		},
	}
}

func branchByPredicate(nctx models.NodeExecutionContext, nodeName string, truthy func(models.Item) bool) *models.NodeResult {
	var port0, port1 []models.Item
	for _, item := range nctx.InputData {
		tagged := taggedCopy(item, nodeName)
		if truthy(item) {
			tagged["branch"] = "true"
			port0 = append(port0, tagged)
		} else {
			tagged["branch"] = "false"
			port1 = append(port1, tagged)
		}
	}
	return &models.NodeResult{Data: [][]models.Item{port0, port1}}
}

// triggerNodeType is the trigger sentinel: can_execute=false, is_trigger=true.
// The executor handles trigger behavior itself before ever looking at
// Execute (spec.md's "this is handled by the executor, not via execute"),
// but Execute is still provided so the NodeType is never nil-valued.
func triggerNodeType(name string) NodeType {
	return NodeType{
		Name:          name,
		CanExecute:    false,
		IsTriggerFlag: true,
		Execute: func(_ context.Context, nctx models.NodeExecutionContext) (*models.NodeResult, error) {
			return &models.NodeResult{Data: [][]models.Item{nctx.InputData}}, nil
		},
	}
}

// subWorkflowNodeType reads GlobalConfig["subWorkflow"], runs it to
// completion via the injected SubWorkflowRunner, and emits exactly one item
// carrying the child's run data on port 0. A child run's terminal error
// becomes this NodeResult's Error, which the executor treats as terminal
// for the parent run; it is never raised as a Go error from Execute, so the
// node's error policy does not see it.
func subWorkflowNodeType(name string, runner SubWorkflowRunner) NodeType {
	return NodeType{
		Name:       name,
		CanExecute: true,
		Execute: func(ctx context.Context, nctx models.NodeExecutionContext) (*models.NodeResult, error) {
			childWF, ok := nctx.GlobalConfig["subWorkflow"].(*models.Workflow)
			if !ok || childWF == nil || runner == nil {
				return &models.NodeResult{}, nil
			}

			report, err := runner(ctx, childWF, nctx.Mode, nctx.GlobalConfig)
			if err != nil {
				return &models.NodeResult{
					Error: &models.ExecutionError{NodeName: nctx.NodeName, Err: err},
				}, nil
			}
			if report.Error != nil {
				return &models.NodeResult{
					Error: &models.ExecutionError{
						NodeName: nctx.NodeName,
						Err:      models.ErrExecutionFailed,
					},
				}, nil
			}

			item := models.Item{"subRunData": report.RunData}
			return &models.NodeResult{Data: [][]models.Item{{item}}}, nil
		},
	}
}

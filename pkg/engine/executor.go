package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/relayforge/flowengine/internal/config"
	"github.com/relayforge/flowengine/internal/infrastructure/logger"
	"github.com/relayforge/flowengine/pkg/graph"
	"github.com/relayforge/flowengine/pkg/hooks"
	"github.com/relayforge/flowengine/pkg/models"
	"github.com/relayforge/flowengine/pkg/nodetype"
	"github.com/relayforge/flowengine/pkg/policy"
)

// ExecuteParams are the caller-supplied, per-run overrides to Execute. All
// fields are optional; the zero value auto-discovers start nodes over the
// full graph.
type ExecuteParams struct {
	// StartNodeNames, when non-empty, replaces auto-discovery: each is
	// resolved to a Node and pushed directly. Unknown names are skipped.
	StartNodeNames []string

	// DestinationNode, when set, prunes execution to the sub-graph of its
	// ancestors plus itself.
	DestinationNode string

	// StartInputs seeds a named start node's initial input_data. Only
	// consulted when StartNodeNames is used.
	StartInputs map[string][]models.Item
}

// Executor is the workflow scheduler: a LIFO work-stack machine that drains
// ready nodes, dispatches them through the NodeType registry and error
// policy engine, and accumulates run_data keyed by node name.
type Executor struct {
	workflow     *models.Workflow
	mode         string
	globalConfig map[string]interface{}

	dispatcher *nodetype.Dispatcher
	hooks      *hooks.Manager
	logger     *logger.Logger
	cfg        config.EngineConfig
	depth      int
}

// NewExecutor builds an executor for workflow. The sub-workflow NodeType is
// wired to a runner that constructs a fresh child Executor sharing this
// instance's mode, hooks, logger and config, per the spec's re-entrancy
// design note: no executor state is shared across nesting levels.
func NewExecutor(workflow *models.Workflow, opts ...Option) *Executor {
	e := &Executor{
		workflow: workflow,
		mode:     "manual",
		logger:   logger.Default(),
		cfg: config.EngineConfig{
			DefaultMaxRetries:   0,
			WorkflowTimeout:     5 * time.Minute,
			MaxSubWorkflowDepth: 10,
		},
	}
	for _, opt := range opts {
		opt(e)
	}

	var runner nodetype.SubWorkflowRunner = func(ctx context.Context, childWF *models.Workflow, mode string, globalConfig map[string]interface{}) (*models.RunReport, error) {
		if e.depth+1 >= e.cfg.MaxSubWorkflowDepth {
			return nil, fmt.Errorf("sub-workflow nesting exceeds max depth %d", e.cfg.MaxSubWorkflowDepth)
		}
		child := NewExecutor(childWF,
			WithMode(mode),
			WithGlobalConfig(globalConfig),
			WithHooks(e.hooks),
			WithLogger(e.logger),
			WithEngineConfig(e.cfg),
			withDepth(e.depth+1),
		)
		return child.Execute(ctx, ExecuteParams{})
	}
	e.dispatcher = nodetype.NewDispatcher(runner)

	return e
}

// Dispatcher exposes the node-type registry so hosts can register custom
// NodeTypes before calling Execute.
func (e *Executor) Dispatcher() *nodetype.Dispatcher {
	return e.dispatcher
}

// Execute drains the work stack to completion and returns the consolidated
// RunReport. The stack is LIFO: the node made ready most recently runs
// next. Children made ready by the same output port are pushed in no
// defined order. It always returns a non-nil report; the returned error is
// reserved for caller misuse the spec has no report shape for (none at
// present — it is always nil).
func (e *Executor) Execute(ctx context.Context, params ExecuteParams) (*models.RunReport, error) {
	started := time.Now()
	runID := uuid.NewString()
	ctx = logger.ContextWithExecutionID(ctx, runID)
	log := e.logger.WithContext(ctx).With("workflow", e.workflow.Name, "depth", e.depth)

	if e.cfg.WorkflowTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.WorkflowTimeout)
		defer cancel()
	}

	log.InfoContext(ctx, "workflow execution started", "mode", e.mode)

	e.runHook(ctx, hooks.EventWorkflowExecuteBefore, &hooks.WorkflowExecuteBefore{
		Workflow:  e.workflow,
		StartTime: started,
	})

	report := e.run(ctx, started, params, log)

	log.InfoContext(ctx, "workflow execution finished",
		"status", report.Status,
		"executionTime", report.ExecutionTime,
	)

	e.runHook(ctx, hooks.EventWorkflowExecuteAfter, &hooks.WorkflowExecuteAfter{
		Result:  report,
		EndTime: time.Now(),
	})

	return report, nil
}

func (e *Executor) run(ctx context.Context, started time.Time, params ExecuteParams, log *logger.Logger) *models.RunReport {
	st := newRunState(e.workflow)
	destIndex := graph.BuildDestinationIndex(e.workflow)

	var subgraph map[string]bool
	if params.DestinationNode != "" {
		subgraph = graph.Subgraph(destIndex, params.DestinationNode)
	}

	if !e.populateStart(st, destIndex, subgraph, params) {
		log.WarnContext(ctx, "no valid start nodes found")
		return e.finalize(started, models.ExecutionStatusError, st.runData, &models.RunReportError{
			Message: "No valid start nodes found",
		})
	}

	for {
		if err := ctx.Err(); err != nil {
			log.WarnContext(ctx, "workflow execution canceled", "error", err)
			return e.finalize(started, models.ExecutionStatusCanceled, st.runData, &models.RunReportError{
				Message: err.Error(),
			})
		}

		entry, ok := st.pop()
		if !ok {
			break
		}

		if subgraph != nil && !subgraph[entry.nodeName] {
			continue
		}

		node, err := e.workflow.GetNode(entry.nodeName)
		if err != nil {
			continue
		}

		if node.Disabled {
			st.runData[node.Name] = append(st.runData[node.Name], &models.NodeResult{
				Data: [][]models.Item{entry.input},
			})
			continue
		}

		result, reportErr := e.executeOne(ctx, st, node, entry.input, log)
		if reportErr != nil {
			log.ErrorContext(ctx, "node execution failed", "node", node.Name, "error", reportErr.Message)
			return e.finalize(started, models.ExecutionStatusError, st.runData, reportErr)
		}

		st.runData[node.Name] = append(st.runData[node.Name], result)

		if result.Error != nil {
			log.ErrorContext(ctx, "node reported terminal error", "node", node.Name, "error", result.Error)
			return e.finalize(started, models.ExecutionStatusError, st.runData, &models.RunReportError{
				Message:  result.Error.Error(),
				NodeName: node.Name,
			})
		}

		if result.Data != nil {
			e.distribute(st, destIndex, subgraph, node.Name, result.Data)
		}
	}

	return e.finalize(started, models.ExecutionStatusSuccess, st.runData, nil)
}

// executeOne runs the trigger/passthrough/execute procedure for a single
// popped node, firing the before/after hooks around it.
func (e *Executor) executeOne(ctx context.Context, st *runState, node *models.Node, input []models.Item, log *logger.Logger) (*models.NodeResult, *models.RunReportError) {
	e.runHook(ctx, hooks.EventNodeExecuteBefore, &hooks.NodeExecuteBefore{
		Node:      node,
		InputData: input,
		Timestamp: time.Now(),
	})

	nt := e.dispatcher.Dispatch(node)
	result, err := e.runProcedure(ctx, nt, node, input, log)

	e.runHook(ctx, hooks.EventNodeExecuteAfter, &hooks.NodeExecuteAfter{
		Node:      node,
		Result:    result,
		Timestamp: time.Now(),
	})

	if err != nil {
		return nil, &models.RunReportError{Message: err.Error(), NodeName: node.Name}
	}
	return result, nil
}

// runProcedure implements §4.5's "trigger/passthrough/execute procedure":
// trigger sentinels and non-executable types never reach NodeType.Execute;
// only executable types go through the error-policy retry loop.
func (e *Executor) runProcedure(ctx context.Context, nt nodetype.NodeType, node *models.Node, input []models.Item, log *logger.Logger) (*models.NodeResult, error) {
	if nt.IsTriggerFlag {
		if e.mode == "manual" {
			return &models.NodeResult{Data: [][]models.Item{{{"trig": true}}}}, nil
		}
		return &models.NodeResult{Data: [][]models.Item{copyItems(input)}}, nil
	}

	if !nt.CanExecute {
		return &models.NodeResult{Data: [][]models.Item{input}}, nil
	}

	return e.retryingExecute(ctx, nt, node, input, log)
}

func (e *Executor) retryingExecute(ctx context.Context, nt nodetype.NodeType, node *models.Node, input []models.Item, log *logger.Logger) (*models.NodeResult, error) {
	pol, maxRetries, retryDelay, errorOutputIndex := policy.ParseParameters(node.Parameters)
	if node.Parameters == nil || node.Parameters["maxRetries"] == nil {
		maxRetries = e.cfg.DefaultMaxRetries
	}
	if node.Parameters == nil || node.Parameters["retryDelay"] == nil {
		retryDelay = e.cfg.DefaultRetryDelay
	}

	nctx := models.NodeExecutionContext{
		NodeName:     node.Name,
		InputData:    input,
		Mode:         e.mode,
		GlobalConfig: e.globalConfig,
	}

	attempt := 1
	for {
		result, err := nt.Execute(ctx, nctx)
		if err == nil {
			return result, nil
		}

		decision := policy.Decide(pol, attempt, maxRetries, retryDelay, errorOutputIndex, err)
		switch decision.Kind {
		case policy.Retry:
			log.WarnContext(ctx, "node attempt failed, retrying",
				"node", node.Name, "attempt", attempt, "maxRetries", maxRetries, "error", err,
			)
			if decision.Delay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(decision.Delay):
				}
			}
			attempt++
			continue
		case policy.Continue:
			return &models.NodeResult{Data: [][]models.Item{{decision.FallbackItem}}}, nil
		case policy.RouteToErrorOutput:
			ports := make([][]models.Item, decision.Slot+1)
			ports[decision.Slot] = []models.Item{decision.FallbackItem}
			return &models.NodeResult{Data: ports}, nil
		case policy.Stop:
			fallthrough
		default:
			return nil, decision.Err
		}
	}
}

// populateStart fills the work stack per §4.5's population rules, returning
// false when no start node could be resolved.
func (e *Executor) populateStart(st *runState, destIndex graph.ConnectionsByDestination, subgraph map[string]bool, params ExecuteParams) bool {
	if len(params.StartNodeNames) > 0 {
		pushed := false
		for _, name := range params.StartNodeNames {
			node, err := e.workflow.GetNode(name)
			if err != nil {
				continue
			}
			if subgraph != nil && !subgraph[name] {
				continue
			}
			st.push(node.Name, params.StartInputs[name])
			pushed = true
		}
		return pushed
	}

	var starts []string
	if subgraph != nil {
		starts = graph.SelectStartNodesIn(e.workflow, destIndex, subgraph, e.dispatcher)
	} else {
		starts = graph.SelectStartNodes(e.workflow, destIndex, e.dispatcher)
	}

	for _, name := range starts {
		st.push(name, nil)
	}
	return len(starts) > 0
}

// distribute implements §4.5 step 9: fan out a node's produced ports to
// every connected child, extending waiting buffers and pushing newly-ready
// children.
func (e *Executor) distribute(st *runState, destIndex graph.ConnectionsByDestination, subgraph map[string]bool, nodeName string, data [][]models.Item) {
	outs := e.workflow.ConnectionsBySource[nodeName][models.MainConnectionType]

	for port, items := range data {
		if port >= len(outs) {
			continue
		}
		conns := outs[port]

		touched := make(map[string]bool)
		for _, conn := range conns {
			if subgraph != nil && !subgraph[conn.DestNode] {
				continue
			}
			st.extend(conn.DestNode, conn.DestPortIndex, items)
			touched[conn.DestNode] = true
		}

		for child := range touched {
			requirement := st.inputRequirements[child]
			if st.ready(child, requirement) {
				combined := st.consume(child, requirement)
				st.push(child, combined)
			}
		}
	}
}

func (e *Executor) finalize(started time.Time, status models.ExecutionStatus, runData map[string][]*models.NodeResult, reportErr *models.RunReportError) *models.RunReport {
	finished := time.Now()
	return &models.RunReport{
		Status:        status,
		StartedAt:     epochSeconds(started),
		FinishedAt:    epochSeconds(finished),
		ExecutionTime: finished.Sub(started).Seconds(),
		RunData:       runData,
		Error:         reportErr,
	}
}

func (e *Executor) runHook(ctx context.Context, event string, payload interface{}) {
	if e.hooks == nil {
		return
	}
	e.hooks.Run(ctx, event, payload)
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func copyItems(items []models.Item) []models.Item {
	out := make([]models.Item, len(items))
	for i, item := range items {
		cp := make(models.Item, len(item))
		for k, v := range item {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

package hooks

import (
	"time"

	"github.com/relayforge/flowengine/pkg/models"
)

// WorkflowExecuteBefore is the payload for EventWorkflowExecuteBefore.
type WorkflowExecuteBefore struct {
	Workflow  *models.Workflow
	StartTime time.Time
}

// WorkflowExecuteAfter is the payload for EventWorkflowExecuteAfter.
type WorkflowExecuteAfter struct {
	Result  *models.RunReport
	EndTime time.Time
}

// NodeExecuteBefore is the payload for EventNodeExecuteBefore.
type NodeExecuteBefore struct {
	Node      *models.Node
	InputData []models.Item
	Timestamp time.Time
}

// NodeExecuteAfter is the payload for EventNodeExecuteAfter.
type NodeExecuteAfter struct {
	Node      *models.Node
	Result    *models.NodeResult
	Timestamp time.Time
}

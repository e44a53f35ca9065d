// Package workflows hands a finished ingestion off to the downstream
// quiz-generation workflow.
package workflows

import (
	"context"
	"encoding/json"
	"fmt"

	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
)

// Trigger starts the downstream processing for one ingested book.
type Trigger interface {
	Execute(ctx context.Context, bookID string, pageCount int) error
}

// WorkflowTrigger launches a Cloud Workflows execution.
type WorkflowTrigger struct {
	client     *executions.Client
	projectID  string
	location   string
	workflowID string
}

// NewWorkflowTrigger wraps an executions client for one configured workflow.
func NewWorkflowTrigger(client *executions.Client, projectID, location, workflowID string) *WorkflowTrigger {
	return &WorkflowTrigger{
		client:     client,
		projectID:  projectID,
		location:   location,
		workflowID: workflowID,
	}
}

func (t *WorkflowTrigger) Execute(ctx context.Context, bookID string, pageCount int) error {
	payload, err := json.Marshal(map[string]interface{}{
		"bookId":    bookID,
		"pageCount": pageCount,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal workflow payload: %w", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", t.projectID, t.location, t.workflowID),
		Execution: &executionspb.Execution{
			Argument: string(payload),
		},
	}
	if _, err := t.client.CreateExecution(ctx, req); err != nil {
		return fmt.Errorf("failed to trigger workflow execution: %w", err)
	}
	return nil
}

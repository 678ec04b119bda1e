package caseapi

import (
	"context"
	"net/http"
	"net/url"

	"caseflow/internal/stage"
	"caseflow/internal/transition"
)

type Case struct {
	ID         string  `json:"id"`
	DisplayID  string  `json:"display_id"`
	Kind       string  `json:"kind"`
	FullName   string  `json:"full_name"`
	PipelineID string  `json:"pipeline_id"`
	StageID    *string `json:"stage_id"`
}

func (c Case) CurrentStageID() string {
	if c.StageID == nil {
		return ""
	}
	return *c.StageID
}

type CaseView struct {
	Case             Case    `json:"case"`
	PendingRequestID *string `json:"pending_request_id"`
}

type ApprovalRequest struct {
	ID          string  `json:"id"`
	CaseID      string  `json:"case_id"`
	FromStageID *string `json:"from_stage_id"`
	ToStageID   string  `json:"to_stage_id"`
	Reason      string  `json:"reason"`
	RequestedBy string  `json:"requested_by"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
}

// Stages returns the pipeline's catalog. The server sorts by order; NewCatalog
// re-checks it and rejects ties.
func (c *Client) Stages(ctx context.Context, pipelineID string) (stage.Catalog, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/pipelines/"+url.PathEscape(pipelineID)+"/stages", nil, nil)
	if err != nil {
		return stage.Catalog{}, err
	}
	body, err := decode[struct {
		Items []stage.Stage `json:"items"`
	}](resp)
	if err != nil {
		return stage.Catalog{}, err
	}
	return stage.NewCatalog(pipelineID, body.Items)
}

func (c *Client) GetCase(ctx context.Context, caseID string) (CaseView, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v1/cases/"+url.PathEscape(caseID), nil, nil)
	if err != nil {
		return CaseView{}, err
	}
	return decode[CaseView](resp)
}

// SubmitTransition posts a built payload. It satisfies transition.Submitter.
func (c *Client) SubmitTransition(ctx context.Context, caseID string, p transition.Payload) (transition.Outcome, error) {
	resp, err := c.do(ctx, http.MethodPost, "/v1/cases/"+url.PathEscape(caseID)+"/stage", nil, p)
	if err != nil {
		return transition.Outcome{}, err
	}
	return decode[transition.Outcome](resp)
}

func (c *Client) ListApprovals(ctx context.Context, status string) ([]ApprovalRequest, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	resp, err := c.do(ctx, http.MethodGet, "/v1/approvals", q, nil)
	if err != nil {
		return nil, err
	}
	body, err := decode[struct {
		Items []ApprovalRequest `json:"items"`
	}](resp)
	return body.Items, err
}

func (c *Client) Approve(ctx context.Context, requestID, note string) (ApprovalRequest, error) {
	return c.resolve(ctx, requestID, "approve", note)
}

func (c *Client) Reject(ctx context.Context, requestID, note string) (ApprovalRequest, error) {
	return c.resolve(ctx, requestID, "reject", note)
}

func (c *Client) resolve(ctx context.Context, requestID, action, note string) (ApprovalRequest, error) {
	in := map[string]string{"note": note}
	resp, err := c.do(ctx, http.MethodPost, "/v1/approvals/"+url.PathEscape(requestID)+"/"+action, nil, in)
	if err != nil {
		return ApprovalRequest{}, err
	}
	return decode[ApprovalRequest](resp)
}

var _ transition.Submitter = (*Client)(nil)

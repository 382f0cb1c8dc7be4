package types

import "time"

// DeploymentStatus tracks what the last observed sandbox run reported
type DeploymentStatus string

const (
	DeploymentPending   DeploymentStatus = "pending"
	DeploymentSucceeded DeploymentStatus = "succeeded"
	DeploymentFailed    DeploymentStatus = "failed"
)

// Deployment is a permanently published, publicly reachable document
type Deployment struct {
	ID        string           `json:"id"`
	Slug      string           `json:"slug"`
	ProjectID string           `json:"project_id"`
	Title     string           `json:"title"`
	Entry     string           `json:"entry"`
	Digest    string           `json:"digest"`
	Status    DeploymentStatus `json:"status"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Apply folds an execution signal into the deployment status
func (d *Deployment) Apply(sig ExecutionSignal, at time.Time) {
	if sig.IsError() {
		d.Status = DeploymentFailed
		d.Error = sig.Message
	} else {
		d.Status = DeploymentSucceeded
		d.Error = ""
	}
	d.UpdatedAt = at
}

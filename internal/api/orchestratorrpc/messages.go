package orchestratorrpc

// GetQueueStatusRequest has no fields: the queue is scoped to the
// orchestrator instance the server was built around.
type GetQueueStatusRequest struct{}

// GetQueueStatusResponse reports every PR in the queue keyed by number,
// mirroring Orchestrator.GetQueueStatus.
type GetQueueStatusResponse struct {
	Status map[int]string `json:"status"`
}

// GetPRRequest names the PR to look up.
type GetPRRequest struct {
	PRNumber int `json:"pr_number"`
}

// GetPRResponse is the queue entry for the requested PR, or Found=false
// if it isn't in the queue.
type GetPRResponse struct {
	Found         bool     `json:"found"`
	PRNumber      int      `json:"pr_number"`
	Branch        string   `json:"branch"`
	Base          string   `json:"base"`
	ChangedFiles  []string `json:"changed_files"`
	DependsOn     []int    `json:"depends_on"`
	ConflictsWith []int    `json:"conflicts_with"`
	Status        string   `json:"status"`
}

// IsBlockedRequest names the PR to check.
type IsBlockedRequest struct {
	PRNumber int `json:"pr_number"`
}

// IsBlockedResponse reports whether the named PR is blocked on an
// unmerged dependency.
type IsBlockedResponse struct {
	Blocked bool `json:"blocked"`
}

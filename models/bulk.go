package models

// BulkResult records the outcome of generating a message for one lead.
type BulkResult struct {
	LeadID   string `json:"leadId"`
	LeadName string `json:"leadName"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// BulkProgress is published after every state change of a bulk run.
type BulkProgress struct {
	Current     int          `json:"current"`
	Total       int          `json:"total"`
	CurrentLead string       `json:"currentLead"`
	Results     []BulkResult `json:"results"`
	Done        bool         `json:"done"`
}

// Succeeded counts the successful results.
func (p BulkProgress) Succeeded() int {
	n := 0
	for _, r := range p.Results {
		if r.Success {
			n++
		}
	}
	return n
}

// BulkRequest starts a server-side bulk run over the given leads, in order.
type BulkRequest struct {
	LeadIDs []string `json:"leadIds"`
}

const (
	BulkFrameProgress = "progress"
	BulkFrameError    = "error"
)

// BulkFrame is one websocket message of a server-side bulk run.
type BulkFrame struct {
	Type     string        `json:"type"`
	Progress *BulkProgress `json:"progress,omitempty"`
	Error    string        `json:"error,omitempty"`
}

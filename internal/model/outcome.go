package model

// Outcome is the terminal record for one item run through the pipeline.
// Success means the item was evaluated and persisted without error; which
// bucket it lands in (valid vs discarded) depends on the evaluation verdict.
type Outcome struct {
	Item       Item       `json:"item"`
	Evaluation Evaluation `json:"evaluation"`
	Success    bool       `json:"success"`
	Error      string     `json:"error,omitempty"`
	CompanyID  string     `json:"company_id,omitempty"`
	RecordID   string     `json:"record_id,omitempty"`
	SignalID   string     `json:"signal_id,omitempty"`
	ContactIDs []string   `json:"contact_ids,omitempty"`
}

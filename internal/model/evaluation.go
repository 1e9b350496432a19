package model

// Categories assigned by the pipeline itself rather than the AI model.
const (
	CategoryEvaluationFailed = "Evaluation Failed"
	CategoryError            = "Error"
)

// Evaluation is the AI verdict for a single item.
type Evaluation struct {
	IsValid          bool   `json:"is_valid"`
	Score            int    `json:"score"`
	Category         string `json:"category"`
	Experience       string `json:"experience,omitempty"`
	Reasoning        string `json:"reasoning"`
	ApplicationEmail string `json:"application_email,omitempty"`
	Duration         string `json:"duration,omitempty"`
	Model            string `json:"model,omitempty"`
}

// Degraded reports whether e is a fallback verdict produced after every
// AI attempt failed, as opposed to a genuine model judgment.
func (e Evaluation) Degraded() bool {
	return e.Category == CategoryEvaluationFailed
}

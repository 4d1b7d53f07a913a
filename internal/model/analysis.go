package model

// AnalysisResult is what the model returned for one message. Action is nil
// when the email needs nothing done, or when the proposed action duplicates
// an existing open task.
type AnalysisResult struct {
	Sender  string  `json:"sender"`
	Summary string  `json:"summary"`
	Action  *string `json:"action"`
}

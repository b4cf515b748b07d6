package models

// BenchmarkRecord is one row of the append-only benchmark results table:
// one per (run, question). Runs are tagged by RunTimestamp and never
// overwrite prior runs.
type BenchmarkRecord struct {
	RunTimestamp        string  `json:"run_timestamp" db:"run_timestamp"`
	QuestionID          string  `json:"question_id" db:"question_id"`
	Question            string  `json:"question" db:"question"`
	Category            string  `json:"category" db:"category"`
	Status              string  `json:"status" db:"status"`
	GeneratedQuery      string  `json:"generated_query" db:"generated_query"`
	GenieText           string  `json:"genie_text" db:"genie_text"`
	HasResults          bool    `json:"has_results" db:"has_results"`
	ResponseTimeSeconds float64 `json:"response_time_seconds" db:"response_time_seconds"`
	CompletionRatePct   float64 `json:"completion_rate_pct" db:"completion_rate_pct"`
	Error               string  `json:"error" db:"error"`
}

// BenchmarkSummary aggregates one run for quality tracking over time.
type BenchmarkSummary struct {
	RunTimestamp       string  `json:"run_timestamp"`
	TotalQuestions     int     `json:"total_questions"`
	Completed          int     `json:"completed"`
	WithResults        int     `json:"with_results"`
	Failed             int     `json:"failed"`
	TimedOut           int     `json:"timed_out"`
	AvgResponseTimeSec float64 `json:"avg_response_time_sec"`
	CompletionRatePct  float64 `json:"completion_rate_pct"`
}

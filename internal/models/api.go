package models

// ChatRequest is the body of POST /api/chat and /api/chat_demo.
type ChatRequest struct {
	Message  string `json:"message" binding:"required"`
	Language string `json:"language"`
}

// ChatResponse is returned synchronously for a chat turn. Score is nil when the
// inline factual consistency could not be computed; Warning is then true.
type ChatResponse struct {
	Response string   `json:"response"`
	Score    *float64 `json:"score"`
	Warning  bool     `json:"warning"`
	Source   string   `json:"source"`
	ID       int64    `json:"id"`
}

// ReferenceRequest is the body of POST /api/ref_metric.
type ReferenceRequest struct {
	LogID     int64  `json:"log_id" binding:"required"`
	Reference string `json:"reference" binding:"required"`
}

package models

// ProfessorMetadata is stored alongside each professor vector and rendered into the chat prompt.
type ProfessorMetadata struct {
	Review    string `json:"review"`
	Subject   string `json:"subject"`
	Stars     string `json:"stars"`
	Sentiment string `json:"sentiment,omitempty"`
}

// ProfessorRecord is one entry in the vector store, keyed by professor name.
// Document is the exact text that was embedded; it is kept so the record can be re-embedded
// when the embedding model changes.
type ProfessorRecord struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"-"`
	Metadata  ProfessorMetadata `json:"metadata"`
	Document  string            `json:"document,omitempty"`
}

// QueryMatch is one similarity search hit. Matches are returned best first.
type QueryMatch struct {
	ID       string            `json:"id"`
	Metadata ProfessorMetadata `json:"metadata"`
	Score    float64           `json:"score"`
}

// ProfessorPage is what the scraper extracts from a review page.
type ProfessorPage struct {
	Name    string   `json:"name"`
	Subject string   `json:"subject"`
	Stars   string   `json:"stars"`
	Reviews []string `json:"reviews"`
}

// SubmitURLRequest is the body of POST /api/submit-url.
type SubmitURLRequest struct {
	URL string `json:"url" validate:"required,no_null_bytes"`
}

// SubmitURLResponse is the success body of POST /api/submit-url.
type SubmitURLResponse struct {
	UpsertedCount int `json:"upsertedCount"`
}

// ErrorResponse is the error body returned by both endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

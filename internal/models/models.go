package models

import "time"

// User represents an account within the Snapsight platform. PasswordHash
// never crosses the wire.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	Image         string    `json:"image,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Curation reports the content-moderation verdict for an image.
type Curation struct {
	IsAppropriate bool     `json:"isAppropriate"`
	Labels        []string `json:"labels"`
	Risk          string   `json:"risk"`
	Notes         string   `json:"notes,omitempty"`
}

// Moderation risk levels returned in Curation.Risk.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// Caption holds the suggested caption plus alternatives.
type Caption struct {
	Text         string   `json:"text"`
	Alternatives []string `json:"alternatives"`
}

// Song is a single music recommendation.
type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Reason string `json:"reason"`
}

// Topic pairs a detected topic with the model's confidence in [0,1].
type Topic struct {
	Topic      string  `json:"topic"`
	Confidence float64 `json:"confidence"`
}

// Engagement estimates how well the image will perform as a post.
type Engagement struct {
	EstimatedScore float64  `json:"estimatedScore"`
	Drivers        []string `json:"drivers"`
	Suggestions    []string `json:"suggestions"`
}

// Meta carries generation metadata attached to every analysis.
type Meta struct {
	Language    string    `json:"language"`
	GeneratedAt time.Time `json:"generatedAt"`
}

// AnalysisResult is the payload produced by one analysis run. The server
// may omit facets that were not requested in AnalyzeRequest.Tasks.
type AnalysisResult struct {
	Curation   Curation   `json:"curation"`
	Caption    Caption    `json:"caption"`
	Songs      []Song     `json:"songs"`
	Topics     []Topic    `json:"topics"`
	Engagement Engagement `json:"engagement"`
	Meta       Meta       `json:"meta"`
}

// AnalysisRecord is an AnalysisResult combined with the public URL of the
// uploaded asset. AccessURL comes from the upload slot, not from the
// analysis response, so it is only well-defined once the upload finished.
type AnalysisRecord struct {
	AnalysisResult
	AccessURL string `json:"accessUrl,omitempty"`
}

// Analysis task names accepted by the generate endpoint.
const (
	TaskCuration   = "curation"
	TaskCaption    = "caption"
	TaskSongs      = "songs"
	TaskTopics     = "topics"
	TaskEngagement = "engagement"
)

// AllTasks lists every analysis facet in request order.
func AllTasks() []string {
	return []string{TaskCuration, TaskCaption, TaskSongs, TaskTopics, TaskEngagement}
}

// AnalyzeLimits bounds list sizes in an analysis response.
type AnalyzeLimits struct {
	MaxSongs  int `json:"maxSongs"`
	MaxTopics int `json:"maxTopics"`
}

// AnalyzeRequest asks the backend to analyse a previously uploaded object.
type AnalyzeRequest struct {
	FileKey  string        `json:"fileKey"`
	Tasks    []string      `json:"tasks"`
	Language string        `json:"language"`
	Limits   AnalyzeLimits `json:"limits"`
}

// UploadSlot is a single-use presigned upload credential. UploadURL
// accepts exactly one PUT until ExpiresIn seconds elapse; AccessURL is
// where the object will be readable afterwards.
type UploadSlot struct {
	UploadURL string `json:"uploadUrl"`
	FileKey   string `json:"fileKey"`
	AccessURL string `json:"accessUrl"`
	ExpiresIn int    `json:"expiresIn"`
	MaxSize   int64  `json:"maxSize"`
}

// HistoryItem is the summary record of one past analysis run. Items are
// server-ordered newest first and never mutated by the client.
type HistoryItem struct {
	ID        string    `json:"id"`
	FileKey   string    `json:"fileKey"`
	AccessURL string    `json:"accessUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// DetailedHistoryItem is a HistoryItem plus the full analysis payload,
// fetched lazily one entry at a time.
type DetailedHistoryItem struct {
	HistoryItem
	Tasks      []string   `json:"tasks"`
	Curation   Curation   `json:"curation"`
	Caption    Caption    `json:"caption"`
	Songs      []Song     `json:"songs"`
	Topics     []Topic    `json:"topics"`
	Engagement Engagement `json:"engagement"`
	Meta       Meta       `json:"meta"`
}

// PageInfo carries cursor-pagination state. NextCursor is opaque to the
// client; HasNextPage == false implies NextCursor is empty.
type PageInfo struct {
	Limit       int     `json:"limit"`
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

// HistoryPage is one page of the generation history listing.
type HistoryPage struct {
	Items    []HistoryItem `json:"items"`
	PageInfo PageInfo      `json:"pageInfo"`
}

package gemini

// Translation is one extracted text element paired with its translation.
type Translation struct {
	English string `json:"english"`
	Hebrew  string `json:"hebrew"`
}

// Extraction is the parsed response of a combined extract+translate call.
type Extraction struct {
	ExtractedText string        `json:"extracted_text"`
	Translations  []Translation `json:"translations"`
}

// Verdict is the advisory result of a translation verification call.
type Verdict struct {
	Pass       bool     `json:"pass"`
	Issues     []string `json:"issues"`
	Confidence float64  `json:"confidence"`
}

// BatchItem is one page's unit within a bulk submission. Token is the
// identity used to map the eventual response back to the originating page.
type BatchItem struct {
	Token string
	PNG   []byte
}

// BatchItemResult is the demultiplexed outcome for a single batch item.
// Exactly one of Extraction or Err is set.
type BatchItemResult struct {
	Token      string
	Extraction *Extraction
	Err        error
}

// BatchState describes the remote bulk job's lifecycle.
type BatchState string

const (
	BatchStatePending   BatchState = "pending"
	BatchStateRunning   BatchState = "running"
	BatchStateSucceeded BatchState = "succeeded"
	BatchStateFailed    BatchState = "failed"
	BatchStateCancelled BatchState = "cancelled"
)

// Done reports whether the job has reached a terminal state.
func (s BatchState) Done() bool {
	switch s {
	case BatchStateSucceeded, BatchStateFailed, BatchStateCancelled:
		return true
	default:
		return false
	}
}

package models

// SummaryRequest carries the form fields of a summarize call. The file
// itself travels as the multipart "file" part.
type SummaryRequest struct {
	Model     string `form:"model" json:"model" binding:"required"`
	MaxLength int    `form:"max_length" json:"max_length" binding:"omitempty,min=50,max=500"`
	MinLength int    `form:"min_length" json:"min_length" binding:"omitempty,min=10,max=100"`
}

const (
	DefaultMaxLength = 150
	DefaultMinLength = 30
)

// ApplyDefaults fills unset bounds with the form defaults.
func (r *SummaryRequest) ApplyDefaults() {
	if r.MaxLength == 0 {
		r.MaxLength = DefaultMaxLength
	}
	if r.MinLength == 0 {
		r.MinLength = DefaultMinLength
	}
}

// SummaryResponse is returned by the JSON summarize endpoint.
type SummaryResponse struct {
	Summary    string  `json:"summary"`
	Model      string  `json:"model"`
	ModelID    string  `json:"model_id"`
	Strategy   string  `json:"strategy"`
	Device     string  `json:"device,omitempty"`
	Chunks     int     `json:"chunks"`
	Characters int     `json:"characters"`
	Cached     bool    `json:"cached"`
	Filename   string  `json:"filename"`
	DurationMS float64 `json:"duration_ms"`
}

// ExtractResponse is returned by the extract-only endpoint.
type ExtractResponse struct {
	Filename   string `json:"filename"`
	Format     string `json:"format"`
	Units      int    `json:"units"`
	Characters int    `json:"characters"`
	Text       string `json:"text"`
}

// ModelInfo lists one selectable model.
type ModelInfo struct {
	Name           string `json:"name"`
	ModelID        string `json:"model_id"`
	Strategy       string `json:"strategy"`
	MaxInputTokens int    `json:"max_input_tokens"`
	Loaded         bool   `json:"loaded"`
}

// SummaryPage is the data rendered into the HTML form.
type SummaryPage struct {
	Models        []ModelInfo
	Accept        string
	Selected      string
	MaxLength     int
	MinLength     int
	Summary       string
	Submitted     bool
	Error         string
	Filename      string
	MaxLengthLow  int
	MaxLengthHigh int
	MinLengthLow  int
	MinLengthHigh int
}

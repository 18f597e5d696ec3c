package domain

// JobState tracks the render lifecycle of a single parade job.
type JobState string

const (
	JobStatePending    JobState = "PENDING"
	JobStateProcessing JobState = "PROCESSING"
	JobStateCompleted  JobState = "COMPLETED"
	JobStateError      JobState = "ERROR"
)

// Terminal reports whether a state accepts no further transitions.
func (s JobState) Terminal() bool {
	return s == JobStateCompleted || s == JobStateError
}

// FlagReason classifies why an analyzed image was flagged for review.
type FlagReason string

const (
	FlagNoFace        FlagReason = "NO_FACE"
	FlagLowConfidence FlagReason = "LOW_CONFIDENCE"
	FlagMultipleFaces FlagReason = "MULTIPLE_FACES"
)

// Landmark is one normalized face point in [0,1] image coordinates.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Detection is the raw output of the face-detection capability for one
// image: per-face landmark sets and the maximum per-face confidence.
type Detection struct {
	FaceCount  int          `json:"faceCount"`
	Confidence float64      `json:"confidence"`
	Landmarks  [][]Landmark `json:"landmarks"`
}

// AnalysisResult is one image's detection outcome after the flagging
// policy has been applied against a confidence threshold.
type AnalysisResult struct {
	ID         string       `json:"id"`
	FaceCount  int          `json:"faceCount"`
	Confidence float64      `json:"confidence"`
	Landmarks  [][]Landmark `json:"landmarks,omitempty"`
	Flagged    bool         `json:"flagged"`
	Reason     FlagReason   `json:"reason,omitempty"`
	Note       string       `json:"note,omitempty"`
}

// Classify applies the flagging policy. Reasons are checked in fixed
// priority order: NO_FACE, then LOW_CONFIDENCE, then MULTIPLE_FACES.
func Classify(faceCount int, confidence, minConfidence float64) (bool, FlagReason) {
	switch {
	case faceCount == 0:
		return true, FlagNoFace
	case confidence < minConfidence:
		return true, FlagLowConfidence
	case faceCount > 1:
		return true, FlagMultipleFaces
	default:
		return false, ""
	}
}

// RenderOptions controls frame geometry and encoding for one render.
type RenderOptions struct {
	FPS              int    `json:"fps"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	Format           string `json:"format"`
	IncludeLandmarks bool   `json:"includeLandmarks"`
}

// Supported output container formats.
const (
	FormatMP4  = "mp4"
	FormatWebM = "webm"
	FormatAVI  = "avi"
)

// WithDefaults fills unset option fields with the standard defaults.
func (o RenderOptions) WithDefaults() RenderOptions {
	if o.FPS == 0 {
		o.FPS = 4
	}
	if o.Width == 0 {
		o.Width = 1080
	}
	if o.Height == 0 {
		o.Height = 1920
	}
	if o.Format == "" {
		o.Format = FormatMP4
	}
	return o
}

// Validate rejects malformed render options.
func (o RenderOptions) Validate() error {
	if o.FPS <= 0 {
		return Invalid("fps must be positive")
	}
	if o.Width <= 0 || o.Height <= 0 {
		return Invalid("dimensions must be positive")
	}
	switch o.Format {
	case FormatMP4, FormatWebM, FormatAVI:
		return nil
	default:
		return Invalid("unsupported format: " + o.Format)
	}
}

// RenderResult references the finished artifact for a completed job.
type RenderResult struct {
	Path       string `json:"path"`
	FrameCount int    `json:"frameCount"`
}

package jobs

import (
	"image"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shmulike/face-parade/internal/domain"
)

// NewImage is one decoded photograph handed to Create by the importer.
type NewImage struct {
	Filename string
	Raster   image.Image
}

// ImageRef identifies one stored image to API callers.
type ImageRef struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// imageRecord is the store-owned state for one imported image.
type imageRecord struct {
	id        string
	filename  string
	raster    image.Image
	detection *domain.Detection
	analysis  *domain.AnalysisResult
}

// jobRecord is the store-owned state for one job.
type jobRecord struct {
	id       string
	created  time.Time
	state    domain.JobState
	progress int
	step     string
	result   *domain.RenderResult
	errMsg   string
	images   []*imageRecord
	index    map[string]*imageRecord
}

// Snapshot is a consistent progress view of one job, safe to read while
// the render goroutine advances the job concurrently.
type Snapshot struct {
	State    domain.JobState
	Progress int
	Step     string
	Result   *domain.RenderResult
	Error    string
}

// Store is the registry of jobs keyed by identifier. It is the single
// owner of job state; stages mutate jobs only through its accessors.
// Critical sections are short so progress polls never wait on stage work.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobRecord
}

// NewStore creates an empty job registry.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobRecord)}
}

// Create registers a new PENDING job holding the given images, assigning
// fresh identifiers that preserve input order.
func (s *Store) Create(images []NewImage) (string, []ImageRef) {
	job := &jobRecord{
		id:      uuid.NewString(),
		created: time.Now(),
		state:   domain.JobStatePending,
		index:   make(map[string]*imageRecord, len(images)),
	}

	refs := make([]ImageRef, 0, len(images))
	for _, img := range images {
		rec := &imageRecord{
			id:       uuid.NewString(),
			filename: img.Filename,
			raster:   img.Raster,
		}
		job.images = append(job.images, rec)
		job.index[rec.id] = rec
		refs = append(refs, ImageRef{ID: rec.id, Filename: rec.filename})
	}

	s.mu.Lock()
	s.jobs[job.id] = job
	s.mu.Unlock()

	return job.id, refs
}

// Images lists a job's images in import order.
func (s *Store) Images(jobID string) ([]ImageRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.NotFound("job", jobID)
	}

	refs := make([]ImageRef, 0, len(job.images))
	for _, rec := range job.images {
		refs = append(refs, ImageRef{ID: rec.id, Filename: rec.filename})
	}
	return refs, nil
}

// ValidateOrder checks that every identifier in order belongs to the job.
func (s *Store) ValidateOrder(jobID string, order []string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.NotFound("job", jobID)
	}
	for _, id := range order {
		if _, ok := job.index[id]; !ok {
			return domain.NotFound("image", id)
		}
	}
	return nil
}

// Raster returns an image's decoded pixel data. The raster is immutable
// after import, so sharing it outside the lock is safe.
func (s *Store) Raster(jobID, imageID string) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.image(jobID, imageID)
	if err != nil {
		return nil, err
	}
	return rec.raster, nil
}

// Detection returns the cached raw detection for an image, if any.
func (s *Store) Detection(jobID, imageID string) (domain.Detection, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.image(jobID, imageID)
	if err != nil {
		return domain.Detection{}, false, err
	}
	if rec.detection == nil {
		return domain.Detection{}, false, nil
	}
	return *rec.detection, true, nil
}

// SetDetection caches an image's raw detection result.
func (s *Store) SetDetection(jobID, imageID string, det domain.Detection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.image(jobID, imageID)
	if err != nil {
		return err
	}
	rec.detection = &det
	return nil
}

// SetAnalysis attaches an analysis result to an image, replacing any
// prior result.
func (s *Store) SetAnalysis(jobID, imageID string, res domain.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.image(jobID, imageID)
	if err != nil {
		return err
	}
	rec.analysis = &res
	return nil
}

// Analysis returns an image's attached analysis result, if any.
func (s *Store) Analysis(jobID, imageID string) (domain.AnalysisResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, err := s.image(jobID, imageID)
	if err != nil {
		return domain.AnalysisResult{}, false, err
	}
	if rec.analysis == nil {
		return domain.AnalysisResult{}, false, nil
	}
	return *rec.analysis, true, nil
}

// BeginRender transitions a job from PENDING to PROCESSING. A job that
// is already processing or terminal cannot be re-rendered.
func (s *Store) BeginRender(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.NotFound("job", jobID)
	}
	if !canTransition(job.state, domain.JobStateProcessing) {
		return domain.ErrConflict
	}

	job.state = domain.JobStateProcessing
	job.progress = 0
	job.step = "starting"
	return nil
}

// SetProgress advances a processing job's progress snapshot. Progress is
// clamped so successive polls never observe it decreasing; updates after
// a terminal state are dropped.
func (s *Store) SetProgress(jobID string, progress int, step string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok || job.state.Terminal() {
		return
	}
	if progress > 100 {
		progress = 100
	}
	if progress > job.progress {
		job.progress = progress
	}
	if step != "" {
		job.step = step
	}
}

// Complete moves a processing job to COMPLETED and publishes its result.
func (s *Store) Complete(jobID string, result domain.RenderResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.NotFound("job", jobID)
	}
	if !canTransition(job.state, domain.JobStateCompleted) {
		return domain.ErrConflict
	}

	job.state = domain.JobStateCompleted
	job.progress = 100
	job.step = "done"
	job.result = &result
	return nil
}

// Fail moves a processing job to ERROR with a captured message.
func (s *Store) Fail(jobID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return domain.NotFound("job", jobID)
	}
	if !canTransition(job.state, domain.JobStateError) {
		return domain.ErrConflict
	}

	job.state = domain.JobStateError
	job.step = "failed"
	job.errMsg = msg
	return nil
}

// Progress returns a consistent snapshot of one job's state for polling.
func (s *Store) Progress(jobID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return Snapshot{}, domain.NotFound("job", jobID)
	}

	snap := Snapshot{
		State:    job.state,
		Progress: job.progress,
		Step:     job.step,
		Error:    job.errMsg,
	}
	if job.result != nil {
		res := *job.result
		snap.Result = &res
	}
	return snap, nil
}

// image resolves one image record. Callers must hold the store lock.
func (s *Store) image(jobID, imageID string) (*imageRecord, error) {
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.NotFound("job", jobID)
	}
	rec, ok := job.index[imageID]
	if !ok {
		return nil, domain.NotFound("image", imageID)
	}
	return rec, nil
}

// canTransition enforces the allowed job state machine edges.
func canTransition(from, to domain.JobState) bool {
	switch from {
	case domain.JobStatePending:
		return to == domain.JobStateProcessing
	case domain.JobStateProcessing:
		return to == domain.JobStateCompleted || to == domain.JobStateError
	default:
		return false
	}
}

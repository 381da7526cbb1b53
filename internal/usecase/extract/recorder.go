package extract

import (
	"sync"

	"scraper-agent/internal/domain/entity"
)

// Recorder carries the latest built RunResult from the extraction tool
// to the runner. One instance per run; never shared between runs.
type Recorder struct {
	mu     sync.Mutex
	latest *entity.RunResult
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Record(result *entity.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latest = result
}

func (r *Recorder) Latest() *entity.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest
}

package downloader

import "sync"

// TerminateFunc signals a live extractor process to stop.
type TerminateFunc func() error

// Registry maps job ids to live process handles. Its only writers are
// "process started" and "process exited or cancelled"; both are synchronized
// against concurrent termination requests so a signal is never sent to an
// already-reaped handle.
type Registry struct {
	mu      sync.Mutex
	handles map[string]TerminateFunc
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]TerminateFunc)}
}

// Add records a running process handle for a job.
func (r *Registry) Add(jobID string, terminate TerminateFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[jobID] = terminate
}

// Remove drops the handle for a job, typically on process exit.
func (r *Registry) Remove(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, jobID)
}

// Terminate signals the process for a job and removes its handle. The boolean
// reports whether a live handle existed.
func (r *Registry) Terminate(jobID string) (bool, error) {
	r.mu.Lock()
	terminate, ok := r.handles[jobID]
	if ok {
		delete(r.handles, jobID)
	}
	r.mu.Unlock()

	if !ok || terminate == nil {
		return ok, nil
	}
	return true, terminate()
}

// Contains reports whether a job currently has a live process.
func (r *Registry) Contains(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.handles[jobID]
	return ok
}

// Len returns the number of live processes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

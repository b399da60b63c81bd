package bulk

import "sync"

// Snapshot is a consistent view of a Progress counter.
type Snapshot struct {
	Completed int
	Failed    int
	Total     int
}

// Progress counts finished jobs of one batch. It is shared by the batch's
// workers and never outlives the batch.
type Progress struct {
	mu        sync.Mutex
	total     int
	completed int
	failed    int
}

func NewProgress(total int) *Progress {
	return &Progress{total: total}
}

// Done records one finished job and returns the counters as they were right
// after the increment.
func (p *Progress) Done(ok bool) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed++
	if !ok {
		p.failed++
	}
	return Snapshot{Completed: p.completed, Failed: p.failed, Total: p.total}
}

func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{Completed: p.completed, Failed: p.failed, Total: p.total}
}

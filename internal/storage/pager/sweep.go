package pager

import (
	"log"

	"github.com/robfig/cron/v3"
)

// ───────────────────────────────────────────────────────────────────────────
// Background buffer sweep
// ───────────────────────────────────────────────────────────────────────────
//
// BufferSweeper periodically reclaims unpinned frames from a BufferManager
// even when no new page is being inserted, so that a cache sized for a
// burst of traversal does not sit at capacity indefinitely afterwards. It
// is grounded on the teacher's scheduler.go, which runs SQL maintenance
// jobs on a cron schedule; here the one job is always the same sweep, with
// the schedule expressed as a standard cron spec rather than a job table.
type BufferSweeper struct {
	bufmgr *BufferManager
	cron   *cron.Cron
	entry  cron.EntryID
}

// NewBufferSweeper creates a sweeper for bufmgr. spec is a standard 5-field
// cron expression (e.g. "*/30 * * * * *" is not valid 5-field cron —
// callers pass standard cron like "*/1 * * * *" for "every minute").
func NewBufferSweeper(bufmgr *BufferManager, spec string) (*BufferSweeper, error) {
	c := cron.New()
	s := &BufferSweeper{bufmgr: bufmgr, cron: c}
	id, err := c.AddFunc(spec, s.runSweep)
	if err != nil {
		return nil, err
	}
	s.entry = id
	return s, nil
}

func (s *BufferSweeper) runSweep() {
	evicted := 0
	for s.bufmgr.Evict() {
		evicted++
		if evicted >= s.bufmgr.Stats().MaxPages {
			break // safety bound: never loop longer than the cache could hold
		}
	}
	if evicted > 0 {
		log.Printf("pager: sweep evicted %d idle page(s)", evicted)
	}
}

// Start begins running the sweep on its schedule.
func (s *BufferSweeper) Start() { s.cron.Start() }

// Stop halts the sweep and waits for any in-progress run to finish.
func (s *BufferSweeper) Stop() { s.cron.Stop() }

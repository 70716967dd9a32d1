package loader

// ProgressStep is the granularity of progress reports, in percent.
const ProgressStep = 5

// Progress turns a processed-record count into percentage reports at every
// ProgressStep boundary. Each of 0, 5, ..., 100 is reported exactly once.
type Progress struct {
	total    int
	done     int
	reported int
	report   func(percent int)
}

// NewProgress creates a tracker for total records. report is called for
// every step; it may be nil.
func NewProgress(total int, report func(percent int)) *Progress {
	return &Progress{total: total, reported: -ProgressStep, report: report}
}

// Start reports 0%.
func (p *Progress) Start() {
	p.emitUpTo(0)
}

// Advance records n more processed records.
func (p *Progress) Advance(n int) {
	p.done += n
	if p.total <= 0 {
		return
	}
	done := p.done
	if done > p.total {
		done = p.total
	}
	p.emitUpTo(done * 100 / p.total)
}

// Finish reports every step not yet reported, ending at 100%.
func (p *Progress) Finish() {
	p.emitUpTo(100)
}

// Percent returns the last reported percentage, or -1 before Start.
func (p *Progress) Percent() int {
	if p.reported < 0 {
		return -1
	}
	return p.reported
}

func (p *Progress) emitUpTo(percent int) {
	for next := p.reported + ProgressStep; next <= percent; next += ProgressStep {
		p.reported = next
		if p.report != nil {
			p.report(next)
		}
	}
}

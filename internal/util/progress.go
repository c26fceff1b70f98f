package util

import (
	"fmt"
	"sync/atomic"
)

type RunStepProgress struct {
	Pending   string `json:"pending,omitempty"`
	Indexing  string `json:"indexing,omitempty"`
	Completed string `json:"completed,omitempty"`
	Failed    string `json:"failed,omitempty"`
}

type RunProgress struct {
	Step       *RunStepProgress `json:"step,omitempty"`
	Percentage int32            `json:"percentage"`
}

// ProgressCounter tracks documents through an indexing run. It is safe for
// concurrent use.
type ProgressCounter struct {
	total     atomic.Int64
	indexing  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

func (p *ProgressCounter) SetTotal(n int) {
	p.total.Store(int64(n))
}

func (p *ProgressCounter) Start() {
	p.indexing.Add(1)
}

func (p *ProgressCounter) Finish(ok bool) {
	p.indexing.Add(-1)
	if ok {
		p.completed.Add(1)
	} else {
		p.failed.Add(1)
	}
}

func (p *ProgressCounter) Progress() RunProgress {
	return BuildRunProgress(p.total.Load(), p.indexing.Load(), p.completed.Load(), p.failed.Load())
}

// BuildRunProgress reports each non-empty step as "n/total". Documents in
// the community phase count as complete.
func BuildRunProgress(total, indexing, completed, failed int64) RunProgress {
	if total <= 0 {
		return RunProgress{}
	}

	step := RunStepProgress{}
	hasStep := false
	if pending := total - indexing - completed - failed; pending > 0 {
		step.Pending = fmt.Sprintf("%d/%d", pending, total)
		hasStep = true
	}
	if indexing > 0 {
		step.Indexing = fmt.Sprintf("%d/%d", indexing, total)
		hasStep = true
	}
	if completed > 0 {
		step.Completed = fmt.Sprintf("%d/%d", completed, total)
		hasStep = true
	}
	if failed > 0 {
		step.Failed = fmt.Sprintf("%d/%d", failed, total)
		hasStep = true
	}

	progress := RunProgress{Percentage: CalculateRunProgressPercentage(total, completed, failed)}
	if hasStep {
		progress.Step = &step
	}
	return progress
}

// CalculateRunProgressPercentage counts finished documents, failed ones
// included, as done work.
func CalculateRunProgressPercentage(total, completed, failed int64) int32 {
	if total <= 0 {
		return 0
	}
	done := min(completed+failed, total)
	return int32(done * 100 / total)
}

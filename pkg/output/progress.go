package output

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// Progress renders one progress bar per runner chunk. Single-chunk runs are
// labelled "Progress", multi-chunk runs "Progress i/N".
type Progress struct {
	w         io.Writer
	enabled   bool
	useColors bool

	mu          sync.Mutex
	bar         *progressbar.ProgressBar
	description string
}

// NewProgress creates a progress sink writing to w
func NewProgress(w io.Writer, enabled bool, useColors bool) *Progress {
	return &Progress{w: w, enabled: enabled, useColors: useColors}
}

// StartChunk implements runner.Progress
func (p *Progress) StartChunk(index, total, size int) {
	desc := "Progress"
	if total > 1 {
		desc = fmt.Sprintf("Progress %d/%d", index+1, total)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.description = desc
	if !p.enabled {
		return
	}

	label := "  \\__ " + desc
	if p.useColors {
		label = "  \\__ [cyan]" + desc + "[reset]"
	}

	p.bar = progressbar.NewOptions(size,
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionEnableColorCodes(p.useColors),
		progressbar.OptionSetDescription(label),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// Increment implements runner.Progress
func (p *Progress) Increment() {
	p.mu.Lock()
	bar := p.bar
	p.mu.Unlock()

	if bar != nil {
		bar.Add(1)
	}
}

// FinishChunk implements runner.Progress
func (p *Progress) FinishChunk() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	p.bar.Finish()
	fmt.Fprintln(p.w)
	p.bar = nil
}

// Description returns the label of the current or last chunk
func (p *Progress) Description() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.description
}

// Package progress reports byte-level upload progress for CLI invocations
// via a small Reporter interface with a terminal-backed and a no-op
// implementation. uploadop has no GUI/event-bus surface, so there is no
// third variant here.
package progress

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// Reporter is the interface the orchestrator drives as it charges bytes
// against a stage's quota.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress renders a terminal progress bar, only when stderr is an
// interactive terminal.
type CLIProgress struct {
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a CLI progress reporter. It's safe to use even when
// stderr isn't a terminal: Start becomes a no-op in that case.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{}
}

func (p *CLIProgress) Start(total int64, description string) {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return
	}
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func (p *CLIProgress) Error(err error) {
	if err != nil && p.bar != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}
}

func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// NoOpProgress discards everything; used for daemon-mode runs where nothing
// reads stderr interactively.
type NoOpProgress struct{}

func NewNoOpProgress() *NoOpProgress { return &NoOpProgress{} }

func (p *NoOpProgress) Start(total int64, description string) {}
func (p *NoOpProgress) Update(current int64)                  {}
func (p *NoOpProgress) Finish()                                {}
func (p *NoOpProgress) Error(err error)                        {}
func (p *NoOpProgress) SetDescription(desc string)             {}

var _ Reporter = (*CLIProgress)(nil)
var _ Reporter = (*NoOpProgress)(nil)

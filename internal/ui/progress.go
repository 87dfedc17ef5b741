package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/dosanma1/xcforge/internal/domain"
)

// Progress renders pipeline events on a terminal. It implements
// ports.Observer.
type Progress struct {
	w       io.Writer
	verbose bool

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	started map[domain.Stage]time.Time
}

// NewProgress creates a Progress writing to w. In verbose mode tool output
// already streams to the terminal, so no progress bar is drawn.
func NewProgress(w io.Writer, verbose bool) *Progress {
	return &Progress{w: w, verbose: verbose, started: make(map[domain.Stage]time.Time)}
}

func (p *Progress) StageStarted(stage domain.Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started[stage] = time.Now()
	fmt.Fprintf(p.w, "%s %s\n", IconTool, StageStyle.Render(string(stage)))

	if stage != domain.StageBuild || p.verbose || total < 1 {
		return
	}
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetDescription("compiling"),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.w, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
	)
}

func (p *Progress) TargetBuilt(target domain.Target, elapsed time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Describe(target.Triple)
		_ = p.bar.Add(1)
		return
	}
	fmt.Fprintf(p.w, "   %s %s (%s)\n", IconSuccess, target.Triple, elapsed.Round(time.Millisecond))
}

func (p *Progress) StageFinished(stage domain.Stage, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil && stage == domain.StageBuild {
		if err != nil {
			_ = p.bar.Exit()
		}
		p.bar = nil
	}

	elapsed := time.Since(p.started[stage]).Round(time.Millisecond)
	if err == nil {
		fmt.Fprintf(p.w, "   %s %s\n", SuccessStyle.Render("done"), HelpStyle.Render(elapsed.String()))
		return
	}
	fmt.Fprintf(p.w, "   %s %s\n", IconError, ErrorStyle.Render(Headline(err)))
	var se *domain.StageError
	if errors.As(err, &se) && se.Diagnostics != "" {
		fmt.Fprintln(p.w, DiagnosticsStyle.Render(se.Diagnostics))
	}
}

// Headline is the first line of an error message.
func Headline(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		return msg[:i]
	}
	return msg
}

// Summary prints the final bundle location.
func Summary(w io.Writer, b *domain.Bundle, elapsed time.Duration) {
	fmt.Fprintf(w, "\n%s %s %s\n", IconPackage, TitleStyle.Render(b.Path), HelpStyle.Render(elapsed.Round(time.Millisecond).String()))
	for _, e := range b.Entries {
		kind := "single"
		if e.Merged {
			kind = "universal"
		}
		fmt.Fprintf(w, "   %-14s %s\n", e.Platform, HelpStyle.Render(kind))
	}
}

package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/quirkscan/quirkscan/pkg/extract"
)

// ExtractionProgress renders extraction progress events line by line.
// Safe for concurrent use; the extraction callback and the final summary
// may race on cancellation.
type ExtractionProgress struct {
	mu     sync.Mutex
	w      io.Writer
	color  bool
	events int
}

// NewExtractionProgress returns a progress renderer writing to w.
func NewExtractionProgress(w io.Writer) *ExtractionProgress {
	return &ExtractionProgress{w: w, color: ColorTerminal()}
}

// Update renders one accepted-character event.
func (p *ExtractionProgress) Update(ev extract.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events++
	if p.color {
		fmt.Fprintf(p.w, "  %s %s %s\n",
			SuccessStyle.Render(Icon("▸", ">")),
			StatValueStyle.Render(ev.Extracted),
			SubtitleStyle.Render(fmt.Sprintf("(pos %d, %d requests, %s)",
				ev.Position, ev.Probes, formatElapsed(ev.Elapsed))))
		return
	}
	fmt.Fprintf(p.w, "  > %s (pos %d, %d requests, %s)\n",
		ev.Extracted, ev.Position, ev.Probes, formatElapsed(ev.Elapsed))
}

// Finish renders the outcome summary.
func (p *ExtractionProgress) Finish(out *extract.Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	value := out.Value
	if value == "" {
		value = "(empty)"
	}
	status := "Extraction complete"
	if out.Cancelled {
		status = "Extraction cancelled"
	}
	if p.color {
		style := SuccessStyle
		if out.Cancelled {
			style = ErrorStyle
		}
		fmt.Fprintf(p.w, "\n%s\n", style.Render(status))
		fmt.Fprintf(p.w, "  %s %s\n", ConfigLabelStyle.Render("Result"), StatValueStyle.Render(value))
		fmt.Fprintf(p.w, "  %s %d\n", ConfigLabelStyle.Render("Requests"), out.Probes)
		fmt.Fprintf(p.w, "  %s %s\n", ConfigLabelStyle.Render("Elapsed"), formatElapsed(out.Elapsed))
		return
	}
	fmt.Fprintf(p.w, "\n%s\n  Result: %s\n  Requests: %d\n  Elapsed: %s\n",
		status, value, out.Probes, formatElapsed(out.Elapsed))
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

package output

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/tdh8316/findme/internal/scan"
)

const (
	barWidth  = 40
	nameWidth = 20
)

// Printer renders scan events for a terminal. It is a scan.Sink and is safe
// for use from several goroutines.
type Printer struct {
	mu sync.Mutex

	noColor bool
	verbose bool

	logger   *log.Logger
	progress io.Writer // optional live progress line
	drawn    bool
}

func NewPrinter(stdout io.Writer, noColor, verbose bool) *Printer {
	return &Printer{
		noColor: noColor,
		verbose: verbose,
		logger:  log.New(stdout, "", 0),
	}
}

// WithProgress enables a redrawn progress bar on w (usually stderr).
func (p *Printer) WithProgress(w io.Writer) *Printer {
	p.progress = w
	return p
}

func (p *Printer) paint(attr color.Attribute, s string) string {
	if p.noColor {
		return s
	}
	return color.New(attr).Sprint(s)
}

func (p *Printer) accent(mode scan.Mode) color.Attribute {
	if mode == scan.Availability {
		return color.FgHiCyan
	}
	return color.FgHiGreen
}

// Header announces a scan before the catalog is walked.
func (p *Printer) Header(username string, mode scan.Mode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearProgress()
	if mode == scan.Availability {
		p.logger.Printf("\n[%s] Checking availability of %s on:", p.paint(color.FgHiYellow, "*"), p.paint(color.FgHiYellow, username))
		return
	}
	p.logger.Printf("\n[%s] Checking username %s on:", p.paint(color.FgHiRed, "*"), p.paint(color.FgHiRed, username))
}

// Warn prints a user-facing warning line.
func (p *Printer) Warn(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearProgress()
	p.logger.Printf("[%s] %s", p.paint(color.FgHiRed, "!"), p.paint(color.FgHiYellow, fmt.Sprintf(format, args...)))
}

// Info prints a user-facing informational line.
func (p *Printer) Info(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearProgress()
	p.logger.Printf("[%s] %s", p.paint(color.FgHiBlue, "i"), fmt.Sprintf(format, args...))
}

// Item prints a "[+] text" list line.
func (p *Printer) Item(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearProgress()
	p.logger.Printf("[%s] %s", p.paint(color.FgHiGreen, "+"), p.paint(color.FgHiWhite, text))
}

func (p *Printer) Plain(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearProgress()
	p.logger.Printf(format, args...)
}

func (p *Printer) Publish(ev scan.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch ev.Kind {
	case scan.EventStarted:
		p.started(ev)
	case scan.EventProbing:
		p.drawProgress(ev, "")
	case scan.EventScanned:
		p.scanned(ev)
	case scan.EventCompleted:
		p.completed(ev)
	}
}

func (p *Printer) started(ev scan.Event) {
	if ev.State.Total == 0 {
		return
	}
	action := "Searching"
	if ev.Mode == scan.Availability {
		action = "Checking availability"
	}
	p.logger.Printf("%s across %d platforms...\n", action, ev.State.Total)
}

func (p *Printer) scanned(ev scan.Event) {
	if ev.Record != nil {
		p.clearProgress()
		mark := p.paint(color.FgHiRed, "+")
		if ev.Mode == scan.Availability {
			mark = p.paint(color.FgHiGreen, "✓")
		}
		p.logger.Printf("[%s] %s: %s", mark, p.paint(p.accent(ev.Mode), ev.Record.Name), ev.Record.URL)
	} else if p.verbose && ev.Probe != nil {
		p.clearProgress()
		if ev.Probe.Outcome == scan.Indeterminate {
			msg := "unknown error"
			if ev.Probe.Err != nil {
				msg = ev.Probe.Err.Error()
			}
			p.logger.Printf("[%s] %s: %s: %s", p.paint(color.FgHiRed, "!"), ev.Platform, p.paint(color.FgHiMagenta, "ERROR"), msg)
		} else {
			miss := "Not Found!"
			if ev.Mode == scan.Availability {
				miss = "Taken"
			}
			p.logger.Printf("[%s] %s: %s", p.paint(color.FgHiRed, "-"), ev.Platform, p.paint(color.FgHiYellow, miss))
		}
	}

	icon := p.paint(color.FgYellow, "○")
	if ev.Record != nil {
		icon = p.paint(p.accent(ev.Mode), "✓")
	} else if ev.Probe != nil && ev.Probe.Outcome == scan.Indeterminate {
		icon = p.paint(color.FgRed, "✗")
	}
	p.drawProgress(ev, icon)
}

func (p *Printer) completed(ev scan.Event) {
	p.clearProgress()
	n := len(ev.State.Results)

	if n == 0 {
		msg := "No accounts found."
		if ev.Mode == scan.Availability {
			msg = "Username is taken on all checked platforms."
		}
		p.logger.Printf("[%s] %s", p.paint(color.FgHiRed, "-"), p.paint(color.FgHiRed, msg))
	} else if ev.Mode == scan.Availability {
		p.logger.Printf("\nUsername '%s' is AVAILABLE on %s platforms.", ev.Username, p.paint(color.FgHiCyan, fmt.Sprint(n)))
	}

	p.logger.Printf("\n[%s] Scan complete! %s: %d/%d", p.paint(color.FgHiRed, "*"), ev.Mode.Label(), n, ev.State.Scanned)
}

func (p *Printer) drawProgress(ev scan.Event, icon string) {
	if p.progress == nil || ev.State.Total == 0 {
		return
	}
	done := ev.State.Scanned
	total := ev.State.Total
	filled := barWidth * done / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	name := ev.Platform
	if r := []rune(name); len(r) > nameWidth {
		name = string(r[:nameWidth])
	}
	if icon == "" {
		icon = " "
	}

	fmt.Fprintf(p.progress, "\r[%s] %5.1f%% | %s %-20s | Completed: %d/%d | %s: %s",
		bar,
		float64(done)*100/float64(total),
		icon,
		name,
		done, total,
		ev.Mode.Label(),
		p.paint(p.accent(ev.Mode), fmt.Sprint(len(ev.State.Results))),
	)
	p.drawn = true
}

func (p *Printer) clearProgress() {
	if p.progress == nil || !p.drawn {
		return
	}
	fmt.Fprint(p.progress, "\r\033[K")
	p.drawn = false
}

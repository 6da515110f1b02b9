package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	prompt "github.com/c-bata/go-prompt"
	"github.com/pkg/errors"

	"github.com/tdh8316/findme/internal/export"
	"github.com/tdh8316/findme/internal/scan"
)

// Console is the interactive REPL. A search runs in the background; starting
// another search or switching the mode cancels it, and its late events are
// dropped by the tracker.
type Console struct {
	app *App
	ctx context.Context

	mu       sync.Mutex
	mode     scan.Mode
	username string
	results  []scan.Record
	running  uint64 // generation of the scan in progress, 0 when idle

	wg sync.WaitGroup
}

func NewConsole(ctx context.Context, a *App) *Console {
	return &Console{app: a, ctx: ctx, mode: a.mode}
}

func (a *App) runConsole(ctx context.Context) int {
	c := NewConsole(ctx, a)
	c.printWelcome()

	p := prompt.New(
		func(in string) { c.Execute(in) },
		c.completer,
		prompt.OptionPrefix("findme> "),
		prompt.OptionTitle("findme console"),
		prompt.OptionSuggestionBGColor(prompt.DarkGray),
		prompt.OptionSuggestionTextColor(prompt.White),
		prompt.OptionSelectedSuggestionBGColor(prompt.Blue),
		prompt.OptionSelectedSuggestionTextColor(prompt.White),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && isExit(in)
		}),
	)

	// Run blocks until "exit" or Ctrl+D.
	p.Run()

	c.Stop()
	c.Wait()
	fmt.Fprintln(a.stdout, "Bye.")
	return exitOK
}

func (c *Console) printWelcome() {
	c.app.printer.Plain("findme %s interactive console. Type \"help\" for commands.", Version)
	c.app.printer.Info("Mode: %s", c.Mode())
}

func (c *Console) Mode() scan.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Results returns the records of the last scan of the current mode.
func (c *Console) Results() (string, []scan.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username, append([]scan.Record(nil), c.results...)
}

// Wait blocks until background searches have returned.
func (c *Console) Wait() { c.wg.Wait() }

// Execute runs one console line and reports whether the console should quit.
func (c *Console) Execute(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "exit", "quit":
		c.Stop()
		return true
	case "mode":
		if len(args) == 0 {
			c.app.printer.Info("Mode: %s", c.Mode())
			return false
		}
		c.SetMode(args[0])
	case "search":
		if len(args) == 0 {
			c.app.printer.Warn("usage: search USERNAME")
			return false
		}
		c.Search(args[0])
	case "stop":
		if !c.Stop() {
			c.app.printer.Info("No scan running")
		}
	case "results":
		c.printResults()
	case "export":
		if len(args) == 0 {
			c.app.printer.Warn("usage: export json|csv|txt|yaml [PATH]")
			return false
		}
		path := ""
		if len(args) > 1 {
			path = args[1]
		}
		if err := c.Export(args[0], path); err != nil {
			c.app.printer.Warn("%v", err)
		}
	case "copy":
		if err := c.Copy(); err != nil {
			c.app.printer.Warn("%v", err)
		}
	case "platforms":
		c.app.listPlatforms(c.ctx)
	default:
		c.app.printer.Warn("Unknown command %q. Type \"help\" for commands.", cmd)
	}
	return false
}

// SetMode switches the mode. A real change cancels the running scan and
// clears the results.
func (c *Console) SetMode(name string) {
	mode, err := scan.ParseMode(name)
	if err != nil {
		c.app.printer.Warn("%v", err)
		return
	}

	c.mu.Lock()
	changed := mode != c.mode
	if changed {
		c.mode = mode
		c.username = ""
		c.results = nil
		c.running = 0
	}
	c.mu.Unlock()

	if changed {
		c.app.tracker.Reset()
		c.app.log.WithField("mode", mode).Debug("mode changed")
	}
	c.app.printer.Info("Mode: %s", mode)
}

// Search starts a background scan of username in the current mode.
func (c *Console) Search(username string) {
	c.mu.Lock()
	mode := c.mode
	c.mu.Unlock()

	sess, err := c.app.tracker.Begin(c.ctx, username, mode)
	if err != nil {
		c.app.printer.Warn("%v", err)
		return
	}

	c.mu.Lock()
	c.running = sess.Generation
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runSearch(sess)
	}()
}

func (c *Console) runSearch(sess *scan.Session) {
	log := c.app.log.WithField("generation", sess.Generation)

	cat, _ := c.app.loadCatalog(sess.Context())
	if sess.Canceled() {
		c.finish(sess, nil)
		return
	}

	records, err := c.app.scanSession(sess, cat)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("scan failed")
	}
	if err != nil && c.app.tracker.IsCurrent(sess.Generation) {
		st := sess.State()
		c.app.printer.Info("Scan stopped after %d/%d platforms", st.Scanned, st.Total)
	}
	c.finish(sess, records)
}

// finish stores the records if sess is still the current session.
func (c *Console) finish(sess *scan.Session, records []scan.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running == sess.Generation {
		c.running = 0
	}
	if !c.app.tracker.IsCurrent(sess.Generation) {
		return
	}
	c.username = sess.Username
	c.results = records
}

// Stop cancels the running scan and reports whether there was one.
func (c *Console) Stop() bool {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if running == 0 {
		return false
	}
	cur := c.app.tracker.Current()
	if cur == nil || cur.Generation != running {
		return false
	}
	cur.Cancel()
	return true
}

func (c *Console) printResults() {
	username, records := c.Results()
	if username == "" {
		c.app.printer.Info("No scan results yet")
		return
	}
	mode := c.Mode()
	c.app.printer.Info("%s results for %s: %d", mode.Label(), username, len(records))
	for _, r := range records {
		c.app.printer.Item(r.Name + ": " + r.URL)
	}
}

// Export writes the current results in format to path, or to the default
// file name for the format.
func (c *Console) Export(format, path string) error {
	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}
	username, records := c.Results()
	if username == "" {
		return errors.New("no scan results to export")
	}
	if path == "" {
		path = export.FileName(f)
	}
	if err := export.WriteFile(path, f, records); err != nil {
		return err
	}
	c.app.printer.Info("Results exported to %s", path)
	return nil
}

func (c *Console) Copy() error {
	_, records := c.Results()
	if len(records) == 0 {
		return errors.New("no results to copy")
	}
	if err := export.Copy(c.app.stderr, records); err != nil {
		return err
	}
	c.app.printer.Info("Copied %d result(s) to clipboard", len(records))
	return nil
}

func (c *Console) printHelp() {
	lines := []string{
		"search USERNAME           scan the platforms for USERNAME",
		"mode [discover|availability]",
		"                          show or switch the scan mode",
		"stop                      cancel the running scan",
		"results                   show the last results",
		"export FORMAT [PATH]      write results as json, csv, txt or yaml",
		"copy                      copy results to the clipboard",
		"platforms                 list the platforms in the catalog",
		"exit / quit               leave the console",
	}
	for _, l := range lines {
		c.app.printer.Plain("  %s", l)
	}
}

var consoleCommands = []prompt.Suggest{
	{Text: "search", Description: "Scan the platforms for a username"},
	{Text: "mode", Description: "Show or switch the scan mode"},
	{Text: "stop", Description: "Cancel the running scan"},
	{Text: "results", Description: "Show the last results"},
	{Text: "export", Description: "Export the last results"},
	{Text: "copy", Description: "Copy the last results to the clipboard"},
	{Text: "platforms", Description: "List the platforms"},
	{Text: "help", Description: "Show help"},
	{Text: "exit", Description: "Leave the console"},
}

func (c *Console) completer(d prompt.Document) []prompt.Suggest {
	text := d.TextBeforeCursor()
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return consoleCommands
	}

	current := ""
	if !strings.HasSuffix(text, " ") {
		current = parts[len(parts)-1]
	}

	if len(parts) == 1 && current != "" {
		return prompt.FilterHasPrefix(consoleCommands, current, true)
	}

	argIndex := len(parts) - 1
	if current == "" {
		argIndex = len(parts)
	}
	if argIndex != 1 {
		return nil
	}

	switch strings.ToLower(parts[0]) {
	case "mode":
		return prompt.FilterHasPrefix([]prompt.Suggest{
			{Text: scan.Discover.String(), Description: "Platforms where the username exists"},
			{Text: scan.Availability.String(), Description: "Platforms where the username is free"},
		}, current, true)
	case "export":
		return prompt.FilterHasPrefix([]prompt.Suggest{
			{Text: string(export.JSON)},
			{Text: string(export.CSV)},
			{Text: string(export.TXT)},
			{Text: string(export.YAML)},
		}, current, true)
	}
	return nil
}

func isExit(in string) bool {
	switch strings.ToLower(strings.TrimSpace(in)) {
	case "exit", "quit":
		return true
	}
	return false
}

// Command pedalstatus is a terminal dashboard for a running pedalengine.
// It polls the control socket for chain topology and engine counters and
// redraws a termbox view, for watching an engine over SSH without a
// browser.
//
// Keys: Up/Down to scroll the chain list, 'q' or Esc to quit.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/nsf/termbox-go"

	"pedalcore/internal/control"
)

const (
	colDef    = termbox.ColorDefault
	colWhite  = termbox.ColorWhite
	colRed    = termbox.ColorRed
	colGreen  = termbox.ColorGreen
	colYellow = termbox.ColorYellow
	colCyan   = termbox.ColorCyan
)

type state struct {
	client *control.Client
	chain  map[string]any
	stats  map[string]any
	err    error
	scroll int
	exit   bool
}

func main() {
	socketPath := flag.String("socket", "/tmp/pedalengine.sock", "path to the pedalengine control socket")
	poll := flag.Duration("poll", 250*time.Millisecond, "control socket poll interval")
	flag.Parse()

	s := &state{client: control.NewClient(*socketPath)}
	s.refresh()

	if err := termbox.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize terminal: %v\n", err)
		os.Exit(1)
	}
	defer termbox.Close()
	termbox.SetInputMode(termbox.InputEsc)

	events := make(chan termbox.Event)
	go func() {
		for {
			events <- termbox.PollEvent()
		}
	}()

	ticker := time.NewTicker(*poll)
	defer ticker.Stop()

	draw(s)
	for !s.exit {
		select {
		case ev := <-events:
			switch ev.Type {
			case termbox.EventKey:
				handleKey(ev, s)
			case termbox.EventResize:
				draw(s)
			}
		case <-ticker.C:
			s.refresh()
			draw(s)
		}
	}
}

func handleKey(ev termbox.Event, s *state) {
	if ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
		s.exit = true
		return
	}
	switch ev.Key {
	case termbox.KeyArrowUp:
		if s.scroll > 0 {
			s.scroll--
		}
	case termbox.KeyArrowDown:
		s.scroll++
	}
	draw(s)
}

func (s *state) refresh() {
	chain, err := s.client.GetChain()
	if err != nil {
		s.err = err
		return
	}
	stats, err := s.client.GetStats()
	if err != nil {
		s.err = err
		s.chain = chain
		return
	}
	s.chain, s.stats, s.err = chain, stats, nil
}

func draw(s *state) {
	_ = termbox.Clear(colDef, colDef)

	printTB(0, 0, colCyan, colDef, "pedalengine status")
	printTB(0, 1, colDef, colDef, "Up/Down to scroll, 'q' or Esc to quit.")
	printTB(0, 2, colDef, colDef, "----------------------------------------------------")

	if s.err != nil {
		printTB(0, 4, colRed, colDef, fmt.Sprintf("error: %v", s.err))
		termbox.Flush()
		return
	}

	y := drawChain(4, s)
	drawStats(y+1, s)

	termbox.Flush()
}

func drawChain(startY int, s *state) int {
	printTB(0, startY, colYellow, colDef, "Chain:")

	nodes, _ := s.chain["chain"].([]any)
	w, _ := termbox.Size()

	y := startY + 1
	for i := s.scroll; i < len(nodes); i++ {
		node, ok := nodes[i].(map[string]any)
		if !ok {
			continue
		}
		id, _ := node["id"].(string)
		typ, _ := node["type"].(string)
		enabled, _ := node["enabled"].(bool)

		status := "off"
		col := colWhite
		if enabled {
			status, col = "on", colGreen
		}

		line := fmt.Sprintf("  %-12s %-16s [%s]", id, typ, status)
		if len(line) > w-1 {
			line = line[:w-1]
		}
		printTB(0, y, col, colDef, line)
		y++
	}
	return y
}

func drawStats(startY int, s *state) {
	printTB(0, startY, colYellow, colDef, "Stats:")

	keys := []string{"periodsProcessed", "shortReads", "shortWrites", "overruns", "swapCount", "retireFullCount"}
	y := startY + 1
	for _, k := range keys {
		v, _ := s.stats[k].(float64)
		printTB(2, y, colWhite, colDef, fmt.Sprintf("%-18s %d", k, int64(v)))
		y++
	}
}

func printTB(x, y int, fg, bg termbox.Attribute, msg string) {
	for _, c := range msg {
		termbox.SetCell(x, y, c, fg, bg)
		x++
	}
}

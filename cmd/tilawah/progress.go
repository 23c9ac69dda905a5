package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

type Progress struct {
	w       io.Writer
	label   string
	unit    string
	total   int
	current int
	mu      sync.Mutex
}

func NewProgress(w io.Writer, label, unit string, total int) *Progress {
	return &Progress{w: w, label: label, unit: unit, total: total}
}

func (p *Progress) Set(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = n
	p.draw()
}

func (p *Progress) draw() {
	width := 30
	percent := 1.0
	if p.total > 0 {
		percent = float64(p.current) / float64(p.total)
	}
	filled := int(float64(width) * percent)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	// \r returns the cursor to the start of the line
	fmt.Fprintf(p.w, "\r [%s] [%s] %d%% (%d/%d %s)", p.label, bar, int(percent*100), p.current, p.total, p.unit)

	if p.current == p.total {
		fmt.Fprintln(p.w)
	}
}

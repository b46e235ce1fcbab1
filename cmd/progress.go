package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// progressPrinter redraws a single status line while a monitor pass runs.
type progressPrinter struct {
	out          io.Writer
	name         string
	mu           sync.Mutex
	total        int64
	entries      int64
	failed       int
	observations int
	started      time.Time
	updates      chan struct{}
	done         chan struct{}
	stopOnce     sync.Once
}

func newProgressPrinter(out io.Writer, total int64, name string) *progressPrinter {
	if total <= 0 {
		total = 1
	}
	return &progressPrinter{
		out:     out,
		total:   total,
		name:    name,
		started: time.Now(),
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go p.loop()
}

// SetTotal replaces the expected entry count once it is known.
func (p *progressPrinter) SetTotal(total int64) {
	p.mu.Lock()
	if total > 0 {
		p.total = total
	}
	p.mu.Unlock()
}

// Add records one finished batch.
func (p *progressPrinter) Add(entries int64, failed, observations int) {
	p.mu.Lock()
	p.entries += entries
	p.failed += failed
	p.observations += observations
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 80))
	fmt.Fprintf(p.out, "%s\n", p.lineLocked())
}

func (p *progressPrinter) loop() {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.updates:
			p.print()
		case <-ticker.C:
			p.print()
		case <-p.done:
			return
		}
	}
}

func (p *progressPrinter) print() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.done:
		return
	default:
	}
	fmt.Fprintf(p.out, "\r%s", p.lineLocked())
}

func (p *progressPrinter) lineLocked() string {
	if p.entries > p.total {
		p.total = p.entries
	}

	percent := (float64(p.entries) / float64(p.total)) * 100
	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(p.entries) / elapsed
	}

	return fmt.Sprintf("[%s] Progress: %d/%d (%.1f%%) Failed:%d Observations:%d Rate:%.0f/s",
		p.name, p.entries, p.total, percent, p.failed, p.observations, rate)
}

package simulator

import (
	"sync"
)

// Capture views requested by the guided photo flow
const (
	ViewFront = "front"
	ViewLeft  = "left"
	ViewRight = "right"
)

// DefaultViews is the order in which shots are requested
var DefaultViews = []string{ViewFront, ViewLeft, ViewRight}

// Capture tracks per-shot completion signals; no image data is kept
type Capture struct {
	mu    sync.Mutex
	views []string
	taken int
}

// NewCapture starts a capture over views, DefaultViews when empty
func NewCapture(views ...string) *Capture {
	if len(views) == 0 {
		views = DefaultViews
	}
	return &Capture{views: append([]string(nil), views...)}
}

// Next returns the view awaiting a shot, or "" when complete
func (c *Capture) Next() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken >= len(c.views) {
		return ""
	}
	return c.views[c.taken]
}

// Shot records one completed shot and returns the view it satisfied.
// Shots after completion are ignored and return "".
func (c *Capture) Shot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.taken >= len(c.views) {
		return ""
	}
	view := c.views[c.taken]
	c.taken++
	return view
}

// Progress returns shots taken and shots required
func (c *Capture) Progress() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.taken, len(c.views)
}

// Complete reports whether every view has a shot
func (c *Capture) Complete() bool {
	taken, total := c.Progress()
	return taken >= total
}

// Reset starts over
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taken = 0
}

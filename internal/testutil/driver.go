package testutil

import (
	"context"
	"sync"

	"github.com/roach88/todocheck/internal/browser"
	"github.com/roach88/todocheck/internal/dom"
)

// RecordedCall is one call observed by StaticDriver.
type RecordedCall struct {
	Method string
	Target browser.Target
	Input  browser.Input
	Path   string
}

// StaticDriver serves a fixed page and records every call.
//
// It is for tests of components above the driver port; it never changes the
// page in response to input. Set InteractErr to make Interact fail.
type StaticDriver struct {
	mu          sync.Mutex
	html        string
	generation  uint64
	calls       []RecordedCall
	InteractErr error
	BackErr     error
}

// NewStaticDriver creates a driver serving html.
func NewStaticDriver(html string) *StaticDriver {
	return &StaticDriver{html: html, generation: 1}
}

// SetHTML replaces the page, bumping the generation.
func (d *StaticDriver) SetHTML(html string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.html = html
	d.generation++
}

// Calls returns a copy of the recorded calls.
func (d *StaticDriver) Calls() []RecordedCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]RecordedCall, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *StaticDriver) record(c RecordedCall) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
}

func (d *StaticDriver) Snapshot(ctx context.Context) (*dom.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return dom.Parse(d.html, "http://localhost/", d.generation)
}

func (d *StaticDriver) Interact(ctx context.Context, target browser.Target, in browser.Input) error {
	d.record(RecordedCall{Method: "interact", Target: target, Input: in})
	return d.InteractErr
}

func (d *StaticDriver) Visit(ctx context.Context, path string) error {
	d.record(RecordedCall{Method: "visit", Path: path})
	return nil
}

func (d *StaticDriver) Back(ctx context.Context) error {
	d.record(RecordedCall{Method: "back"})
	return d.BackErr
}

func (d *StaticDriver) Reload(ctx context.Context) error {
	d.record(RecordedCall{Method: "reload"})
	return nil
}

func (d *StaticDriver) ClearStorage(ctx context.Context) error {
	d.record(RecordedCall{Method: "clearStorage"})
	return nil
}

func (d *StaticDriver) BlurActive(ctx context.Context) error {
	d.record(RecordedCall{Method: "blurActive"})
	return nil
}

func (d *StaticDriver) Close() error { return nil }

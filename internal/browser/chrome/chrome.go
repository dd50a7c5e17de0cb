// Package chrome drives a real Chrome over the DevTools protocol.
//
// Snapshots serialise a clone of the live document in which every element
// carries its computed state as data-hx-* attributes (visibility, checked,
// value, focus, colours), so the harness reads a real page exactly as it reads
// the in-process one. Elements are addressed back by child-index path.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/roach88/todocheck/internal/browser"
	"github.com/roach88/todocheck/internal/dom"
)

// Options configures a Driver.
type Options struct {
	// BaseURL is the application origin; Visit paths are resolved against it.
	BaseURL string

	// RemoteURL is the DevTools websocket of an already running browser.
	// When empty a headless Chrome is started.
	RemoteURL string

	Logger *slog.Logger
}

// Driver implements browser.Driver on chromedp.
type Driver struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	base    *url.URL
	logger  *slog.Logger
	gen     uint64
	visited bool
}

var _ browser.Driver = (*Driver)(nil)

// New connects to or starts a browser and opens one tab.
func New(ctx context.Context, opts Options) (*Driver, error) {
	base, err := parseBase(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			logger.Error(fmt.Sprintf(format, args...))
		}),
	)

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		allocCancel()
		return nil, fmt.Errorf("chrome: start: %w", err)
	}
	return &Driver{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		base:   base,
		logger: logger,
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("chrome: invalid base URL %q", raw)
	}
	return base, nil
}

// run executes actions on the tab, honouring cancellation of the caller's ctx.
func (d *Driver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(d.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

const snapshotJS = `(() => {
  const live = document.documentElement;
  const clone = live.cloneNode(true);
  const stamp = (a, b) => {
    const cs = getComputedStyle(a);
    const shown = !!(a.offsetWidth || a.offsetHeight || a.getClientRects().length) && cs.visibility !== 'hidden';
    b.setAttribute('data-hx-visible', shown ? 'true' : 'false');
    b.setAttribute('data-hx-color', cs.color);
    const bg = cs.backgroundColor;
    if (bg && bg !== 'transparent' && bg !== 'rgba(0, 0, 0, 0)') b.setAttribute('data-hx-bg', bg);
    if (a.tagName === 'INPUT' && (a.type === 'checkbox' || a.type === 'radio')) {
      b.setAttribute('data-hx-checked', a.checked ? 'true' : 'false');
    } else if (a.tagName === 'INPUT' || a.tagName === 'TEXTAREA' || a.tagName === 'SELECT') {
      b.setAttribute('data-hx-value', a.value);
    }
    if (a === document.activeElement && a !== document.body) b.setAttribute('data-hx-focused', 'true');
    for (let i = 0; i < a.children.length; i++) stamp(a.children[i], b.children[i]);
  };
  stamp(live, clone);
  return {url: location.href, html: clone.outerHTML};
})()`

type snapshot struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

// Snapshot serialises the live page.
func (d *Driver) Snapshot(ctx context.Context) (*dom.Document, error) {
	var snap snapshot
	if err := d.run(ctx, chromedp.Evaluate(snapshotJS, &snap)); err != nil {
		return nil, fmt.Errorf("chrome: snapshot: %w", err)
	}
	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.mu.Unlock()
	return dom.Parse(snap.HTML, snap.URL, gen)
}

// JSPath renders a child-index path as a JavaScript element expression.
func JSPath(p dom.Path) string {
	var b strings.Builder
	b.WriteString("document.documentElement")
	for _, idx := range p {
		b.WriteString(".children[")
		b.WriteString(strconv.Itoa(idx))
		b.WriteString("]")
	}
	return b.String()
}

var keys = map[browser.Key]string{
	browser.KeyEnter:     kb.Enter,
	browser.KeyEscape:    kb.Escape,
	browser.KeyBackspace: kb.Backspace,
}

// Interact applies in to the element at t. The element must still be at its
// path with the same fingerprint.
func (d *Driver) Interact(ctx context.Context, t browser.Target, in browser.Input) error {
	doc, err := d.Snapshot(ctx)
	if err != nil {
		return err
	}
	el, ok := doc.At(t.Path)
	if !ok || el.Fingerprint() != t.Fingerprint {
		return fmt.Errorf("%w: %s at %s", browser.ErrStaleElement, t.Fingerprint, t.Path)
	}

	sel := JSPath(t.Path)
	var action chromedp.Action
	switch in.Kind {
	case browser.InputType:
		action = chromedp.SendKeys(sel, in.Text, chromedp.ByJSPath)
	case browser.InputKey:
		k, ok := keys[in.Key]
		if !ok {
			return fmt.Errorf("chrome: unsupported key %q", in.Key)
		}
		action = chromedp.SendKeys(sel, k, chromedp.ByJSPath)
	case browser.InputClick:
		action = chromedp.Click(sel, chromedp.ByJSPath)
	case browser.InputDblClick:
		action = chromedp.DoubleClick(sel, chromedp.ByJSPath)
	case browser.InputCheck, browser.InputUncheck:
		if el.Checked() == (in.Kind == browser.InputCheck) {
			return nil
		}
		action = chromedp.Click(sel, chromedp.ByJSPath)
	case browser.InputClear:
		action = chromedp.Clear(sel, chromedp.ByJSPath)
	case browser.InputBlur:
		action = chromedp.Blur(sel, chromedp.ByJSPath)
	case browser.InputFocus:
		action = chromedp.Focus(sel, chromedp.ByJSPath)
	default:
		return fmt.Errorf("chrome: unsupported input %q", in.Kind)
	}

	d.logger.Debug("interact", "path", t.Path.String(), "input", in.Kind)
	if err := d.run(ctx, action); err != nil {
		return fmt.Errorf("%w: %v", browser.ErrNotInteractable, err)
	}
	return nil
}

// Resolve returns the absolute URL for an application path.
func (d *Driver) Resolve(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return d.base.String()
	}
	return d.base.ResolveReference(ref).String()
}

// Origin returns the application origin, e.g. "http://localhost:8888".
func (d *Driver) Origin() string {
	return d.base.Scheme + "://" + d.base.Host
}

// Visit navigates to path and waits for the body.
func (d *Driver) Visit(ctx context.Context, path string) error {
	target := d.Resolve(path)
	if err := d.run(ctx, chromedp.Navigate(target), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("chrome: visit %s: %w", target, err)
	}
	d.mu.Lock()
	d.visited = true
	d.mu.Unlock()
	return nil
}

// Back goes one history entry back.
func (d *Driver) Back(ctx context.Context) error {
	return d.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cur, entries, err := page.GetNavigationHistory().Do(ctx)
		if err != nil {
			return err
		}
		if cur <= 0 || cur > int64(len(entries)-1) {
			return browser.ErrNoHistory
		}
		// Entries before the first application visit belong to the blank tab.
		if strings.HasPrefix(entries[cur-1].URL, "about:") {
			return browser.ErrNoHistory
		}
		return page.NavigateToHistoryEntry(entries[cur-1].ID).Do(ctx)
	}))
}

// Reload reloads the page.
func (d *Driver) Reload(ctx context.Context) error {
	return d.run(ctx, chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery))
}

// ClearStorage clears the application origin's local storage.
func (d *Driver) ClearStorage(ctx context.Context) error {
	return d.run(ctx, storage.ClearDataForOrigin(d.Origin(), "local_storage"))
}

// BlurActive blurs document.activeElement.
func (d *Driver) BlurActive(ctx context.Context) error {
	d.mu.Lock()
	visited := d.visited
	d.mu.Unlock()
	if !visited {
		return nil
	}
	return d.run(ctx, chromedp.Evaluate(`document.activeElement && document.activeElement.blur()`, nil))
}

// Close shuts the tab and, when it was started here, the browser.
func (d *Driver) Close() error {
	d.cancel()
	if err := d.ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Package todoapp is an in-process TodoMVC application that implements the
// browser driver port.
//
// It renders the TodoMVC markup (new-todo input, todo-list, toggle-all,
// counter, filters, clear-completed) as a document snapshot and applies input
// the way the browser application reacts to it. State persists through a
// Storage backend, routes live in the URL fragment with a history stack, and
// an optional render latency makes the page update asynchronously after each
// input, as a real application does.
package todoapp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/todocheck/internal/browser"
	"github.com/roach88/todocheck/internal/dom"
)

// DefaultBaseURL is the origin reported in snapshot URLs.
const DefaultBaseURL = "http://todoapp.local/"

// App is the in-process application. It is safe for concurrent use.
type App struct {
	mu      sync.Mutex
	storage Storage
	latency time.Duration
	baseURL string
	logger  *slog.Logger

	loaded  bool
	list    *list
	st      state
	history []Route
	hpos    int

	doc     *dom.Document
	gen     uint64
	pending *time.Timer
	closed  bool
}

// Option configures an App.
type Option func(*App)

// WithStorage sets the persistence backend (MemoryStorage by default).
func WithStorage(s Storage) Option {
	return func(a *App) { a.storage = s }
}

// WithLatency delays re-rendering by d after every input.
func WithLatency(d time.Duration) Option {
	return func(a *App) { a.latency = d }
}

// WithBaseURL sets the origin used in snapshot URLs.
func WithBaseURL(u string) Option {
	return func(a *App) { a.baseURL = u }
}

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// New creates an App showing a blank page until the first Visit.
func New(opts ...Option) *App {
	a := &App{
		storage: NewMemoryStorage(),
		baseURL: DefaultBaseURL,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		list:    newList(nil),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.doc = dom.MustParse(blankPage)
	return a
}

var _ browser.Driver = (*App)(nil)

// Snapshot returns the page as currently rendered.
func (a *App) Snapshot(ctx context.Context) (*dom.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.doc, nil
}

// Items returns the current todos.
func (a *App) Items() []Item {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.list.snapshot()
}

// Route returns the current route.
func (a *App) Route() Route {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st.route
}

// Visit loads path as a fresh page: state comes from storage, history starts over.
func (a *App) Visit(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	route := ParseRoute(path)
	if err := a.load(ctx, route); err != nil {
		return err
	}
	a.history = []Route{route}
	a.hpos = 0
	a.logger.Debug("visit", "path", path, "route", route, "items", len(a.list.items))
	return a.renderNow()
}

// Reload reloads the current page from storage, keeping history.
func (a *App) Reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	route := RouteAll
	if a.loaded {
		route = a.st.route
	}
	if err := a.load(ctx, route); err != nil {
		return err
	}
	if len(a.history) == 0 {
		a.history = []Route{route}
		a.hpos = 0
	}
	return a.renderNow()
}

// Back returns to the previous route.
func (a *App) Back(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded || a.hpos == 0 {
		return browser.ErrNoHistory
	}
	a.hpos--
	a.st.route = a.history[a.hpos]
	a.logger.Debug("back", "route", a.st.route)
	return a.renderNow()
}

// ClearStorage wipes persisted todos. The open page keeps its state until the
// next Visit or Reload.
func (a *App) ClearStorage(ctx context.Context) error {
	return a.storage.Clear(ctx)
}

// BlurActive removes focus from whatever has it, committing an open edit.
func (a *App) BlurActive(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		return nil
	}
	if err := a.blur(ctx); err != nil {
		return err
	}
	a.changed()
	return nil
}

// Close stops pending renders.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	return nil
}

// Interact applies in to the element t identifies on the rendered page.
func (a *App) Interact(ctx context.Context, t browser.Target, in browser.Input) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	el, ok := a.doc.At(t.Path)
	if !ok || el.Fingerprint() != t.Fingerprint {
		return fmt.Errorf("%w: %s at %s", browser.ErrStaleElement, t.Fingerprint, t.Path)
	}
	c := classify(el)
	a.logger.Debug("interact", "control", c.kind, "id", c.id, "input", in.Kind, "key", in.Key)

	if err := a.apply(ctx, c, in); err != nil {
		return err
	}
	a.changed()
	return nil
}

func (a *App) load(ctx context.Context, route Route) error {
	data, err := a.storage.Load(ctx)
	if err != nil {
		return fmt.Errorf("load todos: %w", err)
	}
	items, err := decodeItems(data)
	if err != nil {
		return err
	}
	a.list = newList(items)
	a.st = state{route: route, focus: focusNewTodo}
	a.loaded = true
	return nil
}

func (a *App) save(ctx context.Context) error {
	data, err := encodeItems(a.list.items)
	if err != nil {
		return err
	}
	if err := a.storage.Save(ctx, data); err != nil {
		return fmt.Errorf("save todos: %w", err)
	}
	return nil
}

// changed re-renders now, or after the configured latency.
func (a *App) changed() {
	if a.latency <= 0 {
		if err := a.render(); err != nil {
			a.logger.Error("render failed", "err", err)
		}
		return
	}
	if a.pending != nil || a.closed {
		return
	}
	a.pending = time.AfterFunc(a.latency, func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.pending = nil
		if a.closed {
			return
		}
		if err := a.render(); err != nil {
			a.logger.Error("render failed", "err", err)
		}
	})
}

// renderNow renders synchronously, dropping any pending render. Navigation
// completes before the driver returns.
func (a *App) renderNow() error {
	if a.pending != nil {
		a.pending.Stop()
		a.pending = nil
	}
	return a.render()
}

func (a *App) render() error {
	st := a.st
	st.items = a.list.items
	src, err := renderPage(st)
	if err != nil {
		return err
	}
	a.gen++
	doc, err := dom.Parse(src, a.baseURL+string(a.st.route), a.gen)
	if err != nil {
		return err
	}
	a.doc = doc
	return nil
}

type controlKind string

const (
	ctlNewTodo        controlKind = "new-todo"
	ctlEdit           controlKind = "edit"
	ctlToggle         controlKind = "toggle"
	ctlToggleAll      controlKind = "toggle-all"
	ctlLabel          controlKind = "label"
	ctlDestroy        controlKind = "destroy"
	ctlFilter         controlKind = "filter"
	ctlClearCompleted controlKind = "clear-completed"
	ctlOther          controlKind = "other"
)

type control struct {
	kind  controlKind
	id    int64
	route Route
}

func classify(el dom.Element) control {
	id := itemID(el)
	switch {
	case el.HasClass("new-todo"):
		return control{kind: ctlNewTodo}
	case el.HasClass("edit"):
		return control{kind: ctlEdit, id: id}
	case el.HasClass("toggle-all"):
		return control{kind: ctlToggleAll}
	case el.HasClass("toggle"):
		return control{kind: ctlToggle, id: id}
	case el.HasClass("destroy"):
		return control{kind: ctlDestroy, id: id}
	case el.HasClass("clear-completed"):
		return control{kind: ctlClearCompleted}
	case el.Tag() == "label" && id != 0:
		return control{kind: ctlLabel, id: id}
	case el.Tag() == "a":
		if href, ok := el.Attr("href"); ok {
			return control{kind: ctlFilter, route: ParseRoute(href)}
		}
	}
	return control{kind: ctlOther}
}

// itemID returns the data-id of the enclosing todo-list item, or 0.
func itemID(el dom.Element) int64 {
	for n := el.Node(); n != nil; n = n.Parent {
		if n.Data != "li" {
			continue
		}
		for _, attr := range n.Attr {
			if attr.Key == "data-id" {
				id, _ := strconv.ParseInt(attr.Val, 10, 64)
				return id
			}
		}
	}
	return 0
}

func (c control) focusKey() string {
	switch c.kind {
	case ctlNewTodo:
		return focusNewTodo
	case ctlEdit:
		return focusEdit
	case ctlToggleAll:
		return focusToggleAll
	case ctlToggle:
		return toggleFocus(c.id)
	case ctlDestroy:
		return destroyFocus(c.id)
	case ctlFilter:
		return filterFocus(c.route)
	case ctlClearCompleted:
		return focusClearCompleted
	}
	return ""
}

// moveFocus focuses c, blurring the previous owner first.
func (a *App) moveFocus(ctx context.Context, c control) error {
	key := c.focusKey()
	if a.st.focus == key {
		return nil
	}
	if err := a.blur(ctx); err != nil {
		return err
	}
	a.st.focus = key
	return nil
}

// blur drops focus. Leaving the edit field commits the edit.
func (a *App) blur(ctx context.Context) error {
	wasEditing := a.st.focus == focusEdit && a.st.editing != 0
	a.st.focus = ""
	if wasEditing {
		return a.commitEdit(ctx)
	}
	return nil
}

func (a *App) apply(ctx context.Context, c control, in browser.Input) error {
	if !a.loaded {
		return browser.ErrNotInteractable
	}
	if in.Kind == browser.InputBlur {
		if a.st.focus == c.focusKey() {
			return a.blur(ctx)
		}
		return nil
	}
	if err := a.moveFocus(ctx, c); err != nil {
		return err
	}

	switch c.kind {
	case ctlNewTodo:
		return a.applyNewTodo(ctx, in)
	case ctlEdit:
		if a.st.editing != c.id {
			return browser.ErrNotInteractable
		}
		return a.applyEdit(ctx, in)
	case ctlToggle:
		return a.applyToggle(ctx, c.id, in)
	case ctlToggleAll:
		switch in.Kind {
		case browser.InputCheck:
			return a.mutate(ctx, a.list.setAll(true))
		case browser.InputUncheck:
			return a.mutate(ctx, a.list.setAll(false))
		case browser.InputClick:
			return a.mutate(ctx, a.list.setAll(!a.list.allCompleted()))
		}
	case ctlLabel:
		if in.Kind == browser.InputDblClick {
			it, ok := a.list.get(c.id)
			if !ok {
				return browser.ErrNotInteractable
			}
			a.st.editing = it.ID
			a.st.editText = it.Title
			a.st.focus = focusEdit
		}
	case ctlDestroy:
		if in.Kind == browser.InputClick {
			return a.mutate(ctx, a.list.remove(c.id))
		}
	case ctlClearCompleted:
		if in.Kind == browser.InputClick {
			return a.mutate(ctx, a.list.clearCompleted() > 0)
		}
	case ctlFilter:
		if in.Kind == browser.InputClick {
			a.navigate(c.route)
		}
	}
	return nil
}

func (a *App) applyNewTodo(ctx context.Context, in browser.Input) error {
	switch in.Kind {
	case browser.InputType:
		a.st.draft += in.Text
	case browser.InputClear:
		a.st.draft = ""
	case browser.InputKey:
		switch in.Key {
		case browser.KeyEnter:
			_, added := a.list.add(a.st.draft)
			a.st.draft = ""
			return a.mutate(ctx, added)
		case browser.KeyBackspace:
			a.st.draft = dropLastRune(a.st.draft)
		}
	}
	return nil
}

func (a *App) applyEdit(ctx context.Context, in browser.Input) error {
	switch in.Kind {
	case browser.InputType:
		a.st.editText += in.Text
	case browser.InputClear:
		a.st.editText = ""
	case browser.InputKey:
		switch in.Key {
		case browser.KeyEnter:
			a.st.focus = ""
			return a.commitEdit(ctx)
		case browser.KeyEscape:
			a.st.editing = 0
			a.st.editText = ""
			a.st.focus = ""
		case browser.KeyBackspace:
			a.st.editText = dropLastRune(a.st.editText)
		}
	}
	return nil
}

func (a *App) applyToggle(ctx context.Context, id int64, in browser.Input) error {
	it, ok := a.list.get(id)
	if !ok {
		return browser.ErrNotInteractable
	}
	switch in.Kind {
	case browser.InputCheck:
		return a.mutate(ctx, a.list.setCompleted(id, true))
	case browser.InputUncheck:
		return a.mutate(ctx, a.list.setCompleted(id, false))
	case browser.InputClick:
		return a.mutate(ctx, a.list.setCompleted(id, !it.Completed))
	}
	return nil
}

func (a *App) commitEdit(ctx context.Context) error {
	id, text := a.st.editing, a.st.editText
	a.st.editing = 0
	a.st.editText = ""
	return a.mutate(ctx, a.list.rename(id, text))
}

// mutate persists the list when the last operation changed it.
func (a *App) mutate(ctx context.Context, changed bool) error {
	if !changed {
		return nil
	}
	return a.save(ctx)
}

func (a *App) navigate(r Route) {
	if r == a.st.route {
		return
	}
	a.history = append(a.history[:a.hpos+1], r)
	a.hpos++
	a.st.route = r
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}

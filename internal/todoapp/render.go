package todoapp

import (
	"embed"
	"html/template"
	"strconv"
	"strings"
)

//go:embed page.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "page.html.tmpl"))

// Text colours. Every pair clears the 4.5:1 contrast minimum on its background.
const (
	colorText      = "#4d4d4d"
	colorCompleted = "#6b6b6b"
)

type pageView struct {
	Draft            string
	DraftFocused     bool
	HasItems         bool
	AllCompleted     bool
	ToggleAllFocused bool
	Items            []itemView
	Remaining        int
	ItemWord         string
	Completed        int
	ClearFocused     bool
	Filters          []filterView
}

type itemView struct {
	ID            int64
	Title         string
	Class         string
	Completed     bool
	Editing       bool
	EditText      string
	Color         string
	ToggleFocused bool
	EditFocused   bool
}

type filterView struct {
	Href     string
	Label    string
	Selected bool
	Focused  bool
}

// state is everything the page shows.
type state struct {
	items    []Item
	route    Route
	draft    string
	editing  int64
	editText string
	focus    string
}

// Focus keys name the focusable controls.
const (
	focusNewTodo        = "new-todo"
	focusToggleAll      = "toggle-all"
	focusEdit           = "edit"
	focusClearCompleted = "clear-completed"
	focusTogglePrefix   = "toggle:"
	focusDestroyPrefix  = "destroy:"
	focusFilterPrefix   = "filter:"
)

func toggleFocus(id int64) string  { return focusTogglePrefix + strconv.FormatInt(id, 10) }
func destroyFocus(id int64) string { return focusDestroyPrefix + strconv.FormatInt(id, 10) }
func filterFocus(r Route) string   { return focusFilterPrefix + string(r) }

func buildView(st state) pageView {
	v := pageView{
		Draft:            st.draft,
		DraftFocused:     st.focus == focusNewTodo,
		HasItems:         len(st.items) > 0,
		ToggleAllFocused: st.focus == focusToggleAll,
		ClearFocused:     st.focus == focusClearCompleted,
	}

	completed := 0
	for _, it := range st.items {
		if it.Completed {
			completed++
		}
		if !st.route.Includes(it) {
			continue
		}
		iv := itemView{
			ID:            it.ID,
			Title:         it.Title,
			Completed:     it.Completed,
			Editing:       st.editing == it.ID,
			Color:         colorText,
			ToggleFocused: st.focus == toggleFocus(it.ID),
		}
		var classes []string
		if it.Completed {
			classes = append(classes, "completed")
			iv.Color = colorCompleted
		}
		if iv.Editing {
			classes = append(classes, "editing")
			iv.EditText = st.editText
			iv.EditFocused = st.focus == focusEdit
		}
		iv.Class = strings.Join(classes, " ")
		v.Items = append(v.Items, iv)
	}

	v.Completed = completed
	v.Remaining = len(st.items) - completed
	v.AllCompleted = v.HasItems && v.Remaining == 0
	v.ItemWord = "items"
	if v.Remaining == 1 {
		v.ItemWord = "item"
	}

	for _, f := range []struct {
		route Route
		label string
	}{{RouteAll, "All"}, {RouteActive, "Active"}, {RouteCompleted, "Completed"}} {
		v.Filters = append(v.Filters, filterView{
			Href:     string(f.route),
			Label:    f.label,
			Selected: st.route == f.route,
			Focused:  st.focus == filterFocus(f.route),
		})
	}
	return v
}

func renderPage(st state) (string, error) {
	var b strings.Builder
	if err := pageTemplate.ExecuteTemplate(&b, "page", buildView(st)); err != nil {
		return "", err
	}
	return b.String(), nil
}

const blankPage = `<html><head></head><body></body></html>`

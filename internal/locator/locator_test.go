package locator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/todocheck/internal/dom"
)

const page = `<html><head><title>todos</title></head><body>` +
	`<section class="todoapp">` +
	`<input class="new-todo" data-hx-focused="true">` +
	`<ul class="todo-list">` +
	`<li data-id="1"><div class="view"><input class="toggle" type="checkbox"><label>buy some cheese</label></div></li>` +
	`<li data-id="2" class="completed"><div class="view"><input class="toggle" type="checkbox" checked><label>feed the cat</label></div></li>` +
	`<li data-id="3"><div class="view"><input class="toggle" type="checkbox"><label>book a doctors appointment</label></div></li>` +
	`</ul>` +
	`<footer class="footer"><span class="todo-count"><strong>2</strong> items left</span>` +
	`<ul class="filters"><li><a href="#/" class="selected">All</a></li><li><a href="#/active">Active</a></li><li><a href="#/completed">Completed</a></li></ul>` +
	`</footer></section></body></html>`

func TestFind_DocumentOrderAndEmpty(t *testing.T) {
	doc := dom.MustParse(page)

	set, err := Find(doc, ".todo-list li")
	require.NoError(t, err)
	require.Equal(t, 3, set.Len())
	assert.Equal(t, "buy some cheese", set.At(0).Text())
	assert.Equal(t, "book a doctors appointment", set.At(2).Text())

	none, err := Find(doc, ".clear-completed")
	require.NoError(t, err, "zero matches is not an error")
	assert.True(t, none.Empty())
}

func TestFind_Scoped(t *testing.T) {
	doc := dom.MustParse(page)
	footer, err := Find(doc, ".footer")
	require.NoError(t, err)

	links, err := Find(doc, "li", footer.At(0))
	require.NoError(t, err)
	assert.Equal(t, 3, links.Len(), "todo items are outside the scope")
}

func TestFind_InvalidSelector(t *testing.T) {
	doc := dom.MustParse(page)
	_, err := Find(doc, "li[")
	assert.Error(t, err)
}

func TestContains_DeepestFirst(t *testing.T) {
	doc := dom.MustParse(page)

	got, err := Get(".filters").Contains("Active").Resolve(doc)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "a", got.At(0).Tag())

	count, err := Get(".todo-count").Contains("2 items left").Resolve(doc)
	require.NoError(t, err)
	require.Equal(t, 1, count.Len())
	assert.True(t, count.At(0).HasClass("todo-count"), "subject itself can match")
}

func TestContainsMatching_YieldsListItem(t *testing.T) {
	doc := dom.MustParse(page)

	got, err := Get(".todo-list li").ContainsMatching("li", "feed the cat").Resolve(doc)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.True(t, got.At(0).HasClass("completed"))

	toggle, err := Get(".todo-list li").ContainsMatching("li", "feed the cat").Find(".toggle").Resolve(doc)
	require.NoError(t, err)
	require.Equal(t, 1, toggle.Len())
	assert.True(t, toggle.At(0).Checked())
}

func TestQuery_EqFirstLast(t *testing.T) {
	doc := dom.MustParse(page)

	second, err := Get(".todo-list li").Eq(1).Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, "feed the cat", second.At(0).Text())

	last, err := Get(".todo-list li").Eq(-1).Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, "book a doctors appointment", last.At(0).Text())

	first, err := Get(".todo-list li").First().Resolve(doc)
	require.NoError(t, err)
	assert.Equal(t, "buy some cheese", first.At(0).Text())

	out, err := Get(".todo-list li").Eq(7).Resolve(doc)
	require.NoError(t, err)
	assert.True(t, out.Empty())
}

func TestQuery_FindOnEmptyStaysEmpty(t *testing.T) {
	doc := dom.MustParse(page)
	got, err := Get(".missing").Find("li").Resolve(doc)
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestQuery_Focused(t *testing.T) {
	doc := dom.MustParse(page)
	got, err := Focused().Resolve(doc)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.True(t, got.At(0).HasClass("new-todo"))
}

func TestQuery_ContainsText(t *testing.T) {
	doc := dom.MustParse(page)
	got, err := ContainsText("Completed").Resolve(doc)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "a", got.At(0).Tag())
	assert.Equal(t, `contains("Completed")`, ContainsText("Completed").String())
}

func TestQuery_StringAndAlias(t *testing.T) {
	q := Get(".todo-list li").Eq(1).Find(".toggle")
	assert.Equal(t, `get(".todo-list li").eq(1).find(".toggle")`, q.String())

	named := Get(".todo-list li").Named("todos").Eq(1)
	assert.Equal(t, "@todos.eq(1)", named.String())
	assert.Equal(t, "todos", named.Alias())
	assert.Equal(t, `get(".todo-list li").eq(1)`, named.Plain().String())
}

func TestQuery_ResolveFrom(t *testing.T) {
	doc := dom.MustParse(page)
	completed, err := Find(doc, ".completed")
	require.NoError(t, err)

	// the tail runs against the supplied base, not the alias's own query
	q := Get(".todo-list li").Named("todos").Find("label")
	got, err := q.ResolveFrom(doc, completed)
	require.NoError(t, err)
	assert.Equal(t, "feed the cat", got.Text())

	// without an alias the base is ignored
	got, err = Get(".todo-list li").ResolveFrom(doc, completed)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
}

func TestQuery_Immutable(t *testing.T) {
	base := Get(".todo-list li")
	a := base.Eq(0)
	b := base.Eq(2)
	assert.Equal(t, `get(".todo-list li").eq(0)`, a.String())
	assert.Equal(t, `get(".todo-list li").eq(2)`, b.String())
	assert.Equal(t, `get(".todo-list li")`, base.String())
}

func TestQuery_Empty(t *testing.T) {
	_, err := Query{}.Resolve(dom.MustParse(page))
	assert.Error(t, err)
}

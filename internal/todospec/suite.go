// Package todospec is the TodoMVC end-to-end suite.
//
// Suite builds the context tree the runner executes against any driver: the
// in-process todoapp or a real browser. Every case starts from cleared storage
// and a fresh visit of "/", and ends with focus removed from the page.
package todospec

import (
	"context"
	"strings"

	"github.com/roach88/todocheck/internal/engine"
	"github.com/roach88/todocheck/internal/expect"
	"github.com/roach88/todocheck/internal/session"
)

// Fixture titles.
const (
	TodoItemOne    = "buy some cheese"
	TodoItemTwo    = "feed the cat"
	TodoItemThree  = "book a doctors appointment"
	NewTodoItemOne = "Test the todo for cypress"
)

type group = engine.Context[*session.Session]

// step adapts a case body written against the session to the runner.
func step(fn func(s *session.Session)) engine.Func[*session.Session] {
	return func(_ context.Context, sess *session.Session) error {
		fn(sess)
		return sess.Err()
	}
}

// CreateTodo adds title through the input, waits for its item and returns a
// chain for it.
func CreateTodo(s *session.Session, title string) *session.Chain {
	s.Get(".new-todo").Type(title + "{enter}")
	return s.Get(".todo-list li").ContainsMatching("li", strings.TrimSpace(title)).Should(expect.Exist)
}

// CreateDefaultTodos adds the three fixture todos and returns a chain for the items.
func CreateDefaultTodos(s *session.Session) *session.Chain {
	CreateTodo(s, TodoItemOne)
	CreateTodo(s, TodoItemTwo)
	CreateTodo(s, TodoItemThree)
	return s.Get(".todo-list li")
}

// Suite returns the TodoMVC suite.
func Suite() *group {
	return engine.Describe("Todo", func(c *group) {
		c.OnBeforeEach("reset", step(func(s *session.Session) {
			s.ClearStorage()
			s.Visit("/")
		}))
		c.OnAfterEach("blur", step(func(s *session.Session) {
			s.BlurActive()
		}))

		c.Describe("When page is initially opened", initiallyOpened)
		c.Describe("No Todos", noTodos)
		c.Describe("New Todo", newTodo)

		c.It("should show #main and #footer when items added", step(func(s *session.Session) {
			CreateTodo(s, TodoItemOne)
			s.Get(".main").Should(expect.BeVisible)
			s.Get(".footer").Should(expect.BeVisible)
		}))

		c.Describe("Mark all as completed", markAllAsCompleted)
		c.Describe("Item", item)
		c.Describe("Editing", editing)
		c.Describe("Counter", counter)
		c.Describe("Clear completed button", clearCompleted)
		c.Describe("Persistence", persistence)
		c.Describe("Routing", routing)
		c.Describe("Contrast", contrast)
	})
}

func withDefaultTodos(c *group) {
	c.OnBeforeEach("create default todos", step(func(s *session.Session) {
		CreateDefaultTodos(s).As("todos")
	}))
}

func initiallyOpened(c *group) {
	c.It("should focus on the todo input field", step(func(s *session.Session) {
		s.Focused().Should(expect.HaveClass("new-todo"))
	}))
}

func noTodos(c *group) {
	c.It("should hide #main and #footer", step(func(s *session.Session) {
		s.Get(".todo-list li").Should(expect.Not(expect.Exist))
		s.Get(".main").Should(expect.Not(expect.Exist))
		s.Get(".footer").Should(expect.Not(expect.Exist))
	}))
}

func newTodo(c *group) {
	c.It("should allow me to add todo items", step(func(s *session.Session) {
		s.Get(".new-todo").Type(NewTodoItemOne).Type("{enter}")
		s.Get(".todo-list li").Should(expect.HaveLength(1))
		s.Get(".todo-list li").Eq(0).Should(expect.Contain(NewTodoItemOne))
	}))

	c.It("should clear text input field when an item is added", step(func(s *session.Session) {
		s.Get(".new-todo").Type(TodoItemOne).Type("{enter}")
		s.Get(".new-todo").Should(expect.HaveText(""), expect.HaveValue(""))
	}))

	c.It("should append new items to the bottom of the list", step(func(s *session.Session) {
		CreateDefaultTodos(s).As("todos")
		s.Get(".todo-count").Contains("3 items left").Should(expect.Exist)
		s.Get("@todos").Eq(0).Find("label").Should(expect.Contain(TodoItemOne))
		s.Get("@todos").Eq(1).Find("label").Should(expect.Contain(TodoItemTwo))
		s.Get("@todos").Eq(2).Find("label").Should(expect.Contain(TodoItemThree))
	}))

	c.It("should trim text input", step(func(s *session.Session) {
		s.Get(".new-todo").Type("  " + TodoItemOne + "  ").Type("{enter}")
		s.Get(".todo-list li").Eq(0).Should(expect.HaveText(TodoItemOne))
	}))
}

func markAllAsCompleted(c *group) {
	withDefaultTodos(c)

	c.It("should allow me to mark all items as completed", step(func(s *session.Session) {
		s.Get(".toggle-all").Check()
		s.Get("@todos").Eq(0).Should(expect.HaveClass("completed"))
		s.Get("@todos").Eq(1).Should(expect.HaveClass("completed"))
		s.Get("@todos").Eq(2).Should(expect.HaveClass("completed"))
	}))

	c.It("should allow me to clear the complete state of all items", step(func(s *session.Session) {
		s.Get(".toggle-all").Check().Uncheck()
		s.Get("@todos").Eq(0).Should(expect.Not(expect.HaveClass("completed")))
		s.Get("@todos").Eq(1).Should(expect.Not(expect.HaveClass("completed")))
		s.Get("@todos").Eq(2).Should(expect.Not(expect.HaveClass("completed")))
	}))

	c.It("complete all checkbox should update state when items are completed / cleared", step(func(s *session.Session) {
		s.Get(".toggle-all").As("toggleAll").Check().Should(expect.BeChecked)
		s.Get(".todo-list li").Eq(0).As("firstTodo").Find(".toggle").Uncheck()
		s.Get("@toggleAll").Should(expect.Not(expect.BeChecked))
		s.Get("@firstTodo").Find(".toggle").Check()
		s.Get("@toggleAll").Should(expect.BeChecked)
	}))
}

func item(c *group) {
	c.It("should allow me to mark items as complete", step(func(s *session.Session) {
		CreateTodo(s, TodoItemTwo).As("firstTodo")
		s.Get("@firstTodo").Find(".toggle").Check()
		s.Get("@firstTodo").Should(expect.HaveClass("completed"))
		s.Get(".filters").Contains("Completed").Click()
		s.Get(".todo-list li").Contains(TodoItemTwo).Should(expect.Contain(TodoItemTwo))
	}))

	c.It("should allow me to un-mark items as complete", step(func(s *session.Session) {
		CreateTodo(s, TodoItemOne).As("firstTodo")
		CreateTodo(s, TodoItemTwo).As("secondTodo")
		s.Get("@firstTodo").Find(".toggle").Check()
		s.Get("@firstTodo").Should(expect.HaveClass("completed"))
		s.Get("@secondTodo").Should(expect.Not(expect.HaveClass("completed")))
		s.Get("@firstTodo").Find(".toggle").Uncheck()
		s.Get("@firstTodo").Should(expect.Not(expect.HaveClass("completed")))
		s.Get("@secondTodo").Should(expect.Not(expect.HaveClass("completed")))
	}))

	c.It("should allow me to edit an item", step(func(s *session.Session) {
		CreateTodo(s, TodoItemOne).As("firstTodo")
		s.Get("@firstTodo").Find("label").DblClick()
		s.Get("@firstTodo").Find(".edit").Clear().Type("buy some vegetables").Type("{enter}")
		s.Get("@firstTodo").Should(expect.Contain("buy some vegetables"))
	}))
}

func editing(c *group) {
	withDefaultTodos(c)

	editSecond := func(s *session.Session) {
		s.Get("@todos").Eq(1).As("secondTodo").Find("label").DblClick()
	}

	c.It("should hide other controls when editing", step(func(s *session.Session) {
		editSecond(s)
		s.Get("@secondTodo").Find(".toggle").Should(expect.Not(expect.BeVisible))
		s.Get("@secondTodo").Find("label").Should(expect.Not(expect.BeVisible))
	}))

	c.It("should save edits on blur", step(func(s *session.Session) {
		editSecond(s)
		s.Get("@secondTodo").Find(".edit").Clear().Type("buy some sausages").Blur()
		s.Get("@todos").Eq(0).Should(expect.Contain(TodoItemOne))
		s.Get("@secondTodo").Should(expect.Contain("buy some sausages"))
		s.Get("@todos").Eq(2).Should(expect.Contain(TodoItemThree))
	}))

	c.It("should trim entered text", step(func(s *session.Session) {
		editSecond(s)
		s.Get("@secondTodo").Find(".edit").Clear().Type("    buy some sausages    ").Type("{enter}")
		s.Get("@todos").Eq(0).Should(expect.Contain(TodoItemOne))
		s.Get("@secondTodo").Should(expect.Contain("buy some sausages"))
		s.Get("@todos").Eq(2).Should(expect.Contain(TodoItemThree))
	}))

	c.It("should remove the item if an empty text string was entered", step(func(s *session.Session) {
		editSecond(s)
		s.Get("@secondTodo").Find(".edit").Clear().Type("{enter}")
		s.Get("@todos").Should(expect.HaveLength(2))
	}))

	c.It("should cancel edits on escape", step(func(s *session.Session) {
		editSecond(s)
		s.Get("@secondTodo").Find(".edit").Clear().Type("foo{esc}")
		s.Get("@todos").Eq(0).Should(expect.Contain(TodoItemOne))
		s.Get("@todos").Eq(1).Should(expect.Contain(TodoItemTwo))
		s.Get("@todos").Eq(2).Should(expect.Contain(TodoItemThree))
	}))
}

func counter(c *group) {
	c.It("should display the current number of todo items", step(func(s *session.Session) {
		CreateTodo(s, TodoItemOne)
		s.Get(".todo-count").Contains("1 item left").Should(expect.Exist)
		CreateTodo(s, TodoItemTwo)
		s.Get(".todo-count").Contains("2 items left").Should(expect.Exist)
	}))
}

func clearCompleted(c *group) {
	withDefaultTodos(c)

	c.It("should display the correct text", step(func(s *session.Session) {
		s.Get("@todos").Eq(0).Find(".toggle").Check()
		s.Get(".clear-completed").Contains("Clear completed").Should(expect.Exist)
	}))

	c.It("should remove completed items when clicked", step(func(s *session.Session) {
		s.Get("@todos").Eq(1).Find(".toggle").Check()
		s.Get(".clear-completed").Click()
		s.Get("@todos").Should(expect.HaveLength(2))
		s.Get("@todos").Eq(0).Should(expect.Contain(TodoItemOne))
		s.Get("@todos").Eq(1).Should(expect.Contain(TodoItemThree))
	}))

	c.It("should be hidden when there are no items that are completed", step(func(s *session.Session) {
		s.Get("@todos").Eq(1).Find(".toggle").Check()
		s.Get(".clear-completed").Should(expect.BeVisible).Click()
		s.Get(".clear-completed").Should(expect.Not(expect.Exist))
	}))
}

func persistence(c *group) {
	c.It("should persist its data", step(func(s *session.Session) {
		testState := func() {
			s.Get("@firstTodo").Should(expect.Contain(TodoItemOne), expect.HaveClass("completed"))
			s.Get("@secondTodo").Should(expect.Contain(TodoItemTwo), expect.Not(expect.HaveClass("completed")))
		}
		CreateTodo(s, TodoItemOne).As("firstTodo")
		CreateTodo(s, TodoItemTwo).As("secondTodo")
		s.Get("@firstTodo").Find(".toggle").Check()
		testState()
		s.Reload()
		testState()
	}))
}

func routing(c *group) {
	withDefaultTodos(c)

	c.It("should allow me to display active items", step(func(s *session.Session) {
		s.Get("@todos").Eq(1).Find(".toggle").Check()
		s.Get(".filters").Contains("Active").Click()
		s.Get("@todos").Eq(0).Should(expect.Contain(TodoItemOne))
		s.Get("@todos").Eq(1).Should(expect.Contain(TodoItemThree))
	}))

	c.It("should respect the back button", step(func(s *session.Session) {
		s.Get("@todos").Eq(1).Find(".toggle").Check()
		s.Get(".filters").Contains("Active").Click()
		s.Get(".filters").Contains("Completed").Click()
		s.Get("@todos").Should(expect.HaveLength(1))
		s.Back()
		s.Get("@todos").Should(expect.HaveLength(2))
		s.Back()
		s.Get("@todos").Should(expect.HaveLength(3))
	}))

	c.It("should allow me to display completed items", step(func(s *session.Session) {
		s.Get("@todos").Eq(1).Find(".toggle").Check()
		s.Get(".filters").Contains("Completed").Click()
		s.Get("@todos").Should(expect.HaveLength(1))
		s.Get("@todos").Eq(0).Should(expect.Contain(TodoItemTwo))
	}))

	c.It("should allow me to display all items", step(func(s *session.Session) {
		s.Get("@todos").Eq(1).Find(".toggle").Check()
		s.Get(".filters").Contains("Active").Click()
		s.Get(".filters").Contains("Completed").Click()
		s.Get(".filters").Contains("All").Click()
		s.Get("@todos").Should(expect.HaveLength(3))
	}))

	c.It("should highlight the currently applied filter", step(func(s *session.Session) {
		s.Get(".filters").Within(func(s *session.Session) {
			s.Contains("All").Should(expect.HaveClass("selected"))
			s.Contains("Active").Click().Should(expect.HaveClass("selected"))
			s.Contains("Completed").Click().Should(expect.HaveClass("selected"))
		})
	}))
}

func contrast(c *group) {
	c.It("has good contrast when empty", step(func(s *session.Session) {
		s.CheckA11y("cat.color")
	}))

	c.It("has good contrast with several todos", step(func(s *session.Session) {
		s.Get(".new-todo").Type("learn testing{enter}").Type("be cool{enter}")
		s.Get(".todo-list li").Should(expect.HaveLength(2))
		s.CheckA11y("cat.color")
		s.Get(".todo-list li").First().Find(".toggle").Check()
		s.Get(".todo-list li").First().Should(expect.HaveClass("completed"))
		s.CheckA11y("cat.color")
	}))
}

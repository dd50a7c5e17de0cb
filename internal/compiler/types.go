package compiler

// RawStep is one undecoded step.
type RawStep = map[string]any

// ContextSpec is a named group of cases and nested contexts.
type ContextSpec struct {
	Name       string        `yaml:"name"`
	BeforeEach []RawStep     `yaml:"before_each,omitempty"`
	AfterEach  []RawStep     `yaml:"after_each,omitempty"`
	Cases      []CaseSpec    `yaml:"cases,omitempty"`
	Contexts   []ContextSpec `yaml:"contexts,omitempty"`
}

// CaseSpec is one test case.
type CaseSpec struct {
	Name  string    `yaml:"name"`
	Skip  bool      `yaml:"skip,omitempty"`
	Steps []RawStep `yaml:"steps"`
}

// CaseCount returns the number of cases in the subtree.
func (c ContextSpec) CaseCount() int {
	n := len(c.Cases)
	for _, child := range c.Contexts {
		n += child.CaseCount()
	}
	return n
}

// Step is a decoded step.
type Step struct {
	// Browser heads.
	Visit        string   `mapstructure:"visit"`
	Reload       bool     `mapstructure:"reload"`
	Back         bool     `mapstructure:"back"`
	ClearStorage bool     `mapstructure:"clear_storage"`
	BlurActive   bool     `mapstructure:"blur_active"`
	Audit        []string `mapstructure:"audit"` // rule IDs or tags; empty runs every rule

	// Element heads.
	Get      string `mapstructure:"get"` // selector or @alias
	Focused  bool   `mapstructure:"focused"`
	Contains string `mapstructure:"contains"`

	// Element modifiers.
	Find           string        `mapstructure:"find"`
	Filter         string        `mapstructure:"filter"`          // narrow to the first element containing this text
	FilterSelector string        `mapstructure:"filter_selector"` // with filter: only elements matching this selector
	Eq             *int          `mapstructure:"eq"`
	First          bool          `mapstructure:"first"`
	Last           bool          `mapstructure:"last"`
	As             string        `mapstructure:"as"`
	Within         []RawStep     `mapstructure:"within"`
	Do             string        `mapstructure:"do"`
	Text           string        `mapstructure:"text"`
	Should         []Expectation `mapstructure:"should"`

	head string
}

// Expectation is one should clause, e.g. {assert: have.length, value: 2}.
type Expectation struct {
	Assert string `mapstructure:"assert"`
	Value  any    `mapstructure:"value"`
}

// Head names the step's head key.
func (s Step) Head() string { return s.head }

// Step heads.
const (
	HeadVisit        = "visit"
	HeadReload       = "reload"
	HeadBack         = "back"
	HeadClearStorage = "clear_storage"
	HeadBlurActive   = "blur_active"
	HeadAudit        = "audit"
	HeadGet          = "get"
	HeadFocused      = "focused"
	HeadContains     = "contains"
)

var heads = []string{
	HeadVisit, HeadReload, HeadBack, HeadClearStorage, HeadBlurActive, HeadAudit,
	HeadGet, HeadFocused, HeadContains,
}

func isElementHead(h string) bool {
	return h == HeadGet || h == HeadFocused || h == HeadContains
}

// Actions accepted by do.
var actions = map[string]bool{
	"type": true, "clear": true, "click": true, "dblclick": true,
	"check": true, "uncheck": true, "blur": true, "focus": true,
}

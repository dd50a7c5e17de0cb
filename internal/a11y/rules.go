package a11y

import (
	"fmt"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/net/html"

	"github.com/roach88/todocheck/internal/dom"
)

// MinContrast is the WCAG 2 AA minimum for normal-size text.
const MinContrast = 4.5

// ColorContrast checks every visible element with its own text and a declared
// foreground colour against its effective background.
func ColorContrast() Rule {
	return Rule{
		ID:     "color-contrast",
		Tags:   []string{"cat.color", "wcag2aa", "wcag143"},
		Impact: ImpactSerious,
		Help:   "Elements must have sufficient color contrast",
		Check: func(doc *dom.Document) []NodeResult {
			var out []NodeResult
			walkElements(doc, func(e dom.Element) {
				if strings.TrimSpace(e.OwnText()) == "" || e.Color() == "" || !e.Visible() {
					return
				}
				back, err := EffectiveBackground(e.Backgrounds())
				var ratio float64
				if err == nil {
					ratio, err = contrastOver(e.Color(), back)
				}
				if err != nil {
					out = append(out, NodeResult{
						Target:  e.Path().String(),
						Element: e.Describe(),
						Summary: err.Error(),
					})
					return
				}
				if ratio < MinContrast {
					out = append(out, NodeResult{
						Target:  e.Path().String(),
						Element: e.Describe(),
						Summary: fmt.Sprintf("contrast %.2f:1 (%s on %s) is below %.1f:1", ratio, e.Color(), back.Hex(), MinContrast),
					})
				}
			})
			return out
		},
	}
}

// FormLabel checks that visible form controls have an accessible name.
func FormLabel() Rule {
	return Rule{
		ID:     "label",
		Tags:   []string{"cat.forms", "wcag2a", "wcag412"},
		Impact: ImpactCritical,
		Help:   "Form elements must have labels",
		Check: func(doc *dom.Document) []NodeResult {
			labelled := map[string]bool{}
			walkElements(doc, func(e dom.Element) {
				if e.Tag() == "label" {
					if id, ok := e.Attr("for"); ok {
						labelled[id] = true
					}
				}
			})

			var out []NodeResult
			walkElements(doc, func(e dom.Element) {
				if !isFormControl(e) || !e.Visible() {
					return
				}
				if hasAccessibleName(e, labelled) {
					return
				}
				out = append(out, NodeResult{
					Target:  e.Path().String(),
					Element: e.Describe(),
					Summary: "form element has no label, aria-label, title or placeholder",
				})
			})
			return out
		},
	}
}

func isFormControl(e dom.Element) bool {
	switch e.Tag() {
	case "select", "textarea":
		return true
	case "input":
		t, _ := e.Attr("type")
		switch strings.ToLower(t) {
		case "hidden", "submit", "reset", "button", "image":
			return false
		}
		return true
	}
	return false
}

func hasAccessibleName(e dom.Element, labelled map[string]bool) bool {
	for _, a := range []string{"aria-label", "aria-labelledby", "title", "placeholder"} {
		if v, ok := e.Attr(a); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	if id, ok := e.Attr("id"); ok && labelled[id] {
		return true
	}
	for n := e.Node().Parent; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == "label" {
			return true
		}
	}
	return false
}

func walkElements(doc *dom.Document, fn func(dom.Element)) {
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			fn(doc.Element(n))
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root := doc.Root(); root.Valid() {
		walk(root.Node())
	}
}

// ContrastRatio returns the WCAG contrast ratio of fg over bg. A translucent
// bg is composited onto white and a translucent fg onto the result.
func ContrastRatio(fg, bg string) (float64, error) {
	back, err := EffectiveBackground([]string{bg})
	if err != nil {
		return 0, err
	}
	return contrastOver(fg, back)
}

// EffectiveBackground composites background layers, innermost first, onto an
// opaque white canvas. Layers behind the innermost opaque one are hidden and
// not parsed.
func EffectiveBackground(layers []string) (colorful.Color, error) {
	type layer struct {
		c     colorful.Color
		alpha float64
	}
	var stack []layer
	for _, l := range layers {
		c, alpha, err := ParseColor(l)
		if err != nil {
			return colorful.Color{}, fmt.Errorf("background: %w", err)
		}
		stack = append(stack, layer{c, alpha})
		if alpha >= 1 {
			break
		}
	}
	back := colorful.Color{R: 1, G: 1, B: 1}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i].alpha >= 1 {
			back = stack[i].c
			continue
		}
		back = back.BlendRgb(stack[i].c, stack[i].alpha)
	}
	return back, nil
}

func contrastOver(fg string, back colorful.Color) (float64, error) {
	front, alpha, err := ParseColor(fg)
	if err != nil {
		return 0, fmt.Errorf("foreground: %w", err)
	}
	if alpha < 1 {
		front = front.BlendRgb(back, 1-alpha)
	}
	l1, l2 := luminance(front), luminance(back)
	if l1 < l2 {
		l1, l2 = l2, l1
	}
	return (l1 + 0.05) / (l2 + 0.05), nil
}

func luminance(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

var namedColors = map[string]string{
	"white": "#ffffff",
	"black": "#000000",
	"red":   "#ff0000",
	"green": "#008000",
	"blue":  "#0000ff",
	"gray":  "#808080",
	"grey":  "#808080",
}

// ParseColor parses #rgb, #rrggbb, rgb(...) and rgba(...) colours, plus a few
// keywords. It returns the colour and its alpha.
func ParseColor(s string) (colorful.Color, float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if hex, ok := namedColors[s]; ok {
		s = hex
	}
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return colorful.Color{}, 0, fmt.Errorf("invalid colour %q: %w", s, err)
		}
		return c, 1, nil
	}

	var args string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		args = s[5 : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		args = s[4 : len(s)-1]
	default:
		return colorful.Color{}, 0, fmt.Errorf("unsupported colour %q", s)
	}

	parts := strings.FieldsFunc(args, func(r rune) bool { return r == ',' || r == ' ' || r == '/' })
	if len(parts) != 3 && len(parts) != 4 {
		return colorful.Color{}, 0, fmt.Errorf("invalid colour %q", s)
	}
	var ch [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(parts[i], 64)
		if err != nil || v < 0 || v > 255 {
			return colorful.Color{}, 0, fmt.Errorf("invalid colour channel %q in %q", parts[i], s)
		}
		ch[i] = v / 255
	}
	alpha := 1.0
	if len(parts) == 4 {
		a, err := strconv.ParseFloat(parts[3], 64)
		if err != nil || a < 0 || a > 1 {
			return colorful.Color{}, 0, fmt.Errorf("invalid alpha %q in %q", parts[3], s)
		}
		alpha = a
	}
	return colorful.Color{R: ch[0], G: ch[1], B: ch[2]}, alpha, nil
}

// Package classify assigns scanned units to extension categories.
//
// A unit belongs to the first category, in priority order, whose contract
// it satisfies. When several units fall into one category the one
// enumerated last is selected.
package classify

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasm-plugins/capability"
	"github.com/wippyai/wasm-plugins/loader"
	"github.com/wippyai/wasm-plugins/metrics"
)

// Extension categories.
const (
	CommandExtension = "command-extension"
	WebExtension     = "web-extension"
	GenericExtension = "generic-extension"
)

// Category pairs a name with the contract its units satisfy.
type Category struct {
	Name     string
	Contract capability.Contract
}

// DefaultCategories returns the built-in categories in priority order.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:     CommandExtension,
			Contract: capability.MustContract(CommandExtension, false, "run: func() -> s32"),
		},
		{
			Name: WebExtension,
			Contract: capability.MustContract(WebExtension, true,
				"alloc: func(size: u32) -> u32",
				"handle: func(request: string) -> u32"),
		},
		{
			Name:     GenericExtension,
			Contract: capability.MustContract(GenericExtension, false, "start: func()"),
		},
	}
}

// Classifier matches units against an ordered category list.
type Classifier struct {
	categories []Category
	metrics    *metrics.Collector
}

// New creates a classifier. Without categories it uses DefaultCategories.
func New(m *metrics.Collector, categories ...Category) *Classifier {
	if len(categories) == 0 {
		categories = DefaultCategories()
	}
	return &Classifier{categories: categories, metrics: m}
}

// Categories returns the category names in priority order.
func (c *Classifier) Categories() []string {
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	return names
}

// Match returns the first category u satisfies.
func (c *Classifier) Match(u *loader.Unit) (string, bool) {
	for _, cat := range c.categories {
		if cat.Contract.Satisfied(u) {
			return cat.Name, true
		}
	}
	return "", false
}

// Classify assigns units, given in enumeration order, to categories.
func (c *Classifier) Classify(units []*loader.Unit) *Result {
	r := &Result{
		order:    c.Categories(),
		selected: make(map[string]*loader.Unit),
		replaced: make(map[string][]string),
	}
	for _, u := range units {
		cat, ok := c.Match(u)
		if !ok {
			continue
		}
		if prev, taken := r.selected[cat]; taken {
			Logger().Warn("several units match one category; the last one wins",
				zap.String("category", cat),
				zap.String("replaced", prev.Name()),
				zap.String("selected", u.Name()))
			r.replaced[cat] = append(r.replaced[cat], prev.Name())
		}
		r.selected[cat] = u
	}
	for _, s := range r.Selections() {
		c.metrics.Classified(s.Category)
	}
	return r
}

// Selection is the unit chosen for one category.
type Selection struct {
	Category string
	Unit     *loader.Unit
}

// Result is the outcome of a classification.
type Result struct {
	order    []string
	selected map[string]*loader.Unit
	replaced map[string][]string
}

// Get returns the unit selected for category.
func (r *Result) Get(category string) (*loader.Unit, bool) {
	u, ok := r.selected[category]
	return u, ok
}

// Selections returns the selected units in category priority order.
func (r *Result) Selections() []Selection {
	var out []Selection
	for _, cat := range r.order {
		if u, ok := r.selected[cat]; ok {
			out = append(out, Selection{Category: cat, Unit: u})
		}
	}
	return out
}

// Replaced lists, in enumeration order, the units that matched category
// but lost to a later one.
func (r *Result) Replaced(category string) []string {
	return r.replaced[category]
}

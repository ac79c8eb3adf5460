package dependency

import (
	"sort"
	"sync"
)

// Row is a rendered field that depends on other fields
type Row struct {
	FieldID    string
	Expression *Expression
}

// Toggle is the visibility a row should have after a refresh
type Toggle struct {
	FieldID string `json:"field_id"`
	Visible bool   `json:"visible"`
	// Changed is true when the row flips relative to its last known state
	Changed bool `json:"changed"`
}

// Controller tracks which rows depend on which fields and recomputes
// their visibility when an input changes. It mirrors the browser
// controller shipped with the settings page.
type Controller struct {
	mu      sync.Mutex
	rows    []Row
	byField map[string][]int
	visible map[string]bool
}

// NewController indexes rows by the fields their conditions read.
// Rows without an expression are ignored. initial holds the visibility
// rows were rendered with; rows missing from it start visible.
func NewController(rows []Row, initial map[string]bool) *Controller {
	c := &Controller{
		byField: make(map[string][]int),
		visible: make(map[string]bool),
	}

	for _, row := range rows {
		if row.Expression == nil || len(row.Expression.Conditions) == 0 {
			continue
		}
		idx := len(c.rows)
		c.rows = append(c.rows, row)

		seen := make(map[string]bool)
		for _, cond := range row.Expression.Conditions {
			if cond.Field == "" || seen[cond.Field] {
				continue
			}
			seen[cond.Field] = true
			c.byField[cond.Field] = append(c.byField[cond.Field], idx)
		}

		v, ok := initial[row.FieldID]
		c.visible[row.FieldID] = !ok || v
	}

	return c
}

// Watched returns the sorted ids of fields that have dependents
func (c *Controller) Watched() []string {
	ids := make([]string, 0, len(c.byField))
	for id := range c.byField {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dependents returns the row ids that read fieldID, in render order
func (c *Controller) Dependents(fieldID string) []string {
	idxs := c.byField[fieldID]
	out := make([]string, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, c.rows[i].FieldID)
	}
	return out
}

// Refresh re-evaluates the rows that depend on changed, or every row when
// changed is empty, and records the new visibility.
func (c *Controller) Refresh(changed string, lookup Lookup) []Toggle {
	c.mu.Lock()
	defer c.mu.Unlock()

	var idxs []int
	if changed == "" {
		idxs = make([]int, len(c.rows))
		for i := range c.rows {
			idxs[i] = i
		}
	} else {
		idxs = c.byField[changed]
	}

	toggles := make([]Toggle, 0, len(idxs))
	for _, i := range idxs {
		row := c.rows[i]
		visible := Evaluate(row.Expression, lookup)
		toggles = append(toggles, Toggle{
			FieldID: row.FieldID,
			Visible: visible,
			Changed: c.visible[row.FieldID] != visible,
		})
		c.visible[row.FieldID] = visible
	}
	return toggles
}

// TriggerEvents returns the input events that should refresh dependents
// of an input of the given type.
func TriggerEvents(inputType string) []string {
	if inputType == "checkbox" {
		return []string{"change"}
	}
	return []string{"input", "change"}
}

// ResolveInputValue returns the value a live input contributes: checkboxes
// yield "1" when checked and "" otherwise.
func ResolveInputValue(inputType, value string, checked bool) string {
	if inputType == "checkbox" {
		if checked {
			return "1"
		}
		return ""
	}
	return value
}

package upload

import (
	"gallery/internal/exif"
)

// State is an immutable snapshot of the upload queue. Every transition returns
// a new State and leaves the receiver untouched.
type State struct {
	items   []Item
	focused string
}

// Items returns a copy of the queue in insertion order.
func (s State) Items() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of queued items.
func (s State) Len() int {
	return len(s.items)
}

// Focused returns the id of the item being edited, or "".
func (s State) Focused() string {
	return s.focused
}

// Find returns the item with id.
func (s State) Find(id string) (Item, bool) {
	if idx := s.index(id); idx >= 0 {
		return s.items[idx], true
	}
	return Item{}, false
}

func (s State) index(id string) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// with returns a copy of s whose item at idx is replaced.
func (s State) with(idx int, item Item) State {
	items := make([]Item, len(s.items))
	copy(items, s.items)
	items[idx] = item
	return State{items: items, focused: s.focused}
}

// Append adds items at the end. The first new item gains focus when nothing is focused.
func (s State) Append(items ...Item) State {
	if len(items) == 0 {
		return s
	}
	next := make([]Item, 0, len(s.items)+len(items))
	next = append(next, s.items...)
	next = append(next, items...)
	focused := s.focused
	if focused == "" {
		focused = items[0].ID
	}
	return State{items: next, focused: focused}
}

// Update applies user edits to an editable item. Unknown ids and items that
// are submitting or already uploaded are left alone.
func (s State) Update(id string, p Patch) State {
	idx := s.index(id)
	if idx < 0 || !s.items[idx].Status.Editable() {
		return s
	}
	return s.with(idx, p.apply(s.items[idx]))
}

// PatchMetadata fills capture time and camera from extracted metadata. It is a
// no-op when the item is gone or no longer editable, and never overwrites a
// field that already has a value.
func (s State) PatchMetadata(id string, meta exif.Metadata) State {
	idx := s.index(id)
	if idx < 0 || !s.items[idx].Status.Editable() {
		return s
	}
	item := s.items[idx]
	changed := false
	if item.TakenTime == "" && meta.TakenTime != "" {
		item.TakenTime = meta.TakenTime
		changed = true
	}
	if item.Camera == "" && meta.Camera != "" {
		item.Camera = meta.Camera
		changed = true
	}
	if !changed {
		return s
	}
	return s.with(idx, item)
}

// Remove drops id from the queue and returns the removed item. Focus is
// cleared when the focused item is removed.
func (s State) Remove(id string) (State, Item, bool) {
	idx := s.index(id)
	if idx < 0 {
		return s, Item{}, false
	}
	removed := s.items[idx]
	items := make([]Item, 0, len(s.items)-1)
	items = append(items, s.items[:idx]...)
	items = append(items, s.items[idx+1:]...)
	focused := s.focused
	if focused == id {
		focused = ""
	}
	return State{items: items, focused: focused}, removed, true
}

// Focus selects id for editing. Ids not in the queue are ignored.
func (s State) Focus(id string) State {
	if s.index(id) < 0 {
		return s
	}
	return State{items: s.items, focused: id}
}

// EnsureFocus focuses the first item when nothing is focused.
func (s State) EnsureFocus() State {
	if s.focused != "" || len(s.items) == 0 {
		return s
	}
	return State{items: s.items, focused: s.items[0].ID}
}

// ApplyDefaultTitles gives every untitled item its file-derived default title.
func (s State) ApplyDefaultTitles() State {
	var items []Item
	for i, item := range s.items {
		if item.Title != "" || !item.Status.Editable() {
			continue
		}
		if items == nil {
			items = make([]Item, len(s.items))
			copy(items, s.items)
		}
		items[i].Title = DefaultTitle(item.File.Name)
	}
	if items == nil {
		return s
	}
	return State{items: items, focused: s.focused}
}

// WorkingSet returns the items a submit run sends: everything not yet uploaded, in order.
func (s State) WorkingSet() []Item {
	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		if item.Status != StatusSucceeded {
			out = append(out, item)
		}
	}
	return out
}

// AllSucceeded reports whether the queue is non-empty and fully uploaded.
func (s State) AllSucceeded() bool {
	if len(s.items) == 0 {
		return false
	}
	for _, item := range s.items {
		if item.Status != StatusSucceeded {
			return false
		}
	}
	return true
}

// Counts tallies items by status.
func (s State) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, item := range s.items {
		counts[item.Status]++
	}
	return counts
}

// MarkSubmitting moves a pending or failed item to submitting and clears its error.
func (s State) MarkSubmitting(id string) State {
	idx := s.index(id)
	if idx < 0 || !s.items[idx].Status.Editable() {
		return s
	}
	item := s.items[idx]
	item.Status = StatusSubmitting
	item.Error = ""
	return s.with(idx, item)
}

// MarkSucceeded records a successful upload. Succeeded is terminal.
func (s State) MarkSucceeded(id string) State {
	idx := s.index(id)
	if idx < 0 || s.items[idx].Status == StatusSucceeded {
		return s
	}
	item := s.items[idx]
	item.Status = StatusSucceeded
	item.Error = ""
	return s.with(idx, item)
}

// MarkFailed records a failed upload with its message.
func (s State) MarkFailed(id, message string) State {
	idx := s.index(id)
	if idx < 0 || s.items[idx].Status == StatusSucceeded {
		return s
	}
	item := s.items[idx]
	item.Status = StatusFailed
	if message == "" {
		message = "Upload failed"
	}
	item.Error = message
	return s.with(idx, item)
}

// Package mirrorcfg gives the Mirror.Config JSON blob an explicit
// shape. Only the status and widgets fields are interpreted
// server-side.
package mirrorcfg

import (
	"encoding/json"
)

type Widget struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

type Document struct {
	Status  string   `json:"status,omitempty"`
	Widgets []Widget `json:"widgets,omitempty"`
}

// Parse decodes a stored config column. A corrupt document degrades to
// the empty document; the caller decides whether to log that. The
// second return reports whether a fallback happened.
func Parse(raw string) (Document, bool) {
	if raw == "" {
		return Document{}, false
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Document{}, true
	}
	return doc, false
}

func Serialize(doc Document) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Toggle flips the named widget's enabled flag. Returns false when no
// widget with that name exists; the document is left unchanged then.
func (d *Document) Toggle(name string) bool {
	for i := range d.Widgets {
		if d.Widgets[i].Name == name {
			d.Widgets[i].Enabled = !d.Widgets[i].Enabled
			return true
		}
	}
	return false
}

// FindWidget returns the widget with the given name, if any.
func (d *Document) FindWidget(name string) (Widget, bool) {
	for _, w := range d.Widgets {
		if w.Name == name {
			return w, true
		}
	}
	return Widget{}, false
}

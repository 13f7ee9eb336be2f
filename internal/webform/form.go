// Package webform fills in and submits HTML forms, used to push the latest
// fix to a BirdNET-Pi settings page.
package webform

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrFormNotFound is returned when the page has no form with the wanted id.
var ErrFormNotFound = errors.New("form not found")

type field struct {
	name  string
	value string
}

// Form is the submittable state of one HTML form.
type Form struct {
	ID     string
	Action string
	Method string
	fields []field
	closed bool
}

type option struct {
	value    string
	hasValue bool
	text     strings.Builder
	selected bool
}

func (o *option) resolved() string {
	if o.hasValue {
		return o.value
	}
	return strings.TrimSpace(o.text.String())
}

// ParseForm reads the form with the given id out of an HTML page. Only
// successful controls are kept: unchecked boxes, disabled controls and all
// but the first submit button are dropped.
func ParseForm(reader io.Reader, id string) (*Form, error) {
	var (
		form       *Form
		submitSeen bool

		selectName string
		options    []*option
		current    *option

		textareaName string
		textarea     strings.Builder
	)

	finishOption := func() {
		if current != nil {
			options = append(options, current)
			current = nil
		}
	}

	z := html.NewTokenizer(reader)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				if form == nil {
					return nil, fmt.Errorf("%w: #%s", ErrFormNotFound, id)
				}
				return form, nil
			}
			return nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			token := z.Token()

			if token.Data == "form" {
				if form == nil && attr(token, "id") == id {
					form = &Form{
						ID:     id,
						Action: attr(token, "action"),
						Method: strings.ToUpper(attr(token, "method")),
					}
					if form.Method == "" {
						form.Method = "GET"
					}
				}
				continue
			}
			if form == nil || form.closed {
				continue
			}

			name := attr(token, "name")
			_, disabled := lookup(token, "disabled")

			switch token.Data {
			case "input":
				if name == "" || disabled {
					continue
				}
				typ := strings.ToLower(attr(token, "type"))
				value, hasValue := lookup(token, "value")
				switch typ {
				case "checkbox", "radio":
					if _, checked := lookup(token, "checked"); !checked {
						continue
					}
					if !hasValue {
						value = "on"
					}
				case "submit", "image":
					if submitSeen {
						continue
					}
					submitSeen = true
				case "button", "reset", "file":
					continue
				}
				form.fields = append(form.fields, field{name: name, value: value})

			case "button":
				typ := strings.ToLower(attr(token, "type"))
				if typ != "" && typ != "submit" {
					continue
				}
				if name == "" || disabled || submitSeen {
					continue
				}
				submitSeen = true
				form.fields = append(form.fields, field{name: name, value: attr(token, "value")})

			case "select":
				if disabled {
					continue
				}
				selectName = name
				options = nil

			case "option":
				if selectName == "" {
					continue
				}
				finishOption()
				value, hasValue := lookup(token, "value")
				_, selected := lookup(token, "selected")
				current = &option{value: value, hasValue: hasValue, selected: selected}

			case "textarea":
				if name == "" || disabled {
					continue
				}
				textareaName = name
				textarea.Reset()
			}

		case html.TextToken:
			if current != nil {
				current.text.Write(z.Text())
			}
			if textareaName != "" {
				textarea.Write(z.Text())
			}

		case html.EndTagToken:
			token := z.Token()
			if form == nil {
				continue
			}
			switch token.Data {
			case "form":
				form.closed = true
			case "option":
				finishOption()
			case "select":
				finishOption()
				if selectName != "" && len(options) > 0 {
					chosen := options[0]
					for _, o := range options {
						if o.selected {
							chosen = o
							break
						}
					}
					form.fields = append(form.fields, field{name: selectName, value: chosen.resolved()})
				}
				selectName = ""
				options = nil
			case "textarea":
				if textareaName != "" {
					form.fields = append(form.fields, field{name: textareaName, value: textarea.String()})
					textareaName = ""
				}
			}
		}
	}
}

func attr(t html.Token, key string) string {
	v, _ := lookup(t, key)
	return v
}

func lookup(t html.Token, key string) (string, bool) {
	for _, a := range t.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Has reports whether the form carries a control called name.
func (f *Form) Has(name string) bool {
	for _, fl := range f.fields {
		if fl.name == name {
			return true
		}
	}
	return false
}

// Get returns the first value submitted for name.
func (f *Form) Get(name string) string {
	for _, fl := range f.fields {
		if fl.name == name {
			return fl.value
		}
	}
	return ""
}

// Set replaces the value of an existing control.
func (f *Form) Set(name, value string) error {
	for i := range f.fields {
		if f.fields[i].name == name {
			f.fields[i].value = value
			return nil
		}
	}
	return fmt.Errorf("form #%s has no field %q", f.ID, name)
}

// Clear drops a control from the submission.
func (f *Form) Clear(name string) {
	kept := f.fields[:0]
	for _, fl := range f.fields {
		if fl.name != name {
			kept = append(kept, fl)
		}
	}
	f.fields = kept
}

// Values returns the form data to submit.
func (f *Form) Values() url.Values {
	v := url.Values{}
	for _, fl := range f.fields {
		v.Add(fl.name, fl.value)
	}
	return v
}

// ResolveAction returns the absolute submission URL relative to the page.
func (f *Form) ResolveAction(page *url.URL) (*url.URL, error) {
	if f.Action == "" {
		return page, nil
	}
	action, err := url.Parse(f.Action)
	if err != nil {
		return nil, fmt.Errorf("bad form action %q: %w", f.Action, err)
	}
	return page.ResolveReference(action), nil
}

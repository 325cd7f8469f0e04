// Package dom keeps a server-side view tree for a mounted page and delivers
// browser events to listeners attached on its nodes.
//
// A Container is the root element a page renders into. Markup is parsed with
// golang.org/x/net/html, so nodes are ordinary *html.Node values; the
// helpers in this file read and modify them without going through a Container.
package dom

import (
	"strings"

	"golang.org/x/net/html"
)

// Attr returns the value of an attribute, or "" if absent.
func Attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// HasAttr reports whether the attribute is present, even with an empty value.
func HasAttr(n *html.Node, key string) bool {
	if n == nil {
		return false
	}
	for _, attr := range n.Attr {
		if attr.Key == key {
			return true
		}
	}
	return false
}

// SetAttr sets or replaces an attribute.
func SetAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// IsElement reports whether n is an element with the given tag name.
func IsElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

// TextContent returns the concatenated text below n, whitespace-normalised.
func TextContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// Find returns the first node below root (root included) matching pred, in document order.
func Find(root *html.Node, pred func(*html.Node) bool) *html.Node {
	if root == nil {
		return nil
	}
	if pred(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, pred); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every node below root (root included) matching pred, in document order.
func FindAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

// ByID matches an element whose id attribute equals id.
func ByID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && Attr(n, "id") == id
	}
}

// ByTag matches elements with the given tag name.
func ByTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return IsElement(n, tag)
	}
}

// Closest returns n or its nearest ancestor with the given tag, or nil.
func Closest(n *html.Node, tag string) *html.Node {
	for ; n != nil; n = n.Parent {
		if IsElement(n, tag) {
			return n
		}
	}
	return nil
}

// IsSubmitControl reports whether n submits its form when clicked:
// a button without type or with type=submit, or an input of type submit.
func IsSubmitControl(n *html.Node) bool {
	switch {
	case IsElement(n, "button"):
		t := strings.ToLower(Attr(n, "type"))
		return t == "" || t == "submit"
	case IsElement(n, "input"):
		return strings.ToLower(Attr(n, "type")) == "submit"
	}
	return false
}

// SubmitControl returns the first submit control inside form, or nil.
func SubmitControl(form *html.Node) *html.Node {
	return Find(form, IsSubmitControl)
}

// FormValues returns the named, enabled controls of form as name/value pairs,
// the way a browser builds a form data set. Submit controls are excluded;
// unchecked checkboxes and radios are skipped. Later duplicates win.
func FormValues(form *html.Node) map[string]string {
	values := make(map[string]string)
	for _, n := range FindAll(form, isNamedControl) {
		name := Attr(n, "name")
		switch n.Data {
		case "input":
			switch strings.ToLower(Attr(n, "type")) {
			case "submit", "button", "reset", "image", "file":
				continue
			case "checkbox", "radio":
				if !HasAttr(n, "checked") {
					continue
				}
				v := Attr(n, "value")
				if !HasAttr(n, "value") {
					v = "on"
				}
				values[name] = v
			default:
				values[name] = Attr(n, "value")
			}
		case "textarea":
			values[name] = rawText(n)
		case "select":
			values[name] = selectedOption(n)
		}
	}
	return values
}

// ApplyInput writes submitted values into the matching controls of form so
// that the tree reflects what the user typed. Controls without a submitted
// value are cleared, except checkboxes and radios which become unchecked.
func ApplyInput(form *html.Node, values map[string]string) {
	for _, n := range FindAll(form, isNamedControl) {
		name := Attr(n, "name")
		v, ok := values[name]
		switch n.Data {
		case "input":
			switch strings.ToLower(Attr(n, "type")) {
			case "submit", "button", "reset", "image", "file":
			case "checkbox", "radio":
				removeAttr(n, "checked")
				if ok && (v == Attr(n, "value") || (!HasAttr(n, "value") && v == "on")) {
					SetAttr(n, "checked", "")
				}
			default:
				SetAttr(n, "value", v)
			}
		case "textarea":
			for c := n.FirstChild; c != nil; {
				next := c.NextSibling
				n.RemoveChild(c)
				c = next
			}
			if v != "" {
				n.AppendChild(&html.Node{Type: html.TextNode, Data: v})
			}
		case "select":
			for _, opt := range FindAll(n, ByTag("option")) {
				removeAttr(opt, "selected")
				if ok && optionValue(opt) == v {
					SetAttr(opt, "selected", "")
				}
			}
		}
	}
}

func isNamedControl(n *html.Node) bool {
	if n.Type != html.ElementNode || Attr(n, "name") == "" || HasAttr(n, "disabled") {
		return false
	}
	switch n.Data {
	case "input", "textarea", "select":
		return true
	}
	return false
}

func rawText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

func selectedOption(sel *html.Node) string {
	opts := FindAll(sel, ByTag("option"))
	for _, opt := range opts {
		if HasAttr(opt, "selected") {
			return optionValue(opt)
		}
	}
	if len(opts) > 0 {
		return optionValue(opts[0])
	}
	return ""
}

func optionValue(opt *html.Node) string {
	if HasAttr(opt, "value") {
		return Attr(opt, "value")
	}
	return TextContent(opt)
}

func removeAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attr = out
}

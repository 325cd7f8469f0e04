package dom

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	// ErrNotAttached is returned when an event targets a node outside the container.
	ErrNotAttached = errors.New("dom: node is not attached to the container")

	// ErrNoElement is returned when mounted markup contains no element.
	ErrNoElement = errors.New("dom: markup contains no element")
)

// EventType names the browser events a Container can deliver.
type EventType string

const (
	EventSubmit EventType = "submit"
	EventClick  EventType = "click"
)

// Event is a single dispatched browser event.
type Event struct {
	Type   EventType
	Target *html.Node

	currentTarget      *html.Node
	defaultPrevented   bool
	propagationStopped bool
}

// NewEvent returns an event of typ aimed at target. Target may be nil for
// events raised programmatically without an originating node.
func NewEvent(typ EventType, target *html.Node) *Event {
	return &Event{Type: typ, Target: target}
}

// PreventDefault cancels the default action: a click on a submit control no
// longer submits its form, and a submit no longer performs a native submission.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// StopPropagation stops the event from bubbling to ancestors of the current node.
func (e *Event) StopPropagation() { e.propagationStopped = true }

// CurrentTarget is the node whose listener is running.
func (e *Event) CurrentTarget() *html.Node { return e.currentTarget }

// Listener handles an event delivered to the node it was attached to.
type Listener func(ctx context.Context, ev *Event)

type listener struct {
	id   uint64
	node *html.Node
	typ  EventType
	fn   Listener
}

// Registration identifies one attached listener.
type Registration struct {
	c  *Container
	id uint64
}

// Remove detaches the listener. It reports whether the listener was still attached.
func (r Registration) Remove() bool {
	if r.c == nil {
		return false
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	if _, ok := r.c.listeners[r.id]; !ok {
		return false
	}
	delete(r.c.listeners, r.id)
	return true
}

// Active reports whether the listener is still attached.
func (r Registration) Active() bool {
	if r.c == nil {
		return false
	}
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	_, ok := r.c.listeners[r.id]
	return ok
}

// Container is the root element of a mounted page: it owns the nodes
// rendered into it and the listeners attached to them.
//
// All methods are safe for concurrent use. Listeners run without the
// container lock held, so they may mutate the container.
type Container struct {
	mu        sync.Mutex
	root      *html.Node
	listeners map[uint64]*listener
	nextID    uint64

	// nativeSubmits counts submit events whose default action was not
	// prevented; in a browser each is a full page navigation.
	nativeSubmits int
}

// NewContainer returns an empty container rendered as <div id="id">.
func NewContainer(id string) *Container {
	root := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	return &Container{root: root, listeners: make(map[uint64]*listener)}
}

// ID returns the id attribute of the container element.
func (c *Container) ID() string {
	return Attr(c.root, "id")
}

// SetInnerHTML replaces the container's children with the parsed markup.
func (c *Container) SetInnerHTML(markup string) error {
	nodes, err := c.parse(markup)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for n := c.root.FirstChild; n != nil; {
		next := n.NextSibling
		c.root.RemoveChild(n)
		n = next
	}
	for _, n := range nodes {
		c.root.AppendChild(n)
	}
	return nil
}

// Mount parses markup and places its first element in the container. When
// old is attached, the new element takes its place; otherwise the element is
// appended to the container. The mounted element is returned.
func (c *Container) Mount(markup string, old *html.Node) (*html.Node, error) {
	nodes, err := c.parse(markup)
	if err != nil {
		return nil, err
	}
	var el *html.Node
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			el = n
			break
		}
	}
	if el == nil {
		return nil, ErrNoElement
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old != nil && c.containsLocked(old) && old != c.root {
		old.Parent.InsertBefore(el, old)
		old.Parent.RemoveChild(old)
	} else {
		c.root.AppendChild(el)
	}
	return el, nil
}

// Remove detaches n from the container. It reports whether n was attached.
func (c *Container) Remove(n *html.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == nil || n == c.root || !c.containsLocked(n) {
		return false
	}
	n.Parent.RemoveChild(n)
	return true
}

// Contains reports whether n is the container element or one of its descendants.
func (c *Container) Contains(n *html.Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.containsLocked(n)
}

func (c *Container) containsLocked(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == c.root {
			return true
		}
	}
	return false
}

// Query returns the first attached node matching pred, or nil.
func (c *Container) Query(pred func(*html.Node) bool) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Find(c.root, pred)
}

// Lookup returns the attached element with the given id, or nil.
func (c *Container) Lookup(id string) *html.Node {
	if id == "" {
		return nil
	}
	return c.Query(ByID(id))
}

// Form returns the first form in the container, or nil.
func (c *Container) Form() *html.Node {
	return c.Query(ByTag("form"))
}

// EnclosingForm returns n if it is a form, else its nearest form ancestor
// inside the container, or nil.
func (c *Container) EnclosingForm(n *html.Node) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.containsLocked(n) {
		return nil
	}
	return Closest(n, "form")
}

// SubmitControl returns the first submit control inside form, or nil.
func (c *Container) SubmitControl(form *html.Node) *html.Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return SubmitControl(form)
}

// Values returns the form data set of form.
func (c *Container) Values(form *html.Node) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return FormValues(form)
}

// Input writes user input into the controls of form. See ApplyInput.
func (c *Container) Input(form *html.Node, values map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ApplyInput(form, values)
}

// HTML renders the container element and its children.
func (c *Container) HTML() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return render(c.root)
}

// InnerHTML renders the container's children.
func (c *Container) InnerHTML() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var buf bytes.Buffer
	for n := c.root.FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// OuterHTML renders n if it is attached.
func (c *Container) OuterHTML(n *html.Node) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.containsLocked(n) {
		return "", ErrNotAttached
	}
	return render(n)
}

// AddEventListener attaches fn to n for events of typ.
func (c *Container) AddEventListener(n *html.Node, typ EventType, fn Listener) Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.listeners[c.nextID] = &listener{id: c.nextID, node: n, typ: typ, fn: fn}
	return Registration{c: c, id: c.nextID}
}

// ListenerCount returns how many listeners of typ are attached to n.
func (c *Container) ListenerCount(n *html.Node, typ EventType) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, l := range c.listeners {
		if l.node == n && l.typ == typ {
			count++
		}
	}
	return count
}

// TotalListeners returns the number of attached listeners, including those
// on nodes that are no longer in the tree.
func (c *Container) TotalListeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// NativeSubmits returns how many submit events ran their default action.
func (c *Container) NativeSubmits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nativeSubmits
}

// Dispatch delivers ev to listeners on its target and then on each ancestor
// up to the container element, in that order. Listeners removed while the
// event is in flight are not called.
//
// After propagation, an unprevented click on a submit control dispatches a
// submit event at the control's form, and an unprevented submit counts as a
// native submission.
func (c *Container) Dispatch(ctx context.Context, ev *Event) error {
	c.mu.Lock()
	if !c.containsLocked(ev.Target) {
		c.mu.Unlock()
		return ErrNotAttached
	}
	var path []*html.Node
	for n := ev.Target; n != nil; n = n.Parent {
		path = append(path, n)
		if n == c.root {
			break
		}
	}
	c.mu.Unlock()

	for _, n := range path {
		ev.currentTarget = n
		for _, l := range c.snapshot(n, ev.Type) {
			if !c.active(l.id) {
				continue
			}
			l.fn(ctx, ev)
		}
		if ev.propagationStopped {
			break
		}
	}
	ev.currentTarget = nil

	if ev.defaultPrevented {
		return nil
	}

	switch ev.Type {
	case EventClick:
		c.mu.Lock()
		var form *html.Node
		for n := ev.Target; n != nil && n != c.root; n = n.Parent {
			if IsSubmitControl(n) {
				form = Closest(n, "form")
				break
			}
		}
		attached := form != nil && c.containsLocked(form)
		c.mu.Unlock()
		if attached {
			return c.Dispatch(ctx, NewEvent(EventSubmit, form))
		}
	case EventSubmit:
		c.mu.Lock()
		c.nativeSubmits++
		c.mu.Unlock()
	}
	return nil
}

func (c *Container) snapshot(n *html.Node, typ EventType) []*listener {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*listener
	for _, l := range c.listeners {
		if l.node == n && l.typ == typ {
			out = append(out, l)
		}
	}
	// Listeners run in attachment order.
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (c *Container) active(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.listeners[id]
	return ok
}

func (c *Container) parse(markup string) ([]*html.Node, error) {
	parent := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

func render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

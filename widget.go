package touchloop

import (
	"errors"
	"fmt"

	"gioui.org/f32"
)

// Rect is an axis-aligned box. Min is inclusive, Max exclusive.
type Rect struct {
	Min, Max f32.Point
}

func NewRect(x0, y0, x1, y1 float32) Rect {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	return Rect{Min: f32.Pt(x0, y0), Max: f32.Pt(x1, y1)}
}

func (r Rect) Contains(p f32.Point) bool {
	return r.Min.X <= p.X && p.X < r.Max.X &&
		r.Min.Y <= p.Y && p.Y < r.Max.Y
}

// WidgetID is a handle into a Tree. The zero value names no widget.
type WidgetID uint32

const NoWidget WidgetID = 0

var ErrNoWidget = errors.New("touchloop: no such widget")

// Handler receives touch events for a widget. Returning true consumes the
// event during hit-tested delivery; grab delivery ignores the result.
//
// The touch coordinates depend on the path. Hit-tested delivery passes them
// in the parent frame of the widget. Grab delivery, where t.GrabState is
// set, passes them in the widget's own frame, after its transform, or in window
// coordinates for a parentless overlay.
type Handler interface {
	OnTouchDown(t *Touch) bool
	OnTouchMove(t *Touch) bool
	OnTouchUp(t *Touch) bool
}

type widgetNode struct {
	name     string
	alive    bool
	window   bool
	parent   WidgetID
	root     WidgetID
	children []WidgetID

	// transform maps local coordinates to the parent frame.
	transform f32.Affine2D
	size      f32.Point
	handler   Handler
}

// Tree is an arena of widgets addressed by WidgetID. Parent links are
// explicit; a widget never holds a pointer to another widget.
type Tree struct {
	nodes []widgetNode
	free  []WidgetID
}

func NewTree() *Tree {
	return &Tree{nodes: make([]widgetNode, 1)}
}

func (tr *Tree) alloc(n widgetNode) WidgetID {
	n.alive = true
	if l := len(tr.free); l > 0 {
		id := tr.free[l-1]
		tr.free = tr.free[:l-1]
		tr.nodes[id] = n
		return id
	}
	tr.nodes = append(tr.nodes, n)
	return WidgetID(len(tr.nodes) - 1)
}

func (tr *Tree) node(id WidgetID) *widgetNode {
	if id == NoWidget || int(id) >= len(tr.nodes) || !tr.nodes[id].alive {
		return nil
	}
	return &tr.nodes[id]
}

// NewWindow adds a root window of the given size.
func (tr *Tree) NewWindow(name string, width, height float32, h Handler) WidgetID {
	return tr.alloc(widgetNode{
		name:    name,
		window:  true,
		size:    f32.Pt(width, height),
		handler: h,
	})
}

// Add creates a widget under parent, positioned at pos in the parent frame.
func (tr *Tree) Add(parent WidgetID, name string, pos, size f32.Point, h Handler) (WidgetID, error) {
	if tr.node(parent) == nil {
		return NoWidget, fmt.Errorf("add %s under %d: %w", name, parent, ErrNoWidget)
	}
	id := tr.alloc(widgetNode{
		name:      name,
		parent:    parent,
		transform: f32.Affine2D{}.Offset(pos),
		size:      size,
		handler:   h,
	})
	p := tr.node(parent)
	p.children = append(p.children, id)
	return id, nil
}

// AddOverlay creates a parentless widget that still belongs to window. Its
// coordinates are window coordinates.
func (tr *Tree) AddOverlay(window WidgetID, name string, pos, size f32.Point, h Handler) (WidgetID, error) {
	w := tr.node(window)
	if w == nil || !w.window {
		return NoWidget, fmt.Errorf("add overlay %s on %d: %w", name, window, ErrNoWidget)
	}
	return tr.alloc(widgetNode{
		name:      name,
		root:      window,
		transform: f32.Affine2D{}.Offset(pos),
		size:      size,
		handler:   h,
	}), nil
}

// Remove deletes id and its subtree.
func (tr *Tree) Remove(id WidgetID) {
	n := tr.node(id)
	if n == nil {
		return
	}
	for _, c := range append([]WidgetID(nil), n.children...) {
		tr.Remove(c)
	}
	if p := tr.node(n.parent); p != nil {
		children := p.children[:0]
		for _, c := range p.children {
			if c != id {
				children = append(children, c)
			}
		}
		p.children = children
	}
	tr.nodes[id] = widgetNode{}
	tr.free = append(tr.free, id)
}

func (tr *Tree) Exists(id WidgetID) bool {
	return tr.node(id) != nil
}

func (tr *Tree) Name(id WidgetID) string {
	if n := tr.node(id); n != nil {
		return n.name
	}
	return ""
}

func (tr *Tree) Parent(id WidgetID) WidgetID {
	if n := tr.node(id); n != nil {
		return n.parent
	}
	return NoWidget
}

// Children returns a copy of id's children in z-order, bottom first.
func (tr *Tree) Children(id WidgetID) []WidgetID {
	if n := tr.node(id); n != nil {
		return append([]WidgetID(nil), n.children...)
	}
	return nil
}

func (tr *Tree) Handler(id WidgetID) Handler {
	if n := tr.node(id); n != nil {
		return n.handler
	}
	return nil
}

func (tr *Tree) IsWindow(id WidgetID) bool {
	n := tr.node(id)
	return n != nil && n.window
}

// RootWindow walks up to the window owning id. A window is its own root.
// A parentless widget that is not an overlay has no root.
func (tr *Tree) RootWindow(id WidgetID) WidgetID {
	for {
		n := tr.node(id)
		if n == nil {
			return NoWidget
		}
		if n.window {
			return id
		}
		if n.parent == NoWidget {
			return n.root
		}
		id = n.parent
	}
}

func (tr *Tree) Size(id WidgetID) f32.Point {
	if n := tr.node(id); n != nil {
		return n.size
	}
	return f32.Point{}
}

func (tr *Tree) SetSize(id WidgetID, size f32.Point) {
	if n := tr.node(id); n != nil {
		n.size = size
	}
}

// SetPos replaces the transform with a plain translation.
func (tr *Tree) SetPos(id WidgetID, pos f32.Point) {
	tr.SetTransform(id, f32.Affine2D{}.Offset(pos))
}

// SetTransform sets the local-to-parent transform.
func (tr *Tree) SetTransform(id WidgetID, a f32.Affine2D) {
	if n := tr.node(id); n != nil {
		n.transform = a
	}
}

func (tr *Tree) Transform(id WidgetID) f32.Affine2D {
	if n := tr.node(id); n != nil {
		return n.transform
	}
	return f32.Affine2D{}
}

// ToLocal maps p from the parent frame of id to the frame of id.
func (tr *Tree) ToLocal(id WidgetID, p f32.Point) f32.Point {
	n := tr.node(id)
	if n == nil {
		return p
	}
	return n.transform.Invert().Transform(p)
}

// ToParent maps p from the frame of id to its parent frame.
func (tr *Tree) ToParent(id WidgetID, p f32.Point) f32.Point {
	n := tr.node(id)
	if n == nil {
		return p
	}
	return n.transform.Transform(p)
}

// ToWidget maps p from window coordinates down to the frame of id.
func (tr *Tree) ToWidget(id WidgetID, p f32.Point) f32.Point {
	if parent := tr.Parent(id); parent != NoWidget {
		p = tr.ToWidget(parent, p)
	}
	return tr.ToLocal(id, p)
}

// ToWindow maps p from the frame of id up to window coordinates.
func (tr *Tree) ToWindow(id WidgetID, p f32.Point) f32.Point {
	for n := tr.node(id); n != nil && !n.window; n = tr.node(n.parent) {
		p = n.transform.Transform(p)
	}
	return p
}

// CollidePoint reports whether p, given in the parent frame of id, falls
// inside the widget.
func (tr *Tree) CollidePoint(id WidgetID, p f32.Point) bool {
	n := tr.node(id)
	if n == nil {
		return false
	}
	return Rect{Max: n.size}.Contains(tr.ToLocal(id, p))
}

package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/kb"
	"github.com/signalsfoundry/stockflow-editor/model"
)

var (
	// ErrModal is returned for gestures received while a dialog is open.
	ErrModal = errors.New("a dialog is open")
	// ErrActionsDisabled is returned for data actions while a link is being authored.
	ErrActionsDisabled = errors.New("data actions are disabled while authoring a link")
	// ErrLinkHasChildren is returned when a link with live boundary
	// references in a child view is deleted or relinked.
	ErrLinkHasChildren = errors.New("link has child flows in a subsystem")
	// ErrInvalidTarget is returned when a link target fails the adjacency rule.
	ErrInvalidTarget = errors.New("invalid link target")
	// ErrNoView is returned when the graph holds no view to edit.
	ErrNoView = errors.New("no current view")
	// ErrNotInView is returned for references that do not resolve in the current view.
	ErrNotInView = errors.New("object is not in the current view")
	// ErrNoSelection is returned by selection actions when nothing is clicked.
	ErrNoSelection = errors.New("nothing is selected")
	// ErrNotProper is returned when a subsystem is requested for a boundary or orphan node.
	ErrNotProper = errors.New("only stocks and processes own subsystems")
)

// Outcomes reported to the ActionRecorder.
const (
	OutcomeOK        = "ok"
	OutcomeBlocked   = "blocked"
	OutcomeCancelled = "cancelled"
	OutcomeAborted   = "aborted"
	OutcomeError     = "error"
)

// Mode is the link-authoring state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAwaitingSource
	ModeAwaitingTarget
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAwaitingSource:
		return "awaiting_source"
	case ModeAwaitingTarget:
		return "awaiting_target"
	default:
		return "unknown"
	}
}

// Status is the prompt shown to the user for the mode.
func (m Mode) Status() string {
	switch m {
	case ModeAwaitingSource:
		return "Select source"
	case ModeAwaitingTarget:
		return "Select target"
	default:
		return ""
	}
}

// ActionRecorder receives one record per completed controller action.
type ActionRecorder interface {
	RecordAction(action, outcome string)
}

// Change describes a completed action. Node is set for drags.
type Change struct {
	Action string
	View   model.ViewID
	Node   model.NodeID
}

// Prospective is the link previewed while choosing a target.
type Prospective struct {
	Source model.NodeID
	Target model.NodeID
	Type   model.LinkType
	Relink model.LinkID
}

// ControllerOption configures optional controller dependencies.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l logging.Logger) ControllerOption {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithActionRecorder wires action metrics.
func WithActionRecorder(r ActionRecorder) ControllerOption {
	return func(c *Controller) {
		c.recorder = r
	}
}

// WithContext sets the context used for logging.
func WithContext(ctx context.Context) ControllerOption {
	return func(c *Controller) {
		if ctx != nil {
			c.ctx = ctx
		}
	}
}

// Controller is the interaction state machine of one editing session. It
// owns the current view, the selection and the link-authoring protocol,
// and turns gestures into kb.Graph mutations. It is not safe for
// concurrent use; one actor drives it, including dialog callbacks.
type Controller struct {
	graph    *kb.Graph
	dialogs  Dialogs
	log      logging.Logger
	recorder ActionRecorder
	ctx      context.Context

	current model.ViewID

	mode     Mode
	linkType model.LinkType
	relink   model.LinkID
	source   model.NodeID
	target   model.NodeID

	hovered []model.ObjectRef
	clicked []model.ObjectRef

	// boundary nodes materialised for the current authoring run
	externals     []model.NodeID
	externalsView model.ViewID
	showExternals bool

	actionsDisabled bool
	modal           int

	subs    map[int]func(Change)
	nextSub int
}

// NewController builds a controller over graph. dialogs may be nil, in
// which case every prompt and confirmation is cancelled.
func NewController(graph *kb.Graph, dialogs Dialogs, opts ...ControllerOption) *Controller {
	if dialogs == nil {
		dialogs = &ScriptedDialogs{}
	}
	c := &Controller{
		graph:   graph,
		dialogs: dialogs,
		log:     logging.Noop(),
		ctx:     context.Background(),
		subs:    make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current = graph.FirstRoot()
	return c
}

// OnChange registers fn to run after every completed action. It returns an
// unsubscribe function.
func (c *Controller) OnChange(fn func(Change)) (unsubscribe func()) {
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() { delete(c.subs, id) }
}

func (c *Controller) changed(action string) {
	c.changedNode(action, "")
}

func (c *Controller) changedNode(action string, node model.NodeID) {
	c.record(action, OutcomeOK)
	c.publish(Change{Action: action, View: c.current, Node: node})
}

// notify publishes a change whose outcome was already recorded.
func (c *Controller) notify(action, outcome string) {
	c.record(action, outcome)
	c.publish(Change{Action: action, View: c.current})
}

func (c *Controller) publish(ch Change) {
	for i := 0; i < c.nextSub; i++ {
		if fn, ok := c.subs[i]; ok {
			fn(ch)
		}
	}
}

func (c *Controller) record(action, outcome string) {
	if c.recorder != nil {
		c.recorder.RecordAction(action, outcome)
	}
	if outcome != OutcomeOK {
		c.log.Debug(c.ctx, "editor action not applied",
			logging.String("action", action),
			logging.String("outcome", outcome),
			logging.String("view", string(c.current)),
		)
	}
}

// CurrentView returns the view being edited, recomputing it when it no
// longer resolves. It is empty only when the graph has no views.
func (c *Controller) CurrentView() model.ViewID {
	id, _ := c.view()
	return id
}

func (c *Controller) Mode() Mode            { return c.mode }
func (c *Controller) Status() string        { return c.mode.Status() }
func (c *Controller) ShowExternals() bool   { return c.showExternals }
func (c *Controller) ActionsDisabled() bool { return c.actionsDisabled }
func (c *Controller) Modal() bool           { return c.modal > 0 }

// Source returns the node chosen as source while awaiting a target.
func (c *Controller) Source() (model.NodeID, bool) {
	return c.source, c.mode == ModeAwaitingTarget && c.source != ""
}

// Hovered returns the hovered objects that are still live in the current view.
func (c *Controller) Hovered() []model.ObjectRef { return c.live(c.hovered) }

// Clicked returns the clicked objects that are still live in the current view.
func (c *Controller) Clicked() []model.ObjectRef { return c.live(c.clicked) }

// Prospective returns the link previewed between the chosen source and the
// hovered valid target.
func (c *Controller) Prospective() (Prospective, bool) {
	if c.mode != ModeAwaitingTarget || c.source == "" || c.target == "" {
		return Prospective{}, false
	}
	view := c.CurrentView()
	if _, ok := c.graph.Node(view, c.source); !ok {
		return Prospective{}, false
	}
	if _, ok := c.graph.Node(view, c.target); !ok {
		return Prospective{}, false
	}
	p := Prospective{Source: c.source, Target: c.target, Type: c.linkType, Relink: c.relink}
	if c.relink != "" {
		if l, ok := c.graph.Link(view, c.relink); ok {
			p.Type = l.Type
		}
	}
	return p, true
}

func (c *Controller) live(refs []model.ObjectRef) []model.ObjectRef {
	view := c.CurrentView()
	out := make([]model.ObjectRef, 0, len(refs))
	for _, r := range refs {
		if c.resolves(view, r) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Controller) resolves(view model.ViewID, r model.ObjectRef) bool {
	if id, ok := r.Node(); ok {
		_, found := c.graph.Node(view, id)
		return found
	}
	if id, ok := r.Link(); ok {
		_, found := c.graph.Link(view, id)
		return found
	}
	return false
}

// view resolves the current view, falling back to the root of the first
// view when the stored id is gone.
func (c *Controller) view() (model.ViewID, error) {
	if c.current != "" {
		if _, ok := c.graph.View(c.current); ok {
			return c.current, nil
		}
	}
	c.current = c.graph.FirstRoot()
	if c.current == "" {
		return "", ErrNoView
	}
	return c.current, nil
}

// gesture is the common prologue of every input: the dialog must be
// closed and a view must exist.
func (c *Controller) gesture() (model.ViewID, error) {
	if c.modal > 0 {
		return "", ErrModal
	}
	return c.view()
}

// dataAction additionally requires that no link is being authored.
func (c *Controller) dataAction() (model.ViewID, error) {
	view, err := c.gesture()
	if err != nil {
		return "", err
	}
	if c.actionsDisabled {
		return "", ErrActionsDisabled
	}
	return view, nil
}

func (c *Controller) node(view model.ViewID, id model.NodeID) (model.Node, error) {
	n, ok := c.graph.Node(view, id)
	if !ok {
		return model.Node{}, fmt.Errorf("node %q: %w", id, ErrNotInView)
	}
	return n, nil
}

func (c *Controller) link(view model.ViewID, id model.LinkID) (model.Link, error) {
	l, ok := c.graph.Link(view, id)
	if !ok {
		return model.Link{}, fmt.Errorf("link %q: %w", id, ErrNotInView)
	}
	return l, nil
}

// resetState clears selection and the authoring protocol.
func (c *Controller) resetState() {
	c.clicked = nil
	c.hovered = nil
	c.mode = ModeIdle
	c.source = ""
	c.target = ""
	c.linkType = ""
	c.relink = ""
	c.showExternals = false
}

// prompt and confirm keep the controller modal until the dialog answers.
func (c *Controller) prompt(p Prompt, onConfirm func(string), onCancel func()) {
	c.modal++
	c.dialogs.Prompt(p,
		func(v string) {
			c.modal--
			onConfirm(v)
		},
		func() {
			c.modal--
			onCancel()
		})
}

func (c *Controller) confirm(cf Confirm, onConfirm, onCancel func()) {
	c.modal++
	c.dialogs.Confirm(cf,
		func() {
			c.modal--
			onConfirm()
		},
		func() {
			c.modal--
			onCancel()
		})
}

// Reset forgets every piece of session state after the document has been
// replaced, and moves to the root of the first view.
func (c *Controller) Reset() {
	c.externals = nil
	c.externalsView = ""
	c.actionsDisabled = false
	c.resetState()
	c.current = c.graph.FirstRoot()
	c.changed("reset")
}

// EnsureView creates an empty root view when the graph holds none and
// returns the current view.
func (c *Controller) EnsureView() model.ViewID {
	if c.graph.Len() == 0 {
		c.current = c.graph.CreateView("", "")
		c.log.Info(c.ctx, "created root view", logging.String("view", string(c.current)))
	}
	id, _ := c.view()
	return id
}

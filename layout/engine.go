package layout

import (
	"context"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/kb"
	"github.com/signalsfoundry/stockflow-editor/model"
)

// EventType tags what produced a frame.
type EventType int

const (
	// EventExternal follows Update: the view or selection changed.
	EventExternal EventType = iota
	// EventTick follows a simulation step.
	EventTick
	// EventSettled is published once when the simulation cools below
	// AlphaMin.
	EventSettled
	// EventPinned follows Pin. The simulation keeps its temperature.
	EventPinned
)

func (t EventType) String() string {
	switch t {
	case EventExternal:
		return "external"
	case EventTick:
		return "tick"
	case EventSettled:
		return "settled"
	case EventPinned:
		return "pinned"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every pass.
type Event struct {
	Type  EventType
	View  model.ViewID
	Frame Frame
}

// ProspectiveLink previews the link being authored.
type ProspectiveLink struct {
	Source model.NodeID
	Target model.NodeID
	Type   model.LinkType
}

// Input is the state an external pass lays out.
type Input struct {
	View          model.View
	Hovered       []model.ObjectRef
	Clicked       []model.ObjectRef
	Prospective   *ProspectiveLink
	ShowExternals bool
}

// TickRecorder observes simulation steps.
type TickRecorder interface {
	ObserveTick(d time.Duration, alpha float64)
}

// EngineOption configures optional Engine behaviour.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log logging.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithTickRecorder reports every step to r.
func WithTickRecorder(r TickRecorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// placedLink is a link resolved to body indices.
type placedLink struct {
	model.Link
	id      string
	source  int
	target  int
	linknum float64
}

// Engine lays out one view at a time. Update re-derives everything from
// the view; Tick only advances the simulation.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	sim      *simulation
	log      logging.Logger
	recorder TickRecorder

	in      Input
	index   map[model.NodeID]int
	links   []placedLink
	sources []int
	sinks   []int
	ticks   int
	settled bool
	frame   Frame

	subs    map[int]func(Event)
	nextSub int
}

// NewEngine constructs an engine with an empty view.
func NewEngine(cfg Config, opts ...EngineOption) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:   cfg,
		sim:   newSimulation(cfg),
		log:   logging.Noop(),
		index: make(map[model.NodeID]int),
		subs:  make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.frame = e.buildFrame()
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Subscribe registers fn for every published event and returns a func
// that removes it.
func (e *Engine) Subscribe(fn func(Event)) (unsubscribe func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Update runs an external pass: it classifies the view's nodes, ranks
// duplicate links, pins boundary nodes and restarts the simulation.
// Velocities of nodes still present in the same view are kept.
func (e *Engine) Update(in Input) {
	e.mu.Lock()
	sameView := e.in.View.ID == in.View.ID
	carry := make(map[model.NodeID]r2.Vec, len(e.sim.bodies))
	if sameView {
		for _, b := range e.sim.bodies {
			carry[b.id] = b.vel
		}
	}
	e.in = in

	bodies := make([]*body, 0, len(in.View.Nodes))
	e.index = make(map[model.NodeID]int, len(in.View.Nodes))
	e.sources, e.sinks = e.sources[:0], e.sinks[:0]
	for _, n := range in.View.Nodes {
		b := &body{id: n.ID, typ: n.Type, pos: r2.Vec{X: n.X, Y: n.Y}, vel: carry[n.ID], r: n.R}
		switch n.Type {
		case model.NodeSource:
			e.sources = append(e.sources, len(bodies))
			b.r = 0
		case model.NodeSink:
			e.sinks = append(e.sinks, len(bodies))
			b.r = 0
		case model.NodeOrphan:
			b.r = 0
		}
		if n.Pinned() {
			b.fix = &r2.Vec{X: *n.FX, Y: *n.FY}
		}
		e.index[n.ID] = len(bodies)
		bodies = append(bodies, b)
	}
	for i, bi := range e.sources {
		bodies[bi].fix = &r2.Vec{X: BoundaryX(e.cfg.Width, len(e.sources), i), Y: e.cfg.Height}
	}
	for i, bi := range e.sinks {
		bodies[bi].fix = &r2.Vec{X: BoundaryX(e.cfg.Width, len(e.sinks), i), Y: 0}
	}
	for _, b := range bodies {
		if b.fix != nil {
			b.pos = *b.fix
		}
	}

	e.links = e.rankLinks(in)
	springs := make([]spring, 0, len(e.links))
	for _, l := range e.links {
		springs = append(springs, spring{source: l.source, target: l.target})
	}
	e.sim.reset(bodies, springs)
	e.ticks = 0
	e.settled = false
	e.clamp()
	e.frame = e.buildFrame()

	e.log.Debug(context.Background(), "layout updated",
		logging.String("view", string(in.View.ID)),
		logging.Int("nodes", len(bodies)),
		logging.Int("links", len(e.links)),
	)
	ev := Event{Type: EventExternal, View: in.View.ID, Frame: e.frame}
	subs := e.snapshotSubs()
	e.mu.Unlock()

	publish(subs, ev)
}

// rankLinks resolves link endpoints and numbers links sharing an ordered
// (source, target) pair 1, 2, 3... in insertion order. The prospective
// link, if any, is appended with ProspectiveLinkNum.
func (e *Engine) rankLinks(in Input) []placedLink {
	type pair struct{ source, target model.NodeID }
	seen := make(map[pair]int)
	out := make([]placedLink, 0, len(in.View.Links)+1)
	for _, l := range in.View.Links {
		si, sok := e.index[l.Source]
		ti, tok := e.index[l.Target]
		if !sok || !tok {
			e.log.Warn(context.Background(), "link endpoint missing",
				logging.String("view", string(in.View.ID)),
				logging.String("link", string(l.ID)),
			)
			continue
		}
		k := pair{l.Source, l.Target}
		seen[k]++
		out = append(out, placedLink{Link: l, id: string(l.ID), source: si, target: ti, linknum: float64(seen[k])})
	}
	if p := in.Prospective; p != nil {
		si, sok := e.index[p.Source]
		ti, tok := e.index[p.Target]
		if sok && tok && p.Target != "" {
			out = append(out, placedLink{
				Link:    model.Link{Source: p.Source, Target: p.Target, Type: p.Type},
				id:      ProspectiveLinkID,
				source:  si,
				target:  ti,
				linknum: ProspectiveLinkNum,
			})
		}
	}
	return out
}

// Tick advances the simulation one step and publishes the new frame. It
// reports false without stepping once the simulation has settled.
func (e *Engine) Tick() bool {
	e.mu.Lock()
	if e.settled {
		e.mu.Unlock()
		return false
	}
	start := time.Now()
	e.sim.step()
	e.clamp()
	e.ticks++
	e.frame = e.buildFrame()
	events := []Event{{Type: EventTick, View: e.in.View.ID, Frame: e.frame}}
	if e.sim.settled() {
		e.settled = true
		events = append(events, Event{Type: EventSettled, View: e.in.View.ID, Frame: e.frame})
		e.log.Debug(context.Background(), "layout settled",
			logging.String("view", string(e.in.View.ID)),
			logging.Int("ticks", e.ticks),
		)
	}
	if e.recorder != nil {
		e.recorder.ObserveTick(time.Since(start), e.sim.alpha)
	}
	subs := e.snapshotSubs()
	e.mu.Unlock()

	for _, ev := range events {
		publish(subs, ev)
	}
	return true
}

// Settle ticks until the simulation cools or limit steps have run, and
// returns the number of steps taken.
func (e *Engine) Settle(limit int) int {
	n := 0
	for n < limit && e.Tick() {
		n++
	}
	return n
}

// Settled reports whether the simulation has cooled.
func (e *Engine) Settled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settled
}

// Alpha is the current simulation energy.
func (e *Engine) Alpha() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sim.alpha
}

// Frame returns the latest frame.
func (e *Engine) Frame() Frame {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

// Pin fixes a node where it is dragged without restarting the simulation.
func (e *Engine) Pin(id model.NodeID, x, y float64) bool {
	e.mu.Lock()
	i, ok := e.index[id]
	if !ok {
		e.mu.Unlock()
		return false
	}
	b := e.sim.bodies[i]
	b.fix = &r2.Vec{X: x, Y: y}
	b.pos = *b.fix
	e.frame = e.buildFrame()
	ev := Event{Type: EventPinned, View: e.in.View.ID, Frame: e.frame}
	subs := e.snapshotSubs()
	e.mu.Unlock()

	publish(subs, ev)
	return true
}

// Positions returns the simulated placement of every node for writing
// back into the graph.
func (e *Engine) Positions() (model.ViewID, []kb.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]kb.Position, 0, len(e.sim.bodies))
	for _, b := range e.sim.bodies {
		p := kb.Position{ID: b.id, X: b.pos.X, Y: b.pos.Y, R: b.r}
		if b.fix != nil {
			p.FX, p.FY = model.Float(b.fix.X), model.Float(b.fix.Y)
		}
		out = append(out, p)
	}
	return e.in.View.ID, out
}

// clamp keeps free proper nodes inside the viewport.
func (e *Engine) clamp() {
	for _, b := range e.sim.bodies {
		b.pos.X, b.pos.Y = Clamp(b.typ, b.pos.X, b.pos.Y, b.r, e.cfg.Width, e.cfg.Height)
	}
}

func (e *Engine) buildFrame() Frame {
	in := e.in
	f := Frame{
		Width:   e.cfg.Width,
		Height:  e.cfg.Height,
		Heading: Label{Text: string(in.View.Text), At: Point{X: 0, Y: 20}},
		Alpha:   e.sim.alpha,
		Tick:    e.ticks,
	}
	hovered := refSet(in.Hovered)
	clicked := refSet(in.Clicked)

	for i, n := range in.View.Nodes {
		if i >= len(e.sim.bodies) {
			break
		}
		b := e.sim.bodies[i]
		ref := model.NodeRef(n.ID)
		s := Shape{
			ID:      n.ID,
			Type:    n.Type,
			Text:    string(n.Text),
			Wikiref: n.Wikiref != "",
			X:       b.pos.X,
			Y:       b.pos.Y,
			R:       b.r,
			Pinned:  b.fix != nil,
			Hovered: hovered[ref],
			Clicked: clicked[ref],
		}
		switch n.Type {
		case model.NodeCircle:
			f.Circles = append(f.Circles, s)
		case model.NodeSquare:
			f.Squares = append(f.Squares, s)
		case model.NodeOrphan:
			f.Orphans = append(f.Orphans, s)
		case model.NodeSource:
			f.Sources = append(f.Sources, s)
		case model.NodeSink:
			f.Sinks = append(f.Sinks, s)
		}
		if n.Type.Proper() {
			f.NodeLabels = append(f.NodeLabels, Label{
				Ref:     ref,
				Text:    string(n.Text),
				At:      NodeLabel(n.Type, s.X, s.Y, s.R),
				Wikiref: s.Wikiref,
			})
		}
	}

	for _, group := range []struct {
		typ    model.NodeType
		shapes []Shape
		y      float64
	}{
		{model.NodeSource, f.Sources, e.cfg.Height - MarkerHeight},
		{model.NodeSink, f.Sinks, 0},
	} {
		n := len(group.shapes)
		for i, s := range group.shapes {
			f.BoundaryLabels = append(f.BoundaryLabels, Label{
				Ref:  model.NodeRef(s.ID),
				Text: s.Text,
				At:   BoundaryLabel(group.typ, e.cfg.Width, e.cfg.Height, n, i),
			})
			if !in.ShowExternals {
				continue
			}
			width := e.cfg.Width / float64(n)
			f.Markers = append(f.Markers, Marker{
				ID:      string(s.ID) + MarkerSuffix,
				Node:    s.ID,
				Type:    group.typ,
				X:       width * float64(i),
				Y:       group.y,
				Width:   width,
				Height:  MarkerHeight,
				Hovered: s.Hovered,
				Clicked: s.Clicked,
			})
		}
	}

	for _, l := range e.links {
		if l.source >= len(e.sim.bodies) || l.target >= len(e.sim.bodies) {
			continue
		}
		src, tgt := e.sim.bodies[l.source], e.sim.bodies[l.target]
		from := Anchor(src.typ, src.pos.X, src.pos.Y, src.r)
		to := Anchor(tgt.typ, tgt.pos.X, tgt.pos.Y, tgt.r)
		radius := ArcRadius(src.pos, tgt.pos, l.linknum)
		ref := model.LinkRef(model.LinkID(l.id))
		ls := LinkShape{
			ID:      l.id,
			Type:    l.Type,
			Text:    l.Text,
			Wikiref: l.Wikiref != "",
			Source:  l.Source,
			Target:  l.Target,
			LinkNum: l.linknum,
			From:    from,
			To:      to,
			Radius:  radius,
			Path:    ArcPath(from, to, radius),
			Hovered: hovered[ref],
			Clicked: clicked[ref],
		}
		f.Links = append(f.Links, ls)
		if !ls.Prospective() {
			f.LinkLabels = append(f.LinkLabels, Label{
				Ref:     ref,
				Text:    l.Text,
				At:      LinkLabel(from, to, l.linknum),
				Wikiref: ls.Wikiref,
			})
		}
	}
	return f
}

func refSet(refs []model.ObjectRef) map[model.ObjectRef]bool {
	out := make(map[model.ObjectRef]bool, len(refs))
	for _, r := range refs {
		out[r] = true
	}
	return out
}

func (e *Engine) snapshotSubs() []func(Event) {
	out := make([]func(Event), 0, len(e.subs))
	for _, fn := range e.subs {
		out = append(out, fn)
	}
	return out
}

func publish(subs []func(Event), ev Event) {
	for _, fn := range subs {
		fn(ev)
	}
}

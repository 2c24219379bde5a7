// Package session ties one editing session together. An Editor owns the
// graph, the interaction controller, the layout engine and the render
// bindings, and processes every input, frame and load completion to
// completion under a single lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/stockflow-editor/editor"
	"github.com/signalsfoundry/stockflow-editor/internal/docstore"
	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/internal/observability"
	"github.com/signalsfoundry/stockflow-editor/internal/search"
	"github.com/signalsfoundry/stockflow-editor/kb"
	"github.com/signalsfoundry/stockflow-editor/layout"
	"github.com/signalsfoundry/stockflow-editor/model"
	"github.com/signalsfoundry/stockflow-editor/render"
	"github.com/signalsfoundry/stockflow-editor/timectrl"
)

const tracerName = "github.com/signalsfoundry/stockflow-editor/internal/session"

// ErrNoStore is returned by persistence calls on an editor built without a
// store.
var ErrNoStore = errors.New("no document store configured")

type options struct {
	log        logging.Logger
	metrics    *observability.EditorCollector
	dialogs    editor.Dialogs
	layout     layout.Config
	store      docstore.Store
	collection string
}

// Option configures an Editor.
type Option func(*options)

// WithLogger sets the base logger; the session id is added to it.
func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithMetrics reports actions, graph sizes and layout ticks to c.
func WithMetrics(c *observability.EditorCollector) Option {
	return func(o *options) { o.metrics = c }
}

// WithDialogs sets how prompts and confirmations are answered.
func WithDialogs(d editor.Dialogs) Option {
	return func(o *options) { o.dialogs = d }
}

// WithLayout sets the viewport and force constants.
func WithLayout(cfg layout.Config) Option {
	return func(o *options) { o.layout = cfg }
}

// WithStore sets the document store and the collection Load and Save use
// when none is given.
func WithStore(s docstore.Store, collection string) Option {
	return func(o *options) {
		o.store = s
		o.collection = collection
	}
}

// Editor is one editing session.
type Editor struct {
	mu sync.Mutex

	ctx     context.Context
	id      string
	log     logging.Logger
	metrics *observability.EditorCollector

	graph  *kb.Graph
	ctrl   *editor.Controller
	engine *layout.Engine
	scene  *render.Sync
	router *render.Router

	store      docstore.Store
	collection string

	index      *search.Index
	indexStale atomic.Bool

	unsubscribe []func()
	closed      bool
}

// New starts a session over an empty diagram holding one root view.
func New(ctx context.Context, opts ...Option) *Editor {
	o := options{log: logging.Noop(), layout: layout.DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, log, id := logging.WithSessionLogger(ctx, o.log)

	e := &Editor{
		ctx:        ctx,
		id:         id,
		log:        log,
		metrics:    o.metrics,
		graph:      kb.NewGraph(),
		store:      o.store,
		collection: o.collection,
		index:      search.NewIndex(),
	}
	e.indexStale.Store(true)

	engineOpts := []layout.EngineOption{layout.WithLogger(log.With(logging.String("component", "layout")))}
	ctrlOpts := []editor.ControllerOption{
		editor.WithLogger(log.With(logging.String("component", "editor"))),
		editor.WithContext(ctx),
	}
	if o.metrics != nil {
		engineOpts = append(engineOpts, layout.WithTickRecorder(o.metrics))
		ctrlOpts = append(ctrlOpts, editor.WithActionRecorder(o.metrics))
	}
	e.engine = layout.NewEngine(o.layout, engineOpts...)
	e.scene = render.NewSync(e.engine)
	e.ctrl = editor.NewController(e.graph, o.dialogs, ctrlOpts...)
	e.router = render.NewRouter(e.scene, e)

	e.unsubscribe = append(e.unsubscribe,
		e.ctrl.OnChange(e.onChange),
		e.graph.Subscribe(func(kb.Event) { e.indexStale.Store(true) }),
	)

	e.mu.Lock()
	e.ctrl.EnsureView()
	e.ctrl.Reset()
	e.mu.Unlock()
	log.Info(ctx, "editing session started")
	return e
}

// ID is the session id carried by every log line of the session.
func (e *Editor) ID() string { return e.id }

// Close tears down the input bindings and frame subscriptions.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, fn := range e.unsubscribe {
		fn()
	}
	e.unsubscribe = nil
	e.closed = true
	e.router.Close()
	e.scene.Close()
}

// Do runs fn against the controller inside the session lock. Every
// completed action triggers an external layout pass.
func (e *Editor) Do(fn func(c *editor.Controller) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.ctrl)
}

// Graph returns a copy of every view.
func (e *Editor) Graph() []model.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Views()
}

// Validate reports broken graph invariants.
func (e *Editor) Validate() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.graph.Validate()
}

// onChange runs an external pass. It is called by the controller, so the
// session lock is already held.
func (e *Editor) onChange(ch editor.Change) {
	if ch.Node != "" {
		// A drag pins one node; the simulation keeps its temperature.
		if n, ok := e.graph.Node(ch.View, ch.Node); ok && n.Pinned() {
			if e.engine.Pin(ch.Node, *n.FX, *n.FY) {
				return
			}
		}
	}
	e.relayout()
}

func (e *Editor) relayout() {
	in := layout.Input{
		Hovered:       e.ctrl.Hovered(),
		Clicked:       e.ctrl.Clicked(),
		ShowExternals: e.ctrl.ShowExternals(),
	}
	if v, ok := e.graph.View(e.ctrl.CurrentView()); ok {
		in.View = v
	}
	if p, ok := e.ctrl.Prospective(); ok {
		in.Prospective = &layout.ProspectiveLink{Source: p.Source, Target: p.Target, Type: p.Type}
	}
	e.engine.Update(in)
	e.metrics.SetGraphCounts(e.graph.Counts())
}

// HandleEvent applies a routed input event. It implements render.Handler.
func (e *Editor) HandleEvent(ev render.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.ctrl
	switch ev.Kind {
	case render.NodeHover:
		return c.HoverNode(ev.Node)
	case render.NodeUnhover:
		return c.UnhoverNode(ev.Node)
	case render.NodeClick:
		return c.ClickNode(ev.Node)
	case render.NodeDblClick:
		return c.DoubleClickNode(ev.Node)
	case render.NodeDrag:
		return c.DragNode(ev.Node, ev.X, ev.Y)
	case render.LinkHover:
		return c.HoverLink(ev.Link)
	case render.LinkUnhover:
		return c.UnhoverLink(ev.Link)
	case render.LinkClick:
		return c.ClickLink(ev.Link)
	case render.OutsideClick:
		return c.ClickOutside()
	case render.KeyDelete:
		return c.Delete()
	case render.KeyEscape:
		return c.Escape()
	case render.KeyUp:
		return c.GoBack()
	default:
		return fmt.Errorf("unhandled event %s", ev.Kind)
	}
}

// Pointer routes a raw pointer event.
func (e *Editor) Pointer(p render.Pointer) error { return e.router.Pointer(p) }

// Key routes a raw key event.
func (e *Editor) Key(k render.Key) error { return e.router.Key(k) }

// Frame returns the latest laid-out frame.
func (e *Editor) Frame() layout.Frame { return e.scene.Frame() }

// WriteSVG renders the latest frame.
func (e *Editor) WriteSVG(w io.Writer) error { return e.scene.WriteSVG(w) }

// Tick runs one tick pass and writes the simulated positions back into the
// graph. It reports whether the simulation was still running.
func (e *Editor) Tick() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick()
}

func (e *Editor) tick() bool {
	if e.closed || !e.engine.Tick() {
		return false
	}
	view, positions := e.engine.Positions()
	if view != "" {
		if err := e.graph.SetPositions(view, positions); err != nil {
			e.log.Debug(e.ctx, "dropping positions of a removed view", logging.Err(err))
		}
	}
	return true
}

// Settle ticks until the simulation cools or limit ticks have run.
func (e *Editor) Settle(limit int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for (limit <= 0 || n < limit) && e.tick() {
		n++
	}
	return n
}

// AttachClock runs a tick pass on every frame of clock until Close.
func (e *Editor) AttachClock(clock *timectrl.FrameClock) {
	remove := clock.AddListener(func(time.Time) { e.Tick() })
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		remove()
		return
	}
	e.unsubscribe = append(e.unsubscribe, remove)
}

// Search finds labelled nodes and links in every view.
func (e *Editor) Search(query string, limit int) []search.Result {
	if e.indexStale.Swap(false) {
		e.index.Rebuild(e.Graph())
	}
	return e.index.Search(query, limit)
}

// Reveal jumps to a search result.
func (e *Editor) Reveal(r search.Result) error {
	return e.Do(func(c *editor.Controller) error { return c.Reveal(r.View, r.Ref) })
}

func (e *Editor) span(ctx context.Context, name, collection string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(
		attribute.String("session_id", e.id),
		attribute.String("collection", collection),
	))
}

func (e *Editor) target(collection string) (string, error) {
	if e.store == nil {
		return "", ErrNoStore
	}
	if collection == "" {
		e.mu.Lock()
		collection = e.collection
		e.mu.Unlock()
	}
	if err := docstore.CheckName(collection); err != nil {
		return "", err
	}
	return collection, nil
}

// Load replaces the working set with collection. The store is read outside
// the session lock. On failure, or when the collection holds no views, the
// working set is a single empty root view.
func (e *Editor) Load(ctx context.Context, collection string) error {
	collection, err := e.target(collection)
	if err != nil {
		return err
	}
	ctx, span := e.span(ctx, "session.Load", collection)
	defer span.End()

	views, err := e.store.Load(ctx, collection)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.graph.Clear()
		e.ctrl.EnsureView()
		e.ctrl.Reset()
		e.log.Warn(ctx, "load failed; working set cleared", logging.String("collection", collection), logging.Err(err))
		return fmt.Errorf("load %q: %w", collection, err)
	}
	e.graph.Replace(views)
	e.collection = collection
	e.ctrl.EnsureView()
	e.ctrl.Reset()
	span.SetAttributes(attribute.Int("views", len(views)))
	e.log.Info(ctx, "collection loaded", logging.String("collection", collection), logging.Int("views", len(views)))
	return nil
}

// Save writes the working set to collection, replacing what was there.
func (e *Editor) Save(ctx context.Context, collection string) (docstore.WriteResult, error) {
	collection, err := e.target(collection)
	if err != nil {
		return docstore.WriteResult{}, err
	}
	ctx, span := e.span(ctx, "session.Save", collection)
	defer span.End()

	e.mu.Lock()
	doc := e.graph.Export()
	e.mu.Unlock()

	res, err := e.store.Save(ctx, collection, doc)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.log.Warn(ctx, "save failed", logging.String("collection", collection), logging.Err(err))
		return docstore.WriteResult{}, fmt.Errorf("save %q: %w", collection, err)
	}
	e.mu.Lock()
	e.collection = collection
	e.mu.Unlock()
	e.log.Info(ctx, "collection saved", logging.String("collection", collection), logging.Int("views", res.N))
	return res, nil
}

// Collections lists the store's collections.
func (e *Editor) Collections(ctx context.Context) ([]string, error) {
	if e.store == nil {
		return nil, ErrNoStore
	}
	ctx, span := e.span(ctx, "session.Collections", "")
	defer span.End()
	return e.store.Collections(ctx)
}

// DeleteCollection drops a stored collection. The working set is kept.
func (e *Editor) DeleteCollection(ctx context.Context, collection string) error {
	if collection == "" {
		return fmt.Errorf("delete: %w", docstore.ErrInvalidName)
	}
	collection, err := e.target(collection)
	if err != nil {
		return err
	}
	ctx, span := e.span(ctx, "session.Delete", collection)
	defer span.End()
	if err := e.store.Delete(ctx, collection); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete %q: %w", collection, err)
	}
	return nil
}

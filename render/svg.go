package render

import (
	"fmt"
	"io"
	"math"

	svg "github.com/ajstarks/svgo"

	"github.com/signalsfoundry/stockflow-editor/layout"
	"github.com/signalsfoundry/stockflow-editor/model"
)

// ArrowheadID is the marker every link path ends with.
const ArrowheadID = "arrowhead"

const (
	linkStroke   = "stroke:gray;stroke-width:1.5;fill:none"
	dashedStroke = "stroke-dasharray:4,3"
	labelStyle   = "font-family:sans-serif;font-size:10px;text-anchor:middle"
)

// WriteSVG draws a frame as a standalone SVG document. Element ids match
// the shape ids the Router resolves, so a front end can feed pointer
// events on the document straight back into it.
func WriteSVG(w io.Writer, f layout.Frame) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	canvas.Start(px(f.Width), px(f.Height))

	canvas.Def()
	// svgo only takes integer marker geometry.
	fmt.Fprintf(canvas.Writer,
		`<marker id=%q markerWidth="5" markerHeight="3.5" refX="4" refY="1.75" orient="auto"><polygon points="0 0, 5 1.75, 0 3.5" fill="gray"/></marker>`+"\n",
		ArrowheadID)
	canvas.DefEnd()

	canvas.Gid("links")
	for _, l := range f.Links {
		style := linkStroke
		if l.Type == model.LinkDashed {
			style += ";" + dashedStroke
		}
		if l.Prospective() {
			style += ";stroke-opacity:0.5"
		}
		canvas.Path(l.Path,
			attr("id", l.ID),
			attr("class", classes("link", l.Hovered, l.Clicked)),
			attr("marker-end", "url(#"+ArrowheadID+")"),
			style)
	}
	canvas.Gend()

	canvas.Gid("blobs")
	for _, s := range f.Circles {
		canvas.Circle(px(s.X), px(s.Y), px(s.R),
			attr("id", string(s.ID)),
			attr("class", classes("circle", s.Hovered, s.Clicked)),
			"fill:white;stroke:black")
	}
	for _, s := range f.Squares {
		canvas.Roundrect(px(s.X), px(s.Y), px(2*s.R), px(2*s.R), 3, 3,
			attr("id", string(s.ID)),
			attr("class", classes("square", s.Hovered, s.Clicked)),
			"fill:white;stroke:black")
	}
	canvas.Gend()

	canvas.Gid("externals")
	for _, m := range f.Markers {
		canvas.Rect(px(m.X), px(m.Y), px(m.Width), px(m.Height),
			attr("id", m.ID),
			attr("class", classes(string(m.Type), m.Hovered, m.Clicked)),
			"fill:lightgray")
	}
	canvas.Gend()

	canvas.Gid("texts")
	canvas.Text(px(f.Heading.At.X), px(f.Heading.At.Y), f.Heading.Text, "font-family:sans-serif;font-size:16px")
	for _, group := range [][]layout.Label{f.NodeLabels, f.LinkLabels, f.BoundaryLabels} {
		for _, l := range group {
			style := labelStyle
			if l.Wikiref {
				style += ";text-decoration:underline"
			}
			canvas.Text(px(l.At.X), px(l.At.Y), l.Text, style)
		}
	}
	canvas.Gend()

	canvas.End()
	return ew.err
}

func px(v float64) int { return int(math.Round(v)) }

func attr(name, value string) string {
	return fmt.Sprintf("%s=%q", name, value)
}

func classes(base string, hovered, clicked bool) string {
	if hovered {
		base += " hovered"
	}
	if clicked {
		base += " clicked"
	}
	return base
}

// errWriter keeps the first write error; svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return len(p), nil
	}
	n, err := e.w.Write(p)
	if err != nil {
		e.err = err
	}
	return n, err
}

// Package builtin is an in-process SVG to G-code engine for pen plotters.
//
// Documents are read with svgparser. The engine understands the straight-line
// subset of SVG (line, polyline, polygon, rect and path, including inside
// groups) and flattens Bézier segments into short line segments.
// Transforms, text and fills are ignored: a pen plotter only draws strokes.
package builtin

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JoshVarga/svgparser"

	"github.com/sakif/signature-plotter/internal/converter"
)

// Options tunes the generated G-code.
type Options struct {
	// FeedRate is the drawing speed in mm/min (pen down).
	FeedRate float64
	// TravelRate is the rapid move speed in mm/min (pen up).
	TravelRate float64
	// CurveSegments is the number of line segments per Bézier curve.
	CurveSegments int
}

// DefaultOptions returns settings suitable for a typical hobby pen plotter.
func DefaultOptions() Options {
	return Options{
		FeedRate:      1500,
		TravelRate:    3000,
		CurveSegments: 16,
	}
}

// Engine implements converter.Engine.
type Engine struct {
	opts Options
}

var _ converter.Engine = (*Engine)(nil)

// New creates an Engine. Zero fields in opts fall back to DefaultOptions.
func New(opts Options) *Engine {
	def := DefaultOptions()
	if opts.FeedRate <= 0 {
		opts.FeedRate = def.FeedRate
	}
	if opts.TravelRate <= 0 {
		opts.TravelRate = def.TravelRate
	}
	if opts.CurveSegments <= 0 {
		opts.CurveSegments = def.CurveSegments
	}
	return &Engine{opts: opts}
}

type point struct{ X, Y float64 }

// polyline is one continuous pen-down stroke.
type polyline []point

// Convert parses svg and emits absolute-coordinate G-code. Every emitted line
// is either a G0/G1 move or a setup command (G90, M03, M05).
func (e *Engine) Convert(ctx context.Context, svg string) (string, error) {
	doc, err := e.parse(ctx, svg)
	if err != nil {
		return "", err
	}
	if len(doc.strokes) == 0 {
		return "", fmt.Errorf("%w: no drawable geometry", converter.ErrInvalidInput)
	}

	// SVG has y growing downwards; plotters have it growing upwards.
	height := doc.height
	if height <= 0 {
		for _, s := range doc.strokes {
			for _, p := range s {
				height = math.Max(height, p.Y)
			}
		}
	}

	var b strings.Builder
	b.WriteString("G90\n")
	b.WriteString("M05\n")
	for _, s := range doc.strokes {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		start := s[0]
		fmt.Fprintf(&b, "G0 X%s Y%s F%s\n", coord(start.X), coord(height-start.Y), coord(e.opts.TravelRate))
		b.WriteString("M03\n")
		for _, p := range s[1:] {
			fmt.Fprintf(&b, "G1 X%s Y%s F%s\n", coord(p.X), coord(height-p.Y), coord(e.opts.FeedRate))
		}
		b.WriteString("M05\n")
	}
	fmt.Fprintf(&b, "G0 X%s Y%s F%s\n", coord(0), coord(0), coord(e.opts.TravelRate))
	return b.String(), nil
}

func coord(v float64) string {
	v = math.Round(v*1000) / 1000
	if v == 0 {
		v = 0 // drop negative zero
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

type document struct {
	height  float64
	strokes []polyline
}

func (e *Engine) parse(ctx context.Context, svg string) (*document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root, err := svgparser.Parse(strings.NewReader(svg), false)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", converter.ErrInvalidInput, err)
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no <svg> element", converter.ErrInvalidInput)
	}
	if name := localName(root.Name); name != "svg" {
		return nil, fmt.Errorf("%w: root element is <%s>, want <svg>", converter.ErrInvalidInput, name)
	}

	doc := &document{height: documentHeight(root.Attributes)}
	if err := e.collect(ctx, root.Children, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// collect appends the strokes of elements and their descendants in
// document order. Containers that are never rendered directly are skipped.
func (e *Engine) collect(ctx context.Context, elements []*svgparser.Element, doc *document) error {
	for _, el := range elements {
		if err := ctx.Err(); err != nil {
			return err
		}
		attrs := el.Attributes

		var strokes []polyline
		switch localName(el.Name) {
		case "defs", "clipPath", "mask", "symbol", "marker", "pattern", "metadata", "title", "desc":
			continue
		case "line":
			strokes = []polyline{{
				{num(attrs["x1"]), num(attrs["y1"])},
				{num(attrs["x2"]), num(attrs["y2"])},
			}}
		case "polyline", "polygon":
			pts, err := parsePoints(attrs["points"])
			if err != nil {
				return err
			}
			if localName(el.Name) == "polygon" && len(pts) > 0 {
				pts = append(pts, pts[0])
			}
			strokes = []polyline{pts}
		case "rect":
			x, y := num(attrs["x"]), num(attrs["y"])
			w, h := num(attrs["width"]), num(attrs["height"])
			if w > 0 && h > 0 {
				strokes = []polyline{{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}, {x, y}}}
			}
		case "path":
			var err error
			strokes, err = parsePath(attrs["d"], e.opts.CurveSegments)
			if err != nil {
				return err
			}
		}

		for _, s := range strokes {
			if len(s) >= 2 {
				doc.strokes = append(doc.strokes, s)
			}
		}
		if err := e.collect(ctx, el.Children, doc); err != nil {
			return err
		}
	}
	return nil
}

// localName drops a namespace prefix such as "svg:".
func localName(name string) string {
	if i := strings.LastIndexByte(name, ':'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// documentHeight prefers the viewBox height and falls back to the height
// attribute. Units are ignored.
func documentHeight(attrs map[string]string) float64 {
	if vb := numbers(attrs["viewBox"]); len(vb) == 4 && vb[3] > 0 {
		return vb[1] + vb[3]
	}
	return num(attrs["height"])
}

// num parses a length attribute, ignoring a trailing unit such as "px" or "mm".
func num(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimRightFunc(s, func(r rune) bool { return (r >= 'a' && r <= 'z') || r == '%' })
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parsePoints(s string) (polyline, error) {
	vals := numbers(s)
	if len(vals)%2 != 0 {
		return nil, fmt.Errorf("%w: odd number of coordinates in points", converter.ErrInvalidInput)
	}
	pts := make(polyline, 0, len(vals)/2)
	for i := 0; i < len(vals); i += 2 {
		pts = append(pts, point{vals[i], vals[i+1]})
	}
	return pts, nil
}

// numbers splits a list of SVG numbers separated by whitespace and/or commas.
// Malformed entries are skipped.
func numbers(s string) []float64 {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		if v, err := strconv.ParseFloat(f, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

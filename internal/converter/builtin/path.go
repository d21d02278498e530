package builtin

import (
	"fmt"
	"strconv"

	"github.com/sakif/signature-plotter/internal/converter"
)

// pathParams is the number of numeric arguments each path command takes.
var pathParams = map[byte]int{
	'M': 2, 'L': 2, 'H': 1, 'V': 1, 'Z': 0,
	'C': 6, 'S': 4, 'Q': 4, 'T': 2, 'A': 7,
}

type pathScanner struct {
	s   string
	pos int
}

func (sc *pathScanner) skipSeparators() {
	for sc.pos < len(sc.s) {
		switch sc.s[sc.pos] {
		case ' ', '\t', '\n', '\r', ',':
			sc.pos++
		default:
			return
		}
	}
}

// command returns the next command letter, or 0 when the next token is a
// number (an implicit repeat of the previous command).
func (sc *pathScanner) command() (byte, bool) {
	sc.skipSeparators()
	if sc.pos >= len(sc.s) {
		return 0, false
	}
	c := sc.s[sc.pos]
	if _, ok := pathParams[upper(c)]; ok {
		sc.pos++
		return c, true
	}
	return 0, true
}

// number scans one SVG number. "1.5.5" is two numbers and "1-2" is 1 and -2.
func (sc *pathScanner) number() (float64, error) {
	sc.skipSeparators()
	start := sc.pos
	if sc.pos < len(sc.s) && (sc.s[sc.pos] == '+' || sc.s[sc.pos] == '-') {
		sc.pos++
	}
	digits, dot := false, false
	for sc.pos < len(sc.s) {
		c := sc.s[sc.pos]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.' && !dot:
			dot = true
		case (c == 'e' || c == 'E') && digits:
			sc.pos++
			if sc.pos < len(sc.s) && (sc.s[sc.pos] == '+' || sc.s[sc.pos] == '-') {
				sc.pos++
			}
			for sc.pos < len(sc.s) && sc.s[sc.pos] >= '0' && sc.s[sc.pos] <= '9' {
				sc.pos++
			}
			return sc.parse(start)
		default:
			return sc.parse(start)
		}
		sc.pos++
	}
	return sc.parse(start)
}

func (sc *pathScanner) parse(start int) (float64, error) {
	v, err := strconv.ParseFloat(sc.s[start:sc.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad number in path data near offset %d", converter.ErrInvalidInput, start)
	}
	return v, nil
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// parsePath flattens path data into strokes. Arcs are approximated by a
// straight segment to their end point.
func parsePath(d string, segments int) ([]polyline, error) {
	sc := &pathScanner{s: d}

	var (
		strokes []polyline
		cur     polyline
		pos     point
		start   point
		ctrl    point // last control point, for S and T
		prev    byte
		cmd     byte
	)

	flush := func() {
		if len(cur) >= 2 {
			strokes = append(strokes, cur)
		}
		cur = nil
	}
	lineTo := func(p point) {
		if len(cur) == 0 {
			cur = polyline{pos}
		}
		cur = append(cur, p)
		pos = p
	}

	for {
		c, more := sc.command()
		if !more {
			break
		}
		if c != 0 {
			cmd = c
		} else if cmd == 0 {
			return nil, fmt.Errorf("%w: path data must start with a command", converter.ErrInvalidInput)
		} else if upper(cmd) == 'Z' {
			return nil, fmt.Errorf("%w: unexpected number after closepath", converter.ErrInvalidInput)
		}

		op := upper(cmd)
		rel := cmd != op
		args := make([]float64, pathParams[op])
		for i := range args {
			v, err := sc.number()
			if err != nil {
				return nil, err
			}
			args[i] = v
		}

		abs := func(x, y float64) point {
			if rel {
				return point{pos.X + x, pos.Y + y}
			}
			return point{x, y}
		}

		switch op {
		case 'M':
			flush()
			pos = abs(args[0], args[1])
			start = pos
			// further pairs after a moveto are implicit linetos
			if rel {
				cmd = 'l'
			} else {
				cmd = 'L'
			}
		case 'L':
			lineTo(abs(args[0], args[1]))
		case 'H':
			x := args[0]
			if rel {
				x += pos.X
			}
			lineTo(point{x, pos.Y})
		case 'V':
			y := args[0]
			if rel {
				y += pos.Y
			}
			lineTo(point{pos.X, y})
		case 'Z':
			if len(cur) > 0 {
				lineTo(start)
			}
			flush()
			pos = start
		case 'C', 'S':
			var c1 point
			var c2, end point
			if op == 'C' {
				c1 = abs(args[0], args[1])
				c2, end = abs(args[2], args[3]), abs(args[4], args[5])
			} else {
				c1 = pos
				if p := upper(prev); p == 'C' || p == 'S' {
					c1 = point{2*pos.X - ctrl.X, 2*pos.Y - ctrl.Y}
				}
				c2, end = abs(args[0], args[1]), abs(args[2], args[3])
			}
			from := pos
			for i := 1; i <= segments; i++ {
				lineTo(cubic(from, c1, c2, end, float64(i)/float64(segments)))
			}
			ctrl = c2
		case 'Q', 'T':
			var c1, end point
			if op == 'Q' {
				c1, end = abs(args[0], args[1]), abs(args[2], args[3])
			} else {
				c1 = pos
				if p := upper(prev); p == 'Q' || p == 'T' {
					c1 = point{2*pos.X - ctrl.X, 2*pos.Y - ctrl.Y}
				}
				end = abs(args[0], args[1])
			}
			from := pos
			for i := 1; i <= segments; i++ {
				lineTo(quadratic(from, c1, end, float64(i)/float64(segments)))
			}
			ctrl = c1
		case 'A':
			lineTo(abs(args[5], args[6]))
		}
		prev = op
	}
	flush()
	return strokes, nil
}

func cubic(p0, p1, p2, p3 point, t float64) point {
	u := 1 - t
	a, b, c, d := u*u*u, 3*u*u*t, 3*u*t*t, t*t*t
	return point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}

func quadratic(p0, p1, p2 point, t float64) point {
	u := 1 - t
	a, b, c := u*u, 2*u*t, t*t
	return point{
		X: a*p0.X + b*p1.X + c*p2.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y,
	}
}

package extractor

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

const (
	tableHeaderMarker = "Дата операции"
	tableFooterMarker = "Итого"

	// Runs whose baselines differ by less than this share a line.
	lineTolerance = 2.0
	// A horizontal gap wider than fontSize*cellGapFactor starts a new cell.
	cellGapFactor = 1.0
	minCellGap    = 4.0
	// Cells may start slightly left of their column header.
	anchorTolerance = 3.0

	defaultFontSize = 10.0
)

var rowStartRe = regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}`)

// textRun is a piece of text placed at a position on the page. Y grows
// upwards as in PDF user space.
type textRun struct {
	X, Y, W, Size float64
	S             string
}

func (r textRun) size() float64 {
	if r.Size <= 0 {
		return defaultFontSize
	}
	return r.Size
}

func (r textRun) end() float64 {
	w := r.W
	if w <= 0 {
		w = float64(utf8.RuneCountInString(r.S)) * r.size() * 0.5
	}
	return r.X + w
}

type layoutCell struct {
	x0, x1 float64
	text   string
}

type layoutLine struct {
	y     float64
	cells []layoutCell
}

func (l layoutLine) text() string {
	parts := make([]string, 0, len(l.cells))
	for _, c := range l.cells {
		parts = append(parts, c.text)
	}
	return strings.Join(parts, " ")
}

// buildLines groups runs into lines ordered top to bottom and splits every
// line into cells at wide horizontal gaps.
func buildLines(runs []textRun) []layoutLine {
	if len(runs) == 0 {
		return nil
	}

	sorted := make([]textRun, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	// Tolerance applies only here, against the first run of each line.

	var groups [][]textRun
	for _, r := range sorted {
		n := len(groups)
		if n > 0 && math.Abs(groups[n-1][0].Y-r.Y) < lineTolerance {
			groups[n-1] = append(groups[n-1], r)
			continue
		}
		groups = append(groups, []textRun{r})
	}

	lines := make([]layoutLine, 0, len(groups))
	for _, g := range groups {
		sort.SliceStable(g, func(i, j int) bool { return g[i].X < g[j].X })

		var cells []layoutCell
		var b strings.Builder
		cur := layoutCell{x0: g[0].X}
		prevEnd := g[0].X
		for i, r := range g {
			if strings.TrimSpace(r.S) == "" {
				continue
			}
			gap := r.X - prevEnd
			if i > 0 && b.Len() > 0 && gap > math.Max(r.size()*cellGapFactor, minCellGap) {
				cur.text = strings.TrimSpace(b.String())
				cells = append(cells, cur)
				b.Reset()
				cur = layoutCell{x0: r.X}
			}
			if b.Len() == 0 {
				cur.x0 = r.X
			} else if gap > 0.15*r.size() {
				b.WriteByte(' ')
			}
			b.WriteString(r.S)
			cur.x1 = r.end()
			prevEnd = cur.x1
		}
		if b.Len() > 0 {
			cur.text = strings.TrimSpace(b.String())
			cells = append(cells, cur)
		}
		if len(cells) > 0 {
			lines = append(lines, layoutLine{y: g[0].Y, cells: cells})
		}
	}
	return lines
}

func linesText(lines []layoutLine) string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.text())
	}
	return strings.Join(out, "\n")
}

// buildTables finds statement tables in the lines of one page. A table starts
// at the header line, and its header cells give the column anchors. Lines
// whose first column starts with a date open a new row; other lines continue
// the previous row.
func buildTables(lines []layoutLine) [][]Row {
	var (
		tables  [][]Row
		current []Row
		anchors []float64
		inTable bool
	)

	flush := func() {
		if inTable && len(current) > 0 {
			tables = append(tables, current)
		}
		current = nil
		anchors = nil
		inTable = false
	}

	for _, l := range lines {
		if isTableHeader(l) {
			flush()
			inTable = true
			anchors = make([]float64, 0, len(l.cells))
			for _, c := range l.cells {
				anchors = append(anchors, c.x0)
			}
			current = append(current, bucket(l, anchors))
			continue
		}
		if !inTable {
			continue
		}
		if strings.HasPrefix(l.text(), tableFooterMarker) || !inAnchorRange(l, anchors) {
			flush()
			continue
		}

		cols := bucket(l, anchors)
		if rowStartRe.MatchString(cols[0]) || len(current) == 0 {
			current = append(current, cols)
			continue
		}
		last := current[len(current)-1]
		for i, text := range cols {
			if text == "" {
				continue
			}
			if last[i] == "" {
				last[i] = text
			} else {
				last[i] += "\n" + text
			}
		}
	}
	flush()

	return tables
}

func isTableHeader(l layoutLine) bool {
	for _, c := range l.cells {
		if strings.Contains(c.text, tableHeaderMarker) {
			return true
		}
	}
	return false
}

func inAnchorRange(l layoutLine, anchors []float64) bool {
	if len(anchors) == 0 {
		return false
	}
	for _, c := range l.cells {
		if c.x0 >= anchors[0]-anchorTolerance {
			return true
		}
	}
	return false
}

// bucket assigns every cell of the line to the rightmost column whose anchor
// is left of the cell start.
func bucket(l layoutLine, anchors []float64) Row {
	cols := make(Row, len(anchors))
	for _, c := range l.cells {
		idx := -1
		for i, a := range anchors {
			if c.x0 >= a-anchorTolerance {
				idx = i
			}
		}
		if idx < 0 {
			continue
		}
		if cols[idx] == "" {
			cols[idx] = c.text
		} else {
			cols[idx] += " " + c.text
		}
	}
	return cols
}

package extractor

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func statementRuns() []textRun {
	run := func(x, y float64, s string) textRun {
		return textRun{X: x, Y: y, Size: 8, S: s}
	}
	return []textRun{
		run(50, 760, "Период выписки: 01.03.2024 – 31.03.2024"),
		// Header row.
		run(150, 700, "Номер документа"),
		run(50, 700, "Дата операции"),
		run(260, 700, "Описание операции"),
		run(420, 700, "Сумма операции в валюте"),
		// First operation with a wrapped description.
		run(50, 680, "01.03.2024 14:22:01"),
		run(150, 680, "A-100"),
		run(260, 680, "Перевод"),
		run(290, 680.5, "от клиента"),
		run(420, 680, "+ 6 812.98 ₽"),
		run(260, 670, "Иванов"),
		// Second operation.
		run(50, 650, "02.03.2024 09:00:00"),
		run(150, 650, "A-101"),
		run(260, 650, "Оплата"),
		run(420, 650, "- 20 000.00 ₽"),
		// Totals end the table.
		run(50, 600, "Итого зачислений за период: 6 812.98"),
		run(50, 590, "Исходящий остаток: 0.00"),
	}
}

func TestBuildLines(t *testing.T) {
	lines := buildLines(statementRuns())
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7", len(lines))
	}

	header := lines[1]
	var cells []string
	for _, c := range header.cells {
		cells = append(cells, c.text)
	}
	want := []string{"Дата операции", "Номер документа", "Описание операции", "Сумма операции в валюте"}
	if diff := cmp.Diff(want, cells); diff != "" {
		t.Errorf("header cells mismatch (-want +got):\n%s", diff)
	}

	// Close runs merge into one cell with a space.
	if got := lines[2].cells[2].text; got != "Перевод от клиента" {
		t.Errorf("description cell = %q, want %q", got, "Перевод от клиента")
	}
}

func TestBuildLines_NearbyBaselines(t *testing.T) {
	run := func(x, y float64, s string) textRun {
		return textRun{X: x, Y: y, Size: 8, S: s}
	}
	a := run(50, 703, "A")
	b := run(100, 701.5, "B")
	c := run(50, 700, "C")
	d := run(100, 700, "D")

	tests := []struct {
		name string
		runs []textRun
	}{
		{name: "top down", runs: []textRun{a, b, c, d}},
		{name: "bottom up", runs: []textRun{d, c, b, a}},
		{name: "shuffled", runs: []textRun{b, d, a, c}},
		{name: "middle first", runs: []textRun{c, b, d, a}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, l := range buildLines(tt.runs) {
				got = append(got, l.text())
			}
			if diff := cmp.Diff([]string{"A B", "C D"}, got); diff != "" {
				t.Errorf("lines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildLines_Empty(t *testing.T) {
	if lines := buildLines(nil); lines != nil {
		t.Errorf("buildLines(nil) = %v, want nil", lines)
	}
}

func TestLinesText(t *testing.T) {
	text := linesText(buildLines(statementRuns()))
	if !strings.HasPrefix(text, "Период выписки: 01.03.2024 – 31.03.2024\n") {
		t.Errorf("text does not start with the period line:\n%s", text)
	}
	if !strings.Contains(text, "\nИсходящий остаток: 0.00") {
		t.Errorf("text is missing the closing balance line:\n%s", text)
	}
}

func TestBuildTables(t *testing.T) {
	tables := buildTables(buildLines(statementRuns()))
	want := [][]Row{{
		{"Дата операции", "Номер документа", "Описание операции", "Сумма операции в валюте"},
		{"01.03.2024 14:22:01", "A-100", "Перевод от клиента\nИванов", "+ 6 812.98 ₽"},
		{"02.03.2024 09:00:00", "A-101", "Оплата", "- 20 000.00 ₽"},
	}}
	if diff := cmp.Diff(want, tables); diff != "" {
		t.Errorf("buildTables() mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTables_NoHeader(t *testing.T) {
	runs := []textRun{
		{X: 50, Y: 700, Size: 8, S: "01.03.2024 14:22:01"},
		{X: 150, Y: 700, Size: 8, S: "A-100"},
	}
	if tables := buildTables(buildLines(runs)); len(tables) != 0 {
		t.Errorf("got %d tables, want none without a header line", len(tables))
	}
}

func TestBuildTables_RowsFeedParser(t *testing.T) {
	tables := buildTables(buildLines(statementRuns()))
	var got []rowResult
	for _, row := range tables[0] {
		got = append(got, parseRow(row))
	}
	if got[0].skip != skipHeaderRow {
		t.Errorf("header row skip = %q, want %q", got[0].skip, skipHeaderRow)
	}
	if !got[1].ok() || got[1].tx.Description != "Перевод от клиента Иванов" {
		t.Errorf("first row = %+v", got[1])
	}
	if !got[2].ok() || got[2].tx.Amount != 20000 || got[2].tx.IsCredit {
		t.Errorf("second row = %+v", got[2])
	}
}

package importer

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"visitmap/internal/core"
)

var (
	purposes = []string{"出差", "旅行", "徒步"}
	now      = time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)
)

func TestParse(t *testing.T) {
	text := "北京市,出差,2024-01\n" +
		"\n" +
		"上海市\t旅行\t2023-11-05\n" +
		"  杭州市   徒步  \n" +
		"成都市, 旅行, 2022/7/1\n" +
		"南京市,出差,2024-02,extra"

	got, err := Parse(text, purposes, now)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []core.VisitRecord{
		{City: "北京市", Purpose: "出差", Date: "2024-01"},
		{City: "上海市", Purpose: "旅行", Date: "2023-11"},
		{City: "杭州市", Purpose: "徒步", Date: "2025-03"},
		{City: "成都市", Purpose: "旅行", Date: "2022-07"},
		{City: "南京市", Purpose: "出差", Date: "2024-02"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Parse = %#v\nwant %#v", got, want)
	}
}

func TestParseEmpty(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		if _, err := Parse(text, purposes, now); !errors.Is(err, ErrEmptyImport) {
			t.Fatalf("Parse(%q) error = %v, want ErrEmptyImport", text, err)
		}
	}
}

func TestParseCollectsEveryLineError(t *testing.T) {
	text := "北京市\n" +
		"上海市,出差,2024-01\n" +
		"\n" +
		"广州市,探亲,2024-01\n" +
		"深圳市,旅行,not-a-date\n" +
		"天津市,旅行,2024-13"

	got, err := Parse(text, purposes, now)
	if got != nil {
		t.Fatalf("expected no records on error, got %#v", got)
	}
	var importErr *Error
	if !errors.As(err, &importErr) {
		t.Fatalf("expected *Error, got %v", err)
	}

	lines := make([]int, len(importErr.Lines))
	for i, l := range importErr.Lines {
		lines[i] = l.Line
	}
	if want := []int{1, 3, 4, 5}; !reflect.DeepEqual(lines, want) {
		t.Fatalf("error lines = %v, want %v", lines, want)
	}
	if importErr.Lines[1].Text != "广州市,探亲,2024-01" {
		t.Fatalf("line text = %q", importErr.Lines[1].Text)
	}
}

func TestParseLineNumbersSkipBlankLines(t *testing.T) {
	text := "\n北京市,旅行,2024-01\n\n上海市,探亲,2024-02\n"
	_, err := Parse(text, purposes, now)
	var importErr *Error
	if !errors.As(err, &importErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if len(importErr.Lines) != 1 || importErr.Lines[0].Line != 2 {
		t.Fatalf("error lines = %+v, want one error on line 2", importErr.Lines)
	}
}

func TestExample(t *testing.T) {
	got := Example([]string{"Work"})
	want := "北京市,Work,2024-01\n" +
		"上海市,出差,2024-02\n" +
		"深圳市,徒步,2024-03\n" +
		"广州市,Work,2024-01\n" +
		"杭州市,出差,2024-02"
	if got != want {
		t.Fatalf("Example = %q", got)
	}

	records, err := Parse(Example(purposes), purposes, now)
	if err != nil {
		t.Fatalf("example does not parse: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("expected 5 example records, got %d", len(records))
	}
}

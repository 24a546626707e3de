package results

import (
	"reflect"
	"testing"
)

func TestSplitFields(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected []string
	}{
		{name: "plain", line: "a,b,c", expected: []string{"a", "b", "c"}},
		{name: "quoted comma", line: `a,"b,c",d`, expected: []string{"a", "b,c", "d"}},
		{name: "trims whitespace", line: " a , b ,c ", expected: []string{"a", "b", "c"}},
		{name: "empty fields", line: "a,,c,", expected: []string{"a", "", "c", ""}},
		{name: "quoted tuple list", line: `1,"(1, 0.42)(2, 0.31)",x`, expected: []string{"1", "(1, 0.42)(2, 0.31)", "x"}},
		{name: "single quote char", line: `"`, expected: []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitFields(tt.line)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("splitFields(%q) = %q, want %q", tt.line, got, tt.expected)
			}
		})
	}
}

func TestParseCSV(t *testing.T) {
	text := "cluster,predicted_species,confidence\r\n" +
		"0,\"Panthera leo\",0.91\n" +
		"\n" +
		"1,\"Felis catus, domestic\"\n"

	headers, rows := ParseCSV(text)

	if !reflect.DeepEqual(headers, []string{"cluster", "predicted_species", "confidence"}) {
		t.Fatalf("unexpected headers: %q", headers)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows (blank lines dropped), got %d", len(rows))
	}

	if got := rows[0].Keys(); !reflect.DeepEqual(got, headers) {
		t.Errorf("row keys should follow header order, got %q", got)
	}
	if v, _ := rows[0].Get("predicted_species"); v != "Panthera leo" {
		t.Errorf("unexpected species: %v", v)
	}
	if v, _ := rows[1].Get("predicted_species"); v != "Felis catus, domestic" {
		t.Errorf("quoted comma should stay in field, got %v", v)
	}
	if v, ok := rows[1].Get("confidence"); !ok || v != "" {
		t.Errorf("missing trailing field should be empty string, got %v (present %v)", v, ok)
	}
}

func TestParseCSV_ExtraFieldsDropped(t *testing.T) {
	_, rows := ParseCSV("a,b\n1,2,3\n")
	if len(rows) != 1 || rows[0].Len() != 2 {
		t.Fatalf("expected one row with two fields, got %+v", rows)
	}
}

func TestParseCSV_Empty(t *testing.T) {
	headers, rows := ParseCSV(" \n\r\n")
	if headers != nil || rows != nil {
		t.Errorf("expected nothing for blank text, got %q / %v", headers, rows)
	}
}

func TestParseCSV_HeaderOnly(t *testing.T) {
	headers, rows := ParseCSV("a,b\n")
	if len(headers) != 2 {
		t.Errorf("expected 2 headers, got %q", headers)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

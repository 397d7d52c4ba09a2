package filter

import (
	"reflect"
	"testing"

	"github.com/mrd/ca-drive/internal/models"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		config   Config
		want     bool
	}{
		{"no filters", "invoice.pdf", Config{}, true},
		{"include hit", "invoice.pdf", Config{Include: []string{"*.pdf"}}, true},
		{"include miss", "ledger.xlsx", Config{Include: []string{"*.pdf"}}, false},
		{"include case-insensitive", "INVOICE.PDF", Config{Include: []string{"*.pdf"}}, true},
		{"exclude wins", "draft-invoice.pdf", Config{Include: []string{"*.pdf"}, Exclude: []string{"draft*"}}, false},
		{"search all terms", "GSTR1 April 2024.pdf", Config{Search: []string{"gstr", "april"}}, true},
		{"search missing term", "GSTR1 May 2024.pdf", Config{Search: []string{"gstr", "april"}}, false},
		{"bad pattern never matches", "a.pdf", Config{Include: []string{"["}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.filename, tt.config); got != tt.want {
				t.Errorf("Matches(%q) = %v, want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestApplyToFiles(t *testing.T) {
	files := []models.File{
		{ID: "1", FileName: "invoice.pdf", FileType: "application/pdf"},
		{ID: "2", FileName: "ledger.xlsx", FileType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		{ID: "3", FileName: "receipt.png", FileType: "image/png"},
	}

	ids := func(fs []models.File) []string {
		var out []string
		for _, f := range fs {
			out = append(out, f.ID)
		}
		return out
	}

	if got := ids(ApplyToFiles(files, Config{})); !reflect.DeepEqual(got, []string{"1", "2", "3"}) {
		t.Errorf("no filter = %v", got)
	}
	if got := ids(ApplyToFiles(files, Config{Kinds: []models.FileKind{models.FileKindImage, models.FileKindPDF}})); !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("kinds filter = %v", got)
	}
	if got := ids(ApplyToFiles(files, Config{Exclude: []string{"*.png"}, Search: []string{"e"}})); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("exclude+search = %v", got)
	}
}

func TestParsePatternList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"*.pdf", []string{"*.pdf"}},
		{" *.pdf , *.xlsx ,,", []string{"*.pdf", "*.xlsx"}},
	}
	for _, tt := range tests {
		if got := ParsePatternList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParsePatternList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseKinds(t *testing.T) {
	got := ParseKinds("PDF, image, video")
	want := []models.FileKind{models.FileKindPDF, models.FileKindImage}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseKinds() = %v, want %v", got, want)
	}
}

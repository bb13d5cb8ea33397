package archive

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParseTopLevelArray(t *testing.T) {
	doc := `[{"id_str":"1","full_text":"a"},{"id_str":"2","full_text":"b"}]`
	tab, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tab.Len())
	}
	if got, _ := tab.Rows[0].String("id_str"); got != "1" {
		t.Fatalf("expected id 1, got %q", got)
	}
}

func TestParseTweetsObject(t *testing.T) {
	doc := `{"tweets":[{"id_str":"1","full_text":"hi"}]}`
	tab, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", tab.Len())
	}
}

func TestParseJSONLines(t *testing.T) {
	doc := "{\"id_str\":\"1\",\"full_text\":\"a\"}\n\n{\"id_str\":\"2\",\"full_text\":\"b\"}\n"
	tab, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", tab.Len())
	}
}

func TestParseTweetEnvelope(t *testing.T) {
	doc := `[{"tweet":{"id_str":"9","full_text":"wrapped","user":{"screen_name":"me"}}}]`
	tab, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	r := tab.Rows[0]
	if got, _ := r.String("id_str"); got != "9" {
		t.Fatalf("envelope not unwrapped: %v", r)
	}
	if got, _ := r.String("user.screen_name"); got != "me" {
		t.Fatalf("nested object not flattened: %v", r)
	}
}

func TestParseFlattensDeepNesting(t *testing.T) {
	doc := `[{"id_str":"1","full_text":"x","entities":{"urls":[{"expanded_url":"https://x.com/a/status/1"}]},"retweeted_status":{"id_str":"7"}}]`
	tab, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	r := tab.Rows[0]
	if r.List("entities.urls") == nil {
		t.Fatalf("lists should survive flattening as values: %v", r)
	}
	if got, _ := r.String("retweeted_status.id_str"); got != "7" {
		t.Fatalf("nested retweeted_status not flattened: %v", r)
	}
}

func TestParseEmptyInputs(t *testing.T) {
	for _, doc := range []string{"", "   \n ", "{}", "[]"} {
		tab, err := Parse([]byte(doc))
		if err != nil {
			t.Fatalf("doc %q: %v", doc, err)
		}
		if tab.Len() != 0 {
			t.Fatalf("doc %q: expected empty table, got %d rows", doc, tab.Len())
		}
	}
}

func TestParseUnsupportedShapes(t *testing.T) {
	cases := []string{
		`42`,
		`"just a string"`,
		`{"tweets":"not an array"}`,
		`[1,2,3]`,
		"not json at all\nstill not json",
	}
	for _, doc := range cases {
		_, err := Parse([]byte(doc))
		var fe *FormatError
		if !errors.As(err, &fe) {
			t.Fatalf("doc %q: expected FormatError, got %v", doc, err)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.json")
	if err := os.WriteFile(path, []byte(`[{"id_str":"1","full_text":"a"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	tab, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if tab.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", tab.Len())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

package liveboard

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestRawJSON(t *testing.T) {
	v, err := RawJSON([]byte("  {\"a\":1}\n"))
	if err != nil {
		t.Fatalf("RawJSON() error = %v", err)
	}
	raw, ok := v.(json.RawMessage)
	if !ok {
		t.Fatalf("RawJSON() returned %T, want json.RawMessage", v)
	}
	if string(raw) != `{"a":1}` {
		t.Errorf("RawJSON() = %s", raw)
	}

	if _, err := RawJSON([]byte("not json")); err == nil {
		t.Error("RawJSON() expected error for non-JSON body")
	}
}

func TestText(t *testing.T) {
	v, err := Text([]byte("  all quiet \n"))
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	want := map[string]string{"text": "all quiet"}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("Text() = %v, want %v", v, want)
	}

	if _, err := Text([]byte("   ")); !errors.Is(err, ErrNoMatch) {
		t.Errorf("Text(blank) error = %v, want ErrNoMatch", err)
	}
}

func TestJSONPath(t *testing.T) {
	body := []byte(`{"data":{"departures":[{"line":"N","min":4},{"line":"Q","min":9}],"ok":true}}`)

	tests := []struct {
		path    string
		want    any
		wantErr bool
	}{
		{"data.ok", true, false},
		{"data.departures.1.line", "Q", false},
		{"data.departures.0.min", float64(4), false},
		{"data.departures.5", nil, true},
		{"data.departures.x", nil, true},
		{"data.missing", nil, true},
		{"data.ok.deeper", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := JSONPath(tt.path)(body)
			if tt.wantErr {
				if !errors.Is(err, ErrNoMatch) {
					t.Errorf("JSONPath(%q) error = %v, want ErrNoMatch", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("JSONPath(%q) error = %v", tt.path, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("JSONPath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestJSONPath_InvalidBody(t *testing.T) {
	if _, err := JSONPath("a")([]byte("<html>")); err == nil {
		t.Error("JSONPath() expected error for non-JSON body")
	}
}

func TestRegex(t *testing.T) {
	tr, err := Regex(`Temp: ([\d.]+)C, (?P<sky>\w+), (\d+)%`, "temp_c")
	if err != nil {
		t.Fatalf("Regex() error = %v", err)
	}

	v, err := tr([]byte("Now: Temp: 21.5C, cloudy, 40% humidity"))
	if err != nil {
		t.Fatalf("transform error = %v", err)
	}
	want := map[string]string{"temp_c": "21.5", "sky": "cloudy", "match2": "40"}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("Regex() = %v, want %v", v, want)
	}

	if _, err := tr([]byte("nothing here")); !errors.Is(err, ErrNoMatch) {
		t.Errorf("no match error = %v, want ErrNoMatch", err)
	}
}

func TestRegex_InvalidPattern(t *testing.T) {
	if _, err := Regex(`([`); err == nil {
		t.Error("Regex() expected error for invalid pattern")
	}
	if _, err := Regex(`no groups`); err == nil {
		t.Error("Regex() expected error for pattern without capture group")
	}
}

func TestMustRegex_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustRegex() should panic on invalid pattern")
		}
	}()
	MustRegex(`([`)
}

func TestWrap(t *testing.T) {
	v, err := Wrap("departures", JSONPath("items"))([]byte(`{"items":[1,2]}`))
	if err != nil {
		t.Fatalf("Wrap() error = %v", err)
	}
	want := map[string]any{"departures": []any{float64(1), float64(2)}}
	if !reflect.DeepEqual(v, want) {
		t.Errorf("Wrap() = %v, want %v", v, want)
	}

	if _, err := Wrap("x", JSONPath("missing"))([]byte(`{}`)); err == nil {
		t.Error("Wrap() should propagate the inner error")
	}
}

func TestFirstOf(t *testing.T) {
	tr := FirstOf(JSONPath("status"), Text)

	v, err := tr([]byte(`{"status":"ok"}`))
	if err != nil || v != "ok" {
		t.Errorf("FirstOf(json) = %v, %v; want ok", v, err)
	}

	v, err = tr([]byte("plain"))
	if err != nil {
		t.Fatalf("FirstOf(text) error = %v", err)
	}
	if !reflect.DeepEqual(v, map[string]string{"text": "plain"}) {
		t.Errorf("FirstOf(text) = %v", v)
	}

	if _, err := tr([]byte("")); err == nil {
		t.Error("FirstOf() expected error when every transform fails")
	}
	if _, err := FirstOf()([]byte("x")); !errors.Is(err, ErrNoMatch) {
		t.Errorf("FirstOf() with no transforms error = %v, want ErrNoMatch", err)
	}
}

func TestDefaultTransform(t *testing.T) {
	v, err := DefaultTransform([]byte(`[1,2,3]`))
	if err != nil {
		t.Fatalf("DefaultTransform(json) error = %v", err)
	}
	if _, ok := v.(json.RawMessage); !ok {
		t.Errorf("DefaultTransform(json) returned %T, want json.RawMessage", v)
	}

	v, err = DefaultTransform([]byte("OK"))
	if err != nil {
		t.Fatalf("DefaultTransform(text) error = %v", err)
	}
	if !reflect.DeepEqual(v, map[string]string{"text": "OK"}) {
		t.Errorf("DefaultTransform(text) = %v", v)
	}
}

package liveboard

import (
	"context"
	"strings"
	"testing"
	"time"
)

// staticSource returns the same payload on every fetch.
func staticSource(v any) Source {
	return SourceFunc(func(context.Context) (any, error) { return v, nil })
}

func TestNewPanel_Valid(t *testing.T) {
	p, err := NewPanel("weather", staticSource(map[string]int{"temp": 21}))
	if err != nil {
		t.Fatalf("NewPanel() error = %v", err)
	}
	if p.Name() != "weather" {
		t.Errorf("Name() = %q, want %q", p.Name(), "weather")
	}
	if p.Interval() != defaultPanelInterval {
		t.Errorf("Interval() = %v, want %v", p.Interval(), defaultPanelInterval)
	}
	if p.TTL() != defaultPanelInterval*3/2 {
		t.Errorf("TTL() = %v, want %v", p.TTL(), defaultPanelInterval*3/2)
	}
	if p.Timeout() != defaultPanelTimeout {
		t.Errorf("Timeout() = %v, want %v", p.Timeout(), defaultPanelTimeout)
	}
	if p.Persist() {
		t.Error("Persist() = true, want false")
	}
	if p.Source() == nil {
		t.Error("Source() = nil")
	}
}

func TestNewPanel_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		panel   string
		src     Source
		opts    []PanelOption
		wantErr string
	}{
		{"empty name", "", staticSource(1), nil, "name cannot be empty"},
		{"reserved name", "maintenance", staticSource(1), nil, "reserved"},
		{"nil source", "weather", nil, nil, "source cannot be nil"},
		{"interval too short", "weather", staticSource(1), []PanelOption{WithInterval(500 * time.Millisecond)}, "at least 1 second"},
		{"interval too long", "weather", staticSource(1), []PanelOption{WithInterval(2 * time.Hour)}, "must not exceed 1 hour"},
		{"ttl below interval", "weather", staticSource(1), []PanelOption{WithInterval(time.Minute), WithTTL(30 * time.Second)}, "must not be shorter than interval"},
		{"zero ttl", "weather", staticSource(1), []PanelOption{WithTTL(0)}, "ttl must be positive"},
		{"zero timeout", "weather", staticSource(1), []PanelOption{WithTimeout(0)}, "timeout must be positive"},
		{"negative timeout", "weather", staticSource(1), []PanelOption{WithTimeout(-time.Second)}, "timeout must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPanel(tt.panel, tt.src, tt.opts...)
			if err == nil {
				t.Fatal("NewPanel() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewPanel_TTLDefaultsFromInterval(t *testing.T) {
	p, err := NewPanel("transit", staticSource(1), WithInterval(time.Minute))
	if err != nil {
		t.Fatalf("NewPanel() error = %v", err)
	}
	if p.TTL() != 90*time.Second {
		t.Errorf("TTL() = %v, want 90s", p.TTL())
	}
}

func TestNewPanel_AllOptions(t *testing.T) {
	p, err := NewPanel("transit", staticSource(1),
		WithInterval(time.Minute),
		WithTTL(2*time.Minute),
		WithTimeout(3*time.Second),
		WithPersist(true),
		WithPlaceholder(map[string]any{"departures": []any{}}),
	)
	if err != nil {
		t.Fatalf("NewPanel() error = %v", err)
	}
	if p.Interval() != time.Minute || p.TTL() != 2*time.Minute || p.Timeout() != 3*time.Second {
		t.Errorf("durations = %v/%v/%v", p.Interval(), p.TTL(), p.Timeout())
	}
	if !p.Persist() {
		t.Error("Persist() = false, want true")
	}
	if _, ok := p.Placeholder()["departures"]; !ok {
		t.Error("Placeholder() missing departures")
	}
}

func TestWithPlaceholder_Immutability(t *testing.T) {
	fields := map[string]any{"summary": ""}
	p, err := NewPanel("weather", staticSource(1), WithPlaceholder(fields))
	if err != nil {
		t.Fatalf("NewPanel() error = %v", err)
	}

	// mutating the input must not affect the panel
	fields["summary"] = "changed"
	if p.Placeholder()["summary"] != "" {
		t.Error("panel placeholder changed with caller's map")
	}

	// mutating the returned copy must not affect the panel
	got := p.Placeholder()
	got["extra"] = true
	if _, ok := p.Placeholder()["extra"]; ok {
		t.Error("panel placeholder changed through returned map")
	}
}

func TestPanel_NilPlaceholder(t *testing.T) {
	p, err := NewPanel("weather", staticSource(1))
	if err != nil {
		t.Fatalf("NewPanel() error = %v", err)
	}
	if p.Placeholder() != nil {
		t.Errorf("Placeholder() = %v, want nil", p.Placeholder())
	}
}

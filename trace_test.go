package chainmap

import (
	"errors"
	"testing"
)

type labelledLayer struct {
	Mapping[string, int]
	name string
}

func (l labelledLayer) LayerName() string {
	return l.name
}

func TestResolveWithTrace(t *testing.T) {
	m := New[string, int](
		Mapping[string, int]{"rps": 10},
		labelledLayer{Mapping: Mapping[string, int]{"rps": 20, "burst": 5}, name: "system"},
	).Configure(WithName("limits"))

	value, trace, err := m.ResolveWithTrace("rps")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if value != 10 {
		t.Fatalf("expected effective value 10, got %d", value)
	}
	if trace.Map != "limits" || trace.Key != "rps" {
		t.Fatalf("unexpected trace header %q/%q", trace.Map, trace.Key)
	}

	expected := []Provenance{
		{Layer: 0, Name: "primary"},
		{Layer: 1, Name: "layer[0]", Value: 10, Found: true, Effective: true},
		{Layer: 2, Name: "system", Value: 20, Found: true},
	}
	if len(trace.Layers) != len(expected) {
		t.Fatalf("expected %d layers, got %d", len(expected), len(trace.Layers))
	}
	for i, want := range expected {
		got := trace.Layers[i]
		if got != want {
			t.Fatalf("layer[%d] expected %+v, got %+v", i, want, got)
		}
	}

	winner, ok := trace.Winner()
	if !ok || winner.Layer != 1 {
		t.Fatalf("expected layer 1 to win, got %+v", winner)
	}
}

func TestResolveWithTracePrimaryShadow(t *testing.T) {
	m := NewFromMaps(map[string]string{"mode": "layer"})
	_ = m.Set("mode", "primary")

	value, trace, err := m.ResolveWithTrace("mode")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}
	if value != "primary" {
		t.Fatalf("expected primary value, got %q", value)
	}
	if !trace.Layers[0].Effective || trace.Layers[1].Effective || !trace.Layers[1].Found {
		t.Fatalf("expected primary to shadow the layer, got %+v", trace.Layers)
	}
}

func TestResolveWithTraceMissingKey(t *testing.T) {
	m := NewFromMaps(map[string]int{"a": 1})
	_, trace, err := m.ResolveWithTrace("missing")
	if !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if len(trace.Layers) != 2 {
		t.Fatalf("trace should still list every layer, got %d", len(trace.Layers))
	}
	if _, ok := trace.Winner(); ok {
		t.Fatalf("missing key must not have a winner")
	}
}

func TestTraceJSONRoundTrip(t *testing.T) {
	m := NewFromMaps(map[string]string{"region": "eu"}).Configure(WithName("geo"))
	_, trace, err := m.ResolveWithTrace("region")
	if err != nil {
		t.Fatalf("trace: %v", err)
	}

	payload, err := trace.ToJSON()
	if err != nil {
		t.Fatalf("to json: %v", err)
	}
	decoded, err := TraceFromJSON(payload)
	if err != nil {
		t.Fatalf("from json: %v", err)
	}
	winner, ok := decoded.Winner()
	if !ok || winner.Value != "eu" || winner.Name != "layer[0]" {
		t.Fatalf("unexpected decoded winner %+v", winner)
	}
	if decoded.Map != "geo" {
		t.Fatalf("expected map name to survive, got %q", decoded.Map)
	}

	if _, err := TraceFromJSON([]byte("{")); err == nil {
		t.Fatalf("expected invalid payload to fail")
	}
}

package chainmap

import (
	"encoding/json"
	"fmt"
)

// Trace captures, for one key, what every layer holds and which layer
// produced the effective value.
type Trace struct {
	Map    string       `json:"map,omitempty"`
	Key    string       `json:"key"`
	Layers []Provenance `json:"layers"`
}

// Provenance details how a single layer contributed to a traced key. Layer 0
// is the primary map; secondary layer i is reported as i+1. Name is taken from
// the layer when it implements Named.
type Provenance struct {
	Layer     int    `json:"layer"`
	Name      string `json:"name"`
	Value     any    `json:"value,omitempty"`
	Found     bool   `json:"found"`
	Effective bool   `json:"effective,omitempty"`
}

// Winner returns the provenance entry that supplied the effective value.
func (t Trace) Winner() (Provenance, bool) {
	for _, layer := range t.Layers {
		if layer.Effective {
			return layer, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace into JSON for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a JSON payload that was previously generated via
// ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

// ResolveWithTrace returns the effective value for key together with a trace
// listing every layer, primary first. Shadowed values appear in the trace with
// Found set but Effective unset.
func (m *LayeredMap[K, V]) ResolveWithTrace(key K) (V, Trace, error) {
	trace := Trace{
		Map:    m.cfg.name,
		Key:    fmt.Sprint(key),
		Layers: make([]Provenance, 0, len(m.layers)+1),
	}

	var (
		result V
		found  bool
	)
	record := func(layer int, value V, ok bool) {
		entry := Provenance{Layer: layer, Name: layerName(layer), Found: ok}
		if ok {
			entry.Value = value
			if !found {
				entry.Effective = true
				result = value
				found = true
			}
		}
		trace.Layers = append(trace.Layers, entry)
	}

	value, ok := m.primary[key]
	record(0, value, ok)
	for i, layer := range m.layers {
		value, ok := layer.Lookup(key)
		record(i+1, value, ok)
		if named, isNamed := layer.(Named); isNamed && named.LayerName() != "" {
			trace.Layers[len(trace.Layers)-1].Name = named.LayerName()
		}
	}

	if !found {
		err := &KeyError{Op: OpGet, Key: key, Err: ErrKeyNotFound}
		m.logOp(OpGet, key, -1, err)
		return result, trace, err
	}
	return result, trace, nil
}

func layerName(layer int) string {
	if layer == 0 {
		return "primary"
	}
	return fmt.Sprintf("layer[%d]", layer-1)
}

package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"strings"
	"time"

	chainmap "github.com/goliatone/go-chainmap"
)

var (
	ErrETagMismatch = errors.New("catalog: etag mismatch")
	ErrNoLayers     = errors.New("catalog: no layers found")
)

// DefaultsName is reserved for the layer appended by ResolveWithDefaults.
const DefaultsName = "defaults"

// Ref identifies one stored layer within a domain.
type Ref struct {
	Domain string
	Name   string
}

// Meta is storage-owned metadata used for provenance and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves a single layer.
type Store[K comparable, V any] interface {
	Load(ctx context.Context, ref Ref) (values map[K]V, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, values map[K]V, meta Meta) (Meta, error)
}

// Mutator edits a layer in place. The map is never nil.
type Mutator[K comparable, V any] func(values map[K]V) error

// Resolver assembles stored layers into LayeredMaps.
type Resolver[K comparable, V any] struct {
	Store Store[K, V]
	// Options are applied to every map the resolver builds.
	Options []chainmap.Option
	// Validate, when set, runs on a mutated layer before it is saved.
	Validate func(values map[K]V) error
}

// Identifier renders the canonical storage key for r.
func (r Ref) Identifier() (string, error) {
	if r.Domain == "" {
		return "", fmt.Errorf("catalog: domain is required")
	}
	if r.Name == "" {
		return "", fmt.Errorf("catalog: layer name is required for domain %q", r.Domain)
	}
	if strings.Contains(r.Domain, "/") || strings.Contains(r.Name, "/") {
		return "", fmt.Errorf("catalog: ref %q/%q must not contain '/'", r.Domain, r.Name)
	}
	return r.Domain + "/" + r.Name, nil
}

// Layer is a loaded layer. It satisfies chainmap.Reader and chainmap.Named.
type Layer[K comparable, V any] struct {
	Ref    Ref
	Meta   Meta
	Values map[K]V
}

func (l Layer[K, V]) Lookup(key K) (V, bool) {
	value, ok := l.Values[key]
	return value, ok
}

func (l Layer[K, V]) Keys() iter.Seq[K] {
	return maps.Keys(l.Values)
}

func (l Layer[K, V]) Len() int {
	return len(l.Values)
}

// LayerName reports the layer name, suffixed with its snapshot ID when known.
func (l Layer[K, V]) LayerName() string {
	if l.Meta.SnapshotID == "" {
		return l.Ref.Name
	}
	return l.Ref.Name + "@" + l.Meta.SnapshotID
}

// Resolve loads the named layers of domain, strongest first, and returns a
// map whose secondary layers are the ones found. Missing layers are skipped;
// ErrNoLayers is returned when none exist.
func (r Resolver[K, V]) Resolve(ctx context.Context, domain string, names ...string) (*chainmap.LayeredMap[K, V], error) {
	if err := r.check(domain); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("catalog: at least one layer name is required")
	}
	layers, err := r.load(ctx, domain, names)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w for domain %q", ErrNoLayers, domain)
	}
	return r.build(layers), nil
}

// ResolveWithDefaults is Resolve with defaults appended as the weakest layer.
// It succeeds even when none of the named layers exist.
func (r Resolver[K, V]) ResolveWithDefaults(ctx context.Context, domain string, defaults map[K]V, names ...string) (*chainmap.LayeredMap[K, V], error) {
	if err := r.check(domain); err != nil {
		return nil, err
	}
	for _, name := range names {
		if name == DefaultsName {
			return nil, fmt.Errorf("catalog: layer name %q is reserved", DefaultsName)
		}
	}
	layers, err := r.load(ctx, domain, names)
	if err != nil {
		return nil, err
	}
	if defaults == nil {
		defaults = map[K]V{}
	}
	layers = append(layers, Layer[K, V]{
		Ref:    Ref{Domain: domain, Name: DefaultsName},
		Values: defaults,
	})
	return r.build(layers), nil
}

// Mutate loads one layer, applies fn, validates and saves it. A non-empty
// meta.ETag must match the stored ETag. The returned map holds the saved layer
// as its only secondary layer.
func (r Resolver[K, V]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[K, V]) (*chainmap.LayeredMap[K, V], Meta, error) {
	if err := r.check(ref.Domain); err != nil {
		return nil, Meta{}, err
	}
	if ref.Name == "" {
		return nil, Meta{}, fmt.Errorf("catalog: layer name is required")
	}
	if fn == nil {
		return nil, Meta{}, fmt.Errorf("catalog: mutator is required")
	}

	values, loadedMeta, ok, err := r.Store.Load(ctx, ref)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("catalog: load %q layer %q: %w", ref.Domain, ref.Name, err)
	}
	if !ok {
		values = nil
		loadedMeta = Meta{}
	}
	values = maps.Clone(values)
	if values == nil {
		values = map[K]V{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return nil, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(values); err != nil {
		return nil, loadedMeta, err
	}
	if r.Validate != nil {
		if err := r.Validate(values); err != nil {
			return nil, loadedMeta, err
		}
	}

	savedMeta, err := r.Store.Save(ctx, ref, values, mergeMeta(loadedMeta, meta))
	if err != nil {
		return nil, loadedMeta, fmt.Errorf("catalog: save %q layer %q: %w", ref.Domain, ref.Name, err)
	}
	return r.build([]Layer[K, V]{{Ref: ref, Meta: savedMeta, Values: values}}), savedMeta, nil
}

func (r Resolver[K, V]) check(domain string) error {
	if r.Store == nil {
		return fmt.Errorf("catalog: store is required")
	}
	if domain == "" {
		return fmt.Errorf("catalog: domain is required")
	}
	return nil
}

func (r Resolver[K, V]) load(ctx context.Context, domain string, names []string) ([]Layer[K, V], error) {
	layers := make([]Layer[K, V], 0, len(names)+1)
	for _, name := range names {
		ref := Ref{Domain: domain, Name: name}
		values, meta, ok, err := r.Store.Load(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("catalog: load %q layer %q: %w", domain, name, err)
		}
		if !ok {
			continue
		}
		layers = append(layers, Layer[K, V]{Ref: ref, Meta: meta, Values: values})
	}
	return layers, nil
}

func (r Resolver[K, V]) build(layers []Layer[K, V]) *chainmap.LayeredMap[K, V] {
	readers := make([]chainmap.Reader[K, V], 0, len(layers))
	for _, layer := range layers {
		readers = append(readers, layer)
	}
	return chainmap.New(readers...).Configure(r.Options...)
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

package chainmap

import (
	"github.com/goliatone/go-chainmap/internal/hydrate"
)

// Decode hydrates the resolved view of m into a T through a JSON round trip.
// Keys that are not strings are rendered with fmt.Sprint.
func Decode[T any, K comparable, V any](m *LayeredMap[K, V]) (T, error) {
	return decode[T](m)
}

// DecodeStrict is Decode that fails when the resolved view holds a key with
// no matching field in T.
func DecodeStrict[T any, K comparable, V any](m *LayeredMap[K, V]) (T, error) {
	return decode[T](m, hydrate.WithDisallowUnknownFields[T]())
}

func decode[T any, K comparable, V any](m *LayeredMap[K, V], opts ...hydrate.DecoderOption[T]) (T, error) {
	ctx := hydrate.Context{
		Map:    m.label(),
		Layers: m.LayerCount(),
	}
	return hydrate.NewDecoder(opts...).Decode(ctx, m.snapshot())
}

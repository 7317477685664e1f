package layering

import "reflect"

// MergeLayers composes values ordered from strongest to weakest. Maps and
// structs are merged recursively so stronger entries win while weaker ones
// fill the gaps. Nil pointers, maps, slices and interfaces fall through to the
// next layer; any other value resolves to the strongest layer.
func MergeLayers[T any](layers ...T) T {
	if len(layers) == 0 {
		var zero T
		return zero
	}
	acc := deepCopy(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		acc = overlay(reflect.ValueOf(layers[i]), acc)
	}
	return as[T](acc)
}

// Clone returns a deep copy of value. Unexported struct fields are copied
// shallowly.
func Clone[T any](value T) T {
	return as[T](deepCopy(reflect.ValueOf(value)))
}

func as[T any](v reflect.Value) T {
	var out T
	if !v.IsValid() {
		return out
	}
	if typed, ok := v.Interface().(T); ok {
		return typed
	}
	dst := reflect.ValueOf(&out).Elem()
	if v.Type().AssignableTo(dst.Type()) {
		dst.Set(v)
	} else {
		dst.Set(v.Convert(dst.Type()))
	}
	return out
}

func isNilable(k reflect.Kind) bool {
	switch k {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

// overlay lays strong over a deep copy of weak.
func overlay(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return deepCopy(weak)
	}
	if isNilable(strong.Kind()) && strong.IsNil() {
		if !weak.IsValid() {
			return reflect.Zero(strong.Type())
		}
		return deepCopy(weak)
	}
	switch strong.Kind() {
	case reflect.Pointer:
		return overlayPointer(strong, weak)
	case reflect.Interface:
		return overlayInterface(strong, weak)
	case reflect.Struct:
		return overlayStruct(strong, weak)
	case reflect.Map:
		return overlayMap(strong, weak)
	default:
		return deepCopy(strong)
	}
}

func overlayPointer(strong, weak reflect.Value) reflect.Value {
	var under reflect.Value
	if weak.IsValid() && weak.Kind() == reflect.Pointer && !weak.IsNil() {
		under = weak.Elem()
	}
	out := reflect.New(strong.Type().Elem())
	out.Elem().Set(overlay(strong.Elem(), under))
	return out
}

// overlayInterface merges dynamic values, so a map[string]any nested inside
// an any slot is still merged key by key.
func overlayInterface(strong, weak reflect.Value) reflect.Value {
	under := weak
	if weak.IsValid() && weak.Kind() == reflect.Interface {
		under = reflect.Value{}
		if !weak.IsNil() {
			under = weak.Elem()
		}
	}
	return overlay(strong.Elem(), under).Convert(strong.Type())
}

func overlayStruct(strong, weak reflect.Value) reflect.Value {
	out := reflect.New(strong.Type()).Elem()
	out.Set(strong)
	sameType := weak.IsValid() && weak.Type() == strong.Type()
	for i := range strong.NumField() {
		field := out.Field(i)
		if !field.CanSet() {
			continue
		}
		var under reflect.Value
		if sameType {
			under = weak.Field(i)
		}
		field.Set(overlay(strong.Field(i), under))
	}
	return out
}

func overlayMap(strong, weak reflect.Value) reflect.Value {
	var out reflect.Value
	if weak.IsValid() && weak.Type() == strong.Type() && !weak.IsNil() {
		out = deepCopy(weak)
	} else {
		out = reflect.MakeMapWithSize(strong.Type(), strong.Len())
	}
	for it := strong.MapRange(); it.Next(); {
		out.SetMapIndex(it.Key(), overlay(it.Value(), out.MapIndex(it.Key())))
	}
	return out
}

func deepCopy(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	if isNilable(v.Kind()) && v.IsNil() {
		return reflect.Zero(v.Type())
	}
	switch v.Kind() {
	case reflect.Pointer:
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(deepCopy(v.Elem()))
		return out
	case reflect.Interface:
		return deepCopy(v.Elem()).Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := range v.NumField() {
			if field := out.Field(i); field.CanSet() {
				field.Set(deepCopy(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		for it := v.MapRange(); it.Next(); {
			out.SetMapIndex(it.Key(), deepCopy(it.Value()))
		}
		return out
	case reflect.Slice:
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		copyElems(out, v)
		return out
	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		copyElems(out, v)
		return out
	default:
		return v
	}
}

func copyElems(dst, src reflect.Value) {
	for i := range src.Len() {
		dst.Index(i).Set(deepCopy(src.Index(i)))
	}
}

// Package catalog stores named layers per domain and assembles them into
// chainmap.LayeredMap values.
//
// A Store only loads and saves one layer for one Ref. The Resolver loads a
// list of layer names, strongest first, and hands them to chainmap.New as
// secondary layers, leaving the primary map empty for runtime overrides.
// Missing layers are skipped so callers can request an optional layer without
// checking for it first.
//
// Provenance:
//
//	Every resolved layer implements chainmap.Named, so ResolveWithTrace on the
//	resulting map reports "<name>@<snapshot id>" for each layer.
//
// Deterministic keys:
//
//	Ref.Identifier() renders "<domain>/<name>" and is the key MemoryStore uses.
//	Adapters backed by real storage should reuse it.
package catalog

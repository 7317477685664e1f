package activity

import (
	"fmt"
	"strings"
	"time"
)

// Verbs emitted for layered map mutations.
const (
	VerbEntryCreated   = "chainmap.entry.created"
	VerbEntryUpdated   = "chainmap.entry.updated"
	VerbEntryDeleted   = "chainmap.entry.deleted"
	VerbPrimaryCleared = "chainmap.primary.cleared"
	VerbLayerAdded     = "chainmap.layer.added"
	VerbLayerRemoved   = "chainmap.layer.removed"
	VerbLayersCleared  = "chainmap.layers.cleared"
)

// Object types attached to emitted events.
const (
	ObjectEntry = "chainmap.entry"
	ObjectLayer = "chainmap.layer"
	ObjectMap   = "chainmap"
)

// EntryEventInput describes the common fields for map lifecycle events.
type EntryEventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Map        string
	Key        string
	Layer      int
	OldValue   any
	NewValue   any
	Shadowing  bool
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildEntryCreatedEvent describes a new primary map entry. Shadowing marks
// entries that hide a value held by a secondary layer.
func BuildEntryCreatedEvent(input EntryEventInput) Event {
	return buildEntryEvent(VerbEntryCreated, input)
}

// BuildEntryUpdatedEvent describes an overwrite of an existing primary entry.
func BuildEntryUpdatedEvent(input EntryEventInput) Event {
	return buildEntryEvent(VerbEntryUpdated, input)
}

// BuildEntryDeletedEvent describes the removal of a primary entry.
func BuildEntryDeletedEvent(input EntryEventInput) Event {
	return buildEntryEvent(VerbEntryDeleted, input)
}

// BuildPrimaryClearedEvent describes a reset of the primary map.
func BuildPrimaryClearedEvent(input EntryEventInput) Event {
	return buildEvent(VerbPrimaryCleared, ObjectMap, mapObjectID(input), input)
}

// BuildLayerAddedEvent describes a secondary layer insertion at input.Layer.
func BuildLayerAddedEvent(input EntryEventInput) Event {
	return buildEvent(VerbLayerAdded, ObjectLayer, layerObjectID(input), input)
}

// BuildLayerRemovedEvent describes a secondary layer removal at input.Layer.
func BuildLayerRemovedEvent(input EntryEventInput) Event {
	return buildEvent(VerbLayerRemoved, ObjectLayer, layerObjectID(input), input)
}

// BuildLayersClearedEvent describes a reset of the secondary layer list.
func BuildLayersClearedEvent(input EntryEventInput) Event {
	return buildEvent(VerbLayersCleared, ObjectMap, mapObjectID(input), input)
}

func buildEntryEvent(verb string, input EntryEventInput) Event {
	objectID := strings.TrimSpace(input.Key)
	if name := strings.TrimSpace(input.Map); name != "" && objectID != "" {
		objectID = name + "/" + objectID
	}
	if objectID == "" {
		objectID = mapObjectID(input)
	}
	return buildEvent(verb, ObjectEntry, objectID, input)
}

func buildEvent(verb, objectType, objectID string, input EntryEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Key != "" {
		metadata = ensureMetadata(metadata)
		metadata["key"] = input.Key
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}
	if input.Shadowing {
		metadata = ensureMetadata(metadata)
		metadata["shadowing"] = true
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Channel:    strings.TrimSpace(input.Channel),
		Map:        strings.TrimSpace(input.Map),
		Layer:      input.Layer,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func mapObjectID(input EntryEventInput) string {
	if name := strings.TrimSpace(input.Map); name != "" {
		return name
	}
	return ObjectMap
}

func layerObjectID(input EntryEventInput) string {
	return fmt.Sprintf("%s/layers/%d", mapObjectID(input), input.Layer)
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

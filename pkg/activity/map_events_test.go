package activity

import (
	"context"
	"testing"
)

func TestBuildEntryUpdatedEventIncludesValues(t *testing.T) {
	meta := map[string]any{"source": "cli"}
	input := EntryEventInput{
		ActorID:  " actor ",
		Map:      "settings",
		Key:      "theme",
		OldValue: "light",
		NewValue: "dark",
		Metadata: meta,
	}

	event := BuildEntryUpdatedEvent(input)

	if event.Verb != VerbEntryUpdated {
		t.Fatalf("expected verb %s got %s", VerbEntryUpdated, event.Verb)
	}
	if event.ObjectType != ObjectEntry || event.ObjectID != "settings/theme" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ActorID != "actor" {
		t.Fatalf("expected trimmed actor, got %q", event.ActorID)
	}
	if event.Metadata["key"] != "theme" || event.Metadata["old_value"] != "light" || event.Metadata["new_value"] != "dark" {
		t.Fatalf("unexpected metadata: %+v", event.Metadata)
	}
	if event.Metadata["source"] != "cli" {
		t.Fatalf("expected metadata passthrough, got %+v", event.Metadata)
	}
	event.Metadata["source"] = "changed"
	if meta["source"] != "cli" {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestBuildEntryCreatedEventMarksShadowing(t *testing.T) {
	event := BuildEntryCreatedEvent(EntryEventInput{Key: "a", NewValue: 99, Shadowing: true})
	if event.ObjectID != "a" {
		t.Fatalf("expected bare key object id without map name, got %q", event.ObjectID)
	}
	if event.Metadata["shadowing"] != true {
		t.Fatalf("expected shadowing flag, got %+v", event.Metadata)
	}
}

func TestBuildEntryDeletedEventFallsBackToMapObjectID(t *testing.T) {
	event := BuildEntryDeletedEvent(EntryEventInput{})
	if event.ObjectID != ObjectMap {
		t.Fatalf("expected fallback object ID %q, got %q", ObjectMap, event.ObjectID)
	}
}

func TestBuildLayerEventsUseLayerObjectID(t *testing.T) {
	added := BuildLayerAddedEvent(EntryEventInput{Map: "settings", Layer: 1})
	if added.Verb != VerbLayerAdded || added.ObjectType != ObjectLayer || added.ObjectID != "settings/layers/1" {
		t.Fatalf("unexpected layer added event: %+v", added)
	}
	removed := BuildLayerRemovedEvent(EntryEventInput{Layer: 0})
	if removed.ObjectID != "chainmap/layers/0" {
		t.Fatalf("unexpected layer removed object id: %q", removed.ObjectID)
	}
	cleared := BuildLayersClearedEvent(EntryEventInput{Map: "settings"})
	if cleared.Verb != VerbLayersCleared || cleared.ObjectType != ObjectMap || cleared.ObjectID != "settings" {
		t.Fatalf("unexpected layers cleared event: %+v", cleared)
	}
	primary := BuildPrimaryClearedEvent(EntryEventInput{Map: "settings"})
	if primary.Verb != VerbPrimaryCleared || primary.ObjectID != "settings" {
		t.Fatalf("unexpected primary cleared event: %+v", primary)
	}
}

func TestBuiltEventsPassThroughHooks(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	for _, event := range []Event{
		BuildEntryCreatedEvent(EntryEventInput{Key: "a"}),
		BuildLayersClearedEvent(EntryEventInput{}),
	} {
		if err := hooks.Notify(context.Background(), event); err != nil {
			t.Fatalf("notify: %v", err)
		}
	}
	verbs := capture.Verbs()
	if len(verbs) != 2 || verbs[0] != VerbEntryCreated || verbs[1] != VerbLayersCleared {
		t.Fatalf("unexpected captured verbs: %v", verbs)
	}
}

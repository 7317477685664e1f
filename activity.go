package chainmap

import (
	"context"
	"fmt"

	"github.com/goliatone/go-chainmap/pkg/activity"
)

// WithActivityHooks attaches activity hooks notified on every mutation.
// Hooks are cloned and nil entries dropped.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *config) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel overrides the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *config) {
		cfg.channel = channel
	}
}

// WithActor records actorID as the actor of every emitted event.
func WithActor(actorID string) Option {
	return func(cfg *config) {
		cfg.actorID = actorID
	}
}

// ActivityHooks returns a cloned slice of the configured hooks.
func (m *LayeredMap[K, V]) ActivityHooks() activity.Hooks {
	if m == nil {
		return nil
	}
	return cloneActivityHooks(m.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	return activity.Compact(hooks)
}

func (m *LayeredMap[K, V]) emit(build func(activity.EntryEventInput) activity.Event, input activity.EntryEventInput) {
	if len(m.cfg.activityHooks) == 0 {
		return
	}
	input.Map = m.cfg.name
	input.ActorID = m.cfg.actorID
	emitter := activity.NewEmitter(m.cfg.activityHooks, activity.Config{
		Enabled: true,
		Channel: m.cfg.channel,
	})
	if err := emitter.Emit(context.Background(), build(input)); err != nil {
		m.logOp(OpActivity, input.Key, input.Layer, err)
	}
}

func (m *LayeredMap[K, V]) emitEntryCreated(key K, value V, shadowing bool) {
	m.emit(activity.BuildEntryCreatedEvent, activity.EntryEventInput{
		Key:       fmt.Sprint(key),
		NewValue:  value,
		Shadowing: shadowing,
	})
}

func (m *LayeredMap[K, V]) emitEntryUpdated(key K, old, value V) {
	m.emit(activity.BuildEntryUpdatedEvent, activity.EntryEventInput{
		Key:      fmt.Sprint(key),
		OldValue: old,
		NewValue: value,
	})
}

func (m *LayeredMap[K, V]) emitEntryDeleted(key K, old V) {
	m.emit(activity.BuildEntryDeletedEvent, activity.EntryEventInput{
		Key:      fmt.Sprint(key),
		OldValue: old,
	})
}

func (m *LayeredMap[K, V]) emitPrimaryCleared() {
	m.emit(activity.BuildPrimaryClearedEvent, activity.EntryEventInput{})
}

func (m *LayeredMap[K, V]) emitLayerAdded(index int) {
	m.emit(activity.BuildLayerAddedEvent, activity.EntryEventInput{Layer: index})
}

func (m *LayeredMap[K, V]) emitLayerRemoved(index int) {
	m.emit(activity.BuildLayerRemovedEvent, activity.EntryEventInput{Layer: index})
}

func (m *LayeredMap[K, V]) emitLayersCleared() {
	m.emit(activity.BuildLayersClearedEvent, activity.EntryEventInput{})
}

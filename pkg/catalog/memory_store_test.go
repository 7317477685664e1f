package catalog_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/goliatone/go-chainmap/pkg/catalog"
)

func TestRefIdentifier(t *testing.T) {
	cases := []struct {
		name    string
		ref     catalog.Ref
		want    string
		wantErr bool
	}{
		{name: "plain", ref: catalog.Ref{Domain: "notifications", Name: "user"}, want: "notifications/user"},
		{name: "missing_domain", ref: catalog.Ref{Name: "user"}, wantErr: true},
		{name: "missing_name", ref: catalog.Ref{Domain: "notifications"}, wantErr: true},
		{name: "slash_in_name", ref: catalog.Ref{Domain: "notifications", Name: "team/a"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.ref.Identifier()
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got identifier %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("identifier: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestMemoryStoreStampsMeta(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore[string, string]()
	ref := catalog.Ref{Domain: "ui", Name: "system"}

	meta, err := store.Save(ctx, ref, map[string]string{"theme": "light"}, catalog.Meta{Extra: map[string]string{"source": "seed"}})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := uuid.Parse(meta.SnapshotID); err != nil {
		t.Fatalf("expected uuid snapshot id, got %q: %v", meta.SnapshotID, err)
	}
	if _, err := uuid.Parse(meta.ETag); err != nil {
		t.Fatalf("expected uuid etag, got %q: %v", meta.ETag, err)
	}
	if meta.UpdatedAt.IsZero() {
		t.Fatalf("expected UpdatedAt to be stamped")
	}

	_, loaded, ok, err := store.Load(ctx, ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if loaded.SnapshotID != meta.SnapshotID || loaded.Extra["source"] != "seed" {
		t.Fatalf("loaded meta mismatch: %#v", loaded)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one record, got %d", store.Len())
	}
}

func TestMemoryStoreCopiesLayers(t *testing.T) {
	ctx := context.Background()
	store := catalog.NewMemoryStore[string, string]()
	ref := catalog.Ref{Domain: "ui", Name: "system"}

	values := map[string]string{"theme": "light"}
	if _, err := store.Save(ctx, ref, values, catalog.Meta{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	values["theme"] = "dark"

	loaded, _, _, err := store.Load(ctx, ref)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded["theme"] != "light" {
		t.Fatalf("store shares caller map, got %q", loaded["theme"])
	}
	loaded["theme"] = "blue"

	again, _, _, _ := store.Load(ctx, ref)
	if again["theme"] != "light" {
		t.Fatalf("store shares loaded map, got %q", again["theme"])
	}
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	store := catalog.NewMemoryStore[string, string]()
	values, _, ok, err := store.Load(context.Background(), catalog.Ref{Domain: "ui", Name: "user"})
	if err != nil || ok || values != nil {
		t.Fatalf("expected clean miss, got values=%v ok=%t err=%v", values, ok, err)
	}
}

package blobdoc

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"custodycore/internal/blob/core"
	"custodycore/internal/infra/blob/fs"
	"custodycore/internal/infra/blob/memory"
	"custodycore/internal/infra/blob/s3"
	"custodycore/pkg/domain"

	"github.com/shopspring/decimal"
)

func TestBlobDocumentAcrossDrivers(t *testing.T) {
	fsStore, err := fs.New(t.TempDir())
	if err != nil {
		t.Fatalf("fs: %v", err)
	}
	drivers := map[string]core.Store{
		"memory": memory.New(),
		"fs":     fsStore,
		"s3":     s3.NewFake(),
	}
	for name, blobs := range drivers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(blobs, "")
			if _, err := store.Load(ctx); !errors.Is(err, domain.ErrNoDocument) {
				t.Fatalf("expected ErrNoDocument, got %v", err)
			}
			doc := domain.Document{Inventory: []domain.InventoryItem{{ID: "1", Name: "Chemise ML", Price: decimal.RequireFromString("25.5"), Sizes: map[string]int{"M": 10}}}}
			if err := store.Save(ctx, doc); err != nil {
				t.Fatalf("save: %v", err)
			}
			doc.Inventory[0].Sizes["M"] = 9
			if err := store.Save(ctx, doc); err != nil {
				t.Fatalf("overwrite: %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.Inventory[0].Sizes["M"] != 9 || !got.Inventory[0].Price.Equal(decimal.RequireFromString("25.5")) {
				t.Fatalf("unexpected inventory %+v", got.Inventory)
			}
		})
	}
}

func TestLoadIgnoresSiblingKeys(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	if _, err := blobs.Put(ctx, "state/document.json.bak", bytes.NewReader([]byte("{}")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := NewStore(blobs, "").Load(ctx); !errors.Is(err, domain.ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument with only a sibling key, got %v", err)
	}
}

func TestLoadCorruptPayload(t *testing.T) {
	ctx := context.Background()
	blobs := memory.New()
	if _, err := blobs.Put(ctx, DefaultKey, bytes.NewReader([]byte("{not json")), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, err := NewStore(blobs, "").Load(ctx)
	if err == nil || errors.Is(err, domain.ErrNoDocument) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

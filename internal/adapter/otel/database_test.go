package otel_test

import (
	"context"
	"testing"
	"time"

	adapter "github.com/neomorfeo/teamhost/internal/adapter/otel"
	"github.com/neomorfeo/teamhost/internal/adapter/sqlite"
	"github.com/neomorfeo/teamhost/internal/domain"
)

func TestOpenDB_BacksStore(t *testing.T) {
	db, err := adapter.OpenDB(t.TempDir() + "/otel_test.db")
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if got := db.Stats().MaxOpenConnections; got != 1 {
		t.Errorf("MaxOpenConnections = %d, want 1", got)
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		t.Fatalf("NewFromDB failed: %v", err)
	}
	ctx := context.Background()
	team := domain.NewTeam("crew", "Crew", "", []string{"alpha"}, nil, time.Minute, time.Minute)
	if err := store.SaveTeam(ctx, team); err != nil {
		t.Fatalf("SaveTeam failed: %v", err)
	}
	if _, err := store.GetTeam(ctx, "crew"); err != nil {
		t.Errorf("GetTeam failed: %v", err)
	}
}

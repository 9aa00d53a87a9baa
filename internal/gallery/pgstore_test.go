//go:build integration

package gallery

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/facerec/internal/gallery/index"
)

func setupPGStore(t *testing.T) (*PGStore, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dbURL := fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	store, err := OpenPGStore(ctx, dbURL, 4)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open pg store: %v", err)
	}

	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}
	return store, cleanup
}

func TestPGStoreAppendLoad(t *testing.T) {
	store, cleanup := setupPGStore(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	id1, err := store.Append(ctx, testRecord("alice", []float32{1, 0, 0, 0}))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	id2, err := store.Append(ctx, testRecord("bob", []float32{0, 1, 0, 0}))
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if id2 <= id1 {
		t.Errorf("ids not monotonically increasing: %d then %d", id1, id2)
	}

	// Wrong dimension is rejected without assigning an id.
	if _, err := store.Append(ctx, testRecord("carol", []float32{1, 0})); err == nil {
		t.Fatal("Append() with wrong dimension should fail")
	}

	records, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("LoadAll() returned %d records; want 2", len(records))
	}
	if records[0].ID != id1 || records[0].IdentityLabel != "alice" {
		t.Errorf("first record = %+v; want alice with id %d", records[0], id1)
	}
	if records[1].Embedding[1] != 1 {
		t.Errorf("embedding round trip broken: %v", records[1].Embedding)
	}
}

func TestPGStoreWithGallery(t *testing.T) {
	store, cleanup := setupPGStore(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()

	idx, err := index.NewFlat(4)
	if err != nil {
		t.Fatalf("index error = %v", err)
	}

	g, err := Open(ctx, store, idx, Matcher{CosineThreshold: 0.45})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	id, err := g.Enroll(ctx, []float32{1, 0, 0, 0}, "alice", "cam-1")
	if err != nil {
		t.Fatalf("Enroll() error = %v", err)
	}

	result, _, err := g.Match(ctx, []float32{1, 0, 0, 0}, 1)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if !result.Matched || result.CandidateID != id {
		t.Errorf("Match() = %+v; want match on record %d", result, id)
	}
}

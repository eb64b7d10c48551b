//go:build integration

package testhelper

import (
	"context"
	"testing"

	"github.com/heartmarshall/proofdesk/internal/domain"
)

func TestSetupTestDB_Smoke(t *testing.T) {
	pool := SetupTestDB(t)

	p := SeedProject(t, pool)
	b := SeedFile(t, pool, p.ID, domain.FileFormatImage)

	var url string
	err := pool.QueryRow(
		context.Background(),
		`SELECT v.url FROM files f JOIN versions v ON v.id = f.current_version_id WHERE f.id = $1`,
		b.File.ID,
	).Scan(&url)
	if err != nil {
		t.Fatalf("expected seeded file in DB, got error: %v", err)
	}

	if url != b.CurrentVersion.URL {
		t.Fatalf("expected url %q, got %q", b.CurrentVersion.URL, url)
	}
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snapsight/client/internal/auth"
	"github.com/snapsight/client/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:           uuid.NewString(),
		Email:        "alice@example.com",
		Name:         "Alice",
		PasswordHash: "secret-hash",
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := models.User{
		ID:           uuid.NewString(),
		Email:        user.Email,
		Name:         "Alice Again",
		PasswordHash: "another-hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}

	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}

	if fetched.ID != user.ID || fetched.Email != user.Email || fetched.PasswordHash != user.PasswordHash {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	byID, err := repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if byID.Email != user.Email {
		t.Fatalf("unexpected user by id: %+v", byID)
	}

	if _, err := repo.FindByEmail(ctx, "missing@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing email, got %v", err)
	}
}

func TestPostgresTokenStore_SaveFindAndDelete(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "owner@example.com")

	store := NewPostgresTokenStore(testPool)
	expires := time.Now().UTC().Add(24 * time.Hour)
	token := auth.Token{
		Value:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: expires,
	}

	if err := store.Save(ctx, token); err != nil {
		t.Fatalf("save token: %v", err)
	}

	loaded, err := store.Find(ctx, token.Value)
	if err != nil {
		t.Fatalf("find token: %v", err)
	}

	if loaded.UserID != token.UserID || !timesClose(loaded.ExpiresAt, expires.UTC(), time.Millisecond) {
		t.Fatalf("unexpected token loaded: %+v", loaded)
	}

	updated := token
	updated.ExpiresAt = expires.Add(48 * time.Hour)
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("update token: %v", err)
	}

	loaded, err = store.Find(ctx, token.Value)
	if err != nil {
		t.Fatalf("find token after update: %v", err)
	}

	if !timesClose(loaded.ExpiresAt, updated.ExpiresAt.UTC(), time.Millisecond) {
		t.Fatalf("expected updated expiry, got %v", loaded.ExpiresAt)
	}

	if err := store.Delete(ctx, token.Value); err != nil {
		t.Fatalf("delete token: %v", err)
	}

	if _, err := store.Find(ctx, token.Value); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, token.Value); !errors.Is(err, auth.ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound deleting twice, got %v", err)
	}
}

func TestPostgresHistoryRepository_InsertListAndGet(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	owner := createTestUser(t, userRepo, "owner@example.com")
	other := createTestUser(t, userRepo, "other@example.com")

	repo := NewPostgresHistoryRepository(testPool)

	base := time.Date(2025, 12, 3, 10, 0, 0, 0, time.UTC)
	var inserted []models.DetailedHistoryItem
	for i := 0; i < 5; i++ {
		item := models.DetailedHistoryItem{
			HistoryItem: models.HistoryItem{
				ID:        fmt.Sprintf("hist_%s", uuid.NewString()),
				FileKey:   fmt.Sprintf("users/%s/posts/foto-unik-%d.jpg", owner.ID, i+1),
				AccessURL: fmt.Sprintf("https://bucket.s3.aws.com/users/%s/posts/foto-unik-%d.jpg", owner.ID, i+1),
				CreatedAt: base.Add(-time.Duration(i) * time.Hour),
			},
			Tasks: models.AllTasks(),
			Curation: models.Curation{
				IsAppropriate: true,
				Labels:        []string{"outdoor"},
				Risk:          models.RiskLow,
			},
			Caption: models.Caption{
				Text:         fmt.Sprintf("Caption %d", i+1),
				Alternatives: []string{"Alt one", "Alt two"},
			},
			Songs: []models.Song{{Title: "Song", Artist: "Artist", Reason: "mood"}},
			Topics: []models.Topic{
				{Topic: "travel", Confidence: 0.9},
			},
			Engagement: models.Engagement{
				EstimatedScore: 0.7,
				Drivers:        []string{"golden hour"},
				Suggestions:    []string{"post in the evening"},
			},
			Meta: models.Meta{Language: "id", GeneratedAt: base},
		}
		if err := repo.Insert(ctx, owner.ID, item); err != nil {
			t.Fatalf("insert analysis %d: %v", i, err)
		}
		inserted = append(inserted, item)
	}

	// One row for another user must never appear in the owner's history.
	foreign := inserted[0]
	foreign.ID = fmt.Sprintf("hist_%s", uuid.NewString())
	if err := repo.Insert(ctx, other.ID, foreign); err != nil {
		t.Fatalf("insert foreign analysis: %v", err)
	}

	page, err := repo.List(ctx, owner.ID, 2, "")
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if page.Items[0].ID != inserted[0].ID || page.Items[1].ID != inserted[1].ID {
		t.Fatalf("expected newest-first ordering, got %+v", page.Items)
	}
	if !page.PageInfo.HasNextPage || page.PageInfo.NextCursor == nil || *page.PageInfo.NextCursor != inserted[1].ID {
		t.Fatalf("unexpected page info %+v", page.PageInfo)
	}

	page, err = repo.List(ctx, owner.ID, 2, *page.PageInfo.NextCursor)
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != inserted[2].ID {
		t.Fatalf("unexpected second page: %+v", page.Items)
	}

	page, err = repo.List(ctx, owner.ID, 2, *page.PageInfo.NextCursor)
	if err != nil {
		t.Fatalf("list final page: %v", err)
	}
	if len(page.Items) != 1 || page.PageInfo.HasNextPage || page.PageInfo.NextCursor != nil {
		t.Fatalf("expected exhausted final page, got %+v", page)
	}

	if _, err := repo.List(ctx, owner.ID, 2, "hist_unknown"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown cursor, got %v", err)
	}

	detail, err := repo.Get(ctx, owner.ID, inserted[0].ID)
	if err != nil {
		t.Fatalf("get analysis: %v", err)
	}
	if detail.Caption.Text != inserted[0].Caption.Text || len(detail.Tasks) != len(models.AllTasks()) {
		t.Fatalf("unexpected detail payload: %+v", detail)
	}
	if detail.Curation.Risk != models.RiskLow || len(detail.Songs) != 1 {
		t.Fatalf("expected full payload round trip, got %+v", detail)
	}

	if _, err := repo.Get(ctx, other.ID, inserted[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign owner, got %v", err)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE analyses, tokens, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string) models.User {
	t.Helper()
	user := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "password-hash",
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}

package sqlite

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sakif/signature-plotter/internal/apperror"
	"github.com/sakif/signature-plotter/internal/model"
)

func strPtr(s string) *string { return &s }

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUpsertUser_Create(t *testing.T) {
	db := newTestDB(t)

	u, created, err := db.UpsertUser(context.Background(), model.ProfileInput{
		Email:      "a@x.com",
		Name:       "A",
		Department: strPtr("CS"),
	}, baseTime)
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	if !created {
		t.Error("UpsertUser() created = false for a new email")
	}
	if u.ID == "" {
		t.Error("UpsertUser() did not set ID")
	}
	if u.Role != model.DefaultRole {
		t.Errorf("Role = %q, want %q", u.Role, model.DefaultRole)
	}
	if u.Department != "CS" || u.Faculty != "" {
		t.Errorf("Department = %q, Faculty = %q", u.Department, u.Faculty)
	}
	for name, ts := range map[string]time.Time{"created_at": u.CreatedAt, "updated_at": u.UpdatedAt, "submitted_at": u.SubmittedAt} {
		if !ts.Equal(baseTime) {
			t.Errorf("%s = %v, want %v", name, ts, baseTime)
		}
	}
}

func TestUpsertUser_SubmittedAtFromInput(t *testing.T) {
	db := newTestDB(t)
	at := time.Date(2023, 12, 24, 18, 30, 0, 0, time.FixedZone("EST", -5*3600))

	u, _, err := db.UpsertUser(context.Background(), model.ProfileInput{Email: "a@x.com", Name: "A", SubmittedAt: &at}, baseTime)
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if !u.SubmittedAt.Equal(at) {
		t.Errorf("SubmittedAt = %v, want %v", u.SubmittedAt, at)
	}
	if !u.CreatedAt.Equal(baseTime) {
		t.Errorf("CreatedAt = %v, want %v", u.CreatedAt, baseTime)
	}
}

func TestUpsertUser_UpdateKeepsImmutables(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, _, err := db.UpsertUser(ctx, model.ProfileInput{
		Email:   "a@x.com",
		Name:    "A",
		Role:    strPtr("staff"),
		Faculty: strPtr("Science"),
	}, baseTime)
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	later := baseTime.Add(time.Hour)
	other := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	second, created, err := db.UpsertUser(ctx, model.ProfileInput{
		Email:       "a@x.com",
		Name:        "A2",
		Department:  strPtr("Maths"),
		SubmittedAt: &other,
	}, later)
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}

	if created {
		t.Error("second upsert reported created = true")
	}
	if second.ID != first.ID {
		t.Errorf("ID = %q, want %q", second.ID, first.ID)
	}
	if second.Name != "A2" {
		t.Errorf("Name = %q, want A2", second.Name)
	}
	if second.Role != "staff" {
		t.Errorf("Role = %q, want staff (not sent, kept)", second.Role)
	}
	if second.Faculty != "Science" {
		t.Errorf("Faculty = %q, want Science (not sent, kept)", second.Faculty)
	}
	if second.Department != "Maths" {
		t.Errorf("Department = %q, want Maths", second.Department)
	}
	if !second.SubmittedAt.Equal(first.SubmittedAt) {
		t.Errorf("SubmittedAt = %v, want unchanged %v", second.SubmittedAt, first.SubmittedAt)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt = %v, want unchanged %v", second.CreatedAt, first.CreatedAt)
	}
	if !second.UpdatedAt.Equal(later) {
		t.Errorf("UpdatedAt = %v, want %v", second.UpdatedAt, later)
	}
}

func TestUpsertUser_ExplicitEmptyClearsOptional(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, _, err := db.UpsertUser(ctx, model.ProfileInput{Email: "a@x.com", Name: "A", Department: strPtr("CS")}, baseTime); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	u, _, err := db.UpsertUser(ctx, model.ProfileInput{Email: "a@x.com", Name: "A", Department: strPtr("")}, baseTime)
	if err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if u.Department != "" {
		t.Errorf("Department = %q, want cleared", u.Department)
	}
}

func TestUpsertUser_ConcurrentFirstSubmissions(t *testing.T) {
	db := newTestDB(t)

	const n = 8
	var wg sync.WaitGroup
	results := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, created, err := db.UpsertUser(context.Background(), model.ProfileInput{Email: "a@x.com", Name: "A"}, baseTime)
			if err != nil {
				t.Errorf("UpsertUser() error = %v", err)
				return
			}
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	creates := 0
	for c := range results {
		if c {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("%d upserts reported created, want exactly 1", creates)
	}
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestGetUserByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "a@x.com")

	got, err := db.GetUserByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByEmail(context.Background(), "nobody@x.com")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

package sqlite

import (
	"errors"
	"testing"
	"time"

	"github.com/newslens/backend/internal/storage/models"
)

func TestInsertUserDuplicateUsername(t *testing.T) {
	c := openTestClient(t)
	insertTestUser(t, c, "u1")

	err := c.InsertUser(&models.User{
		ID:           "u2",
		Username:     "user-u1",
		Email:        "other@example.com",
		PasswordHash: "hash",
		CreatedAt:    time.Now(),
	})
	if !errors.Is(err, models.ErrAlreadyExists) {
		t.Errorf("error = %v, want ErrAlreadyExists", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	c := openTestClient(t)
	insertTestUser(t, c, "u1")

	got, err := c.GetUserByUsername("user-u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "u1" || got.Email != "u1@example.com" {
		t.Errorf("unexpected user: %+v", got)
	}

	if _, err := c.GetUserByUsername("nobody"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestGetProfileCreatesRowOnFirstAccess(t *testing.T) {
	c := openTestClient(t)
	insertTestUser(t, c, "u1")

	profile, err := c.GetProfile("u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.TotalAnalyses != 0 {
		t.Errorf("total analyses = %d, want 0", profile.TotalAnalyses)
	}
	if profile.LastAnalysisAt != nil {
		t.Error("expected no last analysis timestamp for fresh profile")
	}
}

func TestUpdateProfile(t *testing.T) {
	c := openTestClient(t)
	insertTestUser(t, c, "u1")
	if err := c.EnsureProfile("u1"); err != nil {
		t.Fatal(err)
	}

	err := c.UpdateProfile(&models.Profile{
		UserID:    "u1",
		Bio:       "Reads everything",
		AvatarURL: "https://example.com/avatar.png",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	profile, err := c.GetProfile("u1")
	if err != nil {
		t.Fatal(err)
	}
	if profile.Bio != "Reads everything" {
		t.Errorf("bio = %q", profile.Bio)
	}
}

func TestIncrementProfileAnalyses(t *testing.T) {
	c := openTestClient(t)
	insertTestUser(t, c, "u1")
	if err := c.EnsureProfile("u1"); err != nil {
		t.Fatal(err)
	}

	at := time.Now()
	if err := c.IncrementProfileAnalyses("u1", at); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.IncrementProfileAnalyses("u1", at); err != nil {
		t.Fatal(err)
	}

	profile, err := c.GetProfile("u1")
	if err != nil {
		t.Fatal(err)
	}
	if profile.TotalAnalyses != 2 {
		t.Errorf("total analyses = %d, want 2", profile.TotalAnalyses)
	}
	if profile.LastAnalysisAt == nil {
		t.Fatal("expected last analysis timestamp set")
	}

	// No profile row is not an error.
	if err := c.IncrementProfileAnalyses("ghost", at); err != nil {
		t.Errorf("missing profile increment errored: %v", err)
	}
}

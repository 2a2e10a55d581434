package services

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"loanflow/internal/middleware"
	"loanflow/internal/models"
	"loanflow/internal/testutil"
)

func TestCreateUser(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		user, err := svc.CreateUser("alice@example.com", "password123", "Alice", "Smith", models.RoleBorrower)
		testutil.AssertNoError(t, err)

		if user.ID == 0 {
			t.Fatal("expected non-zero user ID")
		}
		if user.Email != "alice@example.com" {
			t.Errorf("expected email alice@example.com, got %s", user.Email)
		}
		if user.Role != models.RoleBorrower {
			t.Errorf("expected borrower role, got %s", user.Role)
		}
		if !user.IsActive {
			t.Error("expected user to be active")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("password123")); err != nil {
			t.Error("stored hash does not match the password")
		}
	})

	t.Run("normalizes_email_case", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		user, err := svc.CreateUser("Bob@Example.COM", "password123", "Bob", "Jones", models.RoleOps)
		testutil.AssertNoError(t, err)
		if user.Email != "bob@example.com" {
			t.Errorf("expected lowercased email, got %s", user.Email)
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.CreateUser("dup@example.com", "password123", "", "", models.RoleBorrower)
		testutil.AssertNoError(t, err)

		_, err = svc.CreateUser("DUP@example.com", "password456", "", "", models.RoleBorrower)
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("empty_email", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.CreateUser("", "password123", "", "", models.RoleBorrower)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_role", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.CreateUser("role@example.com", "password123", "", "", models.Role("supervisor"))
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestAttemptLogin(t *testing.T) {
	t.Run("success_resets_counters", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		// Leave a stale failure count behind.
		if err := db.Model(user).Update("failed_login_attempts", 3).Error; err != nil {
			t.Fatalf("failed to seed failures: %v", err)
		}

		loggedIn, err := svc.AttemptLogin(user.Email, "password123")
		testutil.AssertNoError(t, err)
		if loggedIn.FailedLoginAttempts != 0 {
			t.Errorf("expected counter reset, got %d", loggedIn.FailedLoginAttempts)
		}
		if loggedIn.LastLoginAt == nil {
			t.Error("expected last_login_at to be stamped")
		}
	})

	t.Run("wrong_password", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.AttemptLogin(user.Email, "nope")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")

		var reloaded models.User
		if err := db.First(&reloaded, user.ID).Error; err != nil {
			t.Fatalf("failed to reload user: %v", err)
		}
		if reloaded.FailedLoginAttempts != 1 {
			t.Errorf("expected 1 failed attempt, got %d", reloaded.FailedLoginAttempts)
		}
	})

	t.Run("unknown_email_is_indistinguishable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		_, err := svc.AttemptLogin("ghost@example.com", "password123")
		testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
	})

	t.Run("locks_after_repeated_failures", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		for i := 0; i < maxFailedLogins; i++ {
			_, err := svc.AttemptLogin(user.Email, "nope")
			testutil.AssertAppError(t, err, "INVALID_CREDENTIALS")
		}

		// Even the right password bounces off a locked account.
		_, err := svc.AttemptLogin(user.Email, "password123")
		testutil.AssertAppError(t, err, "ACCOUNT_LOCKED")

		var reloaded models.User
		if err := db.First(&reloaded, user.ID).Error; err != nil {
			t.Fatalf("failed to reload user: %v", err)
		}
		if reloaded.LockedUntil == nil || !reloaded.LockedUntil.After(time.Now()) {
			t.Error("expected a future locked_until")
		}
	})

	t.Run("expired_lock_admits", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		past := time.Now().Add(-time.Minute)
		if err := db.Model(user).Updates(map[string]interface{}{
			"failed_login_attempts": maxFailedLogins,
			"locked_until":          past,
		}).Error; err != nil {
			t.Fatalf("failed to seed lock: %v", err)
		}

		_, err := svc.AttemptLogin(user.Email, "password123")
		testutil.AssertNoError(t, err)
	})
}

func TestRefreshTokenHash(t *testing.T) {
	t.Run("round_trip", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		hash := middleware.HashToken("some-refresh-token")
		testutil.AssertNoError(t, svc.StoreRefreshTokenHash(user.ID, hash))

		stored, err := svc.GetRefreshTokenHash(user.ID)
		testutil.AssertNoError(t, err)
		if stored != hash {
			t.Errorf("expected stored hash %s, got %s", hash, stored)
		}
	})

	t.Run("rotation_overwrites", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)
		user := testutil.CreateTestUser(t, db)

		testutil.AssertNoError(t, svc.StoreRefreshTokenHash(user.ID, middleware.HashToken("first")))
		testutil.AssertNoError(t, svc.StoreRefreshTokenHash(user.ID, middleware.HashToken("second")))

		stored, err := svc.GetRefreshTokenHash(user.ID)
		testutil.AssertNoError(t, err)
		if stored != middleware.HashToken("second") {
			t.Error("expected the newest hash to win")
		}
	})

	t.Run("missing_user", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewUserService(db)

		err := svc.StoreRefreshTokenHash(999999, middleware.HashToken("x"))
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

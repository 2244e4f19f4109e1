// Package testutil wires an in-memory database and seed data for tests.
package testutil

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/monocle-dev/scrumboard/db"
	"github.com/monocle-dev/scrumboard/internal/auth"
	"github.com/monocle-dev/scrumboard/internal/models"
	"github.com/monocle-dev/scrumboard/internal/types"
	"gorm.io/gorm"
)

const SessionSecret = "test-session-secret"

// OpenDB points db.DB at a fresh in-memory sqlite database and migrates it.
// A single connection keeps every query on the same in-memory database.
func OpenDB(t *testing.T) *gorm.DB {
	t.Helper()

	if err := db.Open(sqlite.Open(":memory:")); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.MigrateDatabase(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := auth.InitSessionSecret(SessionSecret); err != nil {
		t.Fatalf("session secret: %v", err)
	}
	auth.ConfigureCookies("", false)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db.DB
}

// CreateUser inserts a user whose password is "password123".
func CreateUser(t *testing.T, name string, role types.GlobalRole) models.User {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user := models.User{
		Name:         name,
		Email:        name + "@example.com",
		PasswordHash: hash,
		Role:         role,
	}

	if err := db.DB.Create(&user).Error; err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}

	return user
}

func CreateProject(t *testing.T, name string, owner models.User) models.Project {
	t.Helper()

	project := models.Project{Name: name, OwnerID: owner.ID}

	if err := db.DB.Create(&project).Error; err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}

	AddMember(t, project, owner, types.ProjectOwner)

	return project
}

func AddMember(t *testing.T, project models.Project, user models.User, role types.ProjectRole) {
	t.Helper()

	member := models.TeamMember{UserID: user.ID, ProjectID: project.ID, Role: role}

	if err := db.DB.Create(&member).Error; err != nil {
		t.Fatalf("add member %s: %v", user.Name, err)
	}
}

// SessionToken returns a valid session token for user.
func SessionToken(t *testing.T, user models.User) string {
	t.Helper()

	token, err := auth.GenerateSessionToken(user.ID, user.Role)
	if err != nil {
		t.Fatalf("generate session: %v", err)
	}

	return token
}

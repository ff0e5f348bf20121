package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"user-registry/internal/domain"
	"user-registry/internal/repository"
	"user-registry/internal/repository/sqlstore"
	"user-registry/internal/service"
)

type fixture struct {
	svc  service.UserService
	repo repository.UserRepository
	db   *sqlx.DB
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "users.db"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := sqlstore.NewUserRepository(db, nil)
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	svc := service.NewUserService(repo, service.PageOptions{DefaultLimit: 100, MaxLimit: 1000}, nil)
	return fixture{svc: svc, repo: repo, db: db}
}

func (f fixture) create(t *testing.T, username, email string) *domain.User {
	t.Helper()
	u, err := f.svc.Create(context.Background(), service.CreateUserInput{Username: username, Email: email})
	if err != nil {
		t.Fatalf("Create %s: %v", username, err)
	}
	return u
}

func (f fixture) rowCount(t *testing.T) int {
	t.Helper()
	var n int
	if err := f.db.Get(&n, `SELECT COUNT(*) FROM users`); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func ptr[T any](v T) *T { return &v }

func TestCreateThenGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pairs := [][2]string{{"alice", "a@x.com"}, {"bob", "b@x.com"}, {"Zoë", "zoe+tag@example.org"}}
	for _, p := range pairs {
		created := f.create(t, p[0], p[1])
		got, err := f.svc.Get(ctx, created.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Username != p[0] || got.Email != p[1] {
			t.Fatalf("got %+v, want %v", got, p)
		}
		if got.CreatedAt == nil {
			t.Fatal("expected created_at")
		}
	}
}

func TestCreateValidationFailsBeforeStore(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), service.CreateUserInput{Email: "bad"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 2 {
		t.Fatalf("expected both fields reported, got %+v", verr.Fields)
	}
	if n := f.rowCount(t); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestCreateDuplicateLeavesRowCountUnchanged(t *testing.T) {
	f := newFixture(t)
	f.create(t, "alice", "a@x.com")

	cases := []service.CreateUserInput{
		{Username: "alice", Email: "new@x.com"},
		{Username: "newbie", Email: "a@x.com"},
	}
	for _, in := range cases {
		_, err := f.svc.Create(context.Background(), in)
		if !errors.Is(err, domain.ErrDuplicate) {
			t.Fatalf("Create(%+v) err = %v, want ErrDuplicate", in, err)
		}
	}
	if n := f.rowCount(t); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestUpdateEmptyFields(t *testing.T) {
	f := newFixture(t)
	alice := f.create(t, "alice", "a@x.com")

	_, err := f.svc.Update(context.Background(), alice.ID, service.UpdateUserInput{})
	if !errors.Is(err, domain.ErrNoUpdateFields) {
		t.Fatalf("expected ErrNoUpdateFields, got %v", err)
	}

	got, err := f.svc.Get(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Username != "alice" || got.Email != "a@x.com" {
		t.Fatalf("store state changed: %+v", got)
	}
}

func TestUpdateNotFoundTakesPrecedence(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Update(context.Background(), 404, service.UpdateUserInput{Email: ptr("bad")})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateValidation(t *testing.T) {
	f := newFixture(t)
	alice := f.create(t, "alice", "a@x.com")

	_, err := f.svc.Update(context.Background(), alice.ID, service.UpdateUserInput{Email: ptr("bad")})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.create(t, "alice", "a@x.com")
	f.create(t, "bob", "b@x.com")

	if _, err := f.svc.Update(ctx, alice.ID, service.UpdateUserInput{Username: ptr("bob")}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for other user's username, got %v", err)
	}
	if _, err := f.svc.Update(ctx, alice.ID, service.UpdateUserInput{Email: ptr("b@x.com")}); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for other user's email, got %v", err)
	}

	same, err := f.svc.Update(ctx, alice.ID, service.UpdateUserInput{Username: ptr("alice")})
	if err != nil {
		t.Fatalf("updating to own username must succeed: %v", err)
	}
	if same.Username != "alice" {
		t.Fatalf("unexpected user: %+v", same)
	}

	// bob's email is untouched, so only the username is checked
	renamed, err := f.svc.Update(ctx, alice.ID, service.UpdateUserInput{Username: ptr("alicia"), Email: ptr("a@x.com")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if renamed.Username != "alicia" || renamed.Email != "a@x.com" {
		t.Fatalf("unexpected user: %+v", renamed)
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.create(t, "alice", "a@x.com")

	if _, err := f.svc.Delete(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	deleted, err := f.svc.Delete(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted != alice.ID {
		t.Fatalf("deleted = %d, want %d", deleted, alice.ID)
	}
	if _, err := f.svc.Get(ctx, alice.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListSearchAndHasMore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "alice", "a@x.com")
	f.create(t, "bob", "b@x.com")
	f.create(t, "Kalina", "k@x.com")
	f.create(t, "dave", "dave@Alibi.io")

	page, err := f.svc.List(ctx, service.ListUsersParams{Search: "ali"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || page.Count != 3 || page.HasMore {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Limit != 100 || page.Skip != 0 {
		t.Fatalf("expected default window, got limit=%d skip=%d", page.Limit, page.Skip)
	}

	page, err = f.svc.List(ctx, service.ListUsersParams{Search: "ali", Limit: ptr(2)})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || page.Count != 2 || !page.HasMore {
		t.Fatalf("unexpected first page: %+v", page)
	}

	page, err = f.svc.List(ctx, service.ListUsersParams{Search: "ali", Limit: ptr(2), Skip: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Total != 3 || page.Count != 1 || page.HasMore {
		t.Fatalf("unexpected last page: %+v", page)
	}
	if page.Users[0].Username != "dave" {
		t.Fatalf("unexpected user on last page: %+v", page.Users[0])
	}
}

func TestListRejectsBadWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []service.ListUsersParams{
		{Limit: ptr(-1)},
		{Skip: -3},
		{Limit: ptr(1001)},
	}
	for _, p := range cases {
		_, err := f.svc.List(ctx, p)
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("List(%+v) err = %v, want ValidationError", p, err)
		}
	}
}

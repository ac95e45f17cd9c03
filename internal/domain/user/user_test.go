package user

import (
	"context"
	"testing"
)

type fakeUserRepo struct {
	users  map[string]*User
	nextID uint
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[string]*User{}, nextID: 1}
}

func (f *fakeUserRepo) key(issuer, subject string) string { return issuer + "|" + subject }

func (f *fakeUserRepo) FindByIssuerAndSubject(_ context.Context, issuer, subject string) (*User, error) {
	if u, ok := f.users[f.key(issuer, subject)]; ok {
		return u, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uint) (*User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Upsert(_ context.Context, usr *User) (*User, error) {
	k := f.key(usr.Issuer, usr.Subject)
	if existing, ok := f.users[k]; ok {
		existing.Email = usr.Email
		existing.Name = usr.Name
		return existing, nil
	}
	usr.ID = f.nextID
	f.nextID++
	f.users[k] = usr
	return usr, nil
}

func TestEnsureUserIdempotent(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo)
	ctx := context.Background()

	name := "Alice"
	identity := Identity{Issuer: "https://idp.example.com", Subject: "sub-123", Name: &name}

	first, err := svc.EnsureUser(ctx, identity)
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}

	second, err := svc.EnsureUser(ctx, identity)
	if err != nil {
		t.Fatalf("EnsureUser() second call error = %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("EnsureUser() not idempotent: IDs %d and %d", first.ID, second.ID)
	}
	if len(repo.users) != 1 {
		t.Errorf("expected a single user row, got %d", len(repo.users))
	}
}

func TestEnsureUserPlaceholderEmail(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewService(repo)

	usr, err := svc.EnsureUser(context.Background(), Identity{Issuer: "iss", Subject: "sub"})
	if err != nil {
		t.Fatalf("EnsureUser() error = %v", err)
	}
	if usr.Email == nil || *usr.Email != "sub@placeholder.local" {
		t.Errorf("expected placeholder email, got %v", usr.Email)
	}
}

func TestEnsureUserRejectsMissingIdentity(t *testing.T) {
	svc := NewService(newFakeUserRepo())

	if _, err := svc.EnsureUser(context.Background(), Identity{Subject: "sub"}); err != ErrInvalidIdentity {
		t.Errorf("expected ErrInvalidIdentity, got %v", err)
	}
	if _, err := svc.EnsureUser(context.Background(), Identity{Issuer: "iss"}); err != ErrInvalidIdentity {
		t.Errorf("expected ErrInvalidIdentity, got %v", err)
	}
}

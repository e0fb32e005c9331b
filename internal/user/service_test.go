package user

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/hitoshi/hnreact/internal/model"
)

// --- テスト用モック ---

type mockUserRepo struct {
	users     map[string]*model.User
	deleted   []string
	ensureErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) Ensure(ctx context.Context, user *model.User) (*model.User, error) {
	if m.ensureErr != nil {
		return nil, m.ensureErr
	}
	if existing, ok := m.users[user.Email]; ok {
		return existing, nil
	}
	m.users[user.Email] = user
	return user, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.users[email], nil
}

func (m *mockUserRepo) List(ctx context.Context) ([]*model.User, error) {
	list := make([]*model.User, 0, len(m.users))
	for _, u := range m.users {
		list = append(list, u)
	}
	return list, nil
}

func (m *mockUserRepo) SetAdmin(ctx context.Context, email string, isAdmin bool) error {
	u, ok := m.users[email]
	if !ok {
		return model.NewUserNotFoundError(email)
	}
	u.IsAdmin = isAdmin
	return nil
}

func (m *mockUserRepo) DeleteWithReactions(ctx context.Context, email string) error {
	if _, ok := m.users[email]; !ok {
		return model.NewUserNotFoundError(email)
	}
	delete(m.users, email)
	m.deleted = append(m.deleted, email)
	return nil
}

func newTestService(repo *mockUserRepo) *Service {
	var buf bytes.Buffer
	return NewService(repo, slog.New(slog.NewJSONHandler(&buf, nil)))
}

// --- テスト ---

// TestEnsureUser_FirstSeenWins は2回目以降の登録で内容が上書きされないことを検証する。
func TestEnsureUser_FirstSeenWins(t *testing.T) {
	repo := newMockUserRepo()
	svc := newTestService(repo)

	first, err := svc.EnsureUser(context.Background(), model.Identity{Email: "a@example.com", Name: "Alice"})
	if err != nil {
		t.Fatalf("EnsureUser returned error: %v", err)
	}
	second, err := svc.EnsureUser(context.Background(), model.Identity{Email: "a@example.com", Name: "Changed"})
	if err != nil {
		t.Fatalf("EnsureUser returned error: %v", err)
	}

	if second.ID != first.ID || second.Name != "Alice" {
		t.Errorf("second = %+v, want first registration kept", second)
	}
	if first.ID == "" {
		t.Error("ID が採番されていない")
	}
}

// TestEnsureUser_IgnoresIdentityAdminFlag は識別情報の管理者フラグで昇格しないことを検証する。
func TestEnsureUser_IgnoresIdentityAdminFlag(t *testing.T) {
	svc := newTestService(newMockUserRepo())

	u, err := svc.EnsureUser(context.Background(), model.Identity{Email: "a@example.com", IsAdmin: true})
	if err != nil {
		t.Fatalf("EnsureUser returned error: %v", err)
	}
	if u.IsAdmin {
		t.Error("新規ユーザーは管理者であってはならない")
	}
}

func TestEnsureUser_EmptyEmail(t *testing.T) {
	_, err := newTestService(newMockUserRepo()).EnsureUser(context.Background(), model.Identity{Email: "  "})
	if !model.IsCode(err, model.ErrCodeUnauthorized) {
		t.Errorf("err = %v, want %s", err, model.ErrCodeUnauthorized)
	}
}

func TestIsAdmin(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["admin@example.com"] = &model.User{Email: "admin@example.com", IsAdmin: true}
	repo.users["a@example.com"] = &model.User{Email: "a@example.com"}
	svc := newTestService(repo)

	tests := []struct {
		email string
		want  bool
	}{
		{"admin@example.com", true},
		{"a@example.com", false},
		{"ghost@example.com", false},
	}
	for _, tt := range tests {
		got, err := svc.IsAdmin(context.Background(), tt.email)
		if err != nil {
			t.Fatalf("IsAdmin(%s) returned error: %v", tt.email, err)
		}
		if got != tt.want {
			t.Errorf("IsAdmin(%s) = %v, want %v", tt.email, got, tt.want)
		}
	}
}

func TestList_RequiresAdmin(t *testing.T) {
	svc := newTestService(newMockUserRepo())

	if _, err := svc.List(context.Background(), model.Identity{Email: "a@example.com"}); !model.IsCode(err, model.ErrCodeForbidden) {
		t.Errorf("err = %v, want %s", err, model.ErrCodeForbidden)
	}
	if _, err := svc.List(context.Background(), model.Identity{Email: "admin@example.com", IsAdmin: true}); err != nil {
		t.Errorf("admin List returned error: %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["a@example.com"] = &model.User{Email: "a@example.com"}
	svc := newTestService(repo)
	admin := model.Identity{Email: "admin@example.com", IsAdmin: true}

	if err := svc.Delete(context.Background(), model.Identity{Email: "b@example.com"}, "a@example.com"); !model.IsCode(err, model.ErrCodeForbidden) {
		t.Errorf("non-admin err = %v, want %s", err, model.ErrCodeForbidden)
	}
	if len(repo.deleted) != 0 {
		t.Fatalf("権限のない削除が実行された: %v", repo.deleted)
	}

	if err := svc.Delete(context.Background(), admin, "a@example.com"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "a@example.com" {
		t.Errorf("deleted = %v", repo.deleted)
	}

	if err := svc.Delete(context.Background(), admin, "a@example.com"); !model.IsCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("err = %v, want %s", err, model.ErrCodeUserNotFound)
	}
}

func TestSetAdmin(t *testing.T) {
	repo := newMockUserRepo()
	repo.users["a@example.com"] = &model.User{Email: "a@example.com"}
	svc := newTestService(repo)

	if err := svc.SetAdmin(context.Background(), "a@example.com", true); err != nil {
		t.Fatalf("SetAdmin returned error: %v", err)
	}
	if !repo.users["a@example.com"].IsAdmin {
		t.Error("IsAdmin が更新されていない")
	}
	if err := svc.SetAdmin(context.Background(), "ghost@example.com", true); !model.IsCode(err, model.ErrCodeUserNotFound) {
		t.Errorf("err = %v, want %s", err, model.ErrCodeUserNotFound)
	}
}

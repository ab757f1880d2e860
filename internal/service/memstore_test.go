package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/storefront-api/internal/model"
	"github.com/iliyamo/storefront-api/internal/repository"
)

// memStore is an in-memory AccountStore/UserStore with the same
// compare-and-clear semantics as the MySQL repository.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]model.Account
}

func newMemStore() *memStore {
	return &memStore{byID: map[uint64]model.Account{}}
}

func strPtr(s string) *string { return &s }

func clone(a model.Account) model.Account {
	if a.VerificationToken != nil {
		a.VerificationToken = strPtr(*a.VerificationToken)
	}
	if a.ResetPasswordToken != nil {
		a.ResetPasswordToken = strPtr(*a.ResetPasswordToken)
	}
	return a
}

func (m *memStore) Create(_ context.Context, a model.Account) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := repository.NormalizeEmail(a.Email)
	for _, x := range m.byID {
		if x.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	m.nextID++
	a.ID = m.nextID
	a.Email = email
	if !a.Role.Valid() {
		a.Role = model.RoleNormalUser
	}
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	m.byID[a.ID] = clone(a)
	return a.ID, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = repository.NormalizeEmail(email)
	for _, a := range m.byID {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (m *memStore) GetByID(_ context.Context, id uint64) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return model.Account{}, repository.ErrNotFound
	}
	return clone(a), nil
}

func (m *memStore) GetByVerificationToken(_ context.Context, token string) (model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if token != "" && a.VerificationToken != nil && *a.VerificationToken == token {
			return clone(a), nil
		}
	}
	return model.Account{}, repository.ErrNotFound
}

func (m *memStore) List(context.Context) ([]model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Account, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, clone(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SetVerificationToken(_ context.Context, id uint64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.IsVerified {
		return repository.ErrNotFound
	}
	a.VerificationToken = strPtr(token)
	m.byID[id] = a
	return nil
}

func (m *memStore) ConsumeVerificationToken(_ context.Context, id uint64, token string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.VerificationToken == nil || *a.VerificationToken != token {
		return false, nil
	}
	a.IsVerified = true
	a.VerificationToken = nil
	m.byID[id] = a
	return true, nil
}

func (m *memStore) SetResetToken(_ context.Context, id uint64, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.ResetPasswordToken = strPtr(token)
	m.byID[id] = a
	return nil
}

func (m *memStore) ConsumeResetToken(_ context.Context, id uint64, token, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok || a.ResetPasswordToken == nil || *a.ResetPasswordToken != token {
		return false, nil
	}
	a.PasswordHash = hash
	a.ResetPasswordToken = nil
	m.byID[id] = a
	return true, nil
}

func (m *memStore) UpdateProfile(_ context.Context, id uint64, userName, hash *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	if userName != nil {
		a.UserName = *userName
	}
	if hash != nil {
		a.PasswordHash = *hash
	}
	m.byID[id] = a
	return nil
}

func (m *memStore) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

type sentMail struct {
	kind, to, link string
}

// fakeNotifier records mails; fail makes every send return an error.
type fakeNotifier struct {
	mu   sync.Mutex
	fail bool
	sent []sentMail
}

var errMailDown = errors.New("mail queue unavailable")

func (n *fakeNotifier) record(kind, to, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errMailDown
	}
	n.sent = append(n.sent, sentMail{kind: kind, to: to, link: link})
	return nil
}

func (n *fakeNotifier) SendVerifyEmail(_ context.Context, to, link string) error {
	return n.record("verify", to, link)
}

func (n *fakeNotifier) SendLoginNotice(_ context.Context, to string) error {
	return n.record("login", to, "")
}

func (n *fakeNotifier) SendResetPassword(_ context.Context, to, link string) error {
	return n.record("reset", to, link)
}

func (n *fakeNotifier) setFail(v bool) {
	n.mu.Lock()
	n.fail = v
	n.mu.Unlock()
}

func (n *fakeNotifier) last(kind string) (sentMail, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := len(n.sent) - 1; i >= 0; i-- {
		if n.sent[i].kind == kind {
			return n.sent[i], true
		}
	}
	return sentMail{}, false
}

// lastSegment returns the token at the end of a mailed link.
func lastSegment(link string) string {
	return link[strings.LastIndex(link, "/")+1:]
}

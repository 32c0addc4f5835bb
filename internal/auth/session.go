package auth

import (
	"context"
	"slices"
	"sync"

	"truuo/internal/models"
)

// Facade is the identity contract the feed depends on. CurrentUser is nil
// while nobody is signed in.
type Facade interface {
	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, displayName string) error
	SignOut(ctx context.Context) error
	CurrentUser() *models.User
	OnUserChange(fn func(*models.User)) (unsubscribe func())
}

// IdentityProvider is the backend a Session signs in against. *Service
// implements it.
type IdentityProvider interface {
	Register(ctx context.Context, email, password, displayName string) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	IssueToken(user *models.User) (string, *Claims, error)
	Revoke(ctx context.Context, claims *Claims) error
}

var _ Facade = (*Session)(nil)

type observer struct {
	id int
	fn func(*models.User)
}

// Session holds one client's identity and notifies observers whenever it
// changes. It is safe for concurrent use.
type Session struct {
	provider IdentityProvider

	mu        sync.Mutex
	user      *models.User
	token     string
	claims    *Claims
	observers []observer
	nextID    int
}

// NewSession creates a signed-out session backed by provider.
func NewSession(provider IdentityProvider) *Session {
	return &Session{provider: provider}
}

// SignIn authenticates and, on success, makes the account current.
// Authentication errors are returned as is and leave the session unchanged.
func (s *Session) SignIn(ctx context.Context, email, password string) error {
	user, err := s.provider.Authenticate(ctx, email, password)
	if err != nil {
		return err
	}
	return s.establish(user)
}

// SignUp registers an account and signs it in.
func (s *Session) SignUp(ctx context.Context, email, password, displayName string) error {
	user, err := s.provider.Register(ctx, email, password, displayName)
	if err != nil {
		return err
	}
	return s.establish(user)
}

// SignOut revokes the session token and clears the identity. Observers
// are notified even when revocation fails; the error is still returned.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	claims := s.claims
	s.user, s.token, s.claims = nil, "", nil
	observers := s.snapshotLocked()
	s.mu.Unlock()

	err := s.provider.Revoke(ctx, claims)
	notify(observers, nil)
	return err
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (s *Session) CurrentUser() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	return &cp
}

// Token returns the bearer token of the current session, or "".
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// OnUserChange registers fn to run after every identity change with the
// new user, or nil after sign-out. Observers run synchronously in
// registration order. The returned func removes fn and may be called
// more than once.
func (s *Session) OnUserChange(fn func(*models.User)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.observers = slices.DeleteFunc(s.observers, func(o observer) bool { return o.id == id })
		})
	}
}

func (s *Session) establish(user *models.User) error {
	token, claims, err := s.provider.IssueToken(user)
	if err != nil {
		return err
	}

	s.mu.Lock()
	cp := *user
	cp.Password = ""
	s.user, s.token, s.claims = &cp, token, claims
	observers := s.snapshotLocked()
	s.mu.Unlock()

	notify(observers, &cp)
	return nil
}

func (s *Session) snapshotLocked() []func(*models.User) {
	fns := make([]func(*models.User), 0, len(s.observers))
	for _, o := range s.observers {
		fns = append(fns, o.fn)
	}
	return fns
}

func notify(fns []func(*models.User), user *models.User) {
	for _, fn := range fns {
		if user == nil {
			fn(nil)
			continue
		}
		cp := *user
		fn(&cp)
	}
}

// Package auth signs users in and keeps the current identity. Accounts are
// local name/password pairs; the signed-in session survives restarts in the
// system keyring.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/99designs/keyring"
	"golang.org/x/crypto/bcrypt"

	"github.com/dori/weekplan/internal/db"
	"github.com/dori/weekplan/internal/model"
)

const (
	serviceName = "weekplan"
	sessionKey  = "session"
)

var (
	// ErrInvalidCredentials is returned for an empty name or password, or a
	// password that does not match the account
	ErrInvalidCredentials = errors.New("invalid name or password")

	// ErrNoSession is returned when nobody is signed in
	ErrNoSession = errors.New("not signed in")
)

// Users is the account storage. *db.DB satisfies it.
type Users interface {
	CreateUser(ctx context.Context, name, passwordHash string) (*db.User, error)
	GetUserByName(ctx context.Context, name string) (*db.User, error)
	GetUser(ctx context.Context, id string) (*db.User, error)
}

// OpenKeyring opens the system keyring, falling back to an encrypted file
// under dir. With fileOnly set the file backend is always used.
func OpenKeyring(dir string, fileOnly bool) (keyring.Keyring, error) {
	backends := []keyring.BackendType{
		keyring.KeychainBackend,
		keyring.SecretServiceBackend,
		keyring.WinCredBackend,
		keyring.PassBackend,
		keyring.FileBackend,
	}
	if fileOnly {
		backends = []keyring.BackendType{keyring.FileBackend}
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName:              serviceName,
		AllowedBackends:          backends,
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("weekplan-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Provider is the identity provider. It implements taskstore.Session.
type Provider struct {
	users Users
	ring  keyring.Keyring

	mu        sync.RWMutex
	current   *model.Identity
	listeners map[int]func(*model.Identity)
	nextID    int
}

// NewProvider creates a signed-out provider; call Resolve to restore a
// saved session
func NewProvider(users Users, ring keyring.Keyring) *Provider {
	return &Provider{
		users:     users,
		ring:      ring,
		listeners: make(map[int]func(*model.Identity)),
	}
}

// Current returns the signed-in identity, or nil
func (p *Provider) Current() *model.Identity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return nil
	}
	id := *p.current
	return &id
}

// Resolve restores the session saved in the keyring. It returns nil without
// error when there is none, or when its account no longer exists.
func (p *Provider) Resolve(ctx context.Context) (*model.Identity, error) {
	saved, err := p.load()
	if err != nil {
		return nil, err
	}

	var id *model.Identity
	if saved != nil {
		u, err := p.users.GetUser(ctx, saved.ID)
		switch {
		case errors.Is(err, db.ErrUserNotFound):
			_ = p.ring.Remove(sessionKey)
		case err != nil:
			return nil, fmt.Errorf("resolve session: %w", err)
		default:
			id = &model.Identity{ID: u.ID, Name: u.Name}
		}
	}

	p.set(id)
	return p.Current(), nil
}

// SignIn checks the password for name. A name that has no account yet is
// registered with the given password.
func (p *Provider) SignIn(ctx context.Context, name, password string) (*model.Identity, error) {
	name = strings.TrimSpace(name)
	if name == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := p.users.GetUserByName(ctx, name)
	switch {
	case errors.Is(err, db.ErrUserNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		if u, err = p.users.CreateUser(ctx, name, string(hash)); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	case err != nil:
		return nil, fmt.Errorf("sign in: %w", err)
	default:
		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidCredentials
		}
	}

	id := &model.Identity{ID: u.ID, Name: u.Name}
	if err := p.save(id); err != nil {
		return nil, err
	}
	p.set(id)
	return p.Current(), nil
}

// Require returns the signed-in identity or ErrNoSession
func (p *Provider) Require() (*model.Identity, error) {
	id := p.Current()
	if id == nil {
		return nil, ErrNoSession
	}
	return id, nil
}

// SignOut forgets the session. Signing out twice is not an error.
func (p *Provider) SignOut(_ context.Context) error {
	if err := p.ring.Remove(sessionKey); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting session: %w", err)
	}
	p.set(nil)
	return nil
}

// OnChange registers fn to be called with the new identity (nil when signed
// out) after every change. The returned func unregisters it.
func (p *Provider) OnChange(fn func(*model.Identity)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	p.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

// Watch polls the keyring so a sign-in or sign-out from another process
// (`weekplan signout`) reaches this one. It returns when ctx is done.
func (p *Provider) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			saved, err := p.load()
			if err != nil {
				continue
			}
			if !sameIdentity(saved, p.Current()) {
				p.set(saved)
			}
		}
	}
}

// set stores id and notifies listeners if it differs from the current one
func (p *Provider) set(id *model.Identity) {
	p.mu.Lock()
	if sameIdentity(id, p.current) {
		p.mu.Unlock()
		return
	}
	p.current = id
	fns := make([]func(*model.Identity), 0, len(p.listeners))
	for _, fn := range p.listeners {
		fns = append(fns, fn)
	}
	p.mu.Unlock()

	for _, fn := range fns {
		var cp *model.Identity
		if id != nil {
			v := *id
			cp = &v
		}
		fn(cp)
	}
}

func (p *Provider) load() (*model.Identity, error) {
	item, err := p.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	var id model.Identity
	if err := json.Unmarshal(item.Data, &id); err != nil || id.ID == "" {
		// A corrupt entry is treated as signed out
		return nil, nil
	}
	return &id, nil
}

func (p *Provider) save(id *model.Identity) error {
	data, err := json.Marshal(id)
	if err != nil {
		return err
	}
	if err := p.ring.Set(keyring.Item{Key: sessionKey, Data: data, Label: "weekplan session"}); err != nil {
		return fmt.Errorf("setting session: %w", err)
	}
	return nil
}

func sameIdentity(a, b *model.Identity) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}

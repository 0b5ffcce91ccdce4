package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/google/uuid"
)

const nonceTTL = 5 * time.Minute

// SessionService replaces the browser wallet connection: a wallet proves control of an
// address by signing a one-time message and gets back its role.
type SessionService struct {
	registry Registry
	activity ActivityRecorder
	nonces   sync.Map // lower-case address -> models.Nonce
	now      func() time.Time
}

func NewSessionService(registry Registry, activity ActivityRecorder) *SessionService {
	return &SessionService{registry: registry, activity: activity, now: time.Now}
}

func (s *SessionService) Nonce(address string) (*models.Nonce, error) {
	addr, err := parseAddress("address", address)
	if err != nil {
		return nil, err
	}

	n := models.Nonce{
		Address:   addr.Hex(),
		Message:   chain.LoginMessage(addr.Hex(), uuid.New().String()),
		ExpiresAt: s.now().Add(nonceTTL),
	}
	s.nonces.Store(strings.ToLower(addr.Hex()), n)
	return &n, nil
}

// Login consumes the pending nonce, checks the signature and resolves the role.
func (s *SessionService) Login(ctx context.Context, address, signature string) (*models.Session, error) {
	addr, err := parseAddress("address", address)
	if err != nil {
		return nil, err
	}

	v, ok := s.nonces.LoadAndDelete(strings.ToLower(addr.Hex()))
	if !ok {
		return nil, ErrNonceExpired
	}
	n := v.(models.Nonce)
	if s.now().After(n.ExpiresAt) {
		return nil, ErrNonceExpired
	}

	if err := chain.VerifySignature(addr, n.Message, signature); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForbidden, err)
	}

	session, err := s.Resolve(ctx, addr.Hex())
	if err != nil {
		return nil, err
	}

	record(ctx, s.activity, models.Activity{Actor: session.Address, Action: models.ActivityLogin, Subject: string(session.Role)})
	return session, nil
}

// Resolve reports the role of an address: admin first, then active organization.
func (s *SessionService) Resolve(ctx context.Context, address string) (*models.Session, error) {
	addr, err := parseAddress("address", address)
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		Address: addr.Hex(),
		Role:    models.RoleUnauthorized,
		CanSign: s.registry.CanSign(addr),
	}

	admin, err := s.registry.Admin(ctx)
	if err != nil {
		return nil, err
	}
	if admin == addr {
		session.Role = models.RoleAdmin
		return session, nil
	}

	org, err := s.registry.Organization(ctx, addr)
	if err != nil {
		return nil, err
	}
	if org.IsActive {
		session.Role = models.RoleOrganization
		session.Organization = org
	}
	return session, nil
}

// PurgeExpired drops nonces that were never used.
func (s *SessionService) PurgeExpired() int {
	now := s.now()
	purged := 0
	s.nonces.Range(func(k, v any) bool {
		if now.After(v.(models.Nonce).ExpiresAt) {
			s.nonces.Delete(k)
			purged++
		}
		return true
	})
	return purged
}

package service

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/certify-services/internal/certsvc/models"
	"github.com/avvvet/certify-services/internal/certsvc/store"
	"github.com/avvvet/certify-services/internal/chain"
	"github.com/avvvet/certify-services/internal/csvbatch"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/mock"
)

var (
	adminAddr   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	orgAddr     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	otherOrg    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	studentAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
	fixedNow    = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
)

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) Admin(ctx context.Context) (common.Address, error) {
	args := m.Called(ctx)
	return args.Get(0).(common.Address), args.Error(1)
}

func (m *mockRegistry) Organization(ctx context.Context, addr common.Address) (*models.Organization, error) {
	args := m.Called(ctx, addr)
	org, _ := args.Get(0).(*models.Organization)
	return org, args.Error(1)
}

func (m *mockRegistry) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	args := m.Called(ctx)
	stats, _ := args.Get(0).(*models.GlobalStats)
	return stats, args.Error(1)
}

func (m *mockRegistry) Organizations(ctx context.Context) ([]models.Organization, error) {
	args := m.Called(ctx)
	orgs, _ := args.Get(0).([]models.Organization)
	return orgs, args.Error(1)
}

func (m *mockRegistry) CertificateCounter(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockRegistry) Certificate(ctx context.Context, id uint64) (*models.Certificate, error) {
	args := m.Called(ctx, id)
	cert, _ := args.Get(0).(*models.Certificate)
	return cert, args.Error(1)
}

func (m *mockRegistry) OrganizationCertificates(ctx context.Context, org common.Address) ([]models.Certificate, error) {
	args := m.Called(ctx, org)
	certs, _ := args.Get(0).([]models.Certificate)
	return certs, args.Error(1)
}

func (m *mockRegistry) StudentCertificates(ctx context.Context, student common.Address) ([]models.Certificate, error) {
	args := m.Called(ctx, student)
	certs, _ := args.Get(0).([]models.Certificate)
	return certs, args.Error(1)
}

func (m *mockRegistry) RegisterOrganization(ctx context.Context, from common.Address, req models.OrganizationRequest, registeredAt time.Time) (*models.TxResult, error) {
	args := m.Called(ctx, from, req, registeredAt)
	res, _ := args.Get(0).(*models.TxResult)
	return res, args.Error(1)
}

func (m *mockRegistry) RevokeOrganization(ctx context.Context, from, org common.Address) (*models.TxResult, error) {
	args := m.Called(ctx, from, org)
	res, _ := args.Get(0).(*models.TxResult)
	return res, args.Error(1)
}

func (m *mockRegistry) IssueCertificate(ctx context.Context, from common.Address, req models.IssueRequest) (*models.TxResult, error) {
	args := m.Called(ctx, from, req)
	res, _ := args.Get(0).(*models.TxResult)
	return res, args.Error(1)
}

func (m *mockRegistry) RevokeCertificate(ctx context.Context, from common.Address, id uint64) (*models.TxResult, error) {
	args := m.Called(ctx, from, id)
	res, _ := args.Get(0).(*models.TxResult)
	return res, args.Error(1)
}

func (m *mockRegistry) GasCost(ctx context.Context, hash common.Hash) (uint64, *big.Int, error) {
	args := m.Called(ctx, hash)
	wei, _ := args.Get(1).(*big.Int)
	return args.Get(0).(uint64), wei, args.Error(2)
}

func (m *mockRegistry) CanSign(addr common.Address) bool {
	return m.Called(addr).Bool(0)
}

// fakeLogs answers log lookups from fixed maps.
type fakeLogs struct {
	issued  map[uint64]common.Hash
	revoked map[uint64]common.Hash
	err     error
	queries []chain.LogQuery
}

func (f *fakeLogs) FindTx(ctx context.Context, event string, certID uint64) (*common.Hash, error) {
	if f.err != nil {
		return nil, f.err
	}
	src := f.issued
	if event == chain.EventCertificateRevoked {
		src = f.revoked
	}
	h, ok := src[certID]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (f *fakeLogs) TxHashes(ctx context.Context, q chain.LogQuery) (map[uint64]common.Hash, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if q.Event == chain.EventCertificateRevoked {
		return f.revoked, nil
	}
	return f.issued, nil
}

type fakePinner struct {
	mu     sync.Mutex
	pinned map[string][]byte
	err    error
	docs   map[string][]byte
}

func (f *fakePinner) PinFile(ctx context.Context, name string, content []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.pinned == nil {
		f.pinned = map[string][]byte{}
	}
	f.pinned[name] = content
	return "ipfs://bafy-" + name, nil
}

func (f *fakePinner) Fetch(ctx context.Context, ref string) ([]byte, error) {
	doc, ok := f.docs[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return doc, nil
}

// memRepo is an in-memory BatchRepository.
type memRepo struct {
	mu      sync.Mutex
	batches map[string]*models.Batch
	results map[string]map[int]csvbatch.Result
	history []models.BatchStatus
}

func newMemRepo() *memRepo {
	return &memRepo{batches: map[string]*models.Batch{}, results: map[string]map[int]csvbatch.Result{}}
}

func (r *memRepo) Create(ctx context.Context, b *models.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	cp.Rows = append([]csvbatch.Row(nil), b.Rows...)
	r.batches[b.ID] = &cp
	return nil
}

func (r *memRepo) Get(ctx context.Context, id string) (*models.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, store.ErrBatchNotFound
	}
	cp := *b
	cp.Rows = append([]csvbatch.Row(nil), b.Rows...)
	return &cp, nil
}

func (r *memRepo) ListByOrg(ctx context.Context, org string, limit int) ([]models.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Batch
	for _, b := range r.batches {
		if b.OrgAddress == org {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memRepo) UpdateRow(ctx context.Context, batchID string, idx int, row csvbatch.Row) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok || idx >= len(b.Rows) {
		return store.ErrBatchNotFound
	}
	b.Rows[idx] = row
	return nil
}

func (r *memRepo) TransitionStatus(ctx context.Context, id string, from, to models.BatchStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	r.history = append(r.history, to)
	return true, nil
}

func (r *memRepo) SetStatus(ctx context.Context, id string, status models.BatchStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[id]
	if !ok {
		return store.ErrBatchNotFound
	}
	b.Status = status
	r.history = append(r.history, status)
	return nil
}

func (r *memRepo) AppendResult(ctx context.Context, batchID string, seq int, res csvbatch.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.results[batchID] == nil {
		r.results[batchID] = map[int]csvbatch.Result{}
	}
	r.results[batchID][seq] = res
	return nil
}

func (r *memRepo) Results(ctx context.Context, batchID string) ([]csvbatch.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seqs := make([]int, 0, len(r.results[batchID]))
	for s := range r.results[batchID] {
		seqs = append(seqs, s)
	}
	sort.Ints(seqs)
	out := make([]csvbatch.Result, 0, len(seqs))
	for _, s := range seqs {
		out = append(out, r.results[batchID][s])
	}
	return out, nil
}

type fakePublisher struct {
	jobs []models.BatchJob
	err  error
}

func (p *fakePublisher) PublishBatchJob(job models.BatchJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

type memActivity struct {
	entries   []models.Activity
	lastLimit int64
}

func (a *memActivity) Record(ctx context.Context, act models.Activity) error {
	a.entries = append(a.entries, act)
	return nil
}

func (a *memActivity) Recent(ctx context.Context, actor string, limit int64) ([]models.Activity, error) {
	a.lastLimit = limit
	out := []models.Activity{}
	for i := len(a.entries) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if actor == "" || a.entries[i].Actor == actor {
			out = append(out, a.entries[i])
		}
	}
	return out, nil
}

func activeOrg() *models.Organization {
	return &models.Organization{Address: orgAddr.Hex(), Name: "Université de Lyon", IsActive: true}
}

func fixedClock() time.Time { return fixedNow }

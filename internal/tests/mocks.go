package tests

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ridecore/internal/domain"
	"ridecore/internal/gateway"
	"ridecore/internal/geo"
	"ridecore/internal/notify"
	"ridecore/internal/redis"
	"ridecore/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK STORE
// ──────────────────────────────────────────────

// memState is the whole database of a MockStore.
type memState struct {
	people       map[string]*domain.Person
	rides        map[string]*domain.Ride
	accounts     map[string]*domain.WalletAccount // owner|kind
	transactions []*domain.WalletTransaction
	payments     map[string]*domain.Payment // ride id
	fareRules    []domain.FareRule
	rewards      []domain.DistanceReward
	policy       *domain.CancellationPolicy
	incentives   []domain.Incentive
	progress     map[string]*domain.IncentiveProgress // driver|incentive
}

func newMemState() *memState {
	return &memState{
		people:   make(map[string]*domain.Person),
		rides:    make(map[string]*domain.Ride),
		accounts: make(map[string]*domain.WalletAccount),
		payments: make(map[string]*domain.Payment),
		progress: make(map[string]*domain.IncentiveProgress),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, p := range s.people {
		c.people[k] = copyPerson(p)
	}
	for k, r := range s.rides {
		c.rides[k] = copyRide(r)
	}
	for k, a := range s.accounts {
		cp := *a
		c.accounts[k] = &cp
	}
	c.transactions = slices.Clone(s.transactions)
	for k, p := range s.payments {
		cp := *p
		c.payments[k] = &cp
	}
	c.fareRules = slices.Clone(s.fareRules)
	c.rewards = slices.Clone(s.rewards)
	if s.policy != nil {
		cp := *s.policy
		c.policy = &cp
	}
	c.incentives = slices.Clone(s.incentives)
	for k, p := range s.progress {
		cp := *p
		c.progress[k] = &cp
	}
	return c
}

func copyPerson(p *domain.Person) *domain.Person {
	cp := *p
	if p.Driver != nil {
		d := *p.Driver
		cp.Driver = &d
	}
	return &cp
}

func copyRide(r *domain.Ride) *domain.Ride {
	cp := *r
	cp.RejectedBy = slices.Clone(r.RejectedBy)
	return &cp
}

// MockStore is an in-memory repository.Store. Transactions are serialized
// and roll back to a snapshot when fn returns an error.
type MockStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memState

	// Counters for verification
	TxCount       int32
	RollbackCount int32

	// Error injection: returned by every row-locking read while set.
	LockError error

	// BeforeClaim runs just before ClaimDriver, standing in for a
	// concurrent transaction that commits between read and write.
	BeforeClaim func(driverID string)
}

// NewMockStore creates an empty store.
func NewMockStore() *MockStore {
	return &MockStore{state: newMemState()}
}

// Repos returns repositories outside any transaction.
func (m *MockStore) Repos() repository.Repos {
	return m.repos()
}

// WithinTx runs fn with transactional repositories.
func (m *MockStore) WithinTx(ctx context.Context, fn func(ctx context.Context, r repository.Repos) error) error {
	atomic.AddInt32(&m.TxCount, 1)
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(ctx, m.repos()); err != nil {
		atomic.AddInt32(&m.RollbackCount, 1)
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *MockStore) repos() repository.Repos {
	return repository.Repos{
		People:     &mockPeople{m},
		Rides:      &mockRides{m},
		Wallets:    &mockWallets{m},
		Payments:   &mockPayments{m},
		Rules:      &mockRules{m},
		Incentives: &mockIncentives{m},
	}
}

func (m *MockStore) lockErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LockError
}

// SetLockError injects err into every row-locking read.
func (m *MockStore) SetLockError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LockError = err
}

// AddPerson seeds a person.
func (m *MockStore) AddPerson(p *domain.Person) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.people[p.ID] = copyPerson(p)
}

// AddRide seeds a ride.
func (m *MockStore) AddRide(r *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.rides[r.ID] = copyRide(r)
}

// AddPayment seeds a payment.
func (m *MockStore) AddPayment(p *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.state.payments[p.RideID] = &cp
}

// SetFareRules seeds the fare table.
func (m *MockStore) SetFareRules(rules ...domain.FareRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.fareRules = rules
}

// SetDistanceRewards seeds the reward table.
func (m *MockStore) SetDistanceRewards(rewards ...domain.DistanceReward) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.rewards = rewards
}

// SetPolicy seeds the cancellation policy. Nil removes it.
func (m *MockStore) SetPolicy(p *domain.CancellationPolicy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.policy = p
}

// SetIncentives seeds the incentive rules.
func (m *MockStore) SetIncentives(in ...domain.Incentive) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.incentives = in
}

// Ride returns a copy of a stored ride, or nil.
func (m *MockStore) Ride(id string) *domain.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.state.rides[id]
	if !ok {
		return nil
	}
	return copyRide(r)
}

// Rides returns copies of every stored ride.
func (m *MockStore) Rides() []*domain.Ride {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Ride, 0, len(m.state.rides))
	for _, r := range m.state.rides {
		out = append(out, copyRide(r))
	}
	return out
}

// Person returns a copy of a stored person, or nil.
func (m *MockStore) Person(id string) *domain.Person {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.people[id]
	if !ok {
		return nil
	}
	return copyPerson(p)
}

// Payment returns a copy of a ride's payment, or nil.
func (m *MockStore) Payment(rideID string) *domain.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.payments[rideID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// Balance returns an account balance, zero when the account does not exist.
func (m *MockStore) Balance(ownerID string, kind domain.AccountKind) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.state.accounts[accountKey(ownerID, kind)]; ok {
		return a.Balance
	}
	return decimal.Zero
}

// Account returns a copy of an account, or nil.
func (m *MockStore) Account(ownerID string, kind domain.AccountKind) *domain.WalletAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.accounts[accountKey(ownerID, kind)]
	if !ok {
		return nil
	}
	cp := *a
	return &cp
}

// Transactions returns the ledger rows of an account in insertion order.
func (m *MockStore) Transactions(ownerID string, kind domain.AccountKind) []*domain.WalletTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.state.accounts[accountKey(ownerID, kind)]
	if !ok {
		return nil
	}
	var out []*domain.WalletTransaction
	for _, t := range m.state.transactions {
		if t.AccountID == a.ID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

// Progress returns a copy of a driver's incentive progress, or nil.
func (m *MockStore) Progress(driverID, incentiveID string) *domain.IncentiveProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.state.progress[driverID+"|"+incentiveID]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func accountKey(ownerID string, kind domain.AccountKind) string {
	return ownerID + "|" + string(kind)
}

// ──────────────────────────────────────────────
// PEOPLE
// ──────────────────────────────────────────────

type mockPeople struct{ m *MockStore }

func (r *mockPeople) Create(_ context.Context, p *domain.Person) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.state.people[p.ID] = copyPerson(p)
	return nil
}

func (r *mockPeople) GetByID(_ context.Context, id string) (*domain.Person, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.state.people[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyPerson(p), nil
}

func (r *mockPeople) ListOnlineAvailableDrivers(_ context.Context, tier domain.VehicleTier) ([]domain.DriverRef, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.DriverRef
	for _, p := range r.m.state.people {
		d := p.Driver
		if d == nil || !d.Online || !d.Available || !d.HasPosition() || p.PushToken == "" {
			continue
		}
		if !tier.Matches(d.VehicleTier) {
			continue
		}
		out = append(out, domain.DriverRef{ID: p.ID, Lat: *d.Lat, Lng: *d.Lng, PushToken: p.PushToken, VehicleTier: d.VehicleTier})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *mockPeople) driver(id string) (*domain.DriverProfile, error) {
	p, ok := r.m.state.people[id]
	if !ok || p.Driver == nil {
		return nil, repository.ErrNotFound
	}
	return p.Driver, nil
}

func (r *mockPeople) SetDriverAvailability(_ context.Context, driverID string, available bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, err := r.driver(driverID)
	if err != nil {
		return err
	}
	d.Available = available
	return nil
}

func (r *mockPeople) ClaimDriver(_ context.Context, driverID string) (bool, error) {
	if r.m.BeforeClaim != nil {
		r.m.BeforeClaim(driverID)
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, err := r.driver(driverID)
	if err != nil {
		return false, err
	}
	if !d.Available {
		return false, nil
	}
	d.Available = false
	return true, nil
}

// TakeDriver marks a driver unavailable outside any transaction.
func (m *MockStore) TakeDriver(driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.state.people[driverID]; ok && p.Driver != nil {
		p.Driver.Available = false
	}
}

func (r *mockPeople) SetDriverOnline(_ context.Context, driverID string, online bool) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, err := r.driver(driverID)
	if err != nil {
		return err
	}
	d.Online = online
	return nil
}

func (r *mockPeople) UpdateDriverLocation(_ context.Context, driverID string, lat, lng float64, at time.Time) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	d, err := r.driver(driverID)
	if err != nil {
		return err
	}
	d.Lat, d.Lng, d.LocatedAt = &lat, &lng, at
	return nil
}

func (r *mockPeople) UpdatePushToken(_ context.Context, personID, token string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.state.people[personID]
	if !ok {
		return repository.ErrNotFound
	}
	p.PushToken = token
	return nil
}

// ──────────────────────────────────────────────
// RIDES
// ──────────────────────────────────────────────

type mockRides struct{ m *MockStore }

func (r *mockRides) Create(_ context.Context, ride *domain.Ride) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.state.rides[ride.ID]; ok {
		return fmt.Errorf("duplicate ride %s", ride.ID)
	}
	r.m.state.rides[ride.ID] = copyRide(ride)
	return nil
}

func (r *mockRides) GetByID(_ context.Context, id string) (*domain.Ride, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ride, ok := r.m.state.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyRide(ride), nil
}

func (r *mockRides) GetByIDForUpdate(ctx context.Context, id string) (*domain.Ride, error) {
	if err := r.m.lockErr(); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *mockRides) Update(_ context.Context, ride *domain.Ride) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.state.rides[ride.ID]; !ok {
		return repository.ErrNotFound
	}
	r.m.state.rides[ride.ID] = copyRide(ride)
	return nil
}

func (r *mockRides) AddRejection(_ context.Context, rideID, driverID string) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ride, ok := r.m.state.rides[rideID]
	if !ok {
		return repository.ErrNotFound
	}
	if !ride.HasRejected(driverID) {
		ride.RejectedBy = append(ride.RejectedBy, driverID)
	}
	return nil
}

func (r *mockRides) CountCancelledByUser(_ context.Context, riderID string) (int, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	n := 0
	for _, ride := range r.m.state.rides {
		if ride.RiderID == riderID && ride.IsCancelledByUser {
			n++
		}
	}
	return n, nil
}

func (r *mockRides) ReclassifyFreeCancellations(_ context.Context, riderID string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, ride := range r.m.state.rides {
		if ride.RiderID == riderID && ride.IsCancelledByUser && ride.CancellationCharge.IsZero() {
			ride.IsCancelledByUser = false
			n++
		}
	}
	return n, nil
}

func (r *mockRides) ListStalePending(_ context.Context, cutoff time.Time, limit int) ([]*domain.Ride, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Ride
	for _, ride := range r.m.state.rides {
		if ride.Status == domain.RideStatusPending && ride.DispatchDeadline().Before(cutoff) {
			out = append(out, copyRide(ride))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *mockRides) MarkDispatched(_ context.Context, rideID string, at time.Time) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	ride, ok := r.m.state.rides[rideID]
	if !ok || ride.Status != domain.RideStatusPending || !ride.DispatchedAt.IsZero() {
		return false, nil
	}
	ride.DispatchedAt = at
	return true, nil
}

func (r *mockRides) list(match func(*domain.Ride) bool, limit int) []*domain.Ride {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.Ride
	for _, ride := range r.m.state.rides {
		if match(ride) {
			out = append(out, copyRide(ride))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *mockRides) ListByRider(_ context.Context, riderID string, limit int) ([]*domain.Ride, error) {
	return r.list(func(ride *domain.Ride) bool { return ride.RiderID == riderID }, limit), nil
}

func (r *mockRides) ListByDriver(_ context.Context, driverID string, limit int) ([]*domain.Ride, error) {
	return r.list(func(ride *domain.Ride) bool { return ride.DriverID == driverID }, limit), nil
}

// ──────────────────────────────────────────────
// WALLETS
// ──────────────────────────────────────────────

type mockWallets struct{ m *MockStore }

func (r *mockWallets) GetByOwner(_ context.Context, ownerID string, kind domain.AccountKind) (*domain.WalletAccount, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.state.accounts[accountKey(ownerID, kind)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *mockWallets) LockByOwner(_ context.Context, ownerID string, kind domain.AccountKind) (*domain.WalletAccount, error) {
	if err := r.m.lockErr(); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := accountKey(ownerID, kind)
	a, ok := r.m.state.accounts[key]
	if !ok {
		a = &domain.WalletAccount{ID: uuid.NewString(), OwnerID: ownerID, Kind: kind, UpdatedAt: time.Now().UTC()}
		r.m.state.accounts[key] = a
	}
	cp := *a
	return &cp, nil
}

func (r *mockWallets) UpdateBalance(_ context.Context, account *domain.WalletAccount) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := accountKey(account.OwnerID, account.Kind)
	if _, ok := r.m.state.accounts[key]; !ok {
		return repository.ErrNotFound
	}
	cp := *account
	r.m.state.accounts[key] = &cp
	return nil
}

func (r *mockWallets) AppendTransaction(_ context.Context, txn *domain.WalletTransaction) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *txn
	r.m.state.transactions = append(r.m.state.transactions, &cp)
	return nil
}

func (r *mockWallets) ListTransactions(_ context.Context, accountID string, limit int) ([]*domain.WalletTransaction, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []*domain.WalletTransaction
	for i := len(r.m.state.transactions) - 1; i >= 0; i-- {
		t := r.m.state.transactions[i]
		if t.AccountID != accountID {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────
// PAYMENTS
// ──────────────────────────────────────────────

type mockPayments struct{ m *MockStore }

func (r *mockPayments) Create(_ context.Context, p *domain.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *p
	r.m.state.payments[p.RideID] = &cp
	return nil
}

func (r *mockPayments) GetByRideID(_ context.Context, rideID string) (*domain.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p, ok := r.m.state.payments[rideID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *mockPayments) GetByOrderRef(_ context.Context, orderRef string) (*domain.Payment, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, p := range r.m.state.payments {
		if p.OrderRef == orderRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *mockPayments) Update(_ context.Context, p *domain.Payment) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.state.payments[p.RideID]; !ok {
		return repository.ErrNotFound
	}
	cp := *p
	r.m.state.payments[p.RideID] = &cp
	return nil
}

// ──────────────────────────────────────────────
// RULES AND INCENTIVES
// ──────────────────────────────────────────────

type mockRules struct{ m *MockStore }

func (r *mockRules) ListFareRules(_ context.Context, tier domain.VehicleTier) ([]domain.FareRule, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var out []domain.FareRule
	for _, rule := range r.m.state.fareRules {
		if rule.VehicleTier == tier {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinDistance < out[j].MinDistance })
	return out, nil
}

func (r *mockRules) ListDistanceRewards(_ context.Context) ([]domain.DistanceReward, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return slices.Clone(r.m.state.rewards), nil
}

func (r *mockRules) ActiveCancellationPolicy(_ context.Context) (*domain.CancellationPolicy, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	p := r.m.state.policy
	if p == nil || !p.Active {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

type mockIncentives struct{ m *MockStore }

func (r *mockIncentives) ListIncentives(_ context.Context) ([]domain.Incentive, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return slices.Clone(r.m.state.incentives), nil
}

func (r *mockIncentives) LockProgress(_ context.Context, driverID, incentiveID string) (*domain.IncentiveProgress, error) {
	if err := r.m.lockErr(); err != nil {
		return nil, err
	}
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	key := driverID + "|" + incentiveID
	p, ok := r.m.state.progress[key]
	if !ok {
		p = &domain.IncentiveProgress{DriverID: driverID, IncentiveID: incentiveID}
		r.m.state.progress[key] = p
	}
	cp := *p
	return &cp, nil
}

func (r *mockIncentives) SaveProgress(_ context.Context, p *domain.IncentiveProgress) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	cp := *p
	r.m.state.progress[p.DriverID+"|"+p.IncentiveID] = &cp
	return nil
}

func (r *mockIncentives) ResetEarned(_ context.Context) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for _, p := range r.m.state.progress {
		if p.Earned || p.RidesCompleted > 0 {
			p.Earned, p.RidesCompleted, p.TravelledDistance = false, 0, 0
			n++
		}
	}
	return n, nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// Notification is one recorded push.
type Notification struct {
	Tokens []string
	Title  string
	Body   string
	Data   map[string]string
}

// MockNotifier records pushes. Tokens listed in Fail are reported as failed.
type MockNotifier struct {
	mu   sync.Mutex
	sent []Notification
	Fail map[string]bool

	// Error injection
	NotifyError error
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{Fail: make(map[string]bool)}
}

func (m *MockNotifier) Notify(_ context.Context, tokens []string, title, body string, data map[string]string) (notify.BatchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, Notification{Tokens: slices.Clone(tokens), Title: title, Body: body, Data: data})
	if m.NotifyError != nil {
		return notify.BatchResult{}, m.NotifyError
	}
	var res notify.BatchResult
	for _, t := range tokens {
		if m.Fail[t] {
			res.FailureCount++
			res.FailedTokens = append(res.FailedTokens, t)
			continue
		}
		res.SuccessCount++
	}
	return res, nil
}

// Sent returns every recorded push.
func (m *MockNotifier) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sent)
}

// WithTitle returns the pushes with the given title.
func (m *MockNotifier) WithTitle(title string) []Notification {
	var out []Notification
	for _, n := range m.Sent() {
		if n.Title == title {
			out = append(out, n)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK PAYMENT GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a scriptable payment gateway.
type MockGateway struct {
	mu sync.Mutex

	ValidSignature bool
	PayoutResult   gateway.PayoutResult

	// Counters for verification
	CreateOrderCount int32
	PayoutCount      int32

	// Error injection
	CreateOrderError error
	PayoutError      error
}

// NewMockGateway creates a gateway that accepts signatures and payouts.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		ValidSignature: true,
		PayoutResult:   gateway.PayoutResult{Success: true, PayoutID: "po_test"},
	}
}

func (g *MockGateway) CreateOrder(_ context.Context, _ decimal.Decimal) (string, error) {
	n := atomic.AddInt32(&g.CreateOrderCount, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateOrderError != nil {
		return "", g.CreateOrderError
	}
	return fmt.Sprintf("order_test_%d", n), nil
}

func (g *MockGateway) VerifySignature(_, _, _ string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ValidSignature
}

func (g *MockGateway) Payout(_ context.Context, _ string, _ decimal.Decimal, _ string) (gateway.PayoutResult, error) {
	atomic.AddInt32(&g.PayoutCount, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.PayoutError != nil {
		return gateway.PayoutResult{}, g.PayoutError
	}
	return g.PayoutResult, nil
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records ride transitions.
type MockPublisher struct {
	mu          sync.Mutex
	transitions []domain.RideTransition

	// Error injection
	PublishError error
}

func (p *MockPublisher) PublishTransition(_ context.Context, t domain.RideTransition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transitions = append(p.transitions, t)
	return p.PublishError
}

// Transitions returns the recorded transitions.
func (p *MockPublisher) Transitions() []domain.RideTransition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.transitions)
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is an in-memory LockStoreInterface.
type MockLockStore struct {
	mu   sync.Mutex
	held map[string]bool

	// Counters for verification
	ReleaseCount int32

	// Error injection
	AcquireError error
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{held: make(map[string]bool)}
}

func (m *MockLockStore) acquire(key string) (*redis.Lock, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcquireError != nil {
		return nil, false, m.AcquireError
	}
	if m.held[key] {
		return nil, false, nil
	}
	m.held[key] = true
	return &redis.Lock{Key: key, Token: uuid.NewString()}, true, nil
}

func (m *MockLockStore) AcquireDriverLock(_ context.Context, driverID string, _ time.Duration) (*redis.Lock, bool, error) {
	return m.acquire("lock:driver:" + driverID)
}

func (m *MockLockStore) AcquireRideLock(_ context.Context, rideID string, _ time.Duration) (*redis.Lock, bool, error) {
	return m.acquire("lock:ride:" + rideID)
}

func (m *MockLockStore) Release(_ context.Context, lock *redis.Lock) error {
	atomic.AddInt32(&m.ReleaseCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, lock.Key)
	return nil
}

// Hold marks a ride lock as taken by someone else.
func (m *MockLockStore) Hold(rideID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held["lock:ride:"+rideID] = true
}

// HoldDriver marks a driver lock as taken by someone else.
func (m *MockLockStore) HoldDriver(driverID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held["lock:driver:"+driverID] = true
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is an in-memory LocationStoreInterface.
type MockLocationStore struct {
	mu        sync.Mutex
	locations map[string]redis.DriverLocation

	// Error injection
	UpdateError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{locations: make(map[string]redis.DriverLocation)}
}

func (m *MockLocationStore) UpdateLocation(_ context.Context, loc redis.DriverLocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.locations[loc.DriverID] = loc
	return nil
}

func (m *MockLocationStore) GetLocation(_ context.Context, driverID string) (*redis.DriverLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc, ok := m.locations[driverID]
	if !ok {
		return nil, redis.ErrNoLocation
	}
	return &loc, nil
}

func (m *MockLocationStore) FindNearbyDrivers(_ context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]redis.DriverLocation, 0, len(m.locations))
	for _, loc := range m.locations {
		if geo.Haversine(lat, lng, loc.Lat, loc.Lng) <= radiusKm {
			out = append(out, loc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return geo.Haversine(lat, lng, out[i].Lat, out[i].Lng) < geo.Haversine(lat, lng, out[j].Lat, out[j].Lng)
	})
	return out, nil
}

func (m *MockLocationStore) RemoveLocation(_ context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locations, driverID)
	return nil
}

// Has reports whether a live position is stored for the driver.
func (m *MockLocationStore) Has(driverID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locations[driverID]
	return ok
}

// ──────────────────────────────────────────────
// MOCK BROADCASTER AND DISTANCE ESTIMATOR
// ──────────────────────────────────────────────

// MockBroadcaster counts location broadcasts.
type MockBroadcaster struct {
	Count int32
}

func (b *MockBroadcaster) BroadcastLocation(_ string, _, _ float64) int {
	atomic.AddInt32(&b.Count, 1)
	return 0
}

// FixedDistance always returns Km, or Err when set.
type FixedDistance struct {
	Km  float64
	Err error
}

func (d FixedDistance) DistanceKm(_ context.Context, _, _ domain.Point) (float64, error) {
	return d.Km, d.Err
}

// errLockTimeout is what the postgres store returns when a row lock wait expires.
var errLockTimeout = fmt.Errorf("lock rides row: %w", repository.ErrLockTimeout)

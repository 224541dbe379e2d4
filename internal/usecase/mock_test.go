//go:build !integration

package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-entitlement-platform/internal/domain"
	"course-entitlement-platform/internal/domain/model"
	"course-entitlement-platform/internal/domain/ports/adapter"
	"course-entitlement-platform/internal/domain/ports/repository"
	"course-entitlement-platform/internal/usecase"
)

func newLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// =============================
// Transaction manager
// =============================

type noTx struct{}

type mockTxManager struct {
	// BeginErr fails the transaction before fn runs.
	BeginErr error
	Calls    int
}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.Calls++
	if m.BeginErr != nil {
		return m.BeginErr
	}
	return fn(ctx, noTx{})
}

// =============================
// Repositories (in-memory)
// =============================

type memSubscriptionRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Subscription

	UpsertErr    error
	SetStatusErr error
	Upserts      int
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{byID: map[string]*model.Subscription{}}
}

func (m *memSubscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserts++
	// emulate the (user, package) conflict key
	for _, s := range m.byID {
		if s.UserID == sub.UserID && s.PackageID == sub.PackageID {
			s.Status = sub.Status
			s.PeriodEnd = sub.PeriodEnd
			s.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
			s.CustomerID = sub.CustomerID
			s.ProviderSubID = sub.ProviderSubID
			s.AmountPaidCent = sub.AmountPaidCent
			s.Currency = sub.Currency
			s.UpdatedAt = sub.UpdatedAt
			return nil
		}
	}
	cp := *sub
	m.byID[sub.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) FindByUserAndPackage(ctx context.Context, tx repository.Tx, userID, packageID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.UserID == userID && s.PackageID == packageID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) FindByProviderSubID(ctx context.Context, tx repository.Tx, providerSubID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.ProviderSubID == providerSubID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) UpdateFromProvider(ctx context.Context, tx repository.Tx, providerSubID string, status model.SubscriptionStatus, periodEnd time.Time, cancelAtPeriodEnd bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.ProviderSubID == providerSubID {
			s.Status = status
			pe := periodEnd
			s.PeriodEnd = &pe
			s.CancelAtPeriodEnd = cancelAtPeriodEnd
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memSubscriptionRepo) SetStatus(ctx context.Context, tx repository.Tx, id string, status model.SubscriptionStatus) error {
	if m.SetStatusErr != nil {
		return m.SetStatusErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byID[id]; ok {
		s.Status = status
		return nil
	}
	return domain.ErrNotFound
}

func (m *memSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Subscription
	for _, s := range m.byID {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPurchaseRepo struct {
	mu   sync.Mutex
	byID map[string]*model.OneTimePurchase

	InsertErr error
	Inserts   int
}

func newMemPurchaseRepo() *memPurchaseRepo {
	return &memPurchaseRepo{byID: map[string]*model.OneTimePurchase{}}
}

func (m *memPurchaseRepo) Insert(ctx context.Context, tx repository.Tx, p *model.OneTimePurchase) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if e.PaymentIntentID == p.PaymentIntentID {
			return domain.ErrAlreadyExists
		}
	}
	m.Inserts++
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memPurchaseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.OneTimePurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memPurchaseRepo) FindByPaymentIntent(ctx context.Context, tx repository.Tx, paymentIntentID string) (*model.OneTimePurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.byID {
		if p.PaymentIntentID == paymentIntentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPurchaseRepo) SetStatus(ctx context.Context, tx repository.Tx, id string, status model.PurchaseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.byID[id]; ok {
		p.Status = status
		return nil
	}
	return domain.ErrNotFound
}

func (m *memPurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.OneTimePurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.OneTimePurchase
	for _, p := range m.byID {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPackageRepo struct {
	byID   map[string]*model.Package
	videos map[string][]*model.Video // keyed by package id
}

func newMemPackageRepo() *memPackageRepo {
	return &memPackageRepo{byID: map[string]*model.Package{}, videos: map[string][]*model.Video{}}
}

func (m *memPackageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	cp := *pkg
	m.byID[pkg.ID] = &cp
	return nil
}

func (m *memPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	if p, ok := m.byID[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memPackageRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	out := make([]*model.Package, 0, len(m.byID))
	for _, p := range m.byID {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPackageRepo) SaveVideo(ctx context.Context, tx repository.Tx, v *model.Video) error {
	cp := *v
	m.videos[v.PackageID] = append(m.videos[v.PackageID], &cp)
	return nil
}

func (m *memPackageRepo) FindVideo(ctx context.Context, tx repository.Tx, videoID string) (*model.Video, error) {
	for _, vs := range m.videos {
		for _, v := range vs {
			if v.ID == videoID {
				cp := *v
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPackageRepo) ListVideos(ctx context.Context, tx repository.Tx, packageID string) ([]*model.Video, error) {
	out := make([]*model.Video, 0, len(m.videos[packageID]))
	for _, v := range m.videos[packageID] {
		cp := *v
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPackageRepo) CountVideos(ctx context.Context, tx repository.Tx, packageID string) (int, error) {
	return len(m.videos[packageID]), nil
}

type memRefundRepo struct {
	mu   sync.Mutex
	byID map[string]*model.RefundRequest

	MarkDecidedErr error
	StalePending   bool // HasPendingForTarget reads as if the other insert is not visible yet
}

func newMemRefundRepo() *memRefundRepo {
	return &memRefundRepo{byID: map[string]*model.RefundRequest{}}
}

func (m *memRefundRepo) Insert(ctx context.Context, tx repository.Tx, r *model.RefundRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Mirrors the partial unique indexes on pending requests per target.
	for _, other := range m.byID {
		if other.Status == model.RefundStatusPending && other.TargetType() == r.TargetType() && other.TargetID() == r.TargetID() {
			return domain.ErrAlreadyExists
		}
	}
	cp := *r
	m.byID[r.ID] = &cp
	return nil
}

func (m *memRefundRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.RefundRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byID[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memRefundRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.RefundRequest, error) {
	return m.FindByID(ctx, tx, id)
}

func (m *memRefundRepo) MarkDecided(ctx context.Context, tx repository.Tx, id string, status model.RefundStatus, decidedBy string, processedAt time.Time) error {
	if m.MarkDecidedErr != nil {
		return m.MarkDecidedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	if r.Status != model.RefundStatusPending {
		return domain.ErrRefundNotPending
	}
	r.Status = status
	r.DecidedBy = &decidedBy
	pa := processedAt
	r.ProcessedAt = &pa
	return nil
}

func (m *memRefundRepo) ListPending(ctx context.Context, tx repository.Tx) ([]*model.RefundRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RefundRequest
	for _, r := range m.byID {
		if r.Status == model.RefundStatusPending {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRefundRepo) HasPendingForTarget(ctx context.Context, tx repository.Tx, targetType model.RefundTargetType, targetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.StalePending {
		return false, nil
	}
	for _, r := range m.byID {
		if r.Status == model.RefundStatusPending && r.TargetType() == targetType && r.TargetID() == targetID {
			return true, nil
		}
	}
	return false, nil
}

type memProgressRepo struct {
	mu   sync.Mutex
	rows map[string]*model.VideoWatchProgress // key user|video

	pkgOf func(videoID string) string // wired to the package repo
}

func newMemProgressRepo(pkgRepo *memPackageRepo) *memProgressRepo {
	return &memProgressRepo{
		rows: map[string]*model.VideoWatchProgress{},
		pkgOf: func(videoID string) string {
			for pkgID, vs := range pkgRepo.videos {
				for _, v := range vs {
					if v.ID == videoID {
						return pkgID
					}
				}
			}
			return ""
		},
	}
}

func (m *memProgressRepo) key(userID, videoID string) string { return userID + "|" + videoID }

func (m *memProgressRepo) Upsert(ctx context.Context, tx repository.Tx, p *model.VideoWatchProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.key(p.UserID, p.VideoID)
	if prev, ok := m.rows[k]; ok {
		cp := *p
		cp.Completed = prev.Completed || p.Completed // monotonic
		m.rows[k] = &cp
		return nil
	}
	cp := *p
	m.rows[k] = &cp
	return nil
}

func (m *memProgressRepo) FindByUserAndVideo(ctx context.Context, tx repository.Tx, userID, videoID string) (*model.VideoWatchProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[m.key(userID, videoID)]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memProgressRepo) ListByUserAndPackage(ctx context.Context, tx repository.Tx, userID, packageID string) ([]*model.VideoWatchProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.VideoWatchProgress
	for _, p := range m.rows {
		if p.UserID == userID && m.pkgOf(p.VideoID) == packageID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memProgressRepo) CountCompletedInPackage(ctx context.Context, tx repository.Tx, userID, packageID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.rows {
		if p.UserID == userID && p.Completed && m.pkgOf(p.VideoID) == packageID {
			n++
		}
	}
	return n, nil
}

func (m *memProgressRepo) ListActiveViewers(ctx context.Context, tx repository.Tx, since time.Time, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, p := range m.rows {
		if p.LastWatchedAt.After(since) && !seen[p.UserID] {
			seen[p.UserID] = true
			out = append(out, p.UserID)
		}
	}
	return out, nil
}

type memBadgeRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Badge // key user|package

	Awards   int   // insert attempts that actually inserted
	AwardErr error // fails every award
}

func newMemBadgeRepo() *memBadgeRepo { return &memBadgeRepo{rows: map[string]*model.Badge{}} }

func (m *memBadgeRepo) Award(ctx context.Context, tx repository.Tx, b *model.Badge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AwardErr != nil {
		return false, m.AwardErr
	}
	k := b.UserID + "|" + b.PackageID
	if _, ok := m.rows[k]; ok {
		return false, nil
	}
	cp := *b
	m.rows[k] = &cp
	m.Awards++
	return true, nil
}

func (m *memBadgeRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Badge
	for _, b := range m.rows {
		if b.UserID == userID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memUserRepo struct {
	byID map[string]*model.User
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{byID: map[string]*model.User{}} }

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) FindByCustomerID(ctx context.Context, tx repository.Tx, customerID string) (*model.User, error) {
	for _, u := range m.byID {
		if u.CustomerID == customerID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) BackfillCustomerID(ctx context.Context, tx repository.Tx, userID, customerID string) error {
	if u, ok := m.byID[userID]; ok && u.CustomerID == "" {
		u.CustomerID = customerID
	}
	return nil
}

func (m *memUserRepo) MarkTrialUsed(ctx context.Context, tx repository.Tx, userID string) error {
	if u, ok := m.byID[userID]; ok {
		u.TrialUsed = true
		return nil
	}
	return domain.ErrNotFound
}

type memPaymentRecordRepo struct {
	mu         sync.Mutex
	byExternal map[string]*model.PaymentRecord
}

func newMemPaymentRecordRepo() *memPaymentRecordRepo {
	return &memPaymentRecordRepo{byExternal: map[string]*model.PaymentRecord{}}
}

func (m *memPaymentRecordRepo) UpsertByExternalID(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.byExternal[p.ExternalID] = &cp
	return nil
}

func (m *memPaymentRecordRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.PaymentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range m.byExternal {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memNotificationRepo struct {
	mu    sync.Mutex
	rows  []*model.Notification
	calls int
}

func newMemNotificationRepo() *memNotificationRepo { return &memNotificationRepo{} }

func (m *memNotificationRepo) Insert(ctx context.Context, tx repository.Tx, n *model.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	cp := *n
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memNotificationRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Notification
	for _, n := range m.rows {
		if n.UserID != userID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		cp := *n
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memNotificationRepo) MarkRead(ctx context.Context, tx repository.Tx, id, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.rows {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memNotificationRepo) kinds(userID string) []model.NotificationKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.NotificationKind
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n.Kind)
		}
	}
	return out
}

// =============================
// Payment processor
// =============================

type MockProcessor struct {
	mu sync.Mutex

	FetchSubscriptionFunc  func(ctx context.Context, subscriptionID string) (adapter.SubscriptionState, error)
	LatestChargeFunc       func(ctx context.Context, subscriptionID string) (string, error)
	RefundChargeFunc       func(ctx context.Context, chargeID, reason string) (adapter.RefundResult, error)
	CancelSubscriptionFunc func(ctx context.Context, subscriptionID string) error

	Calls struct {
		Fetch   []string
		Refunds []string
		Cancels []string
	}
}

var _ adapter.PaymentProcessor = (*MockProcessor)(nil)

func (m *MockProcessor) Name() string { return "mock" }

func (m *MockProcessor) FetchSubscription(ctx context.Context, subscriptionID string) (adapter.SubscriptionState, error) {
	m.mu.Lock()
	m.Calls.Fetch = append(m.Calls.Fetch, subscriptionID)
	m.mu.Unlock()
	if m.FetchSubscriptionFunc != nil {
		return m.FetchSubscriptionFunc(ctx, subscriptionID)
	}
	return adapter.SubscriptionState{
		ID:        subscriptionID,
		Status:    "active",
		PeriodEnd: time.Now().Add(30 * 24 * time.Hour),
	}, nil
}

func (m *MockProcessor) LatestChargeForSubscription(ctx context.Context, subscriptionID string) (string, error) {
	if m.LatestChargeFunc != nil {
		return m.LatestChargeFunc(ctx, subscriptionID)
	}
	return "ch_" + subscriptionID, nil
}

func (m *MockProcessor) RefundCharge(ctx context.Context, chargeID, reason string) (adapter.RefundResult, error) {
	m.mu.Lock()
	m.Calls.Refunds = append(m.Calls.Refunds, chargeID)
	m.mu.Unlock()
	if m.RefundChargeFunc != nil {
		return m.RefundChargeFunc(ctx, chargeID, reason)
	}
	return adapter.RefundResult{ID: "re_1", Status: "succeeded", RefundedAt: time.Now()}, nil
}

func (m *MockProcessor) CancelSubscription(ctx context.Context, subscriptionID string) error {
	m.mu.Lock()
	m.Calls.Cancels = append(m.Calls.Cancels, subscriptionID)
	m.mu.Unlock()
	if m.CancelSubscriptionFunc != nil {
		return m.CancelSubscriptionFunc(ctx, subscriptionID)
	}
	return nil
}

// =============================
// Event cache
// =============================

type memEventCache struct {
	mu    sync.Mutex
	seen  map[string]bool
	Marks []string

	SeenErr error
	MarkErr error
}

func newMemEventCache() *memEventCache { return &memEventCache{seen: map[string]bool{}} }

var _ usecase.ProcessedEventCache = (*memEventCache)(nil)

func (m *memEventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	if m.SeenErr != nil {
		return false, m.SeenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seen[eventID], nil
}

func (m *memEventCache) MarkProcessed(ctx context.Context, eventID string) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[eventID] = true
	m.Marks = append(m.Marks, eventID)
	return nil
}

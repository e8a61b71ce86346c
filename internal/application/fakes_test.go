package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	bookingDomain "github.com/cleanmatch/service-booking/internal/domain/booking"
	"github.com/cleanmatch/service-booking/internal/domain/invoice"
	"github.com/cleanmatch/service-booking/internal/domain/listing"
	photoDomain "github.com/cleanmatch/service-booking/internal/domain/photo"
	"github.com/cleanmatch/service-booking/internal/domain/profile"
	"github.com/cleanmatch/service-booking/internal/domain/rating"
	"github.com/cleanmatch/service-booking/internal/platform/domain"
	"github.com/cleanmatch/service-booking/internal/platform/lock"
)

// --- bookings ---

type fakeBookingRepo struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*bookingDomain.Booking
	saveErr   error
	updateErr error
	updates   int
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{items: make(map[uuid.UUID]*bookingDomain.Booking)}
}

func copyBooking(bk *bookingDomain.Booking) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(bk.Snapshot())
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bk, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("Booking", id.String())
	}
	return copyBooking(bk), nil
}

func (r *fakeBookingRepo) filter(keep func(*bookingDomain.Booking) bool, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, bk := range r.items {
		if keep(bk) {
			out = append(out, copyBooking(bk))
		}
	}
	total := int64(len(out))
	start := (page - 1) * limit
	if start > len(out) {
		start = len(out)
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *fakeBookingRepo) FindByHostID(_ context.Context, hostID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(bk *bookingDomain.Booking) bool { return bk.HostID() == hostID }, page, limit)
}

func (r *fakeBookingRepo) FindByCleanerID(_ context.Context, cleanerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(bk *bookingDomain.Booking) bool { return bk.CleanerID() == cleanerID }, page, limit)
}

func (r *fakeBookingRepo) ListAll(_ context.Context, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.filter(func(*bookingDomain.Booking) bool { return true }, page, limit)
}

func (r *fakeBookingRepo) CountByStatus(context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int64)
	for _, bk := range r.items {
		out[string(bk.Status())]++
	}
	return out, nil
}

func (r *fakeBookingRepo) ReceivedRatings(_ context.Context, rated bookingDomain.Party, profileID uuid.UUID) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var values []int
	for _, bk := range r.items {
		switch {
		case rated == bookingDomain.PartyCleaner && bk.CleanerID() == profileID && bk.CleanerRating() != nil:
			values = append(values, bk.CleanerRating().Value)
		case rated == bookingDomain.PartyHost && bk.HostID() == profileID && bk.HostRating() != nil:
			values = append(values, bk.HostRating().Value)
		}
	}
	return values, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.items[bk.ID()] = copyBooking(bk)
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, bk *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	cur, ok := r.items[bk.ID()]
	if !ok {
		return domain.NewNotFoundError("Booking", bk.ID().String())
	}
	if cur.Version() != bk.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.items[bk.ID()] = copyBooking(bk)
	r.updates++
	return nil
}

func (r *fakeBookingRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *fakeBookingRepo) get(id uuid.UUID) *bookingDomain.Booking {
	r.mu.Lock()
	defer r.mu.Unlock()
	return copyBooking(r.items[id])
}

// --- listings ---

type fakeListingRepo struct {
	items map[uuid.UUID]*listing.Listing
}

func (r *fakeListingRepo) FindByID(_ context.Context, id uuid.UUID) (*listing.Listing, error) {
	l, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("Listing", id.String())
	}
	return l, nil
}

// --- profiles ---

type fakeProfileRepo struct {
	mu       sync.Mutex
	hosts    map[uuid.UUID]*profile.Host
	cleaners map[uuid.UUID]*profile.Cleaner
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{
		hosts:    make(map[uuid.UUID]*profile.Host),
		cleaners: make(map[uuid.UUID]*profile.Cleaner),
	}
}

func (r *fakeProfileRepo) FindHostByID(_ context.Context, id uuid.UUID) (*profile.Host, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hosts[id]; ok {
		return h, nil
	}
	return nil, domain.NewNotFoundError("HostProfile", id.String())
}

func (r *fakeProfileRepo) FindHostByUserID(_ context.Context, userID uuid.UUID) (*profile.Host, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.hosts {
		if h.UserID() == userID {
			return h, nil
		}
	}
	return nil, domain.NewNotFoundError("HostProfile", userID.String())
}

func (r *fakeProfileRepo) FindCleanerByID(_ context.Context, id uuid.UUID) (*profile.Cleaner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cleaners[id]; ok {
		return c, nil
	}
	return nil, domain.NewNotFoundError("CleanerProfile", id.String())
}

func (r *fakeProfileRepo) FindCleanerByUserID(_ context.Context, userID uuid.UUID) (*profile.Cleaner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cleaners {
		if c.UserID() == userID {
			return c, nil
		}
	}
	return nil, domain.NewNotFoundError("CleanerProfile", userID.String())
}

func (r *fakeProfileRepo) SaveHost(_ context.Context, h *profile.Host) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hosts[h.ID()] = h
	return nil
}

func (r *fakeProfileRepo) SaveCleaner(_ context.Context, c *profile.Cleaner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleaners[c.ID()] = c
	return nil
}

func (r *fakeProfileRepo) withHost(id uuid.UUID, fn func(h *profile.Host) profile.RatingSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.hosts[id]
	if !ok {
		return domain.NewNotFoundError("HostProfile", id.String())
	}
	summary := fn(h)
	r.hosts[id] = profile.ReconstructHost(h.ID(), h.UserID(), h.DisplayName(), h.Contact(), h.PaymentCustomerRef(),
		summary, h.Version(), h.CreatedAt(), h.UpdatedAt())
	return nil
}

type cleanerPatch struct {
	rating   profile.RatingSummary
	jobs     int
	earnings int64
}

func (r *fakeProfileRepo) withCleaner(id uuid.UUID, fn func(c *profile.Cleaner) cleanerPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cleaners[id]
	if !ok {
		return domain.NewNotFoundError("CleanerProfile", id.String())
	}
	p := fn(c)
	r.cleaners[id] = profile.ReconstructCleaner(c.ID(), c.UserID(), c.DisplayName(), c.Contact(), c.PayoutAccountRef(),
		p.rating, p.jobs, p.earnings, c.ActiveBookings(), c.Version(), c.CreatedAt(), c.UpdatedAt())
	return nil
}

func (r *fakeProfileRepo) SetHostRating(_ context.Context, id uuid.UUID, summary profile.RatingSummary) error {
	return r.withHost(id, func(*profile.Host) profile.RatingSummary { return summary })
}

func (r *fakeProfileRepo) SetCleanerRating(_ context.Context, id uuid.UUID, summary profile.RatingSummary) error {
	return r.withCleaner(id, func(c *profile.Cleaner) cleanerPatch {
		return cleanerPatch{rating: summary, jobs: c.CompletedJobs(), earnings: c.TotalEarnings()}
	})
}

func addRating(s profile.RatingSummary, value int) profile.RatingSummary {
	s.Count++
	s.Total += int64(value)
	s.Average = rating.Round1(float64(s.Total) / float64(s.Count))
	return s
}

func (r *fakeProfileRepo) AddHostRating(_ context.Context, id uuid.UUID, value int) (profile.RatingSummary, error) {
	var out profile.RatingSummary
	err := r.withHost(id, func(h *profile.Host) profile.RatingSummary {
		out = addRating(h.Rating(), value)
		return out
	})
	return out, err
}

func (r *fakeProfileRepo) AddCleanerRating(_ context.Context, id uuid.UUID, value int) (profile.RatingSummary, error) {
	var out profile.RatingSummary
	err := r.withCleaner(id, func(c *profile.Cleaner) cleanerPatch {
		out = addRating(c.Rating(), value)
		return cleanerPatch{rating: out, jobs: c.CompletedJobs(), earnings: c.TotalEarnings()}
	})
	return out, err
}

func (r *fakeProfileRepo) IncrementCompletedJobs(_ context.Context, id uuid.UUID) error {
	return r.withCleaner(id, func(c *profile.Cleaner) cleanerPatch {
		return cleanerPatch{rating: c.Rating(), jobs: c.CompletedJobs() + 1, earnings: c.TotalEarnings()}
	})
}

func (r *fakeProfileRepo) AddEarnings(_ context.Context, id uuid.UUID, amount int64) error {
	return r.withCleaner(id, func(c *profile.Cleaner) cleanerPatch {
		return cleanerPatch{rating: c.Rating(), jobs: c.CompletedJobs(), earnings: c.TotalEarnings() + amount}
	})
}

// --- invoices ---

type fakeInvoiceRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*invoice.Invoice
}

func newFakeInvoiceRepo() *fakeInvoiceRepo {
	return &fakeInvoiceRepo{items: make(map[uuid.UUID]*invoice.Invoice)}
}

func (r *fakeInvoiceRepo) Save(_ context.Context, inv *invoice.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[inv.BookingID()]; !ok {
		r.items[inv.BookingID()] = inv
	}
	return nil
}

func (r *fakeInvoiceRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*invoice.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.items[bookingID]; ok {
		return inv, nil
	}
	return nil, domain.NewNotFoundError("Invoice", bookingID.String())
}

func (r *fakeInvoiceRepo) MarkPaidByBookingID(_ context.Context, bookingID uuid.UUID, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.items[bookingID]
	if !ok {
		return nil
	}
	r.items[bookingID] = invoice.Reconstruct(inv.ID(), inv.Number(), inv.BookingID(), inv.HostID(), inv.CleanerID(),
		inv.Amount(), inv.Currency(), invoice.StatusPaid, inv.IssuedAt(), &paidAt)
	return nil
}

func (r *fakeInvoiceRepo) DeleteByBookingID(_ context.Context, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, bookingID)
	return nil
}

// --- photos ---

type fakePhotoRepo struct {
	mu    sync.Mutex
	items []*photoDomain.BookingPhoto
}

func (r *fakePhotoRepo) Save(_ context.Context, p *photoDomain.BookingPhoto) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, p)
	return nil
}

func (r *fakePhotoRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) ([]*photoDomain.BookingPhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*photoDomain.BookingPhoto
	for _, p := range r.items {
		if p.BookingID() == bookingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePhotoRepo) FindByID(_ context.Context, id uuid.UUID) (*photoDomain.BookingPhoto, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.ID() == id {
			return p, nil
		}
	}
	return nil, domain.NewNotFoundError("BookingPhoto", id.String())
}

func (r *fakePhotoRepo) DeleteByBookingID(_ context.Context, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.items[:0]
	for _, p := range r.items {
		if p.BookingID() != bookingID {
			kept = append(kept, p)
		}
	}
	r.items = kept
	return nil
}

// --- collaborators ---

type fakeLedger struct {
	mu          sync.Mutex
	listings    map[uuid.UUID]string
	commitments map[uuid.UUID]map[uuid.UUID]time.Time
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		listings:    make(map[uuid.UUID]string),
		commitments: make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

func (l *fakeLedger) SetListingStatus(_ context.Context, listingID uuid.UUID, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.listings[listingID] = status
	return nil
}

func (l *fakeLedger) AddCleanerCommitment(_ context.Context, cleanerID, bookingID uuid.UUID, date time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.commitments[cleanerID] == nil {
		l.commitments[cleanerID] = make(map[uuid.UUID]time.Time)
	}
	l.commitments[cleanerID][bookingID] = date
	return nil
}

func (l *fakeLedger) RemoveCleanerCommitment(_ context.Context, cleanerID, bookingID uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.commitments[cleanerID], bookingID)
	return nil
}

func (l *fakeLedger) committed(cleanerID, bookingID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.commitments[cleanerID][bookingID]
	return ok
}

type fakeGateway struct {
	mu           sync.Mutex
	authorizeErr error
	refundErr    error
	transferErr  error
	authorized   []bookingDomain.AuthorizeRequest
	refunds      []bookingDomain.RefundRequest
	transfers    []bookingDomain.TransferRequest
	// byKey makes repeated calls with one idempotency key return the same ID.
	byKey map[string]string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{byKey: make(map[string]string)}
}

func (g *fakeGateway) id(prefix, key string) string {
	if id, ok := g.byKey[key]; ok {
		return id
	}
	id := fmt.Sprintf("%s_%d", prefix, len(g.byKey)+1)
	g.byKey[key] = id
	return id
}

func (g *fakeGateway) Authorize(_ context.Context, req bookingDomain.AuthorizeRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authorized = append(g.authorized, req)
	if g.authorizeErr != nil {
		return "", g.authorizeErr
	}
	return g.id("pi", req.IdempotencyKey), nil
}

func (g *fakeGateway) Refund(_ context.Context, req bookingDomain.RefundRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, req)
	if g.refundErr != nil {
		return "", g.refundErr
	}
	return g.id("re", req.IdempotencyKey), nil
}

func (g *fakeGateway) Transfer(_ context.Context, req bookingDomain.TransferRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transfers = append(g.transfers, req)
	if g.transferErr != nil {
		return "", g.transferErr
	}
	return g.id("tr", req.IdempotencyKey), nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []bookingDomain.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, note bookingDomain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, note)
	return n.err
}

func (n *fakeNotifier) ofType(t bookingDomain.NotificationType) []bookingDomain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []bookingDomain.Notification
	for _, s := range n.sent {
		if s.Type == t {
			out = append(out, s)
		}
	}
	return out
}

// fakeTx rolls the in-memory stores back to their state before fn when fn fails.
type fakeTx struct {
	bookings *fakeBookingRepo
	profiles *fakeProfileRepo
	invoices *fakeInvoiceRepo
	ledger   *fakeLedger
}

type fakeTxSnapshot struct {
	bookings    map[uuid.UUID]*bookingDomain.Booking
	hosts       map[uuid.UUID]*profile.Host
	cleaners    map[uuid.UUID]*profile.Cleaner
	invoices    map[uuid.UUID]*invoice.Invoice
	listings    map[uuid.UUID]string
	commitments map[uuid.UUID]map[uuid.UUID]time.Time
}

func (tx *fakeTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := tx.snapshot()
	if err := fn(ctx); err != nil {
		tx.restore(snap)
		return err
	}
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (tx *fakeTx) snapshot() fakeTxSnapshot {
	var snap fakeTxSnapshot

	tx.bookings.mu.Lock()
	snap.bookings = make(map[uuid.UUID]*bookingDomain.Booking, len(tx.bookings.items))
	for id, bk := range tx.bookings.items {
		snap.bookings[id] = copyBooking(bk)
	}
	tx.bookings.mu.Unlock()

	tx.profiles.mu.Lock()
	snap.hosts = copyMap(tx.profiles.hosts)
	snap.cleaners = copyMap(tx.profiles.cleaners)
	tx.profiles.mu.Unlock()

	tx.invoices.mu.Lock()
	snap.invoices = copyMap(tx.invoices.items)
	tx.invoices.mu.Unlock()

	tx.ledger.mu.Lock()
	snap.listings = copyMap(tx.ledger.listings)
	snap.commitments = make(map[uuid.UUID]map[uuid.UUID]time.Time, len(tx.ledger.commitments))
	for cleanerID, byBooking := range tx.ledger.commitments {
		snap.commitments[cleanerID] = copyMap(byBooking)
	}
	tx.ledger.mu.Unlock()
	return snap
}

func (tx *fakeTx) restore(snap fakeTxSnapshot) {
	tx.bookings.mu.Lock()
	tx.bookings.items = snap.bookings
	tx.bookings.mu.Unlock()

	tx.profiles.mu.Lock()
	tx.profiles.hosts = snap.hosts
	tx.profiles.cleaners = snap.cleaners
	tx.profiles.mu.Unlock()

	tx.invoices.mu.Lock()
	tx.invoices.items = snap.invoices
	tx.invoices.mu.Unlock()

	tx.ledger.mu.Lock()
	tx.ledger.listings = snap.listings
	tx.ledger.commitments = snap.commitments
	tx.ledger.mu.Unlock()
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (l *fakeLocker) Acquire(_ context.Context, key string, _ time.Duration) (lock.ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, lock.ErrNotAcquired
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		return nil
	}, nil
}

// --- clock ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

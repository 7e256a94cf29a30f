package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// Store keeps every table the payment pipeline touches in process memory.
// Transactions are serialized and rolled back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	payments       map[uuid.UUID]*domain.Payment
	paymentOrder   []uuid.UUID
	waitList       map[uuid.UUID]domain.WaitListEntry
	companies      map[uuid.UUID]domain.Company
	depositCharges map[uuid.UUID]domain.CompanyDepositCharge
	failures       []domain.ValidationFailure
	rates          map[string]domain.Rate
	appointments   map[uuid.UUID]domain.Appointment
	clients        map[uuid.UUID]domain.Client
	interpreters   map[uuid.UUID]domain.Interpreter
	discounts      map[uuid.UUID]domain.DiscountRate
	jobs           []ports.OutboxEvent
	enqueueErr     error
}

func NewStore() *Store {
	return &Store{
		payments:       map[uuid.UUID]*domain.Payment{},
		waitList:       map[uuid.UUID]domain.WaitListEntry{},
		companies:      map[uuid.UUID]domain.Company{},
		depositCharges: map[uuid.UUID]domain.CompanyDepositCharge{},
		rates:          map[string]domain.Rate{},
		appointments:   map[uuid.UUID]domain.Appointment{},
		clients:        map[uuid.UUID]domain.Client{},
		interpreters:   map[uuid.UUID]domain.Interpreter{},
		discounts:      map[uuid.UUID]domain.DiscountRate{},
	}
}

// Repositories returns the store's repository set outside any transaction.
func (s *Store) Repositories() ports.TxRepositories {
	return ports.TxRepositories{
		Payments:           (*paymentRepo)(s),
		WaitList:           (*waitListRepo)(s),
		Companies:          (*companyRepo)(s),
		DepositCharges:     (*depositChargeRepo)(s),
		ValidationFailures: (*failureRepo)(s),
	}
}

func (s *Store) Rates() ports.RateRepository { return (*rateRepo)(s) }

func (s *Store) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos ports.TxRepositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(ctx, s.Repositories()); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	payments       map[uuid.UUID]*domain.Payment
	paymentOrder   []uuid.UUID
	waitList       map[uuid.UUID]domain.WaitListEntry
	companies      map[uuid.UUID]domain.Company
	depositCharges map[uuid.UUID]domain.CompanyDepositCharge
	failures       []domain.ValidationFailure
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		payments:       make(map[uuid.UUID]*domain.Payment, len(s.payments)),
		paymentOrder:   append([]uuid.UUID(nil), s.paymentOrder...),
		waitList:       make(map[uuid.UUID]domain.WaitListEntry, len(s.waitList)),
		companies:      make(map[uuid.UUID]domain.Company, len(s.companies)),
		depositCharges: make(map[uuid.UUID]domain.CompanyDepositCharge, len(s.depositCharges)),
		failures:       append([]domain.ValidationFailure(nil), s.failures...),
	}
	for k, v := range s.payments {
		snap.payments[k] = clonePayment(v)
	}
	for k, v := range s.waitList {
		snap.waitList[k] = v
	}
	for k, v := range s.companies {
		snap.companies[k] = v
	}
	for k, v := range s.depositCharges {
		snap.depositCharges[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = snap.payments
	s.paymentOrder = snap.paymentOrder
	s.waitList = snap.waitList
	s.companies = snap.companies
	s.depositCharges = snap.depositCharges
	s.failures = snap.failures
}

func clonePayment(p *domain.Payment) *domain.Payment {
	cp := *p
	cp.Items = append([]domain.PaymentItem(nil), p.Items...)
	if p.CompanyID != nil {
		id := *p.CompanyID
		cp.CompanyID = &id
	}
	return &cp
}

type paymentRepo Store

func (r *paymentRepo) Create(_ context.Context, payment *domain.Payment) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[payment.ID]; ok {
		return fmt.Errorf("%w: payment %s exists", domain.ErrConflict, payment.ID)
	}
	if payment.Direction == domain.DirectionIncoming && payment.Status.IsOpen() {
		for _, other := range s.payments {
			if other.AppointmentID == payment.AppointmentID && other.Direction == payment.Direction &&
				other.Operation == payment.Operation && other.Status.IsOpen() &&
				other.Prices.WindowStart.Equal(payment.Prices.WindowStart) {
				return fmt.Errorf("%w: open payment %s already covers the window", domain.ErrConflict, other.ID)
			}
		}
	}
	s.payments[payment.ID] = clonePayment(payment)
	s.paymentOrder = append(s.paymentOrder, payment.ID)
	return nil
}

func (r *paymentRepo) Save(_ context.Context, payment *domain.Payment) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[payment.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, payment.ID)
	}
	s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (r *paymentRepo) GetByID(_ context.Context, paymentID uuid.UUID) (*domain.Payment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentNotFound, paymentID)
	}
	return clonePayment(p), nil
}

func (r *paymentRepo) ListByAppointment(_ context.Context, appointmentID uuid.UUID, direction domain.PaymentDirection) ([]*domain.Payment, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Payment{}
	for _, id := range s.paymentOrder {
		p := s.payments[id]
		if p.AppointmentID == appointmentID && p.Direction == direction {
			out = append(out, clonePayment(p))
		}
	}
	return out, nil
}

// LockByAppointment relies on transactions being serialized by the store.
func (r *paymentRepo) LockByAppointment(ctx context.Context, appointmentID uuid.UUID, direction domain.PaymentDirection) ([]*domain.Payment, error) {
	return r.ListByAppointment(ctx, appointmentID, direction)
}

type waitListRepo Store

func (r *waitListRepo) Upsert(_ context.Context, entry domain.WaitListEntry) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.waitList[entry.AppointmentID]; ok {
		existing.IsShortTimeSlot = entry.IsShortTimeSlot
		s.waitList[entry.AppointmentID] = existing
		return nil
	}
	s.waitList[entry.AppointmentID] = entry
	return nil
}

func (r *waitListRepo) Get(_ context.Context, appointmentID uuid.UUID) (*domain.WaitListEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.waitList[appointmentID]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (r *waitListRepo) Delete(_ context.Context, appointmentID uuid.UUID) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.waitList[appointmentID]
	delete(s.waitList, appointmentID)
	return ok, nil
}

func (r *waitListRepo) ListOldest(_ context.Context, limit int) ([]domain.WaitListEntry, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WaitListEntry, 0, len(s.waitList))
	for _, e := range s.waitList {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *waitListRepo) RecordAttempt(_ context.Context, appointmentID uuid.UUID, at time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.waitList[appointmentID]
	if !ok {
		return nil
	}
	entry.Attempts++
	entry.LastAttemptAt = &at
	s.waitList[appointmentID] = entry
	return nil
}

type companyRepo Store

func (r *companyRepo) GetForUpdate(_ context.Context, companyID uuid.UUID) (*domain.Company, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[companyID]
	if !ok {
		return nil, fmt.Errorf("%w: company %s", domain.ErrNotFound, companyID)
	}
	return &c, nil
}

func (r *companyRepo) AdjustDepositBalance(_ context.Context, companyID uuid.UUID, delta float64) (float64, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[companyID]
	if !ok {
		return 0, fmt.Errorf("%w: company %s", domain.ErrNotFound, companyID)
	}
	c.DepositBalance = domain.Round2(c.DepositBalance + delta)
	s.companies[companyID] = c
	return c.DepositBalance, nil
}

type depositChargeRepo Store

func (r *depositChargeRepo) GetPending(_ context.Context, companyID uuid.UUID) (*domain.CompanyDepositCharge, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.depositCharges {
		if c.CompanyID == companyID {
			cp := c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *depositChargeRepo) Create(_ context.Context, charge domain.CompanyDepositCharge) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.depositCharges {
		if c.CompanyID == charge.CompanyID {
			return fmt.Errorf("%w: company %s already has a pending deposit charge", domain.ErrConflict, charge.CompanyID)
		}
	}
	s.depositCharges[charge.ID] = charge
	return nil
}

func (r *depositChargeRepo) Delete(_ context.Context, chargeID uuid.UUID) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.depositCharges[chargeID]
	delete(s.depositCharges, chargeID)
	return ok, nil
}

type failureRepo Store

func (r *failureRepo) Record(_ context.Context, failure domain.ValidationFailure) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, failure)
	return nil
}

type rateRepo Store

func rateKey(r domain.Rate) string {
	return r.Tuple().Key() + "|" + string(r.Qualifier) + "|" + string(r.Sequence)
}

func (r *rateRepo) ListByTuple(_ context.Context, tuple domain.RateTuple) ([]domain.Rate, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Rate{}
	for _, rate := range s.rates {
		if rate.Tuple() == tuple {
			out = append(out, rate)
		}
	}
	sort.Slice(out, func(i, j int) bool { return rateKey(out[i]) < rateKey(out[j]) })
	return out, nil
}

func (r *rateRepo) Upsert(_ context.Context, rate domain.Rate) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := rateKey(rate)
	if existing, ok := s.rates[key]; ok {
		rate.ID = existing.ID
	} else if rate.ID == uuid.Nil {
		rate.ID = uuid.New()
	}
	s.rates[key] = rate
	return nil
}

// GetAppointmentDetails joins the seeded appointment with its client,
// interpreter and company.
func (s *Store) GetAppointmentDetails(_ context.Context, appointmentID uuid.UUID) (domain.AppointmentDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appointments[appointmentID]
	if !ok {
		return domain.AppointmentDetails{}, fmt.Errorf("%w: %s", domain.ErrAppointmentNotFound, appointmentID)
	}
	client, ok := s.clients[appt.ClientID]
	if !ok {
		return domain.AppointmentDetails{}, fmt.Errorf("%w: client %s", domain.ErrNotFound, appt.ClientID)
	}
	details := domain.AppointmentDetails{Appointment: appt, Client: client}
	if appt.InterpreterID != nil {
		if interp, ok := s.interpreters[*appt.InterpreterID]; ok {
			details.Interpreter = &interp
		}
	}
	if client.CompanyID != nil {
		if company, ok := s.companies[*client.CompanyID]; ok {
			details.Company = &company
		}
	}
	return details, nil
}

func (s *Store) GetDiscountRate(_ context.Context, clientID uuid.UUID, _ time.Time) (domain.DiscountRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.discounts[clientID], nil
}

// Enqueue records a job; SetEnqueueError makes it fail instead.
func (s *Store) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enqueueErr != nil {
		return s.enqueueErr
	}
	s.jobs = append(s.jobs, event)
	return nil
}

package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/appointment-payments/internal/domain"
	"github.com/viralforge/appointment-payments/internal/ports"
)

// PutAppointment stores an appointment with its associations.
func (s *Store) PutAppointment(details domain.AppointmentDetails) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[details.Appointment.ID] = details.Appointment
	s.clients[details.Client.ID] = details.Client
	if details.Interpreter != nil {
		s.interpreters[details.Interpreter.ID] = *details.Interpreter
	}
	if details.Company != nil {
		s.companies[details.Company.ID] = *details.Company
	}
}

func (s *Store) PutCompany(c domain.Company) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
}

func (s *Store) PutRates(rates ...domain.Rate) {
	for _, r := range rates {
		_ = s.Rates().Upsert(context.Background(), r)
	}
}

func (s *Store) SetDiscount(clientID uuid.UUID, rate domain.DiscountRate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discounts[clientID] = rate
}

func (s *Store) SetEnqueueError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueueErr = err
}

// Jobs returns the enqueued jobs in order.
func (s *Store) Jobs() []ports.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.OutboxEvent(nil), s.jobs...)
}

func (s *Store) ValidationFailures() []domain.ValidationFailure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ValidationFailure(nil), s.failures...)
}

func (s *Store) Company(id uuid.UUID) (domain.Company, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.companies[id]
	return c, ok
}

func (s *Store) PendingDepositCharges() []domain.CompanyDepositCharge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CompanyDepositCharge, 0, len(s.depositCharges))
	for _, c := range s.depositCharges {
		out = append(out, c)
	}
	return out
}

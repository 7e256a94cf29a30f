package domain

import (
	"time"

	"github.com/google/uuid"
)

type CommunicationType string

const (
	CommunicationAudio      CommunicationType = "audio"
	CommunicationVideo      CommunicationType = "video"
	CommunicationFaceToFace CommunicationType = "face-to-face"
)

type SchedulingType string

const (
	SchedulingOnDemand  SchedulingType = "on-demand"
	SchedulingPreBooked SchedulingType = "pre-booked"
)

type InterpretingType string

const (
	InterpretingConsecutive  InterpretingType = "consecutive"
	InterpretingSimultaneous InterpretingType = "simultaneous"
	InterpretingEscort       InterpretingType = "escort"
	InterpretingSignLanguage InterpretingType = "sign-language"
)

// IsFlatRate reports billing types priced with a single rate row.
func (t InterpretingType) IsFlatRate() bool {
	return t == InterpretingEscort || t == InterpretingSimultaneous
}

type InterpreterType string

const (
	InterpreterProfessional InterpreterType = "ind-professional-interpreter"
	InterpreterBasic        InterpreterType = "ind-basic-interpreter"
	InterpreterCorporate    InterpreterType = "corporate-interpreter"
)

type Topic string

const (
	TopicGeneral  Topic = "general"
	TopicLegal    Topic = "legal"
	TopicMedical  Topic = "medical"
	TopicBusiness Topic = "business"
)

// IsSpecial reports topics billed at the special rate column.
func (t Topic) IsSpecial() bool {
	return t == TopicLegal || t == TopicMedical
}

type UserRole string

const (
	RoleIndividualClient      UserRole = "ind-client"
	RoleCorporateClient       UserRole = "corporate-client"
	RoleCorporateAdmin        UserRole = "corporate-superadmin"
	RoleCorporateReceptionist UserRole = "corporate-receptionist"
	RoleIndividualInterpreter UserRole = "ind-interpreter"
	RoleCorporateInterpreter  UserRole = "corporate-interpreter"
)

// IsCorporate reports roles that book on behalf of a company.
func (r UserRole) IsCorporate() bool {
	switch r {
	case RoleCorporateClient, RoleCorporateAdmin, RoleCorporateReceptionist:
		return true
	default:
		return false
	}
}

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentAccepted  AppointmentStatus = "accepted"
	AppointmentLive      AppointmentStatus = "live"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

type CompanyFundingMode string

const (
	FundingDeposit     CompanyFundingMode = "deposit"
	FundingPostPayment CompanyFundingMode = "post-payment"
)

// Appointment is the read model of a booking as seen by the payment pipeline.
// The pipeline never writes scheduling fields back.
type Appointment struct {
	ID                 uuid.UUID
	ClientID           uuid.UUID
	InterpreterID      *uuid.UUID
	ScheduledStartTime time.Time
	DurationMinutes    int
	CommunicationType  CommunicationType
	SchedulingType     SchedulingType
	InterpretingType   InterpretingType
	InterpreterType    InterpreterType
	Topic              Topic
	Status             AppointmentStatus
	CreatedAt          time.Time
}

// ScheduledEndTime is the end of the booked duration.
func (a Appointment) ScheduledEndTime() time.Time {
	return a.ScheduledStartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a Appointment) RateTuple() RateTuple {
	return RateTuple{
		InterpreterType:   a.InterpreterType,
		SchedulingType:    a.SchedulingType,
		CommunicationType: a.CommunicationType,
		InterpretingType:  a.InterpretingType,
	}
}

type Client struct {
	ID               uuid.UUID
	Role             UserRole
	IsGstPayer       bool
	CompanyID        *uuid.UUID
	PaymentMethodRef string
}

type Interpreter struct {
	ID               uuid.UUID
	Role             UserRole
	IsGstPayer       bool
	CompanyID        *uuid.UUID
	PayoutAccountRef string
}

// Company holds the prepaid deposit state of a corporate client.
type Company struct {
	ID                   uuid.UUID
	Name                 string
	FundingMode          CompanyFundingMode
	DepositBalance       float64
	DepositDefaultCharge float64
	IsGstPayer           bool
	PaymentMethodRef     string
}

// AppointmentDetails is an appointment loaded with the associations pricing needs.
type AppointmentDetails struct {
	Appointment Appointment
	Client      Client
	Interpreter *Interpreter
	Company     *Company
}

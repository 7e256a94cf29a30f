package domain

import (
	"fmt"

	"github.com/google/uuid"
)

type RateQualifier string

const (
	QualifierStandardHours RateQualifier = "standard-hours"
	QualifierAfterHours    RateQualifier = "after-hours"
)

type RateSequence string

const (
	SequenceFirstBlock      RateSequence = "first-block"
	SequenceAdditionalBlock RateSequence = "additional-block"
)

// RateTuple identifies the billing type a rate row applies to.
type RateTuple struct {
	InterpreterType   InterpreterType   `json:"interpreter_type"`
	SchedulingType    SchedulingType    `json:"scheduling_type"`
	CommunicationType CommunicationType `json:"communication_type"`
	InterpretingType  InterpretingType  `json:"interpreting_type"`
}

// Key is the stable cache key fragment for the tuple.
func (t RateTuple) Key() string {
	return fmt.Sprintf("%s:%s:%s:%s", t.InterpreterType, t.SchedulingType, t.CommunicationType, t.InterpretingType)
}

func (t RateTuple) Validate() error {
	if t.InterpreterType == "" || t.SchedulingType == "" || t.CommunicationType == "" || t.InterpretingType == "" {
		return fmt.Errorf("%w: incomplete rate tuple %q", ErrInvalidInput, t.Key())
	}
	return nil
}

// Rate is one row of the rate table. Amounts cover DetailsTime minutes.
type Rate struct {
	ID                                 uuid.UUID         `json:"id" yaml:"id"`
	InterpreterType                    InterpreterType   `json:"interpreter_type" yaml:"interpreter_type"`
	SchedulingType                     SchedulingType    `json:"scheduling_type" yaml:"scheduling_type"`
	CommunicationType                  CommunicationType `json:"communication_type" yaml:"communication_type"`
	InterpretingType                   InterpretingType  `json:"interpreting_type" yaml:"interpreting_type"`
	Qualifier                          RateQualifier     `json:"qualifier" yaml:"qualifier"`
	Sequence                           RateSequence      `json:"sequence" yaml:"sequence"`
	DetailsTime                        int               `json:"details_time" yaml:"details_time"`
	PaidByTakerGeneralWithGst          float64           `json:"paid_by_taker_general_with_gst" yaml:"paid_by_taker_general_with_gst"`
	PaidByTakerGeneralWithoutGst       float64           `json:"paid_by_taker_general_without_gst" yaml:"paid_by_taker_general_without_gst"`
	PaidByTakerSpecialWithGst          float64           `json:"paid_by_taker_special_with_gst" yaml:"paid_by_taker_special_with_gst"`
	PaidByTakerSpecialWithoutGst       float64           `json:"paid_by_taker_special_without_gst" yaml:"paid_by_taker_special_without_gst"`
	PaidToInterpreterGeneralWithGst    float64           `json:"paid_to_interpreter_general_with_gst" yaml:"paid_to_interpreter_general_with_gst"`
	PaidToInterpreterGeneralWithoutGst float64           `json:"paid_to_interpreter_general_without_gst" yaml:"paid_to_interpreter_general_without_gst"`
	PaidToInterpreterSpecialWithGst    float64           `json:"paid_to_interpreter_special_with_gst" yaml:"paid_to_interpreter_special_with_gst"`
	PaidToInterpreterSpecialWithoutGst float64           `json:"paid_to_interpreter_special_without_gst" yaml:"paid_to_interpreter_special_without_gst"`
}

func (r Rate) Tuple() RateTuple {
	return RateTuple{
		InterpreterType:   r.InterpreterType,
		SchedulingType:    r.SchedulingType,
		CommunicationType: r.CommunicationType,
		InterpretingType:  r.InterpretingType,
	}
}

// RateAmounts is the GST-inclusive price pair for one rate row.
type RateAmounts struct {
	Taker       float64
	Interpreter float64
}

// Amounts returns the GST-inclusive block amounts for the general or special column.
func (r Rate) Amounts(special bool) RateAmounts {
	if special {
		return RateAmounts{Taker: r.PaidByTakerSpecialWithGst, Interpreter: r.PaidToInterpreterSpecialWithGst}
	}
	return RateAmounts{Taker: r.PaidByTakerGeneralWithGst, Interpreter: r.PaidToInterpreterGeneralWithGst}
}

// PerMinute derives the per-minute amounts from the block amounts.
func (r Rate) PerMinute(special bool) RateAmounts {
	a := r.Amounts(special)
	if r.DetailsTime <= 0 {
		return RateAmounts{}
	}
	return RateAmounts{
		Taker:       a.Taker / float64(r.DetailsTime),
		Interpreter: a.Interpreter / float64(r.DetailsTime),
	}
}

func (r Rate) Validate() error {
	if err := r.Tuple().Validate(); err != nil {
		return err
	}
	switch r.Qualifier {
	case QualifierStandardHours, QualifierAfterHours:
	default:
		return fmt.Errorf("%w: unknown qualifier %q", ErrInvalidInput, r.Qualifier)
	}
	switch r.Sequence {
	case SequenceFirstBlock, SequenceAdditionalBlock:
	default:
		return fmt.Errorf("%w: unknown sequence %q", ErrInvalidInput, r.Sequence)
	}
	if r.DetailsTime <= 0 {
		return fmt.Errorf("%w: details time must be positive", ErrInvalidInput)
	}
	if r.PaidByTakerGeneralWithGst < 0 || r.PaidByTakerSpecialWithGst < 0 ||
		r.PaidToInterpreterGeneralWithGst < 0 || r.PaidToInterpreterSpecialWithGst < 0 {
		return fmt.Errorf("%w: negative rate amount", ErrInvalidInput)
	}
	return nil
}

type rateSlot struct {
	qualifier RateQualifier
	sequence  RateSequence
}

// RateCollection is the validated set of rows for one tuple: either a single
// flat rate or the four standard/after-hours x first/additional rows.
type RateCollection struct {
	Tuple RateTuple `json:"tuple"`
	Rows  []Rate    `json:"rows"`
}

// NewRateCollection checks row completeness for the tuple's billing type.
func NewRateCollection(tuple RateTuple, rows []Rate) (RateCollection, error) {
	if tuple.InterpretingType.IsFlatRate() {
		if len(rows) < 1 {
			return RateCollection{}, fmt.Errorf("%w: no flat rate for %s", ErrRatesNotFound, tuple.Key())
		}
		return RateCollection{Tuple: tuple, Rows: rows[:1]}, nil
	}
	if len(rows) != 4 {
		return RateCollection{}, fmt.Errorf("%w: expected 4 rows for %s, got %d", ErrRatesNotFound, tuple.Key(), len(rows))
	}
	seen := make(map[rateSlot]bool, 4)
	for _, row := range rows {
		seen[rateSlot{row.Qualifier, row.Sequence}] = true
	}
	for _, q := range []RateQualifier{QualifierStandardHours, QualifierAfterHours} {
		for _, s := range []RateSequence{SequenceFirstBlock, SequenceAdditionalBlock} {
			if !seen[rateSlot{q, s}] {
				return RateCollection{}, fmt.Errorf("%w: missing %s/%s row for %s", ErrRatesNotFound, q, s, tuple.Key())
			}
		}
	}
	return RateCollection{Tuple: tuple, Rows: rows}, nil
}

func (c RateCollection) IsFlat() bool {
	return c.Tuple.InterpretingType.IsFlatRate()
}

// Flat returns the single flat rate row.
func (c RateCollection) Flat() (Rate, bool) {
	if !c.IsFlat() || len(c.Rows) == 0 {
		return Rate{}, false
	}
	return c.Rows[0], true
}

// Find returns the row for a qualifier and sequence.
func (c RateCollection) Find(q RateQualifier, s RateSequence) (Rate, bool) {
	for _, row := range c.Rows {
		if row.Qualifier == q && row.Sequence == s {
			return row, true
		}
	}
	return Rate{}, false
}

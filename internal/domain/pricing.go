package domain

import (
	"fmt"
	"time"
)

// BusinessHours decides which rate qualifier applies at a point in time.
// Standard hours are [StartHour, EndHour) on weekdays in Location.
type BusinessHours struct {
	Location           *time.Location
	StartHour          int
	EndHour            int
	WeekendsAfterHours bool
}

// DefaultBusinessHours is 09:00-18:00 on weekdays, UTC.
func DefaultBusinessHours() BusinessHours {
	return BusinessHours{Location: time.UTC, StartHour: 9, EndHour: 18, WeekendsAfterHours: true}
}

func (h BusinessHours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

// QualifierAt returns standard-hours or after-hours for the instant t.
func (h BusinessHours) QualifierAt(t time.Time) RateQualifier {
	local := t.In(h.location())
	if h.WeekendsAfterHours && (local.Weekday() == time.Saturday || local.Weekday() == time.Sunday) {
		return QualifierAfterHours
	}
	if local.Hour() >= h.StartHour && local.Hour() < h.EndHour {
		return QualifierStandardHours
	}
	return QualifierAfterHours
}

// NextBoundary returns the first instant after t at which the qualifier may change.
func (h BusinessHours) NextBoundary(t time.Time) time.Time {
	local := t.In(h.location())
	y, m, d := local.Date()
	candidates := []time.Time{
		time.Date(y, m, d, h.StartHour, 0, 0, 0, h.location()),
		time.Date(y, m, d, h.EndHour, 0, 0, 0, h.location()),
		time.Date(y, m, d+1, 0, 0, 0, 0, h.location()),
	}
	next := candidates[2]
	for _, c := range candidates[:2] {
		if c.After(local) && c.Before(next) {
			next = c
		}
	}
	return next
}

// PriceBlock is one billed slice of an appointment.
// Client and interpreter amounts are already adjusted for each party's GST status.
type PriceBlock struct {
	Sequence             RateSequence  `json:"sequence"`
	Qualifier            RateQualifier `json:"qualifier"`
	StartTime            time.Time     `json:"start_time"`
	Minutes              int           `json:"minutes"`
	ClientAmount         float64       `json:"client_amount"`
	ClientGstAmount      float64       `json:"client_gst_amount"`
	InterpreterAmount    float64       `json:"interpreter_amount"`
	InterpreterGstAmount float64       `json:"interpreter_gst_amount"`
}

// BaseCalculationResult is the undiscounted price of an appointment.
type BaseCalculationResult struct {
	Blocks                []PriceBlock `json:"blocks"`
	DurationMinutes       int          `json:"duration_minutes"`
	IsSpecialPricing      bool         `json:"is_special_pricing"`
	IsClientGstPayer      bool         `json:"is_client_gst_payer"`
	IsInterpreterGstPayer bool         `json:"is_interpreter_gst_payer"`
	ClientTotal           float64      `json:"client_total"`
	ClientGstTotal        float64      `json:"client_gst_total"`
	InterpreterTotal      float64      `json:"interpreter_total"`
	InterpreterGstTotal   float64      `json:"interpreter_gst_total"`
}

type PriceInput struct {
	Rates                 RateCollection
	StartTime             time.Time
	DurationMinutes       int
	Topic                 Topic
	InterpreterType       InterpreterType
	IsClientGstPayer      bool
	IsInterpreterGstPayer bool
	Hours                 BusinessHours
}

// UsesSpecialPricing reports whether the special rate column applies.
// Only professional individual interpreters charge special rates.
func UsesSpecialPricing(topic Topic, interpreterType InterpreterType) bool {
	return topic.IsSpecial() && interpreterType == InterpreterProfessional
}

// ComputeBasePrice splits an appointment into billed blocks and totals them.
func ComputeBasePrice(in PriceInput) (BaseCalculationResult, error) {
	if in.DurationMinutes <= 0 {
		return BaseCalculationResult{}, fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	special := UsesSpecialPricing(in.Topic, in.InterpreterType)
	res := BaseCalculationResult{
		DurationMinutes:       in.DurationMinutes,
		IsSpecialPricing:      special,
		IsClientGstPayer:      in.IsClientGstPayer,
		IsInterpreterGstPayer: in.IsInterpreterGstPayer,
	}

	if in.Rates.IsFlat() {
		rate, ok := in.Rates.Flat()
		if !ok {
			return BaseCalculationResult{}, fmt.Errorf("%w: flat rate missing for %s", ErrRatesNotFound, in.Rates.Tuple.Key())
		}
		per := rate.PerMinute(special)
		res.Blocks = append(res.Blocks, newBlock(in, SequenceFirstBlock, rate.Qualifier, in.StartTime, in.DurationMinutes,
			per.Taker*float64(in.DurationMinutes), per.Interpreter*float64(in.DurationMinutes)))
		res.totalize()
		return res, nil
	}

	hours := in.Hours
	q0 := hours.QualifierAt(in.StartTime)
	first, ok := in.Rates.Find(q0, SequenceFirstBlock)
	if !ok {
		return BaseCalculationResult{}, fmt.Errorf("%w: %s first block missing", ErrRatesNotFound, q0)
	}
	firstMinutes := first.DetailsTime
	if firstMinutes > in.DurationMinutes {
		firstMinutes = in.DurationMinutes
	}
	// The first block is a minimum charge even when the appointment is shorter.
	firstAmounts := first.Amounts(special)
	res.Blocks = append(res.Blocks, newBlock(in, SequenceFirstBlock, q0, in.StartTime, firstMinutes, firstAmounts.Taker, firstAmounts.Interpreter))

	cursor := in.StartTime.Add(time.Duration(firstMinutes) * time.Minute)
	remaining := in.DurationMinutes - firstMinutes
	type segment struct {
		qualifier RateQualifier
		start     time.Time
		minutes   int
	}
	var segments []segment
	for remaining > 0 {
		q := hours.QualifierAt(cursor)
		untilBoundary := int(hours.NextBoundary(cursor).Sub(cursor) / time.Minute)
		if untilBoundary < 1 {
			untilBoundary = 1
		}
		seg := remaining
		if untilBoundary < seg {
			seg = untilBoundary
		}
		if n := len(segments); n > 0 && segments[n-1].qualifier == q {
			segments[n-1].minutes += seg
		} else {
			segments = append(segments, segment{qualifier: q, start: cursor, minutes: seg})
		}
		cursor = cursor.Add(time.Duration(seg) * time.Minute)
		remaining -= seg
	}
	for _, seg := range segments {
		rate, ok := in.Rates.Find(seg.qualifier, SequenceAdditionalBlock)
		if !ok {
			return BaseCalculationResult{}, fmt.Errorf("%w: %s additional block missing", ErrRatesNotFound, seg.qualifier)
		}
		per := rate.PerMinute(special)
		res.Blocks = append(res.Blocks, newBlock(in, SequenceAdditionalBlock, seg.qualifier, seg.start, seg.minutes,
			per.Taker*float64(seg.minutes), per.Interpreter*float64(seg.minutes)))
	}
	res.totalize()
	return res, nil
}

func newBlock(in PriceInput, seq RateSequence, q RateQualifier, start time.Time, minutes int, takerGross, interpreterGross float64) PriceBlock {
	clientAmount, clientGst := partyAmounts(takerGross, in.IsClientGstPayer)
	interpreterAmount, interpreterGst := partyAmounts(interpreterGross, in.IsInterpreterGstPayer)
	return PriceBlock{
		Sequence:             seq,
		Qualifier:            q,
		StartTime:            start,
		Minutes:              minutes,
		ClientAmount:         clientAmount,
		ClientGstAmount:      clientGst,
		InterpreterAmount:    interpreterAmount,
		InterpreterGstAmount: interpreterGst,
	}
}

// partyAmounts returns the payable amount and GST part of a GST-inclusive price.
// Parties not registered for GST pay the pre-tax amount.
func partyAmounts(gross float64, gstPayer bool) (float64, float64) {
	pretax, gst := SplitGST(gross)
	if gstPayer {
		return Round2(gross), gst
	}
	return pretax, 0
}

func (r *BaseCalculationResult) totalize() {
	var client, interpreter float64
	for _, b := range r.Blocks {
		client += b.ClientAmount
		interpreter += b.InterpreterAmount
	}
	r.ClientTotal = Round2(client)
	r.InterpreterTotal = Round2(interpreter)
	r.ClientGstTotal = 0
	r.InterpreterGstTotal = 0
	if r.IsClientGstPayer {
		_, r.ClientGstTotal = SplitGST(r.ClientTotal)
	}
	if r.IsInterpreterGstPayer {
		_, r.InterpreterGstTotal = SplitGST(r.InterpreterTotal)
	}
}

package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

var videoTuple = RateTuple{
	InterpreterType:   InterpreterProfessional,
	SchedulingType:    SchedulingPreBooked,
	CommunicationType: CommunicationVideo,
	InterpretingType:  InterpretingConsecutive,
}

func testRate(q RateQualifier, s RateSequence, minutes int, taker, interpreter float64) Rate {
	return Rate{
		ID:                              uuid.New(),
		InterpreterType:                 videoTuple.InterpreterType,
		SchedulingType:                  videoTuple.SchedulingType,
		CommunicationType:               videoTuple.CommunicationType,
		InterpretingType:                videoTuple.InterpretingType,
		Qualifier:                       q,
		Sequence:                        s,
		DetailsTime:                     minutes,
		PaidByTakerGeneralWithGst:       taker,
		PaidByTakerSpecialWithGst:       taker * 4 / 3,
		PaidToInterpreterGeneralWithGst: interpreter,
		PaidToInterpreterSpecialWithGst: interpreter * 4 / 3,
	}
}

// "$60 first 30 min, $1/min additional" in standard hours, 1.5x after hours.
func testRates(t *testing.T) RateCollection {
	t.Helper()
	rates, err := NewRateCollection(videoTuple, []Rate{
		testRate(QualifierStandardHours, SequenceFirstBlock, 30, 60, 48),
		testRate(QualifierStandardHours, SequenceAdditionalBlock, 30, 30, 24),
		testRate(QualifierAfterHours, SequenceFirstBlock, 30, 90, 72),
		testRate(QualifierAfterHours, SequenceAdditionalBlock, 30, 45, 36),
	})
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	return rates
}

// Monday.
var monday10 = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func priceInput(t *testing.T, start time.Time, minutes int) PriceInput {
	return PriceInput{
		Rates:                 testRates(t),
		StartTime:             start,
		DurationMinutes:       minutes,
		Topic:                 TopicGeneral,
		InterpreterType:       InterpreterProfessional,
		IsClientGstPayer:      true,
		IsInterpreterGstPayer: true,
		Hours:                 DefaultBusinessHours(),
	}
}

func approx(a, b float64) bool { return math.Abs(a-b) < 0.005 }

func TestComputeBasePriceSixtyMinuteStandardHours(t *testing.T) {
	t.Parallel()

	res, err := ComputeBasePrice(priceInput(t, monday10, 60))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(res.Blocks) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(res.Blocks))
	}
	if res.Blocks[0].Minutes != 30 || !approx(res.Blocks[0].ClientAmount, 60) {
		t.Fatalf("unexpected first block %+v", res.Blocks[0])
	}
	if res.Blocks[1].Minutes != 30 || !approx(res.Blocks[1].ClientAmount, 30) {
		t.Fatalf("unexpected additional block %+v", res.Blocks[1])
	}
	if !approx(res.ClientTotal, 90) {
		t.Fatalf("expected total 90, got %.2f", res.ClientTotal)
	}
	pretax, gst := SplitGST(res.ClientTotal)
	if !approx(pretax, 81.82) || !approx(gst, 8.18) || !approx(res.ClientGstTotal, 8.18) {
		t.Fatalf("unexpected gst split pretax=%.2f gst=%.2f total gst=%.2f", pretax, gst, res.ClientGstTotal)
	}
	if !approx(res.InterpreterTotal, 72) {
		t.Fatalf("expected interpreter total 72, got %.2f", res.InterpreterTotal)
	}
}

func TestComputeBasePriceSplitsAtHoursBoundary(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 2, 17, 0, 0, 0, time.UTC)
	res, err := ComputeBasePrice(priceInput(t, start, 90))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(res.Blocks) != 3 {
		t.Fatalf("expected 3 blocks, got %d", len(res.Blocks))
	}
	want := []struct {
		q       RateQualifier
		minutes int
		amount  float64
	}{
		{QualifierStandardHours, 30, 60},
		{QualifierStandardHours, 30, 30},
		{QualifierAfterHours, 30, 45},
	}
	for i, w := range want {
		b := res.Blocks[i]
		if b.Qualifier != w.q || b.Minutes != w.minutes || !approx(b.ClientAmount, w.amount) {
			t.Fatalf("block %d: got %+v want %+v", i, b, w)
		}
	}
	if !approx(res.ClientTotal, 135) {
		t.Fatalf("expected 135, got %.2f", res.ClientTotal)
	}
}

func TestComputeBasePriceFirstBlockKeepsStartQualifier(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 2, 17, 45, 0, 0, time.UTC)
	res, err := ComputeBasePrice(priceInput(t, start, 60))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.Blocks[0].Qualifier != QualifierStandardHours || !approx(res.Blocks[0].ClientAmount, 60) {
		t.Fatalf("first block should be billed at the start qualifier, got %+v", res.Blocks[0])
	}
	if res.Blocks[1].Qualifier != QualifierAfterHours || !approx(res.Blocks[1].ClientAmount, 45) {
		t.Fatalf("unexpected additional block %+v", res.Blocks[1])
	}
}

func TestComputeBasePriceWeekendIsAfterHours(t *testing.T) {
	t.Parallel()

	saturday := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	res, err := ComputeBasePrice(priceInput(t, saturday, 30))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(res.Blocks) != 1 || res.Blocks[0].Qualifier != QualifierAfterHours || !approx(res.ClientTotal, 90) {
		t.Fatalf("unexpected weekend price %+v", res)
	}
}

func TestComputeBasePriceShortAppointmentPaysMinimumCharge(t *testing.T) {
	t.Parallel()

	res, err := ComputeBasePrice(priceInput(t, monday10, 10))
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(res.Blocks) != 1 || res.Blocks[0].Minutes != 10 || !approx(res.ClientTotal, 60) {
		t.Fatalf("expected full first block charge, got %+v", res)
	}
}

func TestComputeBasePriceNonGstClientPaysPretax(t *testing.T) {
	t.Parallel()

	in := priceInput(t, monday10, 60)
	in.IsClientGstPayer = false
	res, err := ComputeBasePrice(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !approx(res.ClientTotal, 81.82) || res.ClientGstTotal != 0 {
		t.Fatalf("expected pretax total 81.82 without gst, got %.2f / %.2f", res.ClientTotal, res.ClientGstTotal)
	}
}

func TestComputeBasePriceSpecialColumnOnlyForProfessionals(t *testing.T) {
	t.Parallel()

	in := priceInput(t, monday10, 60)
	in.Topic = TopicMedical
	res, err := ComputeBasePrice(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if !res.IsSpecialPricing || !approx(res.ClientTotal, 120) {
		t.Fatalf("expected special total 120, got %+v", res.ClientTotal)
	}

	in.InterpreterType = InterpreterBasic
	res, err = ComputeBasePrice(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if res.IsSpecialPricing || !approx(res.ClientTotal, 90) {
		t.Fatalf("basic interpreters bill the general column, got %.2f", res.ClientTotal)
	}
}

func TestComputeBasePriceFlatRate(t *testing.T) {
	t.Parallel()

	tuple := videoTuple
	tuple.InterpretingType = InterpretingEscort
	flat := testRate(QualifierStandardHours, SequenceFirstBlock, 60, 132, 105.6)
	flat.InterpretingType = InterpretingEscort
	rates, err := NewRateCollection(tuple, []Rate{flat})
	if err != nil {
		t.Fatalf("rates: %v", err)
	}
	in := priceInput(t, monday10, 90)
	in.Rates = rates
	res, err := ComputeBasePrice(in)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if len(res.Blocks) != 1 || !approx(res.ClientTotal, 198) {
		t.Fatalf("expected one flat block of 198, got %+v", res)
	}
}

func TestComputeBasePriceRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := ComputeBasePrice(priceInput(t, monday10, 0)); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := NewRateCollection(videoTuple, testRates(t).Rows[:3]); !errors.Is(err, ErrRatesNotFound) {
		t.Fatalf("expected ErrRatesNotFound for incomplete rows, got %v", err)
	}
}

func TestSplitGST(t *testing.T) {
	t.Parallel()

	cases := []struct {
		amount, pretax, gst float64
	}{
		{110, 100, 10},
		{90, 81.82, 8.18},
		{60, 54.55, 5.45},
		{0, 0, 0},
	}
	for _, tc := range cases {
		pretax, gst := SplitGST(tc.amount)
		if !approx(pretax, tc.pretax) || !approx(gst, tc.gst) {
			t.Fatalf("SplitGST(%.2f) = %.2f, %.2f; want %.2f, %.2f", tc.amount, pretax, gst, tc.pretax, tc.gst)
		}
		if !approx(pretax+gst, tc.amount) {
			t.Fatalf("SplitGST(%.2f) parts do not sum back", tc.amount)
		}
	}
}

func TestToMinorUnits(t *testing.T) {
	t.Parallel()

	if got := ToMinorUnits(81.82); got != 8182 {
		t.Fatalf("expected 8182, got %d", got)
	}
	if got := ToMinorUnits(0.1 + 0.2); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
}

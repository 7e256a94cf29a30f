package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/viralforge/appointment-payments/internal/adapters/gateway"
	"github.com/viralforge/appointment-payments/internal/adapters/memory"
	"github.com/viralforge/appointment-payments/internal/application"
	"github.com/viralforge/appointment-payments/internal/domain"
	"gopkg.in/yaml.v3"
)

type rateFile struct {
	Rates []domain.Rate `yaml:"rates"`
}

func loadRateFile(path string) ([]domain.Rate, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f rateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse rate file: %w", err)
	}
	for i := range f.Rates {
		if f.Rates[i].ID == uuid.Nil {
			f.Rates[i].ID = uuid.New()
		}
		if err := f.Rates[i].Validate(); err != nil {
			return nil, fmt.Errorf("rate %d: %w", i, err)
		}
	}
	return f.Rates, nil
}

type quoteOptions struct {
	ratesPath       string
	start           string
	created         string
	cutover         string
	duration        int
	extension       int
	topic           string
	interpreterType string
	schedulingType  string
	communication   string
	interpreting    string
	timezone        string
	clientGst       bool
	interpreterGst  bool
	membershipPct   float64
	membershipFree  int
	promoPct        float64
	promoMinutes    int
	legacyGstBefore bool
}

func quoteCmd() *cobra.Command {
	opts := quoteOptions{}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price an appointment offline from a YAML rate file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			prices, err := runQuote(cmd, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(prices)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.ratesPath, "rates", "configs/rates.yaml", "YAML rate file")
	f.StringVar(&opts.start, "start", "", "scheduled start, RFC3339 (required)")
	f.StringVar(&opts.created, "created", "", "appointment creation time, RFC3339; defaults to now")
	f.StringVar(&opts.cutover, "cutover", "2024-07-01", "pricing engine cut-over date")
	f.IntVar(&opts.duration, "duration", 60, "duration in minutes")
	f.IntVar(&opts.extension, "extension", 0, "price an extension of this many minutes instead")
	f.StringVar(&opts.topic, "topic", string(domain.TopicGeneral), "appointment topic")
	f.StringVar(&opts.interpreterType, "interpreter-type", string(domain.InterpreterProfessional), "interpreter type")
	f.StringVar(&opts.schedulingType, "scheduling", string(domain.SchedulingPreBooked), "scheduling type")
	f.StringVar(&opts.communication, "communication", string(domain.CommunicationVideo), "communication type")
	f.StringVar(&opts.interpreting, "interpreting", string(domain.InterpretingConsecutive), "interpreting type")
	f.StringVar(&opts.timezone, "timezone", "Australia/Sydney", "business hours timezone")
	f.BoolVar(&opts.clientGst, "client-gst", true, "client pays GST")
	f.BoolVar(&opts.interpreterGst, "interpreter-gst", true, "interpreter is GST registered")
	f.Float64Var(&opts.membershipPct, "membership-percent", 0, "membership discount percent")
	f.IntVar(&opts.membershipFree, "membership-free-minutes", 0, "membership free minutes")
	f.Float64Var(&opts.promoPct, "promo-percent", 0, "promo discount percent")
	f.IntVar(&opts.promoMinutes, "promo-minutes", 0, "minutes the promo applies to")
	f.BoolVar(&opts.legacyGstBefore, "legacy-gst-before", true, "legacy engine scales GST before discounts")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func runQuote(cmd *cobra.Command, opts quoteOptions) (domain.PaymentPrices, error) {
	rates, err := loadRateFile(opts.ratesPath)
	if err != nil {
		return domain.PaymentPrices{}, err
	}
	start, err := time.Parse(time.RFC3339, opts.start)
	if err != nil {
		return domain.PaymentPrices{}, fmt.Errorf("parse --start: %w", err)
	}
	created := time.Now().UTC()
	if opts.created != "" {
		if created, err = time.Parse(time.RFC3339, opts.created); err != nil {
			return domain.PaymentPrices{}, fmt.Errorf("parse --created: %w", err)
		}
	}
	cutover, err := time.Parse("2006-01-02", opts.cutover)
	if err != nil {
		return domain.PaymentPrices{}, fmt.Errorf("parse --cutover: %w", err)
	}
	location, err := time.LoadLocation(opts.timezone)
	if err != nil {
		return domain.PaymentPrices{}, err
	}

	store := memory.NewStore()
	store.PutRates(rates...)
	clientID := uuid.New()
	appt := domain.Appointment{
		ID:                 uuid.New(),
		ClientID:           clientID,
		ScheduledStartTime: start,
		DurationMinutes:    opts.duration,
		CommunicationType:  domain.CommunicationType(opts.communication),
		SchedulingType:     domain.SchedulingType(opts.schedulingType),
		InterpretingType:   domain.InterpretingType(opts.interpreting),
		InterpreterType:    domain.InterpreterType(opts.interpreterType),
		Topic:              domain.Topic(opts.topic),
		Status:             domain.AppointmentAccepted,
		CreatedAt:          created,
	}
	interpreter := &domain.Interpreter{ID: uuid.New(), Role: domain.RoleIndividualInterpreter, IsGstPayer: opts.interpreterGst}
	appt.InterpreterID = &interpreter.ID
	store.PutAppointment(domain.AppointmentDetails{
		Appointment: appt,
		Client:      domain.Client{ID: clientID, Role: domain.RoleIndividualClient, IsGstPayer: opts.clientGst},
		Interpreter: interpreter,
	})
	store.SetDiscount(clientID, domain.DiscountRate{
		MembershipFreeMinutes:     opts.membershipFree,
		MembershipDiscountPercent: opts.membershipPct,
		PromoDiscountPercent:      opts.promoPct,
		PromoDiscountMinutes:      opts.promoMinutes,
	})

	repos := store.Repositories()
	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			PricingCutover:            cutover,
			LegacyGstCalculatedBefore: opts.legacyGstBefore,
			BusinessHours: domain.BusinessHours{
				Location:           location,
				StartHour:          9,
				EndHour:            18,
				WeekendsAfterHours: true,
			},
		},
		Tx:           store,
		Payments:     repos.Payments,
		WaitList:     repos.WaitList,
		Rates:        store.Rates(),
		RateCache:    memory.NewRateCache(nil),
		Appointments: store,
		Discounts:    store,
		Gateway:      gateway.NewSandbox(),
		Jobs:         store,
	})
	return svc.QuoteAppointment(cmd.Context(), appt.ID, opts.extension)
}

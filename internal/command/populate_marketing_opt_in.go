package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"optin-backfill/internal/logging"
	"optin-backfill/internal/metrics"
	"optin-backfill/internal/model"
	"optin-backfill/internal/notify"
	"optin-backfill/internal/service"
)

const (
	PopulateMarketingOptInName = "populate_marketing_opt_in_user_attribute"

	// DefaultBatchDelaySeconds mirrors service.DefaultBatchDelay for the CLI flag.
	DefaultBatchDelaySeconds = 1.0
)

// PopulateMarketingOptIn back-populates the marketing_emails_opt_in attribute
// for existing users.
//
// Example usage:
//
//	manage populate_marketing_opt_in_user_attribute --batch-size 1000 --batch-delay 0.5
type PopulateMarketingOptIn struct {
	users    service.UserDirectory
	attrs    service.AttributeStore
	out      io.Writer
	log      *zerolog.Logger
	metrics  *metrics.Backfill
	notifier notify.Notifier
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPopulateMarketingOptIn wires the command; nil log, metrics and notifier get defaults.
func NewPopulateMarketingOptIn(users service.UserDirectory, attrs service.AttributeStore, out io.Writer, log *zerolog.Logger, m *metrics.Backfill, n notify.Notifier) *PopulateMarketingOptIn {
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	if m == nil {
		m = metrics.NewBackfill()
	}
	if n == nil {
		n = notify.NewLog(log)
	}
	return &PopulateMarketingOptIn{users: users, attrs: attrs, out: out, log: log, metrics: m, notifier: n}
}

func (c *PopulateMarketingOptIn) Name() string { return PopulateMarketingOptInName }

func (c *PopulateMarketingOptIn) Help() string {
	return "Creates a marketing_emails_opt_in row in the user attribute table for every user that does not have one."
}

// attributeCounter is implemented by stores that can total rows per attribute name.
type attributeCounter interface {
	CountByName(ctx context.Context, name string) (int64, error)
}

type populateOptions struct {
	batch       service.BackfillOptions
	every       time.Duration
	cron        string
	daily       string
	metricsFile string
}

func (o populateOptions) String() string {
	return fmt.Sprintf("{batch_delay: %g, batch_size: %d, every: %s, cron: %q, daily: %q, metrics_file: %q}",
		o.batch.BatchDelay.Seconds(), o.batch.BatchSize, o.every, o.cron, o.daily, o.metricsFile)
}

func (o populateOptions) scheduled() bool {
	return o.every != 0 || o.cron != "" || o.daily != ""
}

func (c *PopulateMarketingOptIn) parse(args []string) (populateOptions, error) {
	var opts populateOptions
	fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	fs.SetOutput(c.out)
	delay := fs.Float64("batch-delay", DefaultBatchDelaySeconds, "Time delay in each iteration (seconds)")
	fs.IntVar(&opts.batch.BatchSize, "batch-size", service.DefaultBatchSize, "Batch size")
	fs.DurationVar(&opts.every, "every", 0, "Repeat the backfill on this interval until interrupted")
	fs.StringVar(&opts.cron, "cron", "", "Repeat the backfill on this cron schedule (seconds field first)")
	fs.StringVar(&opts.daily, "daily", "", "Repeat the backfill every day at this HH:MM local time")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after each run")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, err
		}
		return opts, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("%w: unexpected arguments %v", ErrInvalidOption, fs.Args())
	}
	if math.IsNaN(*delay) || math.IsInf(*delay, 0) {
		return opts, fmt.Errorf("%w: batch-delay must be a finite number", ErrInvalidOption)
	}
	opts.batch.BatchDelay = time.Duration(*delay * float64(time.Second))
	if err := opts.batch.Validate(); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	schedules := 0
	if opts.every != 0 {
		schedules++
		if err := service.ValidateInterval(opts.every); err != nil {
			return opts, fmt.Errorf("%w: every: %v", ErrInvalidOption, err)
		}
	}
	if opts.cron != "" {
		schedules++
	}
	if opts.daily != "" {
		schedules++
		if err := service.ValidateDaily(opts.daily); err != nil {
			return opts, fmt.Errorf("%w: daily: %v", ErrInvalidOption, err)
		}
	}
	if schedules > 1 {
		return opts, fmt.Errorf("%w: --every, --cron and --daily are mutually exclusive", ErrInvalidOption)
	}
	return opts, nil
}

func (c *PopulateMarketingOptIn) Run(ctx context.Context, args []string) error {
	opts, err := c.parse(args)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.out, "Command execution started with options: %s.\n", opts)

	if !opts.scheduled() {
		return c.runOnce(ctx, opts)
	}
	return c.runScheduled(ctx, opts)
}

func (c *PopulateMarketingOptIn) runOnce(ctx context.Context, opts populateOptions) error {
	runID := uuid.NewString()
	log := logging.WithRunID(c.log, runID)

	svc := service.NewBackfillService(c.users, c.attrs, c.out, log).WithObserver(c.metrics)
	if c.sleep != nil {
		svc.WithSleep(c.sleep)
	}

	started := time.Now()
	res, err := svc.Run(ctx, opts.batch)
	finished := time.Now()
	c.metrics.ObserveRun(err, finished)

	optedIn := int64(-1)
	if counter, ok := c.attrs.(attributeCounter); ok {
		n, cerr := counter.CountByName(context.WithoutCancel(ctx), model.MarketingEmailsOptIn)
		if cerr != nil {
			log.Warn().Err(cerr).Msg("count opt-in attributes")
		} else {
			optedIn = n
			c.metrics.SetAttributeRows(n)
		}
	}

	if opts.metricsFile != "" {
		if werr := c.metrics.WriteTextfile(opts.metricsFile); werr != nil {
			log.Error().Err(werr).Str("path", opts.metricsFile).Msg("metrics textfile")
		}
	}

	report := runReport(runID, res, optedIn, err, finished.Sub(started))
	if nerr := c.notifier.Notify(context.WithoutCancel(ctx), report); nerr != nil {
		log.Warn().Err(nerr).Msg("notify")
	}

	if err != nil {
		log.Error().Err(err).Int("created", res.Created).Int("batches", res.Batches).Msg("backfill failed")
		return err
	}
	return nil
}

func (c *PopulateMarketingOptIn) runScheduled(ctx context.Context, opts populateOptions) error {
	scheduler := service.NewSchedulerService(time.Local, c.log)
	job := func() {
		if err := c.runOnce(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Error().Err(err).Msg("scheduled backfill")
		}
	}

	var (
		id  cron.EntryID
		err error
	)
	switch {
	case opts.every > 0:
		id, err = scheduler.ScheduleInterval(opts.every, job)
	case opts.daily != "":
		id, err = scheduler.ScheduleDaily(opts.daily, job)
	default:
		id, err = scheduler.ScheduleCron(opts.cron, job)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}

	scheduler.Start()
	c.log.Info().
		Dur("every", opts.every).
		Str("cron", opts.cron).
		Str("daily", opts.daily).
		Time("next_run", scheduler.Next(id)).
		Msg("backfill scheduled")
	<-ctx.Done()
	scheduler.Stop()
	c.log.Info().Msg("scheduler stopped")
	return nil
}

// runReport renders the operator summary; optedIn < 0 means the row count is unknown.
func runReport(runID string, res service.BackfillResult, optedIn int64, err error, took time.Duration) string {
	status := "succeeded"
	if err != nil {
		status = "failed: " + err.Error()
	}
	report := fmt.Sprintf("%s %s\nrun %s, %s\nusers: %d, scanned: %d, created: %d, skipped: %d, batches: %d",
		PopulateMarketingOptInName, status, runID, took.Round(time.Millisecond),
		res.Total, res.Scanned, res.Created, res.Skipped, res.Batches)
	if optedIn >= 0 {
		report += fmt.Sprintf("\n%s rows: %d", model.MarketingEmailsOptIn, optedIn)
	}
	return report
}

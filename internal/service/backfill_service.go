package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"optin-backfill/internal/model"
)

const (
	DefaultBatchSize  = 5000
	DefaultBatchDelay = time.Second
)

var (
	ErrInvalidBatchSize  = errors.New("batch size must be a positive integer")
	ErrInvalidBatchDelay = errors.New("batch delay must not be negative")
)

// UserDirectory pages through user accounts.
type UserDirectory interface {
	Count(ctx context.Context) (int64, error)
	ListPage(ctx context.Context, offset, limit int) ([]model.User, error)
}

// AttributeStore reads and writes per-user attributes. Get returns "" when
// the attribute is not set.
type AttributeStore interface {
	Get(ctx context.Context, userID uint, name string) (string, error)
	Set(ctx context.Context, userID uint, name, value string) error
}

// BatchObserver receives per-page counts; implemented by metrics.Backfill.
type BatchObserver interface {
	ObserveBatch(scanned, created int)
}

// BackfillOptions controls paging: BatchSize users per page, BatchDelay between pages.
type BackfillOptions struct {
	BatchSize  int
	BatchDelay time.Duration
}

// Validate rejects non-positive batch sizes and negative delays.
func (o BackfillOptions) Validate() error {
	if o.BatchSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, o.BatchSize)
	}
	if o.BatchDelay < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBatchDelay, o.BatchDelay)
	}
	return nil
}

// BackfillResult summarises one run.
type BackfillResult struct {
	Total   int64
	Scanned int
	Created int
	Skipped int
	Batches int
}

// BackfillService populates the marketing_emails_opt_in attribute for users
// that do not have it yet.
type BackfillService struct {
	users    UserDirectory
	attrs    AttributeStore
	out      io.Writer
	log      *zerolog.Logger
	observer BatchObserver
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewBackfillService writes progress lines to out; nil out and log are allowed.
func NewBackfillService(users UserDirectory, attrs AttributeStore, out io.Writer, log *zerolog.Logger) *BackfillService {
	if out == nil {
		out = io.Discard
	}
	if log == nil {
		nop := zerolog.Nop()
		log = &nop
	}
	return &BackfillService{
		users: users,
		attrs: attrs,
		out:   out,
		log:   log,
		sleep: sleepContext,
	}
}

// WithObserver attaches a per-batch observer.
func (s *BackfillService) WithObserver(o BatchObserver) *BackfillService {
	s.observer = o
	return s
}

// WithSleep replaces the inter-batch sleep.
func (s *BackfillService) WithSleep(fn func(ctx context.Context, d time.Duration) error) *BackfillService {
	s.sleep = fn
	return s
}

// Run walks users by ascending id in pages of opts.BatchSize. The user count
// is taken once at start; users created during the run may be missed.
func (s *BackfillService) Run(ctx context.Context, opts BackfillOptions) (BackfillResult, error) {
	var res BackfillResult
	if err := opts.Validate(); err != nil {
		return res, err
	}

	total, err := s.users.Count(ctx)
	if err != nil {
		return res, err
	}
	res.Total = total
	s.log.Info().Int64("users", total).Int("batch_size", opts.BatchSize).Dur("batch_delay", opts.BatchDelay).Msg("backfill started")

	for offset := 0; int64(offset) < total; offset += opts.BatchSize {
		fmt.Fprintf(s.out, "Back filling user attribute in batch from %d to %d\n", offset, offset+opts.BatchSize)

		scanned, created, err := s.fillBatch(ctx, offset, opts.BatchSize)
		res.Scanned += scanned
		res.Created += created
		res.Skipped += scanned - created
		if err != nil {
			return res, fmt.Errorf("batch at offset %d: %w", offset, err)
		}
		res.Batches++
		if s.observer != nil {
			s.observer.ObserveBatch(scanned, created)
		}
		s.log.Debug().Int("offset", offset).Int("scanned", scanned).Int("created", created).Msg("batch done")

		if err := s.sleep(ctx, opts.BatchDelay); err != nil {
			return res, err
		}
	}

	fmt.Fprintln(s.out, "Command executed successfully.")
	s.log.Info().Int("scanned", res.Scanned).Int("created", res.Created).Int("batches", res.Batches).Msg("backfill finished")
	return res, nil
}

func (s *BackfillService) fillBatch(ctx context.Context, offset, limit int) (scanned, created int, err error) {
	users, err := s.users.ListPage(ctx, offset, limit)
	if err != nil {
		return 0, 0, err
	}
	for _, user := range users {
		scanned++
		value, err := s.attrs.Get(ctx, user.ID, model.MarketingEmailsOptIn)
		if err != nil {
			return scanned - 1, created, err
		}
		if value != "" {
			continue
		}
		if err := s.attrs.Set(ctx, user.ID, model.MarketingEmailsOptIn, strconv.FormatBool(user.IsActive)); err != nil {
			return scanned - 1, created, err
		}
		created++
	}
	return scanned, created, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

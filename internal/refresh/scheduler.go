// Package refresh runs the fetch, normalize, persist and diff cycle on a
// timer and on demand, announcing contracts that were not seen before.
package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/catalog"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/changes"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/config"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/lock"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/logger"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/notify"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/snapshot"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/sources/secop"
)

const (
	// LockName is the distributed lock held for the duration of a cycle.
	LockName = "refresh"

	DefaultInterval = 6 * time.Hour
	DefaultLockTTL  = 30 * time.Minute
)

// State is the step a cycle is currently in.
type State string

const (
	StateIdle        State = "IDLE"
	StateFetching    State = "FETCHING"
	StateNormalizing State = "NORMALIZING"
	StateDiffing     State = "DIFFING"
	StateNotifying   State = "NOTIFYING"
)

// Source retrieves every raw record of one dataset.
type Source interface {
	FetchAll(ctx context.Context, categoryCode string, pageSize int) *secop.FetchResult
}

// Normalizer maps raw records onto the canonical table.
type Normalizer interface {
	Normalize(raw []map[string]any, tag models.DatasetTag, search config.SearchConfig) models.Table
}

// RunRecorder persists the history of cycles.
type RunRecorder interface {
	StartRun(ctx context.Context, run *models.RefreshRun) error
	FinishRun(ctx context.Context, run *models.RefreshRun) error
}

// Config wires a Scheduler. Active, Historical, Normalizer and Store are
// required; everything else is optional.
type Config struct {
	Active     Source
	Historical Source
	Normalizer Normalizer
	Store      snapshot.Store
	Catalog    *catalog.Catalog
	Search     config.SearchProvider
	Notifier   notify.Notifier
	Recipients []string
	Runs       RunRecorder
	Lock       lock.Distributed
	LockTTL    time.Duration
	Interval   time.Duration
	PageSize   int
	// RunImmediately starts a cycle as soon as Start is called instead of
	// waiting for the first tick.
	RunImmediately bool
	Logger         *slog.Logger
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	State       State              `json:"state"`
	Interval    string             `json:"interval"`
	Recipients  int                `json:"recipients"`
	LastRun     *models.RefreshRun `json:"last_run,omitempty"`
	LastSuccess *time.Time         `json:"last_success,omitempty"`
}

// Scheduler owns the previous active table used for change detection. Only
// a cycle, holding cycleMu, reads or replaces it.
type Scheduler struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	cycleMu     sync.Mutex
	previous    models.Table
	hasPrevious bool

	mu          sync.RWMutex
	state       State
	recipients  []string
	lastRun     *models.RefreshRun
	lastSuccess time.Time
	started     bool
	stopped     bool
	cancel      context.CancelFunc
	done        chan struct{}
	stopOnce    sync.Once
}

// New validates cfg and fills in defaults.
func New(cfg Config) (*Scheduler, error) {
	switch {
	case cfg.Active == nil || cfg.Historical == nil:
		return nil, errors.New("refresh: both sources are required")
	case cfg.Normalizer == nil:
		return nil, errors.New("refresh: normalizer is required")
	case cfg.Store == nil:
		return nil, errors.New("refresh: snapshot store is required")
	}
	if cfg.Search == nil {
		cfg.Search = config.StaticSearch(config.DefaultSearchConfig())
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = secop.DefaultPageSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Scheduler{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "refresh"),
		now:    time.Now,
		state:  StateIdle,
	}
	s.SetNotificationRecipients(cfg.Recipients)
	return s, nil
}

// Seed loads the latest stored snapshots into the catalog and takes the
// active one as the previous table, so a restart does not announce every
// contract again.
func (s *Scheduler) Seed(ctx context.Context) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	for _, tag := range models.AllDatasets() {
		table, err := s.cfg.Store.LoadLatest(ctx, tag)
		if err != nil {
			return fmt.Errorf("seed %s: %w", tag, err)
		}
		if s.cfg.Catalog != nil {
			s.cfg.Catalog.Publish(tag, table)
		}
		if tag != models.DatasetActive {
			continue
		}

		stored, err := s.cfg.Store.List(ctx, tag)
		if err != nil {
			return fmt.Errorf("seed %s: %w", tag, err)
		}
		if len(stored) > 0 {
			s.previous = table
			s.hasPrevious = true
		}
		s.logger.Info("seeded previous snapshot", "dataset", tag, "rows", len(table), "found", len(stored) > 0)
	}
	return nil
}

// ForceRefresh runs one cycle and blocks until it finishes. It reports
// whether the cycle succeeded.
func (s *Scheduler) ForceRefresh(ctx context.Context) bool {
	return s.run(ctx, models.TriggerManual)
}

// Start runs cycles every Interval until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return errors.New("refresh: scheduler stopped")
	}
	if s.started {
		return errors.New("refresh: scheduler already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true

	go s.loop(loopCtx, s.done)
	s.logger.Info("scheduler started", "interval", s.cfg.Interval.String())
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	if s.cfg.RunImmediately {
		s.run(ctx, models.TriggerSchedule)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, models.TriggerSchedule)
		}
	}
}

// Stop halts the timer and waits for a running scheduled cycle to return.
// It is safe to call more than once and before Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel, done := s.cancel, s.done
		s.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
		s.logger.Info("scheduler stopped")
	})
}

// SetNotificationRecipients replaces the recipient list.
func (s *Scheduler) SetNotificationRecipients(recipients []string) {
	clean := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	s.mu.Lock()
	s.recipients = clean
	s.mu.Unlock()
}

// Recipients returns a copy of the recipient list.
func (s *Scheduler) Recipients() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.recipients...)
}

// State reports the step of the running cycle, or IDLE.
func (s *Scheduler) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastRun returns a copy of the most recent cycle record, or nil.
func (s *Scheduler) LastRun() *models.RefreshRun {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastRun == nil {
		return nil
	}
	run := *s.lastRun
	return &run
}

// Status summarizes the scheduler for the status endpoint.
func (s *Scheduler) Status() Status {
	st := Status{
		State:      s.State(),
		Interval:   s.cfg.Interval.String(),
		Recipients: len(s.Recipients()),
		LastRun:    s.LastRun(),
	}
	s.mu.RLock()
	if !s.lastSuccess.IsZero() {
		t := s.lastSuccess
		st.LastSuccess = &t
	}
	s.mu.RUnlock()
	return st
}

func (s *Scheduler) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// run executes one cycle under the in-process mutex and, when configured,
// the distributed lock.
func (s *Scheduler) run(ctx context.Context, trigger models.RunTrigger) bool {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	run := models.NewRefreshRun(trigger, s.now())
	ctx = logger.WithRunID(ctx, run.RunID)
	log := logger.FromContext(ctx, s.logger).With("trigger", string(trigger))

	if s.cfg.Lock != nil {
		acquired, err := s.cfg.Lock.Acquire(ctx, LockName, s.cfg.LockTTL)
		if err != nil {
			log.Error("failed to acquire refresh lock", "error", err)
			run.Finish(s.now(), fmt.Errorf("acquire lock: %w", err))
			s.record(ctx, run, log)
			return false
		}
		if !acquired {
			log.Info("refresh already running on another instance, skipping")
			run.Skip(s.now(), "refresh lock held by another instance")
			s.record(ctx, run, log)
			return false
		}
		defer func() {
			if err := s.cfg.Lock.Release(context.WithoutCancel(ctx), LockName); err != nil {
				log.Warn("failed to release refresh lock", "error", err)
			}
		}()
	}

	log.Info("refresh cycle started")
	if s.cfg.Runs != nil {
		if err := s.cfg.Runs.StartRun(ctx, run); err != nil {
			log.Warn("failed to record run start", "error", err)
		}
	}

	err := s.cycle(ctx, run, log)
	s.setState(StateIdle)
	run.Finish(s.now(), err)

	if err != nil {
		log.Error("refresh cycle failed", "error", err, "duration", run.Duration().String())
	} else {
		log.Info("refresh cycle finished",
			"duration", run.Duration().String(),
			"active", run.ActiveKept,
			"historical", run.HistoricalKept,
			"new", run.NewContracts,
		)
	}

	if s.cfg.Runs != nil {
		if ferr := s.cfg.Runs.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			log.Warn("failed to record run result", "error", ferr)
		}
	}
	s.remember(run)
	return err == nil
}

func (s *Scheduler) record(ctx context.Context, run *models.RefreshRun, log *slog.Logger) {
	if s.cfg.Runs != nil {
		if err := s.cfg.Runs.StartRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("failed to record run", "error", err)
		}
	}
	s.remember(run)
}

func (s *Scheduler) remember(run *models.RefreshRun) {
	copied := *run
	s.mu.Lock()
	s.lastRun = &copied
	if run.Status == models.RunSucceeded && run.EndTime != nil {
		s.lastSuccess = *run.EndTime
	}
	s.mu.Unlock()
}

// cycle leaves the previous table untouched unless every step up to
// persisting both datasets succeeded.
func (s *Scheduler) cycle(ctx context.Context, run *models.RefreshRun, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("refresh cycle panicked", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("refresh cycle panicked: %v", r)
		}
	}()

	search := s.cfg.Search.Current()
	if b, merr := json.Marshal(search); merr == nil {
		snap := string(b)
		run.ConfigSnapshot = &snap
	}

	s.setState(StateFetching)
	active := s.cfg.Active.FetchAll(ctx, search.CodeCategory, s.cfg.PageSize)
	run.ActiveExpected, run.ActiveFetched = active.Expected, len(active.Records)
	if active.Outcome == secop.OutcomeFailed {
		return fmt.Errorf("fetch %s: %w", models.DatasetActive, fetchErr(active))
	}
	historical := s.cfg.Historical.FetchAll(ctx, search.CodeCategory, s.cfg.PageSize)
	run.HistoricalExpected, run.HistoricalFetched = historical.Expected, len(historical.Records)
	if historical.Outcome == secop.OutcomeFailed {
		return fmt.Errorf("fetch %s: %w", models.DatasetHistorical, fetchErr(historical))
	}

	s.setState(StateNormalizing)
	activeTable := s.cfg.Normalizer.Normalize(active.Records, models.DatasetActive, search)
	historicalTable := s.cfg.Normalizer.Normalize(historical.Records, models.DatasetHistorical, search)
	run.ActiveKept, run.HistoricalKept = len(activeTable), len(historicalTable)

	// The active snapshot seeds the diff after a restart, so it is written
	// only once everything before it succeeded.
	if err := s.cfg.Store.Save(ctx, historicalTable, models.DatasetHistorical); err != nil {
		return fmt.Errorf("save %s: %w", models.DatasetHistorical, err)
	}
	if err := s.cfg.Store.Save(ctx, activeTable, models.DatasetActive); err != nil {
		return fmt.Errorf("save %s: %w", models.DatasetActive, err)
	}
	if s.cfg.Catalog != nil {
		s.cfg.Catalog.Publish(models.DatasetActive, activeTable)
		s.cfg.Catalog.Publish(models.DatasetHistorical, historicalTable)
	}

	s.setState(StateDiffing)
	hadPrevious := s.hasPrevious
	fresh := changes.DetectNew(activeTable, s.previous)
	s.previous = activeTable
	s.hasPrevious = true

	if !hadPrevious {
		log.Info("no previous snapshot, skipping notification", "contracts", len(fresh))
		return nil
	}
	run.NewContracts = len(fresh)
	log.Info("change detection finished", "new", len(fresh))

	recipients := s.Recipients()
	if len(fresh) == 0 || len(recipients) == 0 || s.cfg.Notifier == nil {
		return nil
	}

	s.setState(StateNotifying)
	s.notify(ctx, fresh, recipients, log)
	return nil
}

// notify never fails the cycle.
func (s *Scheduler) notify(ctx context.Context, fresh models.Table, recipients []string, log *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("notifier panicked", "panic", r)
		}
	}()

	if s.cfg.Notifier.Notify(ctx, fresh.SortedBySigningDate().Maps(), recipients) {
		log.Info("new contracts announced", "contracts", len(fresh), "recipients", len(recipients))
		return
	}
	log.Warn("failed to announce new contracts", "contracts", len(fresh))
}

func fetchErr(res *secop.FetchResult) error {
	if res.Err != nil {
		return res.Err
	}
	return errors.New("fetch failed")
}

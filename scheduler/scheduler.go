// Package scheduler owns the periodic market data refresh: one gocron job per
// asset category, an immediate pass on start, and the global maintenance gate.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"newsdesk_backend/models"
	"newsdesk_backend/services/marketdata"
	"newsdesk_backend/services/settings"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// State of the orchestrator
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
)

// StatusLogInterval is the cadence of the status log job
const StatusLogInterval = 10 * time.Minute

// MaxIntervalMinutes bounds a configured refresh interval (one day)
const MaxIntervalMinutes = 1440

// DefaultIntervals are the refresh cadences in minutes when nothing is persisted
var DefaultIntervals = map[models.AssetCategory]int{
	models.CategoryIndex:     5,
	models.CategoryCrypto:    2,
	models.CategoryCurrency:  15,
	models.CategoryCommodity: 30,
}

// CategoryUpdater runs one refresh pass for a category
type CategoryUpdater interface {
	UpdateCategory(ctx context.Context, category models.AssetCategory) (marketdata.UpdateResult, error)
}

// Status is reported to the admin routes
type Status struct {
	IsRunning        bool                                             `json:"is_running"`
	State            State                                            `json:"state"`
	IntervalsMinutes map[models.AssetCategory]int                     `json:"intervals_minutes"`
	LastRuns         map[models.AssetCategory]marketdata.UpdateResult `json:"last_runs"`
	MaintenanceMode  bool                                             `json:"maintenance_mode"`
}

// Orchestrator drives the category updaters on independent timers
type Orchestrator struct {
	updater  CategoryUpdater
	settings marketdata.SettingsStore

	mu        sync.RWMutex
	state     State
	startGen  uint64 // bumped by every Start and Stop so a stale Start cannot arm jobs
	cron      *gocron.Scheduler
	intervals map[models.AssetCategory]int
	lastRuns  map[models.AssetCategory]marketdata.UpdateResult

	// intervalsMu serialises UpdateIntervals so merge, persist and commit happen together
	intervalsMu sync.Mutex

	// categoryLocks serialise runs of the same category across ticks and manual triggers
	categoryLocks map[models.AssetCategory]*sync.Mutex
	inflight      sync.WaitGroup

	settingsWarned atomic.Bool
}

// NewOrchestrator creates a stopped orchestrator with default intervals
func NewOrchestrator(updater CategoryUpdater, store marketdata.SettingsStore) *Orchestrator {
	locks := make(map[models.AssetCategory]*sync.Mutex, len(models.AllCategories))
	for _, c := range models.AllCategories {
		locks[c] = &sync.Mutex{}
	}
	return &Orchestrator{
		updater:       updater,
		settings:      store,
		state:         StateStopped,
		intervals:     copyIntervals(DefaultIntervals),
		lastRuns:      make(map[models.AssetCategory]marketdata.UpdateResult),
		categoryLocks: locks,
	}
}

// Start loads the persisted intervals, runs one immediate pass in the background
// and arms one job per category. Calling Start while running is a no-op.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.state != StateStopped {
		o.mu.Unlock()
		log.Debug().Str("state", string(o.state)).Msg("market scheduler already started")
		return nil
	}
	o.state = StateStarting
	o.startGen++
	gen := o.startGen
	o.mu.Unlock()

	intervals := o.loadIntervals(ctx)

	// Ticks outlive the request that started the scheduler
	runCtx := context.WithoutCancel(ctx)

	cron := gocron.NewScheduler(time.UTC)
	for _, category := range models.AllCategories {
		category := category
		_, err := cron.Every(intervals[category]).Minutes().
			SingletonMode().
			WaitForSchedule().
			Tag(string(category)).
			Do(func() { o.tick(runCtx, category) })
		if err != nil {
			o.abortStart(gen)
			return fmt.Errorf("failed to schedule %s updates: %w", category, err)
		}
	}
	if _, err := cron.Every(StatusLogInterval).WaitForSchedule().Tag("status").Do(o.logStatus); err != nil {
		o.abortStart(gen)
		return fmt.Errorf("failed to schedule status log: %w", err)
	}

	o.mu.Lock()
	if o.state != StateStarting || o.startGen != gen {
		o.mu.Unlock()
		log.Info().Msg("market scheduler stopped while starting, jobs not armed")
		return nil
	}
	o.intervals = intervals
	o.cron = cron
	o.state = StateRunning
	// started under the lock so a concurrent Stop always sees a running scheduler
	cron.StartAsync()
	o.mu.Unlock()

	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		o.runAll(runCtx)
	}()

	log.Info().Interface("intervals_minutes", intervals).Msg("market scheduler started")
	return nil
}

// abortStart returns to Stopped unless a Stop or another Start already took over
func (o *Orchestrator) abortStart(gen uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.startGen == gen {
		o.state = StateStopped
	}
}

// Stop clears all jobs. Runs already in flight complete and their writes land.
// A Stop during Starting cancels the pending start.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == StateStopped {
		return
	}
	o.startGen++
	if o.cron != nil {
		o.cron.Stop()
		o.cron = nil
	}
	o.state = StateStopped
	log.Info().Msg("market scheduler stopped")
}

// Wait blocks until the immediate pass and any manual runs have finished
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

// IsRunning reports whether jobs are armed
func (o *Orchestrator) IsRunning() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state == StateRunning
}

// Status returns the running state, intervals and last results
func (o *Orchestrator) Status(ctx context.Context) Status {
	o.mu.RLock()
	status := Status{
		IsRunning:        o.state == StateRunning,
		State:            o.state,
		IntervalsMinutes: copyIntervals(o.intervals),
		LastRuns:         make(map[models.AssetCategory]marketdata.UpdateResult, len(o.lastRuns)),
	}
	for c, r := range o.lastRuns {
		status.LastRuns[c] = r
	}
	o.mu.RUnlock()

	status.MaintenanceMode = o.maintenanceActive(ctx)
	return status
}

// UpdateIntervals merges partial into the current intervals and persists them.
// Armed jobs keep their cadence until the scheduler is stopped and started again.
func (o *Orchestrator) UpdateIntervals(ctx context.Context, partial map[models.AssetCategory]int, updatedBy string) (map[models.AssetCategory]int, error) {
	for category, minutes := range partial {
		if !category.Valid() {
			return nil, fmt.Errorf("unknown category %q", category)
		}
		if minutes < 1 || minutes > MaxIntervalMinutes {
			return nil, fmt.Errorf("interval for %s must be between 1 and %d minutes", category, MaxIntervalMinutes)
		}
	}

	o.intervalsMu.Lock()
	defer o.intervalsMu.Unlock()

	o.mu.RLock()
	next := copyIntervals(o.intervals)
	o.mu.RUnlock()
	for category, minutes := range partial {
		next[category] = minutes
	}

	data, err := json.Marshal(next)
	if err != nil {
		return nil, fmt.Errorf("failed to encode intervals: %w", err)
	}
	meta := settings.Meta{
		Description: "Market data refresh interval per category, in minutes",
		Group:       "market",
		UpdatedBy:   updatedBy,
	}
	if err := o.settings.Upsert(ctx, settings.KeyMarketUpdateIntervals, string(data), meta); err != nil {
		return nil, fmt.Errorf("failed to persist intervals: %w", err)
	}

	o.mu.Lock()
	o.intervals = next
	o.mu.Unlock()

	log.Info().Interface("intervals_minutes", next).Str("updated_by", updatedBy).Msg("market refresh intervals updated")
	return copyIntervals(next), nil
}

// RunCategory runs one category on demand. Manual runs are not gated by maintenance
// mode, but they never overlap a scheduled run of the same category.
func (o *Orchestrator) RunCategory(ctx context.Context, category models.AssetCategory) (marketdata.UpdateResult, error) {
	if !category.Valid() {
		return marketdata.UpdateResult{}, fmt.Errorf("unknown category %q", category)
	}
	o.inflight.Add(1)
	defer o.inflight.Done()
	return o.run(ctx, category)
}

// tick is the body of every scheduled job
func (o *Orchestrator) tick(ctx context.Context, category models.AssetCategory) {
	if o.maintenanceActive(ctx) {
		log.Info().Str("category", string(category)).Msg("maintenance mode active, skipping scheduled update")
		return
	}
	if _, err := o.run(ctx, category); err != nil {
		log.Error().Err(err).Str("category", string(category)).Msg("scheduled update failed")
	}
}

// runAll is the immediate pass on start. Categories run concurrently with each other.
func (o *Orchestrator) runAll(ctx context.Context) {
	if o.maintenanceActive(ctx) {
		log.Info().Msg("maintenance mode active, skipping initial market update")
		return
	}
	var g errgroup.Group
	for _, category := range models.AllCategories {
		category := category
		g.Go(func() error {
			if _, err := o.run(ctx, category); err != nil {
				return fmt.Errorf("%s: %w", category, err)
			}
			return nil
		})
	}
	// Wait reports the first failure; the other categories still ran to completion
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("initial market update finished with errors")
	}
}

// run executes one updater pass with a panic boundary and records the result
func (o *Orchestrator) run(ctx context.Context, category models.AssetCategory) (result marketdata.UpdateResult, err error) {
	lock := o.categoryLocks[category]
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%s update panicked: %v", category, rec)
		}
		if err == nil {
			o.mu.Lock()
			o.lastRuns[category] = result
			o.mu.Unlock()
		}
	}()

	return o.updater.UpdateCategory(ctx, category)
}

// maintenanceActive reads the flag fresh. Read failures fail open with a single
// warning until the next successful read.
func (o *Orchestrator) maintenanceActive(ctx context.Context) bool {
	value, found, err := o.settings.Get(ctx, settings.KeyMaintenanceMode)
	if err == nil && found {
		var active bool
		active, err = settings.ParseFlag(value)
		if err == nil {
			o.settingsWarned.Store(false)
			return active
		}
	}
	if err != nil {
		if o.settingsWarned.CompareAndSwap(false, true) {
			log.Warn().Err(err).Msg("maintenance flag unreadable, assuming maintenance is off")
		}
		return false
	}
	o.settingsWarned.Store(false)
	return false
}

// loadIntervals merges the persisted intervals over the defaults
func (o *Orchestrator) loadIntervals(ctx context.Context) map[models.AssetCategory]int {
	intervals := copyIntervals(DefaultIntervals)

	value, found, err := o.settings.Get(ctx, settings.KeyMarketUpdateIntervals)
	if err != nil {
		log.Warn().Err(err).Msg("could not load market intervals, using defaults")
		return intervals
	}
	if !found {
		return intervals
	}

	var stored map[models.AssetCategory]int
	if err := json.Unmarshal([]byte(value), &stored); err != nil {
		log.Warn().Err(err).Msg("invalid market intervals setting, using defaults")
		return intervals
	}
	for category, minutes := range stored {
		if !category.Valid() || minutes < 1 || minutes > MaxIntervalMinutes {
			continue
		}
		intervals[category] = minutes
	}
	return intervals
}

func (o *Orchestrator) logStatus() {
	status := o.Status(context.Background())
	event := log.Info().
		Bool("running", status.IsRunning).
		Bool("maintenance", status.MaintenanceMode).
		Interface("intervals_minutes", status.IntervalsMinutes)
	for category, r := range status.LastRuns {
		event = event.Str(string(category), fmt.Sprintf("ok=%d fail=%d skipped=%d at=%s",
			r.SuccessCount, r.FailCount, r.SkippedCount, r.StartedAt.Format(time.RFC3339)))
	}
	event.Msg("market scheduler status")
}

func copyIntervals(in map[models.AssetCategory]int) map[models.AssetCategory]int {
	out := make(map[models.AssetCategory]int, len(in))
	for c, m := range in {
		out[c] = m
	}
	return out
}

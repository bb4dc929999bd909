package quest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kasuganosora/questd/cache"
	"github.com/kasuganosora/questd/model"
	"github.com/kasuganosora/questd/plugin/hook"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultBatchSize = 50
	defaultStatsTTL  = 30 * time.Second

	statsKeyPrefix = "quest:stats:"
	runsKey        = "quest:runs"
	runsKeep       = 50
)

// PlayerChannel is the pubsub channel carrying a player's quest events.
func PlayerChannel(playerID int64) string {
	return "quest:player:" + strconv.FormatInt(playerID, 10)
}

// Options configures a Service. Zero values pick the defaults.
type Options struct {
	BatchSize int
	StatsTTL  time.Duration
	Catalog   Catalog
	Rand      Rand
	Roster    Roster
	Cache     cache.Cache
	PubSub    cache.PubSub
	Hooks     *hook.Center
}

// Service runs the periodic quest lifecycle: bulk generation, forced
// regeneration, backfill, expiry sweeps and the player read path.
type Service struct {
	store     *Store
	roster    Roster
	gen       *Generator
	cache     cache.Cache
	pubsub    cache.PubSub
	hooks     *hook.Center
	instance  string
	batchSize int
	statsTTL  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a Service. It fails if the catalog cannot serve
// every period.
func NewService(db *gorm.DB, opts Options, logger *zap.Logger) (*Service, error) {
	catalog := opts.Catalog
	if catalog == nil {
		catalog = DefaultCatalog
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	svc := &Service{
		store:     NewStore(db),
		roster:    opts.Roster,
		gen:       NewGenerator(catalog, opts.Rand),
		cache:     opts.Cache,
		pubsub:    opts.PubSub,
		hooks:     opts.Hooks,
		instance:  uuid.NewString(),
		batchSize: opts.BatchSize,
		statsTTL:  opts.StatsTTL,
		now:       utcNow,
		logger:    logger,
	}
	if svc.roster == nil {
		svc.roster = NewDBRoster(db)
	}
	if svc.hooks == nil {
		svc.hooks = hook.NewCenter()
	}
	if svc.batchSize <= 0 {
		svc.batchSize = defaultBatchSize
	}
	if svc.statsTTL <= 0 {
		svc.statsTTL = defaultStatsTTL
	}
	return svc, nil
}

// Store exposes the persistence layer for plain record CRUD.
func (svc *Service) Store() *Store { return svc.store }

// Hooks is where observers register for lifecycle events.
func (svc *Service) Hooks() *hook.Center { return svc.hooks }

// PlayerError is one isolated per-player failure inside a bulk job.
type PlayerError struct {
	PlayerID int64  `json:"player_id"`
	Error    string `json:"error"`
}

// BulkSummary reports a GenerateForAllPlayers run. Skipped players
// already held a set and count as successes.
type BulkSummary struct {
	Period       model.Period  `json:"period"`
	TotalPlayers int           `json:"total_players"`
	SuccessCount int           `json:"success_count"`
	SkippedCount int           `json:"skipped_count"`
	ErrorCount   int           `json:"error_count"`
	Errors       []PlayerError `json:"errors,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// BackfillResult reports one period of a backfill run.
type BackfillResult struct {
	Period       model.Period  `json:"period"`
	TotalPlayers int           `json:"total_players"`
	Missing      int           `json:"missing"`
	Regenerated  int           `json:"regenerated"`
	Errors       []PlayerError `json:"errors,omitempty"`
}

// BackfillSummary reports a BackfillMissing run.
type BackfillSummary struct {
	Periods  []BackfillResult `json:"periods"`
	Duration time.Duration    `json:"duration_ns"`
}

// PeriodStats aggregates the current window of a period.
type PeriodStats struct {
	Period            model.Period `json:"period"`
	WindowStart       time.Time    `json:"window_start"`
	ExpiresAt         time.Time    `json:"expires_at"`
	PlayersWithQuests int64        `json:"players_with_quests"`
	TotalQuests       int64        `json:"total_quests"`
	CompletedQuests   int64        `json:"completed_quests"`
	ClaimedQuests     int64        `json:"claimed_quests"`
	CompletionRate    float64      `json:"completion_rate"`
}

// utcNow is the default clock. Windows are computed and stored in UTC so
// stored times compare consistently as text on SQLite.
func utcNow() time.Time { return time.Now().UTC() }

func (svc *Service) windowFor(playerID int64, p model.Period, now time.Time) window {
	return window{PlayerID: playerID, Period: p, Start: StartOf(p, now), Expires: ExpirationOf(p, now)}
}

// fanOut runs fn for every id in batches of batchSize. Inside a batch all
// calls run concurrently and the batch is awaited before the next starts.
// Failures (including panics) are isolated per id and returned.
func (svc *Service) fanOut(ctx context.Context, ids []int64, fn func(context.Context, int64) error) []PlayerError {
	var (
		mu   sync.Mutex
		errs []PlayerError
	)
	for lo := 0; lo < len(ids); lo += svc.batchSize {
		hi := min(lo+svc.batchSize, len(ids))
		var g errgroup.Group
		for _, id := range ids[lo:hi] {
			g.Go(func() (err error) {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("panic: %v", r)
					}
					if err != nil {
						mu.Lock()
						errs = append(errs, PlayerError{PlayerID: id, Error: err.Error()})
						mu.Unlock()
					}
				}()
				return fn(ctx, id)
			})
		}
		// Errors are collected above; Wait only joins the batch.
		_ = g.Wait()
	}
	return errs
}

func playerIDs(players []model.Player) []int64 {
	ids := make([]int64, len(players))
	for i, p := range players {
		ids[i] = p.ID
	}
	return ids
}

// GenerateForAllPlayers makes sure every player holds a set for the
// current window of p. Players with a set are skipped.
func (svc *Service) GenerateForAllPlayers(ctx context.Context, p model.Period) (*BulkSummary, error) {
	began := time.Now()
	now := svc.now()

	players, err := svc.roster.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}

	var generated, skipped atomic.Int64
	errs := svc.fanOut(ctx, playerIDs(players), func(ctx context.Context, playerID int64) error {
		created, err := svc.generateIfMissing(ctx, svc.windowFor(playerID, p, now))
		if err != nil {
			svc.logger.Error("quest generation failed",
				zap.Int64("player_id", playerID),
				zap.String("period", string(p)),
				zap.Error(err))
			return err
		}
		if created {
			generated.Add(1)
		} else {
			skipped.Add(1)
		}
		return nil
	})

	sum := &BulkSummary{
		Period:       p,
		TotalPlayers: len(players),
		SuccessCount: int(generated.Load() + skipped.Load()),
		SkippedCount: int(skipped.Load()),
		ErrorCount:   len(errs),
		Errors:       errs,
		Duration:     time.Since(began),
	}
	svc.invalidateStats(ctx, p)
	svc.recordRun(ctx, "generate", sum)
	svc.logger.Info("quest bulk generation finished",
		zap.String("period", string(p)),
		zap.Int("players", sum.TotalPlayers),
		zap.Int("success", sum.SuccessCount),
		zap.Int("skipped", sum.SkippedCount),
		zap.Int("errors", sum.ErrorCount),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}

// generateIfMissing creates a set unless one already exists for the window.
// It reports whether a set was created.
func (svc *Service) generateIfMissing(ctx context.Context, w window) (bool, error) {
	has, err := svc.store.HasSetInWindow(ctx, w)
	if err != nil {
		return false, fmt.Errorf("check existing set: %w", err)
	}
	if has {
		return false, nil
	}
	specs, err := svc.gen.Generate(w.Period, QuestCount(w.Period))
	if err != nil {
		return false, err
	}
	rows, err := svc.store.CreateSet(ctx, w, specs, false)
	if errors.Is(err, errSetExists) {
		// A guard with no rows behind it is left over from deleted quests.
		cleared, cerr := svc.store.ClearStaleSet(ctx, w)
		if cerr != nil {
			return false, fmt.Errorf("clear stale set: %w", cerr)
		}
		if !cleared {
			return false, nil
		}
		svc.logger.Warn("stale quest set guard cleared",
			zap.Int64("player_id", w.PlayerID),
			zap.String("period", string(w.Period)))
		rows, err = svc.store.CreateSet(ctx, w, specs, false)
		if errors.Is(err, errSetExists) {
			return false, nil
		}
	}
	if err != nil {
		return false, fmt.Errorf("create set: %w", err)
	}
	svc.publishRefresh(ctx, w)
	_, _ = svc.hooks.Trigger(ctx, hook.OnSetGenerated, rows)
	return true, nil
}

// ForceGenerate replaces the player's current set for p with a fresh one
// and returns the new rows.
func (svc *Service) ForceGenerate(ctx context.Context, playerID int64, p model.Period) ([]model.PlayerQuest, error) {
	ok, err := svc.store.PlayerExists(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPlayerNotFound
	}

	w := svc.windowFor(playerID, p, svc.now())
	specs, err := svc.gen.Generate(p, QuestCount(p))
	if err != nil {
		return nil, err
	}
	rows, err := svc.store.CreateSet(ctx, w, specs, true)
	if errors.Is(err, errSetExists) {
		// Another replace for the same window committed first.
		return svc.store.ActiveQuests(ctx, playerID, p, svc.now())
	}
	if err != nil {
		return nil, fmt.Errorf("replace set: %w", err)
	}
	svc.invalidateStats(ctx, p)
	svc.publishRefresh(ctx, w)
	_, _ = svc.hooks.Trigger(ctx, hook.OnSetGenerated, rows)
	svc.logger.Debug("quest set regenerated",
		zap.Int64("player_id", playerID),
		zap.String("period", string(p)),
		zap.Int("count", len(rows)))
	return rows, nil
}

// BackfillMissing force-generates a set for every player lacking one in
// the current window of any period.
func (svc *Service) BackfillMissing(ctx context.Context) (*BackfillSummary, error) {
	began := time.Now()
	sum := &BackfillSummary{}

	for _, p := range model.AllPeriods {
		now := svc.now()
		players, err := svc.roster.ListPlayers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list players: %w", err)
		}
		have, err := svc.store.PlayersWithSet(ctx, p, StartOf(p, now), ExpirationOf(p, now))
		if err != nil {
			return nil, fmt.Errorf("players with %s set: %w", p, err)
		}

		covered := make(map[int64]struct{}, len(have))
		for _, id := range have {
			covered[id] = struct{}{}
		}
		var missing []int64
		for _, pl := range players {
			if _, ok := covered[pl.ID]; !ok {
				missing = append(missing, pl.ID)
			}
		}

		errs := svc.fanOut(ctx, missing, func(ctx context.Context, playerID int64) error {
			_, err := svc.ForceGenerate(ctx, playerID, p)
			return err
		})
		res := BackfillResult{
			Period:       p,
			TotalPlayers: len(players),
			Missing:      len(missing),
			Regenerated:  len(missing) - len(errs),
			Errors:       errs,
		}
		if len(missing) > 0 {
			svc.logger.Info("quest backfill",
				zap.String("period", string(p)),
				zap.Int("missing", res.Missing),
				zap.Int("errors", len(errs)))
		}
		sum.Periods = append(sum.Periods, res)
	}

	sum.Duration = time.Since(began)
	svc.recordRun(ctx, "backfill", sum)
	return sum, nil
}

// PlayerQuests returns the player's live quests for p. A player with none
// gets a set generated on the spot.
func (svc *Service) PlayerQuests(ctx context.Context, playerID int64, p model.Period) ([]model.PlayerQuest, error) {
	ok, err := svc.store.PlayerExists(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPlayerNotFound
	}

	rows, err := svc.store.ActiveQuests(ctx, playerID, p, svc.now())
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 {
		return rows, nil
	}

	svc.logger.Info("no active quests, generating on read",
		zap.Int64("player_id", playerID),
		zap.String("period", string(p)))
	return svc.ForceGenerate(ctx, playerID, p)
}

// Stats aggregates the current window of p. Results are cached briefly.
func (svc *Service) Stats(ctx context.Context, p model.Period) (*PeriodStats, error) {
	key := statsKeyPrefix + string(p)
	if svc.cache != nil {
		if raw, err := svc.cache.Get(ctx, key); err == nil {
			var st PeriodStats
			if json.Unmarshal([]byte(raw), &st) == nil {
				return &st, nil
			}
		} else if !cache.IsNotFound(err) {
			svc.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	now := svc.now()
	start, expires := StartOf(p, now), ExpirationOf(p, now)
	ws, err := svc.store.Stats(ctx, p, start, expires)
	if err != nil {
		return nil, err
	}
	st := &PeriodStats{
		Period:            p,
		WindowStart:       start,
		ExpiresAt:         expires,
		PlayersWithQuests: ws.Players,
		TotalQuests:       ws.Total,
		CompletedQuests:   ws.Completed,
		ClaimedQuests:     ws.Claimed,
	}
	if ws.Total > 0 {
		st.CompletionRate = float64(ws.Completed) / float64(ws.Total)
	}

	if svc.cache != nil {
		if raw, err := json.Marshal(st); err == nil {
			_ = svc.cache.Set(ctx, key, string(raw), svc.statsTTL)
		}
	}
	return st, nil
}

func (svc *Service) invalidateStats(ctx context.Context, periods ...model.Period) {
	if svc.cache == nil {
		return
	}
	keys := make([]string, len(periods))
	for i, p := range periods {
		keys[i] = statsKeyPrefix + string(p)
	}
	if err := svc.cache.Del(ctx, keys...); err != nil {
		svc.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

// RefreshEvent is published to PlayerChannel when a player's set changes.
type RefreshEvent struct {
	Type      string       `json:"type"`
	PlayerID  int64        `json:"player_id"`
	Period    model.Period `json:"period"`
	ExpiresAt time.Time    `json:"expires_at"`
}

func (svc *Service) publishRefresh(ctx context.Context, w window) {
	if svc.pubsub == nil {
		return
	}
	payload, _ := json.Marshal(RefreshEvent{
		Type:      "quest_refresh",
		PlayerID:  w.PlayerID,
		Period:    w.Period,
		ExpiresAt: w.Expires,
	})
	if err := svc.pubsub.Publish(ctx, PlayerChannel(w.PlayerID), string(payload)); err != nil {
		svc.logger.Warn("quest refresh publish failed",
			zap.Int64("player_id", w.PlayerID), zap.Error(err))
	}
}

// Run is one entry of the recent job history.
type Run struct {
	Job     string          `json:"job"`
	At      time.Time       `json:"at"`
	Summary json.RawMessage `json:"summary"`
}

func (svc *Service) recordRun(ctx context.Context, job string, summary interface{}) {
	if svc.cache == nil {
		return
	}
	body, err := json.Marshal(summary)
	if err != nil {
		return
	}
	raw, _ := json.Marshal(Run{Job: job, At: svc.now(), Summary: body})
	if err := svc.cache.LPush(ctx, runsKey, string(raw)); err != nil {
		svc.logger.Warn("record job run failed", zap.String("job", job), zap.Error(err))
		return
	}
	_ = svc.cache.LTrim(ctx, runsKey, 0, runsKeep-1)
}

// RecentRuns returns up to limit job runs, newest first.
func (svc *Service) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if svc.cache == nil || limit <= 0 {
		return nil, nil
	}
	raws, err := svc.cache.LRange(ctx, runsKey, 0, int64(limit-1))
	if err != nil {
		return nil, err
	}
	runs := make([]Run, 0, len(raws))
	for _, raw := range raws {
		var r Run
		if err := json.Unmarshal([]byte(raw), &r); err == nil {
			runs = append(runs, r)
		}
	}
	return runs, nil
}

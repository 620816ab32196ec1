package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/blockduel/internal/core"
	"github.com/vovakirdan/blockduel/internal/replication"
	"github.com/vovakirdan/blockduel/internal/tetris"
)

const defaultRecordTimeout = 5 * time.Second

// DuelConfig wires one client's side of a match.
type DuelConfig struct {
	Match     Match
	Local     PlayerID
	Transport replication.Transport
	Recorder  ResultRecorder // optional

	Engine         tetris.Options
	Speed          func(level int) time.Duration
	PublishTimeout time.Duration
	RecordTimeout  time.Duration
	Clock          func() time.Time
	Logger         *log.Logger
}

// Duel runs the local simulation of a match, publishes it, mirrors the
// opponent and arbitrates the result. Replication and recording failures are
// logged and never stop the local game.
type Duel struct {
	match    Match
	local    PlayerID
	opponent PlayerID
	cfg      DuelConfig
	logger   *log.Logger

	runner    *tetris.Runner
	publisher *replication.Publisher
	mirror    *replication.Mirror
	arbiter   *Arbiter

	mu        sync.Mutex
	joined    bool
	lastLocal tetris.State
	record    *BattleRecord
	listeners []func()

	decided   chan struct{}
	leaveOnce sync.Once
	leaveErr  error
}

// NewDuel validates cfg and builds an unjoined duel.
func NewDuel(cfg DuelConfig) (*Duel, error) {
	if cfg.Transport == nil {
		return nil, errors.New("multiplayer: duel needs a transport")
	}
	opponent, ok := cfg.Match.Opponent(cfg.Local)
	if !ok {
		return nil, fmt.Errorf("multiplayer: player %q is not in match %s", cfg.Local, cfg.Match.ID)
	}
	if opponent == cfg.Local {
		return nil, fmt.Errorf("multiplayer: match %s pairs %q with itself", cfg.Match.ID, cfg.Local)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.RecordTimeout <= 0 {
		cfg.RecordTimeout = defaultRecordTimeout
	}

	logger := cfg.Logger.With("match", cfg.Match.ID, "player", cfg.Local)
	engine := tetris.NewEngine(cfg.Engine)
	d := &Duel{
		match:    cfg.Match,
		local:    cfg.Local,
		opponent: opponent,
		cfg:      cfg,
		logger:   logger,
		runner: tetris.NewRunner(tetris.NewController(engine, false), tetris.RunnerOptions{
			Speed: cfg.Speed,
			Clock: cfg.Clock,
		}),
		mirror:  replication.NewMirror(logger),
		arbiter: NewArbiter(cfg.Match.StartedAt),
		decided: make(chan struct{}),
	}
	d.lastLocal = engine.State()
	return d, nil
}

// Match returns the match being played.
func (d *Duel) Match() Match { return d.match }

// OpponentID returns the opponent's player id.
func (d *Duel) OpponentID() PlayerID { return d.opponent }

// OnChange registers fn to run after any local, remote or verdict change.
func (d *Duel) OnChange(fn func()) {
	d.mu.Lock()
	d.listeners = append(d.listeners, fn)
	d.mu.Unlock()
}

func (d *Duel) notify() {
	d.mu.Lock()
	listeners := append([]func(){}, d.listeners...)
	d.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// Join subscribes to the opponent's record and starts publishing the local
// one. Pair every successful Join with Leave.
func (d *Duel) Join(ctx context.Context) error {
	d.mu.Lock()
	if d.joined {
		d.mu.Unlock()
		return nil
	}
	d.joined = true
	d.mu.Unlock()

	if err := d.mirror.Subscribe(ctx, d.cfg.Transport, Key(d.match.ID, d.opponent)); err != nil {
		d.logger.Warn("opponent subscription failed", "error", err)
	}
	d.publisher = replication.NewPublisher(d.cfg.Transport, Key(d.match.ID, d.local), replication.PublisherOptions{
		Timeout: d.cfg.PublishTimeout,
		Logger:  d.logger,
		Clock:   d.cfg.Clock,
	})

	d.runner.OnChange(func(st tetris.State) {
		d.mu.Lock()
		if st.Revision >= d.lastLocal.Revision {
			d.lastLocal = st
		}
		d.mu.Unlock()
		d.publisher.Update(st)
		d.arbitrate()
		d.notify()
	})
	d.mirror.OnChange(func(replication.MirrorState) {
		d.arbitrate()
		d.notify()
	})
	d.logger.Info("joined match", "opponent", d.opponent)
	return nil
}

// Run plays the match and may be called once: the local game runs until it is over, then Run waits
// for the verdict. It returns early when ctx is done. Resources are released
// on every exit path.
func (d *Duel) Run(ctx context.Context) error {
	if err := d.Join(ctx); err != nil {
		return err
	}
	defer func() {
		leaveCtx, cancel := context.WithTimeout(context.Background(), d.cfg.RecordTimeout)
		defer cancel()
		if err := d.Leave(leaveCtx); err != nil {
			d.logger.Warn("leave match", "error", err)
		}
	}()

	if err := d.runner.Run(ctx); err != nil {
		return err
	}
	select {
	case <-d.decided:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave stops replication: the mirror is unsubscribed and the local record
// removed. The opponent is not otherwise notified. Idempotent.
func (d *Duel) Leave(ctx context.Context) error {
	d.leaveOnce.Do(func() {
		d.mirror.Close()
		if d.publisher != nil {
			d.leaveErr = d.publisher.Close(ctx)
		}
		d.logger.Info("left match")
	})
	return d.leaveErr
}

// Apply routes a player action to the local game.
func (d *Duel) Apply(a core.Action) bool {
	return d.runner.Apply(a)
}

// Local returns the local game state.
func (d *Duel) Local() tetris.State {
	return d.runner.State()
}

// Opponent returns the mirrored opponent view.
func (d *Duel) Opponent() replication.MirrorState {
	return d.mirror.State()
}

// Verdict returns the match verdict once decided.
func (d *Duel) Verdict() (Verdict, bool) {
	return d.arbiter.Verdict()
}

// Decided is closed when the verdict is known.
func (d *Duel) Decided() <-chan struct{} { return d.decided }

// Record returns the stored rating change, once the recorder answered.
func (d *Duel) Record() (BattleRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.record == nil {
		return BattleRecord{}, false
	}
	return *d.record, true
}

func (d *Duel) arbitrate() {
	d.mu.Lock()
	local := OutcomeFromState(d.local, d.lastLocal)
	d.mu.Unlock()
	peer := OutcomeFromSnapshot(d.opponent, d.mirror.State().Snapshot)

	v, ok := d.arbiter.Observe(local, peer)
	if !ok {
		return
	}
	d.logger.Info("match decided", "winner", v.Winner.PlayerID, "loser", v.Loser.PlayerID, "reason", v.Reason)
	close(d.decided)
	if d.cfg.Recorder != nil {
		go d.submit(v)
	}
}

// submit records the verdict. Both clients submit; the store keeps the first.
func (d *Duel) submit(v Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.RecordTimeout)
	defer cancel()

	rec, err := d.cfg.Recorder.RecordBattle(ctx, v.Result(d.match.ID))
	if err != nil {
		d.logger.Warn("record battle failed", "error", err)
		return
	}
	d.mu.Lock()
	d.record = &rec
	d.mu.Unlock()
	d.logger.Info("battle recorded", "applied", rec.Applied,
		"winner_delta", rec.WinnerDelta, "loser_delta", rec.LoserDelta)
	d.notify()
}

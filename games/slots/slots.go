// Package slots implements the interactive three-reel slot session and
// the registry that tracks one live session per (channel, player).
package slots

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/L1ch7-DMC/dmps-schedule-bot/utils"
)

// Status is the session lifecycle state.
type Status string

const (
	StatusSpinning Status = "spinning"
	StatusResolved Status = "resolved"
	StatusTimedOut Status = "timed_out"
)

// allStopped marks the active-reel index once every reel has a
// committed symbol.
const allStopped = utils.SlotReelCount

// retireGrace is how long a timed-out session stays resolvable by ID,
// so late button clicks get a precise "timed out" answer.
const retireGrace = time.Minute

// Snapshot is an immutable view of a session, safe to hand to the
// presentation layer.
type Snapshot struct {
	ID         string
	Surface    string
	AccountID  int64
	Bet        int64
	Reels      [utils.SlotReelCount]string
	ActiveReel int // 0..2 while spinning, 3 once all reels stopped
	Status     Status
	Payout     int64
	NewBalance int64 // meaningful once Status is StatusResolved

	seq uint64
}

// Presenter renders session updates. Calls are serialized per session
// and stale animation frames are dropped, so the last call always
// carries the committed state.
type Presenter interface {
	Present(snap *Snapshot)
}

// Registry owns every live session, keyed by (surface, account).
// Placing a bet where a live session already exists supersedes it: the
// old session is cancelled like a timeout (its bet stays consumed) and
// the new bet is charged exactly once.
type Registry struct {
	mu        sync.Mutex
	bySurface map[surfaceKey]*Session
	byID      map[string]*Session
	ledger    *utils.Ledger

	tickInterval time.Duration
	idleTimeout  time.Duration
	randIntn     func(int) int
}

type surfaceKey struct {
	surface   string
	accountID int64
}

func NewRegistry(ledger *utils.Ledger) *Registry {
	return &Registry{
		bySurface:    make(map[surfaceKey]*Session),
		byID:         make(map[string]*Session),
		ledger:       ledger,
		tickInterval: utils.SlotTickInterval,
		idleTimeout:  utils.SlotIdleTimeout,
		randIntn:     rand.Intn,
	}
}

// Session is a per-player slot machine run. One mutex guards the whole
// state machine; committing a stop and cancelling its reel ticker
// happen under the same lock, so a late tick can never overwrite a
// committed symbol.
type Session struct {
	id        string
	surface   string
	accountID int64
	bet       int64

	registry *Registry
	ledger   *utils.Ledger

	mu           sync.Mutex
	reels        [utils.SlotReelCount]string
	activeReel   int
	status       Status
	payout       int64
	newBalance   int64
	seq          uint64
	tickCancel   context.CancelFunc
	idleTimer    *time.Timer
	lastActivity time.Time

	presenter     Presenter
	presentMu     sync.Mutex
	lastPresented uint64

	randIntn func(int) int
}

// PlaceBet debits bet atomically and starts a new session with reel 0
// spinning. If the debit fails no session is created. The returned
// snapshot is the initial display state; later frames arrive through
// the presenter.
func (r *Registry) PlaceBet(ctx context.Context, surface string, accountID, bet int64, presenter Presenter) (*Snapshot, error) {
	if bet < 1 {
		return nil, fmt.Errorf("%w: bet must be at least 1", utils.ErrValidation)
	}
	if _, err := r.ledger.Adjust(ctx, accountID, -bet); err != nil {
		return nil, err
	}

	s := &Session{
		id:        uuid.NewString(),
		surface:   surface,
		accountID: accountID,
		bet:       bet,
		registry:  r,
		ledger:    r.ledger,
		status:    StatusSpinning,
		presenter: presenter,
		randIntn:  r.randIntn,
	}
	for i := range s.reels {
		s.reels[i] = utils.SlotPlaceholder
	}

	key := surfaceKey{surface: surface, accountID: accountID}
	r.mu.Lock()
	old := r.bySurface[key]
	r.bySurface[key] = s
	r.byID[s.id] = s
	r.mu.Unlock()
	if old != nil {
		old.expire()
	}

	s.mu.Lock()
	s.lastActivity = time.Now()
	s.idleTimer = time.AfterFunc(r.idleTimeout, s.onIdleTimeout)
	s.startReelLocked(0)
	snap := s.snapshotLocked()
	s.mu.Unlock()
	return snap, nil
}

// Stop handles a stop event for one reel. Only the bettor may stop
// reels, and only the active one; everything else is rejected without
// mutating the session.
func (r *Registry) Stop(ctx context.Context, sessionID string, reelIndex int, requesterID int64) (*Snapshot, error) {
	r.mu.Lock()
	s, ok := r.byID[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, utils.ErrSessionNotActive
	}
	return s.stop(ctx, reelIndex, requesterID)
}

// Snapshot returns the current state of a live session.
func (r *Registry) Snapshot(sessionID string) (*Snapshot, bool) {
	r.mu.Lock()
	s, ok := r.byID[sessionID]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), true
}

// Close expires all live sessions; used at shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.expire()
	}
}

func (r *Registry) remove(s *Session) {
	key := surfaceKey{surface: s.surface, accountID: s.accountID}
	r.mu.Lock()
	if r.bySurface[key] == s {
		delete(r.bySurface, key)
	}
	delete(r.byID, s.id)
	r.mu.Unlock()
}

// retire frees the surface slot right away but keeps the session
// resolvable by ID until the grace window passes.
func (r *Registry) retire(s *Session) {
	key := surfaceKey{surface: s.surface, accountID: s.accountID}
	r.mu.Lock()
	if r.bySurface[key] == s {
		delete(r.bySurface, key)
	}
	r.mu.Unlock()
	time.AfterFunc(retireGrace, func() {
		r.mu.Lock()
		delete(r.byID, s.id)
		r.mu.Unlock()
	})
}

// startReelLocked makes reel k the active one and launches its
// animation ticker. Caller holds s.mu.
func (s *Session) startReelLocked(k int) {
	s.activeReel = k
	ctx, cancel := context.WithCancel(context.Background())
	s.tickCancel = cancel
	go s.tickLoop(ctx, k)
}

// tickLoop re-randomizes the active reel's displayed symbol until its
// context is cancelled. State checks run under the session mutex, so a
// tick that lost the race against a stop or timeout changes nothing.
func (s *Session) tickLoop(ctx context.Context, reel int) {
	ticker := time.NewTicker(s.registry.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.status != StatusSpinning || s.activeReel != reel {
				s.mu.Unlock()
				return
			}
			s.reels[reel] = s.randomSymbol()
			snap := s.snapshotLocked()
			s.mu.Unlock()
			s.present(snap)
		}
	}
}

func (s *Session) stop(ctx context.Context, reelIndex int, requesterID int64) (*Snapshot, error) {
	s.mu.Lock()
	switch {
	case s.status == StatusTimedOut:
		s.mu.Unlock()
		return nil, utils.ErrSessionTimedOut
	case s.status != StatusSpinning || s.activeReel == allStopped:
		s.mu.Unlock()
		return nil, utils.ErrSessionNotActive
	case requesterID != s.accountID:
		s.mu.Unlock()
		return nil, utils.ErrNotSessionOwner
	case reelIndex != s.activeReel:
		s.mu.Unlock()
		return nil, utils.ErrSessionNotActive
	}

	// Commit: cancel the ticker and fix the symbol in one critical
	// section, so no stale tick can land afterwards.
	s.tickCancel()
	s.tickCancel = nil
	s.reels[reelIndex] = s.randomSymbol()

	if reelIndex < utils.SlotReelCount-1 {
		s.lastActivity = time.Now()
		s.idleTimer.Reset(s.registry.idleTimeout)
		s.startReelLocked(reelIndex + 1)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.present(snap)
		return snap, nil
	}

	// Final reel: from here the timeout is a no-op (activeReel is
	// allStopped before the lock drops for the payout write).
	s.activeReel = allStopped
	s.idleTimer.Stop()
	payout := payoutFor(s.reels, s.bet)
	s.mu.Unlock()

	newBalance, err := s.settle(ctx, payout)
	if err != nil {
		s.registry.remove(s)
		return nil, err
	}

	s.mu.Lock()
	s.status = StatusResolved
	s.payout = payout
	s.newBalance = newBalance
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.present(snap)
	s.registry.remove(s)
	return snap, nil
}

// settle credits the payout. If the credit fails the entry bet is
// refunded through a compensating credit so funds are never lost.
func (s *Session) settle(ctx context.Context, payout int64) (int64, error) {
	if payout == 0 {
		return s.ledger.GetBalance(ctx, s.accountID)
	}
	newBalance, err := s.ledger.Adjust(ctx, s.accountID, payout)
	if err == nil {
		return newBalance, nil
	}
	if _, refundErr := s.ledger.Adjust(ctx, s.accountID, s.bet); refundErr != nil {
		return 0, fmt.Errorf("payout failed and refund of %d failed too: %w", s.bet, refundErr)
	}
	return 0, fmt.Errorf("payout failed, bet refunded: %w", err)
}

// onIdleTimeout forfeits the session after the idle window. The status
// guard makes it fire at most once and lose cleanly to a stop that
// committed first. Timer.Reset cannot recall a fire that has already
// expired and is queued behind s.mu, so the deadline is re-validated
// here: a stale fire that lost the race to an accepted stop re-arms the
// timer for the remaining window instead of forfeiting.
func (s *Session) onIdleTimeout() {
	s.mu.Lock()
	if s.status != StatusSpinning || s.activeReel == allStopped {
		s.mu.Unlock()
		return
	}
	if remaining := s.registry.idleTimeout - time.Since(s.lastActivity); remaining > 0 {
		s.idleTimer.Reset(remaining)
		s.mu.Unlock()
		return
	}
	s.forfeit()
}

// forfeit marks the session timed out and announces it. Caller holds
// s.mu; forfeit releases it.
func (s *Session) forfeit() {
	s.status = StatusTimedOut
	if s.tickCancel != nil {
		s.tickCancel()
		s.tickCancel = nil
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.present(snap)
	s.registry.retire(s)
}

// expire is timeout-by-force: used when a newer session supersedes
// this one or the registry shuts down.
func (s *Session) expire() {
	s.mu.Lock()
	if s.status != StatusSpinning || s.activeReel == allStopped {
		s.mu.Unlock()
		return
	}
	s.idleTimer.Stop()
	s.forfeit()
}

func (s *Session) randomSymbol() string {
	return utils.SlotReelSymbols[s.randIntn(len(utils.SlotReelSymbols))]
}

func (s *Session) snapshotLocked() *Snapshot {
	s.seq++
	return &Snapshot{
		ID:         s.id,
		Surface:    s.surface,
		AccountID:  s.accountID,
		Bet:        s.bet,
		Reels:      s.reels,
		ActiveReel: s.activeReel,
		Status:     s.status,
		Payout:     s.payout,
		NewBalance: s.newBalance,
		seq:        s.seq,
	}
}

// present serializes presenter calls and drops frames that were
// overtaken by a newer snapshot.
func (s *Session) present(snap *Snapshot) {
	if s.presenter == nil {
		return
	}
	s.presentMu.Lock()
	defer s.presentMu.Unlock()
	if snap.seq < s.lastPresented {
		return
	}
	s.lastPresented = snap.seq
	s.presenter.Present(snap)
}

// payoutFor applies the payout table: three jackpot symbols pay 20x,
// any other triple 10x, exactly two identical 3x.
func payoutFor(reels [utils.SlotReelCount]string, bet int64) int64 {
	distinct := make(map[string]bool, len(reels))
	for _, sym := range reels {
		distinct[sym] = true
	}
	switch len(distinct) {
	case 1:
		if reels[0] == utils.SlotJackpotSymbol {
			return bet * utils.SlotJackpotPayout
		}
		return bet * utils.SlotTriplePayout
	case 2:
		return bet * utils.SlotDoublePayout
	default:
		return 0
	}
}

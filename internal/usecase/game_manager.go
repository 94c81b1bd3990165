package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
	"github.com/rocketscienceinc/rose-tictactoe/internal/service"
	"github.com/rocketscienceinc/rose-tictactoe/internal/tictactoe"
)

const (
	defaultComputerDelay = 600 * time.Millisecond
	defaultReportTimeout = 5 * time.Second
)

type FeedbackNotifier interface {
	Notify(userID int64, kind entity.FeedbackKind)
}

type ResultReporter interface {
	// ReportResult - stores a finished game and returns it as stored; the
	// promo code may differ from the one sent.
	ReportResult(ctx context.Context, result entity.GameResult) (entity.GameResult, error)
}

type StatsSource interface {
	LoadStats(ctx context.Context, userID int64) (entity.Tally, error)
}

type SessionObserver interface {
	SessionChanged(userID int64, session entity.Session)
}

type Timer interface {
	Stop() bool
}

// Scheduler runs f once after d on its own goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clockScheduler struct{}

func NewScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Dependencies - collaborators shared by every GameManager. Nil
// collaborators are skipped.
type Dependencies struct {
	Scheduler Scheduler
	Rand      service.Rand
	Feedback  FeedbackNotifier
	Reporter  ResultReporter
	Observer  SessionObserver

	ComputerDelay time.Duration
	ReportTimeout time.Duration
}

func (that Dependencies) withDefaults() Dependencies {
	if that.Scheduler == nil {
		that.Scheduler = NewScheduler()
	}
	if that.Rand == nil {
		that.Rand = service.NewRand()
	}
	if that.ComputerDelay <= 0 {
		that.ComputerDelay = defaultComputerDelay
	}
	if that.ReportTimeout <= 0 {
		that.ReportTimeout = defaultReportTimeout
	}

	return that
}

// GameManager owns one user's Session. Every transition runs under mu;
// collaborators are called after it is released.
type GameManager struct {
	logger *slog.Logger
	user   entity.User
	deps   Dependencies

	mu      sync.Mutex
	session entity.Session
	closed  bool

	// timer is the pending computer turn for timerBoard; timerGen tells a
	// fired callback whether it is still the live one.
	timer      Timer
	timerGen   uint64
	timerBoard entity.Board

	reports sync.WaitGroup
}

// change is what a transition hands to the collaborators.
type change struct {
	session  entity.Session
	changed  bool
	feedback []entity.FeedbackKind

	report *entity.GameResult
}

func NewGameManager(logger *slog.Logger, user entity.User, stats entity.Tally, deps Dependencies) *GameManager {
	return &GameManager{
		logger:  logger.With("component", "game_manager", "user_id", user.ID),
		user:    user,
		deps:    deps.withDefaults(),
		session: entity.NewSession(stats),
	}
}

func (that *GameManager) User() entity.User {
	return that.user
}

func (that *GameManager) State() entity.Session {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.session
}

// SelectMark - picks the human mark; ignored outside setup.
func (that *GameManager) SelectMark(mark entity.Mark) entity.Session {
	return that.run(tictactoe.SelectMark{Mark: mark}, func(before entity.Session) []entity.FeedbackKind {
		if before.Status != entity.StatusSetup {
			return nil
		}
		return []entity.FeedbackKind{entity.FeedbackSelection}
	})
}

// SelectDifficulty - applies to computer turns that have not fired yet.
func (that *GameManager) SelectDifficulty(difficulty entity.Difficulty) entity.Session {
	return that.run(tictactoe.SelectDifficulty{Difficulty: difficulty}, func(entity.Session) []entity.FeedbackKind {
		if _, err := entity.ParseDifficulty(string(difficulty)); err != nil {
			return nil
		}
		return []entity.FeedbackKind{entity.FeedbackSelection}
	})
}

func (that *GameManager) StartGame() entity.Session {
	return that.run(tictactoe.StartGame{}, always(entity.FeedbackMedium))
}

func (that *GameManager) ResetGame() entity.Session {
	return that.run(tictactoe.ResetGame{}, always(entity.FeedbackLight))
}

func (that *GameManager) GoToSetup() entity.Session {
	return that.run(tictactoe.GoToSetup{}, always(entity.FeedbackLight))
}

// MakeMove - places the human mark. Returns false when the move was ignored.
func (that *GameManager) MakeMove(cell int) (entity.Session, bool) {
	that.mu.Lock()
	c := that.applyLocked(tictactoe.HumanMove{Cell: cell})
	if c.changed {
		c.feedback = append([]entity.FeedbackKind{entity.FeedbackLight}, c.feedback...)
	}
	that.mu.Unlock()

	that.publish(c)

	return c.session, c.changed
}

// Wait - blocks until every pending result report has finished.
func (that *GameManager) Wait() {
	that.reports.Wait()
}

// Close - cancels the pending computer turn. Later transitions never
// schedule one again.
func (that *GameManager) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	that.stopTimerLocked()
}

func always(kind entity.FeedbackKind) func(entity.Session) []entity.FeedbackKind {
	return func(entity.Session) []entity.FeedbackKind {
		return []entity.FeedbackKind{kind}
	}
}

func (that *GameManager) run(event tictactoe.Event, feedback func(before entity.Session) []entity.FeedbackKind) entity.Session {
	that.mu.Lock()
	before := that.session
	c := that.applyLocked(event)
	c.feedback = append(feedback(before), c.feedback...)
	that.mu.Unlock()

	that.publish(c)

	return c.session
}

// applyLocked - runs event, settles terminal entry and the computer timer.
func (that *GameManager) applyLocked(event tictactoe.Event) change {
	before := that.session
	after := tictactoe.Apply(before, event)

	c := change{changed: after != before}

	if !before.Status.IsTerminal() && after.Status.IsTerminal() {
		if after.Status == entity.StatusWin {
			after.PromoCode = service.GeneratePromoCode(that.deps.Rand)
		}

		c.feedback = append(c.feedback, terminalFeedback(after.Status))

		// counted under mu: nothing is added once Close has run
		if that.deps.Reporter != nil && !that.closed {
			that.reports.Add(1)
			c.report = &entity.GameResult{
				UserID:     that.user.ID,
				Username:   that.user.Username,
				Status:     after.Status,
				Difficulty: after.Difficulty,
				PromoCode:  after.PromoCode,
			}
		}
	}

	that.session = after
	that.scheduleLocked()

	c.session = after

	return c
}

func terminalFeedback(status entity.Status) entity.FeedbackKind {
	switch status {
	case entity.StatusWin:
		return entity.FeedbackSuccess
	case entity.StatusLoss:
		return entity.FeedbackError
	default:
		return entity.FeedbackWarning
	}
}

// scheduleLocked - keeps exactly one timer alive while the computer is to
// move. A pending turn survives changes that leave the board as it was.
func (that *GameManager) scheduleLocked() {
	if that.closed || !tictactoe.NeedsComputerMove(that.session) {
		that.stopTimerLocked()
		return
	}

	if that.timer != nil && that.timerBoard == that.session.Board {
		return
	}

	that.stopTimerLocked()

	that.timerGen++
	gen := that.timerGen
	that.timerBoard = that.session.Board
	that.timer = that.deps.Scheduler.AfterFunc(that.deps.ComputerDelay, func() {
		that.computerTurn(gen)
	})
}

func (that *GameManager) stopTimerLocked() {
	if that.timer == nil {
		return
	}

	that.timer.Stop()
	that.timer = nil
}

func (that *GameManager) computerTurn(gen uint64) {
	log := that.logger.With("method", "computerTurn")

	that.mu.Lock()
	if that.closed || that.timer == nil || that.timerGen != gen || !tictactoe.NeedsComputerMove(that.session) {
		that.mu.Unlock()
		log.Debug("stale computer turn dropped", "generation", gen)
		return
	}
	that.timer = nil

	policy, err := service.NewMovePolicy(that.session.Difficulty, that.deps.Rand)
	if err != nil {
		that.mu.Unlock()
		log.Error("failed to pick move policy", "error", err)
		return
	}

	cell := policy.ChooseCell(that.session.Board, that.session.ComputerMark, that.session.PlayerMark)
	c := that.applyLocked(tictactoe.ComputerMove{Cell: cell})
	that.mu.Unlock()

	log.Debug("computer moved", "cell", cell)
	that.publish(c)
}

func (that *GameManager) publish(c change) {
	if that.deps.Feedback != nil {
		for _, kind := range c.feedback {
			that.deps.Feedback.Notify(that.user.ID, kind)
		}
	}

	if c.changed && that.deps.Observer != nil {
		that.deps.Observer.SessionChanged(that.user.ID, c.session)
	}

	if c.report != nil {
		that.report(*c.report, c.session)
	}
}

// report - the caller has already counted it in reports.
func (that *GameManager) report(result entity.GameResult, ended entity.Session) {
	log := that.logger.With("method", "report")

	go func() {
		defer that.reports.Done()

		ctx, cancel := context.WithTimeout(context.Background(), that.deps.ReportTimeout)
		defer cancel()

		stored, err := that.deps.Reporter.ReportResult(ctx, result)
		if err != nil {
			log.Error("failed to report game result", "status", result.Status, "error", err)
			return
		}

		log.Info("game result reported", "status", result.Status)

		if stored.PromoCode != "" && stored.PromoCode != result.PromoCode {
			that.settlePromoCode(ended, stored.PromoCode)
		}
	}()
}

// settlePromoCode - shows the stored promo code instead of the generated one
// while the won game is still on screen.
func (that *GameManager) settlePromoCode(won entity.Session, code string) {
	log := that.logger.With("method", "settlePromoCode")

	that.mu.Lock()
	current := that.session
	if current.Status != won.Status || current.Board != won.Board || current.PromoCode != won.PromoCode {
		that.mu.Unlock()
		log.Warn("game moved on before the stored promo code arrived", "code", code)
		return
	}
	c := that.applyLocked(tictactoe.AssignPromoCode{Code: code})
	that.mu.Unlock()

	log.Info("promo code replaced by the stored one", "code", code)
	that.publish(c)
}

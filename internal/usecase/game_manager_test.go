package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
	"github.com/rocketscienceinc/rose-tictactoe/internal/repository"
	"github.com/rocketscienceinc/rose-tictactoe/internal/service"
	"github.com/rocketscienceinc/rose-tictactoe/internal/tictactoe"
	"github.com/rocketscienceinc/rose-tictactoe/testing/suite"
)

var errReportFailed = errors.New("report failed")

type manualTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (that *manualTimer) Stop() bool {
	if that.stopped || that.fired {
		return false
	}
	that.stopped = true

	return true
}

// manualScheduler fires timers only when the test says so.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (that *manualScheduler) AfterFunc(_ time.Duration, f func()) Timer {
	that.mu.Lock()
	defer that.mu.Unlock()

	timer := &manualTimer{f: f}
	that.timers = append(that.timers, timer)

	return timer
}

func (that *manualScheduler) pending() []*manualTimer {
	that.mu.Lock()
	defer that.mu.Unlock()

	var out []*manualTimer
	for _, timer := range that.timers {
		if !timer.stopped && !timer.fired {
			out = append(out, timer)
		}
	}

	return out
}

func (that *manualScheduler) fireAll() int {
	timers := that.pending()

	that.mu.Lock()
	for _, timer := range timers {
		timer.fired = true
	}
	that.mu.Unlock()

	for _, timer := range timers {
		timer.f()
	}

	return len(timers)
}

type fixedRand struct{ n int }

func (that fixedRand) Intn(n int) int { return that.n % n }

type mockFeedback struct{ mock.Mock }

func (that *mockFeedback) Notify(userID int64, kind entity.FeedbackKind) {
	that.Called(userID, kind)
}

type mockReporter struct{ mock.Mock }

func (that *mockReporter) ReportResult(ctx context.Context, result entity.GameResult) (entity.GameResult, error) {
	args := that.Called(ctx, result)
	return args.Get(0).(entity.GameResult), args.Error(1)
}

type recordingObserver struct {
	mu       sync.Mutex
	sessions []entity.Session
}

func (that *recordingObserver) SessionChanged(_ int64, session entity.Session) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.sessions = append(that.sessions, session)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var testUser = entity.User{ID: 7, Username: "rose"}

func TestGameManager_HumanWin(t *testing.T) {
	// Given: a strategic computer and deterministic randomness
	scheduler := &manualScheduler{}
	feedback := &mockFeedback{}
	reporter := &mockReporter{}
	observer := &recordingObserver{}

	manager := NewGameManager(testLogger(), testUser, entity.Tally{Wins: 3}, Dependencies{
		Scheduler: scheduler,
		Rand:      fixedRand{n: 4242},
		Feedback:  feedback,
		Reporter:  reporter,
		Observer:  observer,
	})
	defer manager.Close()

	feedback.On("Notify", testUser.ID, entity.FeedbackSelection).Once()
	feedback.On("Notify", testUser.ID, entity.FeedbackMedium).Once()
	feedback.On("Notify", testUser.ID, entity.FeedbackLight).Times(4)
	feedback.On("Notify", testUser.ID, entity.FeedbackSuccess).Once()

	reporter.On("ReportResult", mock.Anything, entity.GameResult{
		UserID:     testUser.ID,
		Username:   testUser.Username,
		Status:     entity.StatusWin,
		Difficulty: entity.DifficultyStrategic,
		PromoCode:  "14242",
	}).Return(entity.GameResult{}, nil).Once()

	manager.SelectDifficulty(entity.DifficultyStrategic)
	manager.StartGame()

	// When: the human plays 0, 1, 6, 3 while the computer answers 4, 2, 5
	for _, cell := range []int{0, 1, 6} {
		_, ok := manager.MakeMove(cell)
		require.True(t, ok)
		require.Equal(t, 1, scheduler.fireAll())
	}
	session, ok := manager.MakeMove(3)
	require.True(t, ok)
	manager.Wait()

	// Then: the human wins on the left column and gets a promo code
	assert.Equal(t, entity.StatusWin, session.Status)
	require.NotNil(t, session.WinningLine)
	assert.Equal(t, entity.Line{0, 3, 6}, *session.WinningLine)
	assert.Equal(t, entity.Tally{Wins: 4}, session.Stats)
	assert.Equal(t, "14242", session.PromoCode)
	assert.Empty(t, scheduler.pending())

	feedback.AssertExpectations(t)
	reporter.AssertExpectations(t)

	observer.mu.Lock()
	defer observer.mu.Unlock()
	require.NotEmpty(t, observer.sessions)
	assert.Equal(t, session, observer.sessions[len(observer.sessions)-1])
}

func TestGameManager_ComputerTurn(t *testing.T) {
	t.Run("Computer moves first when the human picks the second mark", func(t *testing.T) {
		scheduler := &manualScheduler{}
		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{},
		})
		defer manager.Close()

		// Given: the human plays ring
		manager.SelectMark(entity.MarkRing)

		// When: the game starts
		manager.StartGame()

		// Then: exactly one computer turn is pending and it places a diamond
		require.Len(t, scheduler.pending(), 1)
		scheduler.fireAll()

		session := manager.State()
		assert.Equal(t, entity.MarkDiamond, session.Board[0])
		assert.Equal(t, entity.MarkRing, session.Turn)
		assert.True(t, session.IsPlayerTurn())
	})

	t.Run("Stale timer after reset is a no-op", func(t *testing.T) {
		scheduler := &manualScheduler{}
		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{},
		})
		defer manager.Close()

		// Given: a pending computer turn
		manager.SelectMark(entity.MarkRing)
		manager.StartGame()
		stale := scheduler.pending()
		require.Len(t, stale, 1)

		// When: the human goes back to setup and the old timer fires anyway
		manager.GoToSetup()
		stale[0].f()

		// Then: nothing was placed and nothing is pending
		session := manager.State()
		assert.Equal(t, entity.Board{}, session.Board)
		assert.Equal(t, entity.StatusSetup, session.Status)
		assert.True(t, stale[0].stopped)
		assert.Empty(t, scheduler.pending())
	})

	t.Run("Reset replaces the pending timer", func(t *testing.T) {
		scheduler := &manualScheduler{}
		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{},
		})
		defer manager.Close()

		manager.SelectMark(entity.MarkRing)
		manager.StartGame()
		stale := scheduler.pending()
		require.Len(t, stale, 1)

		manager.ResetGame()
		stale[0].f()

		// Then: the stale fire did nothing and a fresh timer waits
		assert.Equal(t, entity.Board{}, manager.State().Board)
		require.Len(t, scheduler.pending(), 1)

		scheduler.fireAll()
		assert.Len(t, tictactoe.EmptyIndices(manager.State().Board), entity.BoardSize-1)
	})

	t.Run("Difficulty is read when the timer fires", func(t *testing.T) {
		scheduler := &manualScheduler{}
		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{},
		})
		defer manager.Close()

		// Given: a relaxed game where the human took cell 0
		manager.StartGame()
		_, ok := manager.MakeMove(0)
		require.True(t, ok)

		// When: the difficulty changes before the computer moves
		before := scheduler.pending()
		require.Len(t, before, 1)
		manager.SelectDifficulty(entity.DifficultyMaster)
		after := scheduler.pending()
		require.Len(t, after, 1)
		assert.Same(t, before[0], after[0])
		scheduler.fireAll()

		// Then: the master bot takes the center instead of the first free cell
		session := manager.State()
		assert.Equal(t, entity.MarkRing, session.Board[4])
		assert.Equal(t, entity.MarkEmpty, session.Board[1])
	})

	t.Run("Close cancels the pending turn", func(t *testing.T) {
		scheduler := &manualScheduler{}
		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{},
		})

		manager.SelectMark(entity.MarkRing)
		manager.StartGame()
		pending := scheduler.pending()
		require.Len(t, pending, 1)

		manager.Close()
		pending[0].f()

		assert.Empty(t, scheduler.pending())
		assert.Equal(t, entity.Board{}, manager.State().Board)
	})
}

func TestGameManager_MakeMove(t *testing.T) {
	t.Run("Ignored moves report false and stay silent", func(t *testing.T) {
		scheduler := &manualScheduler{}
		feedback := &mockFeedback{}
		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{},
			Feedback:  feedback,
		})
		defer manager.Close()

		// When: moving during setup
		before := manager.State()
		session, ok := manager.MakeMove(4)

		// Then: nothing changes and no feedback is sent
		assert.False(t, ok)
		assert.Equal(t, before, session)
		feedback.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	})

	t.Run("Occupied cell is ignored", func(t *testing.T) {
		scheduler := &manualScheduler{}
		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{},
		})
		defer manager.Close()

		manager.StartGame()
		_, ok := manager.MakeMove(0)
		require.True(t, ok)
		scheduler.fireAll()

		_, ok = manager.MakeMove(0)
		assert.False(t, ok)
	})
}

func TestGameManager_ReportFailure(t *testing.T) {
	// Given: a reporter that always fails and a computer that moves first
	scheduler := &manualScheduler{}
	reporter := &mockReporter{}
	reporter.On("ReportResult", mock.Anything, mock.AnythingOfType("entity.GameResult")).Return(entity.GameResult{}, errReportFailed)

	manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
		Scheduler: scheduler,
		Rand:      service.NewRand(),
		Reporter:  reporter,
	})
	defer manager.Close()

	// When: a whole game is played
	manager.StartGame()
	playToEnd(t, manager, scheduler)
	manager.Wait()

	// Then: the session still settles normally
	session := manager.State()
	assert.True(t, session.Status.IsTerminal())
	assert.Equal(t, 1, session.Stats.Total())
	reporter.AssertNumberOfCalls(t, "ReportResult", 1)
}

func TestGameManager_FiftyGames(t *testing.T) {
	scheduler := &manualScheduler{}
	reporter := &mockReporter{}
	reporter.On("ReportResult", mock.Anything, mock.AnythingOfType("entity.GameResult")).Return(entity.GameResult{}, nil)

	manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
		Scheduler: scheduler,
		Rand:      service.NewRand(),
		Reporter:  reporter,
	})
	defer manager.Close()

	difficulties := []entity.Difficulty{entity.DifficultyRelaxed, entity.DifficultyStrategic, entity.DifficultyMaster}

	// When: fifty games are played across every difficulty
	manager.StartGame()
	for game := 0; game < 50; game++ {
		manager.SelectDifficulty(difficulties[game%len(difficulties)])
		playToEnd(t, manager, scheduler)
		manager.ResetGame()
	}
	manager.Wait()

	// Then: every game counted exactly once
	stats := manager.State().Stats
	assert.Equal(t, 50, stats.Total())
	reporter.AssertNumberOfCalls(t, "ReportResult", 50)
}

// playToEnd - the human always takes the lowest free cell.
func playToEnd(t *testing.T, manager *GameManager, scheduler *manualScheduler) {
	t.Helper()

	for i := 0; i < entity.BoardSize+1; i++ {
		session := manager.State()
		switch {
		case session.Status.IsTerminal():
			return
		case session.IsPlayerTurn():
			_, ok := manager.MakeMove(tictactoe.EmptyIndices(session.Board)[0])
			require.True(t, ok)
		default:
			require.Equal(t, 1, scheduler.fireAll())
		}
	}

	require.True(t, manager.State().Status.IsTerminal(), "game did not finish")
}

// winAsStrategic - human 0, 1, 6, 3 against a strategic computer answering
// 4, 2, 5; the last move is left to the caller.
func winAsStrategic(t *testing.T, manager *GameManager, scheduler *manualScheduler) {
	t.Helper()

	manager.SelectDifficulty(entity.DifficultyStrategic)
	manager.StartGame()
	for _, cell := range []int{0, 1, 6} {
		_, ok := manager.MakeMove(cell)
		require.True(t, ok)
		require.Equal(t, 1, scheduler.fireAll())
	}
}

func TestGameManager_StoredPromoCode(t *testing.T) {
	t.Run("Replaces the shown code", func(t *testing.T) {
		scheduler := &manualScheduler{}
		reporter := &mockReporter{}
		observer := &recordingObserver{}
		reporter.On("ReportResult", mock.Anything, mock.AnythingOfType("entity.GameResult")).
			Return(entity.GameResult{PromoCode: "10001"}, nil).Once()

		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{n: 4242},
			Reporter:  reporter,
			Observer:  observer,
		})
		defer manager.Close()

		// Given: a won game showing the generated code
		winAsStrategic(t, manager, scheduler)
		shown, ok := manager.MakeMove(3)
		require.True(t, ok)
		require.Equal(t, "14242", shown.PromoCode)

		// When: the reporter stored a different one
		manager.Wait()

		// Then: the session and the last push carry the stored code
		session := manager.State()
		assert.Equal(t, "10001", session.PromoCode)
		assert.Equal(t, entity.StatusWin, session.Status)
		assert.Greater(t, session.Version, shown.Version)

		observer.mu.Lock()
		defer observer.mu.Unlock()
		assert.Equal(t, session, observer.sessions[len(observer.sessions)-1])
	})

	t.Run("Late code is dropped after a reset", func(t *testing.T) {
		scheduler := &manualScheduler{}
		reporter := &mockReporter{}
		release := make(chan struct{})
		reporter.On("ReportResult", mock.Anything, mock.AnythingOfType("entity.GameResult")).
			Run(func(mock.Arguments) { <-release }).
			Return(entity.GameResult{PromoCode: "10001"}, nil).Once()

		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{n: 4242},
			Reporter:  reporter,
		})
		defer manager.Close()

		winAsStrategic(t, manager, scheduler)
		_, ok := manager.MakeMove(3)
		require.True(t, ok)

		// When: the player starts over before the report returns
		manager.ResetGame()
		close(release)
		manager.Wait()

		// Then: the new game is untouched
		session := manager.State()
		assert.Equal(t, entity.StatusPlaying, session.Status)
		assert.Empty(t, session.PromoCode)
	})

	t.Run("Shown code is redeemable when it collides", func(t *testing.T) {
		ctx := context.Background()
		resultRepo := repository.NewResultRepository(suite.SQLite(t).Connection)
		results := service.NewResultService(testLogger(), resultRepo, nil, fixedRand{n: 1})

		// Given: code 14242 already belongs to user 1
		_, err := results.RecordResult(ctx, entity.GameResult{
			UserID: 1, Status: entity.StatusWin, Difficulty: entity.DifficultyMaster, PromoCode: "14242",
		})
		require.NoError(t, err)

		scheduler := &manualScheduler{}
		manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
			Scheduler: scheduler,
			Rand:      fixedRand{n: 4242},
			Reporter:  results,
		})
		defer manager.Close()

		// When: user 7 wins and is first shown the same code
		winAsStrategic(t, manager, scheduler)
		_, ok := manager.MakeMove(3)
		require.True(t, ok)
		manager.Wait()

		// Then: the code on screen is the one that can be redeemed
		session := manager.State()
		assert.Equal(t, "10001", session.PromoCode)

		promo, err := results.ValidatePromoCode(ctx, session.PromoCode, testUser.ID)
		require.NoError(t, err)
		assert.True(t, promo.IsUsed)
	})
}

func TestGameManager_ClosedSkipsReports(t *testing.T) {
	scheduler := &manualScheduler{}
	reporter := &mockReporter{}

	manager := NewGameManager(testLogger(), testUser, entity.Tally{}, Dependencies{
		Scheduler: scheduler,
		Rand:      fixedRand{n: 4242},
		Reporter:  reporter,
	})

	// Given: a game one move from a win
	winAsStrategic(t, manager, scheduler)

	// When: the manager is closed and the winning move still arrives
	manager.Close()
	session, ok := manager.MakeMove(3)
	manager.Wait()

	// Then: the move settles but nothing is reported
	require.True(t, ok)
	assert.Equal(t, entity.StatusWin, session.Status)
	reporter.AssertNotCalled(t, "ReportResult", mock.Anything, mock.Anything)
}

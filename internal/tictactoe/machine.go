package tictactoe

import "github.com/rocketscienceinc/rose-tictactoe/internal/entity"

// Event is an input to the session state machine.
type Event interface {
	apply(session entity.Session) entity.Session
}

type SelectMark struct{ Mark entity.Mark }

type SelectDifficulty struct{ Difficulty entity.Difficulty }

type StartGame struct{}

type ResetGame struct{}

type GoToSetup struct{}

type HumanMove struct{ Cell int }

type ComputerMove struct{ Cell int }

// AssignPromoCode replaces the code shown for a won game with the one that
// was actually stored.
type AssignPromoCode struct{ Code string }

// Apply - runs one transition. Rejected events return the session unchanged.
func Apply(session entity.Session, event Event) entity.Session {
	return event.apply(session)
}

// NeedsComputerMove reports whether the session waits on the computer.
func NeedsComputerMove(session entity.Session) bool {
	return session.IsComputerTurn()
}

func (that SelectMark) apply(session entity.Session) entity.Session {
	if session.Status != entity.StatusSetup {
		return session
	}

	if that.Mark != entity.MarkDiamond && that.Mark != entity.MarkRing {
		return session
	}

	if that.Mark == session.PlayerMark {
		return session
	}

	session.PlayerMark = that.Mark
	session.ComputerMark = that.Mark.Opponent()
	session.Version++

	return session
}

func (that SelectDifficulty) apply(session entity.Session) entity.Session {
	if _, err := entity.ParseDifficulty(string(that.Difficulty)); err != nil || that.Difficulty == session.Difficulty {
		return session
	}

	session.Difficulty = that.Difficulty
	session.Version++

	return session
}

func (StartGame) apply(session entity.Session) entity.Session {
	return clearBoard(session, entity.StatusPlaying)
}

func (ResetGame) apply(session entity.Session) entity.Session {
	return clearBoard(session, entity.StatusPlaying)
}

func (GoToSetup) apply(session entity.Session) entity.Session {
	return clearBoard(session, entity.StatusSetup)
}

func (that HumanMove) apply(session entity.Session) entity.Session {
	if !session.IsPlayerTurn() {
		return session
	}

	return place(session, session.PlayerMark, that.Cell, entity.StatusWin)
}

func (that ComputerMove) apply(session entity.Session) entity.Session {
	if !session.IsComputerTurn() {
		return session
	}

	return place(session, session.ComputerMark, that.Cell, entity.StatusLoss)
}

func (that AssignPromoCode) apply(session entity.Session) entity.Session {
	if session.Status != entity.StatusWin || that.Code == "" || that.Code == session.PromoCode {
		return session
	}

	session.PromoCode = that.Code
	session.Version++

	return session
}

func clearBoard(session entity.Session, status entity.Status) entity.Session {
	session.Board = entity.Board{}
	session.Turn = entity.FirstMark
	session.Status = status
	session.WinningLine = nil
	session.PromoCode = ""
	session.Version++

	return session
}

// place - puts mark on an empty cell and settles the outcome; wonStatus is
// the status the mover's win means for the human.
func place(session entity.Session, mark entity.Mark, cell int, wonStatus entity.Status) entity.Session {
	if !validCell(cell) || session.Board[cell] != entity.MarkEmpty {
		return session
	}

	session.Board[cell] = mark
	session.Version++

	switch outcome := Evaluate(session.Board); outcome.Kind {
	case entity.OutcomeWon:
		line := outcome.Line
		session.Status = wonStatus
		session.WinningLine = &line
		if wonStatus == entity.StatusWin {
			session.Stats.Wins++
		} else {
			session.Stats.Losses++
		}
	case entity.OutcomeDraw:
		session.Status = entity.StatusDraw
		session.Stats.Draws++
	default:
		session.Turn = mark.Opponent()
	}

	return session
}

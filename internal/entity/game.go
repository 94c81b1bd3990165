package entity

import "errors"

type Mark string

const (
	MarkEmpty   Mark = ""
	MarkDiamond Mark = "diamond"
	MarkRing    Mark = "ring"

	// FirstMark always opens the game.
	FirstMark = MarkDiamond
)

type Status string

const (
	StatusSetup   Status = "setup"
	StatusPlaying Status = "playing"
	StatusWin     Status = "win"
	StatusLoss    Status = "loss"
	StatusDraw    Status = "draw"
)

type Difficulty string

const (
	DifficultyRelaxed   Difficulty = "relaxed"
	DifficultyStrategic Difficulty = "strategic"
	DifficultyMaster    Difficulty = "master"
)

const BoardSize = 9

var (
	ErrUnknownMark       = errors.New("unknown mark")
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrUnknownStatus     = errors.New("unknown game status")
)

// Board is a 3x3 grid stored row-major.
type Board [BoardSize]Mark

// Line is an index triple that wins when uniformly marked.
type Line [3]int

// WinCombos - rows, then columns, then diagonals.
var WinCombos = [8]Line{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

func ParseMark(value string) (Mark, error) {
	switch mark := Mark(value); mark {
	case MarkDiamond, MarkRing:
		return mark, nil
	default:
		return MarkEmpty, ErrUnknownMark
	}
}

// Opponent - returns the other playing mark.
func (that Mark) Opponent() Mark {
	if that == MarkDiamond {
		return MarkRing
	}
	return MarkDiamond
}

func ParseDifficulty(value string) (Difficulty, error) {
	switch difficulty := Difficulty(value); difficulty {
	case DifficultyRelaxed, DifficultyStrategic, DifficultyMaster:
		return difficulty, nil
	default:
		return "", ErrUnknownDifficulty
	}
}

// ParseResultStatus accepts only terminal statuses.
func ParseResultStatus(value string) (Status, error) {
	switch status := Status(value); status {
	case StatusWin, StatusLoss, StatusDraw:
		return status, nil
	default:
		return "", ErrUnknownStatus
	}
}

func (that Status) IsTerminal() bool {
	return that == StatusWin || that == StatusLoss || that == StatusDraw
}

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeWon
	OutcomeDraw
)

// Outcome is derived from a board, never stored on its own.
type Outcome struct {
	Kind   OutcomeKind
	Winner Mark
	Line   Line
}

// Tally holds the human's running results.
type Tally struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

func (that Tally) Total() int {
	return that.Wins + that.Losses + that.Draws
}

// Session is the whole state of one player's game.
type Session struct {
	Board        Board      `json:"board"`
	Turn         Mark       `json:"current_turn"`
	PlayerMark   Mark       `json:"player_symbol"`
	ComputerMark Mark       `json:"computer_symbol"`
	Difficulty   Difficulty `json:"difficulty"`
	Status       Status     `json:"status"`
	WinningLine  *Line      `json:"winning_line"`
	Stats        Tally      `json:"stats"`
	PromoCode    string     `json:"promo_code,omitempty"`

	// Version grows on every board or status change.
	Version uint64 `json:"version"`
}

func NewSession(stats Tally) Session {
	return Session{
		Turn:         FirstMark,
		PlayerMark:   MarkDiamond,
		ComputerMark: MarkRing,
		Difficulty:   DifficultyRelaxed,
		Status:       StatusSetup,
		Stats:        stats,
	}
}

func (that Session) IsPlayerTurn() bool {
	return that.Status == StatusPlaying && that.Turn == that.PlayerMark
}

func (that Session) IsComputerTurn() bool {
	return that.Status == StatusPlaying && that.Turn == that.ComputerMark
}

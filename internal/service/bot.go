package service

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
	"github.com/rocketscienceinc/rose-tictactoe/internal/tictactoe"
)

var ErrNoAvailableMoves = errors.New("no available moves")

const centerCell = 4

var corners = [...]int{0, 2, 6, 8}

// adjacentCells lists the grid neighbours of every cell. The order is part
// of the strategic bot's behaviour.
var adjacentCells = [entity.BoardSize][]int{
	0: {1, 3, 4},
	1: {0, 2, 3, 4, 5},
	2: {1, 4, 5},
	3: {0, 1, 4, 6, 7},
	4: {0, 1, 2, 3, 5, 6, 7, 8},
	5: {1, 2, 4, 7, 8},
	6: {3, 4, 7},
	7: {3, 4, 5, 6, 8},
	8: {4, 5, 7},
}

// Rand is the only source of randomness for the bots and promo codes.
type Rand interface {
	Intn(n int) int
}

type lockedRand struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRand - returns a goroutine safe source seeded from the clock.
func NewRand() Rand {
	return &lockedRand{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))} //nolint: gosec // game moves, not secrets
}

func (that *lockedRand) Intn(n int) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.rnd.Intn(n)
}

// MovePolicy picks the computer's cell. Calling it on a full board is a bug
// and panics.
type MovePolicy interface {
	ChooseCell(board entity.Board, computer, human entity.Mark) int
}

// NewMovePolicy - returns the bot for the given difficulty.
func NewMovePolicy(difficulty entity.Difficulty, rnd Rand) (MovePolicy, error) {
	switch difficulty {
	case entity.DifficultyRelaxed:
		return &relaxedBot{rnd: rnd}, nil
	case entity.DifficultyStrategic:
		return &strategicBot{rnd: rnd}, nil
	case entity.DifficultyMaster:
		return &masterBot{rnd: rnd}, nil
	default:
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownDifficulty, difficulty)
	}
}

type relaxedBot struct {
	rnd Rand
}

func (that *relaxedBot) ChooseCell(board entity.Board, _, _ entity.Mark) int {
	return pickRandom(that.rnd, mustEmptyCells(board))
}

// strategicBot clusters its marks: it plays next to its own earlier marks.
type strategicBot struct {
	rnd Rand
}

func (that *strategicBot) ChooseCell(board entity.Board, computer, _ entity.Mark) int {
	emptyCells := mustEmptyCells(board)

	for cell, mark := range board {
		if mark != computer {
			continue
		}
		for _, adj := range adjacentCells[cell] {
			if board[adj] == entity.MarkEmpty {
				return adj
			}
		}
	}

	if board[centerCell] == entity.MarkEmpty {
		return centerCell
	}

	return pickRandom(that.rnd, emptyCells)
}

// masterBot looks one move ahead: win, block, center, corner, anything.
type masterBot struct {
	rnd Rand
}

func (that *masterBot) ChooseCell(board entity.Board, computer, human entity.Mark) int {
	emptyCells := mustEmptyCells(board)

	if cell, ok := findWinningCell(board, emptyCells, computer); ok {
		return cell
	}

	if cell, ok := findWinningCell(board, emptyCells, human); ok {
		return cell
	}

	if board[centerCell] == entity.MarkEmpty {
		return centerCell
	}

	freeCorners := make([]int, 0, len(corners))
	for _, corner := range corners {
		if board[corner] == entity.MarkEmpty {
			freeCorners = append(freeCorners, corner)
		}
	}
	if len(freeCorners) > 0 {
		return pickRandom(that.rnd, freeCorners)
	}

	return pickRandom(that.rnd, emptyCells)
}

func findWinningCell(board entity.Board, emptyCells []int, mark entity.Mark) (int, bool) {
	for _, cell := range emptyCells {
		if tictactoe.WinsWith(board, mark, cell) {
			return cell, true
		}
	}

	return 0, false
}

func mustEmptyCells(board entity.Board) []int {
	emptyCells := tictactoe.EmptyIndices(board)
	if len(emptyCells) == 0 {
		panic(fmt.Errorf("bot asked to move on a full board: %w", ErrNoAvailableMoves))
	}

	return emptyCells
}

func pickRandom(rnd Rand, cells []int) int {
	return cells[rnd.Intn(len(cells))]
}

// GeneratePromoCode - returns a 5-digit code in [10000, 99999].
func GeneratePromoCode(rnd Rand) string {
	return strconv.Itoa(10000 + rnd.Intn(90000))
}

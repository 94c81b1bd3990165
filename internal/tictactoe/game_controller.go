package tictactoe

import "github.com/rocketscienceinc/rose-tictactoe/internal/entity"

// EmptyIndices - returns the empty cells in ascending order.
func EmptyIndices(board entity.Board) []int {
	cells := make([]int, 0, len(board))
	for i, cell := range board {
		if cell == entity.MarkEmpty {
			cells = append(cells, i)
		}
	}

	return cells
}

func IsFull(board entity.Board) bool {
	for _, cell := range board {
		if cell == entity.MarkEmpty {
			return false
		}
	}

	return true
}

// Evaluate - checks the board after a placement.
func Evaluate(board entity.Board) entity.Outcome {
	for _, line := range entity.WinCombos {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != entity.MarkEmpty && a == b && b == c {
			return entity.Outcome{Kind: entity.OutcomeWon, Winner: a, Line: line}
		}
	}

	if IsFull(board) {
		return entity.Outcome{Kind: entity.OutcomeDraw}
	}

	return entity.Outcome{Kind: entity.OutcomeNone}
}

// WinsWith reports whether placing mark at cell completes a line.
func WinsWith(board entity.Board, mark entity.Mark, cell int) bool {
	board[cell] = mark
	outcome := Evaluate(board)

	return outcome.Kind == entity.OutcomeWon && outcome.Winner == mark
}

func validCell(cell int) bool {
	return cell >= 0 && cell < entity.BoardSize
}

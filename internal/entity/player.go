package entity

import "time"

// User is a chat platform user playing the mini-app.
type User struct {
	ID       int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
}

type FeedbackKind string

const (
	FeedbackLight     FeedbackKind = "light"
	FeedbackMedium    FeedbackKind = "medium"
	FeedbackSelection FeedbackKind = "selection"
	FeedbackSuccess   FeedbackKind = "success"
	FeedbackError     FeedbackKind = "error"
	FeedbackWarning   FeedbackKind = "warning"
)

type GameResult struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Username   string     `json:"username,omitempty"`
	Status     Status     `json:"status"`
	Difficulty Difficulty `json:"difficulty"`
	PromoCode  string     `json:"promo_code,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type PromoCode struct {
	Code         string     `json:"code"`
	UserID       int64      `json:"user_id"`
	GameResultID int64      `json:"game_result_id"`
	IsUsed       bool       `json:"is_used"`
	UsedAt       *time.Time `json:"used_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

type UserStats struct {
	UserID             int64       `json:"user_id"`
	Username           string      `json:"username,omitempty"`
	TotalGames         int         `json:"total_games"`
	Wins               int         `json:"wins"`
	Losses             int         `json:"losses"`
	Draws              int         `json:"draws"`
	WinRate            float64     `json:"win_rate"`
	FavoriteDifficulty *Difficulty `json:"favorite_difficulty"`
}

type LeaderboardEntry struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Wins     int    `json:"wins"`
}

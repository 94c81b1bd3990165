package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rocketscienceinc/rose-tictactoe/internal/entity"
)

var ErrUnexpectedStatus = errors.New("unexpected response status")

// Client talks to a remote result service with the same HTTP API as ours.
type Client struct {
	logger  *slog.Logger
	baseURL string
	http    *http.Client
}

func New(logger *slog.Logger, baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		logger:  logger.With("component", "backend_client"),
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

type gameResultRequest struct {
	UserID     int64             `json:"user_id"`
	Username   string            `json:"username,omitempty"`
	Status     entity.Status     `json:"status"`
	Difficulty entity.Difficulty `json:"difficulty"`
	PromoCode  string            `json:"promo_code,omitempty"`
}

type simpleStatsResponse struct {
	UserID int64        `json:"user_id"`
	Stats  entity.Tally `json:"stats"`
}

// ReportResult - POST {base}/game-result. Returns the result as the backend
// stored it; an empty reply body keeps the one sent.
func (that *Client) ReportResult(ctx context.Context, result entity.GameResult) (entity.GameResult, error) {
	log := that.logger.With("method", "ReportResult", "user_id", result.UserID)

	body, err := json.Marshal(gameResultRequest{
		UserID:     result.UserID,
		Username:   result.Username,
		Status:     result.Status,
		Difficulty: result.Difficulty,
		PromoCode:  result.PromoCode,
	})
	if err != nil {
		return entity.GameResult{}, fmt.Errorf("failed to marshal game result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, that.baseURL+"/game-result", bytes.NewReader(body))
	if err != nil {
		return entity.GameResult{}, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	stored := result
	if err = that.do(req, &stored); err != nil {
		return entity.GameResult{}, fmt.Errorf("failed to report game result: %w", err)
	}

	log.Debug("game result sent", "status", result.Status, "promo_code", stored.PromoCode)

	return stored, nil
}

// LoadStats - GET {base}/user/{id}/stats/simple.
func (that *Client) LoadStats(ctx context.Context, userID int64) (entity.Tally, error) {
	url := that.baseURL + "/user/" + strconv.FormatInt(userID, 10) + "/stats/simple"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return entity.Tally{}, fmt.Errorf("failed to build request: %w", err)
	}

	var response simpleStatsResponse
	if err = that.do(req, &response); err != nil {
		return entity.Tally{}, fmt.Errorf("failed to load stats: %w", err)
	}

	return response.Stats, nil
}

func (that *Client) do(req *http.Request, out any) error {
	resp, err := that.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

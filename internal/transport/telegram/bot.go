package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	commandStart = "/start"
	commandHelp  = "/help"

	callbackPlayAgain = "play_again"

	playLabel      = "🎮 Play Tic Tac Toe"
	playAgainLabel = "🎮 Play Again"
	playAgainText  = "Want to play again?"
)

var (
	ErrNoToken     = errors.New("telegram bot token is empty")
	ErrNoWebAppURL = errors.New("web app url is empty")
)

// Launcher is the chat bot that opens the game as a Telegram Mini App.
type Launcher struct {
	logger    *slog.Logger
	webAppURL string
	bot       *bot.Bot
}

// New - opts go straight to the bot library, tests point it at a fake server.
func New(logger *slog.Logger, token, webAppURL string, opts ...bot.Option) (*Launcher, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if webAppURL == "" {
		return nil, ErrNoWebAppURL
	}

	that := &Launcher{
		logger:    logger.With("component", "telegram_launcher"),
		webAppURL: webAppURL,
	}

	opts = append([]bot.Option{bot.WithDefaultHandler(that.handleDefault)}, opts...)

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	b.RegisterHandler(bot.HandlerTypeMessageText, commandStart, bot.MatchTypePrefix, that.handleStart)
	b.RegisterHandler(bot.HandlerTypeMessageText, commandHelp, bot.MatchTypePrefix, that.handleHelp)
	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, callbackPlayAgain, bot.MatchTypeExact, that.handlePlayAgain)

	that.bot = b

	return that, nil
}

// Start - long-polls Telegram until ctx is done.
func (that *Launcher) Start(ctx context.Context) {
	that.logger.Info("Starting telegram bot", "web_app_url", that.webAppURL)
	that.bot.Start(ctx)
	that.logger.Info("Telegram bot stopped")
}

func (that *Launcher) playButton(label string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: label, WebApp: &models.WebAppInfo{URL: that.webAppURL}}},
		},
	}
}

func (that *Launcher) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	name := "player"
	if update.Message.From != nil && update.Message.From.FirstName != "" {
		name = update.Message.From.FirstName
	}

	that.send(ctx, b, "handleStart", &bot.SendMessageParams{
		ChatID:      update.Message.Chat.ID,
		Text:        welcomeText(name),
		ReplyMarkup: that.playButton(playLabel),
	})
}

func (that *Launcher) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}

	that.send(ctx, b, "handleHelp", &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text:   helpText,
	})
}

// handlePlayAgain - answers the button press and offers a fresh game.
func (that *Launcher) handlePlayAgain(ctx context.Context, b *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	log := that.logger.With("method", "handlePlayAgain", "user_id", query.From.ID)

	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); err != nil {
		log.Warn("failed to answer callback query", "error", err)
	}

	that.send(ctx, b, "handlePlayAgain", &bot.SendMessageParams{
		ChatID:      query.From.ID,
		Text:        playAgainText,
		ReplyMarkup: that.playButton(playAgainLabel),
	})
}

// handleDefault - other updates are only logged.
func (that *Launcher) handleDefault(_ context.Context, _ *bot.Bot, update *models.Update) {
	that.logger.Debug("update ignored", "update_id", update.ID)
}

func (that *Launcher) send(ctx context.Context, b *bot.Bot, method string, params *bot.SendMessageParams) {
	log := that.logger.With("method", method, "chat_id", params.ChatID)

	if _, err := b.SendMessage(ctx, params); err != nil {
		log.Error("failed to send message", "error", err)
		return
	}

	log.Debug("message sent")
}

func welcomeText(name string) string {
	var text strings.Builder

	fmt.Fprintf(&text, "Hi, %s! 💎\n\n", name)
	text.WriteString("Rose Tic Tac Toe is a quick game against the computer right inside Telegram.\n\n")
	text.WriteString("• Three difficulty levels: relaxed, strategic and master\n")
	text.WriteString("• Play as the diamond 💎 or the ring 💍\n")
	text.WriteString("• Every win earns a five digit promo code\n")
	text.WriteString("• Your wins, losses and draws are tracked\n")
	text.WriteString("• Climb the leaderboard\n\n")
	text.WriteString("Tap the button below to start.")

	return text.String()
}

const helpText = `Commands:
/start opens the game
/help shows this message

How to play:
1. Pick your symbol
2. Pick a difficulty
3. Beat the computer
4. Win to get a promo code

Your progress is saved automatically.`

package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NgigiN/groupbanker/internal/config"
	"github.com/NgigiN/groupbanker/internal/mpesa"
	"github.com/NgigiN/groupbanker/internal/storage"
	"github.com/bwmarrin/discordgo"
)

// listLimit is the number of transactions shown by !list.
const listLimit = 10

const usage = "Usage:\n!add <amount> <description>\n!list\n!summary\nor paste one or more M-PESA confirmation messages"

type Bot struct {
	session   *discordgo.Session
	db        *storage.Database
	channelID string
	startTime time.Time
	logger    *slog.Logger
	health    *http.Server
	now       func() time.Time
	open      func() error
}

// NewBot creates a bot recording into db. The caller keeps ownership of db.
func NewBot(cfg *config.Config, db *storage.Database, logger *slog.Logger) (*Bot, error) {
	if err := cfg.RequireDiscord(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	bot := &Bot{
		session:   session,
		db:        db,
		channelID: cfg.DiscordChannelId,
		startTime: time.Now(),
		logger:    logger.With("component", "discord"),
		now:       time.Now,
		open:      session.Open,
	}
	bot.health = &http.Server{Addr: cfg.HealthAddr, Handler: bot.healthHandler()}

	session.AddHandler(bot.handleMessage)
	session.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentMessageContent

	return bot, nil
}

// Start serves the health endpoint and connects to Discord. On error nothing
// is left running.
func (b *Bot) Start() error {
	ln, err := net.Listen("tcp", b.health.Addr)
	if err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	go func() {
		if err := b.health.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			b.logger.Error("health server stopped", "error", err)
		}
	}()
	b.logger.Debug("health server listening", "addr", ln.Addr().String())

	if err := b.open(); err != nil {
		b.shutdownHealth()
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	b.logger.Info("bot connected", "channel", b.channelID)
	return nil
}

func (b *Bot) Stop() {
	b.shutdownHealth()
	if err := b.session.Close(); err != nil {
		b.logger.Warn("discord session close", "error", err)
	}
}

func (b *Bot) shutdownHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.health.Shutdown(ctx); err != nil {
		b.logger.Warn("health server shutdown", "error", err)
	}
}

func (b *Bot) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return //bot's messages
	}
	if m.ChannelID != b.channelID {
		return //specific to the channel
	}

	reply := HandleCommand(context.Background(), b.db, m.Content, b.now())
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.logger.Error("failed to send reply", "error", err)
	}
}

// HandleCommand runs one chat message against db and returns the reply.
// An empty reply means the message was not addressed to the bot.
func HandleCommand(ctx context.Context, db *storage.Database, content string, now time.Time) string {
	content = strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(content, "!add"):
		return addCommand(ctx, db, content, now)
	case content == "!list":
		return listCommand(ctx, db)
	case content == "!summary":
		return summaryCommand(ctx, db)
	case content == "!help":
		return usage
	case mpesa.IsConfirmation(content):
		return recordMessages(ctx, db, mpesa.SplitMessages(content))
	}
	return ""
}

func addCommand(ctx context.Context, db *storage.Database, content string, now time.Time) string {
	args := strings.Fields(content)
	if len(args) < 3 || args[0] != "!add" {
		return usage
	}
	amount, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Sprintf("Invalid amount: %s", args[1])
	}
	description := strings.Join(args[2:], " ")

	id, err := db.CreateTransaction(ctx, amount, description, now.Format(storage.TimeLayout))
	if storage.IsConstraintViolation(err) {
		return fmt.Sprintf("Rejected: %v", err)
	}
	if err != nil {
		return fmt.Sprintf("Failed to save transaction: %v", err)
	}
	return fmt.Sprintf("Tracked #%d: Ksh%.2f %s", id, amount, description)
}

func listCommand(ctx context.Context, db *storage.Database) string {
	transactions, err := db.ListTransactions(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to get transactions: %v", err)
	}
	if len(transactions) == 0 {
		return "No transactions found."
	}

	var sb strings.Builder
	sb.WriteString("**Transactions**\n\n")

	// Most recent last, like the chat itself.
	start := max(len(transactions)-listLimit, 0)
	if start > 0 {
		fmt.Fprintf(&sb, "... %d earlier transactions\n", start)
	}
	for _, tx := range transactions[start:] {
		fmt.Fprintf(&sb, "• #%d **Ksh%.2f** %s (%s)\n", tx.ID, tx.Amount, tx.Description, tx.Time)
	}
	return sb.String()
}

func summaryCommand(ctx context.Context, db *storage.Database) string {
	var total float64
	var count int
	for tx, err := range db.FetchAllTransactions(ctx) {
		if err != nil {
			return fmt.Sprintf("Failed to get summary: %v", err)
		}
		total += tx.Amount
		count++
	}
	if count == 0 {
		return "No transactions found."
	}
	return fmt.Sprintf("**Transaction Summary**\n%d transactions\n**Total**: Ksh%.2f", count, total)
}

func recordMessages(ctx context.Context, db *storage.Database, messages []string) string {
	var saved int
	var failures []string

	for i, msg := range messages {
		parsed, err := mpesa.ParseMPesaMessage(msg)
		if err != nil {
			failures = append(failures, fmt.Sprintf("Transaction %d: %v", i+1, err))
			continue
		}
		amount, description, when := parsed.Record()
		if _, err := db.CreateTransaction(ctx, amount, description, when); err != nil {
			failures = append(failures, fmt.Sprintf("Transaction %d: %v", i+1, err))
			continue
		}
		saved++
	}

	if len(messages) == 1 && saved == 1 {
		parsed, _ := mpesa.ParseMPesaMessage(messages[0])
		return fmt.Sprintf("Tracked %s: Ksh%.2f to %s", parsed.TransactionID, parsed.Amount, parsed.Recipient)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**Batch Processing Complete**\nSuccessfully processed: %d transactions\n", saved)
	if len(failures) > 0 {
		fmt.Fprintf(&sb, "Failed: %d transactions\n", len(failures))
		for _, f := range failures {
			fmt.Fprintf(&sb, "• %s\n", f)
		}
	}
	return sb.String()
}

type healthStatus struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	DiscordConnected bool   `json:"discord_connected"`
	Database         string `json:"database"`
	Timestamp        string `json:"timestamp"`
}

func (b *Bot) healthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{
			Status:           "healthy",
			Uptime:           time.Since(b.startTime).Round(time.Second).String(),
			DiscordConnected: b.session != nil && b.session.State != nil && b.session.State.User != nil,
			Database:         "ok",
			Timestamp:        b.now().Format(time.RFC3339),
		}
		code := http.StatusOK
		if err := b.db.Ping(r.Context()); err != nil {
			status.Database = err.Error()
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		if !status.DiscordConnected {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			b.logger.Warn("failed to write health status", "error", err)
		}
	})
	return mux
}

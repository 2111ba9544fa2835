package alerts

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fantasygolf/events"
	"fantasygolf/models"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

const (
	ColorDanger  = 0xED4245 // Red
	ColorWarning = 0xFEE75C // Yellow

	maxCauseLength = 1000
)

// WebhookExecutor is the part of a discordgo session the notifier uses
type WebhookExecutor interface {
	WebhookExecute(webhookID, token string, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts reconciliation escalations to a Discord channel webhook
type DiscordNotifier struct {
	executor    WebhookExecutor
	webhookID   string
	token       string
	environment string
}

// NewDiscordNotifier creates a notifier backed by a token-less discordgo session
func NewDiscordNotifier(webhookID, token, environment string) (*DiscordNotifier, error) {
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return NewDiscordNotifierWithExecutor(session, webhookID, token, environment), nil
}

func NewDiscordNotifierWithExecutor(executor WebhookExecutor, webhookID, token, environment string) *DiscordNotifier {
	return &DiscordNotifier{
		executor:    executor,
		webhookID:   webhookID,
		token:       token,
		environment: environment,
	}
}

// Register subscribes the notifier to reconciliation escalations on bus
func (n *DiscordNotifier) Register(bus *events.Bus) {
	bus.Subscribe(events.EventTypeReconciliationRequired, n.Handle)
}

// Handle posts one escalation. Delivery failures are logged only.
func (n *DiscordNotifier) Handle(ctx context.Context, event events.Event) {
	e, ok := event.(events.ReconciliationRequiredEvent)
	if !ok {
		return
	}

	params := &discordgo.WebhookParams{
		Username: "fantasygolf-reconciliation",
		Embeds:   []*discordgo.MessageEmbed{buildIssueEmbed(e, n.environment)},
	}

	if _, err := n.executor.WebhookExecute(n.webhookID, n.token, false, params, discordgo.WithContext(ctx)); err != nil {
		log.WithFields(log.Fields{
			"issueId":   e.IssueID,
			"kind":      e.Kind,
			"reference": e.Reference,
		}).WithError(err).Error("Failed to send reconciliation alert to Discord")
		return
	}

	log.WithField("issueId", e.IssueID).Debug("Sent reconciliation alert to Discord")
}

func buildIssueEmbed(e events.ReconciliationRequiredEvent, environment string) *discordgo.MessageEmbed {
	color := ColorDanger
	if e.Kind == models.ReconciliationStuckPayment {
		color = ColorWarning
	}

	user := "n/a"
	if e.UserID != nil {
		user = strconv.FormatInt(*e.UserID, 10)
	}

	cause := e.Cause
	if cause == "" {
		cause = "n/a"
	}
	if len(cause) > maxCauseLength {
		cause = cause[:maxCauseLength] + "..."
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Reconciliation required: %s", e.Kind),
		Description: fmt.Sprintf("Issue **#%d** needs an operator.", e.IssueID),
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Reference", Value: "`" + e.Reference + "`", Inline: true},
			{Name: "User", Value: user, Inline: true},
			{Name: "Amount", Value: models.FormatAmount(e.Amount), Inline: true},
			{Name: "Cause", Value: cause},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "environment: " + environment,
		},
	}
}

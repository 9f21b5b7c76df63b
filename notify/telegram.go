package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"rental-scraper/models"
	"rental-scraper/utils"
)

// sender is the part of *tele.Bot used for delivery.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramNotifier posts one message per new listing to a chat.
type TelegramNotifier struct {
	bot    sender
	chat   *tele.Chat
	logger *utils.Logger
}

// NewTelegramNotifier creates a notifier for chatID. The bot is created
// offline so no request is made until the first delivery.
func NewTelegramNotifier(token string, chatID int64, logger *utils.Logger) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return &TelegramNotifier{bot: b, chat: &tele.Chat{ID: chatID}, logger: logger}, nil
}

func (n *TelegramNotifier) Notify(ctx context.Context, listings []*models.Listing) (Report, error) {
	var (
		report Report
		errs   []error
	)
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}

	for _, l := range listings {
		if err := ctx.Err(); err != nil {
			report.Failed += len(listings) - report.Delivered - report.Failed
			errs = append(errs, err)
			break
		}
		if _, err := n.bot.Send(n.chat, formatListing(l), opts); err != nil {
			n.logger.Warn("[telegram] Delivery failed for %s: %v", l.SourceURL, err)
			report.Failed++
			errs = append(errs, err)
			continue
		}
		report.Delivered++
	}
	if len(errs) > 0 {
		return report, fmt.Errorf("telegram: %d of %d deliveries failed: %w", report.Failed, len(listings), errors.Join(errs...))
	}
	return report, nil
}

func formatListing(l *models.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", html.EscapeString(l.Title))
	fmt.Fprintf(&b, "%s, %s\n", html.EscapeString(l.Location), html.EscapeString(l.AgencyName))
	if l.PriceKnown() {
		fmt.Fprintf(&b, "€%d per maand\n", l.PriceAmount)
	} else {
		b.WriteString("Prijs op aanvraag\n")
	}
	if l.RoomCount > 0 && l.RoomsState == models.FieldFound {
		fmt.Fprintf(&b, "%d kamers\n", l.RoomCount)
	}
	if l.SizeText != "" {
		fmt.Fprintf(&b, "%s\n", html.EscapeString(l.SizeText))
	}
	if l.DateState == models.FieldFound {
		fmt.Fprintf(&b, "Aangeboden sinds %s\n", l.ListedDate.Format(time.DateOnly))
	}
	fmt.Fprintf(&b, `<a href="%s">Bekijk woning</a>`, html.EscapeString(l.SourceURL))
	return b.String()
}

package notify

import (
	"fmt"
	"html"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clipgate/clipgate-backend/pkg/db/models"
)

// formatCreatorTag renders the creator as a clickable mention. A Telegram id
// yields a true user mention; otherwise the social URL is linked; otherwise
// plain text.
func formatCreatorTag(name, telegramID, fallbackURL string) string {
	safeName := html.EscapeString(name)
	if safeName == "" {
		safeName = "Unknown"
	}
	if telegramID != "" {
		return fmt.Sprintf(`<a href="tg://user?id=%s">%s</a>`, html.EscapeString(telegramID), safeName)
	}
	if fallbackURL != "" {
		return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(fallbackURL), safeName)
	}
	return safeName
}

// saleMessage is the private sales-group alert.
func saleMessage(purchase *models.Purchase, title string, isTest bool, now time.Time) string {
	header := "💰 <b>New Sale!</b> 💰\n\n"
	if isTest {
		header = "🚨 <b>TEST TRANSACTION</b> 🚨\n<i>Not real money</i>\n\n"
	}

	creatorTag := formatCreatorTag(
		deref(purchase.CreatorName),
		deref(purchase.CreatorTelegramID),
		deref(purchase.CreatorURL),
	)

	return header +
		fmt.Sprintf("🎥 <b>Video:</b> %s\n", html.EscapeString(title)) +
		fmt.Sprintf("👤 <b>Creator:</b> %s\n", creatorTag) +
		fmt.Sprintf("💵 <b>Amount:</b> $%s\n", formatDollars(purchase.AmountCents)) +
		fmt.Sprintf("🕒 <b>Time:</b> %s", now.Format("15:04:05"))
}

// channelMessage is the public promo post. It never carries buyer data or
// amounts.
func channelMessage(purchase *models.Purchase, title string) string {
	creatorTag := formatCreatorTag(
		deref(purchase.CreatorName),
		deref(purchase.CreatorTelegramID),
		deref(purchase.CreatorURL),
	)
	return fmt.Sprintf("🎬 <b>%s</b> by %s just sold. Grab yours before it's gone!",
		html.EscapeString(title), creatorTag)
}

func formatDollars(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

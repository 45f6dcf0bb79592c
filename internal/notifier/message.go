package notifier

import (
	"fmt"
	"strings"

	"price_tracker/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// linkEscaper keeps parentheses in a product URL from closing the Markdown
// link early.
var linkEscaper = strings.NewReplacer("(", "%28", ")", "%29")

type Message struct {
	Subject string
	Text    string
}

// Savings is how far the current price sits below the target, rounded to
// cents. It is zero when the price is above target.
func Savings(event models.AlertEvent) decimal.Decimal {
	s := decimal.NewFromFloat(event.TargetPrice).
		Sub(decimal.NewFromFloat(event.CurrentPrice)).
		Round(2)
	if s.IsNegative() {
		return decimal.Zero
	}
	return s
}

// FormatAlert renders event as Markdown, as understood by Telegram and
// readable as plain text in email. The product name is escaped so that
// characters such as "_" or "*" in it do not break the markup.
func FormatAlert(event models.AlertEvent) Message {
	var b strings.Builder

	b.WriteString("🚨 *Price Alert!*\n\n")
	fmt.Fprintf(&b, "📦 *Product:* %s\n", tgbotapi.EscapeText(tgbotapi.ModeMarkdown, event.ProductName))
	fmt.Fprintf(&b, "💰 *Current Price:* %s\n", money(event.CurrentPrice))
	fmt.Fprintf(&b, "🎯 *Target Price:* %s\n", money(event.TargetPrice))
	fmt.Fprintf(&b, "💸 *You Save:* %s\n", Savings(event).StringFixed(2))
	fmt.Fprintf(&b, "🔗 [View Product](%s)", linkEscaper.Replace(event.URL))

	return Message{
		Subject: fmt.Sprintf("Price alert: %s is now %s", event.ProductName, money(event.CurrentPrice)),
		Text:    b.String(),
	}
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

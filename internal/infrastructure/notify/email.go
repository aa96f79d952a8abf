// Package notify delivers stock alerts to staff.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"

	"cafepos/internal/domain/events"
	"cafepos/pkg/logger"
)

// SMTPConfig configures the mail relay. An empty Host disables sending.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       []string
}

// Enabled reports whether alerts can be mailed.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && len(c.To) > 0
}

// sendFunc matches (*email.Email).Send.
type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// EmailNotifier mails low-stock alerts. Without SMTP it only logs them.
type EmailNotifier struct {
	cfg  SMTPConfig
	addr string
	send sendFunc
}

// NewEmailNotifier creates a notifier.
func NewEmailNotifier(cfg SMTPConfig) *EmailNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &EmailNotifier{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		send: func(e *email.Email, addr string, auth smtp.Auth) error { return e.Send(addr, auth) },
	}
}

// LowStock sends one alert for an ingredient below its minimum.
func (n *EmailNotifier) LowStock(ctx context.Context, p events.LowStockPayload) error {
	subject, body := lowStockMessage(p)

	if !n.cfg.Enabled() {
		logger.Warn(ctx, "low stock",
			"ingredient_id", p.IngredientID,
			"ingredient", p.Ingredient,
			"current_stock", p.CurrentStock.String(),
			"min_stock", p.MinStock.String(),
		)
		return nil
	}

	e := email.NewEmail()
	e.From = n.cfg.From
	e.To = n.cfg.To
	e.Subject = subject
	e.Text = []byte(body)

	var auth smtp.Auth
	if n.cfg.User != "" {
		auth = smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)
	}
	if err := n.send(e, n.addr, auth); err != nil {
		return fmt.Errorf("notify: send low stock alert for %s: %w", p.Ingredient, err)
	}
	logger.Info(ctx, "low stock alert sent", "ingredient_id", p.IngredientID, "to", strings.Join(n.cfg.To, ","))
	return nil
}

// HandleLowStockMessage decodes an outbox payload and sends the alert.
func (n *EmailNotifier) HandleLowStockMessage(ctx context.Context, payload []byte) error {
	var p events.LowStockPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("notify: decode low stock payload: %w", err)
	}
	return n.LowStock(ctx, p)
}

func lowStockMessage(p events.LowStockPayload) (string, string) {
	subject := fmt.Sprintf("Low stock: %s", p.Ingredient)
	var b strings.Builder
	fmt.Fprintf(&b, "Ingredient %s is below its minimum stock level.\n\n", p.Ingredient)
	fmt.Fprintf(&b, "Current stock: %s %s\n", p.CurrentStock, p.Unit)
	fmt.Fprintf(&b, "Minimum stock: %s %s\n", p.MinStock, p.Unit)
	b.WriteString("\nPlease reorder or adjust the menu.\n")
	return subject, b.String()
}

// ParseRecipients splits a comma separated address list.
func ParseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if addr := strings.TrimSpace(part); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/sicilystay/stayservice/internal/dates"
	"github.com/sicilystay/stayservice/internal/domain"
	"github.com/sicilystay/stayservice/internal/metrics"
)

// SMTPConfig configures the confirmation e-mail sender
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier e-mails a plain-text confirmation to the customer
type SMTPNotifier struct {
	cfg      SMTPConfig
	sendMail sendMailFunc
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, sendMail: smtp.SendMail}
}

func (n *SMTPNotifier) BookingReserved(ctx context.Context, b domain.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	if err := n.sendMail(addr, auth, n.cfg.From, []string{b.Customer.Email}, confirmationMessage(n.cfg.From, b)); err != nil {
		metrics.RecordNotification("smtp", "failed")
		return fmt.Errorf("failed to send confirmation for %s: %w", b.ID, err)
	}
	metrics.RecordNotification("smtp", "sent")
	return nil
}

func confirmationMessage(from string, b domain.Booking) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", b.Customer.Email)
	fmt.Fprintf(&sb, "Subject: Booking %s confirmed\r\n", b.ID)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")

	fmt.Fprintf(&sb, "Hello %s,\r\n\r\n", b.Customer.Name)
	fmt.Fprintf(&sb, "your stay is reserved.\r\n\r\n")
	fmt.Fprintf(&sb, "Booking:   %s\r\n", b.ID)
	fmt.Fprintf(&sb, "Room:      %s\r\n", b.RoomType)
	fmt.Fprintf(&sb, "Check-in:  %s\r\n", dates.Format(b.CheckIn))
	fmt.Fprintf(&sb, "Check-out: %s\r\n", dates.Format(b.CheckOut))
	fmt.Fprintf(&sb, "Nights:    %d\r\n", b.Nights)
	fmt.Fprintf(&sb, "Guests:    %d\r\n", b.Guests)
	fmt.Fprintf(&sb, "Total:     %.2f %s\r\n", b.TotalPrice, b.Currency)
	return []byte(sb.String())
}

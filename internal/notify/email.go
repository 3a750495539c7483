package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cefbursatil/TransportContractAnalyzer/internal/config"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/format"
	"github.com/cefbursatil/TransportContractAnalyzer/internal/models"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

var emailTemplate = template.Must(template.New("email").Parse(`<html>
<head>
<style>
table { border-collapse: collapse; width: 100%; }
th, td { padding: 8px; text-align: left; border: 1px solid #ddd; }
th { background-color: #f2f2f2; }
</style>
</head>
<body>
<h2>Nuevos Contratos de Transporte</h2>
<p>Se han detectado los siguientes contratos nuevos:</p>
<table>
<tr><th>Entidad</th><th>Tipo de Contrato</th><th>Valor</th><th>Fecha</th></tr>
{{- range .}}
<tr><td>{{.Entity}}</td><td>{{.Type}}</td><td>{{.Value}}</td><td>{{.Date}}</td></tr>
{{- end}}
</table>
<p>Para más detalles, ingrese al sistema de gestión de contratos.</p>
</body>
</html>
`))

type emailRow struct {
	Entity string
	Type   string
	Value  string
	Date   string
}

// Email sends an HTML table of contracts over SMTP. smtp.SendMail upgrades
// the connection with STARTTLS when the server offers it.
type Email struct {
	cfg    config.EmailConfig
	send   SendFunc
	now    func() time.Time
	logger *slog.Logger
}

// NewEmail creates an SMTP notifier.
func NewEmail(cfg config.EmailConfig, logger *slog.Logger) *Email {
	if logger == nil {
		logger = slog.Default()
	}
	return &Email{
		cfg:    cfg,
		send:   smtp.SendMail,
		now:    time.Now,
		logger: logger.With("notifier", "email"),
	}
}

// Notify mails contracts to every recipient that looks like an address.
func (e *Email) Notify(ctx context.Context, contracts []map[string]any, recipients []string) bool {
	to := emailRecipients(recipients)
	if len(to) == 0 {
		return false
	}
	if !e.cfg.Enabled() {
		e.logger.Warn("SMTP credentials not configured, skipping email")
		return false
	}
	if err := ctx.Err(); err != nil {
		e.logger.Error("email cancelled", "error", err)
		return false
	}

	msg, err := e.message(contracts, to)
	if err != nil {
		e.logger.Error("failed to render email", "error", err)
		return false
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	if err := e.send(addr, auth, e.from(), to, msg); err != nil {
		e.logger.Error("failed to send email", "recipients", to, "error", err)
		return false
	}

	e.logger.Info("email notification sent", "recipients", to, "contracts", len(contracts))
	return true
}

func (e *Email) from() string {
	if e.cfg.From != "" {
		return e.cfg.From
	}
	return e.cfg.Username
}

func (e *Email) subject() string {
	return Subject + " - " + e.now().Format("2006-01-02")
}

func (e *Email) message(contracts []map[string]any, to []string) ([]byte, error) {
	rows := make([]emailRow, 0, len(contracts))
	for _, c := range contracts {
		rows = append(rows, emailRow{
			Entity: text(c, models.ColEntityName),
			Type:   text(c, models.ColContractType),
			Value:  format.COP(amount(c)),
			Date:   text(c, models.ColSigningDate),
		})
	}

	var body bytes.Buffer
	if err := emailTemplate.Execute(&body, rows); err != nil {
		return nil, fmt.Errorf("render email body: %w", err)
	}

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", e.from())
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", e.subject()))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	msg.Write(body.Bytes())
	return msg.Bytes(), nil
}

func emailRecipients(recipients []string) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		r = strings.TrimSpace(r)
		if strings.Contains(r, "@") {
			out = append(out, r)
		}
	}
	return out
}

// Package notify renders and delivers outbound notifications and runs
// detached side effects outside the workflow transaction.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/john2100013/kpi-review/internal/config"
	"github.com/john2100013/kpi-review/internal/mailer"
	"github.com/john2100013/kpi-review/internal/metrics"
	"github.com/john2100013/kpi-review/internal/webhook"
	"github.com/john2100013/kpi-review/pkg/logger"
)

// Delivery errors reported in Result.Err.
var (
	ErrInvalidAddress = errors.New("invalid recipient address")
	ErrDisabled       = errors.New("notifications disabled")
)

const defaultSendTimeout = 10 * time.Second

// Result is the advisory outcome of one send.
type Result struct {
	Success bool
	Err     error
}

// Sender sends one templated message. Implementations never panic and
// always return within a bounded time.
type Sender interface {
	Send(ctx context.Context, companyID uint, address, templateType string, vars map[string]string) Result
}

// Outgoing is a rendered message ready for a channel.
type Outgoing struct {
	CompanyID uint
	To        string
	Template  string
	Message   Message
}

// Channel is one delivery transport.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, out *Outgoing) error
}

// Dispatcher renders templates and delivers them over the configured channels.
type Dispatcher struct {
	catalog  *Catalog
	channels []Channel
	timeout  time.Duration
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher over the given channels.
func NewDispatcher(catalog *Catalog, timeout time.Duration, log *logger.Logger, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Dispatcher{
		catalog:  catalog,
		channels: channels,
		timeout:  timeout,
		log:      log.Component("dispatcher"),
	}
}

// NewFromConfig builds the channels selected by cfg.Channel.
func NewFromConfig(cfg *config.NotificationsConfig, catalog *Catalog, log *logger.Logger) *Dispatcher {
	var channels []Channel
	useEmail := cfg.Channel == "email" || cfg.Channel == "both"
	useWebhook := cfg.Channel == "webhook" || cfg.Channel == "both"

	if useEmail {
		channels = append(channels, NewEmailChannel(mailer.New(cfg.Email)))
	}
	if useWebhook {
		channels = append(channels, NewWebhookChannel(webhook.NewClient(&cfg.Webhook, cfg.SendTimeout, log)))
	}
	return NewDispatcher(catalog, cfg.SendTimeout, log, channels...)
}

// Send renders templateType and delivers it to address. It returns a
// failed Result instead of an error and recovers from channel panics.
func (d *Dispatcher) Send(ctx context.Context, companyID uint, address, templateType string, vars map[string]string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("notification panic: %v", r)}
			metrics.RecordNotificationFailed("all", "panic")
			d.log.Error().
				Uint("company_id", companyID).
				Str("template", templateType).
				Interface("panic", r).
				Msg("Recovered from panic while sending notification")
		}
	}()

	address = strings.TrimSpace(address)
	if address == "" || !strings.Contains(address, "@") {
		metrics.RecordNotificationFailed("all", "invalid_address")
		return Result{Err: ErrInvalidAddress}
	}
	if len(d.channels) == 0 {
		return Result{Err: ErrDisabled}
	}

	msg, err := d.catalog.Render(templateType, vars)
	if err != nil {
		metrics.RecordNotificationFailed("all", "render")
		d.log.Error().Err(err).Str("template", templateType).Msg("Failed to render notification")
		return Result{Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	out := &Outgoing{CompanyID: companyID, To: address, Template: templateType, Message: msg}
	var errs []error
	for _, ch := range d.channels {
		if err := d.deliver(ctx, ch, out); err != nil {
			metrics.RecordNotificationFailed(ch.Name(), failureReason(err))
			d.log.Warn().
				Err(err).
				Str("channel", ch.Name()).
				Uint("company_id", companyID).
				Str("template", templateType).
				Str("recipient", address).
				Msg("Failed to deliver notification")
			errs = append(errs, err)
			continue
		}
		metrics.RecordNotificationSent(ch.Name())
	}

	if len(errs) == len(d.channels) {
		return Result{Err: errors.Join(errs...)}
	}
	return Result{Success: true}
}

// deliver runs one channel and gives up when ctx expires, even if the
// channel ignores cancellation.
func (d *Dispatcher) deliver(ctx context.Context, ch Channel, out *Outgoing) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("channel %s panic: %v", ch.Name(), r)
			}
		}()
		done <- ch.Deliver(ctx, out)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case strings.Contains(err.Error(), "panic"):
		return "panic"
	default:
		return "error"
	}
}

// EmailChannel delivers through a mailer.
type EmailChannel struct {
	mailer mailer.Mailer
}

// NewEmailChannel creates an email channel.
func NewEmailChannel(m mailer.Mailer) *EmailChannel {
	return &EmailChannel{mailer: m}
}

// Name implements Channel.
func (c *EmailChannel) Name() string { return "email" }

// Deliver implements Channel.
func (c *EmailChannel) Deliver(ctx context.Context, out *Outgoing) error {
	return c.mailer.Send(ctx, out.To, out.Message.Subject, out.Message.Body)
}

// WebhookChannel delivers through the flow webhook.
type WebhookChannel struct {
	client *webhook.Client
}

// NewWebhookChannel creates a webhook channel.
func NewWebhookChannel(client *webhook.Client) *WebhookChannel {
	return &WebhookChannel{client: client}
}

// Name implements Channel.
func (c *WebhookChannel) Name() string { return "webhook" }

// Deliver implements Channel.
func (c *WebhookChannel) Deliver(ctx context.Context, out *Outgoing) error {
	return c.client.Send(ctx, &webhook.Payload{
		CompanyID: out.CompanyID,
		To:        out.To,
		Subject:   out.Message.Subject,
		Body:      out.Message.Body,
		Template:  out.Template,
	})
}

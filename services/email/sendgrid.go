package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/theoremz/black/core"
)

var (
	host     = "https://api.sendgrid.com"
	endpoint = "/v3/mail/send"
)

const (
	sendAttempts = 3
	retryBackoff = 2 * time.Second
)

type sendgridService struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	env        string
	logger     core.Logger

	api   func(rest.Request) (*rest.Response, error) // mockable
	sleep func(time.Duration)                        // mockable
}

var _ core.EmailService = (*sendgridService)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridService {
	from := conf.DefaultFromEmail()
	subjPrefix := "[" + conf.AppName + "] "
	if !conf.IsProduction() {
		subjPrefix = "[" + conf.AppName + " " + conf.Env + "] "
	}
	return &sendgridService{
		key:        conf.Email.SendgridApiKey,
		from:       sgmail.NewEmail(from.Name, from.Address),
		subjPrefix: subjPrefix,
		env:        strings.ToLower(conf.Env),
		logger:     logger,
		api:        sendgrid.API,
		sleep:      time.Sleep,
	}
}

func (svc sendgridService) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		msg := msg
		go func() {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email %q: %v", msg.TemplateName, err), err)
				return
			}
			if msg.HasRecipients() && msg.HasContent() {
				svc.send(*msg)
			}
		}()
	}
}

func (svc sendgridService) prepare(msg core.EmailMessage) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = svc.subjPrefix + msg.Subject

	for _, to := range msg.To {
		p.AddTos(svc.getSGEmail(to))
	}
	for _, cc := range msg.Cc {
		p.AddCCs(svc.getSGEmail(cc))
	}
	for _, bcc := range msg.Bcc {
		p.AddBCCs(svc.getSGEmail(bcc))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	// ops reports are filtered by category and env in the sendgrid dashboard
	m.AddCategories(msg.Categories...)
	m.SetCustomArg("env", svc.env)
	return m
}

func (svc sendgridService) getSGEmail(addr mail.Address) *sgmail.Email {
	return sgmail.NewEmail(addr.Name, addr.Address)
}

// retryable reports whether sendgrid may accept the same request later.
func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// send posts msg, retrying throttled and 5xx responses. Returns whether it was accepted.
func (svc sendgridService) send(msg core.EmailMessage) bool {
	body := sgmail.GetRequestBody(svc.prepare(msg))
	backoff := retryBackoff

	for attempt := 1; attempt <= sendAttempts; attempt++ {
		req := sendgrid.GetRequest(svc.key, endpoint, host)
		req.Method = http.MethodPost
		req.Body = body

		res, err := svc.api(req)
		switch {
		case err != nil:
			svc.logger.Error(fmt.Sprintf("sending email %q (attempt %d/%d): %v", msg.Subject, attempt, sendAttempts, err), err)
		case res.StatusCode < http.StatusBadRequest:
			return true
		case !retryable(res.StatusCode):
			svc.logger.Error(fmt.Sprintf("sending email %q - status: %d - Body: %s", msg.Subject, res.StatusCode, res.Body))
			return false
		default:
			svc.logger.Warn(fmt.Sprintf("sending email %q (attempt %d/%d) - status: %d", msg.Subject, attempt, sendAttempts, res.StatusCode))
		}

		if attempt < sendAttempts {
			svc.sleep(backoff)
			backoff *= 2
		}
	}
	svc.logger.Error(fmt.Sprintf("sending email %q: giving up after %d attempts", msg.Subject, sendAttempts))
	return false
}

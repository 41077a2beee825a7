package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/common/metrics"
	"notification-workers/internal/mail"
	"notification-workers/internal/models"
	"notification-workers/internal/render"
	"notification-workers/internal/templates"
)

// State is the lifecycle of a single recipient within a dispatch.
type State string

const (
	StatePending   State = "PENDING"
	StateRendering State = "RENDERING"
	StateSending   State = "SENDING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

const (
	sourceTemplate = "template"
	sourceInline   = "inline"
)

// RecipientError describes one failed recipient.
type RecipientError struct {
	Index       int
	RecipientID string
	Email       string
	Err         error
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("recipient %d (%s): %v", e.Index, e.RecipientID, e.Err)
}

func (e *RecipientError) Unwrap() error {
	return e.Err
}

// Result holds one entry per contact, in contact order. A failed contact has
// a nil status and a non-nil error at the same index.
type Result struct {
	Statuses []*models.NotificationStatus
	Errors   []error
}

func (r *Result) Sent() int {
	n := 0
	for _, s := range r.Statuses {
		if s != nil {
			n++
		}
	}
	return n
}

func (r *Result) Failed() int {
	return len(r.Statuses) - r.Sent()
}

// AsyncResult is delivered by SendAsync.
type AsyncResult struct {
	Result *Result
	Err    error
}

type Options struct {
	Resolver templates.Resolver
	Sender   mail.Sender
	Engine   *render.Engine
	Pool     *Pool
	Logger   logger.Logger

	// DefaultFrom is used when a notification arrives without a sender email.
	DefaultFrom models.Profile

	// OnFailure is called once per failed recipient, in contact order, after
	// every recipient has finished.
	OnFailure func(RecipientError)
}

type Dispatcher struct {
	resolver    templates.Resolver
	sender      mail.Sender
	engine      *render.Engine
	pool        *Pool
	logger      logger.Logger
	defaultFrom models.Profile
	onFailure   func(RecipientError)
}

func New(opts Options) (*Dispatcher, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("template resolver is required")
	}

	d := &Dispatcher{
		resolver:    opts.Resolver,
		sender:      opts.Sender,
		engine:      opts.Engine,
		pool:        opts.Pool,
		logger:      opts.Logger,
		defaultFrom: opts.DefaultFrom,
		onFailure:   opts.OnFailure,
	}
	if d.logger == nil {
		d.logger = logger.NewNoOpLogger()
	}
	if d.engine == nil {
		d.engine = render.NewEngine()
	}
	if d.pool == nil {
		d.pool = NewPool(DefaultPoolSize, d.logger)
	}
	return d, nil
}

// Send renders and submits one message per contact. Recipient failures never
// fail the call; they surface as nil statuses and entries in Result.Errors.
// ctx is only handed to template lookups and the mail sender.
func (d *Dispatcher) Send(ctx context.Context, n *models.Notification) (*Result, error) {
	if n == nil {
		return nil, errors.NewValidationFailedError("notification is required")
	}

	shared := n
	if n.From.Email == "" && d.defaultFrom.Email != "" {
		withFrom := *n
		withFrom.From = d.defaultFrom
		shared = &withFrom
	}

	log := d.logger.WithFields(map[string]interface{}{
		"eventId":     n.EventID,
		"application": n.Application,
		"template":    n.Template,
	})
	log.Info("Dispatching notification", map[string]interface{}{
		"recipients": len(n.Contacts),
		"cc":         len(n.Cc),
		"bcc":        len(n.Bcc),
	})

	statuses := make([]*models.NotificationStatus, len(n.Contacts))
	tasks := make([]func() error, len(n.Contacts))
	for i, contact := range n.Contacts {
		tasks[i] = func() error {
			status, err := d.sendOne(ctx, shared, contact, log)
			statuses[i] = status
			return err
		}
	}

	errs := d.pool.Run(tasks)

	for i, err := range errs {
		if err == nil {
			metrics.NotificationRecipients.WithLabelValues(string(models.ChannelMail), metrics.OutcomeSent).Inc()
			continue
		}
		statuses[i] = nil
		d.reportFailure(log, i, n.Contacts[i], err)
	}

	result := &Result{Statuses: statuses, Errors: errs}
	log.Info("Notification dispatched", map[string]interface{}{
		"sent":   result.Sent(),
		"failed": result.Failed(),
	})
	return result, nil
}

// SendAsync runs Send in the background. The channel yields exactly one
// value and is then closed.
func (d *Dispatcher) SendAsync(ctx context.Context, n *models.Notification) <-chan AsyncResult {
	out := make(chan AsyncResult, 1)
	go func() {
		defer close(out)
		res, err := d.Send(ctx, n)
		out <- AsyncResult{Result: res, Err: err}
	}()
	return out
}

func (d *Dispatcher) sendOne(ctx context.Context, n *models.Notification, r models.Profile, log logger.Logger) (*models.NotificationStatus, error) {
	log = log.WithFields(map[string]interface{}{"recipientId": r.ID})
	log.Debug("Recipient state", map[string]interface{}{"state": StateRendering})

	html, err := d.renderBody(ctx, n, r)
	if err != nil {
		return nil, err
	}

	msg, err := mail.Build(n.ForRecipient(r), html)
	if err != nil {
		return nil, err
	}

	log.Debug("Recipient state", map[string]interface{}{"state": StateSending, "messageId": msg.ID})

	start := time.Now()
	if err := d.sender.Send(ctx, msg); err != nil {
		metrics.NotificationSendDuration.WithLabelValues(metrics.OutcomeFailed).Observe(time.Since(start).Seconds())
		return nil, err
	}
	metrics.NotificationSendDuration.WithLabelValues(metrics.OutcomeSent).Observe(time.Since(start).Seconds())

	log.Debug("Recipient state", map[string]interface{}{"state": StateDone})

	return &models.NotificationStatus{
		EventID:   n.EventID,
		UserID:    r.ID,
		Channel:   models.ChannelMail,
		MessageID: msg.ID,
		SentAt:    time.Now().UTC(),
	}, nil
}

func (d *Dispatcher) renderBody(ctx context.Context, n *models.Notification, r models.Profile) (string, error) {
	model := BuildModel(n.Params, r)

	if strings.TrimSpace(n.Template) != "" {
		start := time.Now()
		tpl, err := d.resolver.Resolve(ctx, n.Application, n.Template)
		if err != nil {
			return "", err
		}
		html, err := d.engine.Render(model, tpl.Content)
		metrics.NotificationRenderDuration.WithLabelValues(sourceTemplate).Observe(time.Since(start).Seconds())
		return html, err
	}

	start := time.Now()
	src, values := render.InterpolateRefs(n.Message, r)
	model[render.RecipientKey] = values
	body, err := render.MarkdownToHTML(src)
	if err != nil {
		return "", err
	}
	html, err := d.engine.Render(model, body)
	metrics.NotificationRenderDuration.WithLabelValues(sourceInline).Observe(time.Since(start).Seconds())
	return html, err
}

func (d *Dispatcher) reportFailure(log logger.Logger, index int, r models.Profile, err error) {
	code := errors.CodeOf(err)
	metrics.NotificationRecipients.WithLabelValues(string(models.ChannelMail), metrics.OutcomeFailed).Inc()
	metrics.NotificationRecipientErrors.WithLabelValues(string(code)).Inc()

	fields := map[string]interface{}{
		"recipientId": r.ID,
		"index":       index,
		"state":       StateFailed,
		"errorCode":   string(code),
		"error":       err,
	}
	if pe, ok := err.(*PanicError); ok {
		fields["stack"] = string(pe.Stack)
	}
	log.Error("Recipient dispatch failed", fields)

	if d.onFailure != nil {
		d.onFailure(RecipientError{Index: index, RecipientID: r.ID, Email: r.Email, Err: err})
	}
}

// BuildModel returns the engine model for one recipient: a deep copy of
// params with the message entry interpolated for r and r's attributes set.
// A nil params map yields a model holding only the attributes.
func BuildModel(params map[string]interface{}, r models.Profile) map[string]interface{} {
	model := cloneMap(params)

	if msg, ok := model["message"]; ok && msg != nil {
		model["message"] = render.Interpolate(fmt.Sprint(msg), r)
	}

	model["firstName"] = r.FirstName
	model["lastName"] = r.LastName
	model["civility"] = r.Civility
	model["email"] = r.Email
	model["phone"] = r.Phone
	model["phoneIndex"] = r.PhoneIndex
	return model
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+6)
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch x := v.(type) {
	case map[string]interface{}:
		return cloneMap(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

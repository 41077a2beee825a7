package mailnotification

import (
	"notification-workers/internal/common/errors"
	"notification-workers/internal/dispatch"
	"notification-workers/internal/models"
)

const (
	DispatchComplete = "complete"
	DispatchPartial  = "partial"
	DispatchFailed   = "failed"
	DispatchSkipped  = "skipped"
)

// Output is written back to the process. Statuses keeps one slot per contact;
// failed contacts hold null.
type Output struct {
	Statuses []*models.NotificationStatus `json:"notificationStatuses"`
	Sent     int                          `json:"notificationsSent"`
	Failed   int                          `json:"notificationsFailed"`
	Failures []Failure                    `json:"notificationFailures,omitempty"`
	Status   string                       `json:"notificationDispatch"`
}

type Failure struct {
	Index       int    `json:"index"`
	RecipientID string `json:"recipientId,omitempty"`
	ErrorCode   string `json:"errorCode"`
	Message     string `json:"message"`
}

func skippedOutput() *Output {
	return &Output{
		Statuses: []*models.NotificationStatus{},
		Status:   DispatchSkipped,
	}
}

func newOutput(n *models.Notification, res *dispatch.Result) *Output {
	out := &Output{
		Statuses: res.Statuses,
		Sent:     res.Sent(),
		Failed:   res.Failed(),
	}
	if out.Statuses == nil {
		out.Statuses = []*models.NotificationStatus{}
	}

	for i, err := range res.Errors {
		if err == nil {
			continue
		}
		stdErr := errors.Normalize(err)
		out.Failures = append(out.Failures, Failure{
			Index:       i,
			RecipientID: n.Contacts[i].ID,
			ErrorCode:   string(stdErr.Code),
			Message:     err.Error(),
		})
	}

	out.Status = DispatchStatus(out.Sent, out.Failed)
	return out
}

// DispatchStatus summarises a fan-out. An empty contact list counts as complete.
func DispatchStatus(sent, failed int) string {
	switch {
	case failed == 0:
		return DispatchComplete
	case sent == 0:
		return DispatchFailed
	default:
		return DispatchPartial
	}
}

func (o *Output) Variables() map[string]interface{} {
	vars := map[string]interface{}{
		"notificationStatuses": o.Statuses,
		"notificationsSent":    o.Sent,
		"notificationsFailed":  o.Failed,
		"notificationDispatch": o.Status,
	}
	if len(o.Failures) > 0 {
		vars["notificationFailures"] = o.Failures
	}
	return vars
}

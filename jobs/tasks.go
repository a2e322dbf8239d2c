package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for one transactional email.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeBroadcastEmail is the task type for a recipient-list email.
	TaskTypeBroadcastEmail = "mail:broadcast"
)

// SendEmailPayload describes one transactional email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// BroadcastEmailPayload describes one email delivered to a recipient list.
type BroadcastEmailPayload struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	HTML       string   `json:"html"`
	Text       string   `json:"text"`
}

// NewSendEmailTask constructs an Asynq task for a single email.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data), nil
}

// NewBroadcastEmailTask constructs an Asynq task for a recipient-list email.
func NewBroadcastEmailTask(payload BroadcastEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeBroadcastEmail, data), nil
}

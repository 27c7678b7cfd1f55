// Package mail queues rendered-template emails on RabbitMQ and delivers them
// over SMTP from a worker process.
package mail

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gobarber/backend/internal/domain"
)

const (
	DefaultExchange = "gobarber.mail"
	DefaultQueue    = "gobarber.mail.q"

	routingKeyPrefix = "mail."
)

// ErrMalformedTask marks a task that can never be delivered, however often it
// is retried.
var ErrMalformedTask = errors.New("malformed mail task")

// RoutingKey is the topic a task is published under, e.g. "mail.cancellation".
func RoutingKey(task domain.MailTask) string {
	return routingKeyPrefix + task.Template
}

func encodeTask(task domain.MailTask) ([]byte, error) {
	if err := validateTask(task); err != nil {
		return nil, err
	}
	return json.Marshal(task)
}

func decodeTask(body []byte) (domain.MailTask, error) {
	var task domain.MailTask
	if err := json.Unmarshal(body, &task); err != nil {
		return domain.MailTask{}, fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	if err := validateTask(task); err != nil {
		return domain.MailTask{}, err
	}
	return task, nil
}

func validateTask(task domain.MailTask) error {
	switch {
	case strings.TrimSpace(task.To) == "":
		return fmt.Errorf("%w: recipient is required", ErrMalformedTask)
	case strings.TrimSpace(task.Template) == "":
		return fmt.Errorf("%w: template is required", ErrMalformedTask)
	}
	return nil
}

package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("gobarber/backend/internal/mail")

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type WorkerConfig struct {
	URL      string
	Exchange string
	Queue    string
	// DLX, when set, receives rejected deliveries through a "<queue>.dlq" queue.
	DLX      string
	Prefetch int
	Consumer string
}

type Worker struct {
	cfg      WorkerConfig
	renderer *Renderer
	sender   Sender
	log      *slog.Logger

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewWorker(cfg WorkerConfig, renderer *Renderer, sender Sender, log *slog.Logger) *Worker {
	if cfg.Exchange == "" {
		cfg.Exchange = DefaultExchange
	}
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueue
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		cfg:      cfg,
		renderer: renderer,
		sender:   sender,
		log:      log.With(slog.String("component", "mail.worker")),
	}
}

// Connect declares the exchange, queue and optional dead-letter topology and
// binds the queue to every mail routing key.
func (w *Worker) Connect() error {
	conn, err := amqp.Dial(w.cfg.URL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	fail := func(err error) error {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	if err := ch.ExchangeDeclare(w.cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		return fail(fmt.Errorf("declare exchange: %w", err))
	}

	args := amqp.Table{}
	if w.cfg.DLX != "" {
		args["x-dead-letter-exchange"] = w.cfg.DLX
		if err := ch.ExchangeDeclare(w.cfg.DLX, "topic", true, false, false, false, nil); err != nil {
			return fail(fmt.Errorf("declare dlx: %w", err))
		}
		dlq := w.cfg.Queue + ".dlq"
		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fail(fmt.Errorf("declare dlq: %w", err))
		}
		if err := ch.QueueBind(dlq, "#", w.cfg.DLX, false, nil); err != nil {
			return fail(fmt.Errorf("bind dlq: %w", err))
		}
	}

	q, err := ch.QueueDeclare(w.cfg.Queue, true, false, false, false, args)
	if err != nil {
		return fail(fmt.Errorf("declare queue: %w", err))
	}
	if err := ch.QueueBind(q.Name, routingKeyPrefix+"*", w.cfg.Exchange, false, nil); err != nil {
		return fail(fmt.Errorf("bind queue: %w", err))
	}
	if err := ch.Qos(w.cfg.Prefetch, 0, false); err != nil {
		return fail(fmt.Errorf("set qos: %w", err))
	}

	w.conn = conn
	w.ch = ch
	return nil
}

func (w *Worker) Close() {
	if w.ch != nil {
		_ = w.ch.Close()
	}
	if w.conn != nil {
		_ = w.conn.Close()
	}
}

// Run consumes deliveries until ctx is done or the channel closes.
func (w *Worker) Run(ctx context.Context) error {
	msgs, err := w.ch.ConsumeWithContext(ctx, w.cfg.Queue, w.cfg.Consumer, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.settle(d, w.handle(ctx, d.RoutingKey, d.Headers, d.Body))
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
	Reject(requeue bool) error
}

// settle acks successes, dead-letters malformed tasks, and requeues other
// failures once. A delivery that fails again after redelivery is dead-lettered.
func (w *Worker) settle(d amqp.Delivery, err error) {
	w.settleWith(d, d.RoutingKey, d.Redelivered, err)
}

func (w *Worker) settleWith(ack acknowledger, routingKey string, redelivered bool, err error) {
	log := w.log.With(slog.String("routing_key", routingKey))
	switch {
	case err == nil:
		_ = ack.Ack(false)
	case errors.Is(err, ErrMalformedTask) || errors.Is(err, ErrUnknownTemplate):
		log.Error("mail task rejected", slog.Any("err", err))
		_ = ack.Reject(false)
	case redelivered:
		log.Error("mail delivery failed after redelivery", slog.Any("err", err))
		_ = ack.Reject(false)
	default:
		log.Warn("mail delivery failed; requeueing", slog.Any("err", err))
		_ = ack.Nack(false, true)
	}
}

func (w *Worker) handle(ctx context.Context, routingKey string, headers amqp.Table, body []byte) error {
	if headers != nil {
		ctx = otel.GetTextMapPropagator().Extract(ctx, headerCarrier(headers))
	}
	ctx, span := tracer.Start(ctx, "mail.Deliver", trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.rabbitmq.routing_key", routingKey)))
	defer span.End()

	err := w.deliver(ctx, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (w *Worker) deliver(ctx context.Context, body []byte) error {
	task, err := decodeTask(body)
	if err != nil {
		return err
	}
	html, err := w.renderer.Render(task.Template, task.Context)
	if err != nil {
		return err
	}
	if err := w.sender.Send(ctx, Message{To: task.To, Subject: task.Subject, HTML: html}); err != nil {
		return err
	}
	w.log.Info("mail sent", slog.String("template", task.Template), slog.String("to", task.To))
	return nil
}

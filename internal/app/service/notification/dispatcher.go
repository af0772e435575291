package notification

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/iftar/internal/app/repository"
	"github.com/fatflowers/iftar/internal/models"
	"github.com/fatflowers/iftar/internal/platform/notify"
	"github.com/fatflowers/iftar/internal/platform/queue"
	cfgpkg "github.com/fatflowers/iftar/pkg/config"
	"github.com/fatflowers/iftar/pkg/logctx"
	"github.com/fatflowers/iftar/pkg/metrics"
	"github.com/fatflowers/iftar/pkg/tool"
	"github.com/fatflowers/iftar/pkg/types"
)

type Sender interface {
	Send(ctx context.Context, msg notify.Message) error
}

// JobQueue is the subset of *queue.Queue the dispatcher and worker use.
type JobQueue interface {
	Enqueue(ctx context.Context, jobType queue.JobType, payload any) error
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// Job is one delivery, queued or sent inline.
type Job struct {
	Channel       types.NotificationChannel `json:"channel"`
	ParticipantID string                    `json:"participant_id,omitempty"`
	Message       notify.Message            `json:"message"`
}

// Dispatcher delivers notifications. Delivery failures are logged and never returned to callers.
type Dispatcher struct {
	senders    map[types.NotificationChannel]Sender
	queue      JobQueue
	repo       repository.Repository
	metrics    *metrics.Business
	templates  cfgpkg.TemplateConfig
	adminEmail string
	eventName  string
	log        *zap.SugaredLogger
}

type Params struct {
	fx.In

	Config  *cfgpkg.Config
	Repo    repository.Repository
	Email   *notify.EmailSender
	SMS     *notify.SMSSender
	Queue   *queue.Queue      `optional:"true"`
	Metrics *metrics.Business `optional:"true"`
	Log     *zap.SugaredLogger
}

func New(p Params) *Dispatcher {
	d := NewDispatcher(p.Config, p.Repo, map[types.NotificationChannel]Sender{
		types.NotificationChannelEmail: p.Email,
		types.NotificationChannelSMS:   p.SMS,
	}, p.Metrics, p.Log)
	// a nil *queue.Queue must not end up as a non-nil interface
	if p.Queue != nil {
		d.queue = p.Queue
	}
	return d
}

func NewDispatcher(cfg *cfgpkg.Config, repo repository.Repository, senders map[types.NotificationChannel]Sender, m *metrics.Business, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		senders:    senders,
		repo:       repo,
		metrics:    m,
		templates:  cfg.Notify.Templates,
		adminEmail: cfg.Notify.AdminEmail,
		eventName:  cfg.Event.Name,
		log:        log,
	}
}

// WithQueue routes deliveries through q instead of sending inline.
func (d *Dispatcher) WithQueue(q JobQueue) *Dispatcher {
	d.queue = q
	return d
}

// Notify enqueues the job, or sends it inline when no queue is configured or enqueueing fails.
func (d *Dispatcher) Notify(ctx context.Context, job Job) {
	lg := logctx.FromCtx(ctx, d.log)
	if job.Message.To == "" || job.Message.TemplateID == "" {
		lg.Debugw("notification_skipped", "channel", job.Channel, "participant_id", job.ParticipantID)
		return
	}
	if d.queue != nil {
		err := d.queue.Enqueue(ctx, queue.JobTypeNotification, job)
		if err == nil {
			return
		}
		lg.Warnw("notification_enqueue_failed", "channel", job.Channel, "err", err)
	}
	if err := d.Deliver(ctx, job, 0); err != nil {
		lg.Warnw("notification_failed", "channel", job.Channel, "participant_id", job.ParticipantID, "err", err)
	}
}

// Deliver sends once and records the attempt in the notification log.
func (d *Dispatcher) Deliver(ctx context.Context, job Job, attempt int) error {
	sender, ok := d.senders[job.Channel]
	var err error
	if !ok || sender == nil {
		err = notify.ErrNotConfigured
	} else {
		err = sender.Send(ctx, job.Message)
	}

	entry := &models.NotificationLog{
		ID:         tool.GenerateUUIDV7(),
		Channel:    job.Channel,
		Recipient:  job.Message.To,
		TemplateID: job.Message.TemplateID,
		Params:     datatypes.JSONMap(job.Message.Params),
		Status:     models.NotificationLogStatusSent,
		Attempt:    attempt,
		CreatedAt:  time.Now(),
	}
	if job.ParticipantID != "" {
		entry.ParticipantID = &job.ParticipantID
	}
	result := "sent"
	if err != nil {
		entry.Status = models.NotificationLogStatusFailed
		entry.Error = err.Error()
		result = "failed"
	}
	d.metrics.Notification(string(job.Channel), result)
	if logErr := d.repo.SaveNotificationLog(ctx, entry); logErr != nil {
		logctx.FromCtx(ctx, d.log).Errorf("failed to save notification log: %v", logErr)
	}
	return err
}

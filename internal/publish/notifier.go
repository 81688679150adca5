package publish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bilgisen/redflag-cms/internal/cache"
	"github.com/bilgisen/redflag-cms/internal/logger"
	"github.com/bilgisen/redflag-cms/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

type Config struct {
	// HookURL is the site builder's trigger endpoint. Empty disables
	// publishing.
	HookURL string
	Timeout time.Duration
	Now     func() time.Time
	Logger  *zerolog.Logger
}

// Notifier signals the site builder after content changes. Failures are
// logged and recorded, never returned to the mutation that caused them.
type Notifier struct {
	client  *resty.Client
	hookURL string
	timeout time.Duration
	history cache.PublishLog
	now     func() time.Time
	log     *zerolog.Logger
	wg      sync.WaitGroup
}

func NewNotifier(cfg Config, history cache.PublishLog) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Get()
	}
	if history == nil {
		history = cache.NewMemoryPublishLog()
	}
	return &Notifier{
		client:  resty.New().SetHeader("User-Agent", "redflag-cms"),
		hookURL: cfg.HookURL,
		timeout: cfg.Timeout,
		history: history,
		now:     cfg.Now,
		log:     cfg.Logger,
	}
}

// Notify triggers a rebuild in the background. The signal outlives the
// caller's context so a finished request does not cancel it.
func (n *Notifier) Notify(ctx context.Context, reason string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.Trigger(context.WithoutCancel(ctx), reason)
	}()
}

// Trigger calls the build hook and waits for the answer.
func (n *Notifier) Trigger(ctx context.Context, reason string) models.PublishEvent {
	event := models.PublishEvent{Reason: reason, At: n.now().UTC()}

	if n.hookURL == "" {
		n.log.Debug().Str("reason", reason).Msg("Build hook not configured, skipping publish")
		event.Skipped = true
		n.record(ctx, event)
		return event
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	start := time.Now()
	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"reason": reason}).
		Post(n.hookURL)
	event.Duration = time.Since(start).Round(time.Millisecond).String()

	switch {
	case err != nil:
		event.Error = fmt.Sprintf("build hook request failed: %v", err)
	case resp.IsError():
		event.StatusCode = resp.StatusCode()
		event.Error = fmt.Sprintf("build hook returned %s", resp.Status())
	default:
		event.StatusCode = resp.StatusCode()
	}

	if event.Error != "" {
		n.log.Warn().Str("reason", reason).Int("status", event.StatusCode).Msg(event.Error)
	} else {
		n.log.Info().Str("reason", reason).Int("status", event.StatusCode).Str("duration", event.Duration).Msg("Publish triggered")
	}
	n.record(ctx, event)
	return event
}

func (n *Notifier) record(ctx context.Context, event models.PublishEvent) {
	if err := n.history.RecordPublish(context.WithoutCancel(ctx), event); err != nil {
		n.log.Warn().Err(err).Str("reason", event.Reason).Msg("Error recording publish event")
	}
}

// Wait blocks until background signals finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

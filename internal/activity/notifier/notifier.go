// Package notifier drains unposted activity records into webhook
// notifications, oldest first.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/elrep/internal/activity/domain"
	"github.com/smallbiznis/elrep/internal/clock"
	"github.com/smallbiznis/elrep/internal/config"
	obsmetrics "github.com/smallbiznis/elrep/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrMissingWebhookURL is fatal at startup: an unconfigured endpoint is a
// deployment mistake, not a per-record failure.
var ErrMissingWebhookURL = errors.New("missing NOTIFY_WEBHOOK_URL")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
	Repo   activitydomain.Repository
	Client WebhookClient
	Clock  clock.Clock
}

type Notifier struct {
	db         *gorm.DB
	log        *zap.Logger
	repo       activitydomain.Repository
	client     WebhookClient
	clock      clock.Clock
	webhookURL string
	httpOrigin string
	interval   time.Duration
	// Restricts polling to one organization's records for test isolation;
	// zero means all organizations.
	organizationID snowflake.ID
}

func New(p Params) (*Notifier, error) {
	if p.Config.NotifyWebhookURL == "" {
		return nil, ErrMissingWebhookURL
	}

	var orgID snowflake.ID
	if p.Config.NotifyOrganizationID != "" {
		parsed, err := snowflake.ParseString(p.Config.NotifyOrganizationID)
		if err != nil {
			return nil, fmt.Errorf("invalid NOTIFY_ORGANIZATION_ID: %w", err)
		}
		orgID = parsed
	}

	interval := p.Config.NotifyInterval
	if interval <= 0 {
		interval = time.Second
	}

	return &Notifier{
		db:             p.DB,
		log:            p.Log.Named("activity.notifier"),
		repo:           p.Repo,
		client:         p.Client,
		clock:          p.Clock,
		webhookURL:     p.Config.NotifyWebhookURL,
		httpOrigin:     p.Config.HTTPOrigin,
		interval:       interval,
		organizationID: orgID,
	}, nil
}

// SendNext delivers the single oldest unposted record, if any. A non-200
// response or transport failure leaves the record unposted so the next poll
// retries it; a crash between send and mark can duplicate a delivery, which
// the endpoint must tolerate.
func (n *Notifier) SendNext(ctx context.Context) (bool, error) {
	record, err := n.repo.OldestUnposted(ctx, n.db, n.organizationID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	activity, err := activitydomain.DecodeActivity(record)
	if err != nil {
		return false, fmt.Errorf("record %s: %w", record.ID, err)
	}
	message, err := Message(activity, n.httpOrigin)
	if err != nil {
		return false, fmt.Errorf("record %s: %w", record.ID, err)
	}

	status, body, err := n.client.Post(ctx, n.webhookURL, message)
	if err != nil {
		return false, fmt.Errorf("error posting record %s: %w", record.ID, err)
	}
	if status != http.StatusOK {
		return false, fmt.Errorf("error posting record %s:\n\n%s", record.ID, body)
	}

	if err := n.repo.MarkPosted(ctx, n.db, record.ID, n.clock.Now()); err != nil {
		return false, err
	}
	return true, nil
}

// Run polls until ctx is canceled. Each attempt stands alone; no transaction
// is held across the sleep. The fixed interval throttles outbound calls to at
// most one per second.
func (n *Notifier) Run(ctx context.Context) {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		sent, err := n.SendNext(ctx)
		switch {
		case err != nil:
			obsmetrics.NotifierErrors.WithLabelValues("delivery").Inc()
			n.log.Warn("notification delivery failed", zap.Error(err))
		case sent:
			obsmetrics.NotifierDeliveries.Inc()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

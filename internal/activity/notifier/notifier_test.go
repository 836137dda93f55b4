package notifier

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	activitydomain "github.com/smallbiznis/elrep/internal/activity/domain"
	activityrepo "github.com/smallbiznis/elrep/internal/activity/repository"
	activityservice "github.com/smallbiznis/elrep/internal/activity/service"
	"github.com/smallbiznis/elrep/internal/clock"
	"github.com/smallbiznis/elrep/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeWebhookClient struct {
	status   int
	body     string
	err      error
	requests []any
}

func (c *fakeWebhookClient) Post(ctx context.Context, url string, body any) (int, string, error) {
	c.requests = append(c.requests, body)
	if c.err != nil {
		return 0, "", c.err
	}
	return c.status, c.body, nil
}

func setupNotifier(t *testing.T, client WebhookClient) (*Notifier, *gorm.DB, activitydomain.Service) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&activitydomain.ActivityLogRecord{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	repo := activityrepo.Provide()
	svc := activityservice.NewService(activityservice.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repo,
	})

	notifier, err := New(Params{
		DB:  db,
		Log: zap.NewNop(),
		Config: config.Config{
			NotifyWebhookURL: "https://hooks.example.com/services/T000/B000",
			NotifyInterval:   time.Second,
			HTTPOrigin:       "http://localhost:8080",
		},
		Repo:   repo,
		Client: client,
		Clock:  clock.NewFakeClock(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	return notifier, db, svc
}

func recordActivity(t *testing.T, db *gorm.DB, svc activitydomain.Service, activity activitydomain.Activity) {
	t.Helper()
	require.NoError(t, svc.Record(context.Background(), db, activity))
}

func electionCreated(at time.Time, election string) activitydomain.ElectionCreated {
	return activitydomain.ElectionCreated{
		Timestamp: at,
		Base: activitydomain.Base{
			OrganizationID:   42,
			OrganizationName: "Main",
			ElectionName:     election,
			UserKey:          "user:admin@example.gov",
		},
	}
}

func TestNotifierRequiresWebhookURL(t *testing.T) {
	_, err := New(Params{
		Log:    zap.NewNop(),
		Config: config.Config{},
		Repo:   activityrepo.Provide(),
		Client: &fakeWebhookClient{status: http.StatusOK},
		Clock:  clock.NewSystemClock(),
	})
	assert.ErrorIs(t, err, ErrMissingWebhookURL)
}

func TestSendNextDeliversOldestFirst(t *testing.T) {
	client := &fakeWebhookClient{status: http.StatusOK}
	notifier, db, svc := setupNotifier(t, client)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	recordActivity(t, db, svc, electionCreated(base.Add(2*time.Minute), "Third"))
	recordActivity(t, db, svc, electionCreated(base, "First"))
	recordActivity(t, db, svc, electionCreated(base.Add(time.Minute), "Second"))

	ctx := context.Background()
	var delivered []string
	for {
		sent, err := notifier.SendNext(ctx)
		require.NoError(t, err)
		if !sent {
			break
		}
		last := client.requests[len(client.requests)-1].(map[string]any)
		delivered = append(delivered, last["text"].(string))
	}

	require.Len(t, delivered, 3)
	assert.Contains(t, delivered[0], "First")
	assert.Contains(t, delivered[1], "Second")
	assert.Contains(t, delivered[2], "Third")

	var unposted int64
	require.NoError(t, db.Model(&activitydomain.ActivityLogRecord{}).
		Where("posted_at IS NULL").Count(&unposted).Error)
	assert.Zero(t, unposted)
}

func TestSendNextLeavesRecordOnFailure(t *testing.T) {
	client := &fakeWebhookClient{status: http.StatusTooManyRequests, body: "rate limited"}
	notifier, db, svc := setupNotifier(t, client)

	recordActivity(t, db, svc, electionCreated(time.Now().UTC(), "General Election"))

	sent, err := notifier.SendNext(context.Background())
	assert.False(t, sent)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")

	// Still unposted, so the next poll retries it.
	var record activitydomain.ActivityLogRecord
	require.NoError(t, db.First(&record).Error)
	assert.Nil(t, record.PostedAt)

	client.status = http.StatusOK
	sent, err = notifier.SendNext(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)

	require.NoError(t, db.First(&record).Error)
	assert.NotNil(t, record.PostedAt)
}

func TestSendNextNoRecords(t *testing.T) {
	notifier, _, _ := setupNotifier(t, &fakeWebhookClient{status: http.StatusOK})

	sent, err := notifier.SendNext(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
}

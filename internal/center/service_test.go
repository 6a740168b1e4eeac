package center

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/helmdeck/notify-agent/internal/conn"
	"github.com/helmdeck/notify-agent/internal/inbox"
	"github.com/helmdeck/notify-agent/internal/stream"
	"github.com/helmdeck/notify-agent/pkg/enums"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
	"github.com/helmdeck/notify-agent/pkg/models"
	"github.com/helmdeck/notify-agent/pkg/wire"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeStore struct {
	mu       sync.Mutex
	current  models.UserPreferences
	loaded   bool
	loadFn   func(ctx context.Context) (models.UserPreferences, error)
	updateFn func(ctx context.Context, patch models.PreferencesPatch) (models.UserPreferences, error)
}

func (f *fakeStore) Load(ctx context.Context) (models.UserPreferences, error) {
	if f.loadFn != nil {
		return f.loadFn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fakeStore) Current() (models.UserPreferences, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.loaded
}

func (f *fakeStore) Update(ctx context.Context, patch models.PreferencesPatch) (models.UserPreferences, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, patch)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

type fakeSender struct {
	mu     sync.Mutex
	sent   []wire.ControlMessage
	sendFn func(ctx context.Context, msg wire.ControlMessage) error
	info   conn.StatusInfo
}

func (f *fakeSender) Send(ctx context.Context, msg wire.ControlMessage) error {
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeSender) Info() conn.StatusInfo {
	return f.info
}

func (f *fakeSender) sentMessages() []wire.ControlMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]wire.ControlMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeAlerter struct {
	mu     sync.Mutex
	alerts []models.Notification
}

func (f *fakeAlerter) Alert(ctx context.Context, n models.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, n)
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type centerFixture struct {
	svc     Service
	log     *inbox.Log
	store   *fakeStore
	sender  *fakeSender
	alerter *fakeAlerter
	events  <-chan stream.Event
}

func newCenterFixture(t *testing.T, preferences models.UserPreferences, now time.Time) *centerFixture {
	t.Helper()

	log := inbox.NewLog(inbox.Params{Capacity: 10, Now: func() time.Time { return now }})
	hub := stream.NewHub()
	t.Cleanup(hub.Close)
	store := &fakeStore{current: preferences, loaded: true}
	sender := &fakeSender{}
	alerter := &fakeAlerter{}

	events, cancel := hub.Subscribe()
	t.Cleanup(cancel)

	svc, err := NewService(Params{
		Log:     log,
		Store:   store,
		Sender:  sender,
		Alerter: alerter,
		Hub:     hub,
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewService returned error: %v", err)
	}
	return &centerFixture{
		svc:     svc,
		log:     log,
		store:   store,
		sender:  sender,
		alerter: alerter,
		events:  events,
	}
}

func (f *centerFixture) nextEvent(t *testing.T) stream.Event {
	t.Helper()
	select {
	case ev := <-f.events:
		return ev
	default:
		t.Fatalf("expected a buffered stream event")
		return stream.Event{}
	}
}

func (f *centerFixture) expectNoEvent(t *testing.T) {
	t.Helper()
	select {
	case ev := <-f.events:
		t.Fatalf("unexpected stream event %+v", ev)
	default:
	}
}

func notification(id string, sev enums.Severity, ch enums.Channel) models.Notification {
	return models.Notification{
		ID:        id,
		Title:     "Deploy finished",
		Message:   "pipeline green",
		Type:      sev,
		Channel:   ch,
		CreatedAt: testNow,
	}
}

func TestHandleFrameAlertsWhenChannelEnabled(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)

	f.svc.HandleFrame(context.Background(), notification("n-1", enums.SeverityCritical, enums.ChannelPush))

	if got := f.log.Len(); got != 1 {
		t.Fatalf("expected record appended, log has %d", got)
	}
	if got := f.alerter.count(); got != 1 {
		t.Fatalf("expected one alert, got %d", got)
	}
	if ev := f.nextEvent(t); ev.Kind != stream.KindNotificationAppended {
		t.Fatalf("expected appended event first, got %s", ev.Kind)
	}
	if ev := f.nextEvent(t); ev.Kind != stream.KindNotificationAlert {
		t.Fatalf("expected alert event second, got %s", ev.Kind)
	}
	f.expectNoEvent(t)
}

func TestHandleFrameCriticalPushDisabled(t *testing.T) {
	preferences := models.DefaultPreferences("user-1")
	preferences.PushEnabled = false
	f := newCenterFixture(t, preferences, testNow)

	before := f.svc.UnreadCount()
	f.svc.HandleFrame(context.Background(), notification("n1", enums.SeverityCritical, enums.ChannelPush))

	if got := f.svc.UnreadCount(); got != before+1 {
		t.Fatalf("expected unread count %d, got %d", before+1, got)
	}
	if got := f.alerter.count(); got != 0 {
		t.Fatalf("expected alert suppressed, got %d", got)
	}
	if ev := f.nextEvent(t); ev.Kind != stream.KindNotificationAppended {
		t.Fatalf("expected appended event, got %s", ev.Kind)
	}
	f.expectNoEvent(t)
}

func TestHandleFrameQuietHoursSuppressAlert(t *testing.T) {
	preferences := models.DefaultPreferences("user-1")
	preferences.QuietHoursStart = "22:00"
	preferences.QuietHoursEnd = "06:00"

	lateNight := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	quiet := newCenterFixture(t, preferences, lateNight)
	quiet.svc.HandleFrame(context.Background(), notification("n-1", enums.SeverityError, enums.ChannelEmail))
	if got := quiet.alerter.count(); got != 0 {
		t.Fatalf("expected alert suppressed during quiet hours, got %d", got)
	}
	if got := quiet.log.Len(); got != 1 {
		t.Fatalf("expected record still appended, log has %d", got)
	}

	noon := newCenterFixture(t, preferences, testNow)
	noon.svc.HandleFrame(context.Background(), notification("n-1", enums.SeverityError, enums.ChannelEmail))
	if got := noon.alerter.count(); got != 1 {
		t.Fatalf("expected alert outside quiet hours, got %d", got)
	}
}

func TestHandleFrameNonInterruptiveNeverAlerts(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)

	f.svc.HandleFrame(context.Background(), notification("n-1", enums.SeverityInfo, enums.ChannelInApp))

	if got := f.alerter.count(); got != 0 {
		t.Fatalf("expected no alert for in_app, got %d", got)
	}
	if ev := f.nextEvent(t); ev.Kind != stream.KindNotificationAppended {
		t.Fatalf("expected appended event, got %s", ev.Kind)
	}
	f.expectNoEvent(t)
}

func TestMarkReadControlFlow(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	f.svc.HandleFrame(context.Background(), notification("n-1", enums.SeverityInfo, enums.ChannelInApp))

	if err := f.svc.MarkRead(context.Background(), "n-1"); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
	sent := f.sender.sentMessages()
	if len(sent) != 1 || sent[0].Action != wire.ActionMarkRead || sent[0].NotificationID != "n-1" {
		t.Fatalf("expected one mark_read control message, got %+v", sent)
	}

	// re-marking is an idempotent success and must not re-notify upstream
	if err := f.svc.MarkRead(context.Background(), "n-1"); err != nil {
		t.Fatalf("unexpected repeat mark read error: %v", err)
	}
	if got := len(f.sender.sentMessages()); got != 1 {
		t.Fatalf("expected no second control message, got %d", got)
	}

	err := f.svc.MarkRead(context.Background(), "missing")
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
	err = f.svc.MarkRead(context.Background(), "")
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRemoveControlFlow(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	f.svc.HandleFrame(context.Background(), notification("n-1", enums.SeverityInfo, enums.ChannelInApp))

	if err := f.svc.Remove(context.Background(), "n-1"); err != nil {
		t.Fatalf("unexpected remove error: %v", err)
	}
	sent := f.sender.sentMessages()
	if len(sent) != 1 || sent[0].Action != wire.ActionDelete || sent[0].NotificationID != "n-1" {
		t.Fatalf("expected one delete control message, got %+v", sent)
	}
	if got := f.log.Len(); got != 0 {
		t.Fatalf("expected record removed, log has %d", got)
	}

	err := f.svc.Remove(context.Background(), "n-1")
	if err == nil || pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestBulkMutationsSendNoControl(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	for _, id := range []string{"n-1", "n-2", "n-3"} {
		f.svc.HandleFrame(context.Background(), notification(id, enums.SeverityWarning, enums.ChannelInApp))
	}

	if marked := f.svc.MarkAllRead(context.Background()); marked != 3 {
		t.Fatalf("expected 3 marked, got %d", marked)
	}
	if removed := f.svc.Clear(context.Background()); removed != 3 {
		t.Fatalf("expected 3 removed, got %d", removed)
	}
	if got := f.sender.sentMessages(); len(got) != 0 {
		t.Fatalf("expected bulk mutations to stay local, sent %+v", got)
	}
}

func TestClearByType(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	f.svc.HandleFrame(context.Background(), notification("n-1", enums.SeverityInfo, enums.ChannelInApp))
	f.svc.HandleFrame(context.Background(), notification("n-2", enums.SeverityWarning, enums.ChannelInApp))
	f.svc.HandleFrame(context.Background(), notification("n-3", enums.SeverityInfo, enums.ChannelInApp))

	if removed := f.svc.ClearByType(context.Background(), enums.SeverityInfo); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	remaining := f.svc.List(context.Background(), ListParams{})
	if len(remaining) != 1 || remaining[0].ID != "n-2" {
		t.Fatalf("expected only the warning record, got %+v", remaining)
	}
}

func TestListFiltersUnreadInOrder(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	for _, id := range []string{"u-1", "r-1", "u-2", "r-2", "u-3"} {
		f.svc.HandleFrame(context.Background(), notification(id, enums.SeverityInfo, enums.ChannelInApp))
	}
	if err := f.svc.MarkRead(context.Background(), "r-1"); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}
	if err := f.svc.MarkRead(context.Background(), "r-2"); err != nil {
		t.Fatalf("unexpected mark read error: %v", err)
	}

	unread := false
	got := f.svc.List(context.Background(), ListParams{Read: &unread})
	if len(got) != 3 {
		t.Fatalf("expected 3 unread, got %d", len(got))
	}
	for i, want := range []string{"u-3", "u-2", "u-1"} {
		if got[i].ID != want {
			t.Fatalf("expected %s at index %d, got %s", want, i, got[i].ID)
		}
	}
}

func TestFilterOptions(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	options := f.svc.FilterOptions()
	if len(options.Types) != len(enums.Severities()) {
		t.Fatalf("expected full severity set, got %v", options.Types)
	}
	if len(options.Channels) != len(enums.Channels()) {
		t.Fatalf("expected full channel set, got %v", options.Channels)
	}

	subscribed := models.DefaultPreferences("user-1")
	subscribed.NotificationTypes = []string{"error", "critical"}
	narrowed := newCenterFixture(t, subscribed, testNow)
	options = narrowed.svc.FilterOptions()
	if len(options.Types) != 2 || options.Types[0] != "error" || options.Types[1] != "critical" {
		t.Fatalf("expected subscribed type set, got %v", options.Types)
	}
}

func TestPreferencesDelegation(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	f.store.loadFn = func(ctx context.Context) (models.UserPreferences, error) {
		return models.UserPreferences{}, pkgerrors.New(pkgerrors.CodeDependency, "preference service unreachable")
	}
	if _, err := f.svc.Preferences(context.Background()); pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error passed through, got %v", err)
	}

	enabled := true
	f.store.updateFn = func(ctx context.Context, patch models.PreferencesPatch) (models.UserPreferences, error) {
		if patch.PushEnabled == nil || !*patch.PushEnabled {
			t.Fatalf("expected patch passed through, got %+v", patch)
		}
		updated := models.DefaultPreferences("user-1")
		updated.PushEnabled = true
		return updated, nil
	}
	updated, err := f.svc.UpdatePreferences(context.Background(), models.PreferencesPatch{PushEnabled: &enabled})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if !updated.PushEnabled {
		t.Fatalf("expected updated preferences returned")
	}
}

func TestAutoExpire(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)

	old := notification("old", enums.SeverityInfo, enums.ChannelInApp)
	old.CreatedAt = testNow.Add(-2 * time.Hour)
	pinned := notification("pinned", enums.SeverityInfo, enums.ChannelInApp)
	pinned.CreatedAt = testNow.Add(-48 * time.Hour)
	pinned.Metadata = map[string]any{models.MetadataPersistentKey: true}
	fresh := notification("fresh", enums.SeverityInfo, enums.ChannelInApp)

	for _, n := range []models.Notification{old, pinned, fresh} {
		f.svc.HandleFrame(context.Background(), n)
	}

	if expired := f.svc.AutoExpire(time.Hour); expired != 1 {
		t.Fatalf("expected 1 expired, got %d", expired)
	}
	if got := f.svc.UnreadCount(); got != 2 {
		t.Fatalf("expected pinned and fresh still unread, got %d", got)
	}
}

func TestStatusPassthrough(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	f.sender.info = conn.StatusInfo{State: conn.StateConnected, Endpoint: "wss://push.helmdeck.io/v1/stream"}

	info := f.svc.Status()
	if info.State != conn.StateConnected || info.Endpoint != "wss://push.helmdeck.io/v1/stream" {
		t.Fatalf("unexpected status %+v", info)
	}
}

func TestExpiryJobRunsSweep(t *testing.T) {
	f := newCenterFixture(t, models.DefaultPreferences("user-1"), testNow)
	old := notification("old", enums.SeverityInfo, enums.ChannelInApp)
	old.CreatedAt = testNow.Add(-2 * time.Hour)
	f.svc.HandleFrame(context.Background(), old)

	job, err := NewExpiryJob(f.svc, time.Hour)
	if err != nil {
		t.Fatalf("NewExpiryJob returned error: %v", err)
	}
	if job.Name() != "notification-expiry" {
		t.Fatalf("unexpected job name %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected run error: %v", err)
	}
	if got := f.svc.UnreadCount(); got != 0 {
		t.Fatalf("expected sweep to mark the stale record, got %d unread", got)
	}
}

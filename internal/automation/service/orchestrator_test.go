package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"inspection_portal/internal/automation/condition"
	"inspection_portal/internal/automation/domain"
	"inspection_portal/internal/automation/queue"
	inspection "inspection_portal/internal/inspections/domain"
	"inspection_portal/platform/logger"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type fakeStore struct {
	mu        sync.Mutex
	snapshots map[uuid.UUID]inspection.Snapshot
	setErr    error
}

func newFakeStore(snaps ...inspection.Snapshot) *fakeStore {
	s := &fakeStore{snapshots: make(map[uuid.UUID]inspection.Snapshot)}
	for _, snap := range snaps {
		s.snapshots[snap.ID] = snap
	}
	return s
}

func (s *fakeStore) GetSnapshot(_ context.Context, id uuid.UUID) (inspection.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[id]
	if !ok {
		return inspection.Snapshot{}, errors.New("inspection not found")
	}
	return snap, nil
}

func (s *fakeStore) SetTriggerSent(_ context.Context, id uuid.UUID, idx int, status domain.TriggerStatus, sentAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	snap := s.snapshots[id]
	if idx < 0 || idx >= len(snap.Triggers) {
		return errors.New("trigger index out of range")
	}
	snap.Triggers[idx].Status = status
	snap.Triggers[idx].SentAt = sentAt
	s.snapshots[id] = snap
	return nil
}

// memQueue is an in-memory Queue with the same upsert-by-slot semantics as
// the persistent backends.
type memQueue struct {
	mu         sync.Mutex
	records    map[string]queue.Record
	enqueueErr error
}

func newMemQueue() *memQueue {
	return &memQueue{records: make(map[string]queue.Record)}
}

func slotKey(id uuid.UUID, idx int) string {
	return fmt.Sprintf("%s:%d", id, idx)
}

func (q *memQueue) Enqueue(_ context.Context, rec queue.Record) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.records[slotKey(rec.InspectionID, rec.TriggerIndex)] = rec
	return nil
}

func (q *memQueue) Remove(_ context.Context, id uuid.UUID, idx int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.records, slotKey(id, idx))
	return nil
}

func (q *memQueue) PopDue(_ context.Context, now time.Time) ([]queue.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []queue.Record
	for key, rec := range q.records {
		if !rec.ExecutionTime.After(now) {
			due = append(due, rec)
			delete(q.records, key)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ExecutionTime.Before(due[j].ExecutionTime) })
	return due, nil
}

func (q *memQueue) ListForInspection(_ context.Context, id uuid.UUID, onlyFuture bool) ([]queue.Record, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	var out []queue.Record
	for _, rec := range q.records {
		if rec.InspectionID != id {
			continue
		}
		if onlyFuture && !rec.ExecutionTime.After(now) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExecutionTime.Before(out[j].ExecutionTime) })
	return out, nil
}

func (q *memQueue) GarbageCollect(_ context.Context, _ time.Duration) (int, error) {
	return 0, nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.records)
}

type sentMessage struct {
	channel domain.CommunicationType
	to      []string
	subject string
	body    string
}

type fakeDelivery struct {
	mu       sync.Mutex
	sent     []sentMessage
	emailErr error
	smsErr   error
}

func (d *fakeDelivery) SendEmail(_ context.Context, msg EmailMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.emailErr != nil {
		return d.emailErr
	}
	d.sent = append(d.sent, sentMessage{channel: domain.CommunicationEmail, to: msg.To, subject: msg.Subject, body: msg.HTMLBody})
	return nil
}

func (d *fakeDelivery) SendSMS(_ context.Context, msg SMSMessage) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.smsErr != nil {
		return d.smsErr
	}
	d.sent = append(d.sent, sentMessage{channel: domain.CommunicationText, to: msg.To, body: msg.Body})
	return nil
}

func (d *fakeDelivery) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]sentMessage, len(d.sent))
	copy(out, d.sent)
	return out
}

type nopLookups struct{}

func (nopLookups) ServiceCategoryIDs(context.Context, []uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (nopLookups) ContactCategoryID(context.Context, uuid.UUID) (uuid.UUID, bool, error) {
	return uuid.Nil, false, nil
}

func (nopLookups) EventNames(context.Context, uuid.UUID) ([]string, error) {
	return nil, nil
}

// -----------------------------------------------------------------------------
// Harness
// -----------------------------------------------------------------------------

type harness struct {
	store    *fakeStore
	queue    *memQueue
	delivery *fakeDelivery
	orch     *Orchestrator
}

func newHarness(t *testing.T, snaps ...inspection.Snapshot) *harness {
	t.Helper()
	log := logger.New("test")
	store := newFakeStore(snaps...)
	q := newMemQueue()
	delivery := &fakeDelivery{}
	eval := condition.New(nopLookups{}, log)
	orch := NewOrchestrator(store, q, eval, delivery, nil, log)
	return &harness{store: store, queue: q, delivery: delivery, orch: orch}
}

func emailTrigger(key domain.TriggerKey) domain.TriggerConfig {
	return domain.TriggerConfig{
		AutomationTrigger: key,
		CommunicationType: domain.CommunicationEmail,
		ConditionLogic:    domain.LogicAnd,
		Recipients:        domain.Recipients{To: []string{"client@example.com"}},
		From:              "office@example.com",
		Subject:           "Your inspection",
		Body:              "<p>Hello</p>",
	}
}

func confirmedSnapshot(triggers ...domain.TriggerConfig) inspection.Snapshot {
	return inspection.Snapshot{
		ID:                  uuid.New(),
		CompanyID:           uuid.New(),
		ConfirmedInspection: true,
		Triggers:            triggers,
	}
}

// -----------------------------------------------------------------------------
// OnEvent pipeline
// -----------------------------------------------------------------------------

func TestOnEventImmediateDelivery(t *testing.T) {
	snap := confirmedSnapshot(emailTrigger(domain.KeyInspectionScheduled))
	h := newHarness(t, snap)

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionScheduled); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].channel != domain.CommunicationEmail {
		t.Fatalf("channel = %s, want EMAIL", msgs[0].channel)
	}

	updated, _ := h.store.GetSnapshot(context.Background(), snap.ID)
	if updated.Triggers[0].Status != domain.StatusSent {
		t.Fatalf("status = %q, want sent", updated.Triggers[0].Status)
	}
	if updated.Triggers[0].SentAt == nil {
		t.Fatal("sentAt not recorded")
	}
}

func TestOnEventKeyMismatchDoesNothing(t *testing.T) {
	snap := confirmedSnapshot(emailTrigger(domain.KeyInspectionScheduled))
	h := newHarness(t, snap)

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("messages = %d, want 0", n)
	}
}

func TestDisabledTriggerNeverFires(t *testing.T) {
	cfg := emailTrigger(domain.KeyInspectionRequested)
	cfg.IsDisabled = true
	snap := confirmedSnapshot(cfg)
	h := newHarness(t, snap)

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("messages = %d, want 0", n)
	}
}

func TestConfirmationGate(t *testing.T) {
	snap := confirmedSnapshot(emailTrigger(domain.KeyInspectionScheduled))
	snap.ConfirmedInspection = false
	h := newHarness(t, snap)

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionScheduled); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("unconfirmed inspection fired scheduled trigger: %d messages", n)
	}

	// INSPECTION_REQUESTED has no confirmation requirement.
	snap2 := confirmedSnapshot(emailTrigger(domain.KeyInspectionRequested))
	snap2.ConfirmedInspection = false
	h2 := newHarness(t, snap2)
	if err := h2.orch.OnEvent(context.Background(), snap2.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if n := len(h2.delivery.messages()); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
}

func TestNotificationSuppressionAndOverride(t *testing.T) {
	suppressed := emailTrigger(domain.KeyInspectionRequested)
	override := emailTrigger(domain.KeyInspectionRequested)
	override.SendEvenWhenNotificationsDisabled = true
	override.Subject = "override"

	snap := confirmedSnapshot(suppressed, override)
	snap.DisableAutomatedNotifications = true
	h := newHarness(t, snap)

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].subject != "override" {
		t.Fatalf("wrong trigger fired: subject %q", msgs[0].subject)
	}
}

func TestOnceOnlySkipsAfterSent(t *testing.T) {
	cfg := emailTrigger(domain.KeyInspectionRequested)
	cfg.OnlyTriggerOnce = true
	snap := confirmedSnapshot(cfg)
	h := newHarness(t, snap)

	ctx := context.Background()
	if err := h.orch.OnEvent(ctx, snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("first OnEvent: %v", err)
	}
	if err := h.orch.OnEvent(ctx, snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("second OnEvent: %v", err)
	}
	if n := len(h.delivery.messages()); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
}

func TestDeliveryFailureMarksBouncedWithoutSentAt(t *testing.T) {
	cfg := emailTrigger(domain.KeyInspectionRequested)
	cfg.OnlyTriggerOnce = true
	snap := confirmedSnapshot(cfg)
	h := newHarness(t, snap)
	h.delivery.emailErr = errors.New("smtp unavailable")

	ctx := context.Background()
	if err := h.orch.OnEvent(ctx, snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}

	updated, _ := h.store.GetSnapshot(ctx, snap.ID)
	if updated.Triggers[0].Status != domain.StatusBounced {
		t.Fatalf("status = %q, want bounced", updated.Triggers[0].Status)
	}
	if updated.Triggers[0].SentAt != nil {
		t.Fatal("bounce must not record sentAt")
	}

	// Once-only triggers that bounced may still fire later.
	h.delivery.emailErr = nil
	if err := h.orch.OnEvent(ctx, snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("retry OnEvent: %v", err)
	}
	if n := len(h.delivery.messages()); n != 1 {
		t.Fatalf("messages = %d, want 1 after retry", n)
	}
}

func TestNoRecipientsSkips(t *testing.T) {
	cfg := emailTrigger(domain.KeyInspectionRequested)
	cfg.Recipients = domain.Recipients{}
	snap := confirmedSnapshot(cfg)
	h := newHarness(t, snap)

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("messages = %d, want 0", n)
	}
}

func TestTextTriggerUsesSMS(t *testing.T) {
	cfg := emailTrigger(domain.KeyInspectionRequested)
	cfg.CommunicationType = domain.CommunicationText
	cfg.Recipients = domain.Recipients{To: []string{"+15125550100"}}
	cfg.Body = "Reminder"
	snap := confirmedSnapshot(cfg)
	h := newHarness(t, snap)

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionRequested); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 1 || msgs[0].channel != domain.CommunicationText {
		t.Fatalf("messages = %+v, want one TEXT", msgs)
	}
	if msgs[0].body != "Reminder" {
		t.Fatalf("body = %q", msgs[0].body)
	}
}

// -----------------------------------------------------------------------------
// Deferral and queue replay
// -----------------------------------------------------------------------------

func TestAnchorDatedTriggerDefers(t *testing.T) {
	now := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC) // Monday
	start := now.Add(48 * time.Hour)

	cfg := emailTrigger(domain.KeyInspectionStartTime)
	cfg.SendTiming = domain.TimingBefore
	cfg.SendDelay = 1
	cfg.SendDelayUnit = domain.UnitDays

	snap := confirmedSnapshot(cfg)
	snap.Date = &start
	h := newHarness(t, snap)
	h.orch.SetClock(func() time.Time { return now })

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionStartTime); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("deferred trigger delivered immediately: %d messages", n)
	}

	pending, err := h.orch.PendingForInspection(context.Background(), snap.ID)
	if err != nil {
		t.Fatalf("PendingForInspection: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	want := start.Add(-24 * time.Hour)
	if !pending[0].ExecutionTime.Equal(want) {
		t.Fatalf("execution time = %v, want %v", pending[0].ExecutionTime, want)
	}
	if pending[0].TriggerKey != domain.KeyInspectionStartTime {
		t.Fatalf("trigger key = %s", pending[0].TriggerKey)
	}
}

func TestRepeatedEventsKeepSingleQueueRecord(t *testing.T) {
	now := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
	start := now.Add(72 * time.Hour)

	cfg := emailTrigger(domain.KeyInspectionStartTime)
	cfg.SendTiming = domain.TimingBefore
	cfg.SendDelay = 2
	cfg.SendDelayUnit = domain.UnitHours

	snap := confirmedSnapshot(cfg)
	snap.Date = &start
	h := newHarness(t, snap)
	h.orch.SetClock(func() time.Time { return now })

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := h.orch.OnEvent(ctx, snap.ID, domain.KeyInspectionStartTime); err != nil {
			t.Fatalf("OnEvent %d: %v", i, err)
		}
	}
	if n := h.queue.len(); n != 1 {
		t.Fatalf("queue records = %d, want 1", n)
	}
}

func TestExecuteQueuedDeliversAndRegates(t *testing.T) {
	cfg := emailTrigger(domain.KeyInspectionStartTime)
	snap := confirmedSnapshot(cfg)
	h := newHarness(t, snap)

	rec := queue.Record{
		InspectionID:  snap.ID,
		TriggerIndex:  0,
		ExecutionTime: time.Now(),
		TriggerKey:    domain.KeyInspectionStartTime,
	}
	if err := h.orch.ExecuteQueued(context.Background(), rec); err != nil {
		t.Fatalf("ExecuteQueued: %v", err)
	}
	if n := len(h.delivery.messages()); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
}

func TestExecuteQueuedSkipsSupersededConfig(t *testing.T) {
	// The slot now holds a different trigger than the one enqueued.
	cfg := emailTrigger(domain.KeyInspectionEndTime)
	snap := confirmedSnapshot(cfg)
	h := newHarness(t, snap)

	rec := queue.Record{
		InspectionID:  snap.ID,
		TriggerIndex:  0,
		ExecutionTime: time.Now(),
		TriggerKey:    domain.KeyInspectionStartTime,
	}
	if err := h.orch.ExecuteQueued(context.Background(), rec); err != nil {
		t.Fatalf("ExecuteQueued: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("superseded record delivered: %d messages", n)
	}
}

func TestExecuteQueuedReChecksConfirmation(t *testing.T) {
	// The inspection lost its confirmation while the record waited.
	cfg := emailTrigger(domain.KeyInspectionScheduled)
	snap := confirmedSnapshot(cfg)
	snap.ConfirmedInspection = false
	h := newHarness(t, snap)

	rec := queue.Record{
		InspectionID:  snap.ID,
		TriggerIndex:  0,
		ExecutionTime: time.Now(),
		TriggerKey:    domain.KeyInspectionScheduled,
	}
	if err := h.orch.ExecuteQueued(context.Background(), rec); err != nil {
		t.Fatalf("ExecuteQueued: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("unconfirmed inspection delivered queued trigger: %d messages", n)
	}
}

func TestExecuteQueuedIndexOutOfRange(t *testing.T) {
	snap := confirmedSnapshot()
	h := newHarness(t, snap)

	rec := queue.Record{InspectionID: snap.ID, TriggerIndex: 3, TriggerKey: domain.KeyInspectionStartTime}
	if err := h.orch.ExecuteQueued(context.Background(), rec); err != nil {
		t.Fatalf("ExecuteQueued: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("messages = %d, want 0", n)
	}
}

func TestEnqueueFailureDoesNotFailEvent(t *testing.T) {
	now := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
	start := now.Add(48 * time.Hour)

	cfg := emailTrigger(domain.KeyInspectionStartTime)
	cfg.SendTiming = domain.TimingBefore
	cfg.SendDelay = 1
	cfg.SendDelayUnit = domain.UnitDays

	snap := confirmedSnapshot(cfg)
	snap.Date = &start
	h := newHarness(t, snap)
	h.orch.SetClock(func() time.Time { return now })
	h.queue.enqueueErr = errors.New("backend down")

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionStartTime); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if n := h.queue.len(); n != 0 {
		t.Fatalf("queue records = %d, want 0", n)
	}
}

// -----------------------------------------------------------------------------
// Anchor date changes and cancellation
// -----------------------------------------------------------------------------

func TestAnchorDateChangeReplansQueueEntry(t *testing.T) {
	now := time.Date(2027, 3, 1, 9, 0, 0, 0, time.UTC)
	oldStart := now.Add(48 * time.Hour)

	cfg := emailTrigger(domain.KeyInspectionStartTime)
	cfg.SendTiming = domain.TimingBefore
	cfg.SendDelay = 1
	cfg.SendDelayUnit = domain.UnitDays

	snap := confirmedSnapshot(cfg)
	snap.Date = &oldStart
	h := newHarness(t, snap)
	h.orch.SetClock(func() time.Time { return now })

	ctx := context.Background()
	if err := h.orch.OnEvent(ctx, snap.ID, domain.KeyInspectionStartTime); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}

	// User moves the inspection a week out.
	newStart := now.Add(8 * 24 * time.Hour)
	h.store.mu.Lock()
	moved := h.store.snapshots[snap.ID]
	moved.Date = &newStart
	h.store.snapshots[snap.ID] = moved
	h.store.mu.Unlock()

	if err := h.orch.OnAnchorDateChanged(ctx, snap.ID); err != nil {
		t.Fatalf("OnAnchorDateChanged: %v", err)
	}

	pending, err := h.orch.PendingForInspection(ctx, snap.ID)
	if err != nil {
		t.Fatalf("PendingForInspection: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}
	want := newStart.Add(-24 * time.Hour)
	if !pending[0].ExecutionTime.Equal(want) {
		t.Fatalf("execution time = %v, want %v", pending[0].ExecutionTime, want)
	}
}

func TestAnchorDateMovedIntoPastFiresImmediately(t *testing.T) {
	now := time.Date(2027, 3, 3, 9, 0, 0, 0, time.UTC)
	start := now.Add(12 * time.Hour)

	cfg := emailTrigger(domain.KeyInspectionStartTime)
	cfg.SendTiming = domain.TimingBefore
	cfg.SendDelay = 1
	cfg.SendDelayUnit = domain.UnitDays

	snap := confirmedSnapshot(cfg)
	snap.Date = &start
	h := newHarness(t, snap)
	h.orch.SetClock(func() time.Time { return now })

	if err := h.orch.OnAnchorDateChanged(context.Background(), snap.ID); err != nil {
		t.Fatalf("OnAnchorDateChanged: %v", err)
	}
	if n := len(h.delivery.messages()); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
	if n := h.queue.len(); n != 0 {
		t.Fatalf("queue records = %d, want 0", n)
	}
}

func TestCancelInspectionClearsQueue(t *testing.T) {
	snap := confirmedSnapshot()
	h := newHarness(t, snap)

	ctx := context.Background()
	for idx := 0; idx < 3; idx++ {
		rec := queue.Record{
			InspectionID:  snap.ID,
			TriggerIndex:  idx,
			ExecutionTime: time.Now().Add(time.Hour),
			TriggerKey:    domain.KeyInspectionStartTime,
		}
		if err := h.queue.Enqueue(ctx, rec); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	if err := h.orch.CancelInspection(ctx, snap.ID); err != nil {
		t.Fatalf("CancelInspection: %v", err)
	}
	if n := h.queue.len(); n != 0 {
		t.Fatalf("queue records = %d, want 0", n)
	}
}

// -----------------------------------------------------------------------------
// Collection changes
// -----------------------------------------------------------------------------

func TestPricingChangeFiresServiceAndFeeEvents(t *testing.T) {
	serviceTrigger := emailTrigger(domain.KeyServicesAdded)
	serviceTrigger.Subject = "service added"
	feeTrigger := emailTrigger(domain.KeyFeesAdded)
	feeTrigger.Subject = "fee added"

	snap := confirmedSnapshot(serviceTrigger, feeTrigger)
	h := newHarness(t, snap)

	before := []inspection.PricingItem{}
	after := []inspection.PricingItem{
		{Type: inspection.PricingService, ServiceID: uuid.New(), Name: "Full Inspection"},
		{Type: inspection.PricingFee, Name: "Travel Fee"},
	}

	if err := h.orch.OnPricingChanged(context.Background(), snap.ID, before, after); err != nil {
		t.Fatalf("OnPricingChanged: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	subjects := map[string]bool{}
	for _, m := range msgs {
		subjects[m.subject] = true
	}
	if !subjects["service added"] || !subjects["fee added"] {
		t.Fatalf("subjects = %v", subjects)
	}
}

func TestAgreementSigningIsNotACollectionChange(t *testing.T) {
	trigger := emailTrigger(domain.KeyAgreementsAdded)
	snap := confirmedSnapshot(trigger)
	h := newHarness(t, snap)

	id := uuid.New()
	before := []inspection.Agreement{{AgreementID: id, Name: "Standard", IsSigned: false}}
	after := []inspection.Agreement{{AgreementID: id, Name: "Standard", IsSigned: true}}

	if err := h.orch.OnAgreementsChanged(context.Background(), snap.ID, before, after); err != nil {
		t.Fatalf("OnAgreementsChanged: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("signing fired a collection change: %d messages", n)
	}
}

func TestDocumentChangeFiresAddAndRemove(t *testing.T) {
	added := emailTrigger(domain.KeyDocumentsAdded)
	added.Subject = "doc added"
	removed := emailTrigger(domain.KeyDocumentsRemoved)
	removed.Subject = "doc removed"

	snap := confirmedSnapshot(added, removed)
	h := newHarness(t, snap)

	before := []string{"reports/old.pdf"}
	after := []string{"reports/new.pdf"}

	if err := h.orch.OnDocumentsChanged(context.Background(), snap.ID, before, after); err != nil {
		t.Fatalf("OnDocumentsChanged: %v", err)
	}
	if n := len(h.delivery.messages()); n != 2 {
		t.Fatalf("messages = %d, want 2", n)
	}
}

// -----------------------------------------------------------------------------
// Payment / agreement mutual exclusion
// -----------------------------------------------------------------------------

func paymentSnapshot(paid bool, agreements []inspection.Agreement, triggers ...domain.TriggerConfig) inspection.Snapshot {
	snap := confirmedSnapshot(triggers...)
	snap.IsPaid = paid
	snap.Agreements = agreements
	return snap
}

func TestPaymentWithAllSignedFiresOnlyCombined(t *testing.T) {
	paidTrigger := emailTrigger(domain.KeyInspectionFullyPaid)
	paidTrigger.Subject = "paid"
	combined := emailTrigger(domain.KeySignedAndPaid)
	combined.Subject = "signed and paid"

	snap := paymentSnapshot(true,
		[]inspection.Agreement{{AgreementID: uuid.New(), Name: "Standard", IsSigned: true}},
		paidTrigger, combined,
	)
	h := newHarness(t, snap)

	if err := h.orch.OnPaymentEvent(context.Background(), snap.ID); err != nil {
		t.Fatalf("OnPaymentEvent: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(msgs))
	}
	if msgs[0].subject != "signed and paid" {
		t.Fatalf("fired %q, want combined event only", msgs[0].subject)
	}
}

func TestPaymentWithUnsignedAgreementsFiresFullyPaid(t *testing.T) {
	paidTrigger := emailTrigger(domain.KeyInspectionFullyPaid)
	paidTrigger.Subject = "paid"
	combined := emailTrigger(domain.KeySignedAndPaid)
	combined.Subject = "signed and paid"

	snap := paymentSnapshot(true,
		[]inspection.Agreement{{AgreementID: uuid.New(), Name: "Standard", IsSigned: false}},
		paidTrigger, combined,
	)
	h := newHarness(t, snap)

	if err := h.orch.OnPaymentEvent(context.Background(), snap.ID); err != nil {
		t.Fatalf("OnPaymentEvent: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 1 || msgs[0].subject != "paid" {
		t.Fatalf("messages = %+v, want only fully-paid", msgs)
	}
}

func TestPaymentEventIgnoredWhenNotPaid(t *testing.T) {
	snap := paymentSnapshot(false, nil, emailTrigger(domain.KeyInspectionFullyPaid))
	h := newHarness(t, snap)

	if err := h.orch.OnPaymentEvent(context.Background(), snap.ID); err != nil {
		t.Fatalf("OnPaymentEvent: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("messages = %d, want 0", n)
	}
}

func TestSigningLastAgreementOnPaidInspectionFiresCombined(t *testing.T) {
	signedTrigger := emailTrigger(domain.KeyAllAgreementsSigned)
	signedTrigger.Subject = "all signed"
	combined := emailTrigger(domain.KeySignedAndPaid)
	combined.Subject = "signed and paid"

	snap := paymentSnapshot(true,
		[]inspection.Agreement{{AgreementID: uuid.New(), Name: "Standard", IsSigned: true}},
		signedTrigger, combined,
	)
	h := newHarness(t, snap)

	if err := h.orch.OnAgreementSigned(context.Background(), snap.ID, false); err != nil {
		t.Fatalf("OnAgreementSigned: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 1 || msgs[0].subject != "signed and paid" {
		t.Fatalf("messages = %+v, want only combined", msgs)
	}
}

func TestSigningFiresAllSignedWhenUnpaid(t *testing.T) {
	signedTrigger := emailTrigger(domain.KeyAllAgreementsSigned)
	signedTrigger.Subject = "all signed"

	snap := paymentSnapshot(false,
		[]inspection.Agreement{{AgreementID: uuid.New(), Name: "Standard", IsSigned: true}},
		signedTrigger,
	)
	h := newHarness(t, snap)

	if err := h.orch.OnAgreementSigned(context.Background(), snap.ID, false); err != nil {
		t.Fatalf("OnAgreementSigned: %v", err)
	}
	if n := len(h.delivery.messages()); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
}

func TestSigningIsTransitionOnly(t *testing.T) {
	signedTrigger := emailTrigger(domain.KeyAllAgreementsSigned)

	snap := paymentSnapshot(false,
		[]inspection.Agreement{{AgreementID: uuid.New(), Name: "Standard", IsSigned: true}},
		signedTrigger,
	)
	h := newHarness(t, snap)

	// Everything was already signed before this event.
	if err := h.orch.OnAgreementSigned(context.Background(), snap.ID, true); err != nil {
		t.Fatalf("OnAgreementSigned: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("messages = %d, want 0", n)
	}
}

func TestOnEventRoutesPaymentKeysThroughExclusion(t *testing.T) {
	paidTrigger := emailTrigger(domain.KeyInspectionFullyPaid)
	paidTrigger.Subject = "paid"
	combined := emailTrigger(domain.KeySignedAndPaid)
	combined.Subject = "signed and paid"

	snap := paymentSnapshot(true,
		[]inspection.Agreement{{AgreementID: uuid.New(), Name: "Standard", IsSigned: true}},
		paidTrigger, combined,
	)
	h := newHarness(t, snap)

	// Posting the fully-paid key directly must not bypass the combined-event
	// suppression.
	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyInspectionFullyPaid); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 1 || msgs[0].subject != "signed and paid" {
		t.Fatalf("messages = %+v, want only combined", msgs)
	}
}

func TestOnEventRoutesAllSignedKeyThroughExclusion(t *testing.T) {
	signedTrigger := emailTrigger(domain.KeyAllAgreementsSigned)
	signedTrigger.Subject = "all signed"
	combined := emailTrigger(domain.KeySignedAndPaid)
	combined.Subject = "signed and paid"

	snap := paymentSnapshot(true,
		[]inspection.Agreement{{AgreementID: uuid.New(), Name: "Standard", IsSigned: true}},
		signedTrigger, combined,
	)
	h := newHarness(t, snap)

	if err := h.orch.OnEvent(context.Background(), snap.ID, domain.KeyAllAgreementsSigned); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}

	msgs := h.delivery.messages()
	if len(msgs) != 1 || msgs[0].subject != "signed and paid" {
		t.Fatalf("messages = %+v, want only combined", msgs)
	}
}

func TestNoAgreementsNeverCountsAsAllSigned(t *testing.T) {
	signedTrigger := emailTrigger(domain.KeyAllAgreementsSigned)
	snap := paymentSnapshot(false, nil, signedTrigger)
	h := newHarness(t, snap)

	if err := h.orch.OnAgreementSigned(context.Background(), snap.ID, false); err != nil {
		t.Fatalf("OnAgreementSigned: %v", err)
	}
	if n := len(h.delivery.messages()); n != 0 {
		t.Fatalf("messages = %d, want 0", n)
	}
}

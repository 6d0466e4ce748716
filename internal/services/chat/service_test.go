package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pacheco20222/DogMatch-backend/internal/bus"
	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
	pgrepo "github.com/pacheco20222/DogMatch-backend/internal/repo/postgres"
)

type fakeMatchStore struct {
	byID      map[int64]*pgrepo.MatchRecord
	bumpCalls int
}

func (f *fakeMatchStore) GetByID(_ context.Context, matchID int64) (pgrepo.MatchRecord, error) {
	rec, ok := f.byID[matchID]
	if !ok {
		return pgrepo.MatchRecord{}, pgrepo.ErrMatchNotFound
	}
	return *rec, nil
}

func (f *fakeMatchStore) GetByIDForUpdate(_ context.Context, _ pgx.Tx, matchID int64) (pgrepo.MatchRecord, error) {
	return f.GetByID(nil, matchID)
}

func (f *fakeMatchStore) BumpMessageStats(_ context.Context, _ pgx.Tx, matchID int64, sentAt time.Time) error {
	rec, ok := f.byID[matchID]
	if !ok {
		return pgrepo.ErrMatchNotFound
	}
	f.bumpCalls++
	rec.MessageCount++
	rec.LastMessageAt = &sentAt
	return nil
}

type fakeMessageStore struct {
	byID   map[int64]*pgrepo.MessageRecord
	nextID int64
}

func (f *fakeMessageStore) Insert(_ context.Context, _ pgx.Tx, matchID, senderOwnerID int64, content string, msgType enums.MessageType, sentAt time.Time) (pgrepo.MessageRecord, error) {
	f.nextID++
	rec := &pgrepo.MessageRecord{
		ID:            f.nextID,
		MatchID:       matchID,
		SenderOwnerID: senderOwnerID,
		Content:       content,
		Type:          msgType,
		SentAt:        sentAt,
	}
	f.byID[rec.ID] = rec
	return *rec, nil
}

func (f *fakeMessageStore) GetByID(_ context.Context, messageID int64) (pgrepo.MessageRecord, error) {
	rec, ok := f.byID[messageID]
	if !ok {
		return pgrepo.MessageRecord{}, pgrepo.ErrMessageNotFound
	}
	return *rec, nil
}

func (f *fakeMessageStore) MarkManyRead(_ context.Context, messageIDs []int64, readerOwnerID int64, now time.Time) ([]pgrepo.ReadReceiptRecord, error) {
	receipts := []pgrepo.ReadReceiptRecord{}
	for _, id := range messageIDs {
		rec, ok := f.byID[id]
		if !ok || rec.IsRead || rec.IsDeleted || rec.SenderOwnerID == readerOwnerID {
			continue
		}
		rec.IsRead = true
		rec.ReadAt = &now
		receipts = append(receipts, pgrepo.ReadReceiptRecord{
			MessageID:     rec.ID,
			MatchID:       rec.MatchID,
			SenderOwnerID: rec.SenderOwnerID,
			ReadAt:        now,
		})
	}
	return receipts, nil
}

// ListByMatch mirrors the storage ordering contract: sent_at ascending with
// the id as tie-break, then limit/offset applied on the sorted view.
func (f *fakeMessageStore) ListByMatch(_ context.Context, matchID int64, limit, offset int) ([]pgrepo.MessageRecord, error) {
	items := []pgrepo.MessageRecord{}
	for _, rec := range f.byID {
		if rec.MatchID == matchID {
			items = append(items, *rec)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].SentAt.Equal(items[j].SentAt) {
			return items[i].SentAt.Before(items[j].SentAt)
		}
		return items[i].ID < items[j].ID
	})
	if offset >= len(items) {
		return []pgrepo.MessageRecord{}, nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (f *fakeMessageStore) UnreadCount(_ context.Context, matchID, viewerOwnerID int64) (int, error) {
	count := 0
	for _, rec := range f.byID {
		if rec.MatchID == matchID && rec.SenderOwnerID != viewerOwnerID && !rec.IsRead && !rec.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageStore) UnreadCountByOwner(_ context.Context, ownerID int64) (int, error) {
	count := 0
	for _, rec := range f.byID {
		if rec.SenderOwnerID != ownerID && !rec.IsRead && !rec.IsDeleted {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageStore) SoftDelete(_ context.Context, messageID, byOwnerID int64, now time.Time) (bool, error) {
	rec, ok := f.byID[messageID]
	if !ok || rec.IsDeleted {
		return false, nil
	}
	rec.IsDeleted = true
	rec.DeletedAt = &now
	rec.DeletedBy = &byOwnerID
	return true, nil
}

func (f *fakeMessageStore) ListRecentConversations(_ context.Context, _ int64, _ int) ([]pgrepo.ConversationRecord, error) {
	return []pgrepo.ConversationRecord{}, nil
}

type fakePublisher struct {
	events []bus.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event bus.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func openMatch(id int64) *pgrepo.MatchRecord {
	return &pgrepo.MatchRecord{
		ID:          id,
		LowID:       1,
		HighID:      2,
		LowOwnerID:  101,
		HighOwnerID: 102,
		Status:      enums.MatchStatusMatched,
		LowAction:   enums.ActionStateLike,
		HighAction:  enums.ActionStateLike,
		IsActive:    true,
	}
}

func newTestService(matches *fakeMatchStore, messages *fakeMessageStore, publisher *fakePublisher) *Service {
	svc := NewService(Dependencies{
		MatchStore:   matches,
		MessageStore: messages,
		Publisher:    publisher,
	}, Config{MaxContentLen: 100, PageLimit: 50})

	svc.now = func() time.Time {
		return time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
	svc.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return fn(ctx, nil)
	}

	return svc
}

func newFakes() (*fakeMatchStore, *fakeMessageStore, *fakePublisher) {
	return &fakeMatchStore{byID: map[int64]*pgrepo.MatchRecord{5: openMatch(5)}},
		&fakeMessageStore{byID: map[int64]*pgrepo.MessageRecord{}},
		&fakePublisher{}
}

func TestSendDeliversToOtherParticipantOnly(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)

	msg, err := svc.Send(context.Background(), 5, 101, "hello there", "")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == 0 || msg.Type != enums.MessageTypeText {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if matches.bumpCalls != 1 {
		t.Fatalf("expected match counters bump")
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Type != enums.EventTypeNewMessage {
		t.Fatalf("unexpected event type: %s", event.Type)
	}
	if len(event.TargetOwnerIDs) != 1 || event.TargetOwnerIDs[0] != 102 {
		t.Fatalf("expected only the peer targeted, got %v", event.TargetOwnerIDs)
	}
	if event.Unread != 1 {
		t.Fatalf("expected unread 1 in event, got %d", event.Unread)
	}
}

func TestSendRejectsClosedConversations(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)
	ctx := context.Background()

	matches.byID[5].IsActive = false
	if _, err := svc.Send(ctx, 5, 101, "hi", ""); !errors.Is(err, ErrNotMatched) {
		t.Fatalf("expected ErrNotMatched for inactive match, got %v", err)
	}

	matches.byID[5].IsActive = true
	matches.byID[5].Status = enums.MatchStatusPending
	if _, err := svc.Send(ctx, 5, 101, "hi", ""); !errors.Is(err, ErrNotMatched) {
		t.Fatalf("expected ErrNotMatched for pending match, got %v", err)
	}

	matches.byID[5].Status = enums.MatchStatusMatched
	matches.byID[5].IsArchived = true
	if _, err := svc.Send(ctx, 5, 101, "hi", ""); !errors.Is(err, ErrNotMatched) {
		t.Fatalf("expected ErrNotMatched for archived match, got %v", err)
	}

	if len(publisher.events) != 0 {
		t.Fatalf("no events expected for rejected sends")
	}
}

func TestSendValidation(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)
	ctx := context.Background()

	if _, err := svc.Send(ctx, 5, 999, "hi", ""); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission for outsider, got %v", err)
	}
	if _, err := svc.Send(ctx, 5, 101, "   ", ""); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := svc.Send(ctx, 5, 101, strings.Repeat("x", 101), ""); !errors.Is(err, ErrContentTooLong) {
		t.Fatalf("expected ErrContentTooLong, got %v", err)
	}
	if _, err := svc.Send(ctx, 5, 101, "hi", "carrier_pigeon"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for unknown type, got %v", err)
	}
	if _, err := svc.Send(ctx, 404, 101, "hi", ""); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("expected ErrMatchNotFound, got %v", err)
	}
}

func TestMarkReadNotifiesSendersOncePerConversation(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Send(ctx, 5, 101, "msg", ""); err != nil {
			t.Fatalf("send #%d: %v", i+1, err)
		}
	}
	publisher.events = nil

	count, err := svc.MarkRead(ctx, []int64{1, 2, 3}, 102)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 messages marked, got %d", count)
	}

	if len(publisher.events) != 1 {
		t.Fatalf("expected one grouped read receipt, got %d", len(publisher.events))
	}
	event := publisher.events[0]
	if event.Type != enums.EventTypeReadReceipt || event.MatchID != 5 {
		t.Fatalf("unexpected event: %+v", event)
	}
	if len(event.TargetOwnerIDs) != 1 || event.TargetOwnerIDs[0] != 101 {
		t.Fatalf("expected sender 101 targeted, got %v", event.TargetOwnerIDs)
	}
	if len(event.EntityIDs) != 3 {
		t.Fatalf("expected 3 message ids in receipt, got %v", event.EntityIDs)
	}

	// Second pass is a no-op: everything is already read.
	count, err = svc.MarkRead(ctx, []int64{1, 2, 3}, 102)
	if err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	if count != 0 || len(publisher.events) != 1 {
		t.Fatalf("repeat mark read must not produce receipts: count=%d events=%d", count, len(publisher.events))
	}
}

func TestMarkReadSkipsOwnMessages(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)
	ctx := context.Background()

	if _, err := svc.Send(ctx, 5, 101, "mine", ""); err != nil {
		t.Fatalf("send: %v", err)
	}
	publisher.events = nil

	count, err := svc.MarkRead(ctx, []int64{1}, 101)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if count != 0 {
		t.Fatalf("reader must not mark own messages, got %d", count)
	}
}

func TestUnreadCountDerivesFromRows(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Send(ctx, 5, 101, "msg", ""); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	count, err := svc.UnreadCount(ctx, 5, 102)
	if err != nil {
		t.Fatalf("unread count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 unread, got %d", count)
	}

	senderSide, err := svc.UnreadCount(ctx, 5, 101)
	if err != nil {
		t.Fatalf("unread count sender: %v", err)
	}
	if senderSide != 0 {
		t.Fatalf("sender must have 0 unread, got %d", senderSide)
	}

	if _, err := svc.MarkRead(ctx, []int64{1}, 102); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, err = svc.UnreadCount(ctx, 5, 102)
	if err != nil {
		t.Fatalf("unread count after read: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 unread after reading one, got %d", count)
	}
}

func TestDeleteIsSenderOnlyAndHidesContent(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)
	ctx := context.Background()

	if _, err := svc.Send(ctx, 5, 101, "secret", ""); err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := svc.Delete(ctx, 1, 102); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission for non-sender, got %v", err)
	}
	if err := svc.Delete(ctx, 1, 101); err != nil {
		t.Fatalf("delete: %v", err)
	}
	// Repeat delete is a no-op.
	if err := svc.Delete(ctx, 1, 101); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}

	listed, err := svc.ListMessages(ctx, 5, 102, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("deleted message must keep its slot, got %d rows", len(listed))
	}
	if !listed[0].IsDeleted || listed[0].Content != "" {
		t.Fatalf("expected hidden content for deleted message: %+v", listed[0])
	}

	if err := svc.Delete(ctx, 404, 101); !errors.Is(err, ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestListMessagesEnforcesParticipation(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)

	if _, err := svc.ListMessages(context.Background(), 5, 999, 10, 0); !errors.Is(err, ErrPermission) {
		t.Fatalf("expected ErrPermission, got %v", err)
	}
}

func TestSendSurvivesPublishFailure(t *testing.T) {
	matches, messages, publisher := newFakes()
	publisher.err = errors.New("redis down")
	svc := newTestService(matches, messages, publisher)

	if _, err := svc.Send(context.Background(), 5, 101, "hello", ""); err != nil {
		t.Fatalf("send with failing publisher: %v", err)
	}
	if len(messages.byID) != 1 {
		t.Fatalf("message must be durable despite publish failure")
	}
}

func TestListMessagesPagesStayStableAsNewMessagesArrive(t *testing.T) {
	matches, messages, publisher := newFakes()
	svc := newTestService(matches, messages, publisher)
	ctx := context.Background()

	base := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		// Pairs share a timestamp so ordering falls back to the id tie-break.
		sentAt := base.Add(time.Duration(i/2) * time.Minute)
		if _, err := messages.Insert(ctx, nil, 5, 101, "m", enums.MessageTypeText, sentAt); err != nil {
			t.Fatalf("seed message %d: %v", i, err)
		}
	}

	firstPage, err := svc.ListMessages(ctx, 5, 101, 8, 0)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	secondPage, err := svc.ListMessages(ctx, 5, 101, 8, 8)
	if err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(firstPage) != 8 || len(secondPage) != 4 {
		t.Fatalf("unexpected page sizes: %d and %d", len(firstPage), len(secondPage))
	}

	seen := map[int64]bool{}
	var prev Message
	for i, msg := range append(append([]Message{}, firstPage...), secondPage...) {
		if seen[msg.ID] {
			t.Fatalf("message %d appeared on both pages", msg.ID)
		}
		seen[msg.ID] = true
		if i > 0 {
			if msg.SentAt.Before(prev.SentAt) {
				t.Fatalf("messages out of sent_at order: %d before %d", msg.ID, prev.ID)
			}
			if msg.SentAt.Equal(prev.SentAt) && msg.ID < prev.ID {
				t.Fatalf("tie-break must order by id: %d after %d", msg.ID, prev.ID)
			}
		}
		prev = msg
	}

	// A new arrival lands after everything else and must not shift the
	// already-returned first page.
	if _, err := messages.Insert(ctx, nil, 5, 102, "new", enums.MessageTypeText, base.Add(time.Hour)); err != nil {
		t.Fatalf("late message: %v", err)
	}
	again, err := svc.ListMessages(ctx, 5, 101, 8, 0)
	if err != nil {
		t.Fatalf("first page after arrival: %v", err)
	}
	for i := range firstPage {
		if again[i].ID != firstPage[i].ID {
			t.Fatalf("page shifted at %d: got %d want %d", i, again[i].ID, firstPage[i].ID)
		}
	}
}

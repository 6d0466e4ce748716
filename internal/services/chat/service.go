// Package chat is the conversation ledger for matched pairs. Messages are
// durable rows; read state and unread counts derive from those rows, and
// realtime notifications ride the bus after the write commits.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/pacheco20222/DogMatch-backend/internal/bus"
	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
	pgrepo "github.com/pacheco20222/DogMatch-backend/internal/repo/postgres"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrMatchNotFound   = errors.New("match not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrPermission      = errors.New("not a participant of this match")
	ErrNotMatched      = errors.New("conversation is not open")
	ErrEmptyContent    = errors.New("message content is empty")
	ErrContentTooLong  = errors.New("message content is too long")
)

type MatchStore interface {
	GetByID(ctx context.Context, matchID int64) (pgrepo.MatchRecord, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, matchID int64) (pgrepo.MatchRecord, error)
	BumpMessageStats(ctx context.Context, tx pgx.Tx, matchID int64, sentAt time.Time) error
}

type MessageStore interface {
	Insert(ctx context.Context, tx pgx.Tx, matchID, senderOwnerID int64, content string, msgType enums.MessageType, sentAt time.Time) (pgrepo.MessageRecord, error)
	GetByID(ctx context.Context, messageID int64) (pgrepo.MessageRecord, error)
	MarkManyRead(ctx context.Context, messageIDs []int64, readerOwnerID int64, now time.Time) ([]pgrepo.ReadReceiptRecord, error)
	ListByMatch(ctx context.Context, matchID int64, limit, offset int) ([]pgrepo.MessageRecord, error)
	UnreadCount(ctx context.Context, matchID, viewerOwnerID int64) (int, error)
	UnreadCountByOwner(ctx context.Context, ownerID int64) (int, error)
	SoftDelete(ctx context.Context, messageID, byOwnerID int64, now time.Time) (bool, error)
	ListRecentConversations(ctx context.Context, ownerID int64, limit int) ([]pgrepo.ConversationRecord, error)
}

type Publisher interface {
	Publish(ctx context.Context, event bus.Event) error
}

type Config struct {
	MaxContentLen int
	PageLimit     int
}

// Message is the view the transport layer renders. Soft-deleted messages
// keep their slot but lose their content.
type Message struct {
	ID            int64
	MatchID       int64
	SenderOwnerID int64
	Content       string
	Type          enums.MessageType
	IsRead        bool
	ReadAt        *time.Time
	SentAt        time.Time
	IsDeleted     bool
}

type Service struct {
	pool         *pgxpool.Pool
	matchStore   MatchStore
	messageStore MessageStore
	publisher    Publisher
	logger       *zap.Logger
	cfg          Config
	now          func() time.Time
	runTx        func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type Dependencies struct {
	Pool         *pgxpool.Pool
	MatchStore   MatchStore
	MessageStore MessageStore
	Publisher    Publisher
	Logger       *zap.Logger
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxContentLen <= 0 {
		cfg.MaxContentLen = 2000
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 50
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		pool:         deps.Pool,
		matchStore:   deps.MatchStore,
		messageStore: deps.MessageStore,
		publisher:    deps.Publisher,
		logger:       logger,
		cfg:          cfg,
		now:          time.Now,
	}
	s.runTx = func(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
		return pgrepo.WithTx(ctx, s.pool, fn)
	}

	return s
}

// Send appends a message to an open conversation. The insert and the match
// counters commit together; only then is the other participant notified.
func (s *Service) Send(ctx context.Context, matchID, senderOwnerID int64, content, msgType string) (Message, error) {
	if matchID <= 0 || senderOwnerID <= 0 {
		return Message{}, ErrValidation
	}
	if s.matchStore == nil || s.messageStore == nil {
		return Message{}, fmt.Errorf("chat dependencies are not configured")
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	if len(content) > s.cfg.MaxContentLen {
		return Message{}, ErrContentTooLong
	}

	messageType, ok := enums.ParseMessageType(msgType)
	if !ok {
		return Message{}, ErrValidation
	}

	now := s.now().UTC()

	var inserted pgrepo.MessageRecord
	var peerOwnerID int64
	err := s.runTx(ctx, func(txCtx context.Context, tx pgx.Tx) error {
		rec, err := s.matchStore.GetByIDForUpdate(txCtx, tx, matchID)
		if err != nil {
			if errors.Is(err, pgrepo.ErrMatchNotFound) {
				return ErrMatchNotFound
			}
			return err
		}

		switch senderOwnerID {
		case rec.LowOwnerID:
			peerOwnerID = rec.HighOwnerID
		case rec.HighOwnerID:
			peerOwnerID = rec.LowOwnerID
		default:
			return ErrPermission
		}

		if rec.Status != enums.MatchStatusMatched || !rec.IsActive || rec.IsArchived {
			return ErrNotMatched
		}

		inserted, err = s.messageStore.Insert(txCtx, tx, matchID, senderOwnerID, content, messageType, now)
		if err != nil {
			return err
		}

		return s.matchStore.BumpMessageStats(txCtx, tx, matchID, now)
	})
	if err != nil {
		return Message{}, err
	}

	s.publishNewMessage(ctx, inserted, peerOwnerID)

	return toMessage(inserted), nil
}

// MarkRead flips the given messages to read on behalf of the reader and
// notifies each sender whose messages were affected. Messages the reader
// sent, already-read rows, and ids outside the reader's matches are skipped.
func (s *Service) MarkRead(ctx context.Context, messageIDs []int64, readerOwnerID int64) (int, error) {
	if readerOwnerID <= 0 {
		return 0, ErrValidation
	}
	if len(messageIDs) == 0 {
		return 0, nil
	}
	if s.messageStore == nil {
		return 0, fmt.Errorf("chat dependencies are not configured")
	}

	now := s.now().UTC()

	receipts, err := s.messageStore.MarkManyRead(ctx, messageIDs, readerOwnerID, now)
	if err != nil {
		return 0, err
	}
	if len(receipts) == 0 {
		return 0, nil
	}

	s.publishReadReceipts(ctx, receipts, readerOwnerID, now)

	return len(receipts), nil
}

func (s *Service) ListMessages(ctx context.Context, matchID, viewerOwnerID int64, limit, offset int) ([]Message, error) {
	if matchID <= 0 || viewerOwnerID <= 0 {
		return nil, ErrValidation
	}
	if s.matchStore == nil || s.messageStore == nil {
		return nil, fmt.Errorf("chat dependencies are not configured")
	}
	if limit <= 0 || limit > s.cfg.PageLimit {
		limit = s.cfg.PageLimit
	}

	rec, err := s.matchStore.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if rec.LowOwnerID != viewerOwnerID && rec.HighOwnerID != viewerOwnerID {
		return nil, ErrPermission
	}

	rows, err := s.messageStore.ListByMatch(ctx, matchID, limit, offset)
	if err != nil {
		return nil, err
	}

	items := make([]Message, 0, len(rows))
	for _, row := range rows {
		items = append(items, toMessage(row))
	}

	return items, nil
}

func (s *Service) UnreadCount(ctx context.Context, matchID, viewerOwnerID int64) (int, error) {
	if matchID <= 0 || viewerOwnerID <= 0 {
		return 0, ErrValidation
	}
	if s.matchStore == nil || s.messageStore == nil {
		return 0, fmt.Errorf("chat dependencies are not configured")
	}

	rec, err := s.matchStore.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMatchNotFound) {
			return 0, ErrMatchNotFound
		}
		return 0, err
	}
	if rec.LowOwnerID != viewerOwnerID && rec.HighOwnerID != viewerOwnerID {
		return 0, ErrPermission
	}

	return s.messageStore.UnreadCount(ctx, matchID, viewerOwnerID)
}

func (s *Service) UnreadTotal(ctx context.Context, ownerID int64) (int, error) {
	if ownerID <= 0 {
		return 0, ErrValidation
	}
	if s.messageStore == nil {
		return 0, fmt.Errorf("chat dependencies are not configured")
	}

	return s.messageStore.UnreadCountByOwner(ctx, ownerID)
}

// Delete soft-deletes one of the caller's own messages. The row keeps its
// position in the conversation; readers see a placeholder.
func (s *Service) Delete(ctx context.Context, messageID, ownerID int64) error {
	if messageID <= 0 || ownerID <= 0 {
		return ErrValidation
	}
	if s.messageStore == nil {
		return fmt.Errorf("chat dependencies are not configured")
	}

	rec, err := s.messageStore.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if rec.SenderOwnerID != ownerID {
		return ErrPermission
	}
	if rec.IsDeleted {
		return nil
	}

	if _, err := s.messageStore.SoftDelete(ctx, messageID, ownerID, s.now().UTC()); err != nil {
		return err
	}

	return nil
}

func (s *Service) RecentConversations(ctx context.Context, ownerID int64, limit int) ([]pgrepo.ConversationRecord, error) {
	if ownerID <= 0 {
		return nil, ErrValidation
	}
	if s.messageStore == nil {
		return nil, fmt.Errorf("chat dependencies are not configured")
	}

	items, err := s.messageStore.ListRecentConversations(ctx, ownerID, limit)
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].LastMessage != nil && items[i].LastMessage.IsDeleted {
			items[i].LastMessage.Content = ""
		}
	}

	return items, nil
}

// publishNewMessage targets only the other participant; the sender already
// has the message. Failures are logged and swallowed, the write is durable.
func (s *Service) publishNewMessage(ctx context.Context, rec pgrepo.MessageRecord, peerOwnerID int64) {
	if s.publisher == nil || peerOwnerID <= 0 {
		return
	}

	unread := 0
	if n, err := s.messageStore.UnreadCount(ctx, rec.MatchID, peerOwnerID); err == nil {
		unread = n
	}

	err := s.publisher.Publish(ctx, bus.Event{
		Type:           enums.EventTypeNewMessage,
		MatchID:        rec.MatchID,
		MessageID:      rec.ID,
		SenderOwnerID:  rec.SenderOwnerID,
		Content:        rec.Content,
		Unread:         unread,
		At:             rec.SentAt,
		TargetOwnerIDs: []int64{peerOwnerID},
	})
	if err != nil {
		s.logger.Warn("publish new message event failed",
			zap.Int64("match_id", rec.MatchID),
			zap.Int64("message_id", rec.ID),
			zap.Error(err),
		)
	}
}

// publishReadReceipts batches receipts per sender and match so each sender
// gets one event per conversation.
func (s *Service) publishReadReceipts(ctx context.Context, receipts []pgrepo.ReadReceiptRecord, readerOwnerID int64, now time.Time) {
	if s.publisher == nil {
		return
	}

	type groupKey struct {
		matchID int64
		ownerID int64
	}
	groups := map[groupKey][]int64{}
	for _, receipt := range receipts {
		key := groupKey{matchID: receipt.MatchID, ownerID: receipt.SenderOwnerID}
		groups[key] = append(groups[key], receipt.MessageID)
	}

	for key, ids := range groups {
		err := s.publisher.Publish(ctx, bus.Event{
			Type:           enums.EventTypeReadReceipt,
			MatchID:        key.matchID,
			OwnerID:        readerOwnerID,
			EntityIDs:      ids,
			At:             now,
			TargetOwnerIDs: []int64{key.ownerID},
		})
		if err != nil {
			s.logger.Warn("publish read receipt event failed",
				zap.Int64("match_id", key.matchID),
				zap.Error(err),
			)
		}
	}
}

func toMessage(rec pgrepo.MessageRecord) Message {
	m := Message{
		ID:            rec.ID,
		MatchID:       rec.MatchID,
		SenderOwnerID: rec.SenderOwnerID,
		Content:       rec.Content,
		Type:          rec.Type,
		IsRead:        rec.IsRead,
		ReadAt:        rec.ReadAt,
		SentAt:        rec.SentAt,
		IsDeleted:     rec.IsDeleted,
	}
	if rec.IsDeleted {
		m.Content = ""
	}
	return m
}

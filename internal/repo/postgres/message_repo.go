package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pacheco20222/DogMatch-backend/internal/domain/enums"
)

var ErrMessageNotFound = errors.New("message not found")

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

type MessageRecord struct {
	ID            int64
	MatchID       int64
	SenderOwnerID int64
	Content       string
	Type          enums.MessageType
	IsRead        bool
	ReadAt        *time.Time
	SentAt        time.Time
	IsDeleted     bool
	DeletedAt     *time.Time
	DeletedBy     *int64
}

// ReadReceiptRecord is what MarkManyRead returns per freshly-read message,
// enough to notify each sender.
type ReadReceiptRecord struct {
	MessageID     int64
	MatchID       int64
	SenderOwnerID int64
	ReadAt        time.Time
}

// ConversationRecord is one inbox row: the match plus its latest message and
// the viewer's unread count, computed in a single query so the count can
// never drift from the persisted flags.
type ConversationRecord struct {
	Match       MatchRecord
	LastMessage *MessageRecord
	UnreadCount int
}

const messageColumns = `
	id, match_id, sender_owner_id, content, message_type,
	is_read, read_at, sent_at, is_deleted, deleted_at, deleted_by_owner_id`

func (r *MessageRepo) Insert(ctx context.Context, tx pgx.Tx, matchID, senderOwnerID int64, content string, msgType enums.MessageType, sentAt time.Time) (MessageRecord, error) {
	if matchID <= 0 || senderOwnerID <= 0 {
		return MessageRecord{}, fmt.Errorf("invalid message payload")
	}
	if tx == nil {
		return MessageRecord{}, fmt.Errorf("transaction is required")
	}
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}

	row := tx.QueryRow(ctx, `
INSERT INTO messages (
	match_id, sender_owner_id, content, message_type, sent_at
) VALUES ($1, $2, $3, $4, $5)
RETURNING `+messageColumns+`
`, matchID, senderOwnerID, content, string(msgType), sentAt.UTC())

	rec, err := scanMessage(row)
	if err != nil {
		return MessageRecord{}, fmt.Errorf("insert message: %w", err)
	}

	return rec, nil
}

func (r *MessageRepo) GetByID(ctx context.Context, messageID int64) (MessageRecord, error) {
	if messageID <= 0 {
		return MessageRecord{}, fmt.Errorf("invalid message id")
	}
	if r.pool == nil {
		return MessageRecord{}, fmt.Errorf("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE id = $1
`, messageID)

	rec, err := scanMessage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return MessageRecord{}, ErrMessageNotFound
		}
		return MessageRecord{}, err
	}

	return rec, nil
}

// MarkManyRead flips unread messages the reader did not send. The
// participation check rides along in the WHERE clause, and rows already read
// or soft-deleted are skipped, which makes the call idempotent.
func (r *MessageRepo) MarkManyRead(ctx context.Context, messageIDs []int64, readerOwnerID int64, now time.Time) ([]ReadReceiptRecord, error) {
	if len(messageIDs) == 0 {
		return []ReadReceiptRecord{}, nil
	}
	if readerOwnerID <= 0 {
		return nil, fmt.Errorf("invalid reader owner id")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
UPDATE messages
SET is_read = TRUE, read_at = $3
WHERE
	id = ANY($1)
	AND sender_owner_id <> $2
	AND is_read = FALSE
	AND is_deleted = FALSE
	AND EXISTS (
		SELECT 1
		FROM matches m
		WHERE m.id = messages.match_id
			AND (m.low_owner_id = $2 OR m.high_owner_id = $2)
	)
RETURNING id, match_id, sender_owner_id, read_at
`, messageIDs, readerOwnerID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("mark messages read: %w", err)
	}
	defer rows.Close()

	receipts := make([]ReadReceiptRecord, 0, len(messageIDs))
	for rows.Next() {
		var rec ReadReceiptRecord
		if err := rows.Scan(&rec.MessageID, &rec.MatchID, &rec.SenderOwnerID, &rec.ReadAt); err != nil {
			return nil, fmt.Errorf("scan read receipt: %w", err)
		}
		receipts = append(receipts, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate read receipts: %w", rows.Err())
	}

	return receipts, nil
}

// ListByMatch pages messages oldest-first with the insertion id as the tie
// breaker, so repeated pagination never reorders and new arrivals never shift
// already-returned pages. Soft-deleted rows stay in the sequence.
func (r *MessageRepo) ListByMatch(ctx context.Context, matchID int64, limit, offset int) ([]MessageRecord, error) {
	if matchID <= 0 {
		return nil, fmt.Errorf("invalid match id")
	}
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	if r.pool == nil {
		return []MessageRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE match_id = $1
ORDER BY sent_at ASC, id ASC
LIMIT $2 OFFSET $3
`, matchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]MessageRecord, 0, limit)
	for rows.Next() {
		rec, err := scanMessageFromRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}

	return items, nil
}

func (r *MessageRepo) UnreadCount(ctx context.Context, matchID, viewerOwnerID int64) (int, error) {
	if matchID <= 0 || viewerOwnerID <= 0 {
		return 0, fmt.Errorf("invalid unread count payload")
	}
	if r.pool == nil {
		return 0, nil
	}

	var count int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM messages
WHERE
	match_id = $1
	AND sender_owner_id <> $2
	AND is_read = FALSE
	AND is_deleted = FALSE
`, matchID, viewerOwnerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}

	return count, nil
}

func (r *MessageRepo) UnreadCountByOwner(ctx context.Context, ownerID int64) (int, error) {
	if ownerID <= 0 {
		return 0, fmt.Errorf("invalid owner id")
	}
	if r.pool == nil {
		return 0, nil
	}

	var count int
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM messages x
JOIN matches m ON m.id = x.match_id
WHERE
	(m.low_owner_id = $1 OR m.high_owner_id = $1)
	AND m.is_active = TRUE
	AND x.sender_owner_id <> $1
	AND x.is_read = FALSE
	AND x.is_deleted = FALSE
`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread messages by owner: %w", err)
	}

	return count, nil
}

// SoftDelete hides the content but keeps the row so ordering and counts stay
// stable for the other participant.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID, byOwnerID int64, now time.Time) (bool, error) {
	if messageID <= 0 || byOwnerID <= 0 {
		return false, fmt.Errorf("invalid soft delete payload")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
UPDATE messages
SET is_deleted = TRUE, deleted_at = $3, deleted_by_owner_id = $2
WHERE id = $1 AND is_deleted = FALSE
`, messageID, byOwnerID, now.UTC())
	if err != nil {
		return false, fmt.Errorf("soft delete message: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *MessageRepo) ListRecentConversations(ctx context.Context, ownerID int64, limit int) ([]ConversationRecord, error) {
	if ownerID <= 0 {
		return nil, fmt.Errorf("invalid owner id")
	}
	if limit <= 0 {
		limit = 20
	}
	if r.pool == nil {
		return []ConversationRecord{}, nil
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	m.id, m.low_id, m.high_id, m.low_owner_id, m.high_owner_id,
	m.status, m.low_action, m.high_action, m.initiated_by,
	m.created_at, m.matched_at, m.expires_at, m.last_message_at,
	m.message_count, m.is_active, m.is_archived, m.archived_by_owner_id,
	lm.id, lm.sender_owner_id, lm.content, lm.message_type, lm.is_read, lm.read_at, lm.sent_at, lm.is_deleted,
	(
		SELECT COUNT(*)
		FROM messages x
		WHERE x.match_id = m.id
			AND x.sender_owner_id <> $1
			AND x.is_read = FALSE
			AND x.is_deleted = FALSE
	) AS unread
FROM matches m
LEFT JOIN LATERAL (
	SELECT id, sender_owner_id, content, message_type, is_read, read_at, sent_at, is_deleted
	FROM messages
	WHERE match_id = m.id
	ORDER BY sent_at DESC, id DESC
	LIMIT 1
) lm ON TRUE
WHERE
	(m.low_owner_id = $1 OR m.high_owner_id = $1)
	AND m.status = 'matched'
	AND m.is_active = TRUE
	AND m.is_archived = FALSE
ORDER BY m.last_message_at DESC NULLS LAST, m.id DESC
LIMIT $2
`, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent conversations: %w", err)
	}
	defer rows.Close()

	items := make([]ConversationRecord, 0, limit)
	for rows.Next() {
		var conv ConversationRecord
		var status, lowAction, highAction string
		var msgID, msgSender *int64
		var msgContent, msgType *string
		var msgIsRead, msgIsDeleted *bool
		var msgReadAt, msgSentAt *time.Time

		if err := rows.Scan(
			&conv.Match.ID,
			&conv.Match.LowID,
			&conv.Match.HighID,
			&conv.Match.LowOwnerID,
			&conv.Match.HighOwnerID,
			&status,
			&lowAction,
			&highAction,
			&conv.Match.InitiatedBy,
			&conv.Match.CreatedAt,
			&conv.Match.MatchedAt,
			&conv.Match.ExpiresAt,
			&conv.Match.LastMessageAt,
			&conv.Match.MessageCount,
			&conv.Match.IsActive,
			&conv.Match.IsArchived,
			&conv.Match.ArchivedBy,
			&msgID,
			&msgSender,
			&msgContent,
			&msgType,
			&msgIsRead,
			&msgReadAt,
			&msgSentAt,
			&msgIsDeleted,
			&conv.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}

		conv.Match.Status = enums.MatchStatus(status)
		conv.Match.LowAction = enums.ActionState(lowAction)
		conv.Match.HighAction = enums.ActionState(highAction)

		if msgID != nil {
			conv.LastMessage = &MessageRecord{
				ID:            *msgID,
				MatchID:       conv.Match.ID,
				SenderOwnerID: *msgSender,
				Content:       *msgContent,
				Type:          enums.MessageType(*msgType),
				IsRead:        *msgIsRead,
				ReadAt:        msgReadAt,
				SentAt:        *msgSentAt,
				IsDeleted:     *msgIsDeleted,
			}
		}

		items = append(items, conv)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate conversations: %w", rows.Err())
	}

	return items, nil
}

func scanMessage(row pgx.Row) (MessageRecord, error) {
	var rec MessageRecord
	var msgType string
	err := row.Scan(
		&rec.ID,
		&rec.MatchID,
		&rec.SenderOwnerID,
		&rec.Content,
		&msgType,
		&rec.IsRead,
		&rec.ReadAt,
		&rec.SentAt,
		&rec.IsDeleted,
		&rec.DeletedAt,
		&rec.DeletedBy,
	)
	if err != nil {
		return MessageRecord{}, err
	}
	rec.Type = enums.MessageType(msgType)
	return rec, nil
}

func scanMessageFromRows(rows pgx.Rows) (MessageRecord, error) {
	rec, err := scanMessage(rows)
	if err != nil {
		return MessageRecord{}, fmt.Errorf("scan message row: %w", err)
	}
	return rec, nil
}

// Package model holds the persisted relational types shared by the store
// and lookup layers.
package model

import (
	"time"

	"github.com/uptrace/bun"
)

// Code is one row of the symbol table. Rows are grouped by GroupCode
// (SEND_STATUS, CHANNEL, PURPOSE) and referenced by id everywhere else.
type Code struct {
	bun.BaseModel `bun:"table:codes,alias:c"`

	ID        int64  `bun:"id,pk,autoincrement"`
	GroupCode string `bun:"group_code,notnull"`
	Code      string `bun:"code,notnull"`
}

// MessageTemplate is the render source for outbound messages. Title and Body
// may contain {{name}} placeholders substituted at send time.
type MessageTemplate struct {
	bun.BaseModel `bun:"table:message_templates,alias:mt"`

	ID        int64  `bun:"id,pk,autoincrement"`
	ChannelID int64  `bun:"channel_id,notnull"`
	PurposeID int64  `bun:"purpose_id,notnull"`
	Title     string `bun:"title,notnull"`
	Body      string `bun:"body,notnull"`
}

// MessageReservation is a scheduled batch of sends referencing one template.
type MessageReservation struct {
	bun.BaseModel `bun:"table:message_reservations,alias:mr"`

	ID          int64     `bun:"id,pk,autoincrement"`
	TemplateID  int64     `bun:"template_id,notnull"`
	ScheduledAt time.Time `bun:"scheduled_at,notnull"`
}

// SendResult is the per-recipient delivery record and the authority on
// delivery state. Status transitions happen only through conditional updates.
//
// PurposeID is denormalized from the template so retry and fallback claims
// can gate on purpose in a single-table conditional update.
type SendResult struct {
	bun.BaseModel `bun:"table:send_results,alias:sr"`

	ID            int64      `bun:"id,pk,autoincrement"`
	ReservationID int64      `bun:"reservation_id,notnull"`
	UserID        int64      `bun:"user_id,notnull"`
	TemplateID    int64      `bun:"template_id,notnull"`
	ChannelID     int64      `bun:"channel_id,notnull"`
	PurposeID     int64      `bun:"purpose_id,notnull"`
	StatusID      int64      `bun:"status_id,notnull"`
	RetryCount    int        `bun:"retry_count,notnull,default:0"`
	RequestedAt   time.Time  `bun:"requested_at,notnull"`
	ProcessedAt   *time.Time `bun:"processed_at,nullzero"`
}

package lookup

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"

	"github.com/rzbill/courier/internal/store/model"
)

// Code groups.
const (
	GroupSendStatus = "SEND_STATUS"
	GroupChannel    = "CHANNEL"
	GroupPurpose    = "PURPOSE"
)

// Send status symbols.
const (
	StatusWaiting    = "WAITING"
	StatusProcessing = "PROCESSING"
	StatusSuccess    = "SUCCESS"
	StatusFailed     = "FAILED"
	StatusExceeded   = "EXCEEDED"
)

// Channel symbols.
const (
	ChannelEmail = "EMAIL"
	ChannelSMS   = "SMS"
)

// Purpose symbols.
const (
	PurposeBilling   = "BILLING"
	PurposeNotice    = "NOTICE"
	PurposeMarketing = "MARKETING"
)

// required lists every mapping that must exist for the worker to run.
var required = map[string][]string{
	GroupSendStatus: {StatusWaiting, StatusProcessing, StatusSuccess, StatusFailed, StatusExceeded},
	GroupChannel:    {ChannelEmail, ChannelSMS},
	GroupPurpose:    {PurposeBilling, PurposeNotice, PurposeMarketing},
}

// Lookup is an immutable symbol<->id code table loaded once at startup.
type Lookup struct {
	byKey map[string]int64
	byID  map[int64]string
}

// Load reads the code table and validates that every required mapping is
// present. It returns an error naming each missing code so a misprovisioned
// database fails at startup, not per message.
func Load(ctx context.Context, db bun.IDB) (*Lookup, error) {
	var rows []model.Code
	if err := db.NewSelect().Model(&rows).Scan(ctx); err != nil {
		return nil, fmt.Errorf("lookup: load codes: %w", err)
	}

	l := &Lookup{
		byKey: make(map[string]int64, len(rows)),
		byID:  make(map[int64]string, len(rows)),
	}
	for _, r := range rows {
		l.byKey[key(r.GroupCode, r.Code)] = r.ID
		l.byID[r.ID] = r.Code
	}

	var missing []string
	for group, codes := range required {
		for _, c := range codes {
			if _, ok := l.byKey[key(group, c)]; !ok {
				missing = append(missing, key(group, c))
			}
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("lookup: missing codes: %s", strings.Join(missing, ", "))
	}
	return l, nil
}

func key(group, code string) string { return group + ":" + code }

// ID resolves a group/code pair. Load guarantees every required pair exists,
// so a miss here means the caller passed an unknown symbol.
func (l *Lookup) ID(group, code string) (int64, bool) {
	v, ok := l.byKey[key(group, code)]
	return v, ok
}

// StatusID resolves a send-status symbol.
func (l *Lookup) StatusID(code string) int64 { return l.byKey[key(GroupSendStatus, code)] }

// ChannelID resolves a channel symbol.
func (l *Lookup) ChannelID(code string) int64 { return l.byKey[key(GroupChannel, code)] }

// PurposeID resolves a purpose symbol.
func (l *Lookup) PurposeID(code string) int64 { return l.byKey[key(GroupPurpose, code)] }

// Symbol resolves a code id back to its symbol. Returns "" when unknown.
func (l *Lookup) Symbol(id int64) string { return l.byID[id] }

package toolexec

import "context"

// EmailSender is the injected capability the sendEmail handler calls
// through. Concrete SMTP/provider clients live outside this repository.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) (messageID string, err error)
}

// CallInitiator is the injected capability the sendCall handler calls
// through; a concrete telephony client lives outside this repository.
type CallInitiator interface {
	InitiateCall(ctx context.Context, phone, talkingPoints string) (callID string, err error)
}

// RecordInfo is the subset of record data the tool layer can read and
// write, independent of the agent package's richer Record type so this
// package never depends on a concrete database client.
type RecordInfo struct {
	ID       string
	Title    string
	Status   string
	Priority string
	Type     string
	Metadata map[string]any
}

// HistoryEntry is one past message or action recorded against a record.
type HistoryEntry struct {
	Channel   string
	Content   string
	Timestamp string
}

// RecordStore is the injected capability getRecord, getRecordHistory, and
// updateRecordStatus call through.
type RecordStore interface {
	GetRecord(ctx context.Context, id string) (RecordInfo, error)
	GetRecordHistory(ctx context.Context, id string) ([]HistoryEntry, error)
	UpdateRecordStatus(ctx context.Context, id, status string) error
}

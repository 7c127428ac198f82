package toolexec

import (
	"context"
	"fmt"
)

// NewDefaultExecutor wires the five handlers the legacy topology requires
// (§4.6): sendEmail, sendCall, getRecord, getRecordHistory,
// updateRecordStatus, each dispatching to the matching capability.
func NewDefaultExecutor(email EmailSender, calls CallInitiator, records RecordStore) *Executor {
	e := NewExecutor()

	e.Register("sendEmail", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		to, _ := args["to"].(string)
		subject, _ := args["subject"].(string)
		body, _ := args["body"].(string)

		messageID, err := email.SendEmail(ctx, to, subject, body)
		if err != nil {
			return nil, err
		}
		return map[string]any{"messageId": messageID}, nil
	})

	e.Register("sendCall", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		phone, _ := args["phone"].(string)
		talkingPoints, _ := args["talkingPoints"].(string)

		callID, err := calls.InitiateCall(ctx, phone, talkingPoints)
		if err != nil {
			return nil, err
		}
		return map[string]any{"callId": callID}, nil
	})

	e.Register("getRecord", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		id, _ := args["id"].(string)

		record, err := records.GetRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"id":       record.ID,
			"title":    record.Title,
			"status":   record.Status,
			"priority": record.Priority,
			"type":     record.Type,
			"metadata": record.Metadata,
		}, nil
	})

	e.Register("getRecordHistory", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		id, _ := args["id"].(string)

		history, err := records.GetRecordHistory(ctx, id)
		if err != nil {
			return nil, err
		}
		entries := make([]map[string]any, len(history))
		for i, h := range history {
			entries[i] = map[string]any{
				"channel":   h.Channel,
				"content":   h.Content,
				"timestamp": h.Timestamp,
			}
		}
		return map[string]any{"history": entries}, nil
	})

	e.Register("updateRecordStatus", func(ctx context.Context, args map[string]any) (map[string]any, error) {
		id, _ := args["id"].(string)
		status, _ := args["status"].(string)

		if err := records.UpdateRecordStatus(ctx, id, status); err != nil {
			return nil, err
		}
		return map[string]any{"ok": true}, nil
	})

	return e
}

// DescribeFailure formats a handler's non-success Result the way a node's
// tool-role message should read, so callers building message content don't
// need to know Result's field layout.
func DescribeFailure(toolName string, r Result) string {
	if r.Success {
		return ""
	}
	return fmt.Sprintf("%s failed: %s", toolName, r.Message)
}

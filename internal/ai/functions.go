package ai

import (
	"encoding/json"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Function names exposed to the model. All four CRUD operations stay
// model-facing; trimming to create-only is an orchestration decision,
// not a capability one.
const (
	FnCreateNotification = "create_notification"
	FnListNotifications  = "list_notifications"
	FnUpdateNotification = "update_notification"
	FnDeleteNotification = "delete_notification"
)

// CreateArgs mirrors the create_notification payload.
type CreateArgs struct {
	Message string `json:"message"`
	Time    string `json:"time"` // ISO-8601; offset optional
}

// UpdateArgs mirrors the update_notification payload. Nil fields are
// left unchanged.
type UpdateArgs struct {
	NotificationID int64   `json:"notification_id"`
	Message        *string `json:"message,omitempty"`
	Time           *string `json:"time,omitempty"`
}

// DeleteArgs mirrors the delete_notification payload.
type DeleteArgs struct {
	NotificationID int64 `json:"notification_id"`
}

// ParseArgs decodes a tool call's JSON arguments into dst.
func ParseArgs(call openai.ToolCall, dst any) error {
	if err := json.Unmarshal([]byte(call.Function.Arguments), dst); err != nil {
		return fmt.Errorf("parse %s arguments: %w", call.Function.Name, err)
	}
	return nil
}

// notificationTools declares the reminder CRUD surface for the model.
// The acting user is implied by the conversation; the orchestrator
// supplies the user id when dispatching.
func notificationTools() []openai.Tool {
	fn := func(name, desc string, params string) openai.Tool {
		return openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        name,
				Description: desc,
				Parameters:  json.RawMessage(params),
			},
		}
	}
	return []openai.Tool{
		fn(FnCreateNotification,
			"Schedule a reminder for the user at the given time.",
			`{
				"type": "object",
				"properties": {
					"message": {"type": "string", "description": "Reminder text to deliver."},
					"time": {"type": "string", "description": "ISO-8601 time, e.g. 2025-06-01T09:00:00. Without an offset it is the user's local time."}
				},
				"required": ["message", "time"]
			}`),
		fn(FnListNotifications,
			"List the user's scheduled reminders with ids and local times.",
			`{"type": "object", "properties": {}}`),
		fn(FnUpdateNotification,
			"Change the text and/or time of an existing reminder.",
			`{
				"type": "object",
				"properties": {
					"notification_id": {"type": "integer"},
					"message": {"type": "string"},
					"time": {"type": "string", "description": "New ISO-8601 time."}
				},
				"required": ["notification_id"]
			}`),
		fn(FnDeleteNotification,
			"Delete a scheduled reminder by id.",
			`{
				"type": "object",
				"properties": {
					"notification_id": {"type": "integer"}
				},
				"required": ["notification_id"]
			}`),
	}
}

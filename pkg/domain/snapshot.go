package domain

import (
	"fmt"
	"time"
)

// Snapshot is a serializable projection of a conversation, written after
// every turn for inspection. It is never read back into the loop.
type Snapshot struct {
	ConversationID string         `json:"conversation_id"`
	Policy         string         `json:"policy,omitempty"`
	DialogueAct    string         `json:"dialogue_act,omitempty"`
	ActParam       string         `json:"dialogue_act_param,omitempty"`
	Expecting      ValueCategory  `json:"expecting,omitempty"`
	History        []SnapshotItem `json:"history,omitempty"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Sealed holds the encrypted snapshot when the store encrypts at rest.
	// A sealed snapshot carries no other field but its ID and timestamp.
	Sealed string `json:"sealed,omitempty"`
}

// SnapshotItem is the projection of one history item.
type SnapshotItem struct {
	Statement string           `json:"statement"`
	Confirm   ConfirmState     `json:"confirm"`
	Executed  bool             `json:"executed"`
	Count     int              `json:"count,omitempty"`
	More      bool             `json:"more,omitempty"`
	Error     string           `json:"error,omitempty"`
	Results   []map[string]any `json:"results,omitempty"`
}

// NewSnapshot projects state; a nil state yields an idle snapshot.
func NewSnapshot(conversationID string, state *DialogueState, expecting ValueCategory) *Snapshot {
	snap := &Snapshot{
		ConversationID: conversationID,
		Expecting:      expecting,
		UpdatedAt:      time.Now().UTC(),
	}
	if state == nil {
		return snap
	}
	snap.Policy = state.Policy
	snap.DialogueAct = state.DialogueAct
	if state.DialogueActParam != nil {
		snap.ActParam = fmt.Sprintf("%v", state.DialogueActParam)
	}
	for _, item := range state.History {
		si := SnapshotItem{
			Statement: fmt.Sprintf("%v", item.Statement),
			Confirm:   item.Confirm,
			Executed:  item.Results != nil,
		}
		if item.Results != nil {
			si.Count = item.Results.Count
			si.More = item.Results.More
			si.Error = item.Results.ErrorCode
			for _, row := range item.Results.Items {
				flat := make(map[string]any, len(row.Value))
				for k, v := range row.Value {
					flat[k] = v.Raw
				}
				si.Results = append(si.Results, flat)
			}
		}
		snap.History = append(snap.History, si)
	}
	return snap
}

// Idle reports whether the snapshot was taken with no conversation in progress.
func (s *Snapshot) Idle() bool {
	return s.Policy == "" && len(s.History) == 0
}

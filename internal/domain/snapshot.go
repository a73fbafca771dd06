package domain

import (
	"encoding/json"
	"fmt"
)

// SnapshotKey scopes a stored session to one user and one test.
func SnapshotKey(userID, testID string) string {
	return userID + "/attempt_" + testID
}

// Snapshot is the durable form of an in-progress session.
// SecondsRemaining is informational; resume always recomputes it from StartedAt.
type Snapshot struct {
	TestID           string     `json:"testId"`
	UserID           string     `json:"userId"`
	StartedAt        int64      `json:"startedAt"` // epoch millis
	Seed             int64      `json:"seed"`
	Answers          Answers    `json:"answers"`
	Statuses         [][]Status `json:"statuses"`
	Position         Position   `json:"currentPosition"`
	SecondsRemaining int        `json:"secondsRemaining"`
}

// DecodeSnapshot parses a stored snapshot and checks that it can resume def.
// Any failure is reported as ErrInvalidSnapshot.
func DecodeSnapshot(data []byte, def TestDefinition) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if snap.TestID != def.ID {
		return Snapshot{}, fmt.Errorf("%w: test id %q does not match %q", ErrInvalidSnapshot, snap.TestID, def.ID)
	}
	if snap.StartedAt <= 0 {
		return Snapshot{}, fmt.Errorf("%w: missing start time", ErrInvalidSnapshot)
	}
	if !snap.Answers.Fits(def) {
		return Snapshot{}, fmt.Errorf("%w: answer shape does not match definition", ErrInvalidSnapshot)
	}
	groups := def.Groups()
	if len(snap.Statuses) != len(groups) {
		return Snapshot{}, fmt.Errorf("%w: status shape does not match definition", ErrInvalidSnapshot)
	}
	for i, g := range groups {
		if len(snap.Statuses[i]) != len(g.Questions) {
			return Snapshot{}, fmt.Errorf("%w: status shape does not match definition", ErrInvalidSnapshot)
		}
	}
	return snap, nil
}

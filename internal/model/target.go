package model

import (
	"fmt"
	"strconv"
)

type TargetType string

const (
	TargetScreen TargetType = "screen"
	TargetGroup  TargetType = "group"
)

func (t TargetType) Valid() bool {
	return t == TargetScreen || t == TargetGroup
}

// Target is the unit overrides and schedule rules attach to.
type Target struct {
	Type TargetType `db:"target_type" json:"type"`
	ID   int        `db:"target_id"   json:"id"`
}

func ScreenTarget(id int) Target { return Target{Type: TargetScreen, ID: id} }
func GroupTarget(id int) Target  { return Target{Type: TargetGroup, ID: id} }

func (t Target) String() string {
	return fmt.Sprintf("%s:%d", t.Type, t.ID)
}

// Key is the string id carried in invalidation payloads.
func (t Target) Key() string {
	return strconv.Itoa(t.ID)
}

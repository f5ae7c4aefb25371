package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ViolationKind string

const (
	ViolationMismatchedStatus   ViolationKind = "MISMATCHED_STATUS"
	ViolationOrphanedPayment    ViolationKind = "ORPHANED_PAYMENT"
	ViolationOrphanedEnrollment ViolationKind = "ORPHANED_ENROLLMENT"
	ViolationMissingPayment     ViolationKind = "MISSING_PAYMENT"
	ViolationMissingEnrollment  ViolationKind = "MISSING_ENROLLMENT"
	ViolationRejectedTransition ViolationKind = "REJECTED_TRANSITION"
)

func (k ViolationKind) Valid() bool {
	switch k {
	case ViolationMismatchedStatus,
		ViolationOrphanedPayment,
		ViolationOrphanedEnrollment,
		ViolationMissingPayment,
		ViolationMissingEnrollment,
		ViolationRejectedTransition:
		return true
	default:
		return false
	}
}

type EntityType string

const (
	EntityBooking    EntityType = "BOOKING"
	EntityPayment    EntityType = "PAYMENT"
	EntityEnrollment EntityType = "ENROLLMENT"
)

// EntityFor returns the record type a violation kind is reported against.
func EntityFor(kind ViolationKind) EntityType {
	switch kind {
	case ViolationOrphanedPayment:
		return EntityPayment
	case ViolationOrphanedEnrollment:
		return EntityEnrollment
	case ViolationMismatchedStatus, ViolationMissingPayment, ViolationMissingEnrollment, ViolationRejectedTransition:
		return EntityBooking
	default:
		panic(fmt.Sprintf("reconciliation: unknown violation kind %q", string(kind)))
	}
}

type Source string

const (
	SourceStateMachine Source = "STATE_MACHINE"
	SourceAuditor      Source = "AUDITOR"
)

// Violation is one observed break of the booking triple rules.
type Violation struct {
	Kind          ViolationKind `json:"kind"`
	EntityType    EntityType    `json:"entity_type"`
	EntityID      snowflake.ID  `json:"entity_id"`
	BookingID     *snowflake.ID `json:"booking_id,omitempty"`
	Detail        string        `json:"detail"`
	Unrecoverable bool          `json:"unrecoverable,omitempty"`
}

// ConsistencyViolation is the persisted admin report row. Rows are never
// updated.
type ConsistencyViolation struct {
	ID            snowflake.ID  `json:"id" gorm:"primaryKey"`
	Kind          ViolationKind `json:"kind" gorm:"type:text;not null;index"`
	EntityType    EntityType    `json:"entity_type" gorm:"type:text;not null"`
	EntityID      snowflake.ID  `json:"entity_id" gorm:"not null"`
	BookingID     *snowflake.ID `json:"booking_id,omitempty"`
	Detail        string        `json:"detail" gorm:"type:text;not null"`
	Source        Source        `json:"source" gorm:"type:text;not null"`
	CorrelationID string        `json:"correlation_id" gorm:"type:text;not null"`
	DetectedAt    time.Time     `json:"detected_at" gorm:"not null;index"`
}

func (ConsistencyViolation) TableName() string { return "consistency_violations" }

type RepairOutcome string

const (
	RepairRelinked      RepairOutcome = "RELINKED"
	RepairResynced      RepairOutcome = "RESYNCED"
	RepairNoop          RepairOutcome = "NOOP"
	RepairUnrecoverable RepairOutcome = "UNRECOVERABLE"
)

type RepairItem struct {
	Violation Violation     `json:"violation"`
	Outcome   RepairOutcome `json:"outcome"`
	Detail    string        `json:"detail,omitempty"`
}

type RepairReport struct {
	Examined          int          `json:"examined"`
	Repaired          int          `json:"repaired"`
	AlreadyConsistent int          `json:"already_consistent"`
	Unrecoverable     int          `json:"unrecoverable"`
	Items             []RepairItem `json:"items"`
}

// Add tallies one outcome into the report.
func (r *RepairReport) Add(item RepairItem) {
	r.Examined++
	switch item.Outcome {
	case RepairRelinked, RepairResynced:
		r.Repaired++
	case RepairNoop:
		r.AlreadyConsistent++
	case RepairUnrecoverable:
		r.Unrecoverable++
	default:
		panic(fmt.Sprintf("reconciliation: unknown repair outcome %q", string(item.Outcome)))
	}
	r.Items = append(r.Items, item)
}

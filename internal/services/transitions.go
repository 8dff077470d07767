package services

import (
	"fmt"

	"github.com/niaga-platform/service-returns/internal/models"
)

// Operation names one lifecycle transition of a return request.
type Operation string

const (
	OpValidate                   Operation = "validate"
	OpSchedulePickup             Operation = "schedule_pickup"
	OpCompletePickup             Operation = "complete_pickup"
	OpStartInspection            Operation = "start_inspection"
	OpCompleteInspection         Operation = "complete_inspection"
	OpProcessRefund              Operation = "process_refund"
	OpCompleteReturn             Operation = "complete_return"
	OpInitiateCourierShipment    Operation = "initiate_courier_shipment"
	OpInitiateManualPickup       Operation = "initiate_manual_pickup"
	OpMarkManualDelivered        Operation = "mark_manual_delivered"
	OpStartShipmentInspection    Operation = "start_shipment_inspection"
	OpCompleteShipmentInspection Operation = "complete_shipment_inspection"
	OpReject                     Operation = "reject"
)

// allowedSources is the transition table: which lifecycle states each
// operation may start from. Rejection is special-cased in canApply
// because staff may reject from any non-terminal state.
var allowedSources = map[Operation][]models.ReturnStatus{
	OpValidate:                   {models.StatusRequested},
	OpSchedulePickup:             {models.StatusValidated},
	OpCompletePickup:             {models.StatusPickupScheduled},
	OpStartInspection:            {models.StatusPickupCompleted},
	OpCompleteInspection:         {models.StatusUnderInspection},
	OpProcessRefund:              {models.StatusApproved, models.StatusInspectionCompleted},
	OpCompleteReturn:             {models.StatusRefundProcessed},
	OpInitiateCourierShipment:    {models.StatusRequested, models.StatusValidated},
	OpInitiateManualPickup:       {models.StatusRequested, models.StatusValidated},
	OpMarkManualDelivered:        {models.StatusShipmentInitiated},
	OpStartShipmentInspection:    {models.StatusShipmentCompleted},
	OpCompleteShipmentInspection: {models.StatusInspectionStarted},
}

// canApply reports whether op may run against the given status.
func canApply(op Operation, status models.ReturnStatus) bool {
	if op == OpReject {
		return !status.IsTerminal()
	}
	for _, s := range allowedSources[op] {
		if s == status {
			return true
		}
	}
	return false
}

// guardTransition returns ErrInvalidTransition, annotated with the
// offending operation and status, when op is not allowed from status.
func guardTransition(op Operation, status models.ReturnStatus) error {
	if canApply(op, status) {
		return nil
	}
	return fmt.Errorf("%w: cannot %s from status %s", ErrInvalidTransition, op, status)
}

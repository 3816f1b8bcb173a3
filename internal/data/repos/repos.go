package repos

import (
	"github.com/enersystems/es-inventory-hub/internal/data/repos/exceptions"
	"github.com/enersystems/es-inventory-hub/internal/data/repos/inventory"
)

type VendorRepo = inventory.VendorRepo
type DeviceSnapshotRepo = inventory.DeviceSnapshotRepo
type ExceptionRepo = exceptions.ExceptionRepo

type ExceptionQueryFilter = exceptions.QueryFilter
type ExceptionStatusCount = exceptions.StatusCount
type MarkFixedOutcome = exceptions.MarkFixedOutcome

const (
	OutcomeUpdated         = exceptions.OutcomeUpdated
	OutcomeAlreadyResolved = exceptions.OutcomeAlreadyResolved
	OutcomeNotFound        = exceptions.OutcomeNotFound

	BulkMarkManuallyFixed = exceptions.BulkMarkManuallyFixed
	BulkResolve           = exceptions.BulkResolve
	BulkResetStatus       = exceptions.BulkResetStatus
)

var NewVendorRepo = inventory.NewVendorRepo
var NewDeviceSnapshotRepo = inventory.NewDeviceSnapshotRepo
var NewExceptionRepo = exceptions.NewExceptionRepo

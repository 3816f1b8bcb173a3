package domain

import (
	"github.com/enersystems/es-inventory-hub/internal/domain/exceptions"
	"github.com/enersystems/es-inventory-hub/internal/domain/inventory"
)

type Vendor = inventory.Vendor
type DeviceSnapshot = inventory.DeviceSnapshot
type Exception = exceptions.Exception

type MissingNinjaDetails = exceptions.MissingNinjaDetails
type DuplicateTLDetails = exceptions.DuplicateTLDetails
type SiteMismatchDetails = exceptions.SiteMismatchDetails
type SpareMismatchDetails = exceptions.SpareMismatchDetails
type DisplayNameMismatchDetails = exceptions.DisplayNameMismatchDetails

const (
	VendorNinja        = inventory.VendorNinja
	VendorThreatLocker = inventory.VendorThreatLocker

	TypeMissingNinja        = exceptions.TypeMissingNinja
	TypeDuplicateTL         = exceptions.TypeDuplicateTL
	TypeSiteMismatch        = exceptions.TypeSiteMismatch
	TypeSpareMismatch       = exceptions.TypeSpareMismatch
	TypeDisplayNameMismatch = exceptions.TypeDisplayNameMismatch

	VarianceActive            = exceptions.VarianceActive
	VarianceManuallyFixed     = exceptions.VarianceManuallyFixed
	VarianceCollectorVerified = exceptions.VarianceCollectorVerified
	VarianceStale             = exceptions.VarianceStale
)

var AllExceptionTypes = exceptions.AllTypes

var DateOnly = inventory.DateOnly

var MarshalDetails = exceptions.MarshalDetails

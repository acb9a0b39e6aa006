package utils

import "errors"

var (
	ErrorRecordNotFound = errors.New("record not found")
	ErrRunInFlight      = errors.New("a batch run is already in progress")
	ErrNoPendingOrders  = errors.New("no pending order spreadsheets in archive")
	ErrShipmentNotFound = errors.New("shipment not found")
	ErrNoActiveRun      = errors.New("no active run")
)

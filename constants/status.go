package constants

// ScanStatus is the canonical status for rows in scan.
type ScanStatus string

// Stable values (store these exact strings in DB).
const (
	ScanStatusRunning ScanStatus = "RUNNING" // capture taken, OCR in progress
	ScanStatusOK      ScanStatus = "OK"      // fields extracted
	ScanStatusFailed  ScanStatus = "FAILED"  // snapshot or recognition failed
)

// ScanStatuses lists every status, in lifecycle order.
var ScanStatuses = []string{
	string(ScanStatusRunning),
	string(ScanStatusOK),
	string(ScanStatusFailed),
}

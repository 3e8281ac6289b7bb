package models

import "fmt"

const (
	PrefixRequirement   = "REQ"
	PrefixPurchaseOrder = "PO"
	PrefixReception     = "REC"
	PrefixOutput        = "OUT"
)

// DocumentCode formats the human readable code of a document, e.g. PO-000042.
func DocumentCode(prefix string, id uint) string {
	return fmt.Sprintf("%s-%06d", prefix, id)
}

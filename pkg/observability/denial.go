package observability

import (
	"errors"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

// denialCode maps an error to the stable code recorded on the denial
// counter. Non-gate errors all land in the same bucket so metric
// cardinality stays bounded.
func denialCode(err error) string {
	var gateErr *contracts.GateError
	if errors.As(err, &gateErr) {
		return gateErr.Code
	}
	return "internal_error"
}

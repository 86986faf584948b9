package contracts

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/proposal_envelope.schema.json
var proposalEnvelopeSchema []byte

var envelopeSchema = mustCompileSchema("proposal_envelope.schema.json", proposalEnvelopeSchema)

func mustCompileSchema(name string, raw []byte) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("contracts: add schema %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// ValidateProposal checks a proposal envelope against its schema.
// Returns a GateError with code proposal_invalid on any violation.
func ValidateProposal(env *ProposalEnvelope) error {
	if env == nil {
		return NewGateError(CodeProposalInvalid, "proposal envelope is nil")
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return NewGateError(CodeProposalInvalid, "proposal envelope is not serializable")
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return NewGateError(CodeProposalInvalid, "proposal envelope is not valid JSON")
	}

	if err := envelopeSchema.Validate(doc); err != nil {
		return NewGateError(CodeProposalInvalid, "proposal envelope failed schema validation").
			WithDetail("cause", err.Error())
	}
	return nil
}

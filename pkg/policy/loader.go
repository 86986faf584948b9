package policy

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/bowtae-labs/tsrc/pkg/contracts"
)

// supportedSchema gates which policy file schema versions this build
// can load. Governance bumps the major version on breaking changes.
var supportedSchema = mustConstraint("^1.0")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(fmt.Sprintf("policy: bad schema constraint %q: %v", c, err))
	}
	return constraint
}

type policyFile struct {
	SchemaVersion string `yaml:"schema_version"`
	PolicySeq     int64  `yaml:"policy_seq"`
	ModeID        string `yaml:"mode_id"`
	Kman          struct {
		Version      string                        `yaml:"version"`
		Capabilities map[string]contracts.RiskTier `yaml:"capabilities"`
	} `yaml:"kman"`
	Bset struct {
		ForbiddenActions         []string `yaml:"forbidden_actions"`
		ControlArtifactsDisabled bool     `yaml:"control_artifacts_disabled"`
		MaxRiskTier              int      `yaml:"max_risk_tier"`
		DenyRules                []struct {
			Name string `yaml:"name"`
			Expr string `yaml:"expr"`
		} `yaml:"deny_rules"`
	} `yaml:"bset"`
	Lease struct {
		DefaultMS        int64            `yaml:"default_ms"`
		MinMS            int64            `yaml:"min_ms"`
		MaxMS            int64            `yaml:"max_ms"`
		ActionCeilingsMS map[string]int64 `yaml:"action_ceilings_ms"`
	} `yaml:"lease"`
}

// LoadFile reads a governance policy YAML file, validates its schema
// version, and returns a sealed PolicyState ready to install.
func LoadFile(path string) (*contracts.PolicyState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("policy: read %s: %w", path, err)
	}
	return Load(data)
}

// Load parses policy YAML bytes into a sealed PolicyState.
func Load(data []byte) (*contracts.PolicyState, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("policy: parse yaml: %w", err)
	}

	version, err := semver.NewVersion(file.SchemaVersion)
	if err != nil {
		return nil, fmt.Errorf("policy: schema_version %q: %w", file.SchemaVersion, err)
	}
	if !supportedSchema.Check(version) {
		return nil, fmt.Errorf("policy: schema_version %s outside supported range %s",
			file.SchemaVersion, supportedSchema)
	}

	if file.PolicySeq < 0 {
		return nil, fmt.Errorf("policy: negative policy_seq %d", file.PolicySeq)
	}
	if file.Bset.MaxRiskTier < 0 || file.Bset.MaxRiskTier > int(contracts.RiskTierCritical) {
		return nil, fmt.Errorf("policy: max_risk_tier %d outside [0,3]", file.Bset.MaxRiskTier)
	}

	state := &contracts.PolicyState{
		PolicySeq: file.PolicySeq,
		ModeID:    file.ModeID,
		Kman: contracts.Kman{
			Version:      file.Kman.Version,
			Capabilities: file.Kman.Capabilities,
		},
		Bset: contracts.Bset{
			ForbiddenActions:         file.Bset.ForbiddenActions,
			ControlArtifactsDisabled: file.Bset.ControlArtifactsDisabled,
			MaxRiskTier:              contracts.RiskTier(file.Bset.MaxRiskTier),
		},
		Lease: contracts.LeasePolicy{
			DefaultMS:        file.Lease.DefaultMS,
			MinMS:            file.Lease.MinMS,
			MaxMS:            file.Lease.MaxMS,
			ActionCeilingsMS: file.Lease.ActionCeilingsMS,
		},
	}
	for _, rule := range file.Bset.DenyRules {
		state.Bset.DenyRules = append(state.Bset.DenyRules, contracts.DenyRule{
			Name: rule.Name,
			Expr: rule.Expr,
		})
	}

	// Deny rules must compile at load time so a bad expression can
	// never reach the projector.
	if _, err := CompileDenyRules(state.Bset.DenyRules); err != nil {
		return nil, err
	}

	if err := Seal(state); err != nil {
		return nil, err
	}
	return state, nil
}

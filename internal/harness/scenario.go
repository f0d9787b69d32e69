package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/poe/internal/ir"
	"github.com/roach88/poe/internal/registry"
)

// Scenario defines a registry test scenario: a sequence of calls, each
// with its expected outcome and optional state checks.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MaxClaimLength overrides the registry claim bound when positive.
	MaxClaimLength int `yaml:"max_claim_length,omitempty"`

	// Steps are executed in order against one registry.
	Steps []Step `yaml:"steps"`
}

// Step is a single registry call.
type Step struct {
	// Op is one of create, revoke, transfer.
	Op string `yaml:"op"`

	// Caller is the credential presented; the harness trusts it as the
	// account ID.
	Caller string `yaml:"caller"`

	// Claim is literal text, or hex bytes when prefixed with 0x.
	Claim string `yaml:"claim"`

	// Receiver is the new owner (transfer only).
	Receiver string `yaml:"receiver,omitempty"`

	// Height, when set, moves the clock before the call.
	Height *uint64 `yaml:"height,omitempty"`

	// Expect is "ok" or the expected registry error code.
	Expect string `yaml:"expect"`

	// Record, when set, is the record the claim must hold after the step.
	Record *RecordExpect `yaml:"record,omitempty"`

	// Absent requires the claim to be unregistered after the step.
	Absent bool `yaml:"absent,omitempty"`
}

// RecordExpect is an expected claim record.
type RecordExpect struct {
	Owner        string `yaml:"owner"`
	RegisteredAt uint64 `yaml:"registered_at"`
}

// Step operations.
const (
	OpCreate   = string(registry.OpCreate)
	OpRevoke   = string(registry.OpRevoke)
	OpTransfer = string(registry.OpTransfer)
)

// ExpectOK marks a step that must succeed.
const ExpectOK = "ok"

var knownCodes = map[string]bool{
	string(registry.CodeAuthentication):    true,
	string(registry.CodeClaimTooLong):      true,
	string(registry.CodeProofAlreadyExist): true,
	string(registry.CodeClaimNotExist):     true,
	string(registry.CodeNotClaimOwner):     true,
	string(registry.CodeInvalidAccount):    true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.MaxClaimLength < 0 {
		return fmt.Errorf("max_claim_length must be non-negative")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Op {
	case OpCreate, OpRevoke:
		if st.Receiver != "" {
			return fmt.Errorf("steps[%d]: receiver is only valid for transfer", index)
		}
	case OpTransfer:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}

	if _, err := ir.ParseClaim(st.Claim); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}

	if st.Expect == "" {
		return fmt.Errorf("steps[%d]: expect is required", index)
	}
	if st.Expect != ExpectOK && !knownCodes[st.Expect] {
		return fmt.Errorf("steps[%d]: unknown expect %q", index, st.Expect)
	}

	if st.Record != nil && st.Absent {
		return fmt.Errorf("steps[%d]: record and absent are mutually exclusive", index)
	}

	return nil
}

package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/giftswap/internal/exchange"
)

// Scenario defines an end-to-end exchange scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// TokenPrefix overrides the "tok" prefix of generated tokens.
	TokenPrefix string `yaml:"token_prefix,omitempty"`

	// Rand scripts the shuffle's random picks. Empty keeps input order.
	Rand []int `yaml:"rand,omitempty"`

	// Setup lists names registered before the flow. Setup must succeed.
	Setup []string `yaml:"setup,omitempty"`

	// Flow contains the steps under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation in the flow.
type Step struct {
	// Op is register, shuffle, reopen or restart.
	Op string `yaml:"op"`

	// Name is the registration name (register only).
	Name string `yaml:"name,omitempty"`

	// IP is the registering client's address (register only).
	IP string `yaml:"ip,omitempty"`

	// FailWrite makes this step's durable write fail.
	FailWrite bool `yaml:"fail_write,omitempty"`

	// Expect describes the expected outcome. Nil expects success.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is the expected outcome of a step.
type Expect struct {
	// Error is the expected error kind. Empty expects success.
	Error string `yaml:"error,omitempty"`

	// Token is the token a successful register must return.
	Token string `yaml:"token,omitempty"`
}

// Assertion validates final state or the committed trace.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	// RegistrationOpen, AssignmentsReady and Shuffled are checked by state
	// when set. Shuffled tests whether lastShuffledAt is present.
	RegistrationOpen *bool `yaml:"registration_open,omitempty"`
	AssignmentsReady *bool `yaml:"assignments_ready,omitempty"`
	Shuffled         *bool `yaml:"shuffled,omitempty"`

	// Count is used by participant_count and trace_count.
	Count *int `yaml:"count,omitempty"`

	// Token selects the participant (participant).
	Token string `yaml:"token,omitempty"`

	// Name, IP, HasAssignment and Recipient are compared when set (participant).
	// Recipient "-" asserts there is none.
	Name          string `yaml:"name,omitempty"`
	IP            string `yaml:"ip,omitempty"`
	HasAssignment *bool  `yaml:"has_assignment,omitempty"`
	Recipient     string `yaml:"recipient,omitempty"`

	// Op is the committed operation counted by trace_count.
	Op string `yaml:"op,omitempty"`

	// Ops is the expected committed order (trace_order).
	Ops []string `yaml:"ops,omitempty"`
}

// Step operations.
const (
	OpRegister = "register"
	OpShuffle  = "shuffle"
	OpReopen   = "reopen"
	OpRestart  = "restart"
)

// Assertion type constants.
const (
	AssertState            = "state"
	AssertParticipantCount = "participant_count"
	AssertParticipant      = "participant"
	AssertSingleCycle      = "single_cycle"
	AssertTraceOrder       = "trace_order"
	AssertTraceCount       = "trace_count"
)

// NoRecipient in a participant assertion asserts no recipient is visible.
const NoRecipient = "-"

var errorKinds = map[string]bool{
	string(exchange.KindValidation):  true,
	string(exchange.KindState):       true,
	string(exchange.KindAuth):        true,
	string(exchange.KindNotFound):    true,
	string(exchange.KindPersistence): true,
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
	// Strict field validation catches typos like "assertion:" vs "assertions:".
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
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, name := range s.Setup {
		if name == "" {
			return fmt.Errorf("setup[%d]: name is required", i)
		}
	}

	for i, step := range s.Flow {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	switch step.Op {
	case OpRegister:
	case OpShuffle, OpReopen, OpRestart:
		if step.Name != "" || step.IP != "" {
			return fmt.Errorf("flow[%d]: name and ip apply to register only", index)
		}
	case "":
		return fmt.Errorf("flow[%d]: op is required", index)
	default:
		return fmt.Errorf("flow[%d]: unknown op %q", index, step.Op)
	}

	if step.Op == OpRestart && (step.FailWrite || step.Expect != nil) {
		return fmt.Errorf("flow[%d]: restart takes no fail_write or expect", index)
	}
	if step.Expect == nil {
		return nil
	}
	if step.Expect.Error != "" && !errorKinds[step.Expect.Error] {
		return fmt.Errorf("flow[%d].expect: unknown error kind %q", index, step.Expect.Error)
	}
	if step.Expect.Token != "" && (step.Op != OpRegister || step.Expect.Error != "") {
		return fmt.Errorf("flow[%d].expect: token applies to successful register only", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if a.RegistrationOpen == nil && a.AssignmentsReady == nil && a.Shuffled == nil {
			return fmt.Errorf("assertions[%d]: state needs at least one of registration_open, assignments_ready, shuffled", index)
		}
	case AssertParticipantCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for participant_count", index)
		}
	case AssertParticipant:
		if a.Token == "" {
			return fmt.Errorf("assertions[%d]: token is required for participant", index)
		}
	case AssertSingleCycle:
	case AssertTraceOrder:
		if len(a.Ops) == 0 {
			return fmt.Errorf("assertions[%d]: ops list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Op == "" {
			return fmt.Errorf("assertions[%d]: op is required for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

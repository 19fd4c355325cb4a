// Package judge implements WARK's secondary mode: running one compiled
// module against several input specifications, hashing each captured
// output and comparing it against an expected digest, with an optional
// asynchronous callback delivering the batch results.
package judge

// Spec is one entry of a judge submission, modeled on the original
// service's FastIOJudgeSpec: either an inline stdin string or a URL to
// fetch it from, an expected output hash, and per-spec resource limits.
type Spec struct {
	Input      string `json:"input,omitempty"`
	InputURL   string `json:"input_url,omitempty"`
	InputAuth  string `json:"input_auth,omitempty"`
	OutputHash string `json:"output_hash"`
	Cost       uint64 `json:"cost"`
	Memory     uint32 `json:"memory"`
}

// ExceptionType tags which phase of judging a Spec failed in.
type ExceptionType string

const (
	ExceptionSpec      ExceptionType = "Spec"
	ExceptionInput     ExceptionType = "Input"
	ExceptionExecution ExceptionType = "Execution"
	ExceptionOutput    ExceptionType = "Output"
)

// Exception is the tagged failure reason attached to a Result whose
// Success is false.
type Exception struct {
	Type   ExceptionType `json:"type"`
	Reason string        `json:"reason"`
}

// Result is the outcome of judging a single Spec.
type Result struct {
	Success   bool       `json:"success"`
	Cost      *uint64    `json:"cost,omitempty"`
	Memory    *uint32    `json:"memory,omitempty"`
	Message   string     `json:"message,omitempty"`
	Exception *Exception `json:"exception,omitempty"`
}

// Results wraps a full batch's results, the JSON shape delivered both
// as the synchronous HTTP response and as the callback POST body.
type Results struct {
	Results []Result `json:"results"`
}

// executionCode matches the original service's short RunError codes
// carried in an Execution exception's reason.
func executionCode(kind string) string {
	switch kind {
	case "SpendingLimitExceeded":
		return "SLE"
	case "MemoryLimitExceeded":
		return "MLE"
	case "RuntimeError":
		return "RE"
	case "CompileError":
		return "CE"
	case "IOError":
		return "IOE"
	default:
		return "RE"
	}
}

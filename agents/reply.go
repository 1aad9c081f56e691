package agents

// Bus names the handlers are registered under.
const (
	UserIntentAgent   = "UserIntentAgent"
	RecommenderAgent  = "RecommenderAgent"
	AvailabilityAgent = "AvailabilityAgent"
)

// DefaultCount is the number of recommendations when the request names none.
const DefaultCount = 5

// Status is the application-level outcome of a handler.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Fault codes carried by error replies.
const (
	CodeSeedNotFound    = "seed_not_found"
	CodeUnknownCategory = "unknown_category"
	CodeMissingItemID   = "missing_item_id"
)

// Result is embedded in every reply.
type Result struct {
	Status Status `json:"status"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// OK reports whether the handler accepted the request.
func (r Result) OK() bool { return r.Status == StatusOK }

func okResult() Result { return Result{Status: StatusOK} }

func reject(code, reason string) Result {
	return Result{Status: StatusError, Code: code, Reason: reason}
}

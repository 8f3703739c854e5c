package flagkit

type DecisionReason string

const (
	ReasonEvaluated     DecisionReason = "Evaluated"
	ReasonFlagNotFound  DecisionReason = "FlagNotFound"
	ReasonUninitialized DecisionReason = "Uninitialized"
)

// Decision is the outcome of checking a flag for a user. A flag that cannot
// be found is reported as disabled with an empty variable set.
type Decision struct {
	FlagKey    string                 `json:"flagKey"`
	UserID     string                 `json:"userID"`
	Enabled    bool                   `json:"enabled"`
	Variables  map[string]interface{} `json:"variables"`
	Reason     DecisionReason         `json:"reason"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// Gets the string variable at the given key, or the fallback
func (d Decision) GetString(key string, fallback string) string {
	return Flag{Variables: d.Variables}.GetString(key, fallback)
}

func (d Decision) GetNumber(key string, fallback float64) float64 {
	return Flag{Variables: d.Variables}.GetNumber(key, fallback)
}

func (d Decision) GetBool(key string, fallback bool) bool {
	return Flag{Variables: d.Variables}.GetBool(key, fallback)
}

package tools

import "encoding/json"

// decodeParams unmarshals raw tool-call arguments, wrapping any failure as
// an INVALID_PARAMS ToolError so the orchestrator can report it back to the
// model instead of aborting the turn.
func decodeParams(raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		return NewToolError(ErrCodeInvalidParams, "missing arguments", nil)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return NewToolError(ErrCodeInvalidParams, "could not parse arguments: "+err.Error(), nil)
	}
	return nil
}

package authority_client

const (
	// Actions
	ActionContextGet    = "ctx_get"
	ActionContextSet    = "ctx_set"
	ActionTryoutPeriods = "tryout_periods"

	// Query parameters
	ParamAction   = "action"
	ParamTryoutID = "tryout_id"

	// The authority accepts JSON only in a text/plain body; a JSON content
	// type would force a cross-origin preflight its runtime cannot answer.
	PlainTextContentType = "text/plain;charset=utf-8"
)

package authority_client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// TryoutPeriod is one named time-of-day interval from the authority's period
// dictionary, normalized from the dictionary's drifting column names.
type TryoutPeriod struct {
	Code  string
	Label string
	Start string
	End   string
}

// periodRow tolerates every field spelling the dictionary has used. The sheet
// behind the authority has been renamed more than once.
type periodRow struct {
	PeriodCode  string `json:"period_code"`
	Code        string `json:"code"`
	Label       string `json:"label"`
	PeriodLabel string `json:"period_label"`
	StartTime   string `json:"start_time"`
	Start       string `json:"start"`
	StartLocal  string `json:"start_local"`
	EndTime     string `json:"end_time"`
	End         string `json:"end"`
	EndLocal    string `json:"end_local"`
}

type periodsResponse struct {
	OK      bool        `json:"ok"`
	Periods []periodRow `json:"periods"`
	Rows    []periodRow `json:"rows"`
}

// GetTryoutPeriods fetches the period dictionary, optionally scoped to one
// tryout. Rows without a code or start time are dropped.
func (c *AuthorityClient) GetTryoutPeriods(ctx context.Context, tryoutID string) ([]TryoutPeriod, error) {
	params := url.Values{}
	params.Set(ParamAction, ActionTryoutPeriods)
	if tryoutID != "" {
		params.Set(ParamTryoutID, tryoutID)
	}

	body, err := c.Get(ctx, queryEndpoint(params))
	if err != nil {
		return nil, fmt.Errorf("failed to get tryout periods: %w", err)
	}

	var response periodsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	rows := response.Periods
	if len(rows) == 0 {
		rows = response.Rows
	}

	periods := make([]TryoutPeriod, 0, len(rows))
	for _, row := range rows {
		p := TryoutPeriod{
			Code:  firstNonEmpty(row.PeriodCode, row.Code),
			Label: firstNonEmpty(row.Label, row.PeriodLabel, row.Code, row.PeriodCode),
			Start: firstNonEmpty(row.StartTime, row.Start, row.StartLocal),
			End:   firstNonEmpty(row.EndTime, row.End, row.EndLocal),
		}
		if p.Code == "" || p.Start == "" {
			continue
		}
		periods = append(periods, p)
	}
	return periods, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

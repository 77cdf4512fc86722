package optimizer

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Request is the optimisation request as received over the wire.
type Request struct {
	Budget     json.Number      `json:"budget"`
	Candidates []CandidateInput `json:"candidates"`
	Rounding   string           `json:"rounding"`
	Mode       string           `json:"mode"`
	Params     json.RawMessage  `json:"params,omitempty"`
}

// CandidateInput is one outcome. M holds the multiplier either as a JSON string, parsed
// exactly, or as a JSON number.
type CandidateInput struct {
	Name string          `json:"name"`
	P    *float64        `json:"p"`
	M    json.RawMessage `json:"m"`
}

// Number accepts a JSON number or a numeric string. Anything else decodes as not Valid.
type Number struct {
	Value float64
	Valid bool
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	text := string(bytes.TrimSpace(data))
	if text == "null" {
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		text = strings.TrimSpace(s)
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	*n = Number{Value: v, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(n.Value, 'g', -1, 64)), nil
}

// rawParams is the union of every mode's parameters before typing.
type rawParams struct {
	NormalizeProb    json.RawMessage `json:"normalizeProb"`
	MinStake         Number          `json:"minStake"`
	MaxStake         Number          `json:"maxStake"`
	MaxLossPct       Number          `json:"maxLossPct"`
	MaxLossPercent   Number          `json:"maxLossPercent"`
	LossProbCap      Number          `json:"lossProbCap"`
	TargetT          Number          `json:"targetT"`
	KSparse          Number          `json:"kSparse"`
	ShortfallPenalty Number          `json:"shortfallPenalty"`
}

// normalizeRequested mirrors a strict `=== true` check: only the JSON literal true counts.
func (p rawParams) normalizeRequested() bool {
	return string(bytes.TrimSpace(p.NormalizeProb)) == "true"
}

// AllocationEntry is the stake placed on one candidate.
type AllocationEntry struct {
	Name  string `json:"name"`
	Stake int    `json:"s"`
}

// PayoutEntry is the payout received if the named candidate wins.
type PayoutEntry struct {
	Name   string `json:"name"`
	Payout int64  `json:"payout"`
}

// Metrics mirrors allocation.Metrics with the wire names.
type Metrics struct {
	G     int64    `json:"G"`
	EV    float64  `json:"EV"`
	EP    float64  `json:"EP"`
	PLoss float64  `json:"P_loss"`
	PGeT  *float64 `json:"P_ge_T,omitempty"`
	Var   float64  `json:"Var"`
}

// Response statuses.
const (
	StatusOK         = "ok"
	StatusInfeasible = "infeasible"
	StatusError      = "error"
)

// Response is the optimisation result. SolveID and Cached travel in headers, not in the body,
// so a cached body is identical to a recomputed one.
type Response struct {
	Status          string            `json:"status"`
	Mode            string            `json:"mode,omitempty"`
	Solver          string            `json:"solver,omitempty"`
	Allocation      []AllocationEntry `json:"allocation,omitempty"`
	PayoutByOutcome []PayoutEntry     `json:"payoutByOutcome,omitempty"`
	Metrics         *Metrics          `json:"metrics,omitempty"`
	Notes           []string          `json:"notes,omitempty"`

	SolveID string `json:"-" msgpack:"solve_id"`
	Cached  bool   `json:"-" msgpack:"-"`
}

// ErrorResponse builds the body returned for rejected requests.
func ErrorResponse(notes ...string) *Response {
	return &Response{Status: StatusError, Notes: notes}
}

// Package api holds the request and response bodies of the daemon's HTTP
// interface.
package api

import (
	"errors"

	"github.com/pcran/pcran/pkg/config"
	"github.com/pcran/pcran/pkg/pcrerr"
	"github.com/pcran/pcran/pkg/types"
)

// AnalyzeRequest is the body of POST /analyze. Options override the daemon's
// configuration for this request only; wells and x are usually set there.
type AnalyzeRequest struct {
	Samples map[string]types.Sample `json:"samples"`
	Options *config.RawFileConfig   `json:"options,omitempty"`
}

// RegressRequest is the body of POST /regress. Only the method, needLogX,
// needEff, xName and yName options apply.
type RegressRequest struct {
	Points  []types.CalibrationPoint `json:"points"`
	Options *config.RawFileConfig    `json:"options,omitempty"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error  string `json:"error"`
	Kind   string `json:"kind,omitempty"`
	Stage  string `json:"stage,omitempty"`
	Well   string `json:"well,omitempty"`
	Method string `json:"method,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NewErrorResponse fills the structured fields when err carries them.
func NewErrorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Error: err.Error()}
	var perr *pcrerr.Error
	if errors.As(err, &perr) {
		resp.Kind = string(perr.Kind)
		resp.Stage = perr.Stage
		resp.Well = perr.Well
		resp.Method = perr.Method
		resp.Detail = perr.Detail
	}
	return resp
}

// Err rebuilds an error from the response. Analysis errors come back as
// *pcrerr.Error so errors.Is keeps working across the wire.
func (r ErrorResponse) Err() error {
	if r.Kind == "" {
		return errors.New(r.Error)
	}
	return &pcrerr.Error{
		Kind:   pcrerr.Kind(r.Kind),
		Stage:  r.Stage,
		Well:   r.Well,
		Method: r.Method,
		Detail: r.Detail,
	}
}

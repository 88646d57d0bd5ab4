package httpapi

import "time"

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type issueCodeRequest struct {
	Owner      string     `json:"owner"`
	ValidFrom  *time.Time `json:"valid_from,omitempty"`
	ValidUntil time.Time  `json:"valid_until"`
}

type issueCodeResponse struct {
	Code       string    `json:"code"`
	Owner      string    `json:"owner"`
	ValidFrom  time.Time `json:"valid_from"`
	ValidUntil time.Time `json:"valid_until"`
}

type activeCodeView struct {
	Code             string    `json:"code"`
	Owner            string    `json:"owner"`
	ValidFrom        time.Time `json:"valid_from"`
	ValidUntil       time.Time `json:"valid_until"`
	RemainingSeconds int64     `json:"remaining_seconds"`
}

type listCodesResponse struct {
	ActiveCodes []activeCodeView `json:"active_codes"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type verifyResponse struct {
	Authorized bool   `json:"authorized"`
	Owner      string `json:"owner"`
}

type dispatchRequest struct {
	Code    string `json:"code"`
	Target  string `json:"target"`
	Command string `json:"command"`
}

type adminDispatchRequest struct {
	Target  string `json:"target"`
	Command string `json:"command"`
}

type dispatchResponse struct {
	Dispatched bool   `json:"dispatched"`
	Owner      string `json:"owner"`
	Target     string `json:"target"`
}

type auditEntryView struct {
	Owner     string    `json:"owner"`
	Code      string    `json:"code"`
	Action    string    `json:"action"`
	Target    string    `json:"target,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type auditResponse struct {
	Entries []auditEntryView `json:"entries"`
}

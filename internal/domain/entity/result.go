package entity

import (
	"encoding/json"
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrorKindAuth        ErrorKind = "AuthError"
	ErrorKindNotFound    ErrorKind = "NotFound"
	ErrorKindBadRequest  ErrorKind = "BadRequest"
	ErrorKindRateLimited ErrorKind = "RateLimited"
	ErrorKindServer      ErrorKind = "ServerError"
	ErrorKindTimeout     ErrorKind = "Timeout"
	ErrorKindUnknown     ErrorKind = "Unknown"
	ErrorKindPanic       ErrorKind = "Panic"
)

// ProviderError is returned by provider adapters so that callers can decide
// whether a call is worth retrying.
type ProviderError struct {
	Kind ErrorKind
	Err  error
}

func NewProviderError(kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Kind: kind, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Transient reports whether the kind is worth another attempt.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrorKindRateLimited, ErrorKindServer, ErrorKindTimeout:
		return true
	default:
		return false
	}
}

// KindOf returns the kind carried by err, or Unknown.
func KindOf(err error) ErrorKind {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr.Kind
	}

	return ErrorKindUnknown
}

type ResultKind string

const (
	ResultKindSuccess ResultKind = "success"
	ResultKindFailure ResultKind = "failure"
)

type Success struct {
	SubscriptionID SubscriptionID     `json:"subscriptionId"`
	Records        []ComplianceRecord `json:"records"`
}

type Failure struct {
	SubscriptionID SubscriptionID `json:"subscriptionId"`
	ErrorKind      ErrorKind      `json:"errorKind"`
	Message        string         `json:"message"`
}

// SubscriptionResult holds exactly one of Success or Failure.
type SubscriptionResult struct {
	Kind    ResultKind
	Success *Success
	Failure *Failure
}

func NewSuccess(id SubscriptionID, records []ComplianceRecord) SubscriptionResult {
	if records == nil {
		records = []ComplianceRecord{}
	}

	return SubscriptionResult{
		Kind:    ResultKindSuccess,
		Success: &Success{SubscriptionID: id, Records: records},
	}
}

func NewFailure(id SubscriptionID, kind ErrorKind, message string) SubscriptionResult {
	return SubscriptionResult{
		Kind:    ResultKindFailure,
		Failure: &Failure{SubscriptionID: id, ErrorKind: kind, Message: message},
	}
}

func (r SubscriptionResult) SubscriptionID() SubscriptionID {
	switch {
	case r.Success != nil:
		return r.Success.SubscriptionID
	case r.Failure != nil:
		return r.Failure.SubscriptionID
	default:
		return ""
	}
}

func (r SubscriptionResult) IsSuccess() bool {
	return r.Kind == ResultKindSuccess && r.Success != nil
}

type jsonResult struct {
	Kind    ResultKind `json:"kind"`
	Success *Success   `json:"success,omitempty"`
	Failure *Failure   `json:"failure,omitempty"`
}

func (r SubscriptionResult) MarshalJSON() ([]byte, error) {
	out := jsonResult{Kind: r.Kind}

	switch r.Kind {
	case ResultKindSuccess:
		out.Success = r.Success
	case ResultKindFailure:
		out.Failure = r.Failure
	}

	return json.Marshal(out)
}

func (r *SubscriptionResult) UnmarshalJSON(b []byte) error {
	in := jsonResult{}

	err := json.Unmarshal(b, &in)
	if err != nil {
		return err
	}

	switch {
	case in.Kind == ResultKindSuccess && in.Success != nil:
		*r = SubscriptionResult{Kind: in.Kind, Success: in.Success}
	case in.Kind == ResultKindFailure && in.Failure != nil:
		*r = SubscriptionResult{Kind: in.Kind, Failure: in.Failure}
	default:
		return fmt.Errorf("invalid subscription result kind %q", in.Kind)
	}

	return nil
}

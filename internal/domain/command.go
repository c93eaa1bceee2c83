package domain

import "encoding/json"

// Request is the body of a POST to the command endpoint.
type Request struct {
	Command string          `json:"command"`
	Params  json.RawMessage `json:"params"`
}

type ResponseType string

const (
	ResponseSuccess ResponseType = "success"
	ResponseError   ResponseType = "error"
)

// Response is the command result envelope. Build it with Success or Failure;
// those are the only two shapes a client ever sees.
type Response struct {
	Type    ResponseType `json:"type"`
	Subject any          `json:"subject"`
}

func Success(subject any) Response {
	return Response{Type: ResponseSuccess, Subject: subject}
}

func Failure(subject any) Response {
	return Response{Type: ResponseError, Subject: subject}
}

func (r Response) IsSuccess() bool {
	return r.Type == ResponseSuccess
}

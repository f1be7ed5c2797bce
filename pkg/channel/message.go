package channel

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// RPC status codes carried in Response.Header.Status.Code.
const (
	StatusOK                 int32 = 0
	StatusUnknown            int32 = 3001
	StatusClientSend         int32 = 3101
	StatusClientAPINotReg    int32 = 3102
	StatusClientAPITimeout   int32 = 3103
	StatusClientAPINotMatch  int32 = 3104
	StatusClientAPIData      int32 = 3105
	StatusClientLeaseInvalid int32 = 3106
	StatusServerSend         int32 = 3201
	StatusServerInternal     int32 = 3202
	StatusServerAPINotImpl   int32 = 3203
	StatusServerAPIParameter int32 = 3204
	StatusServerLeaseDenied  int32 = 3205
)

var statusText = map[int32]string{
	StatusOK:                 "ok",
	StatusUnknown:            "unknown error",
	StatusClientSend:         "client send failed",
	StatusClientAPINotReg:    "client api not registered",
	StatusClientAPITimeout:   "client api timeout",
	StatusClientAPINotMatch:  "client api version mismatch",
	StatusClientAPIData:      "client api data error",
	StatusClientLeaseInvalid: "client lease invalid",
	StatusServerSend:         "server send failed",
	StatusServerInternal:     "server internal error",
	StatusServerAPINotImpl:   "server api not implemented",
	StatusServerAPIParameter: "server api parameter error",
	StatusServerLeaseDenied:  "server lease denied",
}

// StatusText returns a short description of an RPC status code.
func StatusText(code int32) string {
	if s, ok := statusText[code]; ok {
		return s
	}
	return "unrecognized status"
}

// Identity correlates a request with its response.
type Identity struct {
	ID    string `json:"id"`
	APIID int32  `json:"api_id"`
}

// Lease identifies an exclusive control lease. Zero means no lease.
type Lease struct {
	ID int64 `json:"id"`
}

// Policy controls delivery of a request.
type Policy struct {
	Priority int32 `json:"priority"`
	NoReply  bool  `json:"noreply"`
}

// RequestHeader is the metadata sent with every request.
type RequestHeader struct {
	Identity Identity `json:"identity"`
	Lease    Lease    `json:"lease"`
	Policy   Policy   `json:"policy"`
	Domain   int      `json:"domain"`
}

// Request is one RPC call to a robot service.
// Parameter holds the API-specific JSON document as a string.
type Request struct {
	Header    RequestHeader `json:"header"`
	Parameter string        `json:"parameter"`
	Binary    []byte        `json:"binary,omitempty"`
}

// Status is the outcome of a request.
type Status struct {
	Code int32 `json:"code"`
}

// ResponseHeader is the metadata returned with every response.
type ResponseHeader struct {
	Identity Identity `json:"identity"`
	Status   Status   `json:"status"`
}

// Response is a service's answer to a Request.
type Response struct {
	Header ResponseHeader `json:"header"`
	Data   string         `json:"data"`
	Binary []byte         `json:"binary,omitempty"`
}

// Envelope wraps a request with its target service for stream transports.
type Envelope struct {
	Service string  `json:"service"`
	Request Request `json:"request"`
}

// NewRequest builds a request for apiID with a fresh identity.
// parameter may be nil, a string, a []byte, or any JSON-marshalable value.
func NewRequest(apiID int32, parameter any) (Request, error) {
	var param string
	switch p := parameter.(type) {
	case nil:
	case string:
		param = p
	case []byte:
		param = string(p)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return Request{}, fmt.Errorf("marshal parameter for api %d: %w", apiID, err)
		}
		param = string(data)
	}

	return Request{
		Header: RequestHeader{
			Identity: Identity{ID: uuid.NewString(), APIID: apiID},
		},
		Parameter: param,
	}, nil
}

// Reply builds a response to r with the given status code and data.
func (r Request) Reply(code int32, data string) Response {
	return Response{
		Header: ResponseHeader{
			Identity: r.Header.Identity,
			Status:   Status{Code: code},
		},
		Data: data,
	}
}

// Subject returns the NATS subject for a service's requests.
func Subject(service string) string {
	return "rt.api." + service + ".request"
}

// Path returns the HTTP path for a service's requests.
func Path(service string) string {
	return "/rt/api/" + service + "/request"
}

package channel

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"
)

func echoHandler(code int32) HandlerFunc {
	return func(_ context.Context, service string, req Request) Response {
		return req.Reply(code, service+":"+req.Parameter)
	}
}

func TestNewRequest_Parameters(t *testing.T) {
	tests := []struct {
		name  string
		param any
		want  string
	}{
		{"nil", nil, ""},
		{"string", `{"data":1}`, `{"data":1}`},
		{"bytes", []byte(`{"data":2}`), `{"data":2}`},
		{"struct", map[string]int{"data": 3}, `{"data":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest(7101, tt.param)
			if err != nil {
				t.Fatalf("NewRequest: %v", err)
			}
			if req.Parameter != tt.want {
				t.Errorf("Parameter: got %q, want %q", req.Parameter, tt.want)
			}
			if req.Header.Identity.APIID != 7101 {
				t.Errorf("APIID: got %d, want 7101", req.Header.Identity.APIID)
			}
		})
	}
}

func TestNewRequest_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		req, _ := NewRequest(1, nil)
		if seen[req.Header.Identity.ID] {
			t.Fatalf("duplicate identity %s", req.Header.Identity.ID)
		}
		seen[req.Header.Identity.ID] = true
	}
}

func TestNewRequest_BadParameter(t *testing.T) {
	if _, err := NewRequest(1, make(chan int)); err == nil {
		t.Error("expected marshal error for channel parameter")
	}
}

func TestReply_CopiesIdentity(t *testing.T) {
	req, _ := NewRequest(7105, nil)
	resp := req.Reply(StatusServerAPIParameter, "")
	if resp.Header.Identity != req.Header.Identity {
		t.Errorf("identity mismatch: %+v vs %+v", resp.Header.Identity, req.Header.Identity)
	}

	err := CheckStatus(resp)
	if err == nil {
		t.Fatal("expected status error")
	}
	if !IsStatus(err, StatusServerAPIParameter) {
		t.Errorf("IsStatus: got false for %v", err)
	}
	if IsStatus(err, StatusServerInternal) {
		t.Error("IsStatus matched wrong code")
	}
	if CheckStatus(req.Reply(StatusOK, "")) != nil {
		t.Error("OK status should not be an error")
	}
}

func TestStatusText(t *testing.T) {
	if StatusText(StatusServerAPINotImpl) != "server api not implemented" {
		t.Errorf("unexpected text: %q", StatusText(StatusServerAPINotImpl))
	}
	if StatusText(42) != "unrecognized status" {
		t.Errorf("unexpected text for unknown code: %q", StatusText(42))
	}
}

func TestMemoryTransport(t *testing.T) {
	tr := NewMemoryTransport(echoHandler(StatusOK))
	req, _ := NewRequest(7001, "x")

	resp, err := tr.Call(context.Background(), "loco", req)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Data != "loco:x" {
		t.Errorf("Data: got %q", resp.Data)
	}

	tr.Close()
	if _, err := tr.Call(context.Background(), "loco", req); !errors.Is(err, ErrClosed) {
		t.Errorf("after Close: got %v, want ErrClosed", err)
	}
}

func TestMemoryTransport_NoReply(t *testing.T) {
	var calls int
	tr := NewMemoryTransport(func(_ context.Context, _ string, req Request) Response {
		calls++
		return req.Reply(StatusOK, "ignored")
	})
	req, _ := NewRequest(7105, nil)
	req.Header.Policy.NoReply = true

	resp, err := tr.Call(context.Background(), "loco", req)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Data != "" || calls != 1 {
		t.Errorf("NoReply: data=%q calls=%d", resp.Data, calls)
	}
}

func TestMemoryTransport_ExpiredContext(t *testing.T) {
	tr := NewMemoryTransport(echoHandler(StatusOK))
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	req, _ := NewRequest(1, nil)
	if _, err := tr.Call(ctx, "loco", req); !errors.Is(err, ErrTimeout) {
		t.Errorf("got %v, want ErrTimeout", err)
	}
}

func TestInit_InvalidDomain(t *testing.T) {
	if _, err := Init(-1, ""); err == nil {
		t.Error("expected error for negative domain")
	}
}

func TestInit_NoInterface(t *testing.T) {
	f, err := Init(0, "")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if f.LocalAddr != nil {
		t.Errorf("LocalAddr: got %v, want nil", f.LocalAddr)
	}
}

func TestInit_UnknownInterface(t *testing.T) {
	orig := lookupInterface
	defer func() { lookupInterface = orig }()
	lookupInterface = func(name string) (*net.Interface, error) {
		return nil, errors.New("no such interface")
	}

	_, err := Init(0, "enp9s9")
	if !errors.Is(err, ErrInterfaceNotFound) {
		t.Errorf("got %v, want ErrInterfaceNotFound", err)
	}
}

func TestInit_Loopback(t *testing.T) {
	ifaces, err := net.Interfaces()
	if err != nil {
		t.Skip("cannot list interfaces")
	}
	for _, ifi := range ifaces {
		if ifi.Flags&net.FlagLoopback == 0 {
			continue
		}
		f, err := Init(0, ifi.Name)
		if err != nil {
			t.Skipf("loopback %s unusable: %v", ifi.Name, err)
		}
		if !f.LocalAddr.IsLoopback() {
			t.Errorf("LocalAddr: got %v, want loopback", f.LocalAddr)
		}
		return
	}
	t.Skip("no loopback interface")
}

func TestDial_UnsupportedScheme(t *testing.T) {
	f, _ := Init(0, "")
	_, err := f.Dial(context.Background(), "udp://robot:7400")
	if !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("got %v, want ErrUnsupportedScheme", err)
	}
}

func TestDomainTransport_StampsDomain(t *testing.T) {
	var mu sync.Mutex
	var got int
	inner := NewMemoryTransport(func(_ context.Context, _ string, req Request) Response {
		mu.Lock()
		got = req.Header.Domain
		mu.Unlock()
		return req.Reply(StatusOK, "")
	})
	tr := &domainTransport{Transport: inner, domain: 7}

	req, _ := NewRequest(1, nil)
	if _, err := tr.Call(context.Background(), "loco", req); err != nil {
		t.Fatalf("Call: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if got != 7 {
		t.Errorf("Domain: got %d, want 7", got)
	}
}

func TestSubjectAndPath(t *testing.T) {
	if Subject("loco") != "rt.api.loco.request" {
		t.Errorf("Subject: got %q", Subject("loco"))
	}
	if Path("loco") != "/rt/api/loco/request" {
		t.Errorf("Path: got %q", Path("loco"))
	}
}

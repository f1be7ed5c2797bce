package sim

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/teslashibe/go-g1/pkg/channel"
)

// ServeNATS answers the robot's RPC subject on nc until the returned
// subscription is drained or unsubscribed.
func ServeNATS(nc *nats.Conn, robot *Robot) (*nats.Subscription, error) {
	subject := channel.Subject(robot.Service())
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		data, ok := robot.handleNATS(msg.Data)
		if !ok || msg.Reply == "" {
			return
		}
		if err := msg.Respond(data); err != nil {
			robot.logger.Warn("nats respond", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("sim: subscribe %s: %w", subject, err)
	}
	robot.logger.Info("serving nats", "subject", subject)
	return sub, nil
}

// handleNATS decodes one request payload and encodes the reply. ok is
// false when no reply should be sent.
func (r *Robot) handleNATS(payload []byte) (data []byte, ok bool) {
	var req channel.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		r.logger.Warn("nats: bad request", "error", err)
		return nil, false
	}
	resp := r.Handle(context.Background(), r.service, req)
	if req.Header.Policy.NoReply {
		return nil, false
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, false
	}
	return data, true
}

package link

import (
	"context"
	"time"
)

// DefaultTimeout is the per round trip budget used when none is configured.
const DefaultTimeout = 4 * time.Second

// Caller performs blocking round trips over a Transport, one at a time.
// Responses that do not belong to the pending request are discarded, so a
// Caller must be the only consumer of the transport's events while in use.
type Caller struct {
	t       Transport
	timeout time.Duration
}

// NewCaller creates a caller with the given per round trip timeout.
func NewCaller(t Transport, timeout time.Duration) *Caller {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Caller{t: t, timeout: timeout}
}

// Read fetches an object instance.
func (c *Caller) Read(ctx context.Context, typeID uint32, instanceID uint16) ([]byte, error) {
	resp, err := c.await(ctx, c.t.RequestObject(typeID, instanceID), typeID, instanceID)
	if err != nil {
		return nil, err
	}
	return resp.Payload, resp.Err()
}

// Write sends an object instance and waits for the acknowledgement.
func (c *Caller) Write(ctx context.Context, typeID uint32, instanceID uint16, data []byte) error {
	resp, err := c.await(ctx, c.t.WriteObject(typeID, instanceID, data), typeID, instanceID)
	if err != nil {
		return err
	}
	return resp.Err()
}

func (c *Caller) await(ctx context.Context, id RequestID, typeID uint32, instanceID uint16) (Response, error) {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-timer.C:
			return Response{ID: id, Status: StatusTimeout, TypeID: typeID, InstanceID: instanceID}, nil
		case resp, ok := <-c.t.Events():
			if !ok {
				return Response{}, ErrClosed
			}
			if resp.ID == id {
				return resp, nil
			}
		}
	}
}

// Package client connects to the fcsimd daemon. A Client is a link.Device,
// so the retrieval engine can drive the daemon's simulated flight controller
// through link.NewAsync exactly as it drives an in-process one.
package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	linkv1 "github.com/jamesainslie/flightlog/pkg/api/link/v1"
	"github.com/jamesainslie/flightlog/pkg/daemon"
	"github.com/jamesainslie/flightlog/pkg/flightlog/config"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
)

// BinaryName is the daemon executable.
const BinaryName = "fcsimd"

// Client connects to the fcsimd daemon via gRPC.
type Client struct {
	conn   *grpc.ClientConn
	client linkv1.LinkClient
}

var _ link.Device = (*Client)(nil)

// DaemonStatus represents the daemon's current status.
type DaemonStatus struct {
	Running       bool
	UptimeSeconds int64
	MemoryBytes   int64
	Flights       int
	Entries       int
	LastFlight    int
	UsedSlots     int
	FreeSlots     int
	Reads         int
	Writes        int
	SeededFiles   int
}

// DaemonPaths configures paths for daemon operations.
// Empty fields use defaults.
type DaemonPaths struct {
	Binary string // Path to fcsimd binary (auto-discovered if empty)
	Socket string // Unix socket path
	PID    string // PID file path
}

// withDefaults returns a copy with empty fields filled with defaults.
func (p DaemonPaths) withDefaults() DaemonPaths {
	if p.Socket == "" {
		p.Socket = config.DefaultSocketPath()
	}
	if p.PID == "" {
		p.PID = config.DefaultPIDPath()
	}
	return p
}

// Connect establishes a connection to the daemon.
// Uses a default timeout of 5 seconds.
func Connect(socketPath string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ConnectWithContext(ctx, socketPath)
}

// ConnectWithContext establishes a connection to the daemon, waiting until
// the channel is ready or ctx ends.
func ConnectWithContext(ctx context.Context, socketPath string) (*Client, error) {
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("daemon socket not found at %s", socketPath)
	}

	conn, err := grpc.NewClient("unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}

	conn.Connect()
	for state := conn.GetState(); state != connectivity.Ready; state = conn.GetState() {
		if state == connectivity.Shutdown || !conn.WaitForStateChange(ctx, state) {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to connect to daemon: %w", context.Cause(ctx))
		}
	}

	return &Client{
		conn:   conn,
		client: linkv1.NewLinkClient(conn),
	}, nil
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ReadObject implements link.Device.
func (c *Client) ReadObject(ctx context.Context, typeID uint32, instanceID uint16) ([]byte, error) {
	resp, err := c.client.RequestObject(ctx, linkv1.Object{TypeID: typeID, Instance: instanceID}.Pack())
	if err != nil {
		return nil, fromStatus(err)
	}
	obj, err := linkv1.Unpack(resp)
	if err != nil {
		return nil, err
	}
	if obj.TypeID != typeID || obj.Instance != instanceID {
		return nil, fmt.Errorf("daemon answered 0x%08X/%d for 0x%08X/%d", obj.TypeID, obj.Instance, typeID, instanceID)
	}
	return obj.Data, nil
}

// WriteObject implements link.Device.
func (c *Client) WriteObject(ctx context.Context, typeID uint32, instanceID uint16, data []byte) error {
	_, err := c.client.WriteObject(ctx, linkv1.Object{TypeID: typeID, Instance: instanceID, Data: data}.Pack())
	return fromStatus(err)
}

// fromStatus maps gRPC codes back onto link errors.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%s: %w", st.Message(), link.ErrNotFound)
	case codes.FailedPrecondition:
		return fmt.Errorf("%s: %w", st.Message(), link.ErrRejected)
	case codes.DeadlineExceeded:
		return fmt.Errorf("%s: %w", st.Message(), link.ErrTimeout)
	case codes.Canceled:
		return context.Canceled
	case codes.Unavailable:
		return fmt.Errorf("%s: %w", st.Message(), link.ErrClosed)
	default:
		return err
	}
}

// Status returns the current status of the daemon.
func (c *Client) Status(ctx context.Context) (*DaemonStatus, error) {
	resp, err := c.client.Status(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, fmt.Errorf("Status RPC failed: %w", err)
	}

	f := resp.GetFields()
	num := func(key string) int { return int(f[key].GetNumberValue()) }
	return &DaemonStatus{
		Running:       f["running"].GetBoolValue(),
		UptimeSeconds: int64(f["uptime_seconds"].GetNumberValue()),
		MemoryBytes:   int64(f["memory_bytes"].GetNumberValue()),
		Flights:       num("flights"),
		Entries:       num("entries"),
		LastFlight:    num("last_flight"),
		UsedSlots:     num("used_slots"),
		FreeSlots:     num("free_slots"),
		Reads:         num("reads"),
		Writes:        num("writes"),
		SeededFiles:   num("seeded_files"),
	}, nil
}

// Shutdown requests the daemon to shut down gracefully.
func (c *Client) Shutdown(ctx context.Context) error {
	if _, err := c.client.Shutdown(ctx, &emptypb.Empty{}); err != nil {
		return fmt.Errorf("Shutdown RPC failed: %w", err)
	}
	return nil
}

// EnsureDaemon ensures the daemon is running, starting it if necessary.
// Idempotent: returns nil if daemon is already running.
func EnsureDaemon(paths DaemonPaths) error {
	return StartDaemon(paths)
}

// StartDaemon starts the daemon in the background and waits for it to
// report ready.
// Idempotent: returns nil if daemon is already running.
func StartDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if daemon.IsDaemonRunning(paths.PID) {
		return nil
	}

	binary, err := resolveBinary(paths.Binary)
	if err != nil {
		return fmt.Errorf("find %s: %w", BinaryName, err)
	}

	statusPath := daemon.StatusPath(paths.Socket)
	_ = daemon.RemoveStatus(statusPath)

	// exec.Command, not CommandContext: the daemon must outlive the caller
	cmd := exec.Command(binary, "--socket", paths.Socket, "--pid", paths.PID) //nolint:gosec // binary path is validated
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	if cmd.Process != nil {
		_ = cmd.Process.Release()
	}

	for range 50 {
		time.Sleep(100 * time.Millisecond)

		if st, err := daemon.ReadStatus(statusPath); err == nil {
			switch st.Status {
			case daemon.StatusReady:
				return nil
			case daemon.StatusError:
				return fmt.Errorf("daemon failed to start: %s", st.Error)
			}
		}
	}

	return errors.New("daemon did not become ready within timeout")
}

// StopDaemon stops the daemon gracefully via RPC.
// Idempotent: returns nil if daemon is not running.
func StopDaemon(paths DaemonPaths) error {
	paths = paths.withDefaults()

	if !daemon.IsDaemonRunning(paths.PID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, err := ConnectWithContext(ctx, paths.Socket)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer c.Close()

	if err := c.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown daemon: %w", err)
	}

	for range 20 {
		time.Sleep(250 * time.Millisecond)
		if !daemon.IsDaemonRunning(paths.PID) {
			return nil
		}
	}

	return errors.New("daemon did not stop within timeout")
}

// RestartDaemon stops and starts the daemon.
func RestartDaemon(paths DaemonPaths) error {
	if err := StopDaemon(paths); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	if err := StartDaemon(paths); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return nil
}

// IsDaemonRunning reports whether the PID file names a live process.
func IsDaemonRunning(paths DaemonPaths) bool {
	return daemon.IsDaemonRunning(paths.withDefaults().PID)
}

// resolveBinary finds the fcsimd binary.
// Priority: configured path > same directory as executable > GOBIN/GOPATH > PATH.
func resolveBinary(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("configured binary not found: %s", configured)
		}
		return configured, nil
	}

	if execPath, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(execPath), BinaryName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	if goBinPath := config.DefaultBinaryPath(BinaryName); goBinPath != "" {
		return goBinPath, nil
	}

	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	return "", fmt.Errorf("%s not found", BinaryName)
}

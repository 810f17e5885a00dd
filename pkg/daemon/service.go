package daemon

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	linkv1 "github.com/jamesainslie/flightlog/pkg/api/link/v1"
	"github.com/jamesainslie/flightlog/pkg/daemon/device"
	"github.com/jamesainslie/flightlog/pkg/daemon/seeder"
	"github.com/jamesainslie/flightlog/pkg/flightlog/link"
	"github.com/jamesainslie/flightlog/pkg/flightlog/logging"
)

// Service implements the Link gRPC service on top of a simulated device.
type Service struct {
	linkv1.UnimplementedLinkServer

	dev       *device.Device
	seeder    *seeder.Seeder
	startTime time.Time

	mu       sync.Mutex
	shutdown func()
}

// NewService creates a service answering for dev.
func NewService(dev *device.Device) *Service {
	return &Service{
		dev:       dev,
		startTime: time.Now(),
	}
}

// SetSeeder attaches the seeder whose progress Status reports.
func (s *Service) SetSeeder(sd *seeder.Seeder) {
	s.seeder = sd
}

// SetShutdown sets the function Shutdown calls. It runs on its own
// goroutine so the RPC can complete first.
func (s *Service) SetShutdown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = fn
}

// RequestObject reads one object from the device.
func (s *Service) RequestObject(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	obj, err := linkv1.Unpack(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	data, err := s.dev.ReadObject(ctx, obj.TypeID, obj.Instance)
	if err != nil {
		return nil, toStatus(err)
	}
	obj.Data = data
	return obj.Pack(), nil
}

// WriteObject writes one object to the device.
func (s *Service) WriteObject(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	obj, err := linkv1.Unpack(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if err := s.dev.WriteObject(ctx, obj.TypeID, obj.Instance, obj.Data); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Status returns daemon and device health information.
func (s *Service) Status(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := s.dev.Status()
	reads, writes := s.dev.Counters()
	flights, err := s.dev.Store().Flights()
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	fields := map[string]any{
		"running":        true,
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"memory_bytes":   float64(mem.Alloc),
		"flights":        len(flights),
		"entries":        float64(s.dev.Store().CountEntries()),
		"last_flight":    int(st.Flight),
		"used_slots":     int(st.UsedSlots),
		"free_slots":     int(st.FreeSlots),
		"reads":          reads,
		"writes":         writes,
	}
	if s.seeder != nil {
		fields["seeded_files"] = float64(s.seeder.Imported())
	}
	return structpb.NewStruct(fields)
}

// Shutdown asks the daemon to exit.
func (s *Service) Shutdown(_ context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	s.mu.Lock()
	fn := s.shutdown
	s.mu.Unlock()
	if fn == nil {
		return nil, status.Error(codes.Unavailable, "shutdown not available")
	}
	logging.Get("daemon").Info("shutdown requested")
	go fn()
	return &emptypb.Empty{}, nil
}

// toStatus maps device errors onto gRPC codes. The client maps them back.
func toStatus(err error) error {
	switch {
	case errors.Is(err, link.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, link.ErrRejected):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, link.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

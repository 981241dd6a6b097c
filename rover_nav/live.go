package rover_nav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"rover-search/internal/logging"
)

// packetKind classifies a live UDP payload.
type packetKind int

const (
	packetPose packetKind = iota + 1
	packetMarker
	packetNoMarker
)

// livePacket is one parsed UDP payload.
type livePacket struct {
	Kind   packetKind
	Pose   Pose
	Marker MarkerObservation
}

// liveStore holds the latest pose and marker reports.
type liveStore struct {
	mu        sync.RWMutex
	pose      Pose
	poseSeq   uint64
	marker    MarkerObservation
	markerSeq uint64
}

// Apply stores a packet and advances the matching sequence counter.
func (s *liveStore) Apply(p livePacket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch p.Kind {
	case packetPose:
		s.pose = p.Pose
		s.poseSeq++
	case packetMarker, packetNoMarker:
		s.marker = p.Marker
		s.markerSeq++
	}
}

// Pose returns the last reported pose and its sequence number.
func (s *liveStore) Pose() (Pose, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pose, s.poseSeq
}

// Marker returns the last marker report and its sequence number.
func (s *liveStore) Marker() (MarkerObservation, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marker, s.markerSeq
}

// liveRover reads pose from the store and buffers the cycle's command until
// the loop flushes it to the output socket.
type liveRover struct {
	store   *liveStore
	pending DriveCommand
}

func (r *liveRover) Pose() Pose {
	p, _ := r.store.Pose()
	return p
}

func (r *liveRover) SendDriveCommand(cmd DriveCommand) { r.pending = cmd }

func (r *liveRover) flush() DriveCommand {
	cmd := r.pending
	r.pending = DriveCommand{}
	return cmd
}

// RunLive starts the UDP-to-UDP control loop. It returns nil once the course
// is complete and ctx.Err() when cancelled.
func RunLive(ctx context.Context, cfg AppConfig, hooks Hooks, log logging.Logger) error {
	if log == nil {
		log = logging.Noop()
	}
	if cfg.Hz <= 0 {
		return fmt.Errorf("%w: hz must be > 0", ErrInvalidConfig)
	}
	if cfg.Live.UDPAddr == "" {
		return fmt.Errorf("%w: live.udp_addr must be set", ErrInvalidConfig)
	}
	waypoints := cfg.Waypoints()
	if len(waypoints) == 0 {
		return fmt.Errorf("%w: course.waypoints is empty", ErrInvalidConfig)
	}

	store := &liveStore{}
	conn, err := startUDPListener(ctx, cfg.Live, store, log)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	sender, err := NewOutputSender(cfg.Output.UDPAddr)
	if err != nil {
		return err
	}
	defer func() { _ = sender.Close() }()

	course := NewCourseStore(waypoints)
	tracker := NewMarkerTracker(cfg.Tracker)
	rover := &liveRover{store: store}
	nav := NewNavigator(cfg.NavigatorConfig(), course, rover, tracker, NewDriveFunc(cfg.Drive),
		WithNavigatorLogger(log),
		WithHooks(hooks),
	)

	log.Info(ctx, "live loop started",
		logging.String("listen", cfg.Live.UDPAddr),
		logging.String("output", cfg.Output.UDPAddr),
		logging.Float("hz", cfg.Hz),
		logging.String("state", nav.State().String()),
	)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / cfg.Hz))
	defer ticker.Stop()

	t0 := time.Now()
	var lastMarkerSeq uint64
	var waitingLogged bool
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			_, poseSeq := store.Pose()
			if poseSeq == 0 {
				if !waitingLogged {
					log.Info(ctx, "waiting for first pose report")
					waitingLogged = true
				}
				continue
			}

			simT := now.Sub(t0).Seconds()
			obs, seq := store.Marker()
			if seq != lastMarkerSeq {
				lastMarkerSeq = seq
			} else {
				obs = MarkerObservation{}
			}
			obs.T = simT

			target := NoMarker
			if wp, err := course.CurrentWaypoint(); err == nil {
				target = wp.MarkerID
			}
			st := tracker.Update(obs, target)

			state, err := nav.Step(ctx)
			if err != nil {
				return err
			}
			cmd := rover.flush()
			if err := sender.Send(cmd, state); err != nil {
				log.Warn(ctx, "send drive command failed", logging.Err(err))
			}
			log.Debug(ctx, "live cycle",
				logging.String("state", state.String()),
				logging.Bool("marker_valid", st.Valid),
				logging.Float("marker_age", st.Age),
				logging.Float("linear", cmd.Linear),
				logging.Float("angular", cmd.Angular),
			)

			if state == StateDone {
				log.Info(ctx, "course complete", logging.Int("cycles", nav.Cycle()))
				return nil
			}
		}
	}
}

// startUDPListener spawns a goroutine that reads pose and marker packets
// until ctx is cancelled or the socket closes.
func startUDPListener(ctx context.Context, cfg LiveConfig, store *liveStore, log logging.Logger) (*net.UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.UDPAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve listen addr %q: %w", cfg.UDPAddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %q: %w", cfg.UDPAddr, err)
	}

	bufSize := cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 2048
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go readLivePackets(ctx, conn, bufSize, store, log)

	return conn, nil
}

// readErrorBackoff is the pause after a failed read so a broken socket does
// not spin the reader.
const readErrorBackoff = 20 * time.Millisecond

// readLivePackets feeds datagrams from r into store until r is closed or ctx
// is done.
func readLivePackets(ctx context.Context, r io.Reader, bufSize int, store *liveStore, log logging.Logger) {
	buf := make([]byte, bufSize)
	for {
		n, err := r.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Debug(ctx, "live read failed", logging.Err(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorBackoff):
			}
			continue
		}
		p, err := parseLivePacket(buf[:n])
		if err != nil {
			log.Debug(ctx, "dropping live packet", logging.Err(err))
			continue
		}
		store.Apply(p)
	}
}

// parseLivePacket parses one CSV payload:
//
//	pose,x,y,yaw
//	marker,id,x,y,z
//	nomarker
func parseLivePacket(b []byte) (livePacket, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return livePacket{}, errors.New("empty payload")
	}
	parts := strings.Split(s, ",")
	kind := strings.ToLower(strings.TrimSpace(parts[0]))

	switch kind {
	case "pose":
		if len(parts) != 4 {
			return livePacket{}, fmt.Errorf("pose: expected 4 fields, got %d", len(parts))
		}
		vals, err := parseFloats(parts[1:])
		if err != nil {
			return livePacket{}, fmt.Errorf("pose: %w", err)
		}
		return livePacket{Kind: packetPose, Pose: Pose{Position: Point3D{X: vals[0], Y: vals[1]}, Yaw: vals[2]}}, nil
	case "marker":
		if len(parts) != 5 {
			return livePacket{}, fmt.Errorf("marker: expected 5 fields, got %d", len(parts))
		}
		id, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return livePacket{}, fmt.Errorf("marker id: %w", err)
		}
		vals, err := parseFloats(parts[2:])
		if err != nil {
			return livePacket{}, fmt.Errorf("marker: %w", err)
		}
		return livePacket{Kind: packetMarker, Marker: MarkerObservation{
			Detected: true,
			ID:       MarkerID(id),
			Position: Point3D{X: vals[0], Y: vals[1], Z: vals[2]},
		}}, nil
	case "nomarker":
		return livePacket{Kind: packetNoMarker, Marker: MarkerObservation{ID: NoMarker}}, nil
	default:
		return livePacket{}, fmt.Errorf("unknown packet kind %q", kind)
	}
}

// parseFloats parses CSV fields as float64.
func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

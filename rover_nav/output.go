package rover_nav

import (
	"fmt"
	"net"
)

// OutputSender sends drive commands over UDP as CSV.
type OutputSender struct {
	conn *net.UDPConn
}

// NewOutputSender creates a UDP sender for the given address. An empty
// address yields a sender that drops everything.
func NewOutputSender(addr string) (*OutputSender, error) {
	if addr == "" {
		return &OutputSender{}, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve output addr %q: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("dial output addr %q: %w", addr, err)
	}
	return &OutputSender{conn: conn}, nil
}

// Close releases the UDP socket.
func (s *OutputSender) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Send writes "linear,angular,STATE" as a CSV payload.
func (s *OutputSender) Send(cmd DriveCommand, state State) error {
	if s == nil || s.conn == nil {
		return nil
	}
	_, err := s.conn.Write(formatCommand(cmd, state))
	return err
}

func formatCommand(cmd DriveCommand, state State) []byte {
	return []byte(fmt.Sprintf("%.4f,%.4f,%s", cmd.Linear, cmd.Angular, state.String()))
}

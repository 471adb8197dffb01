// Package svdrp implements a timer backend speaking the SVDRP protocol
// of the VDR video disk recorder.
package svdrp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tvheadless/pvrcore/internal/domain"
	"github.com/tvheadless/pvrcore/internal/ports"
)

// Timer flags as reported in the first LSTT field.
const (
	flagActive    = 1
	flagRecording = 8
)

// Defaults VDR applies to timers created without explicit values.
const (
	defaultPriority = 50
	defaultLifetime = 99
)

// Backend implements ports.TimerBackend over an SVDRP connection
type Backend struct {
	clientID int
	host     string
	port     int
	timeout  time.Duration
	resolver ports.ChannelResolver

	mu   sync.Mutex
	conn net.Conn
	rw   *bufio.ReadWriter
}

var _ ports.TimerBackend = (*Backend)(nil)

// NewBackend creates an SVDRP timer backend. The resolver maps the channel
// numbers VDR reports to full channel records; timers on channels the
// resolver does not know keep a bare numeric channel.
func NewBackend(clientID int, host string, port int, timeout time.Duration, resolver ports.ChannelResolver) *Backend {
	return &Backend{
		clientID: clientID,
		host:     host,
		port:     port,
		timeout:  timeout,
		resolver: resolver,
	}
}

// ID returns the client id this backend was registered under
func (b *Backend) ID() int {
	return b.clientID
}

// Connect establishes a connection to VDR
func (b *Backend) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return nil // already connected
	}

	dialer := &net.Dialer{Timeout: b.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", b.host, b.port))
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	b.conn = conn
	b.rw = bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn))

	// Read welcome message
	if _, err := b.readResponse(); err != nil {
		b.conn.Close()
		b.conn = nil
		return fmt.Errorf("failed to read welcome: %w", err)
	}

	return nil
}

// Close closes the connection
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil
	}

	// Send QUIT command (ignore errors if connection is broken)
	b.rw.WriteString("QUIT\r\n")
	b.rw.Flush()

	err := b.conn.Close()
	b.conn = nil
	b.rw = nil
	return err
}

// Timers retrieves the full timer snapshot via LSTT
func (b *Backend) Timers(ctx context.Context) ([]domain.Timer, error) {
	if err := b.ensureConnected(ctx); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.sendCommand("LSTT"); err != nil {
		return nil, err
	}

	lines, err := b.readResponse()
	if err != nil {
		// An empty timer list is an error response in SVDRP, not data.
		if isNoTimers(err) {
			return []domain.Timer{}, nil
		}
		return nil, err
	}

	timers := make([]domain.Timer, 0, len(lines))
	for _, line := range lines {
		timer, err := b.parseTimer(line)
		if err != nil {
			continue // skip malformed timers
		}
		timers = append(timers, timer)
	}

	return timers, nil
}

// AddTimer creates a timer via NEWT. On success the index VDR assigned is
// written back into the entry when it is still pending.
func (b *Backend) AddTimer(ctx context.Context, timer *domain.Timer) error {
	if err := b.ensureConnected(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.sendCommand(fmt.Sprintf("NEWT %s", formatTimer(timer))); err != nil {
		return err
	}

	lines, err := b.readResponse()
	if err != nil {
		return err
	}

	if timer.ClientIndex == domain.PendingClientIndex && len(lines) > 0 {
		if index, ok := parseAssignedIndex(lines[0]); ok {
			timer.ClientIndex = index
		}
	}

	return nil
}

// DeleteTimer removes a timer via DELT. With force the timer is deactivated
// first so VDR accepts the delete even while it is recording.
func (b *Backend) DeleteTimer(ctx context.Context, clientIndex int, force bool) error {
	if err := b.ensureConnected(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if force {
		if err := b.sendCommand(fmt.Sprintf("MODT %d off", clientIndex)); err != nil {
			return err
		}
		if _, err := b.readResponse(); err != nil {
			return err
		}
	}

	if err := b.sendCommand(fmt.Sprintf("DELT %d", clientIndex)); err != nil {
		return err
	}

	_, err := b.readResponse()
	return err
}

// ensureConnected ensures the connection is established
func (b *Backend) ensureConnected(ctx context.Context) error {
	b.mu.Lock()
	connected := b.conn != nil
	b.mu.Unlock()

	if !connected {
		return b.Connect(ctx)
	}

	return nil
}

// sendCommand sends a command to VDR
func (b *Backend) sendCommand(cmd string) error {
	if b.conn == nil {
		return domain.ErrConnection
	}

	if _, err := b.rw.WriteString(cmd + "\r\n"); err != nil {
		// Connection broken, close it
		b.closeConnection()
		return err
	}

	if err := b.rw.Flush(); err != nil {
		// Connection broken, close it
		b.closeConnection()
		return err
	}

	return nil
}

// readResponse reads a response from VDR
func (b *Backend) readResponse() ([]string, error) {
	if b.conn == nil {
		return nil, domain.ErrConnection
	}

	var lines []string
	for {
		line, err := b.rw.ReadString('\n')
		if err != nil {
			// Connection broken, close it
			b.closeConnection()
			return nil, err
		}

		line = strings.TrimSpace(line)
		if len(line) < 4 {
			continue
		}

		// Parse response code
		code, err := strconv.Atoi(line[0:3])
		if err != nil {
			continue
		}

		// Check for error codes
		if code >= 400 {
			return nil, fmt.Errorf("%w: SVDRP error %d: %s", domain.ErrBackendRequest, code, line[4:])
		}

		// Check if this is a continuation line (-)
		if len(line) > 3 && line[3] == '-' {
			if len(line) > 4 {
				lines = append(lines, line[4:])
			}
			continue
		}

		// This is the last line (space after code)
		if len(line) > 4 {
			lines = append(lines, line[4:])
		}
		break
	}

	return lines, nil
}

// closeConnection closes the connection without locking (must be called with lock held)
func (b *Backend) closeConnection() {
	if b.conn != nil {
		b.conn.Close()
		b.conn = nil
		b.rw = nil
	}
}

// isNoTimers reports whether err is the "550 No timers defined" response
func isNoTimers(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "error 550") && strings.Contains(msg, "timer")
}

// parseTimer parses one LSTT line.
//
// Format: <index> <flags>:<channel>:<day>:<start>:<stop>:<priority>:<lifetime>:<title>:<aux>
func (b *Backend) parseTimer(line string) (domain.Timer, error) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) != 2 {
		return domain.Timer{}, fmt.Errorf("invalid timer format")
	}

	index, err := strconv.Atoi(parts[0])
	if err != nil {
		return domain.Timer{}, fmt.Errorf("invalid timer index %q", parts[0])
	}

	// Title and aux may contain escaped separators, so cap the split.
	fields := strings.SplitN(parts[1], ":", 9)
	if len(fields) < 8 {
		return domain.Timer{}, fmt.Errorf("insufficient timer fields")
	}

	flags, _ := strconv.Atoi(fields[0])
	channelNumber, _ := strconv.Atoi(fields[1])

	day, repeating := parseDay(fields[2])
	start, err := combineClock(day, fields[3])
	if err != nil {
		return domain.Timer{}, err
	}
	stop, err := combineClock(day, fields[4])
	if err != nil {
		return domain.Timer{}, err
	}
	if !stop.After(start) {
		stop = stop.AddDate(0, 0, 1)
	}

	timer := domain.Timer{
		ClientID:    b.clientID,
		ClientIndex: index,
		Title:       unescape(fields[7]),
		Channel:     b.channelFor(channelNumber),
		Start:       start,
		Stop:        stop,
		State:       stateFromFlags(flags),
		Repeating:   repeating,
	}
	if len(fields) == 9 {
		timer.Summary = unescape(fields[8])
	}

	return timer, nil
}

// channelFor resolves a VDR channel number, falling back to a bare record
func (b *Backend) channelFor(number int) domain.Channel {
	if b.resolver != nil {
		if channel, ok := b.resolver.ChannelByClient(b.clientID, number); ok {
			return channel
		}
	}
	return domain.Channel{ClientID: b.clientID, UID: number, Number: number}
}

func stateFromFlags(flags int) domain.TimerState {
	switch {
	case flags&flagRecording != 0:
		return domain.TimerStateRecording
	case flags&flagActive != 0:
		return domain.TimerStateScheduled
	default:
		return domain.TimerStateCancelled
	}
}

// parseDay parses the day field: either a date or a weekday repeat mask
// such as "MTWTFSS" or "MTWTF--". VDR reports wall-clock local times, so
// both forms anchor in the local zone.
func parseDay(field string) (day time.Time, repeating bool) {
	if t, err := time.ParseInLocation("2006-01-02", field, time.Local); err == nil {
		return t, false
	}
	// Repeat mask; anchor the clock times to today.
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local), true
}

// combineClock applies an "hhmm" clock field to the day's date
func combineClock(day time.Time, field string) (time.Time, error) {
	clock, err := strconv.Atoi(field)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock field %q", field)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock/100, clock%100, 0, 0, day.Location()), nil
}

// formatTimer formats a timer for NEWT
func formatTimer(timer *domain.Timer) string {
	day := timer.Start.Format("2006-01-02")
	if timer.Repeating {
		day = "MTWTFSS"
	}

	return fmt.Sprintf("%d:%d:%s:%s:%s:%d:%d:%s:%s",
		flagActive,
		timer.Channel.Number,
		day,
		timer.Start.Format("1504"),
		timer.Stop.Format("1504"),
		defaultPriority,
		defaultLifetime,
		escape(timer.Title),
		escape(timer.Summary),
	)
}

// parseAssignedIndex extracts the timer index from a NEWT confirmation,
// which echoes "<index> <settings>".
func parseAssignedIndex(line string) (int, bool) {
	first, _, _ := strings.Cut(line, " ")
	index, err := strconv.Atoi(first)
	if err != nil {
		return 0, false
	}
	return index, true
}

// VDR stores ':' inside text fields as '|'.
func escape(s string) string {
	return strings.ReplaceAll(s, ":", "|")
}

func unescape(s string) string {
	return strings.ReplaceAll(s, "|", ":")
}

// Package coordinator implements the §4.J/§6 coordinator/worker wire
// protocol: fixed 32-byte, space-padded ASCII frames exchanged synchronously
// over an io.Reader/io.Writer pair, so the same code runs over stdin/stdout
// in production and over an io.Pipe in tests.
//
// Grounded on the teacher's cmd/pk subprocess-driven tools, which likewise
// speak a small line-oriented protocol over stdin/stdout to a parent
// process; here the frame is fixed-width instead of newline-delimited so a
// reader never has to buffer an unbounded line.
package coordinator

import (
	"fmt"
	"io"
	"strings"

	"tiersolve.dev/pkg/record"
)

// FrameSize is the fixed width of every protocol message, in bytes.
const FrameSize = 32

const (
	msgCheck     = "check"
	msgSleep     = "sleep"
	msgTerminate = "terminate"
	failPrefix   = "!"
)

// encodeFrame space-pads s to FrameSize bytes. s (including any "!" prefix)
// must fit.
func encodeFrame(s string) ([]byte, error) {
	if len(s) > FrameSize {
		return nil, fmt.Errorf("coordinator: message %q exceeds %d-byte frame", s, FrameSize)
	}
	buf := make([]byte, FrameSize)
	copy(buf, s)
	for i := len(s); i < FrameSize; i++ {
		buf[i] = ' '
	}
	return buf, nil
}

func writeFrame(w io.Writer, s string) error {
	buf, err := encodeFrame(s)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

func readFrame(r io.Reader) (string, error) {
	buf := make([]byte, FrameSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), " "), nil
}

// Directive is the coordinator's reply to a worker's status frame.
type Directive struct {
	// Tier is the name of the tier to solve next; empty when Sleep or
	// Terminate is set.
	Tier      string
	Sleep     bool
	Terminate bool
}

// Worker is the worker's half of the protocol: send a status frame, read
// back a directive.
type Worker struct {
	r io.Reader
	w io.Writer
}

// NewWorker wraps r/w (e.g. os.Stdin/os.Stdout, or an io.Pipe end in tests)
// as the worker side of the protocol.
func NewWorker(r io.Reader, w io.Writer) *Worker {
	return &Worker{r: r, w: w}
}

// Check sends a "check" poll frame and returns the coordinator's directive.
func (wk *Worker) Check() (Directive, error) {
	if err := writeFrame(wk.w, msgCheck); err != nil {
		return Directive{}, err
	}
	return wk.readDirective()
}

// ReportDone sends the solved tier's name (or, on failure, the name
// prefixed with "!") and returns the coordinator's next directive.
func (wk *Worker) ReportDone(tierName string, solveErr error) (Directive, error) {
	msg := tierName
	if solveErr != nil {
		msg = failPrefix + tierName
	}
	if err := writeFrame(wk.w, msg); err != nil {
		return Directive{}, err
	}
	return wk.readDirective()
}

func (wk *Worker) readDirective() (Directive, error) {
	msg, err := readFrame(wk.r)
	if err != nil {
		return Directive{}, record.New(record.IOError, "coordinator: read directive", err)
	}
	switch msg {
	case msgSleep:
		return Directive{Sleep: true}, nil
	case msgTerminate:
		return Directive{Terminate: true}, nil
	default:
		return Directive{Tier: msg}, nil
	}
}

// Coordinator is a minimal in-process stub implementing the coordinator
// side of the protocol, for driving a Worker in tests without a real
// multi-node scheduler (which is out of scope per §1/§4.J).
type Coordinator struct {
	r io.Reader
	w io.Writer

	pending []string
	i       int
}

// NewCoordinator wraps r/w as the coordinator side of the protocol, handing
// out tiers from the queue in order and replying "terminate" once exhausted.
func NewCoordinator(r io.Reader, w io.Writer, tierQueue []string) *Coordinator {
	return &Coordinator{r: r, w: w, pending: tierQueue}
}

// ServeOne reads one status frame from the worker and writes back the next
// directive, reporting whether the worker signaled a failed tier.
func (c *Coordinator) ServeOne() (failedTier string, err error) {
	msg, err := readFrame(c.r)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(msg, failPrefix) {
		failedTier = strings.TrimPrefix(msg, failPrefix)
	}
	var reply string
	if c.i < len(c.pending) {
		reply = c.pending[c.i]
		c.i++
	} else {
		reply = msgTerminate
	}
	if err := writeFrame(c.w, reply); err != nil {
		return failedTier, err
	}
	return failedTier, nil
}

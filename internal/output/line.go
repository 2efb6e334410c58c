package output

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/accel_paddle/internal/calibration"
	"github.com/relabs-tech/accel_paddle/internal/record"
)

// LineSink writes the text stream: status lines, the header and one CSV
// line per record, each newline-terminated and flushed immediately.
type LineSink struct {
	w      *bufio.Writer
	closer io.Closer
}

// NewLineSink writes to w. closer, if non-nil, is closed by Close.
func NewLineSink(w io.Writer, closer io.Closer) *LineSink {
	return &LineSink{w: bufio.NewWriter(w), closer: closer}
}

// NewStdoutSink writes to standard output and never closes it.
func NewStdoutSink() *LineSink {
	return NewLineSink(os.Stdout, nil)
}

// OpenSerial opens portName 8N1 at baud and writes the stream to it.
func OpenSerial(portName string, baud uint) (*LineSink, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", portName, err)
	}
	log.Printf("output: serial port opened on %s at %d baud", portName, baud)
	return NewLineSink(port, port), nil
}

func (s *LineSink) Status(msg string) error {
	return s.line(msg)
}

// Calibrated is not part of the text stream.
func (s *LineSink) Calibrated(calibration.Result) error {
	return nil
}

func (s *LineSink) Header(fields []string) error {
	return s.line(strings.Join(fields, ","))
}

func (s *LineSink) Write(r record.Record) error {
	return s.line(r.CSV())
}

func (s *LineSink) Close() error {
	err := s.w.Flush()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (s *LineSink) line(text string) error {
	if _, err := s.w.WriteString(text); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

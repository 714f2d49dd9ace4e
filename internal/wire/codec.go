// Package wire implements the ASCII datagram grammar shared by the
// coordinator and the nodes.
//
// Trigger forms:
//
//	shoot
//	shoot:<unixSeconds>
//	shoot:<unixSeconds>:<prefix>
//
// Ack forms:
//
//	ok:<artifact>
//	fail:<errorText>
//
// Everything after the second colon of a trigger is the prefix verbatim,
// so prefixes may contain colons. This leniency is deliberate and kept
// for compatibility with existing senders.
package wire

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/djlord-it/camsync/internal/domain"
)

// ErrMalformed is the sentinel wrapped by every DecodeError.
var ErrMalformed = errors.New("malformed message")

// DecodeError describes a payload that does not match the grammar.
type DecodeError struct {
	Payload string
	Reason  string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %s", e.Payload, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrMalformed
}

// timestampPrecision is the number of fractional digits encoded for shoot
// times. Six digits keeps microsecond resolution, well below the accuracy
// of the wait itself.
const timestampPrecision = 6

// EncodeTrigger renders a trigger message. A prefix without a shoot time
// cannot be expressed by the grammar and is dropped.
func EncodeTrigger(msg domain.TriggerMessage) []byte {
	if msg.ShootAt == nil {
		return []byte("shoot")
	}
	ts := strconv.FormatFloat(unixSeconds(*msg.ShootAt), 'f', timestampPrecision, 64)
	if msg.Prefix == "" {
		return []byte("shoot:" + ts)
	}
	return []byte("shoot:" + ts + ":" + msg.Prefix)
}

// DecodeTrigger parses a trigger datagram.
func DecodeTrigger(data []byte) (domain.TriggerMessage, error) {
	text := strings.TrimSpace(string(data))
	parts := strings.SplitN(text, ":", 3)

	if parts[0] != "shoot" {
		return domain.TriggerMessage{}, &DecodeError{Payload: text, Reason: "unknown leading token"}
	}
	if len(parts) == 1 {
		return domain.TriggerMessage{}, nil
	}

	sec, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return domain.TriggerMessage{}, &DecodeError{Payload: text, Reason: "timestamp is not a finite number"}
	}
	shootAt := timeFromUnixSeconds(sec)

	msg := domain.TriggerMessage{ShootAt: &shootAt}
	if len(parts) == 3 {
		// An empty third segment means no prefix, same as the two-part form.
		msg.Prefix = parts[2]
	}
	return msg, nil
}

// EncodeAck renders an ack message.
func EncodeAck(msg domain.AckMessage) []byte {
	return []byte(string(msg.Status) + ":" + msg.Detail)
}

// DecodeAck parses an ack datagram. Everything after the first colon is
// the detail verbatim.
func DecodeAck(data []byte) (domain.AckMessage, error) {
	text := strings.TrimSpace(string(data))
	parts := strings.SplitN(text, ":", 2)
	if len(parts) != 2 {
		return domain.AckMessage{}, &DecodeError{Payload: text, Reason: "missing detail separator"}
	}

	switch domain.AckStatus(parts[0]) {
	case domain.AckStatusOK, domain.AckStatusFail:
		return domain.AckMessage{Status: domain.AckStatus(parts[0]), Detail: parts[1]}, nil
	default:
		return domain.AckMessage{}, &DecodeError{Payload: text, Reason: "unknown leading token"}
	}
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func timeFromUnixSeconds(sec float64) time.Time {
	return time.Unix(0, int64(sec*float64(time.Second))).UTC()
}

// Package fix decodes raw tag-delimited execution messages into normalized
// market events. Messages are FIX-style: fields are "tag=value" pairs
// separated by the SOH control byte, terminated by a mod-256 checksum field
// (tag 10). Messages that fail checksum or field validation are rejected with
// a typed ParseError and never applied.
package fix

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/vigil/internal/domain"
)

// SOH is the standard FIX field separator (start-of-header control byte)
const SOH = "\x01"

// Tags of interest within an execution report
const (
	TagBeginString = "8"
	TagBodyLength  = "9"
	TagChecksum    = "10"
	TagCumQty      = "14"
	TagMsgType     = "35"
	TagOrderQty    = "38"
	TagPrice       = "44"
	TagSide        = "54"
	TagSymbol      = "55"
	TagExecType    = "150"
)

// ErrorKind classifies parse failures
type ErrorKind string

const (
	ErrKindEmpty           ErrorKind = "empty_message"
	ErrKindMalformedField  ErrorKind = "malformed_field"
	ErrKindMissingTag      ErrorKind = "missing_tag"
	ErrKindInvalidNumber   ErrorKind = "invalid_number"
	ErrKindInvalidChecksum ErrorKind = "invalid_checksum"
)

// ParseError is a typed error describing why a wire message was rejected.
// The raw message must be discarded by the caller - no state mutation occurs
// for rejected messages.
type ParseError struct {
	Kind   ErrorKind
	Tag    string // offending tag, when applicable
	Detail string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Tag != "" {
		return fmt.Sprintf("fix parse error (%s): tag %s: %s", e.Kind, e.Tag, e.Detail)
	}
	return fmt.Sprintf("fix parse error (%s): %s", e.Kind, e.Detail)
}

// field is one tag=value pair, order preserved
type field struct {
	tag   string
	value string
}

// Parser decodes raw execution messages. The separator is configurable
// because test fixtures often substitute "|" for the unprintable SOH byte.
type Parser struct {
	separator string
}

// NewParser creates a parser using the standard SOH separator
func NewParser() *Parser {
	return &Parser{separator: SOH}
}

// NewParserWithSeparator creates a parser with a custom field separator
func NewParserWithSeparator(sep string) *Parser {
	return &Parser{separator: sep}
}

// Parse decodes a single framed message into a normalized execution event.
// Returns a *ParseError when the message is malformed or fails checksum
// validation; the message must then be discarded and logged by the caller.
func (p *Parser) Parse(raw string) (*domain.ExecutionEvent, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{Kind: ErrKindEmpty, Detail: "empty buffer"}
	}

	fields, err := p.splitFields(raw)
	if err != nil {
		return nil, err
	}

	// Checksum must be recomputed over all bytes preceding the checksum
	// field and compared against the transmitted value before any field is
	// trusted.
	if err := p.verifyChecksum(raw, fields); err != nil {
		return nil, err
	}

	byTag := make(map[string]string, len(fields))
	for _, f := range fields {
		// First occurrence wins; repeated tags are tolerated but ignored
		if _, exists := byTag[f.tag]; !exists {
			byTag[f.tag] = f.value
		}
	}

	msgType, ok := byTag[TagMsgType]
	if !ok {
		return nil, &ParseError{Kind: ErrKindMissingTag, Tag: TagMsgType, Detail: "message type missing"}
	}

	symbol, ok := byTag[TagSymbol]
	if !ok || symbol == "" {
		return nil, &ParseError{Kind: ErrKindMissingTag, Tag: TagSymbol, Detail: "symbol missing"}
	}

	// Quantity comes from the order quantity tag, falling back to the
	// execution-specific cumulative quantity when absent.
	qtyStr, ok := byTag[TagOrderQty]
	if !ok {
		qtyStr, ok = byTag[TagCumQty]
	}
	if !ok {
		return nil, &ParseError{Kind: ErrKindMissingTag, Tag: TagOrderQty, Detail: "quantity missing"}
	}
	quantity, err2 := strconv.ParseFloat(qtyStr, 64)
	if err2 != nil {
		return nil, &ParseError{Kind: ErrKindInvalidNumber, Tag: TagOrderQty, Detail: fmt.Sprintf("non-numeric quantity %q", qtyStr)}
	}

	priceStr, ok := byTag[TagPrice]
	if !ok {
		return nil, &ParseError{Kind: ErrKindMissingTag, Tag: TagPrice, Detail: "price missing"}
	}
	price, err2 := strconv.ParseFloat(priceStr, 64)
	if err2 != nil {
		return nil, &ParseError{Kind: ErrKindInvalidNumber, Tag: TagPrice, Detail: fmt.Sprintf("non-numeric price %q", priceStr)}
	}

	side := domain.SideBuy
	if byTag[TagSide] == "2" {
		side = domain.SideSell
	}

	return &domain.ExecutionEvent{
		MsgType:       msgType,
		Symbol:        symbol,
		Side:          side,
		Quantity:      quantity,
		Price:         price,
		ChecksumValid: true,
	}, nil
}

// ParseAll decodes a buffer containing one or more framed messages.
// Messages are framed by the begin-string tag (8=). Each message is parsed
// independently; a rejected message does not abort the remainder of the
// buffer. Results and errors are returned positionally.
func (p *Parser) ParseAll(buffer string) ([]*domain.ExecutionEvent, []error) {
	var events []*domain.ExecutionEvent
	var errs []error

	for _, msg := range p.splitMessages(buffer) {
		event, err := p.Parse(msg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, event)
	}

	return events, errs
}

// splitMessages splits a buffer into individual framed messages on the
// begin-string boundary.
func (p *Parser) splitMessages(buffer string) []string {
	marker := TagBeginString + "="
	var messages []string

	start := -1
	rest := buffer
	offset := 0
	for {
		idx := strings.Index(rest, marker)
		if idx < 0 {
			break
		}
		abs := offset + idx
		// A begin-string only frames a message at the start of the buffer
		// or immediately after a separator.
		atBoundary := abs == 0 || strings.HasSuffix(buffer[:abs], p.separator)
		if atBoundary {
			if start >= 0 {
				messages = append(messages, buffer[start:abs])
			}
			start = abs
		}
		offset = abs + len(marker)
		rest = buffer[offset:]
	}
	if start >= 0 {
		messages = append(messages, buffer[start:])
	}
	if len(messages) == 0 && strings.TrimSpace(buffer) != "" {
		// No framing marker - treat the whole buffer as one message so the
		// caller gets a typed error rather than silence.
		messages = append(messages, buffer)
	}
	return messages
}

// splitFields splits a message on the field separator into ordered
// tag/value pairs.
func (p *Parser) splitFields(raw string) ([]field, error) {
	parts := strings.Split(raw, p.separator)
	fields := make([]field, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue // trailing separator
		}
		eq := strings.Index(part, "=")
		if eq <= 0 {
			return nil, &ParseError{Kind: ErrKindMalformedField, Detail: fmt.Sprintf("field %q is not tag=value", part)}
		}
		fields = append(fields, field{tag: part[:eq], value: part[eq+1:]})
	}

	if len(fields) == 0 {
		return nil, &ParseError{Kind: ErrKindEmpty, Detail: "no fields"}
	}
	return fields, nil
}

// verifyChecksum recomputes the mod-256 checksum over every byte preceding
// the checksum field and compares it to the transmitted 3-digit value.
func (p *Parser) verifyChecksum(raw string, fields []field) error {
	checksumField := TagChecksum + "="
	idx := strings.LastIndex(raw, p.separator+checksumField)
	if idx < 0 {
		// Checksum may open the message only in degenerate fixtures; a
		// missing checksum field is a missing-tag rejection.
		if !strings.HasPrefix(raw, checksumField) {
			return &ParseError{Kind: ErrKindMissingTag, Tag: TagChecksum, Detail: "checksum field missing"}
		}
		idx = -len(p.separator)
	}

	// All bytes up to and including the separator before "10=" are covered
	body := raw[:idx+len(p.separator)]
	var sum int
	for i := 0; i < len(body); i++ {
		sum += int(body[i])
	}
	expected := fmt.Sprintf("%03d", sum%256)

	var transmitted string
	for _, f := range fields {
		if f.tag == TagChecksum {
			transmitted = f.value
			break
		}
	}
	if transmitted == "" {
		return &ParseError{Kind: ErrKindMissingTag, Tag: TagChecksum, Detail: "checksum value empty"}
	}

	if transmitted != expected {
		return &ParseError{
			Kind:   ErrKindInvalidChecksum,
			Tag:    TagChecksum,
			Detail: fmt.Sprintf("transmitted %s, computed %s", transmitted, expected),
		}
	}
	return nil
}

// Checksum computes the 3-digit mod-256 checksum for a message body.
// Exposed for providers and tests that construct outbound frames.
func Checksum(body string) string {
	var sum int
	for i := 0; i < len(body); i++ {
		sum += int(body[i])
	}
	return fmt.Sprintf("%03d", sum%256)
}

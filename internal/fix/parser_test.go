package fix

import (
	"strings"
	"testing"

	"github.com/aristath/vigil/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMessage assembles a framed execution report with a valid checksum
func buildMessage(fields []string) string {
	body := strings.Join(fields, SOH) + SOH
	return body + "10=" + Checksum(body) + SOH
}

func validExecutionFields() []string {
	return []string{
		"8=FIX.4.4",
		"9=120",
		"35=8",
		"55=ACME",
		"54=1",
		"38=50000",
		"44=101.25",
		"150=F",
		"14=50000",
	}
}

func TestParse_ValidExecutionReport(t *testing.T) {
	parser := NewParser()

	event, err := parser.Parse(buildMessage(validExecutionFields()))
	require.NoError(t, err)

	assert.Equal(t, "8", event.MsgType)
	assert.Equal(t, "ACME", event.Symbol)
	assert.Equal(t, domain.SideBuy, event.Side)
	assert.Equal(t, 50000.0, event.Quantity)
	assert.Equal(t, 101.25, event.Price)
	assert.True(t, event.ChecksumValid)
}

func TestParse_SellSide(t *testing.T) {
	parser := NewParser()
	fields := validExecutionFields()
	fields[4] = "54=2"

	event, err := parser.Parse(buildMessage(fields))
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, event.Side)
}

func TestParse_QuantityFallsBackToCumQty(t *testing.T) {
	parser := NewParser()
	fields := []string{
		"8=FIX.4.4", "9=80", "35=8", "55=ACME", "54=1", "44=99.5", "150=F", "14=1234",
	}

	event, err := parser.Parse(buildMessage(fields))
	require.NoError(t, err)
	assert.Equal(t, 1234.0, event.Quantity)
}

// TestParse_ChecksumCorruption verifies that mutating any byte before the
// checksum field, holding the checksum constant, rejects the message.
func TestParse_ChecksumCorruption(t *testing.T) {
	parser := NewParser()
	msg := buildMessage(validExecutionFields())

	checksumIdx := strings.LastIndex(msg, SOH+"10=")
	require.Greater(t, checksumIdx, 0)

	// Corrupt the symbol value (flip one byte) while keeping the original
	// transmitted checksum.
	corrupted := strings.Replace(msg[:checksumIdx], "ACME", "ACMF", 1) + msg[checksumIdx:]
	require.NotEqual(t, msg, corrupted)

	event, err := parser.Parse(corrupted)
	assert.Nil(t, event)
	require.Error(t, err)

	parseErr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ErrKindInvalidChecksum, parseErr.Kind)
}

func TestParse_MalformedInput(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name string
		raw  string
		kind ErrorKind
	}{
		{
			name: "empty buffer",
			raw:  "",
			kind: ErrKindEmpty,
		},
		{
			name: "field without equals",
			raw:  "8=FIX.4.4" + SOH + "garbage" + SOH,
			kind: ErrKindMalformedField,
		},
		{
			name: "missing checksum",
			raw:  "8=FIX.4.4" + SOH + "35=8" + SOH + "55=ACME" + SOH,
			kind: ErrKindMissingTag,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event, err := parser.Parse(tc.raw)
			assert.Nil(t, event)
			require.Error(t, err)

			parseErr, ok := err.(*ParseError)
			require.True(t, ok)
			assert.Equal(t, tc.kind, parseErr.Kind)
		})
	}
}

func TestParse_MissingRequiredTags(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name string
		drop string // prefix of the field to remove
		tag  string // tag reported in the error
	}{
		{name: "missing symbol", drop: "55=", tag: TagSymbol},
		{name: "missing message type", drop: "35=", tag: TagMsgType},
		{name: "missing price", drop: "44=", tag: TagPrice},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var fields []string
			for _, f := range validExecutionFields() {
				if strings.HasPrefix(f, tc.drop) {
					continue
				}
				fields = append(fields, f)
			}

			event, err := parser.Parse(buildMessage(fields))
			assert.Nil(t, event)
			require.Error(t, err)

			parseErr, ok := err.(*ParseError)
			require.True(t, ok)
			assert.Equal(t, ErrKindMissingTag, parseErr.Kind)
			assert.Equal(t, tc.tag, parseErr.Tag)
		})
	}
}

func TestParse_NonNumericQuantityAndPrice(t *testing.T) {
	parser := NewParser()

	fields := validExecutionFields()
	fields[5] = "38=lots"
	event, err := parser.Parse(buildMessage(fields))
	assert.Nil(t, event)
	parseErr, ok := err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ErrKindInvalidNumber, parseErr.Kind)

	fields = validExecutionFields()
	fields[6] = "44=expensive"
	event, err = parser.Parse(buildMessage(fields))
	assert.Nil(t, event)
	parseErr, ok = err.(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ErrKindInvalidNumber, parseErr.Kind)
}

func TestParseAll_MultipleMessagesWithOneCorrupt(t *testing.T) {
	parser := NewParser()

	good1 := buildMessage(validExecutionFields())

	fields := validExecutionFields()
	fields[3] = "55=GLOBX"
	good2 := buildMessage(fields)

	// Corrupt the middle message's price while keeping its checksum
	bad := strings.Replace(good2, "44=101.25", "44=999.99", 1)

	events, errs := parser.ParseAll(good1 + bad + good1)
	require.Len(t, events, 2)
	require.Len(t, errs, 1)

	assert.Equal(t, "ACME", events[0].Symbol)
	assert.Equal(t, "ACME", events[1].Symbol)

	parseErr, ok := errs[0].(*ParseError)
	require.True(t, ok)
	assert.Equal(t, ErrKindInvalidChecksum, parseErr.Kind)
}

func TestParse_CustomSeparator(t *testing.T) {
	parser := NewParserWithSeparator("|")

	body := "8=FIX.4.4|35=8|55=ACME|54=1|38=100|44=10.5|"
	msg := body + "10=" + Checksum(body) + "|"

	event, err := parser.Parse(msg)
	require.NoError(t, err)
	assert.Equal(t, "ACME", event.Symbol)
}

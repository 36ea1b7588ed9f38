package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	id   string
	tags []string
}

// collect runs ParseStream over input and gathers records.
func collect(t *testing.T, p *Parser, input string) (Result, []record) {
	t.Helper()

	var records []record
	res, err := p.ParseStream(strings.NewReader(input), func(id string, tags []string) {
		copied := make([]string, len(tags))
		copy(copied, tags)
		records = append(records, record{id: id, tags: copied})
	})
	require.NoError(t, err)
	return res, records
}

func TestParseStream(t *testing.T) {
	input := "d1|t1|t2\nd2|t2|t3\nd3|t1\n"

	res, records := collect(t, NewParser(), input)

	assert.Equal(t, int64(len(input)), res.BytesConsumed)
	assert.Equal(t, 3, res.Records)
	assert.Equal(t, 0, res.Malformed)
	assert.Equal(t, []record{
		{"d1", []string{"t1", "t2"}},
		{"d2", []string{"t2", "t3"}},
		{"d3", []string{"t1"}},
	}, records)
}

func TestParseStreamTrimsWhitespace(t *testing.T) {
	input := "  d1 | t1 |\tt2  \r\n"

	_, records := collect(t, NewParser(), input)

	require.Len(t, records, 1)
	assert.Equal(t, record{"d1", []string{"t1", "t2"}}, records[0])
}

func TestParseStreamSkipsBlankLines(t *testing.T) {
	input := "\n   \nd1|t1\n\t\n"

	res, records := collect(t, NewParser(), input)

	assert.Equal(t, int64(len(input)), res.BytesConsumed)
	assert.Equal(t, 1, res.Records)
	assert.Equal(t, 0, res.Malformed)
	require.Len(t, records, 1)
}

func TestParseStreamMalformedLines(t *testing.T) {
	input := "|t1|t2\nd1|t1\n  |orphan\n"

	var malformed []string
	p := NewParser(WithMalformedHandler(func(line string) {
		malformed = append(malformed, line)
	}))

	res, records := collect(t, p, input)

	assert.Equal(t, 1, res.Records)
	assert.Equal(t, 2, res.Malformed)
	assert.Equal(t, []string{"|t1|t2", "|orphan"}, malformed)
	require.Len(t, records, 1)
	assert.Equal(t, "d1", records[0].id)
}

func TestParseStreamDropsEmptyTags(t *testing.T) {
	input := "d1|t1||  |t2\nd2|\nd3\n"

	_, records := collect(t, NewParser(), input)

	require.Len(t, records, 3)
	assert.Equal(t, []string{"t1", "t2"}, records[0].tags)
	assert.Empty(t, records[1].tags)
	assert.Empty(t, records[2].tags)
}

func TestParseStreamDuplicateTagsPreserved(t *testing.T) {
	_, records := collect(t, NewParser(), "d1|t1|t1|t2|t1\n")

	require.Len(t, records, 1)
	assert.Equal(t, []string{"t1", "t1", "t2", "t1"}, records[0].tags)
}

func TestParseStreamNoTrailingNewline(t *testing.T) {
	input := "d1|t1\nd2|t2"

	res, records := collect(t, NewParser(), input)

	assert.Equal(t, int64(len(input)), res.BytesConsumed)
	assert.Equal(t, 2, res.Records)
	require.Len(t, records, 2)
	assert.Equal(t, "d2", records[1].id)
}

func TestParseStreamCustomDelimiter(t *testing.T) {
	input := "d1,t1,t2\nd2,t3\n"

	res, records := collect(t, NewParser(WithDelimiter(',')), input)

	assert.Equal(t, 2, res.Records)
	assert.Equal(t, record{"d1", []string{"t1", "t2"}}, records[0])
	assert.Equal(t, record{"d2", []string{"t3"}}, records[1])
}

func TestParseStreamZeroDelimiterKeepsDefault(t *testing.T) {
	_, records := collect(t, NewParser(WithDelimiter(0)), "d1|t1\n")

	require.Len(t, records, 1)
	assert.Equal(t, []string{"t1"}, records[0].tags)
}

func TestParseStreamEmptyInput(t *testing.T) {
	res, records := collect(t, NewParser(), "")

	assert.Equal(t, int64(0), res.BytesConsumed)
	assert.Equal(t, 0, res.Records)
	assert.Empty(t, records)
}

func TestParseStreamDelimiterOnlyIDLine(t *testing.T) {
	// A line of only delimiters has an empty id and counts as malformed.
	res, _ := collect(t, NewParser(), "|||\n")

	assert.Equal(t, 0, res.Records)
	assert.Equal(t, 1, res.Malformed)
}

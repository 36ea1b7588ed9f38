// Package ingest parses the line-oriented record stream that feeds the
// index: one record per line, the document identifier first, then the
// tags, separated by a configurable single-byte delimiter.
package ingest

import (
	"bufio"
	"io"
	"strings"
)

// DefaultDelimiter separates fields within a record line.
const DefaultDelimiter = '|'

// Result reports what a parse pass consumed and produced.
type Result struct {
	// BytesConsumed counts every byte read from the stream, including
	// line terminators. Callers advance their ingestion cursor by it.
	BytesConsumed int64
	// Records is the number of well-formed records handed to the callback.
	Records int
	// Malformed is the number of non-blank lines without a document id.
	Malformed int
}

// Handler receives one well-formed record. The tags slice is only valid
// for the duration of the call.
type Handler func(id string, tags []string)

// Parser splits a record stream into document ids and tag lists.
//
// Field values are trimmed of surrounding whitespace. Blank lines are
// skipped. Lines whose id field is empty after trimming count as
// malformed. Empty tag fields are dropped.
type Parser struct {
	delimiter   byte
	onMalformed func(line string)
}

// Option configures a Parser.
type Option func(*Parser)

// WithDelimiter sets the field delimiter. The zero byte keeps the
// default.
func WithDelimiter(d byte) Option {
	return func(p *Parser) {
		if d != 0 {
			p.delimiter = d
		}
	}
}

// WithMalformedHandler sets a callback invoked with each malformed
// line, after trimming.
func WithMalformedHandler(fn func(line string)) Option {
	return func(p *Parser) {
		p.onMalformed = fn
	}
}

// NewParser creates a Parser.
func NewParser(optFns ...Option) *Parser {
	p := &Parser{delimiter: DefaultDelimiter}
	for _, fn := range optFns {
		if fn != nil {
			fn(p)
		}
	}
	return p
}

// ParseStream reads the stream to its end, invoking handle for every
// well-formed record. A final line without a terminator is processed
// like any other. Read errors end the pass; the returned Result still
// covers everything consumed before the error.
func (p *Parser) ParseStream(r io.Reader, handle Handler) (Result, error) {
	br := bufio.NewReaderSize(r, 64*1024)

	var res Result
	for {
		raw, err := br.ReadString('\n')
		if len(raw) > 0 {
			res.BytesConsumed += int64(len(raw))
			line := strings.TrimSpace(raw)
			if line != "" {
				if id, tags, ok := p.parseLine(line); ok {
					res.Records++
					handle(id, tags)
				} else {
					res.Malformed++
					if p.onMalformed != nil {
						p.onMalformed(line)
					}
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return res, nil
			}
			return res, err
		}
	}
}

// parseLine splits a trimmed, non-blank line into id and tags.
func (p *Parser) parseLine(line string) (string, []string, bool) {
	fields := strings.Split(line, string(p.delimiter))

	id := strings.TrimSpace(fields[0])
	if id == "" {
		return "", nil, false
	}

	var tags []string
	for _, field := range fields[1:] {
		if tag := strings.TrimSpace(field); tag != "" {
			tags = append(tags, tag)
		}
	}
	return id, tags, true
}

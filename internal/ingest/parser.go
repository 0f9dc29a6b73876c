package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// LineError describes a line that was skipped.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e LineError) Unwrap() error { return e.Err }

// Result is the outcome of reading one JSONL stream.
type Result struct {
	Batches map[string]*Batch // keyed by user id
	Lines   int               // non-blank lines read
	Skipped []LineError
}

// Records returns the number of accepted records across all users.
func (r *Result) Records() int {
	n := 0
	for _, b := range r.Batches {
		n += b.Len()
	}
	return n
}

// Users returns the user ids present in the result, sorted.
func (r *Result) Users() []string {
	users := make([]string, 0, len(r.Batches))
	for u := range r.Batches {
		users = append(users, u)
	}
	slices.Sort(users)
	return users
}

// ParseFile reads a JSONL file of records. Lines without a user_id are
// attributed to defaultUser.
func ParseFile(path, defaultUser string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer f.Close()
	return Parse(f, defaultUser)
}

// Parse reads JSONL records from r. Malformed or invalid lines are collected
// in Result.Skipped and do not stop the read; only I/O errors do.
func Parse(r io.Reader, defaultUser string) (*Result, error) {
	res := &Result{Batches: make(map[string]*Batch)}
	err := scan(r, func(lineNo int, line []byte) {
		res.Lines++
		if err := res.add(line, defaultUser); err != nil {
			res.Skipped = append(res.Skipped, LineError{Line: lineNo, Err: err})
		}
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Raw is a validated but unconverted read, for forwarding records as-is.
type Raw struct {
	Records map[string][]Record // keyed by user id, user_id filled in
	Lines   int
	Skipped []LineError
}

// ReadRaw reads and validates JSONL records from r without converting them.
func ReadRaw(r io.Reader, defaultUser string) (*Raw, error) {
	raw := &Raw{Records: make(map[string][]Record)}
	err := scan(r, func(lineNo int, line []byte) {
		raw.Lines++
		rec, user, err := decodeLine(line, defaultUser)
		if err == nil {
			err = (&Batch{}).Add(rec)
		}
		if err != nil {
			raw.Skipped = append(raw.Skipped, LineError{Line: lineNo, Err: err})
			return
		}
		rec.UserID = user
		raw.Records[user] = append(raw.Records[user], rec)
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// Users returns the user ids present, sorted.
func (r *Raw) Users() []string {
	users := make([]string, 0, len(r.Records))
	for u := range r.Records {
		users = append(users, u)
	}
	slices.Sort(users)
	return users
}

// ReadRawFile is ReadRaw over a file.
func ReadRawFile(path, defaultUser string) (*Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records: %w", err)
	}
	defer f.Close()
	return ReadRaw(f, defaultUser)
}

// scan calls fn for every non-blank, non-comment line with its 1-based number.
func scan(r io.Reader, fn func(lineNo int, line []byte)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // 1MB line buffer

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		fn(lineNo, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan records: %w", err)
	}
	return nil
}

// ParseLines parses records from a string.
func ParseLines(content, defaultUser string) (*Result, error) {
	return Parse(strings.NewReader(content), defaultUser)
}

func decodeLine(line []byte, defaultUser string) (Record, string, error) {
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, "", fmt.Errorf("decode: %w", err)
	}
	user := rec.UserID
	if user == "" {
		user = defaultUser
	}
	if user == "" {
		return Record{}, "", fmt.Errorf("no user_id and no default user")
	}
	return rec, user, nil
}

func (res *Result) add(line []byte, defaultUser string) error {
	rec, user, err := decodeLine(line, defaultUser)
	if err != nil {
		return err
	}

	b, ok := res.Batches[user]
	if !ok {
		b = &Batch{}
	}
	if err := b.Add(rec); err != nil {
		return err
	}
	res.Batches[user] = b
	return nil
}

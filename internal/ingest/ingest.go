// Package ingest reads phone numbers from text files into the store as
// ready records.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// phonePattern matches a plus sign followed by twelve digits.
var phonePattern = regexp.MustCompile(`\+\d{12}`)

// Store is the part of the record store ingestion needs.
type Store interface {
	AllPhones(ctx context.Context) ([]string, error)
	InsertReady(ctx context.Context, phones []string) (int64, error)
}

// Result describes one ingestion.
type Result struct {
	Added   int64    `json:"added"`
	Invalid []string `json:"invalid,omitempty"`
}

// Parse extracts phones from r, one per line, skipping phones in existing
// and repeats within r. Lines are NFKC-normalized first so full-width digits
// and plus signs match. Lines without a phone are returned in invalid
// (blank lines are ignored).
func Parse(r io.Reader, existing []string) (phones, invalid []string, err error) {
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[p] = true
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			continue
		}

		phone := phonePattern.FindString(norm.NFKC.String(line))
		switch {
		case phone == "":
			invalid = append(invalid, line)
		case !seen[phone]:
			seen[phone] = true
			phones = append(phones, phone)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("read phones: %w", err)
	}
	return phones, invalid, nil
}

// File ingests the phones listed in path.
func File(ctx context.Context, st Store, path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	return Reader(ctx, st, f)
}

// Reader ingests the phones read from r.
func Reader(ctx context.Context, st Store, r io.Reader) (Result, error) {
	existing, err := st.AllPhones(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	phones, invalid, err := Parse(r, existing)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	added, err := st.InsertReady(ctx, phones)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}
	return Result{Added: added, Invalid: invalid}, nil
}

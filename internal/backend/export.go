package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mindmorass/spiegel/internal/storage"
)

// ContentType of export files
const ContentType = "application/x-ndjson"

// ExportRecord is one line of an export file
type ExportRecord struct {
	ID        int64           `json:"id"`
	Clip      json.RawMessage `json:"clip"`
	Category  string          `json:"category"`
	Summary   *string         `json:"summary"`
	Tags      []string        `json:"tags"`
	CreatedAt time.Time       `json:"created_at"`
}

// ExportName is the file name used for an export taken at t
func ExportName(t time.Time) string {
	return exportName(t, 1)
}

func exportName(t time.Time, n int) string {
	base := "spiegel-export-" + t.UTC().Format("20060102T150405Z")
	if n > 1 {
		base += fmt.Sprintf("-%d", n)
	}
	return base + ".jsonl"
}

// EncodeRecords renders records as JSON lines, in the given order
func EncodeRecords(records []storage.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		clip, err := storage.EncodeCapture(r.Capture)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", r.ID, err)
		}
		if err := enc.Encode(ExportRecord{
			ID:        r.ID,
			Clip:      clip,
			Category:  r.Category,
			Summary:   r.Summary,
			Tags:      r.Tags,
			CreatedAt: r.CreatedAt,
		}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeRecords parses an export file
func DecodeRecords(data []byte) ([]ExportRecord, error) {
	var out []ExportRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), storage.MaxPayloadSize)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var r ExportRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}

// Export writes records to b under a timestamped name and returns the name
func Export(ctx context.Context, b Backend, records []storage.Record, now time.Time) (string, error) {
	data, err := EncodeRecords(records)
	if err != nil {
		return "", err
	}

	if err := b.Init(ctx); err != nil {
		return "", err
	}

	// never overwrite an earlier export taken within the same second
	name := ExportName(now)
	for n := 2; b.Exists(ctx, name); n++ {
		name = exportName(now, n)
	}
	if err := b.Write(ctx, name, data); err != nil {
		return "", fmt.Errorf("export to %s: %w", b.GetLocation(), err)
	}
	return name, nil
}

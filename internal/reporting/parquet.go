package reporting

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/parquet-go/parquet-go"

	"cloudboost-metrics/internal/domain"
)

// RecordRow is a record in Parquet format. Known dimensions get their own
// columns; the payload is stored as a JSON object. Timestamps keep full
// nanosecond precision.
type RecordRow struct {
	ID          string `parquet:"id,zstd"`
	Kind        string `parquet:"kind,dict,zstd"`
	TimestampNs int64  `parquet:"timestamp_ns"`
	Seq         int64  `parquet:"seq"`
	Channel     string `parquet:"channel,optional,dict,zstd"`
	Region      string `parquet:"region,optional,dict,zstd"`
	CampaignID  string `parquet:"campaign_id,optional,zstd"`
	Platform    string `parquet:"platform,optional,dict,zstd"`
	Payload     string `parquet:"payload,zstd"`
}

// RecordToRow converts a record.
func RecordToRow(r *domain.Record) (RecordRow, error) {
	payload, err := json.Marshal(r.Payload)
	if err != nil {
		return RecordRow{}, fmt.Errorf("encode payload of %s: %w", r.ID, err)
	}
	return RecordRow{
		ID:          r.ID,
		Kind:        string(r.Kind),
		TimestampNs: r.Timestamp.UnixNano(),
		Seq:         int64(r.Seq),
		Channel:     r.Dimensions[domain.DimChannel],
		Region:      r.Dimensions[domain.DimRegion],
		CampaignID:  r.Dimensions[domain.DimCampaignID],
		Platform:    r.Dimensions[domain.DimPlatform],
		Payload:     string(payload),
	}, nil
}

// RowToRecord converts a row back to a record. Seq is left for the
// appending store to assign.
func RowToRecord(row RecordRow) (*domain.Record, error) {
	var payload domain.Payload
	if err := json.Unmarshal([]byte(row.Payload), &payload); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", row.ID, err)
	}
	var dims map[string]string
	for name, v := range map[string]string{
		domain.DimChannel:    row.Channel,
		domain.DimRegion:     row.Region,
		domain.DimCampaignID: row.CampaignID,
		domain.DimPlatform:   row.Platform,
	} {
		if v == "" {
			continue
		}
		if dims == nil {
			dims = make(map[string]string, 4)
		}
		dims[name] = v
	}
	return &domain.Record{
		ID:         row.ID,
		Kind:       domain.Kind(row.Kind),
		Timestamp:  time.Unix(0, row.TimestampNs).UTC(),
		Dimensions: dims,
		Payload:    payload,
	}, nil
}

// parquetBatch is the number of rows buffered per Write call.
const parquetBatch = 1024

// WriteRecordsParquet writes records to w and returns the row count.
func WriteRecordsParquet(w io.Writer, records iter.Seq[*domain.Record]) (int64, error) {
	writer := parquet.NewGenericWriter[RecordRow](w, parquet.Compression(&parquet.Zstd))

	var (
		total int64
		rows  = make([]RecordRow, 0, parquetBatch)
	)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		n, err := writer.Write(rows)
		total += int64(n)
		rows = rows[:0]
		if err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		return nil
	}

	for r := range records {
		row, err := RecordToRow(r)
		if err != nil {
			writer.Close()
			return total, err
		}
		rows = append(rows, row)
		if len(rows) == parquetBatch {
			if err := flush(); err != nil {
				writer.Close()
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		writer.Close()
		return total, err
	}
	if err := writer.Close(); err != nil {
		return total, fmt.Errorf("close writer: %w", err)
	}
	return total, nil
}

// ReadRecordsParquet reads all rows written by WriteRecordsParquet.
func ReadRecordsParquet(r io.ReaderAt) ([]RecordRow, error) {
	reader := parquet.NewGenericReader[RecordRow](r)
	defer reader.Close()

	rows := make([]RecordRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	return rows[:n], nil
}

package settlement

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// ReportFile describes the artefacts written for one destination chain.
type ReportFile struct {
	ChainID     uint64
	Rows        int
	CSVPath     string
	ParquetPath string
}

// Reporter exports settled jobs grouped by destination chain.
type Reporter struct {
	store  *Store
	dir    string
	logger *slog.Logger
}

func NewReporter(store *Store, dir string, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{store: store, dir: dir, logger: logger}
}

// Generate writes CSV and Parquet files for jobs settled in [from, to).
// Files land in a directory named after the end of the window.
func (r *Reporter) Generate(ctx context.Context, from, to time.Time) ([]ReportFile, error) {
	var jobs []Job
	err := r.store.DB().WithContext(ctx).
		Where("status = ? AND settled_at >= ? AND settled_at < ?", StatusSettled, from, to).
		Order("settled_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("settlement: load settled jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}
	runDir := filepath.Join(r.dir, to.UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("settlement: create report dir: %w", err)
	}

	grouped := make(map[uint64][]Job)
	for _, job := range jobs {
		grouped[job.ChainID] = append(grouped[job.ChainID], job)
	}
	chains := make([]uint64, 0, len(grouped))
	for chain := range grouped {
		chains = append(chains, chain)
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i] < chains[j] })

	files := make([]ReportFile, 0, len(chains))
	for _, chain := range chains {
		rows := grouped[chain]
		name := fmt.Sprintf("chain_%d", chain)
		csvPath := filepath.Join(runDir, name+".csv")
		if err := writeCSV(csvPath, rows); err != nil {
			return nil, err
		}
		parquetPath := filepath.Join(runDir, name+".parquet")
		if err := writeParquet(parquetPath, rows); err != nil {
			return nil, err
		}
		r.logger.Info("settlement report written",
			slog.Uint64("chainid", chain),
			slog.Int("rows", len(rows)),
			slog.String("dir", runDir))
		files = append(files, ReportFile{ChainID: chain, Rows: len(rows), CSVPath: csvPath, ParquetPath: parquetPath})
	}
	return files, nil
}

var reportHeader = []string{
	"job_id", "event_type", "event_seq", "account", "chain_id", "reward_id", "reward_type",
	"reward_address", "amount", "token_id", "reference", "external_ref", "attempts", "settled_at",
}

func writeCSV(path string, rows []Job) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("settlement: create csv: %w", err)
	}
	defer file.Close()
	w := csv.NewWriter(file)
	if err := w.Write(reportHeader); err != nil {
		return fmt.Errorf("settlement: write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID.String(),
			row.EventType,
			strconv.FormatUint(row.EventSeq, 10),
			row.Account,
			strconv.FormatUint(row.ChainID, 10),
			strconv.FormatUint(row.RewardID, 10),
			row.RewardType,
			row.RewardAddress,
			row.Amount,
			strconv.FormatUint(row.TokenID, 10),
			row.Reference,
			row.ExternalRef,
			strconv.Itoa(row.Attempts),
			formatSettledAt(row.SettledAt),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("settlement: write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("settlement: flush csv: %w", err)
	}
	return nil
}

type parquetRow struct {
	JobID         string `parquet:"name=job_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventType     string `parquet:"name=event_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventSeq      int64  `parquet:"name=event_seq, type=INT64"`
	Account       string `parquet:"name=account, type=BYTE_ARRAY, convertedtype=UTF8"`
	ChainID       int64  `parquet:"name=chain_id, type=INT64"`
	RewardID      int64  `parquet:"name=reward_id, type=INT64"`
	RewardType    string `parquet:"name=reward_type, type=BYTE_ARRAY, convertedtype=UTF8"`
	RewardAddress string `parquet:"name=reward_address, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount        string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	TokenID       int64  `parquet:"name=token_id, type=INT64"`
	Reference     string `parquet:"name=reference, type=BYTE_ARRAY, convertedtype=UTF8"`
	ExternalRef   string `parquet:"name=external_ref, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attempts      int32  `parquet:"name=attempts, type=INT32"`
	SettledAt     string `parquet:"name=settled_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writeParquet(path string, rows []Job) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("settlement: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("settlement: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &parquetRow{
			JobID:         row.ID.String(),
			EventType:     row.EventType,
			EventSeq:      int64(row.EventSeq),
			Account:       row.Account,
			ChainID:       int64(row.ChainID),
			RewardID:      int64(row.RewardID),
			RewardType:    row.RewardType,
			RewardAddress: row.RewardAddress,
			Amount:        row.Amount,
			TokenID:       int64(row.TokenID),
			Reference:     row.Reference,
			ExternalRef:   row.ExternalRef,
			Attempts:      int32(row.Attempts),
			SettledAt:     formatSettledAt(row.SettledAt),
		}
		if err := pw.Write(pr); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("settlement: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("settlement: parquet flush: %w", err)
	}
	return file.Close()
}

func formatSettledAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

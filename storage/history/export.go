package history

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetSale struct {
	Seq       int64  `parquet:"name=seq, type=INT64"`
	Position  int32  `parquet:"name=position, type=INT32"`
	Asset     string `parquet:"name=asset, type=BYTE_ARRAY, convertedtype=UTF8"`
	Seller    string `parquet:"name=seller, type=BYTE_ARRAY, convertedtype=UTF8"`
	Buyer     string `parquet:"name=buyer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Price     string `parquet:"name=price, type=BYTE_ARRAY, convertedtype=UTF8"`
	Fee       string `parquet:"name=fee, type=BYTE_ARRAY, convertedtype=UTF8"`
	Proceeds  string `parquet:"name=proceeds, type=BYTE_ARRAY, convertedtype=UTF8"`
	IndexedAt string `parquet:"name=indexed_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportSales writes every indexed sale to a Parquet file at path in commit
// order and returns the number of rows written. Amounts stay decimal strings
// so no precision is lost.
func (s *Store) ExportSales(ctx context.Context, path string) (int, error) {
	var sales []Sale
	if err := s.db.WithContext(ctx).Order("seq ASC").Order("position ASC").Find(&sales).Error; err != nil {
		return 0, err
	}

	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("history: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetSale), 1)
	if err != nil {
		file.Close()
		return 0, fmt.Errorf("history: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, sale := range sales {
		row := &parquetSale{
			Seq:       int64(sale.Seq),
			Position:  int32(sale.Position),
			Asset:     sale.Asset,
			Seller:    sale.Seller,
			Buyer:     sale.Buyer,
			Price:     sale.Price,
			Fee:       sale.Fee,
			Proceeds:  sale.Proceeds,
			IndexedAt: sale.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return 0, fmt.Errorf("history: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return 0, fmt.Errorf("history: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("history: close parquet file: %w", err)
	}
	s.logger.Info("exported sales", slog.String("path", path), slog.Int("rows", len(sales)))
	return len(sales), nil
}

package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"
)

// WriteExecutionsCSVFile writes the execution details of records to path.
func WriteExecutionsCSVFile(path string, records []BarRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create executions file: %w", err)
	}
	defer f.Close()

	if err := WriteExecutionsCSV(f, records); err != nil {
		return err
	}
	return f.Close()
}

// WriteExecutionsCSV writes one row per execution detail, in replay order.
func WriteExecutionsCSV(w io.Writer, records []BarRecord) error {
	cw := csv.NewWriter(w)

	header := []string{
		"timestamp", // RFC3339
		"intent_id",
		"symbol",
		"side",
		"quantity",
		"status",
		"reason",
		"trade_id",
		"price",
		"notional",
		"fee",
		"realized_pnl",
		"cash_after",
		"equity_after",
		"market_value_after",
		"message",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, rec := range records {
		for _, d := range rec.ExecutionDetails {
			if err := cw.Write(executionRow(rec, d)); err != nil {
				return fmt.Errorf("write record: %w", err)
			}
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func executionRow(rec BarRecord, d ExecutionDetail) []string {
	row := []string{
		rec.Timestamp.Format(time.RFC3339),
		d.Intent.ID,
		d.Intent.Symbol,
		string(d.Intent.Side),
		d.Intent.Quantity.String(),
		string(d.Status),
		string(d.Reason),
		"", "", "", "", "",
		rec.SnapshotAfter.Cash.String(),
		rec.SnapshotAfter.Equity.String(),
		rec.SnapshotAfter.MarketValue().String(),
		d.Message,
	}
	if d.Trade != nil {
		row[7] = d.Trade.ID
		row[8] = d.Trade.Price.String()
		row[9] = d.Trade.Notional().String()
		row[10] = d.Trade.Fee.String()
		row[11] = d.Trade.RealizedPnL.String()
	}
	return row
}

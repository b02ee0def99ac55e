package cmd

import (
	"fmt"
	"os"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/apache/arrow/go/v18/parquet"
	"github.com/apache/arrow/go/v18/parquet/compress"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
)

// Parquet copies of the normalized tables for columnar downstream tooling.
// Column names and order match the TSV schemas exactly.

var krakenParquetSchema = arrow.NewSchema([]arrow.Field{
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "tax_id", Type: arrow.PrimitiveTypes.Int64},
	{Name: "rank", Type: arrow.BinaryTypes.String},
	{Name: "reads_clade", Type: arrow.PrimitiveTypes.Int64},
	{Name: "reads_taxon", Type: arrow.PrimitiveTypes.Int64},
	{Name: "reads_clade_per_million", Type: arrow.PrimitiveTypes.Float64},
	{Name: "reads_taxon_per_million", Type: arrow.PrimitiveTypes.Float64},
	{Name: "pct_reads", Type: arrow.PrimitiveTypes.Float64},
}, nil)

func writeKrakenParquet(path string, rows []krakenRow) error {
	b := array.NewRecordBuilder(memory.DefaultAllocator, krakenParquetSchema)
	defer b.Release()

	denom := krakenTaxonTotal(rows)
	for _, row := range rows {
		cladeRPM, taxonRPM := 0.0, 0.0
		if denom > 0 {
			cladeRPM = 1e6 * float64(row.ReadsClade) / float64(denom)
			taxonRPM = 1e6 * float64(row.ReadsTaxon) / float64(denom)
		}
		b.Field(0).(*array.StringBuilder).Append(row.Name)
		b.Field(1).(*array.Int64Builder).Append(row.TaxID)
		b.Field(2).(*array.StringBuilder).Append(row.Rank)
		b.Field(3).(*array.Int64Builder).Append(row.ReadsClade)
		b.Field(4).(*array.Int64Builder).Append(row.ReadsTaxon)
		b.Field(5).(*array.Float64Builder).Append(cladeRPM)
		b.Field(6).(*array.Float64Builder).Append(taxonRPM)
		b.Field(7).(*array.Float64Builder).Append(row.Pct)
	}

	return writeParquetRecord(path, krakenParquetSchema, b)
}

var metaphlanParquetSchema = arrow.NewSchema([]arrow.Field{
	{Name: "clade_name", Type: arrow.BinaryTypes.String},
	{Name: "clade_taxid", Type: arrow.PrimitiveTypes.Int64},
	{Name: "estimated_number_of_reads_from_the_clade", Type: arrow.PrimitiveTypes.Float64},
	{Name: "estimated_number_of_reads_from_the_clade_per_million", Type: arrow.PrimitiveTypes.Float64},
	{Name: "relative_abundance", Type: arrow.PrimitiveTypes.Float64},
	{Name: "coverage", Type: arrow.PrimitiveTypes.Float64},
}, nil)

func writeMetaphlanParquet(path string, report *metaphlanReport) error {
	b := array.NewRecordBuilder(memory.DefaultAllocator, metaphlanParquetSchema)
	defer b.Release()

	denom := metaphlanReadTotal(report.Rows)
	for _, row := range report.Rows {
		rpm := 0.0
		if denom > 0 {
			rpm = 1e6 * row.Reads / denom
		}
		b.Field(0).(*array.StringBuilder).Append(row.Clade)
		b.Field(1).(*array.Int64Builder).Append(row.TaxID)
		b.Field(2).(*array.Float64Builder).Append(row.Reads)
		b.Field(3).(*array.Float64Builder).Append(rpm)
		b.Field(4).(*array.Float64Builder).Append(row.Abundance)
		b.Field(5).(*array.Float64Builder).Append(row.Coverage)
	}

	return writeParquetRecord(path, metaphlanParquetSchema, b)
}

func writeParquetRecord(path string, schema *arrow.Schema, b *array.RecordBuilder) error {
	rec := b.NewRecord()
	defer rec.Release()
	tbl := array.NewTableFromRecords(schema, []arrow.Record{rec})
	defer tbl.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	chunkSize := tbl.NumRows()
	if chunkSize == 0 {
		chunkSize = 1
	}
	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	if err := pqarrow.WriteTable(tbl, f, chunkSize, props, pqarrow.DefaultWriterProps()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

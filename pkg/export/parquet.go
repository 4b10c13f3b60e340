package export

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/compress"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
)

// rowSchema returns the Arrow schema for manifest rows.
func rowSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "short_name", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "date", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "path", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "file", Type: arrow.BinaryTypes.String, Nullable: false},
		{Name: "prm_dir", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)
}

// writeParquet writes rows as a single snappy-compressed record batch.
func writeParquet(w io.Writer, rows []Row) error {
	allocator := memory.NewGoAllocator()
	schema := rowSchema()

	writerProps := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
		parquet.WithDictionaryDefault(true),
	)
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	fw, err := pqarrow.NewFileWriter(schema, w, writerProps, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}

	b := array.NewRecordBuilder(allocator, schema)
	defer b.Release()

	shortNames := b.Field(0).(*array.StringBuilder)
	dates := b.Field(1).(*array.StringBuilder)
	paths := b.Field(2).(*array.StringBuilder)
	files := b.Field(3).(*array.StringBuilder)
	prmDirs := b.Field(4).(*array.StringBuilder)

	for _, r := range rows {
		shortNames.Append(r.ShortName)
		dates.Append(r.Date)
		paths.Append(r.Path)
		files.Append(r.File)
		if r.PrmDir != "" {
			prmDirs.Append(r.PrmDir)
		} else {
			prmDirs.AppendNull()
		}
	}

	rec := b.NewRecord()
	defer rec.Release()

	if err := fw.Write(rec); err != nil {
		fw.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

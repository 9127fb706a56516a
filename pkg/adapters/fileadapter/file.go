package fileadapter

import (
	"bufio"
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/oarkflow/log"

	"github.com/careflow/ingest/pkg/contracts"
	"github.com/careflow/ingest/pkg/utils"
)

// Adapter reads one delimited tabular file as a stream of records keyed by
// header name. The field delimiter is sniffed from a sample of the file
// content; rows that cannot be minimally parsed are skipped, not fatal.
type Adapter struct {
	Filename  string
	delimiter rune
}

func New(fileName string) *Adapter {
	return &Adapter{Filename: fileName}
}

const sniffSampleSize = 2048

// candidate delimiters, checked against the sample's first line.
var sniffCandidates = []rune{';', ',', '\t', '|'}

func (fl *Adapter) Setup(_ context.Context) error {
	f, err := os.Open(fl.Filename)
	if err != nil {
		return err
	}
	defer f.Close()
	sample := make([]byte, sniffSampleSize)
	n, err := f.Read(sample)
	if err != nil && err != io.EOF {
		return err
	}
	fl.delimiter = SniffDelimiter(sample[:n])
	return nil
}

// SniffDelimiter picks the candidate separator occurring most often in the
// sample's first line. Detection failure falls back to ';'.
func SniffDelimiter(sample []byte) rune {
	line := sample
	for i, b := range sample {
		if b == '\n' {
			line = sample[:i]
			break
		}
	}
	best := ';'
	bestCount := 0
	for _, cand := range sniffCandidates {
		count := 0
		for _, b := range line {
			if rune(b) == cand {
				count++
			}
		}
		if count > bestCount {
			best = cand
			bestCount = count
		}
	}
	return best
}

func (fl *Adapter) Extract(_ context.Context, opts ...contracts.Option) (<-chan utils.Record, error) {
	opt := &contracts.SourceOption{Delimiter: fl.delimiter}
	for _, o := range opts {
		o(opt)
	}
	if opt.Delimiter == 0 {
		opt.Delimiter = ';'
	}
	file, err := os.Open(fl.Filename)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bufio.NewReader(file))
	reader.Comma = opt.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	headers, err := reader.Read()
	if err != nil {
		file.Close()
		return nil, err
	}
	out := make(chan utils.Record)
	go func() {
		defer close(out)
		defer file.Close()
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				// Row-level failure: drop the row, keep the file going.
				log.DefaultLogger.Warn().Str("file", fl.Filename).Err(err).Msg("skipping unparseable row")
				continue
			}
			row := make(utils.Record, len(headers))
			for i, header := range headers {
				if i < len(record) {
					row[header] = record[i]
				}
			}
			out <- row
		}
	}()
	return out, nil
}

func (fl *Adapter) Close() error {
	return nil
}

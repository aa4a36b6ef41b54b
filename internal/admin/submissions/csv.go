package submissions

import (
	"context"
	"encoding/csv"
	"io"
)

const (
	CSVContentType        = "text/csv; charset=utf-8"
	CSVContentDisposition = "attachment;filename=export.csv"
)

// WriteCSV writes every submission matching the request, unpaginated, with
// the field labels as header row.
func (s *Service) WriteCSV(ctx context.Context, req ListRequest, w io.Writer) error {
	res, err := s.query(ctx, req)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	headings := make([]string, 0, len(res.dataFields))
	for _, f := range res.dataFields {
		headings = append(headings, f.Label)
	}
	if err := writer.Write(headings); err != nil {
		return err
	}
	for _, sub := range res.submissions {
		values, err := rowValues(sub, res.dataFields)
		if err != nil {
			return err
		}
		if err := writer.Write(values); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

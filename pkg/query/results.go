// ABOUTME: Result encoders for SELECT solutions (json, csv, tsv)
// ABOUTME: Unknown formats fail with ErrUnsupportedQueryFormat

package query

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nainya/timegraph/pkg/rdf"
)

// Result formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatTSV  = "tsv"
)

// Encode writes the results in the requested format
func (r *Results) Encode(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case FormatJSON:
		return r.encodeJSON(w)
	case FormatCSV:
		return r.encodeCSV(w)
	case FormatTSV:
		return r.encodeTSV(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedQueryFormat, format)
	}
}

type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

type jsonResults struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]jsonTerm `json:"bindings"`
	} `json:"results"`
}

func (r *Results) encodeJSON(w io.Writer) error {
	var out jsonResults
	out.Head.Vars = r.Vars
	out.Results.Bindings = make([]map[string]jsonTerm, 0, len(r.Bindings))

	for _, b := range r.Bindings {
		row := make(map[string]jsonTerm, len(b))
		for v, t := range b {
			jt := jsonTerm{Value: t.Value, Datatype: t.Datatype, Lang: t.Lang}
			switch t.Kind {
			case rdf.KindIRI:
				jt.Type = "uri"
			case rdf.KindBlank:
				jt.Type = "bnode"
			default:
				jt.Type = "literal"
			}
			row[v] = jt
		}
		out.Results.Bindings = append(out.Results.Bindings, row)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (r *Results) encodeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(r.Vars); err != nil {
		return err
	}
	record := make([]string, len(r.Vars))
	for _, b := range r.Bindings {
		for i, v := range r.Vars {
			t, ok := b[v]
			switch {
			case !ok:
				record[i] = ""
			case t.Kind == rdf.KindBlank:
				record[i] = "_:" + t.Value
			default:
				record[i] = t.Value
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r *Results) encodeTSV(w io.Writer) error {
	header := make([]string, len(r.Vars))
	for i, v := range r.Vars {
		header[i] = "?" + v
	}
	if _, err := io.WriteString(w, strings.Join(header, "\t")+"\n"); err != nil {
		return err
	}

	cells := make([]string, len(r.Vars))
	for _, b := range r.Bindings {
		for i, v := range r.Vars {
			cells[i] = ""
			if t, ok := b[v]; ok {
				cells[i] = t.String()
			}
		}
		if _, err := io.WriteString(w, strings.Join(cells, "\t")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

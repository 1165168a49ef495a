package main

import (
	"fmt"
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/okian/divtracker/internal/adapters/command"
	"github.com/okian/divtracker/internal/domain/model"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

func validFormat(f string) bool {
	return f == formatText || f == formatJSON || f == formatYAML
}

// render writes records in the requested format. Text matches the chat reply.
func render(w io.Writer, format string, recs []model.Record) error {
	switch format {
	case formatText:
		_, err := fmt.Fprintln(w, command.Format(recs))
		return err
	default:
		return encode(w, format, recs)
	}
}

func renderNames(w io.Writer, format string, history []model.NameRecord) error {
	if format != formatText {
		return encode(w, format, history)
	}
	for _, h := range history {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", h.RecordedAt.Format(time.RFC3339), h.Name); err != nil {
			return err
		}
	}
	return nil
}

func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		b, err := codec.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// Package toolutil holds console output, logging and flag helpers shared by the CLI.
package toolutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strings"

	"github.com/TylerBrock/colorjson"
	"github.com/fatih/color"
	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"
)

const (
	CTJSON = "application/json"
	CTCBOR = "application/cbor"
	CTText = "text/plain"
)

var (
	logLevel = new(slog.LevelVar)
	logger   = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
)

// Logger returns the process logger. It writes text records to stderr.
func Logger() *slog.Logger {
	return logger
}

// SetLogLevel changes the level of Logger. Accepts debug, info, warn(ing) and error.
func SetLogLevel(level string) error {
	l := strings.ToLower(level)
	if l == "warning" {
		l = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logLevel.Set(lvl)
	return nil
}

var (
	stdout io.Writer = color.Output
	stderr io.Writer = color.Error

	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	keyColor     = color.New(color.FgYellow)
	titleColor   = color.New(color.FgMagenta, color.Bold)
)

func PrintSuccess(format string, args ...any) {
	successColor.Fprintf(stdout, "✓ "+format+"\n", args...)
}

func PrintError(format string, args ...any) {
	errorColor.Fprintf(stderr, "✗ "+format+"\n", args...)
}

func PrintInfo(format string, args ...any) {
	infoColor.Fprintf(stdout, "ℹ "+format+"\n", args...)
}

func PrintKeyValue(key string, value any) {
	fmt.Fprintf(stdout, "  %s %v\n", keyColor.Sprint(key+":"), value)
}

type KV struct {
	Key   string
	Value any
}

type MessageSection struct {
	Title string
	Items []KV
}

// PrintColoredMessage prints a titled block of key/value sections followed by
// the body rendered according to mime.
func PrintColoredMessage(title string, sections []MessageSection, body []byte, mime string) {
	var b strings.Builder
	b.WriteString(titleColor.Sprintf("── %s ──", title))
	b.WriteByte('\n')
	for _, s := range sections {
		if s.Title != "" {
			b.WriteString(color.New(color.Bold).Sprint(s.Title))
			b.WriteByte('\n')
		}
		for _, kv := range s.Items {
			fmt.Fprintf(&b, "  %s %v\n", keyColor.Sprint(kv.Key+":"), kv.Value)
		}
	}
	if pretty := PrettyBodyByMIME(mime, body); pretty != "" {
		b.WriteString(pretty)
		b.WriteByte('\n')
	}
	fmt.Fprint(stdout, b.String())
}

var cborDecMode, _ = cbor.DecOptions{
	DefaultMapType: reflect.TypeOf(map[string]any(nil)),
}.DecMode()

// PrettyBodyByMIME renders JSON and CBOR bodies as colored indented JSON and
// anything else as text. Bodies that fail to decode are returned as text.
func PrettyBodyByMIME(mime string, body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var v any
	switch mime {
	case CTJSON:
		if err := json.Unmarshal(body, &v); err != nil {
			return string(body)
		}
	case CTCBOR:
		data, err := DecodeCBORToJSON(body)
		if err != nil {
			return ""
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return ""
		}
	default:
		return string(body)
	}

	f := colorjson.NewFormatter()
	f.Indent = 2
	out, err := f.Marshal(v)
	if err != nil {
		return string(body)
	}
	return string(out)
}

// GuessMIME reports CTJSON for valid JSON, CTCBOR for a single well-formed
// CBOR item and CTText otherwise.
func GuessMIME(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return CTText
	}
	if json.Valid(trimmed) {
		return CTJSON
	}
	if cbor.Wellformed(body) == nil {
		return CTCBOR
	}
	return CTText
}

// EncodeCBORFromJSON converts a JSON document to CBOR.
func EncodeCBORFromJSON(s string) ([]byte, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return cbor.Marshal(v)
}

// DecodeCBORToJSON converts a CBOR item with string map keys to JSON.
func DecodeCBORToJSON(data []byte) ([]byte, error) {
	var v any
	if err := cborDecMode.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid CBOR: %w", err)
	}
	return json.Marshal(v)
}

// AddIntervalFlag adds --interval. An empty value means run once.
func AddIntervalFlag(cmd *cobra.Command, interval *string, def string) {
	cmd.Flags().StringVar(interval, "interval", def, "Repeat interval (e.g. 5s); empty runs once")
}

// AddFormatFlag adds --format accepting text, json or cbor.
func AddFormatFlag(cmd *cobra.Command, format *string, def string) {
	cmd.Flags().StringVar(format, "format", def, "Output format: text, json or cbor")
}

// FormatMIME maps a --format value to a content type.
func FormatMIME(format string) (string, error) {
	switch strings.ToLower(format) {
	case "text", "":
		return CTText, nil
	case "json":
		return CTJSON, nil
	case "cbor":
		return CTCBOR, nil
	}
	return "", fmt.Errorf("unknown format %q (want text, json or cbor)", format)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/straja-ai/ukredact/internal/anonymize"
	"github.com/straja-ai/ukredact/internal/audit"
	"github.com/straja-ai/ukredact/internal/export"
	"github.com/straja-ai/ukredact/internal/fileio"
	"github.com/straja-ai/ukredact/internal/pipeline"
)

type analyzeOpts struct {
	text       string
	exports    []string
	outDir     string
	noMetadata bool
	jsonOut    bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	o := &analyzeOpts{}
	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Redact a .txt/.docx file, --text, or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runAnalyze(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), o, args)
		},
	}
	cmd.Flags().StringVarP(&o.text, "text", "t", "", "text to analyze")
	cmd.Flags().StringArrayVarP(&o.exports, "export", "e", nil, "write kind:format files, e.g. anonymized:docx, entities:csv, full:md (repeatable)")
	cmd.Flags().StringVarP(&o.outDir, "out", "o", ".", "directory for exported files")
	cmd.Flags().BoolVar(&o.noMetadata, "no-metadata", false, "omit the metadata header from anonymized exports")
	cmd.Flags().BoolVar(&o.jsonOut, "json", false, "print the entity report as JSON")
	return cmd
}

type exportTarget struct {
	kind   export.Kind
	format export.Format
}

func parseExports(specs []string) ([]exportTarget, error) {
	out := make([]exportTarget, 0, len(specs))
	for _, spec := range specs {
		k, f, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("export %q: want kind:format", spec)
		}
		kind, err := export.ParseKind(k)
		if err != nil {
			return nil, err
		}
		format, err := export.ParseFormat(f)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(export.Formats(kind), format) {
			return nil, fmt.Errorf("export %q: %w", spec, export.ErrUnsupported)
		}
		out = append(out, exportTarget{kind: kind, format: format})
	}
	return out, nil
}

func (a *app) runAnalyze(ctx context.Context, stdin io.Reader, stdout io.Writer, o *analyzeOpts, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	targets, err := parseExports(o.exports)
	if err != nil {
		return err
	}

	text, base, err := readInput(stdin, o.text, args)
	if err != nil {
		return err
	}

	analyzer, closeModel, err := pipeline.Build(a.cfg, nil, nil)
	if err != nil {
		return err
	}
	defer closeModel()

	em, err := audit.Open(a.cfg.Audit, nil)
	if err != nil {
		return err
	}
	defer em.Close(context.Background())

	start := time.Now()
	res, err := analyzer.Analyze(ctx, text)
	em.Emit(ctx, audit.NewEvent(uuid.NewString(), audit.SurfaceCLI, text, res, err, time.Since(start)))
	if err != nil {
		return err
	}

	now := time.Now()
	doc := export.NewDocument(res, now)
	if o.jsonOut {
		if err := export.EntitiesReport(stdout, doc, export.JSON); err != nil {
			return err
		}
	} else {
		report := res.Report()
		if report == "" {
			report = anonymize.NoEntitiesMessage
		}
		fmt.Fprintf(stdout, "%s\n\n%s\n", res.AnonymizedText, report)
	}

	for _, t := range targets {
		path := filepath.Join(o.outDir, export.Filename(base+"_"+string(t.kind), t.format, now))
		if err := writeExport(path, doc, t, !o.noMetadata); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	return nil
}

func writeExport(path string, doc *export.Document, t exportTarget, withMetadata bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if t.kind == export.KindAnonymized {
		err = export.Anonymized(f, doc, t.format, withMetadata)
	} else {
		err = export.Write(f, doc, t.kind, t.format)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("export %s: %w", path, err)
	}
	return nil
}

// readInput picks the text source and the base name for exported files.
func readInput(stdin io.Reader, text string, args []string) (string, string, error) {
	switch {
	case text != "" && len(args) > 0:
		return "", "", fmt.Errorf("use either --text or a file, not both")
	case text != "":
		return text, export.DefaultBaseName, nil
	case len(args) == 1:
		f, err := fileio.NewReader(0).ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		return fileio.Sanitize(f.Text), base, nil
	}
	f, err := fileio.NewReader(0).Read("stdin.txt", stdin)
	if err != nil {
		return "", "", err
	}
	return fileio.Sanitize(f.Text), export.DefaultBaseName, nil
}

// printJSON writes v indented, keeping non-ASCII text readable.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

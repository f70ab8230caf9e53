package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/benedoc-inc/facturx"
	"github.com/benedoc-inc/facturx/attach"
	"github.com/benedoc-inc/facturx/schema"
	"github.com/benedoc-inc/facturx/types"
)

var generateFlags struct {
	output    string
	overwrite bool
	lang      string
	level     string
	attach    []string
	noCheck   bool
	strict    bool
	xsdDir    string
}

var generateCmd = &cobra.Command{
	Use:   "generate <pdf> <xml>",
	Short: "Embed an XML invoice or order in a PDF",
	Long: `Embed a Factur-X or Order-X XML document in a PDF and write a PDF/A-3 hybrid
document. The flavor is detected from the XML namespace.

Extra files are attached with --attach path[:relationship[:description]],
relationship being one of Data, Source, Alternative, Supplement, Unspecified.`,
	Args: cobra.ExactArgs(2),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVarP(&generateFlags.output, "output", "o", "", "output PDF path, the input PDF is rewritten when empty")
	f.BoolVar(&generateFlags.overwrite, "overwrite", false, "replace an existing output file, required for in-place updates")
	f.StringVar(&generateFlags.lang, "lang", "", "document language as a BCP 47 tag, e.g. fr-FR")
	f.StringVar(&generateFlags.level, "level", "", "override the detected conformance level")
	f.StringArrayVar(&generateFlags.attach, "attach", nil, "additional file to embed, repeatable")
	f.BoolVar(&generateFlags.noCheck, "no-check", false, "skip schema validation of the XML")
	f.BoolVar(&generateFlags.strict, "strict", true, "fail when the conformance level cannot be determined")
	f.StringVar(&generateFlags.xsdDir, "xsd-dir", "", "validate with xmllint against the XSD files in this directory")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	opts := []facturx.Option{
		facturx.WithLogger(logger),
		facturx.WithOverwrite(generateFlags.overwrite),
		facturx.WithLang(generateFlags.lang),
		facturx.WithLevel(generateFlags.level),
		facturx.WithCheckSchema(!generateFlags.noCheck),
		facturx.WithStrict(generateFlags.strict),
	}
	if generateFlags.xsdDir != "" {
		opts = append(opts, facturx.WithValidator(schema.ExecValidator{SchemaDir: generateFlags.xsdDir, Logger: logger}))
	}
	for _, a := range generateFlags.attach {
		in, err := parseAttach(a)
		if err != nil {
			return err
		}
		opts = append(opts, facturx.WithAttachments(in))
	}

	res, err := facturx.GenerateFile(cmd.Context(), args[0], args[1], generateFlags.output, opts...)
	if err != nil {
		return err
	}
	printWarnings(res.Warnings)
	out := generateFlags.output
	if out == "" {
		out = args[0]
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, PDF %s\n", out, res.Descriptor, res.Version)
	return nil
}

// parseAttach reads path[:relationship[:description]] and loads the file
func parseAttach(value string) (attach.Input, error) {
	path, rel, desc := splitAttach(value)
	if path == "" {
		return attach.Input{}, types.NewErrorf(types.ErrCodeInvalidInput, "--attach %q has no path", value)
	}
	return attach.LoadFile(path, desc, rel)
}

// splitAttach ends the path at the first colon followed by a relationship
// name, so drive letters and colons in filenames are kept
func splitAttach(value string) (path, rel, desc string) {
	parts := strings.Split(value, ":")
	for i := 1; i < len(parts); i++ {
		if parts[i] == "" {
			continue
		}
		if _, err := attach.ParseRelationship(parts[i]); err == nil {
			return strings.Join(parts[:i], ":"), parts[i], strings.Join(parts[i+1:], ":")
		}
	}
	return value, "", ""
}

var extractFlags struct {
	output string
	check  bool
}

var extractCmd = &cobra.Command{
	Use:   "extract <pdf>",
	Short: "Write the embedded XML document to a file or stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := facturx.ExtractFile(cmd.Context(), args[0],
			facturx.WithLogger(logger),
			facturx.WithCheckSchema(extractFlags.check))
		if err != nil {
			return err
		}
		printWarnings(res.Warnings)
		if extractFlags.output == "" || extractFlags.output == "-" {
			_, err = cmd.OutOrStdout().Write(res.XML)
			return err
		}
		if err := os.WriteFile(extractFlags.output, res.XML, 0o644); err != nil {
			return types.WrapErrorf(types.ErrCodeIOError, err, "cannot write %s", extractFlags.output)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s from %s\n", extractFlags.output, res.Descriptor, res.Filename)
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractFlags.output, "output", "o", "", "output XML path, stdout when empty")
	extractCmd.Flags().BoolVar(&extractFlags.check, "check", false, "validate the extracted XML")
}

var checkFlags struct {
	xsdDir string
	level  string
}

var checkCmd = &cobra.Command{
	Use:   "check <xml>...",
	Short: "Classify and validate XML documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := []facturx.Option{facturx.WithLogger(logger), facturx.WithLevel(checkFlags.level)}
		if checkFlags.xsdDir != "" {
			opts = append(opts, facturx.WithValidator(schema.ExecValidator{SchemaDir: checkFlags.xsdDir, Logger: logger}))
		}
		var failed error
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return types.WrapErrorf(types.ErrCodeIOError, err, "cannot read %s", path)
			}
			d, err := facturx.CheckXML(cmd.Context(), data, opts...)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
				failed = err
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s ok\n", path, d)
		}
		return failed
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkFlags.xsdDir, "xsd-dir", "", "validate with xmllint against the XSD files in this directory")
	checkCmd.Flags().StringVar(&checkFlags.level, "level", "", "override the detected conformance level")
}

var infoCmd = &cobra.Command{
	Use:   "info <pdf>",
	Short: "List embedded files and the detected e-invoicing document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return types.WrapErrorf(types.ErrCodeIOError, err, "cannot read %s", args[0])
		}
		files, err := facturx.ListAttachments(data, facturx.WithLogger(logger))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tRELATIONSHIP\tTYPE\tSIZE\tDESCRIPTION")
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", f.Name, f.Relationship, f.MIMEType, len(f.Data), f.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		res, err := facturx.ExtractXML(cmd.Context(), data, facturx.WithLogger(logger), facturx.WithStrict(false))
		if err != nil {
			if c, ok := types.GetErrorCode(err); ok && c == types.ErrCodeNoEmbeddedXML {
				fmt.Fprintln(out, "\nno e-invoicing XML found")
				return nil
			}
			return err
		}
		printWarnings(res.Warnings)
		fmt.Fprintf(out, "\n%s: %s (namespace %s)\n", res.Filename, res.Descriptor, res.Descriptor.Namespace)
		return nil
	},
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Mono-Game/mojoshader/pkg/preproc"
	"github.com/Mono-Game/mojoshader/pkg/preprocessor"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var version = "0.1.0"

// Preprocessor options
var (
	includePaths  []string
	systemPaths   []string
	defineFlags   []string
	undefineFlags []string
	outputFile    string
	configFile    string
	debugTokens   bool
)

// config is the YAML predefine/search-path file loaded by --config.
type config struct {
	Defines      map[string]string `yaml:"defines,omitempty"`
	IncludePaths []string          `yaml:"includePaths,omitempty"`
	SystemPaths  []string          `yaml:"systemPaths,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := newRootCmd(os.Stdout, os.Stderr)
	rootCmd.SetArgs(os.Args[1:])
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shaderpp [flags] file",
		Short: "shaderpp runs the shader-language preprocessor over a source file",
		Long: `shaderpp runs the shader-language preprocessor over a source file and
prints the reformatted result. Includes are resolved against the input
file's directory and the configured search paths; preprocessing errors go
to stderr as file:line: message lines.`,
		Version:       version,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filename := args[0]

			opts, err := buildOptions()
			if err != nil {
				fmt.Fprintf(errOut, "shaderpp: %v\n", err)
				return err
			}

			if debugTokens {
				return doDebugTokens(filename, opts, errOut)
			}
			return doPreprocess(filename, opts, out, errOut)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	rootCmd.Flags().StringArrayVarP(&includePaths, "include", "I", nil, "Add directory to include search path")
	rootCmd.Flags().StringArrayVar(&systemPaths, "isystem", nil, "Add directory to system include search path")
	rootCmd.Flags().StringArrayVarP(&defineFlags, "define", "D", nil, "Define macro (NAME or NAME=VALUE)")
	rootCmd.Flags().StringArrayVarP(&undefineFlags, "undefine", "U", nil, "Undefine macro")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write output to file instead of stdout")
	rootCmd.Flags().StringVar(&configFile, "config", "", "Load defines and search paths from a YAML file")
	rootCmd.Flags().BoolVar(&debugTokens, "debug-tokens", false, "Dump the raw token stream instead of preprocessing")

	return rootCmd
}

// buildOptions merges the config file (if any) under the command-line flags.
func buildOptions() (*preproc.Options, error) {
	opts := &preproc.Options{
		IncludePaths: includePaths,
		SystemPaths:  systemPaths,
		Defines:      make(map[string]string),
		Undefines:    undefineFlags,
	}

	if configFile != "" {
		content, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", configFile, err)
		}
		var cfg config
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configFile, err)
		}
		for name, value := range cfg.Defines {
			opts.Defines[name] = value
		}
		opts.IncludePaths = append(cfg.IncludePaths, opts.IncludePaths...)
		opts.SystemPaths = append(cfg.SystemPaths, opts.SystemPaths...)
	}

	// Command-line -D wins over the config file.
	for _, d := range defineFlags {
		name, value := preproc.ParseDefineFlag(d)
		opts.Defines[name] = value
	}

	return opts, nil
}

// doPreprocess flattens the file and reports collected errors.
func doPreprocess(filename string, opts *preproc.Options, out, errOut io.Writer) error {
	output, errors, err := preproc.Preprocess(filename, opts)
	if err != nil {
		fmt.Fprintf(errOut, "shaderpp: %v\n", err)
		return err
	}

	for _, e := range errors {
		fname := e.Filename
		if fname == "" {
			fname = filename
		}
		fmt.Fprintf(errOut, "%s:%d: %s\n", fname, e.Position, e.Message)
	}

	if outputFile != "" {
		if werr := os.WriteFile(outputFile, []byte(output), 0644); werr != nil {
			fmt.Fprintf(errOut, "shaderpp: error writing %s: %v\n", outputFile, werr)
			return werr
		}
	} else {
		fmt.Fprint(out, output)
	}

	if len(errors) > 0 {
		return fmt.Errorf("preprocessing failed with %d error(s)", len(errors))
	}
	return nil
}

// doDebugTokens drives the pull stream directly and dumps each lexeme.
func doDebugTokens(filename string, opts *preproc.Options, errOut io.Writer) error {
	source, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(errOut, "shaderpp: error reading %s: %v\n", filename, err)
		return err
	}

	resolver := preproc.NewResolver(filename, opts.IncludePaths, opts.SystemPaths)
	pp, err := preprocessor.Start(filename, source, resolver.Open, resolver.Close, opts.Predefines())
	if err != nil {
		fmt.Fprintf(errOut, "shaderpp: %v\n", err)
		return err
	}
	defer pp.End()

	for {
		tokstr, token := pp.NextToken()
		if token == preprocessor.TOKEN_EOI {
			return nil
		}
		text := strings.ReplaceAll(string(tokstr), "\n", `\n`)
		fmt.Fprintf(errOut, "TOKEN: \"%s\" (%s)\n", text, token)
	}
}

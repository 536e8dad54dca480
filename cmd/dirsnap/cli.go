package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	internal "github.com/ZanzyTHEbar/dirsnap/dsnap"
	"github.com/ZanzyTHEbar/dirsnap/dsnap/config"
	"github.com/ZanzyTHEbar/dirsnap/dsnap/diff"
	"github.com/ZanzyTHEbar/dirsnap/dsnap/trees"
)

const (
	projectBinaryName = "dirsnap"
	projectModulePath = "github.com/ZanzyTHEbar/dirsnap"
)

func main() {
	if err := executeCLI(os.Args[1:]); err != nil {
		logger := internal.GetLogger()
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func executeCLI(args []string) error {
	root := newRootCommand()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           projectBinaryName,
		Short:         "Capture and compare directory metadata snapshots.",
		Long:          fmt.Sprintf("Dirsnap captures directory trees as text snapshots and diffs them.\nModule: %s", projectModulePath),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := config.LoadConfig(configPath)
			return err
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default searches . and "+internal.DefaultConfigPath+")")

	root.AddCommand(newListCommand())
	root.AddCommand(newCompareCommand())
	return root
}

// scanFlags are the scanning knobs shared by list and compare. Flags not
// set on the command line fall back to the loaded configuration.
type scanFlags struct {
	noHash  bool
	workers int
	skip    []string
}

func (f *scanFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.noHash, "no-hash", false, "skip content fingerprints when scanning")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "parallel hashing workers (0 means one per CPU)")
	cmd.Flags().StringSliceVar(&f.skip, "skip", nil, "gitignore-style patterns to exclude from scans")
}

func (f *scanFlags) options(cmd *cobra.Command) trees.ScanOptions {
	opts := trees.ScanOptions{
		OmitFingerprints: config.AppConfig.Scan.OmitFingerprints,
		Workers:          config.AppConfig.Scan.Workers,
		SkipPatterns:     config.AppConfig.Scan.SkipPatterns,
	}
	if cmd.Flags().Changed("no-hash") {
		opts.OmitFingerprints = f.noHash
	}
	if cmd.Flags().Changed("workers") {
		opts.Workers = f.workers
	}
	if cmd.Flags().Changed("skip") {
		opts.SkipPatterns = f.skip
	}
	return opts
}

// buildTree loads one snapshot side from a directory or snapshot file.
// Per-path scan warnings go to stderr through the slog handler; the
// tree-wide advisory flag becomes a single summary warning, matching the
// snapshot output on stdout being kept free of diagnostics.
func buildTree(cmd *cobra.Command, path string, opts trees.ScanOptions) (*trees.DirectoryTree, error) {
	tree := trees.NewDirectoryTree(trees.WithLogger(scanLogger()))
	if err := tree.FromPath(cmd.Context(), path, opts); err != nil {
		return nil, err
	}
	if tree.UnsupportedFound() {
		logger := internal.GetLogger()
		logger.Warn().Str("source", path).Msg("unsupported files found")
	}
	return tree, nil
}

func scanLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func newListCommand() *cobra.Command {
	var (
		outPath string
		scan    scanFlags
	)
	cmd := &cobra.Command{
		Use:     "list SOURCE",
		Aliases: []string{"ls"},
		Short:   "Print the snapshot of a directory or snapshot file.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := buildTree(cmd, args[0], scan.options(cmd))
			if err != nil {
				return err
			}
			out, err := openOutput(outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			return tree.WriteTo(out)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "save output to FILE instead of stdout")
	scan.register(cmd)
	return cmd
}

func newCompareCommand() *cobra.Command {
	var (
		outPath    string
		ignoreSpec string
		scan       scanFlags
	)
	cmd := &cobra.Command{
		Use:   "compare SOURCE TARGET",
		Short: "Diff two directories or snapshot files.",
		Long: "Compare diffs two snapshots, each taken from a live directory or a\n" +
			"previously saved snapshot file, and prints the entries that differ.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := config.AppConfig.Diff.IgnoreFields
			if cmd.Flags().Changed("ignore") {
				spec = ignoreSpec
			}
			opt, err := diff.ParseIgnoreSpec(spec)
			if err != nil {
				return err
			}

			scanOpts := scan.options(cmd)
			source, err := buildTree(cmd, args[0], scanOpts)
			if err != nil {
				return err
			}
			target, err := buildTree(cmd, args[1], scanOpts)
			if err != nil {
				return err
			}

			out, err := openOutput(outPath)
			if err != nil {
				return err
			}
			defer out.Close()
			return diff.Compare(source, target, opt).Render(out)
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "save output to FILE instead of stdout")
	cmd.Flags().StringVar(&ignoreSpec, "ignore", "", "comma-separated fields to ignore: perm,owner,group,mtime,size,hash,symlink")
	scan.register(cmd)
	return cmd
}

// openOutput opens the --out target, or stdout when none was given. An
// existing file is refused rather than overwritten.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopWriteCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("output file %s already exists, aborting", path)
		}
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return f, nil
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"tailplane/descriptor"
	"tailplane/model"
	"tailplane/storage"
	"tailplane/theme"
	"tailplane/ui"
)

var (
	outPath      string
	outFormat    string
	showFormat   string
	filesRoot    string
	jsonOutput   bool
	inPlace      bool
	force        bool
	historyLimit int
)

func registerDescriptorCommands(root *cobra.Command) {
	validateCmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Load a config file and report warnings and errors",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
	validateCmd.Flags().StringVar(&filesRoot, "root", "", "Project root to resolve content globs against")
	validateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")

	migrateCmd := &cobra.Command{
		Use:   "migrate [file]",
		Short: "Move the deprecated purge field into content",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runMigrate,
	}
	migrateCmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the result to this file")
	migrateCmd.Flags().StringVar(&outFormat, "format", "", "Output format for stdout: js, json, yaml or toml")
	migrateCmd.Flags().BoolVar(&inPlace, "in-place", false, "Rewrite the input file")
	migrateCmd.Flags().BoolVar(&force, "force", false, "Write even if unrecognised keys would be dropped")

	mergeCmd := &cobra.Command{
		Use:   "merge base override",
		Short: "Overlay one config on another",
		Args:  cobra.ExactArgs(2),
		RunE:  runMerge,
	}
	mergeCmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the result to this file")
	mergeCmd.Flags().StringVar(&outFormat, "format", "", "Output format for stdout: js, json, yaml or toml")
	mergeCmd.Flags().BoolVar(&force, "force", false, "Write even if unrecognised keys would be dropped")

	showCmd := &cobra.Command{
		Use:   "show [file]",
		Short: "Print a config file in another format",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runShow,
	}
	showCmd.Flags().StringVar(&showFormat, "format", "json", "Output format: js, json, yaml or toml")

	tokensCmd := &cobra.Command{
		Use:   "tokens [file]",
		Short: "Render breakpoints and font stacks as CSS custom properties",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTokens,
	}
	tokensCmd.Flags().StringVarP(&outPath, "output", "o", "", "Write the stylesheet to this file")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded snapshots of the watched config",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Show at most this many snapshots")

	root.AddCommand(validateCmd, migrateCmd, mergeCmd, showCmd, tokensCmd, historyCmd)
}

func loadTarget(args []string) (string, *descriptor.Descriptor, error) {
	cfg, err := loadSettings()
	if err != nil {
		return "", nil, err
	}
	path, err := resolveDescriptor(args, cfg)
	if err != nil {
		return "", nil, err
	}
	d, err := descriptor.LoadFile(path)
	if err != nil {
		return path, nil, err
	}
	return path, d, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, d, err := loadTarget(args)
	if err != nil {
		return err
	}
	res := checkDescriptor(d, filesRoot)

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		ui.PrintDiagnostics(path, res)
	}
	if !res.OK() {
		return errReported
	}
	return nil
}

// checkDescriptor validates d and, when root is set, resolves its content
// globs under root.
func checkDescriptor(d *descriptor.Descriptor, root string) descriptor.ValidationResult {
	res := descriptor.Validate(d)
	if root != "" {
		res.Warnings = append(res.Warnings, descriptor.ValidateFiles(d, os.DirFS(root))...)
	}
	return res
}

func runMigrate(cmd *cobra.Command, args []string) error {
	path, d, err := loadTarget(args)
	if err != nil {
		return err
	}

	migrated, err := descriptor.MigrateLegacy(d)
	if err != nil {
		var amb *descriptor.AmbiguousMigrationError
		if errors.As(err, &amb) {
			ui.Logf("error", "%s: both content and purge are set and differ", path)
			ui.Logf("info", "  content: %v", amb.Content)
			ui.Logf("info", "  purge:   %v", amb.Legacy)
			return errReported
		}
		return err
	}

	if d.Schema() == descriptor.SchemaCurrent {
		ui.Logf("info", "%s already uses content; nothing to migrate", path)
	}

	target := outPath
	if inPlace {
		target = path
	}
	if target != "" {
		if err := guardRewrite(migrated, path, force); err != nil {
			return err
		}
	}
	return emit(cmd.OutOrStdout(), migrated, target, outFormat, path)
}

func runMerge(cmd *cobra.Command, args []string) error {
	base, err := descriptor.LoadFile(args[0])
	if err != nil {
		return err
	}
	override, err := descriptor.LoadOverlayFile(args[1])
	if err != nil {
		return err
	}

	merged := descriptor.Merge(base, override)
	res := descriptor.Validate(merged)
	if !res.OK() {
		ui.PrintDiagnostics("merged", res)
		return errReported
	}
	if outPath != "" {
		if err := guardRewrite(merged, args[0], force); err != nil {
			return err
		}
	}
	return emit(cmd.OutOrStdout(), merged, outPath, outFormat, args[0])
}

func runShow(cmd *cobra.Command, args []string) error {
	_, d, err := loadTarget(args)
	if err != nil {
		return err
	}
	return emit(cmd.OutOrStdout(), d, "", showFormat, "")
}

// guardRewrite refuses to write d to a file when keys the loader skipped
// would be lost, unless force is set. Forced writes list what is dropped.
func guardRewrite(d *descriptor.Descriptor, source string, force bool) error {
	if len(d.Ignored) > 0 {
		if !force {
			return fmt.Errorf("%s: writing would drop unrecognised keys %s; pass --force to write anyway",
				source, strings.Join(d.Ignored, ", "))
		}
		ui.Logf("warning", "dropping unrecognised keys: %s", strings.Join(d.Ignored, ", "))
	}
	if f, err := descriptor.FormatFromPath(source); err == nil && f == descriptor.FormatJS {
		ui.Logf("warning", "%s: module code outside the exported object is not kept", source)
	}
	return nil
}

// emit writes d to target when set, otherwise to w in format. An empty
// format falls back to the format of like.
func emit(w io.Writer, d *descriptor.Descriptor, target, format, like string) error {
	if target != "" {
		if err := descriptor.WriteFile(target, d); err != nil {
			return fmt.Errorf("write %s: %w", target, err)
		}
		ui.Logf("success", "wrote %s", target)
		return nil
	}

	f := descriptor.FormatJSON
	switch {
	case format != "":
		parsed, err := descriptor.ParseFormat(format)
		if err != nil {
			return err
		}
		f = parsed
	case like != "":
		if guessed, err := descriptor.FormatFromPath(like); err == nil {
			f = guessed
		}
	}

	data, err := descriptor.Marshal(d, f)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func runTokens(cmd *cobra.Command, args []string) error {
	path, d, err := loadTarget(args)
	if err != nil {
		return err
	}
	css := theme.RenderTokens(d, filepath.Base(path))

	if outPath == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), css)
		return err
	}
	changed, err := writeTokens(outPath, css)
	if err != nil {
		return err
	}
	if changed {
		ui.Logf("success", "wrote %s", outPath)
	} else {
		ui.Logf("info", "%s is up to date", outPath)
	}
	return nil
}

// writeTokens writes css to path unless the file already holds the same
// tokens. It reports whether the file was written.
func writeTokens(path, css string) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && theme.UpToDate(string(existing), css) {
		return false, nil
	}
	if err := os.WriteFile(path, []byte(css), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	snaps, err := storage.New(cfg.DataDir).ListSnapshots(time.Time{}, time.Now())
	if err != nil {
		return err
	}
	printHistory(cmd.OutOrStdout(), snaps, historyLimit, time.Now())
	return nil
}

// printHistory lists the newest limit snapshots, newest first.
func printHistory(w io.Writer, snaps []model.Snapshot, limit int, now time.Time) {
	if len(snaps) == 0 {
		fmt.Fprintln(w, "no snapshots recorded")
		return
	}
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[len(snaps)-limit:]
	}
	for i := len(snaps) - 1; i >= 0; i-- {
		s := snaps[i]
		when := humanize.RelTime(s.Timestamp, now, "ago", "from now")
		status := fmt.Sprintf("%d error(s), %d warning(s)", len(s.Errors), len(s.Warnings))
		if s.LoadError != "" {
			status = "load failed: " + s.LoadError
		}
		fmt.Fprintf(w, "%-16s  %-8s  %s  %s  %s\n", when, s.Schema, shortSum(s.Checksum), filepath.Base(s.Source), status)
	}
}

func shortSum(sum string) string {
	if len(sum) > 8 {
		return sum[:8]
	}
	return sum
}

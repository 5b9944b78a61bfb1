package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/grindlemire/gsxls/pkg/lsp/mapping"
)

func newCheckCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Validate mapping artifacts (*.map) without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.OutOrStdout(), cmd.ErrOrStderr(), args, verbose)
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	return cmd
}

// runCheck validates every mapping artifact under paths.
func runCheck(stdout, stderr io.Writer, paths []string, verbose bool) error {
	// Default to current directory if no paths specified
	if len(paths) == 0 {
		paths = []string{"."}
	}

	files, err := collectArtifacts(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no mapping artifacts found")
	}

	if verbose {
		fmt.Fprintf(stdout, "Checking %d artifact(s)\n", len(files))
	}

	var errorCount int
	for _, path := range files {
		if verbose {
			fmt.Fprintf(stdout, "Checking %s\n", path)
		}
		table, err := checkArtifact(path)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", path, err)
			errorCount++
			continue
		}
		if verbose {
			langs := make([]string, 0, 1)
			for _, lang := range table.Languages() {
				langs = append(langs, lang.String())
			}
			fmt.Fprintf(stdout, "  %d mapping(s) for %s\n", table.Len(), strings.Join(langs, ", "))
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("%d artifact(s) had errors", errorCount)
	}
	if verbose {
		fmt.Fprintf(stdout, "All %d artifact(s) passed checks\n", len(files))
	}
	return nil
}

// collectArtifacts expands directories (recursively) into their .map files.
func collectArtifacts(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		p = strings.TrimSuffix(p, "/...")
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(path, ".map") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

// checkArtifact parses one artifact, builds its mapping table and checks the
// spans against the generated file next to it and the authored source, when
// those exist.
func checkArtifact(path string) (*mapping.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	artifact, err := mapping.ParseArtifact(data)
	if err != nil {
		return nil, err
	}
	table, err := mapping.NewTable(artifact.Entries())
	if err != nil {
		return nil, err
	}

	generated := strings.TrimSuffix(path, ".map")
	if err := checkBounds(generated, artifact, func(m mapping.ArtifactMapping) int {
		return m.GeneratedStart + m.GeneratedLength
	}); err != nil {
		return nil, err
	}

	source := artifact.SourceFile
	if source != "" && !filepath.IsAbs(source) {
		source = filepath.Join(filepath.Dir(path), source)
	}
	if err := checkBounds(source, artifact, func(m mapping.ArtifactMapping) int {
		return m.AuthoredStart + m.AuthoredLength
	}); err != nil {
		return nil, err
	}
	return table, nil
}

func checkBounds(path string, artifact *mapping.Artifact, end func(mapping.ArtifactMapping) int) error {
	if path == "" {
		return nil
	}
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for i, m := range artifact.Mappings {
		if e := end(m); e > len(content) {
			return fmt.Errorf("mapping %d ends at %d, past the end of %s (%d bytes)", i, e, filepath.Base(path), len(content))
		}
	}
	return nil
}

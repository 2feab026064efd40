/*
Copyright 2023 The Netharvest Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/netharvest/netharvest/pkg/archive/batch"
	"github.com/netharvest/netharvest/pkg/shared/logging"
	"github.com/netharvest/netharvest/pkg/wayback"
)

var archiveExtensions = []string{".arc", ".arc.gz", ".warc", ".warc.gz"}

func NewBatchCommand() *cobra.Command {
	var (
		jobType string
		outFile string
	)

	command := &cobra.Command{
		Use:   "batch [files or directories]",
		Short: "Run a batch job over archive container files",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("no files or directories given")
			}
			ctx, stop := signalContext("batch")
			defer stop()
			log := logging.FromContext(ctx)

			paths, err := collectArchiveFiles(args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return fmt.Errorf("no archive files found under %s", strings.Join(args, ", "))
			}

			var out io.Writer = cmd.OutOrStdout()
			if outFile != "" {
				f, err := os.Create(outFile)
				if err != nil {
					return fmt.Errorf("failed to create output file %s, %w", outFile, err)
				}
				defer f.Close()
				out = f
			}

			var status *batch.Status
			switch jobType {
			case "checksum":
				status, err = batch.RunFileJob(ctx, "checksum", batch.NewChecksumJob(), paths, out)
			case "cdx":
				canon := wayback.NewCanonicalizer()
				runner := batch.NewRunner("cdx", batch.NewCDXExtractionJob(canon.URLKey), batch.ResponsesOnly())
				status, err = runner.Run(ctx, paths, out)
			default:
				return fmt.Errorf("unsupported batch job type %q (checksum, cdx)", jobType)
			}
			if err != nil {
				return err
			}

			report, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), string(report))
			log.Infow("Batch run finished",
				"job", jobType,
				"files", status.FilesProcessed,
				"failed", status.FilesFailed,
				"records", status.RecordsProcessed)
			if status.FilesFailed > 0 {
				return fmt.Errorf("%d of %d files failed", status.FilesFailed, status.FilesProcessed)
			}
			return nil
		},
	}
	command.Flags().StringVar(&jobType, "job", "checksum", "Batch job to run: checksum or cdx")
	command.Flags().StringVarP(&outFile, "out", "o", "", "Write job output to this file instead of stdout")
	return command
}

// collectArchiveFiles expands the arguments into a sorted list of archive
// container files; directories are searched one level deep.
func collectArchiveFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s, %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot read directory %s, %w", arg, err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if isArchiveExtension(e.Name()) {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func isArchiveExtension(name string) bool {
	for _, ext := range archiveExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

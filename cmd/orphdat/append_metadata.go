package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/whatsoevan/orphdat/internal/metadata"
	"github.com/whatsoevan/orphdat/internal/walker"
)

// newAppendMetadataCmd builds append-metadata: write keyword/rating tags
// to every file under paths via exiftool, after copying each original
// aside as <file>.bak. Unlike the other verbs, this one needs exiftool
// specifically (keyword/rating writes only exist through its write
// path; the goexif fallback is read-only), so it fails fast if the
// binary isn't on PATH rather than silently falling back.
func newAppendMetadataCmd(flags *globalFlags) *cobra.Command {
	var keywords []string
	var rating int
	var noBackup bool

	cmd := &cobra.Command{
		Use:   "append-metadata [paths...]",
		Short: "Write keyword/rating tags via exiftool",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(keywords) == 0 && !cmd.Flags().Changed("rating") {
				return fmt.Errorf("append-metadata: at least one of --keywords or --rating is required")
			}

			paths := resolvePaths(args)
			rc, err := newRunContext(flags, paths)
			if err != nil {
				return err
			}
			defer rc.close()

			exiftoolPath := rc.oc.Config.ExifToolPath
			if exiftoolPath == "" {
				exiftoolPath = "exiftool"
			}
			if _, err := exec.LookPath(exiftoolPath); err != nil {
				return fmt.Errorf("append-metadata: exiftool not found on PATH (required for tag writes): %w", err)
			}

			tags := metadata.Tags{}
			if len(keywords) > 0 {
				tags["IPTC:Keywords"] = strings.Join(keywords, ", ")
			}
			if cmd.Flags().Changed("rating") {
				tags["XMP:Rating"] = fmt.Sprintf("%d", rating)
			}

			extractor := metadata.ExifToolExtractor{Path: exiftoolPath}

			var files []string
			if err := walker.WalkPatterns(paths, walker.Visitor{
				OnFile: func(full, root string) {
					files = append(files, full)
				},
			}); err != nil {
				return fmt.Errorf("append-metadata: walk: %w", err)
			}

			written := 0
			for _, f := range files {
				if rc.oc.Config.DryRun {
					rc.logger.Info("would write tags to %s", f)
					continue
				}
				if !noBackup {
					if err := backupFile(f); err != nil {
						rc.logger.Error("%s: backup failed: %v", f, err)
						continue
					}
				}
				if err := extractor.WriteTags(f, tags); err != nil {
					rc.logger.Error("%s: %v", f, err)
					continue
				}
				rc.logger.Verbose("wrote tags to %s", f)
				written++
			}

			rc.logger.Success("wrote tags to %d files", written)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&keywords, "keywords", nil, "keyword to add (repeatable)")
	cmd.Flags().IntVar(&rating, "rating", 0, "star rating (0-5)")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "skip writing a .bak copy before modifying tags")
	return cmd
}

// backupFile copies path to path+".bak" via a tmp-then-rename sequence in
// the destination directory, so a crash mid-copy never leaves a partial
// .bak shadowing the original.
func backupFile(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".orphdat-bak-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	info, err := os.Stat(path)
	if err == nil {
		os.Chmod(tmpName, info.Mode())
	}

	return os.Rename(tmpName, path+".bak")
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"chamada/internal/clients"
	"chamada/internal/model"
	"chamada/internal/state"
)

func (c *cli) filesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "files",
		Aliases: []string{"arquivos"},
		Short:   "Manage student attachments",
	}
	cmd.AddCommand(
		c.filesListCmd(),
		c.filesStatsCmd(),
		c.filesUploadCmd(),
		c.filesDownloadCmd(),
		c.filesRenameCmd(),
		c.filesDeleteCmd(),
	)
	return cmd
}

func (c *cli) files(studentID string) *state.Files {
	return state.NewFiles(c.app.api.Files, model.ID(studentID), c.app.cfg.MaxUploadBytes, c.app.logger)
}

func printFiles(w io.Writer, files []model.StudentFile) error {
	table := newTable(w, "ID\tNAME\tTYPE\tSIZE\tUPLOADED")
	for _, file := range files {
		uploaded := file.UploadDate
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n", file.ID, file.OriginalName, file.MimeType, formatSize(file.Size), formatDate(&uploaded))
	}
	return table.Flush()
}

func (c *cli) filesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list STUDENT_ID",
		Short: "List the files of a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := c.files(args[0])
			if err := files.FetchAll(cmd.Context()); err != nil {
				return err
			}
			snap := files.Snapshot()
			if err := loadErr(snap); err != nil {
				return err
			}
			return printFiles(cmd.OutOrStdout(), snap.Items)
		},
	}
}

func (c *cli) filesStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats STUDENT_ID",
		Short: "Summarize the files of a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := c.files(args[0])
			if err := files.FetchStats(cmd.Context()); err != nil {
				return err
			}
			if err := loadErr(files.Snapshot()); err != nil {
				return err
			}
			stats := files.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "files: %d\ntotal size: %s\nlast upload: %s\n",
				stats.TotalFiles, formatSize(stats.TotalSize), formatDate(stats.LastUpload))
			return nil
		},
	}
}

func (c *cli) filesUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload STUDENT_ID PATH...",
		Short: "Attach files to a student",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads := make([]clients.UploadFile, 0, len(args)-1)
			for _, path := range args[1:] {
				upload, err := clients.FileFromPath(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, upload)
			}
			result, err := c.files(args[0]).Upload(cmd.Context(), uploads...)
			for _, rejection := range result.Rejected {
				fmt.Fprintln(cmd.ErrOrStderr(), "skipped:", rejection.Message())
			}
			if err != nil {
				return err
			}
			if len(result.Uploaded) == 0 {
				return errors.New("nothing uploaded")
			}
			return printFiles(cmd.OutOrStdout(), result.Uploaded)
		},
	}
}

func (c *cli) filesDownloadCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "download FILE_ID",
		Short: "Save a file; use -o - to write it to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			download, err := c.files("").Download(cmd.Context(), model.ID(args[0]))
			if err != nil {
				return err
			}
			defer download.Close()

			if out == "-" {
				_, err := io.Copy(cmd.OutOrStdout(), download.Body)
				return err
			}
			if out == "" {
				out = filepath.Base(download.Filename)
				if download.Filename == "" {
					out = args[0]
				}
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			written, err := io.Copy(f, download.Body)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved %s (%s)\n", out, formatSize(model.ByteSize(written)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "destination path (default: the original file name)")
	return cmd
}

func (c *cli) filesRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename FILE_ID NAME",
		Short: "Rename a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := c.files("").Rename(cmd.Context(), model.ID(args[0]), args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "renamed %s to %s\n", file.ID, file.OriginalName)
			return nil
		},
	}
}

func (c *cli) filesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete FILE_ID",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.files("").Delete(cmd.Context(), model.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted file %s\n", args[0])
			return nil
		},
	}
}

package main

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"imgvault/internal/api"
	"imgvault/internal/format"
)

const defaultPollInterval = time.Second

func newUploadCmd(opts *cliOptions) *cobra.Command {
	var (
		mimeType string
		wait     bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload an image file",
		Args:  requireExactlyArgs(1, "file path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			if mimeType == "" {
				mimeType = mime.TypeByExtension(filepath.Ext(path))
			}

			queued, err := opts.client().Upload(cmd.Context(), filepath.Base(path), mimeType, f)
			if err != nil {
				return err
			}
			return finishUpload(cmd, opts, queued, wait)
		},
	}

	cmd.Flags().StringVar(&mimeType, "type", "", "declared MIME type (default guessed from the file extension)")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the upload to complete")
	return cmd
}

func newUploadURLCmd(opts *cliOptions) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "upload-url <url>",
		Short: "Ask the server to fetch and store a remote image",
		Args:  requireExactlyArgs(1, "url is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			queued, err := opts.client().UploadFromURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return finishUpload(cmd, opts, queued, wait)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the upload to complete")
	return cmd
}

func finishUpload(cmd *cobra.Command, opts *cliOptions, queued api.QueuedResponse, wait bool) error {
	if !wait {
		return writeOutput(cmd, opts, queued, format.Fields{
			{Key: "job_id", Value: queued.JobID},
			{Key: "status_url", Value: queued.StatusURL},
		})
	}
	status, err := opts.client().WaitJob(cmd.Context(), queued.JobID, defaultPollInterval)
	if err != nil {
		return err
	}
	return writeJobStatus(cmd, opts, status)
}

func newJobCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show the status of an upload job",
		Args:  requireJobID,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := opts.client().Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJobStatus(cmd, opts, status)
		},
	}
}

func writeJobStatus(cmd *cobra.Command, opts *cliOptions, status api.JobStatus) error {
	fields := format.Fields{{Key: "status", Value: string(status.Status)}}
	if resp := status.Response; resp != nil {
		fields = append(fields,
			format.Field{Key: "id", Value: resp.ID},
			format.Field{Key: "url", Value: resp.URL},
			format.Field{Key: "size", Value: resp.Size},
			format.Field{Key: "mime_type", Value: resp.MimeType},
		)
	}
	fields = append(fields, format.Field{Key: "error", Value: status.Error})
	return writeOutput(cmd, opts, status, fields)
}

func newInfoCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info <image-id>",
		Short: "Show the size and type of a stored image",
		Args:  requireImageID,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := opts.client().Info(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeOutput(cmd, opts, info, format.Fields{
				{Key: "id", Value: info.ID},
				{Key: "size", Value: info.Size},
				{Key: "mime_type", Value: info.MimeType},
			})
		},
	}
}

func newFetchCmd(opts *cliOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "fetch <image-id>",
		Short: "Download and decrypt a stored image",
		Args:  requireImageID,
		RunE: func(cmd *cobra.Command, args []string) error {
			var w io.Writer = cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			contentType, err := opts.client().Fetch(cmd.Context(), args[0], w)
			if err != nil {
				if output != "" && output != "-" {
					_ = os.Remove(output)
				}
				return err
			}
			if output != "" && output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "saved %s (%s)\n", output, contentType)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the image to a file instead of stdout")
	return cmd
}

func newDeleteCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <image-id>",
		Short: "Delete a stored image (requires ADMIN_SECRET)",
		Args:  requireImageID,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := opts.cfg.AdminSecret
			if secret == "" {
				return fmt.Errorf("admin secret is required; set ADMIN_SECRET or admin_secret")
			}
			resp, err := opts.client().AdminDelete(cmd.Context(), args[0], secret)
			if err != nil {
				return err
			}
			return writeOutput(cmd, opts, resp, format.Fields{
				{Key: "id", Value: resp.ID},
				{Key: "deleted", Value: resp.Deleted},
			})
		},
	}
}

func newHealthCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server and backend health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := opts.client().Health(cmd.Context())
			if err != nil {
				return err
			}
			if err := writeOutput(cmd, opts, health, format.Fields{
				{Key: "status", Value: health.Status},
				{Key: "version", Value: health.Version},
				{Key: "timestamp", Value: time.Unix(health.Timestamp, 0).UTC().Format(time.RFC3339)},
			}); err != nil {
				return err
			}
			if health.Status != "healthy" {
				return fmt.Errorf("server reports %s", health.Status)
			}
			return nil
		},
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/koustreak/bucketfs/internal/errs"
	"github.com/koustreak/bucketfs/internal/fsys"
	"github.com/koustreak/bucketfs/internal/server"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"
)

func newMkdirCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir DIR...",
		Short: "Create directories and their parents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, dir := range args {
				if err := a.fs.MakeDirs(cmd.Context(), dir); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newLsCommand(a *app) *cobra.Command {
	var onlyFiles bool
	cmd := &cobra.Command{
		Use:   "ls [DIR]",
		Short: "List a directory, newest entries first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) == 1 {
				dir = args[0]
			}
			names, err := a.fs.ListDir(cmd.Context(), dir, onlyFiles)
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&onlyFiles, "files", "f", false, "list files only")
	return cmd
}

func newRmCommand(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm PATH...",
		Short: "Remove files or directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := a.fs.Remove(cmd.Context(), path, recursive); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")
	return cmd
}

func newCpCommand(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "cp SOURCE DEST",
		Short: "Copy a file or, with -r, a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fs.Copy(cmd.Context(), args[0], args[1], recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "copy directories recursively")
	return cmd
}

func newMvCommand(a *app) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "mv SOURCE DEST",
		Short: "Move a file or, with -r, a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.fs.Move(cmd.Context(), args[0], args[1], recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "move directories recursively")
	return cmd
}

// statOutput is what stat and latest print.
type statOutput struct {
	Kind         string            `yaml:"kind" json:"kind"`
	Name         string            `yaml:"name" json:"name"`
	Path         string            `yaml:"path" json:"path"`
	IsDir        bool              `yaml:"is_dir" json:"is_dir"`
	LastModified time.Time         `yaml:"last_modified" json:"last_modified"`
	Size         int64             `yaml:"size" json:"size"`
	Metadata     map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

func newStatOutput(obj fsys.Object) statOutput {
	meta := obj.Meta()
	return statOutput{
		Kind:         obj.Kind().String(),
		Name:         obj.Name(),
		Path:         obj.FullPath(),
		IsDir:        meta.IsDir,
		LastModified: meta.LastModified,
		Size:         meta.Size,
		Metadata:     meta.User,
	}
}

func printObject(w io.Writer, format string, obj fsys.Object) error {
	out := newStatOutput(obj)
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		return errs.Newf(errs.ErrKindInvalidOperand, "unknown output format %q (must be yaml or json)", format)
	}
}

func newStatCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "stat PATH",
		Short: "Describe a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := a.fs.Describe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printObject(cmd.OutOrStdout(), format, obj)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func newCatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cat FILE",
		Short: "Print a file's content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			obj, err := a.fs.Stat(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			f, ok := obj.(*fsys.File)
			if !ok {
				return errs.Newf(errs.ErrKindInvalidOperand, "%s is a directory", args[0])
			}
			_, err = cmd.OutOrStdout().Write(f.Data)
			return err
		},
	}
}

func newPutCommand(a *app) *cobra.Command {
	var meta map[string]string
	cmd := &cobra.Command{
		Use:   "put SOURCE DEST",
		Short: "Upload a local file, or standard input when SOURCE is -",
		Long: "Upload a local file. A DEST directory keeps the source file name. " +
			"With SOURCE set to -, standard input is read and DEST must be a file path.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] != "-" {
				return a.fs.PutFile(cmd.Context(), args[1], args[0], meta)
			}
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return errs.Wrap(errs.ErrKindInvalidOperand, "failed to read standard input", err)
			}
			return a.fs.PutData(cmd.Context(), args[1], data, meta)
		},
	}
	cmd.Flags().StringToStringVarP(&meta, "meta", "m", nil, "custom metadata key=value pairs")
	return cmd
}

func newLatestCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "latest DIR",
		Short: "Describe the most recently modified file of a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.fs.LastObject(cmd.Context(), args[0])
			if err != nil || f == nil {
				return err
			}
			return printObject(cmd.OutOrStdout(), format, f)
		},
	}
	cmd.Flags().StringVarP(&format, "output", "o", "yaml", "output format (yaml, json)")
	return cmd
}

func newTruncateCommand(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "truncate",
		Short: "Delete every bucket and everything in it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errs.New(errs.ErrKindInvalidOperand, "truncate deletes every bucket; pass --yes to confirm")
			}
			return a.fs.Truncate(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all data")
	return cmd
}

func newURLCommand(a *app) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "url FILE",
		Short: "Print a presigned download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := a.fs.PresignURL(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "how long the URL stays valid")
	return cmd
}

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the filesystem over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Server
			if cmd.Flags().Changed("addr") {
				cfg.Addr = addr
			}
			srv := server.New(a.fs, cfg, server.WithLogger(a.log), server.WithGatherer(a.registry))
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

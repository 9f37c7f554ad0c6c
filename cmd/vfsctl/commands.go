package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/vfs/fs"
)

func parseArg(raw string) (fs.Resource, error) {
	return fs.ParseResource(raw)
}

var lsCmd = &cobra.Command{
	Use:   "ls <uri>",
	Short: "List a directory's immediate children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, err := parseArg(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Dispose()

		stat, err := svc.Resolve(ctx, resource, fs.ResolveOptions{})
		if err != nil {
			return err
		}
		for _, child := range stat.Children {
			kind := "file"
			if child.IsDirectory {
				kind = "dir"
			}
			fmt.Printf("%-4s %10d  %s\n", kind, child.Size, child.Name)
		}
		return nil
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <uri>",
	Short: "Print a file's contents to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, err := parseArg(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Dispose()

		result, err := svc.ReadFile(ctx, resource, fs.ReadOptions{})
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(result.Value)
		return err
	},
}

var writeCmd = &cobra.Command{
	Use:   "write <uri>",
	Short: "Write stdin to a file, creating it and its parents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, err := parseArg(args[0])
		if err != nil {
			return err
		}
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Dispose()

		_, err = svc.WriteFile(ctx, resource, fs.BytesInput(data), fs.WriteOptions{Create: true, Overwrite: true})
		return err
	},
}

var cpOverwrite bool
var cpCmd = &cobra.Command{
	Use:   "cp <src-uri> <dst-uri>",
	Short: "Copy a file or folder, across providers if needed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := parseArg(args[0])
		if err != nil {
			return err
		}
		dst, err := parseArg(args[1])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Dispose()

		_, err = svc.Copy(ctx, src, dst, cpOverwrite)
		return err
	},
}

var mvOverwrite bool
var mvCmd = &cobra.Command{
	Use:   "mv <src-uri> <dst-uri>",
	Short: "Move a file or folder, across providers if needed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := parseArg(args[0])
		if err != nil {
			return err
		}
		dst, err := parseArg(args[1])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Dispose()

		_, err = svc.Move(ctx, src, dst, mvOverwrite)
		return err
	},
}

var rmRecursive bool
var rmTrash bool
var rmCmd = &cobra.Command{
	Use:   "rm <uri>",
	Short: "Delete a file or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, err := parseArg(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Dispose()

		return svc.Del(ctx, resource, fs.DeleteOptions{Recursive: rmRecursive, UseTrash: rmTrash})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <uri>",
	Short: "Create a directory and any missing ancestors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, err := parseArg(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Dispose()

		_, err = svc.CreateFolder(ctx, resource)
		return err
	},
}

var watchRecursive bool
var watchExcludes []string
var watchCmd = &cobra.Command{
	Use:   "watch <uri>",
	Short: "Watch a resource and print change events until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resource, err := parseArg(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		svc, err := newService(ctx)
		if err != nil {
			return err
		}
		defer svc.Dispose()

		sub := svc.OnFileChanges().On(func(events []fs.FileChangeEvent) {
			for _, ev := range events {
				fmt.Printf("%s %s\n", changeTypeName(ev.Type), ev.Resource.String())
			}
		})
		defer sub.Dispose()

		handle, err := svc.Watch(ctx, resource, fs.WatchOptions{Recursive: watchRecursive, Excludes: watchExcludes})
		if err != nil {
			return err
		}
		defer handle.Dispose()

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		<-sigCtx.Done()
		return nil
	},
}

func changeTypeName(t fs.ChangeType) string {
	switch t {
	case fs.ChangeAdded:
		return "added"
	case fs.ChangeDeleted:
		return "deleted"
	default:
		return "updated"
	}
}

func init() {
	cpCmd.Flags().BoolVar(&cpOverwrite, "overwrite", false, "overwrite an existing target")
	mvCmd.Flags().BoolVar(&mvOverwrite, "overwrite", false, "overwrite an existing target")
	rmCmd.Flags().BoolVar(&rmRecursive, "recursive", false, "delete a non-empty directory")
	rmCmd.Flags().BoolVar(&rmTrash, "trash", false, "use the provider's trash instead of a hard delete")
	watchCmd.Flags().BoolVar(&watchRecursive, "recursive", true, "watch subdirectories too")
	watchCmd.Flags().StringSliceVar(&watchExcludes, "exclude", nil, "glob patterns to exclude")
}

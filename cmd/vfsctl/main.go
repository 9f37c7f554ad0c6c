// Command vfsctl is a thin demonstration front end over the VFS core: it
// registers a mem:// and a disk:// provider and drives the service's
// public operations from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusfs/vfs/internal/vfsconfig"
)

var opt = vfsconfig.Default()

var rootCmd = &cobra.Command{
	Use:           "vfsctl",
	Short:         "Drive the VFS core from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&diskRoot, "disk-root", "", "native directory backing the disk:// scheme (default: a temp dir)")
	opt.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vfsctl:", err)
		os.Exit(1)
	}
}

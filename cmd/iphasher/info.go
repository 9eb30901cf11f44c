package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/amplitudesxd/IPHasher/hasher"
	"github.com/amplitudesxd/IPHasher/search"
)

func newBackendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List digest backends and the one auto-detection picks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			detected := hasher.Detect().Name()
			a.out.Infof("CPU: %s", hasher.CPUSummary())
			for _, name := range hasher.Names() {
				mark := ""
				if name == detected {
					mark = " (auto)"
				}
				a.out.Detail("%s%s", name, mark)
			}
			if search.GPUAvailable {
				a.out.Infof("GPU: available")
			} else {
				a.out.Infof("GPU: not built in (--device -1 emulates on CPU)")
			}
			return nil
		},
	}
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "iphasher v%s (%s, %s/%s)\n", AppVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

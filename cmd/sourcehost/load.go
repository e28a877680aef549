package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Discover and load every plugin under --plugin-dir, printing their ABI mode and capabilities",
	RunE:  runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	manager, err := loadPluginDir(cmd.Context())
	if err != nil {
		return err
	}
	defer manager.CloseAll(cmd.Context())

	names := manager.List()
	if len(names) == 0 {
		fmt.Println("no plugins loaded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tMODE\tHOME\tLISTINGS\tIMAGE PROC\tBASIC LOGIN\tWEB LOGIN")
	for _, name := range names {
		inst, ok := manager.Get(name)
		if !ok {
			continue
		}
		caps := inst.Capabilities()
		fmt.Fprintf(w, "%s\t%s\t%v\t%v\t%v\t%v\t%v\n",
			name, inst.Mode(), caps.HasHome, caps.HasListingProvider,
			caps.HasImageProcessor, caps.HandlesBasicLogin, caps.HandlesWebLogin)
	}
	return w.Flush()
}

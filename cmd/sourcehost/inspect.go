package main

import (
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/goatkit/sourcehost/internal/pluginhost"
)

// inspectDump is the shape written by `sourcehost inspect`: a point-in-time
// view of a loaded plugin's ABI mode, capabilities, and sandbox counters,
// encoded as CBOR so it can be piped into another tool or archived
// alongside a bug report without the ambiguity JSON's number types have.
type inspectDump struct {
	Name         string                     `cbor:"name"`
	Mode         string                     `cbor:"mode"`
	Capabilities pluginhost.Capabilities    `cbor:"capabilities"`
	TableLen     int                        `cbor:"table_len"`
	Stats        pluginhost.StatsSnapshot   `cbor:"stats"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <plugin>",
	Short: "Dump a loaded plugin's ABI mode, capabilities, and sandbox stats as CBOR",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	name := args[0]

	manager, err := loadPluginDir(cmd.Context())
	if err != nil {
		return err
	}
	defer manager.CloseAll(cmd.Context())

	inst, ok := manager.Get(name)
	if !ok {
		return fmt.Errorf("plugin %q is not loaded from %s", name, flagPluginDir)
	}

	dump := inspectDump{
		Name:         name,
		Mode:         inst.Mode().String(),
		Capabilities: inst.Capabilities(),
		TableLen:     inst.TableLen(),
		Stats:        inst.Stats(),
	}

	raw, err := cbor.Marshal(dump)
	if err != nil {
		return fmt.Errorf("encode inspect dump: %w", err)
	}
	_, err = os.Stdout.Write(raw)
	return err
}

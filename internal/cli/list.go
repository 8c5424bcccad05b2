package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/yourorg/hubsync/internal/orchestrator"
	"github.com/yourorg/hubsync/internal/types"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Hub      string
	PageSize int
}

func newListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the device ids of a registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			side := types.HubSide(opts.Hub)
			if side != types.HubSource && side != types.HubDestination {
				return WrapExitError(ExitCommandError, "invalid flags",
					fmt.Errorf("hub %q: must be source or destination", opts.Hub))
			}
			h, err := openHub(opts.Config, side, opts.Log)
			if err != nil {
				return WrapExitError(ExitCommandError, "open registry", err)
			}
			if err := printDevices(cmd, h, opts.PageSize, opts.Format); err != nil {
				return WrapExitError(outcomeExitForErr(cmd.Context().Err()), "list devices", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Hub, "hub", string(types.HubSource), "registry to list (source|destination)")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 100, "device query page size")
	return cmd
}

// printDevices writes one device id per line (text) or one identity JSON
// object per line (json).
func printDevices(cmd *cobra.Command, h hub, pageSize int, format string) error {
	w := cmd.OutOrStdout()
	asJSON := format == "json"
	_, err := orchestrator.ListDevices(cmd.Context(), h.query(orchestrator.DeviceQuery, pageSize), func(d types.DeviceIdentity) error {
		if asJSON {
			return json.NewEncoder(w).Encode(d)
		}
		_, err := fmt.Fprintln(w, d.DeviceID)
		return err
	})
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package reset

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/homegw/homegw-rt/cmd/feedback"
	"github.com/homegw/homegw-rt/cmd/homegw-rt/internal/client"
	"github.com/homegw/homegw-rt/internal/config"
)

func NewResetCmd(cfg config.Configuration) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <pin>",
		Short: "Pulse the external reset line of a pin",
		Long:  "Pulse the external reset line of a pin.\n\nThe line is held asserted for one second by the running daemon.",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			c := client.New(cfg.SocketPath().String())
			resp, err := c.Reset(cmd.Context(), args[0])
			if err != nil {
				feedback.FatalError(err, feedback.DaemonExitCode(err))
			}
			feedback.PrintResult(resetResult{Pin: resp.Pin, Status: resp.Status})
		},
	}
}

type resetResult struct {
	Pin    string `json:"pin"`
	Status string `json:"status"`
}

func (r resetResult) String() string {
	return fmt.Sprintf("Reset of %s started", r.Pin)
}

func (r resetResult) Data() any {
	return r
}

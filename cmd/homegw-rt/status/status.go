package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/homegw/homegw-rt/cmd/feedback"
	"github.com/homegw/homegw-rt/cmd/homegw-rt/internal/client"
	"github.com/homegw/homegw-rt/internal/api/models"
	"github.com/homegw/homegw-rt/internal/config"
	"github.com/homegw/homegw-rt/internal/helpers"
	"github.com/homegw/homegw-rt/pkg/tablestyle"
)

func NewStatusCmd(cfg config.Configuration) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the configured pins and the pending resets of the running daemon",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			c := client.New(cfg.SocketPath().String())
			resp, err := c.Status(cmd.Context())
			if err != nil {
				feedback.FatalError(err, feedback.DaemonExitCode(err))
			}
			feedback.PrintResult(statusResult{resp})
		},
	}
}

type statusResult struct {
	models.StatusResponse
}

func (r statusResult) Data() any {
	return r.StatusResponse
}

func (r statusResult) String() string {
	remaining := make(map[string]time.Duration, len(r.Pending))
	for _, p := range r.Pending {
		remaining[p.Pin] = p.Remaining
	}

	t := tablestyle.New("Pin", "State", "Remaining")
	for _, pin := range r.ResetPins {
		if left, ok := remaining[pin]; ok {
			t.AppendRow(table.Row{pin, "resetting", left.Round(time.Millisecond)})
		} else {
			t.AppendRow(table.Row{pin, "idle", "-"})
		}
	}

	var b strings.Builder
	if len(r.ResetPins) == 0 {
		b.WriteString("No reset pins configured\n")
	} else {
		b.WriteString(t.Render())
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nBlink lines: %d\nLoop iterations: %d", r.BlinkLines, r.Iterations)
	if r.Memory != nil && r.Memory.Total > 0 {
		fmt.Fprintf(&b, "\nMemory used: %s of %s (%.0f%%)",
			helpers.ToHumanMiB(r.Memory.Used), helpers.ToHumanMiB(r.Memory.Total), float64(r.Memory.Used)/float64(r.Memory.Total)*100)
	}
	return b.String()
}

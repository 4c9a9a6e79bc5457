package version

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/homegw/homegw-rt/cmd/feedback"
	"github.com/homegw/homegw-rt/cmd/homegw-rt/internal/client"
	"github.com/homegw/homegw-rt/internal/config"
)

const ProgramName = "homegw-rt"

func NewVersionCmd(cfg config.Configuration, clientVersion string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of homegw-rt",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			socket := cfg.SocketPath().String()
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Second)
			defer cancel()

			daemonVersion, err := client.New(socket).Version(ctx)
			if err != nil {
				feedback.Warnf("Warning: cannot get the running daemon version on %s", socket)
			}

			feedback.PrintResult(versionResult{
				Name:          ProgramName,
				Version:       clientVersion,
				DaemonVersion: daemonVersion,
			})
		},
	}
	return cmd
}

type versionResult struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	DaemonVersion string `json:"daemon_version,omitempty"`
}

func (r versionResult) String() string {
	resultMessage := fmt.Sprintf("%s version %s", ProgramName, r.Version)

	if r.DaemonVersion != "" {
		resultMessage = fmt.Sprintf("%s\ndaemon version: %s",
			resultMessage, r.DaemonVersion)
	}
	return resultMessage
}

func (r versionResult) Data() any {
	return r
}

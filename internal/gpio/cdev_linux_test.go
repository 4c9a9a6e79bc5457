//go:build linux

package gpio

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/warthog618/go-gpiocdev"

	"github.com/homegw/homegw-rt/internal/config"
)

func TestLineReqOptions(t *testing.T) {
	testCases := []struct {
		name    string
		req     LineRequest
		want    []gpiocdev.LineReqOption
		wantErr error
	}{
		{
			name: "input",
			req:  LineRequest{Direction: config.DirectionIn, Drive: config.DrivePushPull, Consumer: Consumer},
			want: []gpiocdev.LineReqOption{gpiocdev.WithConsumer(Consumer), gpiocdev.AsInput},
		},
		{
			name:    "open drain input",
			req:     LineRequest{Direction: config.DirectionIn, Drive: config.DriveOpenDrain, Consumer: Consumer},
			wantErr: ErrInputDrive,
		},
		{
			name: "push pull output high",
			req:  LineRequest{Direction: config.DirectionOut, Drive: config.DrivePushPull, InitialValue: 1, Consumer: Consumer},
			want: []gpiocdev.LineReqOption{gpiocdev.WithConsumer(Consumer), gpiocdev.AsOutput(1)},
		},
		{
			name: "open drain output",
			req:  LineRequest{Direction: config.DirectionOut, Drive: config.DriveOpenDrain, Consumer: Consumer},
			want: []gpiocdev.LineReqOption{gpiocdev.WithConsumer(Consumer), gpiocdev.AsOutput(0), gpiocdev.AsOpenDrain},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := lineReqOptions(tc.req)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				require.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestLineReqOptionsNeverMakesInputsOutputs(t *testing.T) {
	for _, drive := range []config.Drive{config.DrivePushPull, config.DriveOpenDrain} {
		opts, _ := lineReqOptions(LineRequest{Direction: config.DirectionIn, Drive: drive})
		for _, opt := range opts {
			require.NotEqual(t, gpiocdev.AsOpenDrain, opt)
			_, isOutput := opt.(gpiocdev.OutputOption)
			require.False(t, isOutput)
		}
	}
}

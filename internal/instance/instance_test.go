package instance

import (
	"os"
	"testing"

	"github.com/arduino/go-paths-helper"
	"github.com/stretchr/testify/require"
	"go.bug.st/f"
)

func TestAcquireWritesPid(t *testing.T) {
	runDir := paths.New(t.TempDir()).Join("run")

	inst, err := Acquire(runDir)
	require.NoError(t, err)
	require.True(t, runDir.Join("homegw-rt.lock").Exist())
	require.Equal(t, os.Getpid(), f.Must(ReadPID(runDir)))

	require.NoError(t, inst.Release())
	require.False(t, runDir.Join("homegw-rt.pid").Exist())
}

func TestAcquireIsExclusive(t *testing.T) {
	runDir := paths.New(t.TempDir())

	first, err := Acquire(runDir)
	require.NoError(t, err)

	_, err = Acquire(runDir)
	require.ErrorIs(t, err, ErrAlreadyRunning)
	require.Contains(t, err.Error(), "pid")

	require.NoError(t, first.Release())
	second, err := Acquire(runDir)
	require.NoError(t, err)
	require.NoError(t, second.Release())
}

func TestReleaseToleratesMissingPidFile(t *testing.T) {
	runDir := paths.New(t.TempDir())
	inst, err := Acquire(runDir)
	require.NoError(t, err)

	require.NoError(t, runDir.Join("homegw-rt.pid").Remove())
	require.NoError(t, inst.Release())
}

package reset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResetResult(t *testing.T) {
	r := resetResult{Pin: "modem", Status: "ok"}
	require.Equal(t, "Reset of modem started", r.String())
	require.Equal(t, r, r.Data())
}

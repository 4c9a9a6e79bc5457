package helpers

import (
	"strconv"
)

func ToHumanMiB(bytes uint64) string {
	return strconv.FormatFloat(float64(bytes)/(1024.0*1024.0), 'f', 2, 64) + "MiB"
}

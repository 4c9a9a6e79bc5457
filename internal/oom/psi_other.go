//go:build !linux

package oom

import "errors"

func OpenPSI(path, trigger string) (Monitor, error) {
	return nil, errors.New("pressure stall information is only available on linux")
}

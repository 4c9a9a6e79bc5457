package config

import (
	"fmt"

	"github.com/arduino/go-paths-helper"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "HOMEGW_RT"

type environment struct {
	SocketPath    string `envconfig:"SOCKET_PATH" default:"/run/homegw-rt.sock"`
	GPIODevDir    string `envconfig:"GPIO_DEV_DIR" default:"/dev"`
	KmsgPath      string `envconfig:"KMSG_PATH" default:"/dev/kmsg"`
	PSIMemoryPath string `envconfig:"PSI_MEMORY_PATH" default:"/proc/pressure/memory"`
	ProcDir       string `envconfig:"PROC_DIR" default:"/proc"`
	RunDir        string `envconfig:"RUN_DIR" default:"/run/homegw-rt"`
}

// Configuration holds the process-level settings. It is built once at
// startup and shared read-only.
type Configuration struct {
	socketPath    *paths.Path
	gpioDevDir    *paths.Path
	kmsgPath      *paths.Path
	psiMemoryPath *paths.Path
	procDir       *paths.Path
	runDir        *paths.Path
}

func NewFromEnv() (Configuration, error) {
	var env environment
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return Configuration{}, fmt.Errorf("failed to load config: %w", err)
	}

	var c Configuration
	for _, p := range []struct {
		dst  **paths.Path
		val  string
		name string
	}{
		{&c.socketPath, env.SocketPath, "SOCKET_PATH"},
		{&c.gpioDevDir, env.GPIODevDir, "GPIO_DEV_DIR"},
		{&c.kmsgPath, env.KmsgPath, "KMSG_PATH"},
		{&c.psiMemoryPath, env.PSIMemoryPath, "PSI_MEMORY_PATH"},
		{&c.procDir, env.ProcDir, "PROC_DIR"},
		{&c.runDir, env.RunDir, "RUN_DIR"},
	} {
		abs, err := absPath(p.val)
		if err != nil {
			return Configuration{}, fmt.Errorf("%s_%s: %w", envPrefix, p.name, err)
		}
		*p.dst = abs
	}
	return c, nil
}

func absPath(s string) (*paths.Path, error) {
	p := paths.New(s)
	if p == nil {
		return nil, fmt.Errorf("empty path")
	}
	if p.IsAbs() {
		return p, nil
	}
	wd, err := paths.Getwd()
	if err != nil {
		return nil, err
	}
	return wd.JoinPath(p), nil
}

// SocketPath is where the front end listens when no listener is inherited.
func (c *Configuration) SocketPath() *paths.Path {
	return c.socketPath
}

func (c *Configuration) GPIODevDir() *paths.Path {
	return c.gpioDevDir
}

func (c *Configuration) KmsgPath() *paths.Path {
	return c.kmsgPath
}

func (c *Configuration) PSIMemoryPath() *paths.Path {
	return c.psiMemoryPath
}

func (c *Configuration) ProcDir() *paths.Path {
	return c.procDir
}

// RunDir holds the instance lock and the pid file.
func (c *Configuration) RunDir() *paths.Path {
	return c.runDir
}

package bridge

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Default endpoint of the accelerator process. One logical port per channel.
const (
	DefaultHost         = "127.0.0.1"
	DefaultCmdPort      = 6000
	DefaultDMAReadPort  = 6001
	DefaultDMAWritePort = 6002
)

// Config describes where the accelerator endpoint listens and how long
// connection establishment may take.
type Config struct {
	Host         string
	CmdPort      int
	DMAReadPort  int
	DMAWritePort int
	DialTimeout  time.Duration
}

// DefaultConfig returns the fixed loopback endpoint the accelerator process
// listens on by default.
func DefaultConfig() Config {
	return Config{
		Host:         DefaultHost,
		CmdPort:      DefaultCmdPort,
		DMAReadPort:  DefaultDMAReadPort,
		DMAWritePort: DefaultDMAWritePort,
		DialTimeout:  3 * time.Second,
	}
}

// ConfigFromEnv builds a Config from the environment, falling back to the
// defaults. A .env file in the working directory is honored if present.
// Recognized variables: COSIM_HOST, COSIM_CMD_PORT, COSIM_DMA_READ_PORT,
// COSIM_DMA_WRITE_PORT.
func ConfigFromEnv() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if host := os.Getenv("COSIM_HOST"); host != "" {
		cfg.Host = host
	}
	cfg.CmdPort = envPort("COSIM_CMD_PORT", cfg.CmdPort)
	cfg.DMAReadPort = envPort("COSIM_DMA_READ_PORT", cfg.DMAReadPort)
	cfg.DMAWritePort = envPort("COSIM_DMA_WRITE_PORT", cfg.DMAWritePort)

	return cfg
}

func envPort(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}

	port, err := strconv.Atoi(v)
	if err != nil || port <= 0 || port > 65535 {
		return fallback
	}

	return port
}

// CmdAddr returns the host:port of the command channel.
func (c Config) CmdAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.CmdPort))
}

// DMAReadAddr returns the host:port of the DMA read channel.
func (c Config) DMAReadAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.DMAReadPort))
}

// DMAWriteAddr returns the host:port of the DMA write channel.
func (c Config) DMAWriteAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.DMAWritePort))
}

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"fpi2c/bridge"
	"fpi2c/frontpanel"
	"fpi2c/i2c"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()

	app.Name = "i2cctl"
	app.Version = "0.1.0"
	app.Usage = "talk to I2C peripherals behind a register-mapped bus controller"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Value: "./configs/i2cctl.toml",
			Usage: "load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "device, d",
			Usage: "serial device path (overrides configuration)",
		},
		cli.BoolFlag{
			Name:  "verbose",
			Usage: "enable debug logging",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "read",
			Usage:     "read bytes from a device register",
			ArgsUsage: "DEV-ADDR REG-ADDR [COUNT]",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "pipe",
					Usage: "drain the data through the pipe-out FIFO",
				},
			},
			Action: runRead,
		},
		{
			Name:      "write",
			Usage:     "write bytes to a device register",
			ArgsUsage: "DEV-ADDR REG-ADDR BYTE...",
			Action:    runWrite,
		},
		{
			Name:   "scan",
			Usage:  "probe the bus for responding devices",
			Action: runScan,
		},
		{
			Name:   "reset",
			Usage:  "reset the bus controller",
			Action: runReset,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// setup loads configuration, opens the serial bridge and builds a
// controller on top of it. The returned closer owns the serial port.
func setup(c *cli.Context) (*i2c.Controller, io.Closer, error) {
	viper.SetConfigType("toml")
	viper.SetConfigFile(c.GlobalString("config"))
	if err := viper.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config: %w", err)
	}

	log.SetFormatter(&log.TextFormatter{DisableColors: true})
	if c.GlobalBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}

	device := c.GlobalString("device")
	if device == "" {
		device = viper.GetString("serial.device")
	}
	if device == "" {
		return nil, nil, fmt.Errorf("no serial device configured")
	}

	cfg := bridge.DefaultConfig(device)
	if baud := viper.GetInt("serial.baud"); baud != 0 {
		cfg.Baud = baud
	}

	b, closer, err := bridge.Open(cfg, log.StandardLogger())
	if err != nil {
		return nil, nil, err
	}

	eps, err := endpointsFromConfig()
	if err != nil {
		closer.Close()
		return nil, nil, err
	}

	ctrl, err := i2c.New(b, eps, i2c.WithLogger(log.StandardLogger()))
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return ctrl, closer, nil
}

func endpointsFromConfig() (frontpanel.I2CEndpoints, error) {
	var eps frontpanel.I2CEndpoints
	required := map[string]*frontpanel.Endpoint{
		"memstart": &eps.MemStart,
		"memwrite": &eps.MemWrite,
		"memread":  &eps.MemRead,
		"in":       &eps.In,
		"out":      &eps.Out,
		"start":    &eps.Start,
		"done":     &eps.Done,
		"reset":    &eps.Reset,
	}
	for name, ep := range required {
		v, err := endpointFromConfig(name)
		if err != nil {
			return eps, err
		}
		if v == nil {
			return eps, fmt.Errorf("config: missing endpoint %q", name)
		}
		*ep = *v
	}
	var err error
	if eps.FifoReset, err = endpointFromConfig("fiforeset"); err != nil {
		return eps, err
	}
	if eps.PipeOut, err = endpointFromConfig("pipeout"); err != nil {
		return eps, err
	}
	return eps, nil
}

func endpointFromConfig(name string) (*frontpanel.Endpoint, error) {
	key := "endpoints." + name
	if !viper.IsSet(key) {
		return nil, nil
	}
	addr := viper.GetInt(key + ".address")
	bit := viper.GetInt(key + ".bit")
	if addr < 0 || addr > 0xFF || bit < 0 || bit > 31 {
		return nil, fmt.Errorf("config: endpoint %q out of range (address %d, bit %d)", name, addr, bit)
	}
	return &frontpanel.Endpoint{Address: uint8(addr), Bit: uint8(bit)}, nil
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("bad byte value %q: %w", s, err)
	}
	return byte(v), nil
}

func runRead(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.NewExitError("usage: read DEV-ADDR REG-ADDR [COUNT]", 1)
	}
	devAddr, err := parseByte(c.Args().Get(0))
	if err != nil {
		return err
	}
	regAddr, err := parseByte(c.Args().Get(1))
	if err != nil {
		return err
	}
	n := 1
	if c.NArg() > 2 {
		if n, err = strconv.Atoi(c.Args().Get(2)); err != nil || n < 1 {
			return cli.NewExitError("COUNT must be a positive integer", 1)
		}
	}

	ctrl, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	var opts []i2c.ReadOption
	if c.Bool("pipe") {
		opts = append(opts, i2c.ViaPipe(true))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := ctrl.Read(ctx, devAddr<<1, []byte{regAddr}, n, opts...)
	if err != nil {
		return err
	}
	fmt.Println(hexBytes(data))
	return nil
}

func runWrite(c *cli.Context) error {
	if c.NArg() < 3 {
		return cli.NewExitError("usage: write DEV-ADDR REG-ADDR BYTE...", 1)
	}
	devAddr, err := parseByte(c.Args().Get(0))
	if err != nil {
		return err
	}
	regAddr, err := parseByte(c.Args().Get(1))
	if err != nil {
		return err
	}
	data := make([]byte, 0, c.NArg()-2)
	for _, arg := range c.Args()[2:] {
		b, err := parseByte(arg)
		if err != nil {
			return err
		}
		data = append(data, b)
	}

	ctrl, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := ctrl.Write(ctx, devAddr<<1, []byte{regAddr}, data); err != nil {
		return err
	}
	log.Infof("wrote %d bytes to 0x%02X reg 0x%02X", len(data), devAddr, regAddr)
	return nil
}

func runScan(c *cli.Context) error {
	ctrl, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var found []uint8
	for addr := uint8(0x03); addr <= 0x77; addr++ {
		// A bare-address single-byte read only completes when a device
		// acknowledges, so a poll timeout means no device.
		if _, err := ctrl.Read(ctx, addr<<1, nil, 1); err == nil {
			found = append(found, addr)
		} else if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if len(found) == 0 {
		fmt.Println("no devices found")
		return nil
	}
	for _, addr := range found {
		fmt.Printf("0x%02X\n", addr)
	}
	return nil
}

func runReset(c *cli.Context) error {
	ctrl, closer, err := setup(c)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := ctrl.Reset(); err != nil {
		return err
	}
	log.Info("controller reset")
	return nil
}

func hexBytes(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("0x%02X", b)
	}
	return strings.Join(parts, " ")
}

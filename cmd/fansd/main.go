// fansd is a standalone fan output controller. It owns up to four
// binary fan outputs on GPIO (or a simulated port pool), accepts
// M106/M107 command lines on stdin, links fans to a spindle enable
// signal and serves status over HTTP/WebSocket.
//
// Usage:
//
//	fansd [-config fansd.yaml]
//
// Console input:
//
//	M106 P<n> / M107 P<n>   fan on / off
//	M2, M30                 end of program
//	$<id>=<value>           write a setting (e.g. $455=0.5)
//	$$                      list settings
//	$RST                    restore setting defaults
//	$I                      build/options report
//	?                       realtime status report
//	0x8A or !               toggle fan 0
//
// This file may be distributed under the terms of the GNU GPLv3 license.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"grbl-fans-go/pkg/config"
	"grbl-fans-go/pkg/fans"
	"grbl-fans-go/pkg/hal"
	"grbl-fans-go/pkg/hal/gpio"
	"grbl-fans-go/pkg/host"
	"grbl-fans-go/pkg/log"
	"grbl-fans-go/pkg/mcode"
	"grbl-fans-go/pkg/nvs"
	"grbl-fans-go/pkg/reactor"
	"grbl-fans-go/pkg/spindle"
	"grbl-fans-go/pkg/status"
	"grbl-fans-go/pkg/web"
)

func main() {
	configFile := flag.String("config", "", "Configuration file (YAML)")
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	logger, cleanup, err := buildLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()
	log.SetDefault(logger)

	ports, closePorts, err := buildPorts(cfg.GPIO, logger)
	if err != nil {
		logger.Error("gpio setup failed: %v", err)
		os.Exit(1)
	}
	defer closePorts()

	r := reactor.New()
	r.Run()
	defer func() {
		r.End()
		r.Wait()
	}()

	spindles := spindle.NewSelector()
	spindles.Select(spindle.NewMemDriver("spindle"))

	h := host.New(r, ports, spindles, logger)
	h.SetMessageSink(func(msg string) { fmt.Println("[MSG:" + msg + "]") })

	sub := fans.New(h, nvs.NewFileStore(cfg.NVS.Path), fans.Config{
		Fans:        cfg.Fans.Count,
		Fan0Spindle: cfg.Fans.Fan0Spindle,
	})
	if err := sub.Load(); err != nil {
		logger.Error("fan subsystem failed to load: %v", err)
		os.Exit(1)
	}

	ctrl := &controller{host: h, sub: sub}

	if cfg.Web.Enable {
		srv := web.New(web.Config{
			Addr:       cfg.Web.Addr,
			Interval:   cfg.Web.Interval,
			Controller: ctrl,
			Logger:     logger,
		})
		go func() {
			if err := srv.Start(); err != nil {
				logger.WithError(err).Warn("web server stopped")
			}
		}()
		defer srv.Stop()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		consoleLoop(os.Stdin, ctrl, sub, h, logger)
		close(done)
	}()

	fmt.Print(h.ReportOptions(false))
	select {
	case <-sig:
	case <-done:
	}
	h.Reset()
}

func buildLogger(cfg config.LogConfig) (*log.Logger, func(), error) {
	logger := log.New("fansd")
	cleanup := func() {}

	logger.SetLevel(log.ParseLevel(cfg.Level))
	logger.SetFormat(log.ParseFormat(cfg.Format))

	if cfg.File != "" {
		w, err := log.NewRotatingFileWriter(log.RotationConfig{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.SetWriter(w)
		cleanup = func() { w.Close() }
	}
	return logger, cleanup, nil
}

func buildPorts(cfg config.GPIOConfig, logger *log.Logger) (hal.PortPool, func(), error) {
	if !cfg.Enable {
		logger.Info("using simulated port pool with %d outputs", cfg.SimPorts)
		return hal.NewMemPortPool(cfg.SimPorts), func() {}, nil
	}
	pool, err := gpio.Open(cfg.Chip, cfg.Consumer, cfg.Lines)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("gpio chip %s: %d output lines", cfg.Chip, len(cfg.Lines))
	return pool, func() { pool.Close() }, nil
}

// consoleLoop reads command lines until EOF.
func consoleLoop(in io.Reader, ctrl *controller, sub *fans.Subsystem, h *host.Host, logger *log.Logger) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch {
		case line == "?":
			fmt.Println("<" + stateName(h.State()) + h.RealtimeReport() + ">")
		case line == "!" || strings.EqualFold(line, "0x8a"):
			h.AccessoryOverride(host.CmdOverrideFan0Toggle)
		case line == "$$":
			printSettings(sub)
		case line == "$I":
			fmt.Print(h.ReportOptions(false))
		case strings.EqualFold(line, "$RST"):
			if err := sub.Restore(); err != nil {
				fmt.Println("error: " + err.Error())
			} else {
				fmt.Println("ok")
			}
		case strings.HasPrefix(line, "$"):
			runSettingWrite(sub, line)
		default:
			if st := ctrl.RunCommand(line); st != status.OK {
				fmt.Println("error: " + st.String())
			} else {
				fmt.Println("ok")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.WithError(err).Warn("console read failed")
	}
}

func runSettingWrite(sub *fans.Subsystem, line string) {
	body := strings.TrimPrefix(line, "$")
	id, valueStr, ok := strings.Cut(body, "=")
	if !ok {
		fmt.Println("error: expected $<id>=<value>")
		return
	}
	idNum, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		fmt.Println("error: bad setting id")
		return
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(valueStr), 64)
	if err != nil {
		fmt.Println("error: " + status.BadNumberFormat.String())
		return
	}
	if st := sub.SetSetting(fans.SettingID(idNum), value); st != status.OK {
		fmt.Println("error: " + st.String())
		return
	}
	if err := sub.Save(); err != nil {
		fmt.Println("error: " + err.Error())
		return
	}
	fmt.Println("ok")
}

func printSettings(sub *fans.Subsystem) {
	for _, d := range sub.SettingDetails() {
		v, st := sub.Setting(d.ID)
		if st != status.OK {
			continue
		}
		fmt.Printf("$%d=%g (%s)\n", d.ID, v, d.Name)
	}
}

func stateName(s host.MachineState) string {
	switch s {
	case host.StateRun:
		return "Run"
	case host.StateCheckMode:
		return "Check"
	default:
		return "Idle"
	}
}

// controller adapts the host and fan subsystem to the web API.
type controller struct {
	host *host.Host
	sub  *fans.Subsystem
}

func (c *controller) Status() web.Report {
	n := c.sub.FanCount()
	rep := web.Report{
		Fans:           make([]web.FanStatus, 0, n),
		Mask:           c.sub.OnMask().Value(),
		ShutoffPending: c.sub.ShutoffPending(),
		Machine:        stateName(c.host.State()),
	}
	linked := c.sub.LinkedMask()
	for fan := 0; fan < n; fan++ {
		port := -1
		if p := c.sub.PortOf(fan); p.Valid() {
			port = int(p)
		}
		rep.Fans = append(rep.Fans, web.FanStatus{
			Index:  fan,
			Port:   port,
			On:     c.sub.GetState(fan),
			Linked: linked.Contains(fan),
		})
	}
	return rep
}

func (c *controller) RunCommand(line string) status.Code {
	b, err := mcode.ParseLine(line)
	if err != nil {
		return status.InvalidStatement
	}
	switch b.Code {
	case 2, 30:
		flow := host.FlowCompletedM2
		if b.Code == 30 {
			flow = host.FlowCompletedM30
		}
		c.host.ProgramCompleted(flow, c.host.State() == host.StateCheckMode)
		return status.OK
	}
	return mcode.Dispatch(c.host.MCode(), c.host.State() == host.StateCheckMode, b)
}

func (c *controller) Override(cmd byte) {
	c.host.AccessoryOverride(cmd)
}

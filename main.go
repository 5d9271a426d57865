package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/yoppeh/nvhttpd/server"
)

const programName = "nvhttpd"

var version = "0.0.1"

func main() {
	os.Exit(run())
}

func run() int {
	configFile := pflag.StringP("config", "c", "", "Configuration file path")
	showVersion := pflag.BoolP("version", "v", false, "Print version and exit")
	help := pflag.BoolP("help", "h", false, "Show this help")
	listenIP := pflag.StringP("listen", "l", "", "Listen address, overrides server.ip")
	port := pflag.IntP("port", "p", 0, "Listen port, overrides server.port")
	root := pflag.StringP("root", "r", "", "Content directory, overrides server.html_path")
	verbose := pflag.BoolP("verbose", "V", false, "Verbose output, overrides logging.level")
	pflag.Parse()

	if *help {
		pflag.Usage()
		return 0
	}
	if *showVersion {
		fmt.Printf("%s %s\n", programName, version)
		return 0
	}

	path, err := server.FindConfig(*configFile)
	if err != nil {
		log.Error(err)
		return 1
	}
	c, err := server.LoadConfig(path)
	if err != nil {
		log.Error(err)
		return 1
	}
	if pflag.CommandLine.Changed("listen") {
		c.Server.IP = *listenIP
	}
	if pflag.CommandLine.Changed("port") {
		c.Server.Port = *port
	}
	if pflag.CommandLine.Changed("root") {
		c.Server.HTMLPath = *root
	}
	if *verbose {
		c.Logging.Level = "debug"
	}

	closer, err := server.SetupLogging(c.Logging, c.Server.Name)
	if err != nil {
		log.Error(err)
		return 1
	}
	defer closer.Close()
	if path == "" {
		log.Warn("no config file specified and none found, using defaults")
	} else {
		log.Infof("using config file %s", path)
	}

	if c.Logging.PID != "" {
		if err := writePID(c.Logging.PID); err != nil {
			log.Error(err)
			return 1
		}
		defer removePID(c.Logging.PID)
	}

	s, err := server.New(c)
	if err != nil {
		log.Error(err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop := handleSignals(cancel, func() {
		if _, err := s.Reload(); err == nil {
			log.Info("reloaded content")
		}
	})
	defer stop()

	log.Infof("%s %s starting", programName, version)
	if err := s.Run(ctx); err != nil {
		log.Error(err)
		return 1
	}
	log.Infof("%s stopped", programName)
	return 0
}

func writePID(path string) error {
	err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
	return errors.Wrapf(err, "unable to write pid file %s", path)
}

func removePID(path string) {
	if err := os.Remove(path); err != nil {
		log.Warnf("unable to remove pid file %s: %s", path, err)
	}
}

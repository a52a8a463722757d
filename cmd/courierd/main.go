package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/courier/internal/config"
	"github.com/matheus3301/courier/internal/daemon"
	"github.com/matheus3301/courier/internal/instance"
	"go.uber.org/fx"
)

func main() {
	instanceFlag := flag.String("instance", "", "instance name (overrides config default)")
	configFlag := flag.String("config", "", "config file (default ~/.courier/config.toml)")
	debugFlag := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	cfgPath := *configFlag
	if cfgPath == "" {
		cfgPath = instance.ConfigPath()
	}
	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	instanceName := *instanceFlag
	if instanceName == "" {
		instanceName = cfg.DefaultInstance
	}
	if instanceName == "" {
		instanceName = instance.DefaultName
	}
	if err := instance.ValidateName(instanceName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if !*debugFlag {
		gin.SetMode(gin.ReleaseMode)
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			InstanceName: instanceName,
			Config:       cfg,
			Debug:        *debugFlag,
		}),
	)

	app.Run()
}

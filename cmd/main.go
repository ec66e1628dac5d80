package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/devfs"
	"github.com/brettbedarf/devfs/adapters"
	"github.com/brettbedarf/devfs/config"
	"github.com/brettbedarf/devfs/internal/util"
	"github.com/brettbedarf/devfs/requests"
	"github.com/brettbedarf/devfs/server"
)

const usage = `Usage: devfs [flags] <command> [args]

Commands:
  stat <path>                   Show a file's device, length and stream capabilities
  cat <path> [offset [count]]   Write a file's contents to stdout
  ls <path>                     List a directory
  rm <path>                     Remove a file
  rmdir <path>                  Remove a directory and its contents
  put <path>                    Replace a file's contents with stdin
  mount <mountpoint>            Serve the nodes table as a FUSE filesystem

Flags:
`

func main() {
	// Parse command line arguments
	var (
		configPath string
		devicesDef string
		nodesDef   string
		verbose    int
		umount     bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML or JSON config file")
	flag.StringVar(&configPath, "c", "", "--config (shorthand)")
	flag.StringVar(&devicesDef, "devices", "", "Path to a JSON array of device definitions")
	flag.StringVar(&devicesDef, "d", "", "--devices (shorthand)")
	flag.StringVar(&nodesDef, "nodes", "", "Path to the nodes def file used by mount")
	flag.StringVar(&nodesDef, "n", "", "--nodes (shorthand)")
	flag.BoolVar(&umount, "umount", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	flag.BoolVar(&umount, "u", false, "--umount (shorthand)")
	flag.IntVar(&verbose, "verbose", config.InfoVerbose, "Log verbosity level between 1 (error) and 5 (trace). Default is 3 (info).")
	flag.IntVar(&verbose, "v", config.InfoVerbose, "--verbose (shorthand)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	// Load config; an explicit verbosity flag wins over the file
	cfg := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.NewConfigFromFile(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", configPath, err)
			os.Exit(1)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "verbose" || f.Name == "v" {
			cfg.LogLvl = config.VerbosityToLogLevel(verbose)
		}
	})
	util.InitializeLogger(cfg.LogLvl)
	logger := util.GetLogger("main")

	cmdName := flag.Arg(0)
	args := flag.Args()
	if len(args) > 0 {
		args = args[1:]
	}
	if cmdName == "" {
		flag.Usage()
		os.Exit(2)
	}

	// Build the resolver from definitions or fall back to the defaults
	registry := adapters.NewRegistry()
	adapters.RegisterBuiltins(registry, cfg)
	resolver := devfs.NewResolver(adapters.DefaultDevices(cfg)...)
	if devicesDef != "" {
		defData, err := os.ReadFile(devicesDef)
		if err != nil {
			logger.Fatal().Err(err).Str("devices", devicesDef).Msg("Failed to read devices file")
		}
		if resolver, err = registry.NewResolver(defData); err != nil {
			logger.Fatal().Err(err).Str("devices", devicesDef).Msg("Failed to build devices")
		}
	}
	logger.Debug().Int("devices", len(resolver.Devices())).Str("command", cmdName).Msg("Resolver ready")

	if cmdName == "mount" {
		if len(args) != 1 {
			logger.Fatal().Msg("Mount point not specified; it must be passed as the argument")
		}
		runMount(cfg, resolver, args[0], nodesDef, umount)
		return
	}

	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName)
		flag.Usage()
		os.Exit(2)
	}
	if err := cmd(resolver, args, os.Stdin, os.Stdout); err != nil {
		logger.Error().Err(err).Str("command", cmdName).Strs("args", args).Msg("Command failed")
		os.Exit(1)
	}
}

func runMount(cfg *config.Config, resolver *devfs.Resolver, mnt, nodesDef string, umount bool) {
	logger := util.GetLogger("main.mount")
	logger.Info().Str("nodes", nodesDef).Str("mnt", mnt).Msg("devfs server initializing")

	// Try unmount if requested
	if umount { // send cli command
		cmd := exec.Command("fusermount", "-u", mnt)
		// we ignore error here if not already mounted
		cmd.Run() // nolint:errcheck
	}

	srv := server.New(cfg, resolver)
	if nodesDef != "" {
		table, err := requests.LoadTable(nodesDef)
		if err != nil {
			logger.Fatal().Err(err).Str("nodes", nodesDef).Msg("Failed to load nodes file")
		}
		table.Apply(srv)
	} else {
		logger.Warn().Msg("No nodes file provided")
	}

	// Setup signal handling for graceful shutdown, including during the mount
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Serve
	select {
	case err := <-srv.ServeAsync(mnt):
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to mount filesystem")
		}
	case sig := <-signalChan:
		logger.Info().Str("signal", sig.String()).Msg("Received signal before the mount completed, exiting")
		return
	}

	logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

	go func() {
		sig := <-signalChan
		logger.Info().Str("signal", sig.String()).Msg("Received signal, unmounting filesystem")
		if err := srv.Unmount(); err != nil {
			logger.Error().Err(err).Msg("Failed to unmount filesystem")
		}
	}()

	// Returns once unmounted, by signal or externally
	srv.Wait()
	logger.Info().Msg("Filesystem unmounted successfully")
}

package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"sharebox/internal/config"
	"sharebox/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	logger = logging.GetLogger()
)

type flags struct {
	options     []string
	configFile  string
	logLevel    string
	metricsAddr string
	command     string
}

func bindFlags(fs *pflag.FlagSet, f *flags) {
	fs.StringArrayVarP(&f.options, "options", "o", nil, "mount options, comma separated (repeatable)")
	fs.StringVar(&f.configFile, "config", "", "YAML configuration file; -o options override it")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: error, warn, info, debug or trace")
	fs.StringVar(&f.metricsAddr, "metrics", "", "serve prometheus metrics on this address")
	fs.StringVar(&f.command, "command", "", "send a command to a mounted sharebox instead of mounting (sync)")
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "sharebox [flags] <mountpoint> -o gitdir=<path>[,sync=<s>][,getall][,foreground][,notifycmd=<cmd>]",
		Short: "Mount a git-annex repository with files fetched on first access",
		Long: `sharebox exposes a git-annex repository as an ordinary directory tree.
Files whose content only exists on peers show up with size 0 and are fetched
when first opened. Writes are committed when the last writer closes the file,
and the repository syncs with its peers periodically or on demand.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.command != "" {
				return runCommand(cmd.OutOrStdout(), f.command, args[0])
			}

			cfg, err := buildConfig(f, args[0])
			if err != nil {
				return err
			}
			if cfg.LogLevel != "" {
				level, err := logging.ParseLevel(cfg.LogLevel)
				if err != nil {
					return err
				}
				logger.SetLevel(level)
			}
			if !cfg.Foreground {
				return detach(os.Args[1:])
			}
			return runMount(cfg)
		},
	}
	bindFlags(cmd.Flags(), &f)
	return cmd
}

// buildConfig assembles the mount configuration: the YAML file first, then
// every -o string in order, then the explicit flags.
func buildConfig(f flags, mountPoint string) (*config.Config, error) {
	cfg := &config.Config{}
	if f.configFile != "" {
		loaded, err := config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	for _, opts := range f.options {
		if err := cfg.ApplyOptions(opts); err != nil {
			return nil, err
		}
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if f.metricsAddr != "" {
		cfg.MetricsAddr = f.metricsAddr
	}
	cfg.MountPoint = mountPoint

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// detachArgs returns args with foreground forced on.
func detachArgs(args []string) []string {
	out := make([]string, 0, len(args)+2)
	out = append(out, args...)
	return append(out, "-o", "foreground")
}

// detach re-executes the command in its own session and returns.
func detach(args []string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}

	cmd := exec.Command(exe, detachArgs(args)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start background process: %w", err)
	}
	logger.Debug("Detached as pid %d", cmd.Process.Pid)
	return cmd.Process.Release()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("%v", err)
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

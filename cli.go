package main

import (
	"errors"
	"fmt"
	"log/slog"

	"adbsync/internal/config"
	"adbsync/internal/database"
	"adbsync/internal/fs/adb"
	"adbsync/internal/fs/local"
	syncer "adbsync/internal/sync"
	"adbsync/pkg/logger"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adbsync [flags] SRC... DST",
		Short: "Synchronize files between a computer and an Android device",
		Long: `Synchronize files between a computer and an Android device over adb.

By default SRC is local and DST is on the device; with --reverse SRC is on
the device (wildcards are expanded there) and DST is local. Without SRC and
DST the pairs from the config file are used.`,
		Version: version,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return errors.New("need at least one SRC and a DST")
			}
			return nil
		},
		RunE: run,
	}

	f := cmd.Flags()
	f.SortFlags = false
	f.StringP("config", "c", "", "YAML config file")
	f.BoolP("reverse", "R", false, "reverse sync (pull, not push)")
	f.BoolP("two-way", "2", false, "two-way sync, newer modification time wins; relies on both clocks matching")
	f.BoolP("delete", "d", false, "delete files from DST that are not present on SRC; mutually exclusive with -2")
	f.BoolP("force", "f", false, "allow replacing a file by a directory or vice versa")
	f.BoolP("no-clobber", "n", false, "never overwrite existing files; mutually exclusive with -f")
	f.BoolP("copy-links", "L", false, "transform symlinks into referent files/dirs")
	f.Bool("dry-run", false, "do not do anything, just show what would be done")
	f.StringP("time-range", "t", "", "modification time range begin-end, begin- or 0-end, each yymmdd[.hhmmss]")
	f.Bool("del-source", false, "delete source after syncing")
	f.StringSliceP("exclude", "x", nil, "glob exclude pattern (repeat or separate with commas)")
	f.String("kind-conflict", "", "file vs directory at the same path: skip, prefer_local, prefer_remote or abort")
	f.String("adb", "", "adb command, may include arguments")
	f.Bool("device", false, "use the only USB device (adb -d)")
	f.Bool("emulator", false, "use the only running emulator (adb -e)")
	f.StringP("serial", "s", "", "device serial number (adb -s)")
	f.StringP("host", "H", "", "adb server host (adb -H)")
	f.StringP("port", "P", "", "adb server port (adb -P)")
	f.String("log-level", "", "debug, info, warn or error")
	f.String("log-file", "", "also write logs to this file")
	f.String("journal", "", "record jobs and events in this bbolt database")
	return cmd
}

// loadConfig 读取配置文件，再用命令行中显式指定的参数覆盖
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	f := cmd.Flags()
	cfg := config.Default()
	if path, _ := f.GetString("config"); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	setBool := func(name string, dst *bool) {
		if f.Changed(name) {
			*dst, _ = f.GetBool(name)
		}
	}
	setString := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}

	setBool("reverse", &cfg.Sync.Reverse)
	setBool("two-way", &cfg.Sync.TwoWay)
	setBool("delete", &cfg.Sync.Delete)
	setBool("force", &cfg.Sync.Force)
	setBool("no-clobber", &cfg.Sync.NoClobber)
	setBool("copy-links", &cfg.Sync.CopyLinks)
	setBool("dry-run", &cfg.Sync.DryRun)
	setBool("del-source", &cfg.Sync.DelSource)
	setString("time-range", &cfg.Sync.TimeRange)
	setString("kind-conflict", &cfg.Sync.KindConflict)
	if f.Changed("exclude") {
		cfg.Sync.Excludes, _ = f.GetStringSlice("exclude")
	}

	setString("adb", &cfg.ADB.Command)
	setBool("device", &cfg.ADB.Device)
	setBool("emulator", &cfg.ADB.Emulator)
	setString("serial", &cfg.ADB.Serial)
	setString("host", &cfg.ADB.Host)
	setString("port", &cfg.ADB.Port)

	setString("log-level", &cfg.System.LogLevel)
	setString("log-file", &cfg.System.LogFile)
	setString("journal", &cfg.System.Journal)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	policy, err := cfg.ToPolicy()
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	if err := logger.Setup(cfg.System.LogLevel, cfg.System.LogFile); err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	slog.Info("adbsync 启动中", "version", version, "log_level", cfg.System.LogLevel)

	loc, err := cfg.ADB.Location()
	if err != nil {
		return err
	}
	client := adb.NewClient(&adb.Options{
		Command:  cfg.ADB.Command,
		Device:   cfg.ADB.Device,
		Emulator: cfg.ADB.Emulator,
		Serial:   cfg.ADB.Serial,
		Host:     cfg.ADB.Host,
		Port:     cfg.ADB.Port,
	}, nil)
	remoteFS := adb.NewAdapter(client, loc)

	ctx := cmd.Context()
	var pairs []syncer.Pair
	if len(args) > 0 {
		pairs, err = buildPairs(ctx, remoteFS, args[:len(args)-1], args[len(args)-1], cfg.Sync.Reverse)
		if err != nil {
			return err
		}
	} else {
		for _, p := range cfg.Sync.Pairs {
			pairs = append(pairs, syncer.Pair{Local: p.Local, Remote: p.Remote})
		}
	}
	if len(pairs) == 0 {
		return errors.New("nothing to sync: give SRC... DST or sync.pairs in the config file")
	}
	if err := syncer.ValidatePairs(pairs, policy); err != nil {
		slog.Error("路径检查失败", "err", err)
		return err
	}

	var journal *database.DB
	if cfg.System.Journal != "" {
		journal, err = database.NewBoltDB(cfg.System.Journal)
		if err != nil {
			slog.Error("无法打开任务日志", "err", err, "path", cfg.System.Journal)
			return err
		}
		defer journal.Close()
	}

	engine := syncer.NewEngine(&syncer.EngineOptions{
		LocalFS:  local.NewAdapter(),
		RemoteFS: remoteFS,
		Journal:  journal,
	})

	for _, p := range pairs {
		slog.Info("Sync", "local", p.Local, "remote", p.Remote)
		if _, err := engine.Run(ctx, p.Local, p.Remote, policy); err != nil {
			switch {
			case errors.Is(err, syncer.ErrNotConnected):
				slog.Error("Device not connected or not working.", "err", err)
			case ctx.Err() != nil:
				slog.Warn("同步被中断")
			default:
				slog.Error("同步错误", "err", err)
			}
			return err
		}
	}
	return nil
}

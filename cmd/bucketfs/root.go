package main

import (
	"context"
	"time"

	"github.com/koustreak/bucketfs/internal/config"
	"github.com/koustreak/bucketfs/internal/filestore"
	"github.com/koustreak/bucketfs/internal/filestore/backend"
	"github.com/koustreak/bucketfs/internal/fsys"
	"github.com/koustreak/bucketfs/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// storeOpener opens the store named by cfg. Tests replace it to share one
// in-memory store across invocations.
type storeOpener func(ctx context.Context, cfg *filestore.Config, reg prometheus.Registerer) (filestore.Store, error)

// app carries what every subcommand needs once the root command has
// loaded the configuration.
type app struct {
	configPath string
	flags      globalFlags
	openStore  storeOpener

	cfg      *config.Config
	log      *logger.Logger
	registry *prometheus.Registry
	store    filestore.Store
	fs       *fsys.FS
}

// globalFlags mirror the configuration keys that can be set per invocation.
type globalFlags struct {
	provider       string
	endpoint       string
	accessKey      string
	secretKey      string
	useSSL         bool
	region         string
	connectTimeout time.Duration
	logLevel       string
	logFormat      string
	concurrency    int
}

func newApp() *app {
	return &app{openStore: backend.Open}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "bucketfs",
		Short: "Filesystem commands for S3-compatible object stores",
		Long: "bucketfs treats buckets as top-level directories and key prefixes as " +
			"sub-directories, so an object store can be used with mkdir, ls, cp, mv and rm.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	fl := root.PersistentFlags()
	fl.StringVarP(&a.configPath, "config", "c", "", "path to a YAML configuration file")
	fl.StringVar(&a.flags.provider, "provider", "", "store provider (minio, memory)")
	fl.StringVar(&a.flags.endpoint, "endpoint", "", "store endpoint host:port")
	fl.StringVar(&a.flags.accessKey, "access-key", "", "store access key")
	fl.StringVar(&a.flags.secretKey, "secret-key", "", "store secret key")
	fl.BoolVar(&a.flags.useSSL, "use-ssl", false, "connect to the store over TLS")
	fl.StringVar(&a.flags.region, "region", "", "store region")
	fl.DurationVar(&a.flags.connectTimeout, "connect-timeout", 0, "store reachability check timeout")
	fl.StringVar(&a.flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	fl.StringVar(&a.flags.logFormat, "log-format", "", "log format (json, console)")
	fl.IntVar(&a.flags.concurrency, "concurrency", 0, "parallel object copies during recursive copy")

	root.AddCommand(
		newMkdirCommand(a),
		newLsCommand(a),
		newRmCommand(a),
		newCpCommand(a),
		newMvCommand(a),
		newStatCommand(a),
		newCatCommand(a),
		newPutCommand(a),
		newLatestCommand(a),
		newTruncateCommand(a),
		newURLCommand(a),
		newServeCommand(a),
	)
	return root
}

// setup loads the configuration, applies flags on top and opens the store.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.Merge(a.flagOverride(cmd.Flags()))
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.Logger()
	logCfg.Output = cmd.ErrOrStderr()
	a.log = logger.New(logCfg)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.store, err = a.openStore(cmd.Context(), &cfg.Store, a.registry)
	if err != nil {
		return err
	}

	a.fs = fsys.New(a.store, fsys.WithLogger(a.log), fsys.WithConcurrency(cfg.FS.Concurrency))
	a.log.With().
		Str("command", cmd.Name()).
		Str("provider", string(cfg.Store.Provider)).
		Logger().
		Debug("store opened")
	return nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// flagOverride collects the flags set explicitly on the command line.
func (a *app) flagOverride(fl *pflag.FlagSet) *config.Override {
	o := &config.Override{}
	f := &a.flags

	if fl.Changed("provider") {
		p := filestore.Provider(f.provider)
		o.Store.Provider = &p
	}
	if fl.Changed("endpoint") {
		o.Store.Endpoint = &f.endpoint
	}
	if fl.Changed("access-key") {
		o.Store.AccessKey = &f.accessKey
	}
	if fl.Changed("secret-key") {
		o.Store.SecretKey = &f.secretKey
	}
	if fl.Changed("use-ssl") {
		o.Store.UseSSL = &f.useSSL
	}
	if fl.Changed("region") {
		o.Store.Region = &f.region
	}
	if fl.Changed("connect-timeout") {
		o.Store.ConnectTimeout = &f.connectTimeout
	}
	if fl.Changed("log-level") {
		o.Log.Level = &f.logLevel
	}
	if fl.Changed("log-format") {
		o.Log.Format = &f.logFormat
	}
	if fl.Changed("concurrency") {
		o.FS.Concurrency = &f.concurrency
	}
	return o
}

// Copyright 2021 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"

	"github.com/juju/mongoconsumer/charm"
	"github.com/juju/mongoconsumer/internal/charmconfig"
	"github.com/juju/mongoconsumer/internal/hookenv"
	"github.com/juju/mongoconsumer/internal/mongo"
	"github.com/juju/mongoconsumer/internal/oci"
	"github.com/juju/mongoconsumer/internal/relation/mongodb"
	"github.com/juju/mongoconsumer/internal/storedstate"
)

var logger = loggo.GetLogger("mongoconsumer")

const (
	// stateFileName is the state file inside the charm directory.
	stateFileName = ".mongoconsumer-state.yaml"

	// jujuLogWriterName is the loggo writer forwarding to juju-log.
	jujuLogWriterName = "juju-log"
)

func main() {
	os.Exit(Main(os.Args, os.Getenv, hookenv.DefaultRunner, os.Stderr))
}

type commandLineArgs struct {
	logLevel  loggo.Level
	stateFile string
	hook      string
}

func parseCommandLine(args []string, stderr io.Writer) (commandLineArgs, error) {
	flags := gnuflag.NewFlagSet(filepath.Base(args[0]), gnuflag.ContinueOnError)
	flags.SetOutput(stderr)
	var (
		a           commandLineArgs
		rawLogLevel string
	)
	flags.StringVar(&rawLogLevel, "log-level", "DEBUG",
		"log level to use (TRACE/DEBUG/INFO/etc)")
	flags.StringVar(&a.stateFile, "state-file", "",
		"path of the unit state file (default <charm-dir>/"+stateFileName+")")
	if err := flags.Parse(true, args[1:]); err != nil {
		return a, errors.Trace(err)
	}
	level, ok := loggo.ParseLevel(rawLogLevel)
	if !ok {
		return a, errors.NotValidf("log level %q", rawLogLevel)
	}
	a.logLevel = level
	switch flags.NArg() {
	case 0:
	case 1:
		a.hook = flags.Arg(0)
	default:
		return a, errors.Errorf("unrecognized args: %q", flags.Args()[1:])
	}
	return a, nil
}

// resolveHook returns the hook being run. An explicit argument wins,
// then the environment, then the name the binary was invoked as.
func resolveHook(a commandLineArgs, env hookenv.Environment, argv0 string) string {
	if a.hook != "" {
		return a.hook
	}
	if hook := env.Hook(); hook != "" {
		return hook
	}
	return filepath.Base(argv0)
}

func setupLogging(level loggo.Level, stderr io.Writer, ctx *hookenv.Context) error {
	writer := loggo.NewSimpleWriter(stderr, logFormatter)
	if _, err := loggo.ReplaceDefaultWriter(writer); err != nil {
		return errors.Trace(err)
	}
	if ctx != nil {
		_, _ = loggo.RemoveWriter(jujuLogWriterName)
		if err := loggo.RegisterWriter(jujuLogWriterName, hookenv.NewJujuLogWriter(ctx)); err != nil {
			return errors.Trace(err)
		}
	}
	return loggo.ConfigureLoggers(fmt.Sprintf("<root>=%s", level.String()))
}

func logFormatter(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s %s %s %s", ts, entry.Level, entry.Module, entry.Message)
}

// Main runs a single hook and returns the process exit code.
func Main(args []string, getenv func(string) string, runner hookenv.CommandRunner, stderr io.Writer) int {
	a, err := parseCommandLine(args, stderr)
	if errors.Is(err, gnuflag.ErrHelp) {
		return 0
	} else if err != nil {
		fmt.Fprintf(stderr, "ERROR %v\n", err)
		return 2
	}
	env, err := hookenv.NewEnvironment(getenv)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR reading hook environment: %v\n", err)
		return 1
	}
	ctx := hookenv.NewContext(env, runner)
	if err := setupLogging(a.logLevel, stderr, ctx); err != nil {
		fmt.Fprintf(stderr, "ERROR setting up logging: %v\n", err)
		return 1
	}
	defer func() { _, _ = loggo.RemoveWriter(jujuLogWriterName) }()

	hook := resolveHook(a, env, args[0])
	if err := runHook(ctx, hook, a.stateFile); err != nil {
		logger.Errorf("%s hook failed: %v", hook, err)
		return 1
	}
	return 0
}

func runHook(ctx *hookenv.Context, hook, stateFile string) error {
	env := ctx.Environment()
	meta, err := readMeta(env.CharmDir)
	if err != nil {
		return errors.Trace(err)
	}
	if err := meta.CheckRequires(mongodb.Endpoint, "mongodb"); err != nil {
		return errors.Trace(err)
	}
	imageResource, err := meta.ImageResource()
	if err != nil {
		return errors.Trace(err)
	}

	attrs, err := ctx.ConfigGet()
	if err != nil {
		return errors.Trace(err)
	}
	cfg, err := charmconfig.Parse(attrs)
	if err != nil {
		return errors.Trace(err)
	}
	leader, err := ctx.IsLeader()
	if err != nil {
		return errors.Trace(err)
	}

	if stateFile == "" {
		stateFile = filepath.Join(env.CharmDir, stateFileName)
	}
	file := storedstate.NewStateFile(stateFile)
	st, err := file.Load()
	if err != nil {
		return errors.Trace(err)
	}

	consumer, err := mongodb.NewConsumer(ctx, env.UnitName, cfg.Consumes)
	if err != nil {
		return errors.Trace(err)
	}
	ch, err := charm.New(charm.Params{
		AppName:  env.ApplicationName,
		Leader:   leader,
		Config:   cfg,
		State:    st,
		Context:  ctx,
		Image:    oci.NewResource(imageResource, ctx),
		Database: consumer,
		Mongo:    mongo.NewSmokeTester(nil),
		Clock:    clock.WallClock,
	})
	if err != nil {
		return errors.Trace(err)
	}

	logger.Debugf("running %s hook on %s (leader: %v)", hook, env.UnitName, leader)
	if err := ch.Dispatch(charm.ParseHook(hook, env.RelationID)); err != nil {
		return errors.Trace(err)
	}
	return errors.Annotate(file.Write(ch.State()), "saving charm state")
}

func readMeta(charmDir string) (_ *charm.Meta, err error) {
	path := filepath.Join(charmDir, "metadata.yaml")
	defer errors.DeferredAnnotatef(&err, "reading %s", path)
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return charm.ReadMeta(f)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/saylorsolutions/baryssh/cmd/internal"
	"github.com/saylorsolutions/baryssh/pkg/mixer"
	"github.com/saylorsolutions/baryssh/pkg/relay"
	"github.com/sirupsen/logrus"
)

var version = "dev"

func main() {
	flags := newFlagSet()
	if len(os.Args) == 1 {
		flags.Usage()
		return
	}
	opts, err := parseOptions(flags, os.Args[1:])
	if err != nil {
		flags.Usage()
		internal.Fatal(nil, err, "Error parsing options")
	}
	if opts.help {
		flags.Usage()
		return
	}
	if opts.genKey {
		pass, err := mixer.GenPassphrase(genKeyLen)
		if err != nil {
			internal.Fatal(nil, err, "Failed to generate passphrase")
		}
		fmt.Println(pass)
		return
	}

	log, err := internal.NewLogger(opts.logLevel, os.Stdout)
	if err != nil {
		internal.Fatal(nil, err, "Invalid log level")
	}
	if err := run(log, opts); err != nil {
		internal.Fatal(log, err, "Relay failed")
	}
}

// run hardens the passphrase, binds the listen port, and serves until interrupted.
func run(log *logrus.Logger, opts *options) error {
	cfg, err := opts.relayConfig()
	if err != nil {
		return err
	}
	pass, err := opts.passphrase()
	if err != nil {
		return err
	}
	if pass == DefaultPassphrase {
		log.Warn("Using the default passphrase, set your own with --base-key")
	}

	hardener, err := mixer.NewHardener(mixer.SetLogger(log))
	if err != nil {
		return err
	}
	base, err := hardener.Harden(pass)
	if err != nil {
		return err
	}
	keys, err := mixer.NewKeyring(base, mixer.WithLogger(log))
	if err != nil {
		return err
	}
	srv, err := relay.NewServer(cfg, keys, relay.WithServerLogger(log))
	if err != nil {
		return err
	}
	ln, err := srv.Listen()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.WithFields(logrus.Fields{
		"version": version,
		"listen":  ln.Addr().String(),
		"dest":    cfg.DestAddr(),
	}).Info("Relay started")
	if err := srv.Serve(ctx, ln); err != nil {
		return err
	}
	log.Info("Relay stopped")
	return nil
}

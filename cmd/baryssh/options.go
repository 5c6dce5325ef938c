package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/saylorsolutions/baryssh/pkg/relay"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

const (
	// DefaultPassphrase works, but anyone who has read this file can unmix the traffic.
	DefaultPassphrase = "You should set up your own key, although this one is usually fine."
	envPrefix         = "BARYSSH"
	genKeyLen         = 32
)

type options struct {
	help       bool
	genKey     bool
	promptKey  bool
	configFile string

	connectIP   string
	connectPort int
	listenPort  int
	baseKey     string
	maxDelay    time.Duration
	dialTimeout time.Duration
	logLevel    string
}

func newFlagSet() *flag.FlagSet {
	flags := flag.NewFlagSet("baryssh", flag.ContinueOnError)
	flags.BoolP("help", "h", false, "Prints this usage information.")
	flags.Bool("gen-key", false, "Prints a random passphrase and exits.")
	flags.BoolP("prompt-key", "K", false, "Reads the passphrase from the terminal instead of --base-key.")
	flags.String("config", "", "Reads options from a YAML, TOML, or JSON file. Flags take precedence.")
	flags.StringP("connect-ip", "c", "", "Connect to this host.")
	flags.IntP("connect-port", "p", 0, "Connect to this port.")
	flags.IntP("listen-port", "l", 0, "Listen on this port, on all interfaces.")
	flags.StringP("base-key", "k", DefaultPassphrase, "Passphrase for masking. Both relays of a pair must use the same one.")
	flags.Duration("max-delay", relay.DefaultMaxDelay, "Longest wait between reconnection attempts.")
	flags.Duration("dial-timeout", relay.DefaultDialTimeout, "How long to wait for the destination to accept a connection.")
	flags.String("log-level", "info", "One of trace, debug, info, warn, or error.")
	flags.Usage = func() {
		fmt.Printf(`
baryssh relays TCP connections to a destination, XOR mixing every byte with a keystream that changes every 5 minutes.
Run one relay on each side of an untrusted link, with the same passphrase, so that one mixes and the other unmixes.

USAGE:  baryssh -c HOST -p PORT -l PORT [-k PASSPHRASE]

FLAGS:
%s
Every flag may also be set with an environment variable, like %s_CONNECT_IP, or in the --config file.

SECURITY:
    This is not encryption, this is obfuscation, and they are very different things!
Mixing only hides the static byte patterns of a protocol from passive detectors, so the relayed protocol should be secure on its own (SSH, TLS, etc.).
The clocks of both relays must agree to within the 5 minute window, or the output is garbage.
`, flags.FlagUsages(), envPrefix)
	}
	return flags
}

// parseOptions layers flags over environment variables over the config file.
func parseOptions(flags *flag.FlagSet, args []string) (*options, error) {
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if file := v.GetString("config"); len(file) > 0 {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, oops.With("file", file).Wrapf(err, "failed to read config file")
		}
	}

	return &options{
		help:        v.GetBool("help"),
		genKey:      v.GetBool("gen-key"),
		promptKey:   v.GetBool("prompt-key"),
		configFile:  v.GetString("config"),
		connectIP:   v.GetString("connect-ip"),
		connectPort: v.GetInt("connect-port"),
		listenPort:  v.GetInt("listen-port"),
		baseKey:     v.GetString("base-key"),
		maxDelay:    v.GetDuration("max-delay"),
		dialTimeout: v.GetDuration("dial-timeout"),
		logLevel:    v.GetString("log-level"),
	}, nil
}

func (o *options) relayConfig() (relay.Config, error) {
	if len(strings.TrimSpace(o.connectIP)) == 0 {
		return relay.Config{}, errors.New("missing required --connect-ip")
	}
	if o.connectPort == 0 {
		return relay.Config{}, errors.New("missing required --connect-port")
	}
	if o.listenPort == 0 {
		return relay.Config{}, errors.New("missing required --listen-port")
	}
	return relay.NewConfig(o.connectIP, o.connectPort, o.listenPort,
		relay.WithMaxDelay(o.maxDelay),
		relay.WithDialTimeout(o.dialTimeout),
	)
}

func (o *options) passphrase() (string, error) {
	if !o.promptKey {
		return o.baseKey, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("--prompt-key requires an interactive terminal")
	}
	_, _ = fmt.Fprint(os.Stderr, "Passphrase: ")
	pass, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

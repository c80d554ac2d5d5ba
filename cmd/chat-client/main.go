// Command chat-client issues a single chat request against a
// chat-server shard (or, with --registry-endpoints, a sharded
// deployment) and prints the response.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"chatter/chatclient"
	"chatter/config"
	"chatter/datagram"
	"chatter/metrics"
	"chatter/rdpclient"
	"chatter/rdplog"
	"chatter/registry"
)

var (
	serverAddr         string
	localAddr          string
	username           string
	message            string
	timestamp          float64
	retransmitInterval time.Duration
	responseTimeout    time.Duration
	registryEndpoints  []string
	registryKey        string
	balanceStrategy    string
	verbose            bool
)

var rootCmd = &cobra.Command{
	Use:   "chat-client",
	Short: "Talk to a Chatter RDP server",
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate a username",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *chatclient.Client) error {
			return c.Login(username)
		})
	},
}

var messageCmd = &cobra.Command{
	Use:   "message",
	Short: "Send a chat message",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *chatclient.Client) error {
			return c.SendMessage(username, message)
		})
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch messages newer than --timestamp",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *chatclient.Client) error {
			resp, err := c.FetchMessages(username, timestamp)
			if err != nil {
				return err
			}
			fmt.Println(string(mustMarshalData(resp)))
			return nil
		})
	},
}

var exitCmd = &cobra.Command{
	Use:   "exit",
	Short: "Log a username out",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(func(c *chatclient.Client) error {
			return c.Exit(username)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "", "Fixed chat-server address (host:port); ignored when --registry-endpoints is set")
	rootCmd.PersistentFlags().StringVar(&localAddr, "local", "0.0.0.0:0", "Local UDP address to bind")
	rootCmd.PersistentFlags().StringVar(&username, "username", "", "Chat username")
	rootCmd.PersistentFlags().DurationVar(&retransmitInterval, "retransmit-interval", config.DefaultRetransmitInterval, "Retransmit interval")
	rootCmd.PersistentFlags().DurationVar(&responseTimeout, "response-timeout", config.DefaultResponseTimeout, "Response timeout")
	rootCmd.PersistentFlags().StringSliceVar(&registryEndpoints, "registry-endpoints", nil, "etcd endpoints to discover shards from")
	rootCmd.PersistentFlags().StringVar(&registryKey, "registry-key", "chat-server", "Service name to discover shards under")
	rootCmd.PersistentFlags().StringVar(&balanceStrategy, "balance-strategy", "consistent-hash", "Shard selection strategy when using --registry-endpoints: consistent-hash, round-robin, or weighted-random")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	messageCmd.Flags().StringVar(&message, "message", "", "Message text")
	fetchCmd.Flags().Float64Var(&timestamp, "timestamp", 0, "Only return messages newer than this unix timestamp")

	rootCmd.AddCommand(loginCmd, messageCmd, fetchCmd, exitCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withClient(fn func(*chatclient.Client) error) error {
	cfg := &config.ClientConfig{
		LocalAddr:          localAddr,
		ServerAddr:         serverAddr,
		RetransmitInterval: retransmitInterval,
		ResponseTimeout:    responseTimeout,
		RegistryEndpoints:  registryEndpoints,
		RegistryKey:        registryKey,
		Verbose:            verbose,
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if username == "" {
		return fmt.Errorf("chat-client: --username is required")
	}

	log := rdplog.New(cfg.Verbose)

	channel, err := datagram.Open(cfg.LocalAddr)
	if err != nil {
		return fmt.Errorf("chat-client: open channel: %w", err)
	}
	defer channel.Close()

	clientMetrics := metrics.NewClientMetrics(newRegistryOrDiscard())
	engine := rdpclient.New(channel,
		rdpclient.WithLogger(log),
		rdpclient.WithMetrics(clientMetrics),
		rdpclient.WithRetransmitInterval(cfg.RetransmitInterval),
		rdpclient.WithResponseTimeout(cfg.ResponseTimeout),
	)
	defer engine.Close()

	var client *chatclient.Client
	if len(cfg.RegistryEndpoints) > 0 {
		strategy, err := parseBalanceStrategy(balanceStrategy)
		if err != nil {
			return err
		}
		reg, err := registry.NewEtcdRegistry(cfg.RegistryEndpoints)
		if err != nil {
			return fmt.Errorf("chat-client: connect to registry: %w", err)
		}
		client = chatclient.NewSharded(engine, reg, cfg.RegistryKey, strategy)
	} else {
		host, port, err := splitHostPort(cfg.ServerAddr)
		if err != nil {
			return err
		}
		client = chatclient.New(engine, host, port)
	}

	return fn(client)
}

// Package main provides the boltctl operator CLI: identity key
// management, peer-code generation/validation, SAS computation for
// manual verification, and a Prometheus metrics exporter.
package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/sec51/bolt/core"
	"github.com/sec51/bolt/metrics"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	rootCmd := &cobra.Command{
		Use:     "boltctl",
		Short:   "Operator CLI for the Bolt secure peer-to-peer file transfer protocol",
		Version: Version,
	}

	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(peercodeCmd())
	rootCmd.AddCommand(sasCmd())
	rootCmd.AddCommand(serveMetricsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("boltctl failed")
		os.Exit(1)
	}
}

func keygenCmd() *cobra.Command {
	var dataDir, identifier string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate or display a persisted identity keypair",
		RunE: func(cmd *cobra.Command, args []string) error {
			var salt [32]byte
			copy(salt[:], []byte("boltctl-identity-salt-"+identifier))
			store := core.NewFileIdentityStore(dataDir, identifier, salt)

			pair, err := core.GetOrCreateIdentity(store)
			if err != nil {
				return fmt.Errorf("could not get or create identity: %w", err)
			}
			defer pair.Zeroize()

			fmt.Printf("identity public key: %s\n", base64.StdEncoding.EncodeToString(pair.Public[:]))
			fmt.Printf("stored in:            %s\n", dataDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataDir, "data-dir", "d", "./bolt-data", "Directory for persisted identity key material")
	cmd.Flags().StringVarP(&identifier, "id", "i", "default", "Identifier namespacing this identity within data-dir")
	return cmd
}

func peercodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peercode",
		Short: "Generate or validate a peer code",
	}

	genCmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new random peer code",
		RunE: func(cmd *cobra.Command, args []string) error {
			long, _ := cmd.Flags().GetBool("long")
			var code string
			var err error
			if long {
				code, err = core.GenerateSecurePeerCodeLong()
			} else {
				code, err = core.GenerateSecurePeerCode()
			}
			if err != nil {
				return fmt.Errorf("could not generate peer code: %w", err)
			}
			fmt.Println(code)
			return nil
		},
	}
	genCmd.Flags().Bool("long", false, "Generate the 8-character XXXX-XXXX form")
	cmd.AddCommand(genCmd)

	validateCmd := &cobra.Command{
		Use:   "validate [code]",
		Short: "Validate and normalize a peer code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := args[0]
			if !core.IsValidPeerCode(code) {
				return fmt.Errorf("invalid peer code: %q", code)
			}
			fmt.Println(core.NormalizePeerCode(code))
			return nil
		},
	}
	cmd.AddCommand(validateCmd)

	return cmd
}

func sasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sas <idA-hex> <idB-hex> <ephA-hex> <ephB-hex>",
		Short: "Compute a Short Authentication String from four hex-encoded 32-byte keys",
		Long:  "Useful for manually cross-checking a session's SAS against what both peers displayed.",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := make([][]byte, 4)
			for i, arg := range args {
				raw, err := hex.DecodeString(arg)
				if err != nil {
					return fmt.Errorf("argument %d is not valid hex: %w", i+1, err)
				}
				keys[i] = raw
			}
			sas, err := core.ComputeSAS(keys[0], keys[1], keys[2], keys[3])
			if err != nil {
				return fmt.Errorf("could not compute SAS: %w", err)
			}
			fmt.Println(sas)
			return nil
		},
	}
	return cmd
}

func serveMetricsCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Expose a Prometheus metrics endpoint backed by an empty, freshly-enabled registry",
		Long: "Intended for operators wiring up scraping against an embedder process that shares\n" +
			"this registry in-process; standalone it simply demonstrates the exported collectors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := metrics.NewRegistry(true)
			gatherer := registry.PrometheusGatherer()
			if gatherer == nil {
				return fmt.Errorf("metrics registry did not produce a gatherer")
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

			log.Info().Str("addr", addr).Msg("serving bolt metrics")
			fmt.Printf("serving metrics on http://%s/metrics (default chunk size %s)\n",
				addr, humanize.Bytes(uint64(core.DefaultChunkSize)))
			return http.ListenAndServe(addr, mux)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9090", "Address to serve the /metrics endpoint on")
	return cmd
}

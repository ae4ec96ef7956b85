package main

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/reportkeeper/pkg/cli"
	securityTLS "mercator-hq/reportkeeper/pkg/security/tls"
)

var certsFlags struct {
	certFile string
	keyFile  string
}

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Inspect TLS certificates",
}

var certsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the server certificate and key",
	Long: `Check that a certificate and private key match and that the certificate
is currently valid. Without flags the files from server.tls are used.

A certificate expiring within 30 days produces a warning; an expired or not
yet valid certificate is an error.

Examples:
  # Check the configured certificate
  reportkeeper certs check

  # Check specific files
  reportkeeper certs check --cert server.crt --key server.key`,
	Args: cobra.NoArgs,
	RunE: checkCertificate,
}

func init() {
	rootCmd.AddCommand(certsCmd)
	certsCmd.AddCommand(certsCheckCmd)

	certsCheckCmd.Flags().StringVar(&certsFlags.certFile, "cert", "", "certificate file (default server.tls.cert_file)")
	certsCheckCmd.Flags().StringVar(&certsFlags.keyFile, "key", "", "private key file (default server.tls.key_file)")
}

func checkCertificate(cmd *cobra.Command, args []string) error {
	certFile, keyFile := certsFlags.certFile, certsFlags.keyFile
	if certFile == "" || keyFile == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if certFile == "" {
			certFile = cfg.Server.TLS.CertFile
		}
		if keyFile == "" {
			keyFile = cfg.Server.TLS.KeyFile
		}
	}
	if certFile == "" || keyFile == "" {
		return cli.NewConfigError("server.tls", "cert_file and key_file are required")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Checking certificate: %s\n\n", certFile)

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		fmt.Fprintln(out, "✗ Certificate and key do NOT match or cannot be read")
		return cli.NewCommandError("certs check", err)
	}
	fmt.Fprintln(out, "✓ Certificate and key match")

	now := time.Now()
	if err := securityTLS.ValidateCertificate(&cert, now); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return cli.NewCommandError("certs check", err)
	}

	remaining, err := securityTLS.TimeUntilExpiry(&cert, now)
	if err != nil {
		return cli.NewCommandError("certs check", err)
	}
	days := int(remaining.Hours() / 24)
	fmt.Fprintf(out, "✓ Certificate valid until %s\n", now.Add(remaining).UTC().Format(time.RFC3339))
	if remaining < securityTLS.ExpiryWarning {
		fmt.Fprintf(out, "⚠  Certificate expires in %d days\n", days)
	}
	return nil
}

/*
Package tls serves the API over HTTPS.

ServerConfig turns the server.tls configuration section into a crypto/tls
configuration whose certificate comes from a CertificateReloader:

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, nil)
	if err := reloader.Start(ctx); err != nil {
		return err
	}

	tlsConfig, err := tls.ServerConfig(cfg, reloader)
	if err != nil {
		return err
	}

The reloader polls the file modification times and swaps in a renewed key
pair only after it parses and is currently valid. ExpiryCheck exposes the
served certificate to the readiness probe.
*/
package tls

/*
Package security groups the API's transport security, secret resolution and
authentication.

# TLS

Serve the API over HTTPS with hot-reloaded certificates:

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, nil)
	if err := reloader.Start(ctx); err != nil {
		log.Fatal(err)
	}
	tlsConfig, err := tls.ServerConfig(cfg, reloader)

# Secrets

API keys in the config file may be written as ${secret:name} references:

	resolver, err := secrets.FromConfig(cfg.Security.Secrets)
	key, err := resolver.Expand(ctx, "${secret:operator-key}")

# API Key Authentication

	validator := auth.NewAPIKeyValidator(apiKeys)
	middleware := auth.NewAPIKeyMiddleware(validator, sources)

	mux.Handle("/v1/", middleware.Handle(handler))
*/
package security

package tls

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"
)

// ExpiryWarning is how close to NotAfter a certificate is reported as
// expiring soon.
const ExpiryWarning = 30 * 24 * time.Hour

// leaf parses the first certificate of the chain.
func leaf(cert *tls.Certificate) (*x509.Certificate, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is nil")
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("certificate chain is empty")
	}
	if cert.Leaf != nil {
		return cert.Leaf, nil
	}
	x509Cert, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return x509Cert, nil
}

// ValidateCertificate checks that the leaf certificate is valid at now.
func ValidateCertificate(cert *tls.Certificate, now time.Time) error {
	x509Cert, err := leaf(cert)
	if err != nil {
		return err
	}

	if now.Before(x509Cert.NotBefore) {
		return fmt.Errorf("certificate is not yet valid (valid from %s)", x509Cert.NotBefore.Format(time.RFC3339))
	}
	if now.After(x509Cert.NotAfter) {
		return fmt.Errorf("certificate expired on %s", x509Cert.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// TimeUntilExpiry returns how long the leaf certificate remains valid.
func TimeUntilExpiry(cert *tls.Certificate, now time.Time) (time.Duration, error) {
	x509Cert, err := leaf(cert)
	if err != nil {
		return 0, err
	}
	return x509Cert.NotAfter.Sub(now), nil
}

// ExpiryCheck returns a health check that fails once the served certificate
// is missing or expired. It has the signature of health.CheckFunc.
func ExpiryCheck(r *CertificateReloader) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return ValidateCertificate(r.GetCertificate(), r.now())
	}
}

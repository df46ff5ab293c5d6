package stomp

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"main/pkg/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T, dnsName string) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: dnsName},
		DNSNames:              []string{dnsName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestVerifyPolicyTable(t *testing.T) {
	anchor := selfSignedCert(t, "broker.local")
	other := selfSignedCert(t, "elsewhere.local")
	verifier := NewTrustVerifier([]*x509.Certificate{anchor})
	chain := []*x509.Certificate{anchor}

	tests := []struct {
		name   string
		chain  []*x509.Certificate
		status ChainStatus
		accept bool
	}{
		{"no policy errors", chain, StatusNoError, true},
		{"untrusted root with matching anchor", chain, StatusUntrustedRoot, true},
		{"untrusted root without matching anchor", []*x509.Certificate{other}, StatusUntrustedRoot, false},
		{"name mismatch never overridable", chain, StatusNameMismatch, false},
		{"name mismatch with untrusted root", chain, StatusUntrustedRoot | StatusNameMismatch, false},
		{"certificate unavailable", nil, StatusUnavailable, false},
		{"expired despite matching anchor", chain, StatusUntrustedRoot | StatusExpired, false},
		{"revoked despite matching anchor", chain, StatusUntrustedRoot | StatusRevoked, false},
		{"expired only", chain, StatusExpired, false},
		{"empty chain", nil, StatusUntrustedRoot, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.accept, verifier.Verify(tt.chain, tt.status))
		})
	}
}

func TestVerifyWithoutAnchors(t *testing.T) {
	verifier := NewTrustVerifier(nil)
	cert := selfSignedCert(t, "broker.local")

	assert.True(t, verifier.Verify([]*x509.Certificate{cert}, StatusNoError))
	assert.False(t, verifier.Verify([]*x509.Certificate{cert}, StatusUntrustedRoot))
}

func TestVerifyServerChainSelfSignedAnchor(t *testing.T) {
	cert := selfSignedCert(t, "broker.local")
	verifier := NewTrustVerifier([]*x509.Certificate{cert})

	// Untrusted root is the only status; the anchor match overrides it.
	require.NoError(t, verifier.VerifyServerChain([][]byte{cert.Raw}, "broker.local"))

	// A name mismatch stays fatal even with a matching anchor.
	err := verifier.VerifyServerChain([][]byte{cert.Raw}, "other.local")
	require.ErrorIs(t, err, exception.ErrTrust)
}

func TestVerifyServerChainRejectsWithoutAnchor(t *testing.T) {
	cert := selfSignedCert(t, "broker.local")
	verifier := NewTrustVerifier(nil)

	err := verifier.VerifyServerChain([][]byte{cert.Raw}, "broker.local")
	require.ErrorIs(t, err, exception.ErrTrust)
}

func TestVerifyServerChainUnparseable(t *testing.T) {
	verifier := NewTrustVerifier(nil)
	err := verifier.VerifyServerChain([][]byte{{0xde, 0xad}}, "broker.local")
	require.ErrorIs(t, err, exception.ErrTrust)
}

func TestClassifyChainEmpty(t *testing.T) {
	assert.Equal(t, StatusUnavailable, classifyChain(nil, "broker.local"))
}

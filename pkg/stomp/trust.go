package stomp

import (
	"crypto/sha256"
	"crypto/x509"

	"main/pkg/exception"

	"github.com/yanun0323/errors"
)

// ChainStatus is a bit set of policy errors reported for a server
// certificate chain.
type ChainStatus uint8

const (
	// StatusUntrustedRoot means the chain terminates in a root the
	// platform does not trust. This is the only status an anchor match
	// may override.
	StatusUntrustedRoot ChainStatus = 1 << iota
	// StatusNameMismatch means the leaf does not match the server name.
	StatusNameMismatch
	// StatusUnavailable means no usable certificate was presented.
	StatusUnavailable
	// StatusExpired means a chain certificate is outside its validity.
	StatusExpired
	// StatusRevoked means a chain certificate is revoked.
	StatusRevoked
	// StatusOther covers any remaining policy failure.
	StatusOther
)

// StatusNoError is the empty status set.
const StatusNoError ChainStatus = 0

// TrustVerifier decides whether a server certificate chain is
// acceptable given a caller-supplied set of trusted root anchors.
type TrustVerifier struct {
	anchors map[[sha256.Size]byte]struct{}
}

// NewTrustVerifier builds a verifier over the given anchor certificates.
func NewTrustVerifier(anchors []*x509.Certificate) *TrustVerifier {
	set := make(map[[sha256.Size]byte]struct{}, len(anchors))
	for _, anchor := range anchors {
		if anchor == nil {
			continue
		}
		set[sha256.Sum256(anchor.Raw)] = struct{}{}
	}
	return &TrustVerifier{anchors: set}
}

// Verify applies the trust policy to a chain and its reported status.
//
//   - no policy errors: accept
//   - name mismatch or certificate unavailable: reject, never overridable
//   - otherwise the chain's terminal certificate fingerprint must match
//     an anchor, and untrusted-root must be the only remaining status
//
// Verify is pure and total: every input yields a boolean.
func (v *TrustVerifier) Verify(chain []*x509.Certificate, status ChainStatus) bool {
	if status == StatusNoError {
		return true
	}
	if status&(StatusNameMismatch|StatusUnavailable) != 0 {
		return false
	}
	if v == nil || len(v.anchors) == 0 || len(chain) == 0 {
		return false
	}
	root := chain[len(chain)-1]
	if root == nil {
		return false
	}
	if _, ok := v.anchors[sha256.Sum256(root.Raw)]; !ok {
		return false
	}
	return status&^StatusUntrustedRoot == 0
}

// VerifyServerChain parses the raw presented chain, classifies the
// platform verification outcome into a ChainStatus, and applies Verify.
// It matches the tls.Config VerifyPeerCertificate callback shape after
// binding the server name.
func (v *TrustVerifier) VerifyServerChain(rawCerts [][]byte, serverName string) error {
	chain := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return errors.Wrap(exception.ErrTrust, "unparseable certificate in chain")
		}
		chain = append(chain, cert)
	}
	if !v.Verify(chain, classifyChain(chain, serverName)) {
		return errors.Wrap(exception.ErrTrust, "server chain rejected").With("server", serverName)
	}
	return nil
}

func classifyChain(chain []*x509.Certificate, serverName string) ChainStatus {
	if len(chain) == 0 {
		return StatusUnavailable
	}
	leaf := chain[0]
	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}

	_, err := leaf.Verify(x509.VerifyOptions{
		DNSName:       serverName,
		Intermediates: intermediates,
	})
	if err == nil {
		return StatusNoError
	}

	var status ChainStatus
	switch verifyErr := err.(type) {
	case x509.HostnameError:
		status |= StatusNameMismatch
	case x509.UnknownAuthorityError:
		status |= StatusUntrustedRoot
	case x509.CertificateInvalidError:
		if verifyErr.Reason == x509.Expired {
			status |= StatusExpired
		} else {
			status |= StatusOther
		}
	default:
		status |= StatusOther
	}

	// Verify reports a single failure; a name mismatch must surface
	// even when chain building already failed.
	if status&StatusNameMismatch == 0 && serverName != "" {
		if leaf.VerifyHostname(serverName) != nil {
			status |= StatusNameMismatch
		}
	}
	return status
}

// SPDX-FileCopyrightText: 2026 The quicbench Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package transport provides the QUIC connection plumbing shared by the
// benchmark's sender and receiver: TLS material, transport configuration and
// the application error codes both sides close connections with.
//
// The benchmark runs against emulated network paths between hosts under the
// experimenter's control, so certificate provisioning stays out of scope: the
// listener presents a freshly generated self-signed certificate and the
// dialer skips verification.
package transport

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"

	log "github.com/sirupsen/logrus"
)

const alpnProtocol = "quicbench"

// GenerateListenerTLSConfig creates the receiver's TLS configuration with a
// self-signed certificate.
func GenerateListenerTLSConfig() *tls.Config {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		log.WithError(err).Fatal("Error generating private key")
	}
	template := x509.Certificate{SerialNumber: big.NewInt(1)}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		log.WithError(err).Fatal("Error generating certificate")
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		log.WithError(err).Fatal("Error generating combined certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{alpnProtocol},
		MinVersion:   tls.VersionTLS13,
	}
}

// GenerateDialerTLSConfig creates the sender's TLS configuration. The
// listener's certificate is self-signed, so verification is skipped.
func GenerateDialerTLSConfig() *tls.Config {
	return &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{alpnProtocol},
	}
}

// GenerateQUICConfig creates the transport configuration for either side.
// enableDatagrams must be set on both peers of a datagram-mode flow. The idle
// timeout doubles as the receiver's fallback for detecting a drained datagram
// flow whose final marker was lost.
func GenerateQUICConfig(idleTimeout time.Duration, enableDatagrams bool) *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:     idleTimeout,
		KeepAlivePeriod:    idleTimeout / 3,
		EnableDatagrams:    enableDatagrams,
		MaxIncomingStreams: 16,
	}
}

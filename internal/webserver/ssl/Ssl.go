package ssl

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forceu/rangeupload/internal/helper"
)

const validity = 365 * 24 * time.Hour

// GetCertificateLocations returns the filepath of the public certificate and private key
// inside configDir
func GetCertificateLocations(configDir string) (string, string) {
	return filepath.Join(configDir, "ssl.crt"), filepath.Join(configDir, "ssl.key")
}

func isCertificatePresent(configDir string) bool {
	certificate, key := GetCertificateLocations(configDir)
	return helper.FileExists(certificate) && helper.FileExists(key)
}

// GenerateIfInvalidCert checks validity of the SSL certificate and generates a new one if none
// is present or if it expires within the next 7 days
func GenerateIfInvalidCert(configDir, host string, forceGeneration bool) error {
	if !isCertificatePresent(configDir) || forceGeneration {
		return generateCertificates(configDir, host)
	}
	days, err := getDaysRemaining(configDir)
	if err != nil {
		fmt.Println("Certificate could not be read: " + err.Error())
		return generateCertificates(configDir, host)
	}
	if days < 8 {
		fmt.Println("Certificate is valid for less than 8 days.")
		return generateCertificates(configDir, host)
	}
	fmt.Printf("Certificate is valid for %d days. A new one will be generated 7 days before expiration.\n", days)
	return nil
}

func getDaysRemaining(configDir string) (int, error) {
	if !isCertificatePresent(configDir) {
		return -1, nil
	}
	certificate, _ := GetCertificateLocations(configDir)
	certContent, err := os.ReadFile(certificate)
	if err != nil {
		return -1, err
	}
	pemContent, _ := pem.Decode(certContent)
	if pemContent == nil {
		return -1, errors.New("no PEM data found in " + certificate)
	}
	pub, err := x509.ParseCertificate(pemContent.Bytes)
	if err != nil {
		return -1, err
	}
	days := math.Round(time.Until(pub.NotAfter).Hours() / 24)
	return int(days), nil
}

// getHost strips a port, if one was passed
func getHost(input string) string {
	host, _, err := net.SplitHostPort(input)
	if err != nil {
		return input
	}
	return host
}

func generateCertificates(configDir, hostInput string) error {
	fmt.Println("Generating new SSL certificate")
	err := os.MkdirAll(configDir, 0700)
	if err != nil {
		return err
	}
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"rangeupload"},
		},
		NotBefore: time.Now(),
		NotAfter:  time.Now().Add(validity),

		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	host := getHost(hostInput)
	ip := net.ParseIP(host)
	if ip != nil {
		template.IPAddresses = append(template.IPAddresses, ip)
	} else {
		template.DNSNames = append(template.DNSNames, host)
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, priv.Public(), priv)
	if err != nil {
		return err
	}
	keyBytes, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return err
	}
	certificate, key := GetCertificateLocations(configDir)
	err = os.WriteFile(certificate, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes}), 0600)
	if err != nil {
		return err
	}
	err = os.WriteFile(key, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}), 0600)
	if err != nil {
		return err
	}
	fingerprint := sha256.Sum256(derBytes)
	fmt.Println("SSL certificate generation successful. It will be valid for 365 days.")
	fmt.Println()
	fmt.Println("If clients connect directly to this server, please check that the certificate matches the following SHA-256 fingerprint:")
	fmt.Println(strings.ToUpper(hex.EncodeToString(fingerprint[:])))
	fmt.Println()
	return nil
}

package duoapi

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const pkpushAlgorithm = "rsa-sha512"

// generateKeyPair returns a fresh 2048-bit RSA key pair as PEM strings:
// the public key in SubjectPublicKeyInfo form (what the server registers),
// the private key in PKCS#1 form (what the vault stores).
func generateKeyPair() (pubPEM, privPEM string, err error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return "", "", err
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return "", "", err
	}

	pub := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	priv := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return string(pub), string(priv), nil
}

// signRequest builds the Authorization header for a signed protocol call.
//
// The canonical string is date, method, lowercased host, path, and the
// URL-encoded parameters, each on its own line. The server reconstructs the
// param string as the sorted request params with the host pair appended last,
// so that exact ordering is part of the wire contract. The SHA-512 digest is
// signed with RSA PKCS#1 v1.5 and wrapped as Basic auth of
// "pkey:base64(signature)", which the server verifies against the public key
// registered at activation.
func signRequest(method, path, date string, params url.Values, host, pkey, privPEM string) (string, error) {
	key, err := parsePrivateKey(privPEM)
	if err != nil {
		return "", err
	}

	message := strings.Join([]string{
		date,
		method,
		strings.ToLower(host),
		path,
		canonicalParams(params, host),
	}, "\n")

	digest := sha512.Sum512([]byte(message))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA512, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign request digest: %w", err)
	}

	token := pkey + ":" + base64.StdEncoding.EncodeToString(sig)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(token)), nil
}

// canonicalParams renders the signed parameter string: params sorted by key,
// then the host pair last. Host must never sort into the middle.
func canonicalParams(params url.Values, host string) string {
	encoded := params.Encode()
	hostPair := "host=" + url.QueryEscape(host)
	if encoded == "" {
		return hostPair
	}
	return encoded + "&" + hostPair
}

func parsePrivateKey(privPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privPEM))
	if block == nil {
		return nil, errors.New("private key is not PEM")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	// Records imported from other tooling may carry PKCS#8.
	parsed, err8 := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err8 != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return rsaKey, nil
}

package duoapi

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jessenaser/duobreak/internal/duo/entity"
	"github.com/jessenaser/duobreak/internal/pkg/clock"
	"github.com/jessenaser/duobreak/internal/pkg/goerror"
)

// The protocol only accepts clients that look like the official mobile app,
// so these identifiers are part of the wire format, not cosmetics.
const (
	appID      = "com.duosecurity.DuoMobile"
	appVersion = "4.73.0.873.1"
	userAgent  = "DuoMobileApp/4.73.0.873.1 (arm64; iOS 18.1); Client: Foundation"

	activationPath   = "/push/v2/activation/"
	transactionsPath = "/push/v2/device/transactions"

	// DefaultTimeout bounds every single network call.
	DefaultTimeout = 15 * time.Second
)

// Config configures a Client.
//
// InsecureSkipVerify disables TLS certificate validation for self-hosted
// deployments with private CAs. It must be an explicit construction-time
// decision; there is no way to flip it afterwards.
type Config struct {
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// Client performs the device-activation handshake and answers push
// transactions. It consumes key records as plain data; vault bookkeeping
// lives elsewhere.
type Client struct {
	httpc *http.Client
	clock clock.Clocker
}

// New constructs a Client. A nil clock defaults to system time.
func New(cfg Config, clk clock.Clocker) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if clk == nil {
		clk = clock.New()
	}

	transport := http.DefaultTransport
	if cfg.InsecureSkipVerify {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
		transport = t
	}

	return &Client{
		httpc: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		clock: clk,
	}
}

// Activate performs the registration handshake for an activation code.
//
// It generates a fresh 2048-bit RSA key pair, submits the public key, and
// returns a key record seed binding the server's registration payload to the
// pair. Any transport failure or non-success response fails the whole
// activation; a partial record is never returned.
func (c *Client) Activate(ctx context.Context, code, host string) (*entity.KeyRecord, error) {
	pubPEM, privPEM, err := generateKeyPair()
	if err != nil {
		return nil, goerror.NewServer(fmt.Errorf("generate key pair: %w", err))
	}

	form := url.Values{
		"app_id":               {appID},
		"app_version":          {appVersion},
		"ble_status":           {"allowed"},
		"build_version":        {"24B5055e"},
		"customer_protocol":    {"1"},
		"device_name":          {"iPad"},
		"jailbroken":           {"false"},
		"language":             {"en"},
		"manufacturer":         {"Apple"},
		"model":                {"arm64"},
		"notification_status":  {"not_determined"},
		"passcode_status":      {"true"},
		"pkpush":               {pkpushAlgorithm},
		"platform":             {"iOS"},
		"pubkey":               {pubPEM},
		"region":               {"US"},
		"security_patch_level": {""},
		"touchid_status":       {"true"},
		"version":              {"18.1"},
	}

	endpoint := "https://" + host + activationPath + url.PathEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, goerror.NewServer(fmt.Errorf("build activation request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, goerror.Wrap(err, "activation request failed", goerror.CodeActivation)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerror.Wrap(err, "read activation response", goerror.CodeActivation)
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Response) == 0 {
		return nil, goerror.Wrap(nil,
			fmt.Sprintf("activation rejected: status %d, body %s", resp.StatusCode, truncate(body, 200)),
			goerror.CodeActivation)
	}

	var reg entity.RegistrationResponse
	if err := json.Unmarshal(envelope.Response, &reg); err != nil {
		return nil, goerror.Wrap(err, "decode registration payload", goerror.CodeActivation)
	}
	reg.Raw = envelope.Response

	return &entity.KeyRecord{
		ActivationCode: code,
		Host:           host,
		Response:       reg,
		PublicKey:      pubPEM,
		PrivateKey:     privPEM,
	}, nil
}

// FetchTransactions returns the currently pending push transactions for a
// record, oldest first as the server reports them. An empty slice is a
// normal answer, not an error.
func (c *Client) FetchTransactions(ctx context.Context, rec *entity.KeyRecord) ([]entity.PendingTransaction, error) {
	date := c.clock.Now().UTC().Format(time.RFC1123Z)

	params := url.Values{
		"akey":        {rec.Response.AKey},
		"fips_status": {"1"},
		"hsm_status":  {"true"},
		"pkpush":      {pkpushAlgorithm},
	}

	auth, err := signRequest(http.MethodGet, transactionsPath, date, params, rec.Host, rec.Response.PKey, rec.PrivateKey)
	if err != nil {
		return nil, goerror.NewServer(fmt.Errorf("sign transaction fetch: %w", err))
	}

	endpoint := "https://" + rec.Host + transactionsPath + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerror.NewServer(fmt.Errorf("build transaction fetch: %w", err))
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("x-duo-date", date)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, goerror.NewTransport(err, "transaction fetch failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerror.NewTransport(err, "read transaction response")
	}

	var envelope struct {
		Response struct {
			Transactions []json.RawMessage `json:"transactions"`
		} `json:"response"`
	}
	if resp.StatusCode != http.StatusOK {
		return nil, goerror.NewTransport(nil,
			fmt.Sprintf("transaction fetch rejected: status %d, body %s", resp.StatusCode, truncate(body, 200)))
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, goerror.NewTransport(err, "decode transaction response")
	}

	txs := make([]entity.PendingTransaction, 0, len(envelope.Response.Transactions))
	for _, raw := range envelope.Response.Transactions {
		var tx struct {
			Urgid string `json:"urgid"`
		}
		if err := json.Unmarshal(raw, &tx); err != nil || tx.Urgid == "" {
			return nil, goerror.NewTransport(err, "transaction entry is missing its id")
		}
		txs = append(txs, entity.PendingTransaction{ID: tx.Urgid, Raw: raw})
	}
	return txs, nil
}

// Reply submits a signed approve/deny answer for one transaction.
//
// Failures are terminal for the caller: replying twice to the same challenge
// is worse than reporting the failure, so nothing here retries.
func (c *Client) Reply(ctx context.Context, txID string, answer entity.Answer, rec *entity.KeyRecord) error {
	date := c.clock.Now().UTC().Format(time.RFC1123Z)
	path := transactionsPath + "/" + url.PathEscape(txID)

	params := url.Values{
		"akey":        {rec.Response.AKey},
		"answer":      {string(answer)},
		"fips_status": {"1"},
		"hsm_status":  {"true"},
		"pkpush":      {pkpushAlgorithm},
	}

	auth, err := signRequest(http.MethodPost, path, date, params, rec.Host, rec.Response.PKey, rec.PrivateKey)
	if err != nil {
		return goerror.NewServer(fmt.Errorf("sign transaction reply: %w", err))
	}

	endpoint := "https://" + rec.Host + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return goerror.NewServer(fmt.Errorf("build transaction reply: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", auth)
	req.Header.Set("x-duo-date", date)
	req.Header.Set("txId", txID)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return goerror.Wrap(err, "transaction reply failed", goerror.CodeReply)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return goerror.Wrap(err, "read reply response", goerror.CodeReply)
	}

	var envelope struct {
		Response json.RawMessage `json:"response"`
	}
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &envelope) != nil || len(envelope.Response) == 0 {
		return goerror.Wrap(nil,
			fmt.Sprintf("transaction reply rejected: status %d, body %s", resp.StatusCode, truncate(body, 200)),
			goerror.CodeReply)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

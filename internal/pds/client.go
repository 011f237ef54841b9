package pds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aitorres/orion/internal/telemetry"
)

const (
	// defaultTimeout bounds every admin API request.
	defaultTimeout = 10 * time.Second
	// batchSize is the maximum number of DIDs per getAccountInfos request.
	batchSize = 100
	// adminUser is the fixed basic-auth username for the PDS admin surface.
	adminUser = "admin"
)

// Client talks to the admin XRPC surface of a PDS.
type Client struct {
	hostname      string
	adminPassword string
	http          *RetryableHTTPClient
}

// NewClient creates a PDS admin client for the given hostname, e.g.
// "https://pds.example.com". A zero timeout falls back to the default.
func NewClient(hostname, adminPassword string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		hostname:      strings.TrimRight(hostname, "/"),
		adminPassword: adminPassword,
		http:          NewRetryableHTTPClient(timeout, 10),
	}
}

// Status reports whether the PDS health endpoint answers 200. Transport
// failures degrade to unhealthy rather than erroring the caller.
func (c *Client) Status(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.hostname+"/xrpc/_health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	telemetry.ObservePDS("health", err)
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to PDS for health check")
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// ListAccounts lists all repos on the PDS, enriched with admin account info.
// Enrichment failures degrade to "unknown" fields; a listRepos failure is an
// error.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var listed listReposResponse
	err := c.getJSON(ctx, "/xrpc/com.atproto.sync.listRepos", nil, false, &listed)
	telemetry.ObservePDS("listRepos", err)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	if len(listed.Repos) == 0 {
		return []Account{}, nil
	}

	dids := make([]string, 0, len(listed.Repos))
	for _, repo := range listed.Repos {
		dids = append(dids, repo.DID)
	}
	infos := c.accountInfos(ctx, dids)

	accounts := make([]Account, 0, len(listed.Repos))
	for _, repo := range listed.Repos {
		account := Account{Repo: repo, Handle: "unknown", Email: "unknown", IndexedAt: "unknown"}
		if info, ok := infos[repo.DID]; ok {
			if info.Handle != "" {
				account.Handle = info.Handle
			}
			if info.Email != "" {
				account.Email = info.Email
			}
			if info.CreatedAt != "" {
				account.IndexedAt = info.CreatedAt
			}
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// accountInfos fetches admin info for dids in batches. A failed batch is
// logged and skipped so the remaining accounts still render.
func (c *Client) accountInfos(ctx context.Context, dids []string) map[string]AccountInfo {
	infos := make(map[string]AccountInfo, len(dids))
	for start := 0; start < len(dids); start += batchSize {
		end := start + batchSize
		if end > len(dids) {
			end = len(dids)
		}
		params := url.Values{}
		for _, did := range dids[start:end] {
			params.Add("dids", did)
		}
		var batch accountInfosResponse
		if err := c.getJSON(ctx, "/xrpc/com.atproto.admin.getAccountInfos", params, true, &batch); err != nil {
			log.Error().Err(err).Int("batch_start", start).Msg("failed to retrieve account infos from PDS")
			continue
		}
		for _, info := range batch.Infos {
			infos[info.DID] = info
		}
	}
	return infos
}

// AccountInfo fetches admin info for a single account.
func (c *Client) AccountInfo(ctx context.Context, did string) (AccountInfo, error) {
	params := url.Values{"did": []string{did}}
	var info AccountInfo
	err := c.getJSON(ctx, "/xrpc/com.atproto.admin.getAccountInfo", params, true, &info)
	telemetry.ObservePDS("getAccountInfo", err)
	if err != nil {
		return AccountInfo{}, fmt.Errorf("account info for %s: %w", did, err)
	}
	return info, nil
}

// DeleteAccount permanently deletes an account from the PDS.
func (c *Client) DeleteAccount(ctx context.Context, did string) error {
	err := c.postJSON(ctx, "/xrpc/com.atproto.admin.deleteAccount", map[string]string{"did": did})
	telemetry.ObservePDS("deleteAccount", err)
	if err != nil {
		return fmt.Errorf("delete account %s: %w", did, err)
	}
	log.Info().Str("did", did).Msg("deleted PDS account")
	return nil
}

// Takedown applies a takedown to an account. The takedown ref is the current
// unix timestamp, matching what the PDS admin UI produces.
func (c *Client) Takedown(ctx context.Context, did string) error {
	payload := subjectStatusRequest{
		Subject:  repoRef{Type: "com.atproto.admin.defs#repoRef", DID: did},
		Takedown: takedownState{Applied: true, Ref: strconv.FormatInt(time.Now().Unix(), 10)},
	}
	err := c.postJSON(ctx, "/xrpc/com.atproto.admin.updateSubjectStatus", payload)
	telemetry.ObservePDS("takedown", err)
	if err != nil {
		return fmt.Errorf("takedown account %s: %w", did, err)
	}
	log.Info().Str("did", did).Msg("took down PDS account")
	return nil
}

// Untakedown lifts a takedown from an account.
func (c *Client) Untakedown(ctx context.Context, did string) error {
	payload := subjectStatusRequest{
		Subject:  repoRef{Type: "com.atproto.admin.defs#repoRef", DID: did},
		Takedown: takedownState{Applied: false},
	}
	err := c.postJSON(ctx, "/xrpc/com.atproto.admin.updateSubjectStatus", payload)
	telemetry.ObservePDS("untakedown", err)
	if err != nil {
		return fmt.Errorf("untakedown account %s: %w", did, err)
	}
	log.Info().Str("did", did).Msg("lifted takedown on PDS account")
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, authed bool, out interface{}) error {
	target := c.hostname + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	if authed {
		req.SetBasicAuth(adminUser, c.adminPassword)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.hostname+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(adminUser, c.adminPassword)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("PDS returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

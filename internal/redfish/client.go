package redfish

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/raidwatch/raidwatch/internal/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	maxResponseBodyBytes int64 = 4 * 1024 * 1024

	sessionsPath = "/redfish/v1/SessionService/Sessions"
	systemPath   = "/redfish/v1/Systems/System.Embedded.1"
	storagePath  = "/redfish/v1/Systems/System.Embedded.1/Storage"
)

// ClientConfig configures the iDRAC Redfish client.
type ClientConfig struct {
	Host     string
	Username string
	Password string
	// InsecureSkipVerify disables certificate verification. Embedded
	// management controllers ship with self-signed certificates, so this is
	// a configurable trust decision rather than a hard default.
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// Client maintains one authenticated session to the management controller
// and performs the raw inventory fetches. Authentication is serialized:
// concurrent callers observing an expired token trigger at most one login.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	baseURL    string

	// loginMu serializes login attempts; authMu guards the token fields.
	loginMu     sync.Mutex
	authMu      sync.Mutex
	token       string
	sessionPath string
}

// APIError represents an HTTP-level error from the Redfish API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("redfish request %s %s failed: status=%d body=%q", e.Method, e.Path, e.StatusCode, e.Body)
}

// NewClient creates a Redfish client for the given controller.
func NewClient(config ClientConfig) (*Client, error) {
	host := strings.TrimSpace(config.Host)
	if host == "" {
		return nil, fmt.Errorf("idrac host is required")
	}
	host = strings.TrimPrefix(strings.TrimPrefix(host, "https://"), "http://")
	host = strings.TrimSuffix(host, "/")

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: config.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	config.Host = host
	config.Timeout = timeout

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		baseURL: "https://" + host,
	}, nil
}

// Close releases idle transport connections and best-effort deletes the
// upstream session resource.
func (c *Client) Close(ctx context.Context) {
	if c == nil {
		return
	}
	c.Logout(ctx)
	if transport, ok := c.httpClient.Transport.(interface{ CloseIdleConnections() }); ok {
		transport.CloseIdleConnections()
	}
}

// Login authenticates against the session service and captures the issued
// token. Callers normally rely on ensureSession instead.
func (c *Client) Login(ctx context.Context) error {
	body, err := json.Marshal(sessionRequest{
		UserName: c.config.Username,
		Password: c.config.Password,
	})
	if err != nil {
		return errors.NewPollError(errors.ErrorTypeInternal, "login", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionsPath, bytes.NewReader(body))
	if err != nil {
		return errors.NewPollError(errors.ErrorTypeInternal, "login", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return classifyTransportError("login", err)
	}
	defer response.Body.Close()
	io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBodyBytes))

	if response.StatusCode != http.StatusOK && response.StatusCode != http.StatusCreated {
		return errors.WrapAuthError("login",
			fmt.Errorf("authentication failed with status %d", response.StatusCode)).
			WithStatusCode(response.StatusCode)
	}

	token := response.Header.Get("X-Auth-Token")
	if token == "" {
		return errors.WrapAuthError("login", fmt.Errorf("session created without X-Auth-Token header"))
	}

	c.authMu.Lock()
	c.token = token
	c.sessionPath = response.Header.Get("Location")
	c.authMu.Unlock()

	log.Debug().Str("host", c.config.Host).Msg("Redfish session established")
	return nil
}

// Logout deletes the current session resource. Best-effort; errors are only
// logged since the session expires upstream on its own.
func (c *Client) Logout(ctx context.Context) {
	c.authMu.Lock()
	token := c.token
	sessionPath := c.sessionPath
	c.token = ""
	c.sessionPath = ""
	c.authMu.Unlock()

	if token == "" || sessionPath == "" {
		return
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resolve(sessionPath), nil)
	if err != nil {
		return
	}
	request.Header.Set("X-Auth-Token", token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		log.Debug().Err(err).Msg("Redfish session delete failed")
		return
	}
	io.Copy(io.Discard, io.LimitReader(response.Body, 4096))
	response.Body.Close()
}

// ensureSession returns a valid token, logging in when necessary. The mutex
// makes authentication single-flight: concurrent callers either reuse the
// token or wait for the one login in progress.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	c.authMu.Lock()
	if c.token != "" {
		token := c.token
		c.authMu.Unlock()
		return token, nil
	}
	c.authMu.Unlock()

	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	// Another caller may have logged in while we waited for the gate.
	c.authMu.Lock()
	if c.token != "" {
		token := c.token
		c.authMu.Unlock()
		return token, nil
	}
	c.authMu.Unlock()

	if err := c.Login(ctx); err != nil {
		return "", err
	}

	c.authMu.Lock()
	token := c.token
	c.authMu.Unlock()
	return token, nil
}

// invalidateToken clears the cached token if it still matches the one a
// request failed with, so a re-auth already performed by another caller is
// not thrown away.
func (c *Client) invalidateToken(stale string) {
	c.authMu.Lock()
	if c.token == stale {
		c.token = ""
		c.sessionPath = ""
	}
	c.authMu.Unlock()
}

// FetchInventory performs one full upstream fetch sequence. A failure in one
// collection degrades that collection to empty while the others populate;
// the fetch as a whole fails only when authentication is rejected or every
// collection failed.
func (c *Client) FetchInventory(ctx context.Context) (*RawInventory, error) {
	inv := &RawInventory{CollectedAt: time.Now().UTC()}

	var system systemRecord
	if err := c.getJSON(ctx, systemPath, &system); err != nil {
		if errors.IsAuthError(err) {
			return nil, err
		}
		log.Warn().Err(err).Msg("System identity fetch failed; server info degrades to unknown")
	} else {
		inv.System = &system
	}

	var storageRoot collectionResponse
	if err := c.getJSON(ctx, storagePath, &storageRoot); err != nil {
		if errors.IsAuthError(err) {
			return nil, err
		}
		inv.DrivesErr = err
		inv.VolumesErr = err
		inv.ControllersErr = err
		log.Warn().Err(err).Msg("Storage collection fetch failed; inventory degrades to empty")
		return c.finishInventory(inv)
	}

	for _, member := range storageRoot.Members {
		var subsystem storageRecord
		if err := c.getJSON(ctx, member.ODataID, &subsystem); err != nil {
			if errors.IsAuthError(err) {
				return nil, err
			}
			inv.ControllersErr = joinErr(inv.ControllersErr, err)
			log.Warn().Err(err).Str("subsystem", member.ODataID).Msg("Storage subsystem fetch failed")
			continue
		}

		for _, controller := range subsystem.StorageControllers {
			inv.Controllers = append(inv.Controllers, rawController{
				Subsystem:  subsystem,
				Controller: controller,
			})
		}

		c.fetchDrives(ctx, &subsystem, inv)
		c.fetchVolumes(ctx, &subsystem, inv)
	}

	return c.finishInventory(inv)
}

func (c *Client) fetchDrives(ctx context.Context, subsystem *storageRecord, inv *RawInventory) {
	for _, ref := range subsystem.Drives {
		var drive driveRecord
		if err := c.getJSON(ctx, ref.ODataID, &drive); err != nil {
			inv.DrivesErr = joinErr(inv.DrivesErr, err)
			log.Warn().Err(err).Str("drive", ref.ODataID).Msg("Drive fetch failed")
			continue
		}
		if drive.ID == "" {
			drive.ID = path.Base(ref.ODataID)
		}
		inv.Drives = append(inv.Drives, drive)
	}
}

func (c *Client) fetchVolumes(ctx context.Context, subsystem *storageRecord, inv *RawInventory) {
	volumesPath := subsystem.Volumes.ODataID
	if volumesPath == "" {
		return
	}

	var volumes collectionResponse
	if err := c.getJSON(ctx, volumesPath, &volumes); err != nil {
		inv.VolumesErr = joinErr(inv.VolumesErr, err)
		log.Warn().Err(err).Str("subsystem", subsystem.ID).Msg("Volume collection fetch failed")
		return
	}

	for _, ref := range volumes.Members {
		var volume volumeRecord
		if err := c.getJSON(ctx, ref.ODataID, &volume); err != nil {
			inv.VolumesErr = joinErr(inv.VolumesErr, err)
			log.Warn().Err(err).Str("volume", ref.ODataID).Msg("Volume fetch failed")
			continue
		}
		if volume.ID == "" {
			volume.ID = path.Base(ref.ODataID)
		}
		inv.Volumes = append(inv.Volumes, volume)
	}
}

// finishInventory decides whether a degraded fetch still counts as a result.
func (c *Client) finishInventory(inv *RawInventory) (*RawInventory, error) {
	allFailed := inv.DrivesErr != nil && inv.VolumesErr != nil && inv.ControllersErr != nil &&
		len(inv.Drives) == 0 && len(inv.Volumes) == 0 && len(inv.Controllers) == 0
	if allFailed {
		return nil, inv.DrivesErr
	}
	return inv, nil
}

// getJSON issues one authenticated GET. A 401 invalidates the session and
// retries once after re-authentication; retry policy beyond that lives in
// the scheduler, not here.
func (c *Client) getJSON(ctx context.Context, apiPath string, destination any) error {
	token, err := c.ensureSession(ctx)
	if err != nil {
		return err
	}

	retried := false
	for {
		statusCode, err := c.doGet(ctx, apiPath, token, destination)
		if err == nil {
			return nil
		}

		if statusCode == http.StatusUnauthorized && !retried {
			retried = true
			c.invalidateToken(token)
			token, err = c.ensureSession(ctx)
			if err != nil {
				return err
			}
			continue
		}
		return err
	}
}

func (c *Client) doGet(ctx context.Context, apiPath, token string, destination any) (int, error) {
	op := "fetch " + apiPath

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(apiPath), nil)
	if err != nil {
		return 0, errors.NewPollError(errors.ErrorTypeInternal, op, err)
	}
	request.Header.Set("Accept", "application/json")
	request.Header.Set("X-Auth-Token", token)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return 0, classifyTransportError(op, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		apiErr := &APIError{
			StatusCode: response.StatusCode,
			Method:     http.MethodGet,
			Path:       apiPath,
			Body:       strings.TrimSpace(string(body)),
		}
		if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
			return response.StatusCode, errors.WrapAuthError(op, apiErr).WithStatusCode(response.StatusCode)
		}
		return response.StatusCode, errors.WrapConnectionError(op, apiErr)
	}

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if err != nil {
		return response.StatusCode, classifyTransportError(op, err)
	}
	if int64(len(responseBody)) > maxResponseBodyBytes {
		return response.StatusCode, errors.WrapDecodeError(op, fmt.Errorf("response body exceeds %d bytes", maxResponseBodyBytes))
	}

	if err := json.Unmarshal(responseBody, destination); err != nil {
		return response.StatusCode, errors.WrapDecodeError(op, err)
	}
	return response.StatusCode, nil
}

func (c *Client) resolve(apiPath string) string {
	if strings.HasPrefix(apiPath, "https://") || strings.HasPrefix(apiPath, "http://") {
		return apiPath
	}
	if !strings.HasPrefix(apiPath, "/") {
		apiPath = "/" + apiPath
	}
	return c.baseURL + apiPath
}

// classifyTransportError separates timeouts from generic connection
// failures; both degrade the collection, but metrics label them apart.
func classifyTransportError(op string, err error) error {
	var urlErr *url.Error
	if (stderrors.As(err, &urlErr) && urlErr.Timeout()) || stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(op, err)
	}
	return errors.WrapConnectionError(op, err)
}

// NewTimeoutError wraps a timeout with the poll error taxonomy.
func NewTimeoutError(op string, err error) error {
	return errors.NewPollError(errors.ErrorTypeTimeout, op, err)
}

func joinErr(existing, next error) error {
	if existing == nil {
		return next
	}
	return existing
}

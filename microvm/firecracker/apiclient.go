package firecracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
)

// apiClient drives one VM's Firecracker API socket over HTTP-over-Unix-
// domain-sockets, per the documented `PUT /boot-source`, `/drives/<id>`,
// `/machine-config`, `/balloon`, `/entropy`, `/vsocks/<id>`,
// `/network-interfaces/<id>`, and `/actions` endpoints.
type apiClient struct {
	socketPath string
	http       *http.Client
}

func newAPIClient(socketPath string) *apiClient {
	return &apiClient{
		socketPath: socketPath,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *apiClient) put(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal firecracker api body for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, "http://unix"+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build firecracker api request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("firecracker api %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("firecracker api %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

type bootSourceBody struct {
	KernelImagePath string `json:"kernel_image_path"`
	BootArgs        string `json:"boot_args,omitempty"`
}

func (c *apiClient) putBootSource(ctx context.Context, kernelPath, bootArgs string) error {
	return c.put(ctx, "/boot-source", bootSourceBody{KernelImagePath: kernelPath, BootArgs: bootArgs})
}

type driveBody struct {
	DriveID      string `json:"drive_id"`
	PathOnHost   string `json:"path_on_host"`
	IsRootDevice bool   `json:"is_root_device"`
	IsReadOnly   bool   `json:"is_read_only"`
}

func (c *apiClient) putDrive(ctx context.Context, id, path string, isRoot, readOnly bool) error {
	return c.put(ctx, "/drives/"+id, driveBody{DriveID: id, PathOnHost: path, IsRootDevice: isRoot, IsReadOnly: readOnly})
}

type machineConfigBody struct {
	VCPUCount  int `json:"vcpu_count"`
	MemSizeMib int `json:"mem_size_mib"`
}

func (c *apiClient) putMachineConfig(ctx context.Context, vcpus, memMB int) error {
	return c.put(ctx, "/machine-config", machineConfigBody{VCPUCount: vcpus, MemSizeMib: memMB})
}

type balloonBody struct {
	AmountMib             int  `json:"amount_mib"`
	DeflateOnOom          bool `json:"deflate_on_oom"`
	StatsPollingIntervalS int  `json:"stats_polling_interval_s"`
}

func (c *apiClient) putBalloon(ctx context.Context) error {
	return c.put(ctx, "/balloon", balloonBody{DeflateOnOom: true, StatsPollingIntervalS: 1})
}

type entropyBody struct {
	RateLimiter map[string]any `json:"rate_limiter,omitempty"`
}

func (c *apiClient) putEntropy(ctx context.Context) error {
	return c.put(ctx, "/entropy", entropyBody{})
}

type vsockBody struct {
	VsockID  string `json:"vsock_id"`
	GuestCID int    `json:"guest_cid"`
	UdsPath  string `json:"uds_path"`
}

func (c *apiClient) putVsock(ctx context.Context, id string, guestCID int, udsPath string) error {
	return c.put(ctx, "/vsocks/"+id, vsockBody{VsockID: id, GuestCID: guestCID, UdsPath: udsPath})
}

type networkInterfaceBody struct {
	IfaceID     string `json:"iface_id"`
	HostDevName string `json:"host_dev_name"`
}

func (c *apiClient) putNetworkInterface(ctx context.Context, id, hostDev string) error {
	return c.put(ctx, "/network-interfaces/"+id, networkInterfaceBody{IfaceID: id, HostDevName: hostDev})
}

type actionBody struct {
	ActionType string `json:"action_type"`
}

func (c *apiClient) putAction(ctx context.Context, actionType string) error {
	return c.put(ctx, "/actions", actionBody{ActionType: actionType})
}

package crx_arm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Bridge is the raw invokable surface of the external kinematics solver.
type Bridge interface {
	// Start brings the solver runtime up. It fails with ErrEnvironmentUnavailable when
	// the runtime cannot be reached.
	Start(ctx context.Context) error
	// Prewarm runs a throwaway computation so the first real call is not slow.
	Prewarm(ctx context.Context) error
	// ForwardKinematics returns ErrNoResult when the solver produced nothing.
	ForwardKinematics(ctx context.Context, joints JointVector, model ArmModel) (FkResult, error)
	// InverseKinematics returns every branch reaching pose, possibly none.
	InverseKinematics(ctx context.Context, pose CartesianPose, model ArmModel) ([]JointVector, error)
	DhParameters(ctx context.Context, model ArmModel) (DhParameters, error)
}

// FkResult is a forward kinematics answer.
type FkResult struct {
	Pose          CartesianPose
	Configuration Configuration
}

// HTTPBridge talks to a solver service exposing the solver calls as JSON endpoints.
type HTTPBridge struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBridge creates a bridge for the solver at baseURL.
func NewHTTPBridge(baseURL string, timeout time.Duration) *HTTPBridge {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &HTTPBridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type fkRequest struct {
	Joints []float64 `json:"joints"`
	Model  string    `json:"model"`
}

type fkResponse struct {
	CartesianPose
	Configuration *Configuration `json:"configuration"`
}

type ikRequest struct {
	CartesianPose
	Model string `json:"model"`
}

func (b *HTTPBridge) Start(ctx context.Context) error {
	if b.baseURL == "" {
		return errors.Wrap(ErrEnvironmentUnavailable, "no solver url configured")
	}
	if err := b.call(ctx, http.MethodGet, "/health", nil, nil); err != nil {
		return errors.Wrapf(ErrEnvironmentUnavailable, "solver at %s: %v", b.baseURL, err)
	}
	return nil
}

func (b *HTTPBridge) Prewarm(ctx context.Context) error {
	return b.call(ctx, http.MethodPost, "/prewarm", struct{}{}, nil)
}

func (b *HTTPBridge) ForwardKinematics(ctx context.Context, joints JointVector, model ArmModel) (FkResult, error) {
	var resp *fkResponse
	req := fkRequest{Joints: joints.Slice(), Model: model.String()}
	if err := b.call(ctx, http.MethodPost, "/fk", req, &resp); err != nil {
		return FkResult{}, err
	}
	if resp == nil || resp.Configuration == nil {
		return FkResult{}, ErrNoResult
	}
	return FkResult{Pose: resp.CartesianPose, Configuration: *resp.Configuration}, nil
}

func (b *HTTPBridge) InverseKinematics(ctx context.Context, pose CartesianPose, model ArmModel) ([]JointVector, error) {
	var raw [][]float64
	if err := b.call(ctx, http.MethodPost, "/ik", ikRequest{CartesianPose: pose, Model: model.String()}, &raw); err != nil {
		return nil, err
	}
	out := make([]JointVector, 0, len(raw))
	for i, values := range raw {
		j, err := JointsFromSlice(values)
		if err != nil {
			return nil, errors.Wrapf(err, "solution %d", i)
		}
		out = append(out, j)
	}
	return out, nil
}

func (b *HTTPBridge) DhParameters(ctx context.Context, model ArmModel) (DhParameters, error) {
	var dh DhParameters
	path := "/dh?model=" + url.QueryEscape(model.String())
	if err := b.call(ctx, http.MethodGet, path, nil, &dh); err != nil {
		return DhParameters{}, err
	}
	return dh, nil
}

func (b *HTTPBridge) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to encode request")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "failed to decode %s response", path)
	}
	return nil
}

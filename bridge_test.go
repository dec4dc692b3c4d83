package crx_arm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSolverServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/prewarm", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/fk", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Joints []float64 `json:"joints"`
			Model  string    `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Joints[0] > 1000 {
			_, _ = w.Write([]byte("null"))
			return
		}
		_, _ = w.Write([]byte(`{"x":1,"y":2,"z":3,"w":4,"p":5,"r":6,
			"configuration":{"wrist_flip":1,"arm_up_down":2,"arm_left_right":1,"arm_front_back":2,"turn_axis_4":0,"turn_axis_5":0,"turn_axis_6":0}}`))
	})
	mux.HandleFunc("/ik", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			X     float64 `json:"x"`
			Model string  `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.X > 10000 {
			_, _ = w.Write([]byte("[]"))
			return
		}
		if req.Model != "crx-10ia-l" {
			http.Error(w, "unsupported model", http.StatusUnprocessableEntity)
			return
		}
		_, _ = w.Write([]byte(`[[0,10,20,0,30,0],[180,-10,160,180,-30,180]]`))
	})
	mux.HandleFunc("/dh", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("model") != "crx-10ia" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"a2":540,"a3":0,"d4":540,"d5":-150,"d6":160,"base_height":245}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPBridgeStart(t *testing.T) {
	srv := newSolverServer(t)
	ctx := context.Background()

	require.NoError(t, NewHTTPBridge(srv.URL+"/", time.Second).Start(ctx))
	require.NoError(t, NewHTTPBridge(srv.URL, time.Second).Prewarm(ctx))

	err := NewHTTPBridge("", time.Second).Start(ctx)
	assert.True(t, errors.Is(err, ErrEnvironmentUnavailable))

	err = NewHTTPBridge("http://127.0.0.1:1", 200*time.Millisecond).Start(ctx)
	assert.True(t, errors.Is(err, ErrEnvironmentUnavailable))
}

func TestHTTPBridgeForwardKinematics(t *testing.T) {
	b := NewHTTPBridge(newSolverServer(t).URL, time.Second)

	res, err := b.ForwardKinematics(context.Background(), JointVector{}, ModelCRX10iA)
	require.NoError(t, err)
	assert.Equal(t, CartesianPose{X: 1, Y: 2, Z: 3, W: 4, P: 5, R: 6}, res.Pose)
	assert.Equal(t, "F D B L, 0, 0, 0", res.Configuration.String())

	_, err = b.ForwardKinematics(context.Background(), JointVector{5000}, ModelCRX10iA)
	assert.True(t, errors.Is(err, ErrNoResult))
}

func TestHTTPBridgeInverseKinematics(t *testing.T) {
	b := NewHTTPBridge(newSolverServer(t).URL, time.Second)
	ctx := context.Background()

	sols, err := b.InverseKinematics(ctx, CartesianPose{X: 500}, ModelCRX10iAL)
	require.NoError(t, err)
	require.Len(t, sols, 2)
	assert.Equal(t, JointVector{180, -10, 160, 180, -30, 180}, sols[1])

	sols, err = b.InverseKinematics(ctx, CartesianPose{X: 100000}, ModelCRX10iAL)
	require.NoError(t, err)
	assert.Empty(t, sols)

	_, err = b.InverseKinematics(ctx, CartesianPose{X: 500}, ModelCRX10iA)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "unsupported model")
}

func TestHTTPBridgeDhParameters(t *testing.T) {
	b := NewHTTPBridge(newSolverServer(t).URL, time.Second)

	dh, err := b.DhParameters(context.Background(), ModelCRX10iA)
	require.NoError(t, err)
	assert.Equal(t, DhParameters{A2: 540, D4: 540, D5: -150, D6: 160, BaseHeight: 245}, dh)

	_, err = b.DhParameters(context.Background(), ModelCRX10iAL)
	assert.Error(t, err)
}

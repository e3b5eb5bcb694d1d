package bus

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanderheijden86/impactview/pkg/model"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func samplePanel() model.PanelData {
	return model.PanelData{
		GraphData: []model.GraphResponse{{
			Nodes: []model.Node{{ID: "A"}, {ID: "B"}},
			Links: []model.Link{{Source: "A", Target: "B", Critical: true}},
		}},
		TestPlan: "# Plan",
		RepoName: "billing",
	}
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "impactview.panel.win-abc", Subject("win-abc"))
	assert.Equal(t, "impactview.panel.anonymous", Subject(""))
}

func TestMirror_AttachPublishesEmissions(t *testing.T) {
	url := startTestNATS(t)

	m, err := NewMirror(url, quietLogger())
	require.NoError(t, err)
	defer m.Close()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	ch := make(chan *nats.Msg, 1)
	sub, err := nc.ChanSubscribe(Subject("win-1"), ch)
	require.NoError(t, err)
	defer sub.Unsubscribe() //nolint:errcheck
	require.NoError(t, nc.Flush())

	cell := New[model.PanelData]()
	m.Attach(cell, func() string { return "win-1" })
	cell.Publish(samplePanel())
	require.NoError(t, m.Flush())

	select {
	case msg := <-ch:
		var got model.PanelData
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, samplePanel(), got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for mirrored panel")
	}
}

func TestMirror_FollowRepublishesIntoCell(t *testing.T) {
	url := startTestNATS(t)

	leader, err := NewMirror(url, quietLogger())
	require.NoError(t, err)
	defer leader.Close()
	follower, err := NewMirror(url, quietLogger())
	require.NoError(t, err)
	defer follower.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := New[model.PanelData]()
	updates := local.Subscribe(ctx)
	require.NoError(t, follower.Follow(ctx, "win-2", local))

	require.NoError(t, leader.Publish("win-2", samplePanel()))
	require.NoError(t, leader.Flush())

	u := recv(t, updates)
	assert.Equal(t, "billing", u.Value.RepoName)
	require.Len(t, u.Value.GraphData, 1)
	assert.Len(t, u.Value.GraphData[0].Nodes, 2)
}

func TestMirror_FollowDropsMalformed(t *testing.T) {
	url := startTestNATS(t)

	follower, err := NewMirror(url, quietLogger())
	require.NoError(t, err)
	defer follower.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	local := New[model.PanelData]()
	require.NoError(t, follower.Follow(ctx, "win-3", local))

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()
	require.NoError(t, nc.Publish(Subject("win-3"), []byte("{not json")))
	require.NoError(t, nc.Flush())
	require.NoError(t, follower.Flush())

	time.Sleep(50 * time.Millisecond)
	_, ok := local.Latest()
	assert.False(t, ok)
}

func TestNewMirror_BadURL(t *testing.T) {
	_, err := NewMirror("nats://127.0.0.1:1", quietLogger(), nats.Timeout(200*time.Millisecond), nats.NoReconnect())
	assert.Error(t, err)
}

package mockapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nshruti113/netguard-dashboard/internal/api"
	"github.com/nshruti113/netguard-dashboard/internal/detection"
	"github.com/nshruti113/netguard-dashboard/internal/models"
	"github.com/nshruti113/netguard-dashboard/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestStore() *Store {
	return NewStore(StoreOptions{MaxItems: 200, HashCost: bcrypt.MinCost})
}

// newTestAPI starts the mock API and returns a client holding no credential
func newTestAPI(t *testing.T, store *Store) (*api.Client, *session.Memory) {
	t.Helper()
	srv := httptest.NewServer(NewServer(store).Handler())
	t.Cleanup(srv.Close)

	sess := session.NewMemory("")
	c, err := api.NewClient(sess, api.Options{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)
	return c, sess
}

func TestRejectsMissingToken(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestStore()).Handler())
	defer srv.Close()

	for _, header := range []string{"", "Token", "Token nope", "Basic abc"} {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/flows/", nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, header)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := httptest.NewServer(NewServer(newTestStore()).Handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/flows/", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRegisterLoginAndAPIKey(t *testing.T) {
	store := newTestStore()
	client, sess := newTestAPI(t, store)
	ctx := context.Background()

	cred, err := client.Register(ctx, models.RegisterRequest{Username: "ops", Email: "Ops@Example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEmpty(t, cred.Token)
	assert.Equal(t, "ops@example.com", cred.Email)
	assert.Equal(t, cred.Token, sess.Token())

	_, err = client.Register(ctx, models.RegisterRequest{Email: "ops@example.com", Password: "hunter22"})
	var te *api.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusBadRequest, te.StatusCode)

	require.NoError(t, client.Logout())
	_, err = client.Login(ctx, models.LoginRequest{Email: "ops@example.com", Password: "wrong-pass"})
	assert.True(t, api.IsAuth(err))

	cred2, err := client.Login(ctx, models.LoginRequest{Email: "ops@example.com", Password: "hunter22"})
	require.NoError(t, err)
	assert.NotEqual(t, cred.Token, cred2.Token)

	key, err := client.APIKey(ctx)
	require.NoError(t, err)
	assert.Contains(t, key.Key, "NGR-API-")
	assert.False(t, key.CreatedAt.IsZero())

	cfg, err := client.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, cfg["detection_enabled"])
}

func TestSimulatedTrafficThroughClient(t *testing.T) {
	store := newTestStore()
	client, _ := newTestAPI(t, store)
	ctx := context.Background()

	_, err := client.Register(ctx, models.RegisterRequest{Email: "sim@example.com", Password: "secret1"})
	require.NoError(t, err)
	owner, ok := store.UserID("sim@example.com")
	require.True(t, ok)

	sim := NewSimulator(store, SimulatorOptions{FlowsPerTick: 10, Owner: owner, Seed: 42})
	now := time.Now().UTC()
	quiet := sim.Inject("", now)
	assert.Empty(t, quiet.Alerts)
	res := sim.Inject(AttackPortScan, now)
	require.NotEmpty(t, res.Alerts)

	flows, err := client.Flows(ctx)
	require.NoError(t, err)
	assert.Len(t, flows, quiet.Flows+res.Flows)

	recent, err := client.RecentFlows(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, flows[0].ID, recent[0].ID)

	alerts, err := client.Alerts(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, alerts)
	var scan models.Alert
	for _, a := range alerts {
		if a.AttackType == detection.LabelPortScan {
			scan = a
		}
	}
	require.NotEmpty(t, scan.ID)
	assert.Equal(t, models.SeverityMedium, scan.Severity, "derived on the client side")
	assert.Equal(t, owner, scan.User)

	linked, err := client.Flow(ctx, scan.LinkedFlowID())
	require.NoError(t, err)
	assert.Equal(t, scan.LinkedFlowID(), linked.ID)

	one, err := client.Alert(ctx, scan.ID)
	require.NoError(t, err)
	assert.Equal(t, scan.AttackType, one.AttackType)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnderAttack, status.NetworkStatus)
	assert.Equal(t, len(alerts), status.RecentAlertsCount)

	graded, err := client.AlertsBySeverity(ctx, models.SeverityMedium)
	require.NoError(t, err)
	for _, a := range graded {
		assert.NotEqual(t, scan.ID, a.ID, "the port scan alert carries no stored severity")
	}

	_, err = client.Flow(ctx, "missing")
	var te *api.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusNotFound, te.StatusCode)
}

func TestCreateFlow(t *testing.T) {
	store := newTestStore()
	client, _ := newTestAPI(t, store)
	ctx := context.Background()
	_, err := client.Register(ctx, models.RegisterRequest{Email: "w@example.com", Password: "secret1"})
	require.NoError(t, err)

	created, err := client.CreateFlow(ctx, models.NetworkFlow{Source: "10.1.1.1", Destination: "10.2.2.2", DestinationPort: 443, Protocol: "TCP"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := client.Flow(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.1.1.1", got.Source)
	assert.Equal(t, 443, got.DestinationPort)
}

func TestStoreRetentionAndStatus(t *testing.T) {
	store := NewStore(StoreOptions{MaxItems: 3, HashCost: bcrypt.MinCost})
	now := time.Now()
	for i, id := range []string{"a", "b", "c", "d"} {
		store.AddFlows(models.NetworkFlow{ID: id, StartDateTime: now.Add(time.Duration(i) * time.Second)})
	}
	flows := store.Flows(0)
	require.Len(t, flows, 3)
	assert.Equal(t, "d", flows[0].ID)
	_, ok := store.Flow("a")
	assert.False(t, ok)

	st := store.Status(now, time.Minute, 30*time.Second)
	assert.Equal(t, models.StatusSafe, st.NetworkStatus)
	assert.Equal(t, 3, st.RecentFlowsCount)

	store.AddAlerts(models.Alert{ID: "x", Timestamp: now.Add(-45 * time.Second)})
	st = store.Status(now, time.Minute, 30*time.Second)
	assert.Equal(t, models.StatusSafe, st.NetworkStatus)
	assert.Equal(t, 1, st.RecentAlertsCount)

	store.AddAlerts(models.Alert{ID: "y", Timestamp: now})
	assert.Equal(t, models.StatusUnderAttack, store.Status(now, time.Minute, 30*time.Second).NetworkStatus)
}

func TestGeneratorScenariosAreDetected(t *testing.T) {
	gen := NewGenerator(7)
	d := detection.NewDetector()
	now := time.Now()

	want := map[string]string{
		AttackDDoS:       detection.LabelDDoS,
		AttackPortScan:   detection.LabelPortScan,
		AttackBruteForce: detection.LabelBruteForce,
		AttackSlow:       detection.LabelSlowFlows,
		AttackInjection:  "SQL Injection",
	}
	for attack, label := range want {
		var got []string
		for _, f := range d.Analyze(gen.Attack(attack, now)) {
			got = append(got, f.AttackType)
		}
		assert.Contains(t, got, label, attack)
	}
	assert.Nil(t, gen.Attack("unknown", now))
}

func TestTickCyclesAttacks(t *testing.T) {
	sim := NewSimulator(newTestStore(), SimulatorOptions{FlowsPerTick: 5, AttackPercent: 100, Seed: 1})
	now := time.Now()
	for _, want := range AttackSequence {
		assert.Equal(t, want, sim.Tick(now).Attack)
	}
	assert.Equal(t, AttackSequence[0], sim.Tick(now).Attack)

	calm := NewSimulator(newTestStore(), SimulatorOptions{FlowsPerTick: 5, Seed: 1})
	r := calm.Tick(now)
	assert.Empty(t, r.Attack)
	assert.Equal(t, 5, r.Flows)
}

package mockapi

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

// Attack scenarios the generator can produce
const (
	AttackDDoS       = "ddos"
	AttackPortScan   = "port_scan"
	AttackBruteForce = "brute_force"
	AttackSlow       = "slow"
	AttackInjection  = "injection"
)

// AttackSequence is the order the simulator cycles through
var AttackSequence = []string{AttackDDoS, AttackPortScan, AttackBruteForce, AttackSlow, AttackInjection}

const protectedHost = "192.168.1.100"

type service struct {
	port     int
	protocol string
	app      string
}

var services = []service{
	{443, "TCP", "HTTPS"},
	{80, "TCP", "HTTP"},
	{53, "UDP", "DNS"},
	{8080, "TCP", "HTTP-Proxy"},
	{993, "TCP", "IMAPS"},
}

// Generator produces synthetic flow records. It is not safe for concurrent
// use.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

func (g *Generator) ip() string {
	return fmt.Sprintf("%d.%d.%d.%d",
		g.rng.Intn(223)+1, g.rng.Intn(256), g.rng.Intn(256), g.rng.Intn(254)+1)
}

func (g *Generator) botnet(size int) []string {
	ips := make([]string, size)
	for i := range ips {
		ips[i] = g.ip()
	}
	return ips
}

func (g *Generator) newFlow(src, dst string, svc service, start time.Time, duration float64) models.NetworkFlow {
	return models.NetworkFlow{
		ID:              uuid.New().String(),
		Source:          src,
		SourcePort:      g.rng.Intn(65535-1024) + 1024,
		Destination:     dst,
		DestinationPort: svc.port,
		Protocol:        svc.protocol,
		ApplicationName: svc.app,
		StartDateTime:   start,
		StopDateTime:    start.Add(time.Duration(duration * float64(time.Second))),
		Duration:        duration,
		Prediction:      "benign",
	}
}

// NormalFlow creates ordinary client traffic towards the internal network
func (g *Generator) NormalFlow(now time.Time) models.NetworkFlow {
	svc := services[g.rng.Intn(len(services))]
	dst := fmt.Sprintf("192.168.1.%d", g.rng.Intn(11)+10)
	duration := float64(g.rng.Intn(5000)+50) / 1000
	start := now.Add(-time.Duration(g.rng.Intn(4000)) * time.Millisecond)

	f := g.newFlow(g.ip(), dst, svc, start, duration)
	f.TotalSourceBytes = int64(g.rng.Intn(20000) + 200)
	f.TotalDestinationBytes = int64(g.rng.Intn(200000) + 500)
	f.TotalSourcePackets = int64(g.rng.Intn(40) + 2)
	f.TotalDestinationPackets = int64(g.rng.Intn(160) + 2)
	return f
}

// Attack creates the flows of one attack scenario
func (g *Generator) Attack(kind string, now time.Time) []models.NetworkFlow {
	switch kind {
	case AttackDDoS:
		return g.ddos(now)
	case AttackPortScan:
		return g.portScan(now)
	case AttackBruteForce:
		return g.bruteForce(now)
	case AttackSlow:
		return g.slow(now)
	case AttackInjection:
		return g.injection(now)
	}
	return nil
}

// ddos floods the protected host from a botnet
func (g *Generator) ddos(now time.Time) []models.NetworkFlow {
	bots := g.botnet(30)
	count := g.rng.Intn(40) + 60
	flows := make([]models.NetworkFlow, 0, count)
	for i := 0; i < count; i++ {
		f := g.newFlow(bots[g.rng.Intn(len(bots))], protectedHost, services[1], now, 0.01)
		f.TotalSourceBytes = 64
		f.TotalSourcePackets = int64(g.rng.Intn(400) + 100)
		flows = append(flows, f)
	}
	return flows
}

// portScan probes sequential low ports of the protected host
func (g *Generator) portScan(now time.Time) []models.NetworkFlow {
	src := g.ip()
	ports := g.rng.Perm(1024)[:g.rng.Intn(20)+20]
	flows := make([]models.NetworkFlow, 0, len(ports))
	for _, p := range ports {
		f := g.newFlow(src, protectedHost, service{p + 1, "TCP", ""}, now, 0)
		f.TotalSourceBytes = 60
		f.TotalSourcePackets = 1
		flows = append(flows, f)
	}
	return flows
}

// bruteForce hammers SSH with short-lived sessions
func (g *Generator) bruteForce(now time.Time) []models.NetworkFlow {
	src := g.ip()
	count := g.rng.Intn(20) + 25
	flows := make([]models.NetworkFlow, 0, count)
	for i := 0; i < count; i++ {
		f := g.newFlow(src, protectedHost, service{22, "TCP", "SSH"}, now, 0.3)
		f.TotalSourceBytes = int64(g.rng.Intn(800) + 400)
		f.TotalDestinationBytes = int64(g.rng.Intn(800) + 400)
		f.TotalSourcePackets = 12
		f.TotalDestinationPackets = 10
		flows = append(flows, f)
	}
	return flows
}

// slow keeps many connections open while sending almost nothing
func (g *Generator) slow(now time.Time) []models.NetworkFlow {
	attackers := []string{"198.51.100.20", "198.51.100.21", "198.51.100.22"}
	count := g.rng.Intn(10) + 12
	flows := make([]models.NetworkFlow, 0, count)
	for i := 0; i < count; i++ {
		duration := float64(g.rng.Intn(30) + 60)
		start := now.Add(-time.Duration(duration) * time.Second)
		f := g.newFlow(attackers[g.rng.Intn(len(attackers))], protectedHost, services[1], start, duration)
		f.TotalSourceBytes = int64(g.rng.Intn(200) + 10)
		f.TotalSourcePackets = int64(g.rng.Intn(10) + 1)
		flows = append(flows, f)
	}
	return flows
}

// injection is a handful of requests an upstream classifier already flagged
func (g *Generator) injection(now time.Time) []models.NetworkFlow {
	src := g.ip()
	count := g.rng.Intn(3) + 1
	flows := make([]models.NetworkFlow, 0, count)
	for i := 0; i < count; i++ {
		f := g.newFlow(src, protectedHost, services[0], now, 0.2)
		f.TotalSourceBytes = int64(g.rng.Intn(3000) + 1500)
		f.TotalDestinationBytes = int64(g.rng.Intn(1000) + 200)
		f.TotalSourcePackets = 6
		f.TotalDestinationPackets = 4
		f.Prediction = "SQL Injection"
		flows = append(flows, f)
	}
	return flows
}

package detection

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

// Attack-type labels raised by the detector
const (
	LabelDDoS        = "DDoS Attack"
	LabelPortScan    = "Port Scanning"
	LabelBruteForce  = "Brute Force Login"
	LabelSlowFlows   = "Suspicious Slow Connections"
	LabelRateAnomaly = "Traffic Rate Anomaly"
	LabelMalicious   = "Malicious Traffic"
)

type Detector struct {
	baseline   *Baseline
	thresholds *Thresholds
}

type Baseline struct {
	AverageFlowRate   float64
	AverageSources    int
	AverageEntropy    float64
	StandardDeviation float64
	AverageDuration   float64
}

type Thresholds struct {
	FlowRateZScore    float64
	SourceEntropyMin  float64
	DDoSFlows         int
	DDoSSources       int
	ScanPorts         int
	BruteForceFlows   int
	SlowFlowSeconds   float64
	SlowFlowMaxBytes  int64
	SlowFlows         int
	ClassifiedMinimum int
}

// Finding is one attack recognised in a batch of flows
type Finding struct {
	ID          string
	AttackType  string
	Confidence  float64
	// Severity is only set by detectors that grade their own findings
	Severity    models.Severity
	FlowID      string
	Sources     []string
	Description string
	DetectedAt  time.Time
}

// Alert turns the finding into an API alert record owned by user
func (f Finding) Alert(user string) models.Alert {
	return models.Alert{
		ID:         f.ID,
		User:       user,
		FlowID:     f.FlowID,
		AttackType: f.AttackType,
		Timestamp:  f.DetectedAt,
		Severity:   f.Severity,
	}
}

func NewDetector() *Detector {
	return &Detector{
		baseline: &Baseline{
			AverageFlowRate:   20.0,
			AverageSources:    15,
			AverageEntropy:    3.5,
			StandardDeviation: 8.0,
			AverageDuration:   2.0,
		},
		thresholds: &Thresholds{
			FlowRateZScore:    3.0,
			SourceEntropyMin:  2.0,
			DDoSFlows:         40,
			DDoSSources:       10,
			ScanPorts:         15,
			BruteForceFlows:   20,
			SlowFlowSeconds:   30,
			SlowFlowMaxBytes:  2048,
			SlowFlows:         10,
			ClassifiedMinimum: 1,
		},
	}
}

// Analyze runs every detector over one batch of flows
func (d *Detector) Analyze(flows []models.NetworkFlow) []Finding {
	if len(flows) == 0 {
		return nil
	}

	metrics := d.calculateMetrics(flows)
	findings := make([]Finding, 0)

	for _, detect := range []func([]models.NetworkFlow, *FlowMetrics) *Finding{
		d.detectDDoS,
		d.detectPortScan,
		d.detectBruteForce,
		d.detectSlowFlows,
		d.detectClassified,
	} {
		if f := detect(flows, metrics); f != nil {
			findings = append(findings, *f)
		}
	}
	if f := d.detectRateAnomaly(flows, metrics); f != nil {
		findings = append(findings, *f)
	}
	return findings
}

type FlowMetrics struct {
	TotalFlows       int
	UniqueSources    int
	SourceCounts     map[string]int
	DestinationCount map[string]int
	ProtocolCounts   map[string]int
	SourceEntropy    float64
	AvgDuration      float64
}

func (d *Detector) calculateMetrics(flows []models.NetworkFlow) *FlowMetrics {
	sources := make(map[string]int)
	destinations := make(map[string]int)
	protocols := make(map[string]int)
	totalDuration := 0.0

	for _, f := range flows {
		sources[f.Source]++
		destinations[f.Destination]++
		protocols[strings.ToUpper(f.Protocol)]++
		totalDuration += f.Duration
	}

	return &FlowMetrics{
		TotalFlows:       len(flows),
		UniqueSources:    len(sources),
		SourceCounts:     sources,
		DestinationCount: destinations,
		ProtocolCounts:   protocols,
		SourceEntropy:    calculateEntropy(sources),
		AvgDuration:      totalDuration / float64(len(flows)),
	}
}

// detectDDoS looks for one destination receiving flows from many sources
func (d *Detector) detectDDoS(flows []models.NetworkFlow, metrics *FlowMetrics) *Finding {
	top := topKeys(metrics.DestinationCount, 1)
	if len(top) == 0 || top[0] == "" {
		return nil
	}
	target := top[0]
	hits := metrics.DestinationCount[target]
	if hits < d.thresholds.DDoSFlows {
		return nil
	}

	attackers := make(map[string]int)
	first := ""
	for _, f := range flows {
		if f.Destination == target {
			attackers[f.Source]++
			if first == "" {
				first = f.ID
			}
		}
	}
	if len(attackers) < d.thresholds.DDoSSources {
		return nil
	}

	confidence := math.Min(float64(hits)/float64(d.thresholds.DDoSFlows*2), 1.0)
	return newFinding(LabelDDoS, confidence, first, topKeys(attackers, 20),
		fmt.Sprintf("%d flows from %d sources targeting %s", hits, len(attackers), target))
}

// detectPortScan looks for a source probing many ports of one destination
func (d *Detector) detectPortScan(flows []models.NetworkFlow, _ *FlowMetrics) *Finding {
	type pair struct{ src, dst string }
	ports := make(map[pair]map[int]bool)
	firstFlow := make(map[pair]string)

	for _, f := range flows {
		if f.DestinationPort == 0 {
			continue
		}
		k := pair{f.Source, f.Destination}
		if ports[k] == nil {
			ports[k] = make(map[int]bool)
			firstFlow[k] = f.ID
		}
		ports[k][f.DestinationPort] = true
	}

	var worst pair
	most := 0
	for k, set := range ports {
		if len(set) > most || (len(set) == most && k.src < worst.src) {
			worst, most = k, len(set)
		}
	}
	if most < d.thresholds.ScanPorts {
		return nil
	}

	confidence := math.Min(float64(most)/float64(d.thresholds.ScanPorts*3), 1.0)
	return newFinding(LabelPortScan, confidence, firstFlow[worst], []string{worst.src},
		fmt.Sprintf("%s probed %d ports on %s", worst.src, most, worst.dst))
}

var authPorts = map[int]bool{21: true, 22: true, 23: true, 3389: true, 5900: true}

// detectBruteForce looks for repeated short flows against login services
func (d *Detector) detectBruteForce(flows []models.NetworkFlow, _ *FlowMetrics) *Finding {
	attempts := make(map[string]int)
	first := make(map[string]string)
	for _, f := range flows {
		if !authPorts[f.DestinationPort] {
			continue
		}
		attempts[f.Source]++
		if _, ok := first[f.Source]; !ok {
			first[f.Source] = f.ID
		}
	}

	top := topKeys(attempts, 1)
	if len(top) == 0 || attempts[top[0]] < d.thresholds.BruteForceFlows {
		return nil
	}
	src := top[0]
	confidence := math.Min(float64(attempts[src])/float64(d.thresholds.BruteForceFlows*2), 1.0)
	return newFinding(LabelBruteForce, confidence, first[src], []string{src},
		fmt.Sprintf("%d login attempts from %s", attempts[src], src))
}

// detectSlowFlows looks for long-lived connections that carry almost no data
func (d *Detector) detectSlowFlows(flows []models.NetworkFlow, _ *FlowMetrics) *Finding {
	slow := 0
	slowSources := make(map[string]int)
	first := ""
	for _, f := range flows {
		if f.Duration < d.thresholds.SlowFlowSeconds {
			continue
		}
		if f.TotalSourceBytes+f.TotalDestinationBytes > d.thresholds.SlowFlowMaxBytes {
			continue
		}
		slow++
		slowSources[f.Source]++
		if first == "" {
			first = f.ID
		}
	}

	if slow < d.thresholds.SlowFlows || len(slowSources) >= 10 {
		return nil
	}
	confidence := math.Min(float64(slow)/float64(d.thresholds.SlowFlows*3), 1.0)
	return newFinding(LabelSlowFlows, confidence, first, topKeys(slowSources, 10),
		fmt.Sprintf("%d slow connections from %d sources", slow, len(slowSources)))
}

// detectClassified raises the label an upstream classifier put on a flow
func (d *Detector) detectClassified(flows []models.NetworkFlow, _ *FlowMetrics) *Finding {
	labels := make(map[string]int)
	first := make(map[string]string)
	sources := make(map[string]map[string]int)
	for _, f := range flows {
		label := predictionLabel(f.Prediction)
		if label == "" {
			continue
		}
		labels[label]++
		if _, ok := first[label]; !ok {
			first[label] = f.ID
			sources[label] = make(map[string]int)
		}
		sources[label][f.Source]++
	}

	top := topKeys(labels, 1)
	if len(top) == 0 || labels[top[0]] < d.thresholds.ClassifiedMinimum {
		return nil
	}
	label := top[0]
	return newFinding(label, 1.0, first[label], topKeys(sources[label], 10),
		fmt.Sprintf("%d flows classified as %s", labels[label], label))
}

func predictionLabel(prediction string) string {
	switch strings.ToLower(strings.TrimSpace(prediction)) {
	case "", "0", "false", "benign", "normal":
		return ""
	case "1", "true", "malicious", "attack":
		return LabelMalicious
	default:
		return prediction
	}
}

// detectRateAnomaly flags a flow rate far above baseline coming from few
// sources. It grades its own severity from the confidence.
func (d *Detector) detectRateAnomaly(flows []models.NetworkFlow, metrics *FlowMetrics) *Finding {
	rate := float64(metrics.TotalFlows)
	zScore := (rate - d.baseline.AverageFlowRate) / d.baseline.StandardDeviation

	if zScore <= d.thresholds.FlowRateZScore || metrics.SourceEntropy >= d.thresholds.SourceEntropyMin {
		return nil
	}

	confidence := math.Min(zScore/6.0, 1.0)
	f := newFinding(LabelRateAnomaly, confidence, flows[0].ID, topKeys(metrics.SourceCounts, 20),
		fmt.Sprintf("%.0f flows per batch (Z-score: %.2f), low source entropy: %.2f", rate, zScore, metrics.SourceEntropy))
	f.Severity = getSeverity(confidence)
	return f
}

func newFinding(label string, confidence float64, flowID string, sources []string, desc string) *Finding {
	return &Finding{
		ID:          uuid.New().String(),
		AttackType:  label,
		Confidence:  confidence,
		FlowID:      flowID,
		Sources:     sources,
		Description: desc,
		DetectedAt:  time.Now().UTC(),
	}
}

// calculateEntropy calculates Shannon entropy for a distribution
func calculateEntropy(counts map[string]int) float64 {
	total := 0
	for _, count := range counts {
		total += count
	}

	if total == 0 {
		return 0.0
	}

	entropy := 0.0
	for _, count := range counts {
		if count > 0 {
			p := float64(count) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}

	return entropy
}

// topKeys returns the n keys with the highest counts, ties broken by key
func topKeys(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func getSeverity(confidence float64) models.Severity {
	if confidence >= 0.9 {
		return models.SeverityCritical
	} else if confidence >= 0.7 {
		return models.SeverityHigh
	} else if confidence >= 0.5 {
		return models.SeverityMedium
	}
	return models.SeverityLow
}

// UpdateBaseline folds a batch that raised no findings into the baseline
func (d *Detector) UpdateBaseline(metrics *FlowMetrics) {
	alpha := 0.1

	d.baseline.AverageFlowRate = alpha*float64(metrics.TotalFlows) + (1-alpha)*d.baseline.AverageFlowRate
	d.baseline.AverageSources = int(alpha*float64(metrics.UniqueSources) + (1-alpha)*float64(d.baseline.AverageSources))
	d.baseline.AverageEntropy = alpha*metrics.SourceEntropy + (1-alpha)*d.baseline.AverageEntropy
	d.baseline.AverageDuration = alpha*metrics.AvgDuration + (1-alpha)*d.baseline.AverageDuration
}

// Learn updates the baseline from a batch when it looks normal and reports
// whether it did.
func (d *Detector) Learn(flows []models.NetworkFlow) bool {
	if len(flows) == 0 || len(d.Analyze(flows)) > 0 {
		return false
	}
	d.UpdateBaseline(d.calculateMetrics(flows))
	return true
}
